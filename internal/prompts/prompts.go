// Package prompts builds the system instruction bound to each track.
package prompts

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ashutoshrp06/logpilot/internal/llm"
	"github.com/ashutoshrp06/logpilot/internal/types"
)

// CriticalErrorsTool is the tool that enables the ACE analyst guidance.
const CriticalErrorsTool = "search_critical_errors"

// SplunkConfig describes the Splunk environment the assistant queries.
type SplunkConfig struct {
	Index          string            `mapstructure:"index" yaml:"index"`
	Sourcetypes    []string          `mapstructure:"sourcetypes" yaml:"sourcetypes"`
	Sources        []string          `mapstructure:"sources" yaml:"sources"`
	QueryTemplates map[string]string `mapstructure:"query_templates" yaml:"query_templates"`
	TimeRanges     map[string]string `mapstructure:"time_ranges" yaml:"time_ranges"`
}

// DefaultSplunkConfig returns the IBM MQ defaults.
func DefaultSplunkConfig() SplunkConfig {
	return SplunkConfig{
		Index:       "ibmmq",
		Sourcetypes: []string{"IBM:MQ", "AMQERR", "AMQ", "MQChannel", "MQQueue", "MQSystem"},
		Sources:     []string{"amqerr*.log", "AMQERR01.LOG", "AMQERR02.LOG", "AMQERR03.LOG"},
		QueryTemplates: map[string]string{
			"mq errors":             `source="*amqerr*.log" ("AMQ*" OR "error" OR "reason code")`,
			"mq warnings":           `source="*amqerr*.log" "AMQ*" severity=warning`,
			"mq performance issues": `("slow" OR "latency" OR "response time")`,
			"mq backlog":            `("queue depth" OR "backlog" OR "messages waiting")`,
			"channel errors":        `("AMQ9*" OR "channel" AND ("stopped" OR "retrying"))`,
			"queue full":            `("2053" OR "queue full")`,
			"dlq issues":            `"SYSTEM.DEAD.LETTER.QUEUE"`,
			"qmgr issues":           `("queue manager" AND ("ended" OR "not available"))`,
		},
		TimeRanges: map[string]string{
			"today":         "earliest=-1d@d",
			"last hour":     "earliest=-1h",
			"last 24 hours": "earliest=-24h",
			"yesterday":     "earliest=-2d@d latest=-1d@d",
			"last week":     "earliest=-7d",
			"this week":     "earliest=-1w@w",
			"this month":    "earliest=-1mon@mon",
		},
	}
}

// Builder renders track instructions. When TemplatePath names a readable
// file its contents replace the built-in base instruction; the placeholders
// {{INDEX}}, {{SOURCETYPES}}, {{SOURCES}}, {{QUERY_EXAMPLES}},
// {{TIME_RANGES}} and {{TOOLS}} are substituted.
type Builder struct {
	Splunk       SplunkConfig
	TemplatePath string
}

// NewBuilder returns a builder over cfg.
func NewBuilder(cfg SplunkConfig, templatePath string) *Builder {
	if cfg.Index == "" {
		cfg.Index = DefaultSplunkConfig().Index
	}
	return &Builder{Splunk: cfg, TemplatePath: templatePath}
}

// Build returns the system instruction for track with the given tools bound.
func (b *Builder) Build(track types.Track, tools []llm.ToolDefinition) string {
	base := b.base(tools)

	switch track {
	case types.TrackQueue:
		return base + recencyAddendum("MQ", "mq_search")
	case types.TrackCache:
		return base + recencyAddendum("REDIS", "redis_search")
	}

	for _, t := range tools {
		if t.Name == CriticalErrorsTool {
			return base + "\n" + aceAnalyst
		}
	}
	return base
}

func (b *Builder) base(tools []llm.ToolDefinition) string {
	values := map[string]string{
		"{{INDEX}}":          b.Splunk.Index,
		"{{SOURCETYPES}}":    strings.Join(b.Splunk.Sourcetypes, ", "),
		"{{SOURCES}}":        strings.Join(b.Splunk.Sources, ", "),
		"{{QUERY_EXAMPLES}}": b.queryExamples(),
		"{{TIME_RANGES}}":    b.timeRanges(),
		"{{TOOLS}}":          toolList(tools),
	}

	tmpl := baseTemplate
	if b.TemplatePath != "" {
		if raw, err := os.ReadFile(b.TemplatePath); err == nil {
			tmpl = string(raw)
		}
	}
	for k, v := range values {
		tmpl = strings.ReplaceAll(tmpl, k, v)
	}
	return tmpl
}

func (b *Builder) queryExamples() string {
	if len(b.Splunk.QueryTemplates) == 0 {
		return "- none configured"
	}
	var sb strings.Builder
	for _, phrase := range sortedKeys(b.Splunk.QueryTemplates) {
		fmt.Fprintf(&sb, "- %q -> index=%q %s\n", phrase, b.Splunk.Index, b.Splunk.QueryTemplates[phrase])
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Builder) timeRanges() string {
	if len(b.Splunk.TimeRanges) == 0 {
		return "- none configured"
	}
	var sb strings.Builder
	for _, phrase := range sortedKeys(b.Splunk.TimeRanges) {
		fmt.Fprintf(&sb, "- %q -> %s\n", phrase, b.Splunk.TimeRanges[phrase])
	}
	return strings.TrimRight(sb.String(), "\n")
}

func toolList(tools []llm.ToolDefinition) string {
	if len(tools) == 0 {
		return "No tools available."
	}
	var sb strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name, t.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func recencyAddendum(system, tool string) string {
	return fmt.Sprintf(`

ADDITIONAL %s INSTRUCTIONS:
- You are handling queries about LATEST/RECENT logs
- Focus on the most recent data (typically last hour or less)
- Use the %s tool for these queries
`, system, tool)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const baseTemplate = `You are an IBM MQ operations assistant backed by Splunk logs and live MQ data.

Your only responsibility is to help users analyze:
- IBM MQ errors, warnings and failures
- MQ performance, latency and backlog
- Queue managers, queues and channels
- MQ incidents using Splunk-indexed MQ logs

SCOPE
If a question is not about IBM MQ, MQ logs or Splunk searches on MQ data, politely refuse and answer:
"Sorry, I can help only with IBM MQ analysis using Splunk logs. Please ask about MQ errors, queue or channel issues, performance problems, or time-based MQ incidents. Example: 'Are there any MQ errors in the last 24 hours?'"

SPLUNK ENVIRONMENT
- Default index: {{INDEX}}
- MQ sourcetypes: {{SOURCETYPES}}
- MQ log sources: {{SOURCES}}

AVAILABLE TOOLS
{{TOOLS}}

NATURAL LANGUAGE TO SPL
{{QUERY_EXAMPLES}}

TIME RANGES
{{TIME_RANGES}}

RULES
1. Users never need to specify index, source or sourcetype.
2. Assume MQ logs unless the user says otherwise and always include index="{{INDEX}}".
3. Infer the time range when the user implies one.
4. Prefer *amqerr*.log for errors and incidents.
5. If a search returns no results or shows infrastructure problems (queue full, connection refused, channel stopped), check queue manager and channel status with the available MQ tools and correlate the findings.
`

const aceAnalyst = `ACE LOG ANALYSIS
You are also an expert IBM App Connect Enterprise (ACE) log analyzer. Use the search_critical_errors tool to retrieve errors (severity E) and warnings (severity W) from the indexed logs, then:
- Explain what each error means and why it likely occurred
- Parse the error code, message and affected flow, node or application
- Use timestamps to spot patterns or cascading failures
- Give specific ACE remediation steps, prioritized by severity and impact

Format the answer as:
## Critical Issues Summary
## Detailed Analysis
(for each error: Error Code & Message, Root Cause, Impact, Remediation Steps)
## Priority Actions

If the question is not about ACE log analysis, errors, warnings, failures or remediation, answer exactly: "I don't know"
`
