// Package rca renders IBM MQ root cause analysis reports from an
// engineer's answers.
package rca

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Choice values accepted by Validate.
var (
	SeverityChoices    = []string{"Low", "Medium", "High"}
	EnvironmentChoices = []string{"Dev", "QA", "Stage", "Prod"}
	ConfidenceChoices  = []string{"Low", "Medium", "High"}
	FeedbackChoices    = []string{"Correct", "Incorrect", "Partially Correct"}
)

// Answers holds everything needed to render a report.
type Answers struct {
	Issue              string `yaml:"issue"`
	IncidentTime       string `yaml:"incident_time"`
	Severity           string `yaml:"severity"`
	Environment        string `yaml:"environment"`
	UserQuestion       string `yaml:"user_question"`
	LogSnippets        string `yaml:"log_snippets"`
	AIAnalysis         string `yaml:"ai_analysis"`
	RootCause          string `yaml:"root_cause"`
	Evidence           string `yaml:"evidence"`
	Impact             string `yaml:"impact"`
	RecommendedFix     string `yaml:"recommended_fix"`
	PreventiveMeasures string `yaml:"preventive_measures"`
	ConfidenceScore    string `yaml:"confidence_score"`
	Feedback           string `yaml:"feedback"`
	Comments           string `yaml:"comments"`
}

// Question is one prompt of the interactive questionnaire.
type Question struct {
	Key     string
	Prompt  string
	Example string
	Choices []string
	set     func(*Answers, string)
}

// Set stores value in a.
func (q Question) Set(a *Answers, value string) { q.set(a, value) }

// Questions returns the questionnaire in report order.
func Questions() []Question {
	return []Question{
		{Key: "issue", Prompt: "Issue (one-line summary)", Example: "Messages stuck in DLQ for CHANNEL.ORDER.INPUT",
			set: func(a *Answers, v string) { a.Issue = v }},
		{Key: "incident_time", Prompt: "Incident time", Example: "2025-01-02 14:30",
			set: func(a *Answers, v string) { a.IncidentTime = v }},
		{Key: "severity", Prompt: "Severity", Choices: SeverityChoices,
			set: func(a *Answers, v string) { a.Severity = v }},
		{Key: "environment", Prompt: "Environment", Choices: EnvironmentChoices,
			set: func(a *Answers, v string) { a.Environment = v }},
		{Key: "user_question", Prompt: "Exact question asked by the engineer", Example: "Why are messages getting into DLQ in MQ queue ORDER.INPUT?",
			set: func(a *Answers, v string) { a.UserQuestion = v }},
		{Key: "log_snippets", Prompt: "Log snippets", Example: "AMQ9637: Channel is not available due to SSL error",
			set: func(a *Answers, v string) { a.LogSnippets = v }},
		{Key: "ai_analysis", Prompt: "AI interpretation of logs",
			set: func(a *Answers, v string) { a.AIAnalysis = v }},
		{Key: "root_cause", Prompt: "Primary cause identified", Example: "SSL certificate expired on client-connecting channel CHL.ORDER.INPUT",
			set: func(a *Answers, v string) { a.RootCause = v }},
		{Key: "evidence", Prompt: "Evidence",
			set: func(a *Answers, v string) { a.Evidence = v }},
		{Key: "impact", Prompt: "Impact",
			set: func(a *Answers, v string) { a.Impact = v }},
		{Key: "recommended_fix", Prompt: "Recommended fix",
			set: func(a *Answers, v string) { a.RecommendedFix = v }},
		{Key: "preventive_measures", Prompt: "Preventive measures",
			set: func(a *Answers, v string) { a.PreventiveMeasures = v }},
		{Key: "confidence_score", Prompt: "Confidence score", Choices: ConfidenceChoices,
			set: func(a *Answers, v string) { a.ConfidenceScore = v }},
		{Key: "feedback", Prompt: "Feedback", Choices: FeedbackChoices,
			set: func(a *Answers, v string) { a.Feedback = v }},
		{Key: "comments", Prompt: "Comments",
			set: func(a *Answers, v string) { a.Comments = v }},
	}
}

// Load reads answers from a YAML file.
func Load(path string) (*Answers, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open answers: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads answers as YAML from r. Unknown keys are rejected.
func Decode(r io.Reader) (*Answers, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var a Answers
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}
	return &a, nil
}

// Validate checks required fields and normalizes choice fields to their
// canonical spelling.
func (a *Answers) Validate() error {
	if strings.TrimSpace(a.Issue) == "" {
		return fmt.Errorf("issue is required")
	}
	if strings.TrimSpace(a.RootCause) == "" {
		return fmt.Errorf("root_cause is required")
	}

	checks := []struct {
		name    string
		value   *string
		choices []string
		opt     bool
	}{
		{"severity", &a.Severity, SeverityChoices, false},
		{"environment", &a.Environment, EnvironmentChoices, false},
		{"confidence_score", &a.ConfidenceScore, ConfidenceChoices, false},
		{"feedback", &a.Feedback, FeedbackChoices, true},
	}
	for _, c := range checks {
		if *c.value == "" && c.opt {
			continue
		}
		canonical, ok := MatchChoice(*c.value, c.choices)
		if !ok {
			return fmt.Errorf("%s must be one of %s, got %q", c.name, strings.Join(c.choices, "/"), *c.value)
		}
		*c.value = canonical
	}
	return nil
}

// MatchChoice returns the choice equal to value ignoring case and
// surrounding space.
func MatchChoice(value string, choices []string) (string, bool) {
	value = strings.TrimSpace(value)
	i := slices.IndexFunc(choices, func(c string) bool { return strings.EqualFold(c, value) })
	if i < 0 {
		return "", false
	}
	return choices[i], true
}

var reportTmpl = template.Must(template.New("rca").Parse(`IBM MQ - Root Cause Analysis (RCA) Report

1. Summary
Issue: {{.Issue}}
Incident Time: {{.IncidentTime}}
Severity: {{.Severity}}
Environment: {{.Environment}}

2. User Question
{{.UserQuestion}}

3. Relevant MQ Logs
{{.LogSnippets}}

4. MQ Analysis (AI Interpretation)
{{.AIAnalysis}}

5. Root Cause
{{.RootCause}}

6. Evidence
{{.Evidence}}

7. Impact
{{.Impact}}

8. Recommended Fix
{{.RecommendedFix}}

9. Preventive Measures
{{.PreventiveMeasures}}

10. Confidence Score
{{.ConfidenceScore}}

11. Engineer Feedback
Feedback: {{.Feedback}}
Comments: {{.Comments}}
`))

// Render returns the plain-text report.
func Render(a *Answers) (string, error) {
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, a); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}
