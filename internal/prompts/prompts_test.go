package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashutoshrp06/logpilot/internal/llm"
	"github.com/ashutoshrp06/logpilot/internal/types"
)

func TestBuildTrackAddenda(t *testing.T) {
	b := NewBuilder(DefaultSplunkConfig(), "")

	tests := []struct {
		track   types.Track
		tools   []llm.ToolDefinition
		want    []string
		notWant []string
	}{
		{
			track:   types.TrackQueue,
			tools:   []llm.ToolDefinition{{Name: "mq_search", Description: "Search MQ logs"}},
			want:    []string{"ADDITIONAL MQ INSTRUCTIONS", "Use the mq_search tool", "- mq_search: Search MQ logs"},
			notWant: []string{"REDIS", "ACE LOG ANALYSIS"},
		},
		{
			track:   types.TrackCache,
			tools:   []llm.ToolDefinition{{Name: "redis_search"}},
			want:    []string{"ADDITIONAL REDIS INSTRUCTIONS", "Use the redis_search tool"},
			notWant: []string{"ADDITIONAL MQ"},
		},
		{
			track:   types.TrackDefault,
			tools:   []llm.ToolDefinition{{Name: "search_splunk"}},
			want:    []string{`index="ibmmq"`},
			notWant: []string{"ADDITIONAL", "ACE LOG ANALYSIS"},
		},
		{
			track: types.TrackDefault,
			tools: []llm.ToolDefinition{{Name: "search_splunk"}, {Name: CriticalErrorsTool}},
			want:  []string{"ACE LOG ANALYSIS", `"I don't know"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.track.String(), func(t *testing.T) {
			got := b.Build(tt.track, tt.tools)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("expected instruction to contain %q", w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("expected instruction not to contain %q", w)
				}
			}
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	b := NewBuilder(DefaultSplunkConfig(), "")
	first := b.Build(types.TrackDefault, nil)
	for i := 0; i < 5; i++ {
		if b.Build(types.TrackDefault, nil) != first {
			t.Fatal("expected identical output across builds")
		}
	}
	if !strings.Contains(first, "No tools available.") {
		t.Error("expected empty tool list marker")
	}
	if !strings.Contains(first, `"last hour" -> earliest=-1h`) {
		t.Error("expected time range examples")
	}
}

func TestBuildUsesTemplateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instruction.txt")
	if err := os.WriteFile(path, []byte("index={{INDEX}}\n{{TOOLS}}"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := NewBuilder(SplunkConfig{Index: "prod_mq"}, path)
	got := b.Build(types.TrackDefault, []llm.ToolDefinition{{Name: "t", Description: "d"}})
	if got != "index=prod_mq\n- t: d" {
		t.Fatalf("unexpected instruction %q", got)
	}

	b.TemplatePath = filepath.Join(t.TempDir(), "missing.txt")
	if !strings.Contains(b.Build(types.TrackDefault, nil), "IBM MQ operations assistant") {
		t.Error("expected built-in instruction when template file is missing")
	}
}
