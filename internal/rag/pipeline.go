package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashutoshrp06/logpilot/internal/logparse"
	"github.com/ashutoshrp06/logpilot/internal/types"
	"go.uber.org/zap"
)

// NoCriticalErrors is returned by FormatCritical when nothing matched.
const NoCriticalErrors = "No critical errors found in the logs"

// Searcher is the retrieval half of Store.
type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]types.RetrievedChunk, error)
}

// PipelineConfig tunes critical-error retrieval.
type PipelineConfig struct {
	TopK          int
	Keep          int
	MinSimilarity float32
	Severities    []string
}

// Pipeline retrieves the most relevant error and warning records for a
// question.
type Pipeline struct {
	searcher Searcher
	cfg      PipelineConfig
	logger   *zap.Logger
}

// NewPipeline creates a pipeline with defaults for unset fields.
func NewPipeline(searcher Searcher, cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.Keep <= 0 {
		cfg.Keep = 5
	}
	if len(cfg.Severities) == 0 {
		cfg.Severities = []string{logparse.SeverityError, logparse.SeverityWarning}
	}
	return &Pipeline{searcher: searcher, cfg: cfg, logger: logger}
}

// Critical returns up to Keep records with a critical severity.
func (p *Pipeline) Critical(ctx context.Context, query string) ([]types.RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	chunks, err := p.searcher.Search(ctx, query, SearchOptions{
		TopK:       p.cfg.TopK,
		MinScore:   p.cfg.MinSimilarity,
		Severities: p.cfg.Severities,
	})
	if err != nil {
		p.logger.Error("Retrieval failed",
			zap.Error(err),
			zap.String("query_preview", truncateString(query, 50)))
		return nil, err
	}

	// The store filters by severity already; this guards stores that
	// ignore the filter.
	critical := make([]types.RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		if p.wanted(c.Severity) {
			critical = append(critical, c)
		}
		if len(critical) == p.cfg.Keep {
			break
		}
	}

	p.logger.Info("Retrieval completed",
		zap.Int("chunks_found", len(chunks)),
		zap.Int("critical", len(critical)))
	return critical, nil
}

func (p *Pipeline) wanted(sev string) bool {
	for _, s := range p.cfg.Severities {
		if s == sev {
			return true
		}
	}
	return false
}

// FormatCritical renders chunks as numbered "Log i:" blocks.
func FormatCritical(chunks []types.RetrievedChunk) string {
	if len(chunks) == 0 {
		return NoCriticalErrors
	}
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		blocks[i] = fmt.Sprintf("Log %d:\n%s\n", i+1, c.Content)
	}
	return strings.Join(blocks, "\n")
}
