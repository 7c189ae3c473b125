// Package logtools implements the local log search tools bound to the
// queue, cache and default tracks.
package logtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashutoshrp06/logpilot/internal/mqlog"
	"github.com/ashutoshrp06/logpilot/internal/rag"
	"github.com/ashutoshrp06/logpilot/internal/redislog"
	"github.com/ashutoshrp06/logpilot/internal/tools"
	"github.com/ashutoshrp06/logpilot/internal/types"
)

// Tool names.
const (
	MQSearch       = "mq_search"
	RedisSearch    = "redis_search"
	CriticalErrors = "search_critical_errors"
)

const (
	mqPrefix    = "[MQ]"
	redisPrefix = "[Redis]"
)

// MQSearcher finds lines in queue manager error logs.
type MQSearcher interface {
	Search(ctx context.Context, query string) ([]mqlog.Match, error)
}

// StreamSearcher finds entries in the cache log stream.
type StreamSearcher interface {
	Search(ctx context.Context, query string, window int64, limit int) ([]redislog.Entry, error)
}

// CriticalFinder retrieves error and warning records relevant to a query.
type CriticalFinder interface {
	Critical(ctx context.Context, query string) ([]types.RetrievedChunk, error)
}

// Deps holds the backends behind the tools. A nil backend makes the
// corresponding search tool answer with a placeholder.
type Deps struct {
	MQ          MQSearcher
	Redis       StreamSearcher
	RedisWindow int64
	RedisLimit  int
	Critical    CriticalFinder
}

// Register adds the log tools to reg. search_critical_errors is only
// registered when a finder is available.
func Register(reg *tools.Registry, deps Deps) error {
	list := []tools.Tool{
		NewMQSearch(deps.MQ),
		NewRedisSearch(deps.Redis, deps.RedisWindow, deps.RedisLimit),
	}
	if deps.Critical != nil {
		list = append(list, NewCriticalErrors(deps.Critical))
	}
	for _, t := range list {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// NewMQSearch returns the mq_search tool.
func NewMQSearch(s MQSearcher) tools.Tool {
	return tools.NewQueryTool(MQSearch,
		"Search IBM MQ queue manager error logs (AMQERR files). Use for latest or recent MQ log questions.",
		func(ctx context.Context, query string) (string, error) {
			if s == nil {
				return placeholder(mqPrefix, query), nil
			}
			matches, err := s.Search(ctx, query)
			if err != nil {
				return "", fmt.Errorf("search mq logs: %w", err)
			}
			if len(matches) == 0 {
				return fmt.Sprintf("%s No log entries matching %q", mqPrefix, query), nil
			}

			var sb strings.Builder
			fmt.Fprintf(&sb, "%s Found %d entries for %q:\n", mqPrefix, len(matches), query)
			for _, m := range matches {
				fmt.Fprintf(&sb, "%s:%d: %s\n", m.File, m.Line, m.Text)
			}
			return strings.TrimRight(sb.String(), "\n"), nil
		})
}

// NewRedisSearch returns the redis_search tool. window bounds how many of
// the newest stream entries are scanned.
func NewRedisSearch(s StreamSearcher, window int64, limit int) tools.Tool {
	if window <= 0 {
		window = 500
	}
	if limit <= 0 {
		limit = 20
	}
	return tools.NewQueryTool(RedisSearch,
		"Search recent application logs held in the Redis log stream. Use for latest or recent Redis log questions.",
		func(ctx context.Context, query string) (string, error) {
			if s == nil {
				return placeholder(redisPrefix, query), nil
			}
			entries, err := s.Search(ctx, query, window, limit)
			if err != nil {
				return "", fmt.Errorf("search redis stream: %w", err)
			}
			if len(entries) == 0 {
				return fmt.Sprintf("%s No log entries matching %q", redisPrefix, query), nil
			}

			var sb strings.Builder
			fmt.Fprintf(&sb, "%s Found %d entries for %q:\n", redisPrefix, len(entries), query)
			for _, e := range entries {
				ts := e.Timestamp
				if ts == "" {
					ts = "-"
				}
				fmt.Fprintf(&sb, "%s [%s] %s\n", ts, e.Severity, e.Text)
			}
			return strings.TrimRight(sb.String(), "\n"), nil
		})
}

// NewCriticalErrors returns the search_critical_errors tool.
func NewCriticalErrors(f CriticalFinder) tools.Tool {
	return tools.NewQueryTool(CriticalErrors,
		"Search the indexed ACE logs for errors and warnings related to the question.",
		func(ctx context.Context, query string) (string, error) {
			chunks, err := f.Critical(ctx, query)
			if err != nil {
				return "", err
			}
			return rag.FormatCritical(chunks), nil
		})
}

func placeholder(prefix, query string) string {
	return fmt.Sprintf("%s Searching latest logs with query: %s", prefix, query)
}
