// Package redislog keeps recent log records in a Redis stream and searches
// them.
package redislog

import (
	"context"
	"fmt"
	"time"

	"github.com/ashutoshrp06/logpilot/internal/logparse"
	"github.com/redis/go-redis/v9"
)

// Config holds configuration for the Redis connection and stream.
type Config struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// Entry is a log record read back from the stream.
type Entry struct {
	ID        string
	Text      string
	Severity  string
	Code      string
	Timestamp string
}

// Store wraps go-redis with stream operations for log records.
type Store struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

// New connects to Redis and validates the connection.
func New(cfg Config) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewWithClient(rdb, cfg), nil
}

// NewWithClient builds a store on an existing client.
func NewWithClient(rdb *redis.Client, cfg Config) *Store {
	stream := cfg.Stream
	if stream == "" {
		stream = "logpilot:logs"
	}
	return &Store{rdb: rdb, stream: stream, maxLen: cfg.MaxLen}
}

// Stream returns the stream key.
func (s *Store) Stream() string { return s.stream }

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Append adds a record to the stream, trimming it to roughly MaxLen entries
// when a limit is configured.
func (s *Store) Append(ctx context.Context, rec logparse.Record) (string, error) {
	values := map[string]interface{}{
		"text":     rec.Text,
		"severity": rec.Severity,
	}
	if rec.Code != "" {
		values["code"] = rec.Code
	}
	if rec.Timestamp != nil {
		values["timestamp"] = rec.Timestamp.Format(logparse.TimestampLayout)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: values,
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	id, err := s.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd failed: %w", err)
	}
	return id, nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int64) ([]Entry, error) {
	msgs, err := s.rdb.XRevRangeN(ctx, s.stream, "+", "-", n).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("xrevrange failed: %w", err)
	}

	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, Entry{
			ID:        m.ID,
			Text:      stringValue(m.Values, "text"),
			Severity:  stringValue(m.Values, "severity"),
			Code:      stringValue(m.Values, "code"),
			Timestamp: stringValue(m.Values, "timestamp"),
		})
	}
	return entries, nil
}

// Search scans the newest window entries and returns up to limit whose text
// matches query.
func (s *Store) Search(ctx context.Context, query string, window int64, limit int) ([]Entry, error) {
	entries, err := s.Recent(ctx, window)
	if err != nil {
		return nil, err
	}

	terms := logparse.Terms(query)
	var matched []Entry
	for _, e := range entries {
		if !logparse.Matches(e.Text, terms) {
			continue
		}
		matched = append(matched, e)
		if limit > 0 && len(matched) >= limit {
			break
		}
	}
	return matched, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func stringValue(values map[string]interface{}, key string) string {
	v, ok := values[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
