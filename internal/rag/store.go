// Package rag stores parsed log records in Qdrant and retrieves the ones
// relevant to a question.
package rag

import (
	"context"
	"fmt"

	"github.com/ashutoshrp06/logpilot/internal/logparse"
	"github.com/ashutoshrp06/logpilot/internal/types"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StoreConfig holds configuration for the vector store.
type StoreConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	VectorSize int
}

// SearchOptions narrows a search.
type SearchOptions struct {
	TopK       int
	MinScore   float32
	Severities []string
}

// Store handles log record storage and retrieval in Qdrant.
type Store struct {
	client     *qdrant.Client
	collection string
	vectorSize int
	embedder   Embedder
	logger     *zap.Logger
}

// NewStore connects to Qdrant.
func NewStore(cfg StoreConfig, embedder Embedder, logger *zap.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag store requires an embedder")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &Store{
		client:     client,
		collection: cfg.Collection,
		vectorSize: cfg.VectorSize,
		embedder:   embedder,
		logger:     logger,
	}, nil
}

// Collection returns the configured collection name.
func (s *Store) Collection() string {
	return s.collection
}

// Search performs semantic search on the collection.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]types.RetrievedChunk, error) {
	vec, err := EmbedSingle(ctx, s.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	limit := uint64(opts.TopK)
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.MinScore > 0 {
		req.ScoreThreshold = &opts.MinScore
	}
	if len(opts.Severities) > 0 {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords("severity", opts.Severities...),
			},
		}
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, s.wrapErr("search", err)
	}

	chunks := make([]types.RetrievedChunk, 0, len(points))
	for _, p := range points {
		chunk := types.RetrievedChunk{
			Score:    float64(p.Score),
			Metadata: convertPayload(p.Payload),
		}
		chunk.Content, _ = getPayloadString(p.Payload, "text")
		chunk.Severity, _ = getPayloadString(p.Payload, "severity")
		chunks = append(chunks, chunk)
	}

	s.logger.Debug("Search completed",
		zap.Int("results", len(chunks)),
		zap.String("query_preview", truncateString(query, 50)),
		zap.Strings("severities", opts.Severities))

	return chunks, nil
}

// EnsureCollection creates the collection with cosine distance if it does
// not exist yet.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return s.wrapErr("check collection", err)
	}
	if exists {
		return nil
	}
	if s.vectorSize <= 0 {
		return fmt.Errorf("collection %s does not exist and no vector size is configured", s.collection)
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return s.wrapErr("create collection", err)
	}
	s.logger.Info("Created collection",
		zap.String("collection", s.collection),
		zap.Int("vector_size", s.vectorSize))
	return nil
}

// Upsert embeds records in batches and stores them. It returns the number
// of records written.
func (s *Store) Upsert(ctx context.Context, records []logparse.Record, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 32
	}

	written := 0
	wait := true
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		batch := records[start:end]

		texts := make([]string, len(batch))
		for i, r := range batch {
			texts[i] = r.Text
		}
		vecs, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("embed batch at %d: %w", start, err)
		}

		points := make([]*qdrant.PointStruct, len(batch))
		for i, r := range batch {
			points[i] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(uuid.NewString()),
				Vectors: qdrant.NewVectors(vecs[i]...),
				Payload: qdrant.NewValueMap(recordPayload(r)),
			}
		}

		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           &wait,
			Points:         points,
		}); err != nil {
			return written, s.wrapErr("upsert", err)
		}
		written += len(batch)
		s.logger.Debug("Upserted batch", zap.Int("written", written), zap.Int("total", len(records)))
	}
	return written, nil
}

// Close releases the Qdrant connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) wrapErr(op string, err error) error {
	if status.Code(err) == codes.Unavailable {
		s.logger.Warn("Qdrant unavailable", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("qdrant %s: service unavailable: %w", op, err)
	}
	return fmt.Errorf("qdrant %s failed: %w", op, err)
}

func recordPayload(r logparse.Record) map[string]any {
	payload := map[string]any{
		"text":     r.Text,
		"severity": r.Severity,
	}
	if r.Code != "" {
		payload["code"] = r.Code
	}
	if r.Timestamp != nil {
		payload["timestamp"] = r.Timestamp.Format(logparse.TimestampLayout)
	}
	return payload
}

// getPayloadString extracts a string value from Qdrant payload.
func getPayloadString(payload map[string]*qdrant.Value, key string) (string, bool) {
	if val, ok := payload[key]; ok {
		if strVal := val.GetStringValue(); strVal != "" {
			return strVal, true
		}
	}
	return "", false
}

// convertPayload converts Qdrant payload to a generic map.
func convertPayload(payload map[string]*qdrant.Value) map[string]interface{} {
	result := make(map[string]interface{}, len(payload))
	for key, val := range payload {
		if val == nil {
			continue
		}
		switch v := val.Kind.(type) {
		case *qdrant.Value_StringValue:
			result[key] = v.StringValue
		case *qdrant.Value_IntegerValue:
			result[key] = v.IntegerValue
		case *qdrant.Value_DoubleValue:
			result[key] = v.DoubleValue
		case *qdrant.Value_BoolValue:
			result[key] = v.BoolValue
		}
	}
	return result
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
