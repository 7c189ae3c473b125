package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashutoshrp06/logpilot/internal/logparse"
	"github.com/ashutoshrp06/logpilot/internal/redislog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestQdrant bool
	ingestRedis  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Load log records into the vector store and/or the Redis stream",
	Long: `Load records into the backends searched by the log tools. Files ending in
.jsonl are read as converted records; anything else is parsed as a raw log.

Examples:
  logpilot ingest ace.jsonl --qdrant
  logpilot ingest ace.log --qdrant --redis`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ingestQdrant && !ingestRedis {
			return errors.New("choose at least one of --qdrant or --redis")
		}
		ctx, stop := signalContext()
		defer stop()
		return runIngest(ctx, args[0])
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestQdrant, "qdrant", false, "Embed records into the Qdrant collection")
	ingestCmd.Flags().BoolVar(&ingestRedis, "redis", false, "Append records to the Redis stream")
}

func runIngest(ctx context.Context, path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a := &app{cfg: cfg, logger: createLogger()}
	defer a.Close()

	records, err := readRecords(path, cfg.LogParse.Year)
	if err != nil {
		return err
	}
	fmt.Println(infoStyle.Render(fmt.Sprintf("Read %d records from %s", len(records), path)))

	if ingestQdrant {
		store, err := a.openStore()
		if err != nil {
			return fmt.Errorf("open vector store: %w", err)
		}
		if err := store.EnsureCollection(ctx); err != nil {
			return err
		}
		n, err := store.Upsert(ctx, records, cfg.Embedding.BatchSize)
		if err != nil {
			return fmt.Errorf("after %d records: %w", n, err)
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ Upserted %d records into %s", n, store.Collection())))
	}

	if ingestRedis {
		store, err := redislog.New(cfg.RedisStoreConfig())
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)

		for i, rec := range records {
			if _, err := store.Append(ctx, rec); err != nil {
				return fmt.Errorf("append record %d: %w", i+1, err)
			}
		}
		a.logger.Debug("Appended records", zap.String("stream", store.Stream()), zap.Int("count", len(records)))
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ Appended %d records to %s", len(records), store.Stream())))
	}
	return nil
}

func readRecords(path string, year int) ([]logparse.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return logparse.ReadJSONL(f)
	}

	var records []logparse.Record
	err = logparse.NewParser(year).Parse(f, func(r logparse.Record) error {
		records = append(records, r)
		return nil
	})
	return records, err
}
