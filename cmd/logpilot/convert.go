package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ashutoshrp06/logpilot/internal/config"
	"github.com/ashutoshrp06/logpilot/internal/logparse"
	"github.com/spf13/cobra"
)

var (
	convertOut  string
	convertYear int
)

var convertCmd = &cobra.Command{
	Use:   "convert <logfile>",
	Short: "Convert a syslog-style ACE log to JSON lines",
	Long: `Parse "Mon DD HH:MM:SS text" lines into JSON records with a timestamp
and a severity taken from ACE message codes (ACE1234E, ACE1234W, ACE1234I).
Use "-" to read standard input.

Examples:
  logpilot convert ace.log --out ace.jsonl
  cat ace.log | logpilot convert - > ace.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(args[0])
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "Output file (default stdout)")
	convertCmd.Flags().IntVar(&convertYear, "year", 0, "Year for timestamps (default logparse.year from config)")
}

func runConvert(input string) error {
	year := convertYear
	if year == 0 {
		cfg, err := loadConfig()
		if err != nil {
			cfg = config.DefaultConfig()
		}
		year = cfg.LogParse.Year
	}

	var r io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer f.Close()
		r = f
	}

	var w io.Writer = os.Stdout
	if convertOut != "" {
		f, err := os.Create(convertOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	stats, err := logparse.NewParser(year).Convert(r, w)
	if err != nil {
		return err
	}

	sevs := make([]string, 0, len(stats.BySeverity))
	for s := range stats.BySeverity {
		sevs = append(sevs, s)
	}
	sort.Strings(sevs)

	summary := fmt.Sprintf("✓ Converted %d records", stats.Total)
	for _, s := range sevs {
		summary += fmt.Sprintf(" %s=%d", s, stats.BySeverity[s])
	}
	fmt.Fprintln(os.Stderr, successStyle.Render(summary))
	return nil
}
