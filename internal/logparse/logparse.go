// Package logparse converts ACE/MQ syslog lines into structured records.
package logparse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// Severity codes. Unknown covers lines without a recognised message code.
const (
	SeverityError   = "E"
	SeverityWarning = "W"
	SeverityInfo    = "I"
	SeverityUnknown = "U"
)

// TimestampLayout is the layout used for timestamps in JSONL output.
const TimestampLayout = "2006-01-02 15:04:05"

var (
	linePattern = regexp.MustCompile(`^(\w{3}) (\d{2}) (\d{2}:\d{2}:\d{2}) (.*)$`)
	codePattern = regexp.MustCompile(`(ACE\d+)([WEI]):`)
)

// Record is one parsed log line.
type Record struct {
	Text      string
	Timestamp *time.Time
	Severity  string
	Code      string
}

// Critical reports whether the record is an error or a warning.
func (r Record) Critical() bool {
	return r.Severity == SeverityError || r.Severity == SeverityWarning
}

type jsonRecord struct {
	Text      string  `json:"text"`
	Timestamp *string `json:"timestamp"`
	Severity  string  `json:"severity"`
	Code      string  `json:"code,omitempty"`
}

// MarshalJSON encodes the record in the JSONL line format.
func (r Record) MarshalJSON() ([]byte, error) {
	jr := jsonRecord{Text: r.Text, Severity: r.Severity, Code: r.Code}
	if r.Timestamp != nil {
		ts := r.Timestamp.Format(TimestampLayout)
		jr.Timestamp = &ts
	}
	return json.Marshal(jr)
}

// UnmarshalJSON decodes a JSONL line.
func (r *Record) UnmarshalJSON(data []byte) error {
	var jr jsonRecord
	if err := json.Unmarshal(data, &jr); err != nil {
		return err
	}
	r.Text = jr.Text
	r.Severity = jr.Severity
	r.Code = jr.Code
	r.Timestamp = nil
	if jr.Timestamp != nil {
		ts, err := time.Parse(TimestampLayout, *jr.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", *jr.Timestamp, err)
		}
		r.Timestamp = &ts
	}
	return nil
}

// Parser parses syslog lines. Syslog timestamps carry no year, so the
// parser stamps every record with Year.
type Parser struct {
	Year int
}

// NewParser returns a parser for the given year; zero means 2025.
func NewParser(year int) *Parser {
	if year == 0 {
		year = 2025
	}
	return &Parser{Year: year}
}

// ParseLine parses one line. Lines that do not start with a syslog
// timestamp keep their text with no timestamp and severity U.
func (p *Parser) ParseLine(line string) Record {
	line = strings.TrimSpace(line)
	rec := Record{Text: line, Severity: SeverityUnknown}

	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return rec
	}

	ts, err := time.Parse("Jan 02 15:04:05", m[1]+" "+m[2]+" "+m[3])
	if err != nil {
		return rec
	}
	ts = time.Date(p.Year, ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), 0, time.UTC)
	rec.Timestamp = &ts

	if cm := codePattern.FindStringSubmatch(m[4]); cm != nil {
		rec.Code = cm[1]
		rec.Severity = cm[2]
	}
	return rec
}

// Parse streams records from r to fn, stopping at the first error fn
// returns.
func (p *Parser) Parse(r io.Reader, fn func(Record) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := fn(p.ParseLine(scanner.Text())); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	return nil
}

// Stats counts converted records by severity.
type Stats struct {
	Total      int
	BySeverity map[string]int
}

// Convert writes one JSON object per input line to w.
func (p *Parser) Convert(r io.Reader, w io.Writer) (Stats, error) {
	stats := Stats{BySeverity: make(map[string]int)}
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	err := p.Parse(r, func(rec Record) error {
		stats.Total++
		stats.BySeverity[rec.Severity]++
		return enc.Encode(rec)
	})
	if err != nil {
		return stats, err
	}
	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("write jsonl: %w", err)
	}
	return stats, nil
}

// ReadJSONL decodes records previously written by Convert.
func ReadJSONL(r io.Reader) ([]Record, error) {
	var records []Record
	dec := json.NewDecoder(r)
	for {
		var rec Record
		if err := dec.Decode(&rec); err == io.EOF {
			return records, nil
		} else if err != nil {
			return records, fmt.Errorf("decode record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
}
