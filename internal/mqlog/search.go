// Package mqlog searches IBM MQ error log files (AMQERR01.LOG and its
// rotations) on local disk.
package mqlog

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ashutoshrp06/logpilot/internal/logparse"
)

// DefaultPattern matches queue manager error logs.
const DefaultPattern = "AMQERR*.LOG"

// Match is a matching line with its origin.
type Match struct {
	File string
	Line int
	Text string
}

// Searcher scans the error logs under Dir. Files are read newest first, so
// with a result limit the most recent entries win.
type Searcher struct {
	Dir        string
	Pattern    string
	MaxResults int
}

// NewSearcher returns a searcher over dir.
func NewSearcher(dir, pattern string, maxResults int) *Searcher {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if maxResults <= 0 {
		maxResults = 20
	}
	return &Searcher{Dir: dir, Pattern: pattern, MaxResults: maxResults}
}

// Search returns lines matching query.
func (s *Searcher) Search(ctx context.Context, query string) ([]Match, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}

	terms := logparse.Terms(query)
	var matches []Match
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return matches, err
		}
		found, err := scanFile(path, terms, s.MaxResults-len(matches))
		if err != nil {
			return matches, err
		}
		matches = append(matches, found...)
		if len(matches) >= s.MaxResults {
			break
		}
	}
	return matches, nil
}

func (s *Searcher) files() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.Dir, s.Pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", s.Pattern, err)
	}

	type fileInfo struct {
		path string
		mod  int64
	}
	infos := make([]fileInfo, 0, len(paths))
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil || st.IsDir() {
			continue
		}
		infos = append(infos, fileInfo{path: p, mod: st.ModTime().UnixNano()})
	}
	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].mod == infos[j].mod {
			return infos[i].path < infos[j].path
		}
		return infos[i].mod > infos[j].mod
	})

	out := make([]string, len(infos))
	for i, fi := range infos {
		out[i] = fi.path
	}
	return out, nil
}

// scanFile returns up to limit matching lines, keeping the last ones in the
// file since MQ appends newest entries at the end.
func scanFile(path string, terms []string, limit int) ([]Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var found []Match
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		text := scanner.Text()
		if text == "" || !logparse.Matches(text, terms) {
			continue
		}
		found = append(found, Match{File: filepath.Base(path), Line: n, Text: text})
		if len(found) > limit {
			found = found[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	// Newest first.
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	return found, nil
}
