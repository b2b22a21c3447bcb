// Package ignore turns gitignore-style files into doublestar patterns used
// when scanning a repository for context.
package ignore

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultFiles are read from the repository root, in order.
var DefaultFiles = []string{".gitignore", ".corethinkignore"}

// Matcher reports whether a slash-separated relative path is ignored.
type Matcher struct {
	patterns []string
}

// New returns a matcher for the given glob patterns.
func New(patterns ...string) *Matcher {
	return &Matcher{patterns: deduplicate(patterns)}
}

// Load reads files under root and returns a matcher combining their
// patterns with extra. Missing files are skipped.
func Load(root string, files []string, extra ...string) (*Matcher, error) {
	patterns := append([]string(nil), extra...)
	for _, name := range files {
		ps, err := parseFile(filepath.Join(root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, ps...)
	}
	return New(patterns...), nil
}

// Patterns returns the matcher's patterns.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

// Match reports whether rel, or a directory containing it, is ignored.
func (m *Matcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p+"/**", rel); ok {
			return true
		}
	}
	return false
}

func parseFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if p := parseLine(sc.Text()); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns, sc.Err()
}

// parseLine converts one gitignore line. Comments, blank lines and
// negations yield "".
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ""
	}

	anchored := strings.HasPrefix(line, "/")
	line = strings.TrimPrefix(line, "/")
	line = strings.TrimSuffix(line, "/")
	if line == "" {
		return ""
	}

	// Unanchored names without a slash match at any depth.
	if !anchored && !strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") {
		line = "**/" + line
	}
	return line
}

func deduplicate(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
