package audit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Entry is one parsed block of the history file.
type Entry struct {
	Timestamp time.Time
	Kind      string
	Text      string
}

// Stats describes the current history file.
type Stats struct {
	Path            string
	Entries         int
	SizeBytes       int64
	MaxBytes        int64
	RotationEnabled bool
	RedactSecrets   bool
}

func (s Stats) String() string {
	return fmt.Sprintf("path=%s entries=%d size=%dB max=%dB rotation=%t redaction=%t",
		s.Path, s.Entries, s.SizeBytes, s.MaxBytes, s.RotationEnabled, s.RedactSecrets)
}

func (l *Log) read() (string, error) {
	if !l.cfg.Enabled {
		return "", ErrDisabled
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return string(data), err
}

var (
	entryHeading = regexp.MustCompile(`^## (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) - (.+)$`)
	fenceLine    = regexp.MustCompile("^`{3,}$")
)

// parseEntries splits the file at entry headings. Headings inside a fenced
// block are body text. Text before the first heading is the file header and
// is dropped.
func parseEntries(content string) []Entry {
	var entries []Entry
	var cur *Entry
	var body strings.Builder
	var open string

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.TrimSpace(body.String())
		entries = append(entries, *cur)
		body.Reset()
	}

	for _, line := range strings.SplitAfter(content, "\n") {
		trimmed := strings.TrimRight(line, "\r\n")
		switch {
		case open != "":
			if trimmed == open {
				open = ""
			}
		case fenceLine.MatchString(trimmed):
			open = trimmed
		}
		if m := entryHeading.FindStringSubmatch(trimmed); m != nil && open == "" {
			flush()
			cur = &Entry{Kind: m[2]}
			if t, err := time.ParseInLocation(entryTimeLayout, m[1], time.Local); err == nil {
				cur.Timestamp = t
			}
		}
		if cur != nil {
			body.WriteString(line)
		}
	}
	flush()
	return entries
}

// Recent returns up to n most recent entries, oldest first.
func (l *Log) Recent(n int) ([]Entry, error) {
	content, err := l.read()
	if err != nil {
		return nil, err
	}
	entries := parseEntries(content)
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// Search returns entries containing query, case-insensitively, newest
// first. A limit of zero returns every match.
func (l *Log) Search(query string, limit int) ([]Entry, error) {
	content, err := l.read()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	entries := parseEntries(content)

	var out []Entry
	for i := len(entries) - 1; i >= 0; i-- {
		if q != "" && !strings.Contains(strings.ToLower(entries[i].Text), q) {
			continue
		}
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Tail renders the last n entries as markdown for display.
func (l *Log) Tail(n int) string {
	entries, err := l.Recent(n)
	switch {
	case errors.Is(err, ErrDisabled):
		return "Audit log is disabled."
	case err != nil:
		return fmt.Sprintf("Audit log unavailable: %v", err)
	case len(entries) == 0:
		return "No reasoning history recorded yet."
	}

	blocks := make([]string, len(entries))
	for i, e := range entries {
		blocks[i] = e.Text
	}
	return strings.Join(blocks, "\n\n")
}

// Stats reports entry count and size.
func (l *Log) Stats() (Stats, error) {
	content, err := l.read()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Path:            l.cfg.Path,
		Entries:         len(parseEntries(content)),
		SizeBytes:       int64(len(content)),
		MaxBytes:        l.maxBytes,
		RotationEnabled: l.cfg.RotationEnabled,
		RedactSecrets:   l.cfg.RedactSecrets,
	}, nil
}

// Clear truncates the history to a bare header. Rotated backups are kept.
func (l *Log) Clear() error {
	if !l.cfg.Enabled {
		return ErrDisabled
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.cfg.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(l.cfg.Path, []byte(header), 0o644)
}
