// Package audit keeps the reasoning history: a human-readable markdown file
// with one block per orchestrator invocation.
//
// Appends never fail the caller. I/O problems are reported through the
// process logger only. When rotation is enabled and the file has exceeded its
// size limit, it is renamed to <stem>.<YYYYMMDD_HHMMSS>.md before the next
// append and a fresh file with a header is started.
package audit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/corethink/internal/config"
	"github.com/fyrsmithlabs/corethink/internal/secrets"
	"go.uber.org/zap"
)

// ErrDisabled is returned by read operations when the log is turned off.
var ErrDisabled = errors.New("audit log disabled")

const header = "# Reasoning History\n\nOne entry per corethink invocation, newest last.\n\n---\n\n"

const (
	entryTimeLayout  = "2006-01-02 15:04:05"
	backupTimeLayout = "20060102_150405"
)

// Input is one named request parameter.
type Input struct {
	Key   string
	Value string
}

// Record is a single invocation to be logged.
type Record struct {
	Timestamp    time.Time
	Kind         string
	Inputs       []Input
	Result       string
	Augmentation string
	Elapsed      time.Duration
	Err          error
}

// Log is the append-only history file.
type Log struct {
	cfg      config.AuditConfig
	maxBytes int64
	redactor *secrets.Redactor
	logger   *zap.Logger
	now      func() time.Time

	mu sync.Mutex
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger used to report I/O failures.
func WithLogger(l *zap.Logger) Option {
	return func(lg *Log) {
		if l != nil {
			lg.logger = l
		}
	}
}

// WithRedactor sets the secret redactor applied when redaction is enabled.
func WithRedactor(r *secrets.Redactor) Option {
	return func(lg *Log) { lg.redactor = r }
}

// WithMaxBytes overrides the rotation threshold derived from max_size_mb.
func WithMaxBytes(n int64) Option {
	return func(lg *Log) { lg.maxBytes = n }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(lg *Log) { lg.now = now }
}

// New creates a Log. The file is created lazily on first append.
func New(cfg config.AuditConfig, opts ...Option) *Log {
	l := &Log{
		cfg:      cfg,
		maxBytes: int64(cfg.MaxSizeMB) * 1024 * 1024,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.redactor == nil {
		l.redactor = secrets.Disabled()
	}
	return l
}

// Path returns the log file path.
func (l *Log) Path() string { return l.cfg.Path }

// Enabled reports whether records are written.
func (l *Log) Enabled() bool { return l.cfg.Enabled }

// Append writes rec. Errors are logged, never returned.
func (l *Log) Append(rec Record) {
	if !l.cfg.Enabled {
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}
	block := l.fit(l.redactRecord(rec))

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(); err != nil {
		l.logger.Warn("audit log rotation failed", zap.String("path", l.cfg.Path), zap.Error(err))
	}
	if err := l.write(block); err != nil {
		l.logger.Warn("audit log append failed", zap.String("path", l.cfg.Path), zap.Error(err))
	}
}

func (l *Log) write(block string) error {
	if err := os.MkdirAll(filepath.Dir(l.cfg.Path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if info.Size() == 0 {
		block = header + block
	}
	if _, err := f.WriteString(block); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// rotateIfNeeded must be called with mu held.
func (l *Log) rotateIfNeeded() error {
	if !l.cfg.RotationEnabled || l.maxBytes <= 0 {
		return nil
	}
	info, err := os.Stat(l.cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() <= l.maxBytes {
		return nil
	}

	backup := l.backupPath(l.now())
	if err := os.Rename(l.cfg.Path, backup); err != nil {
		return fmt.Errorf("renaming to %s: %w", backup, err)
	}
	l.logger.Info("audit log rotated", zap.String("backup", backup), zap.Int64("size", info.Size()))
	return nil
}

func (l *Log) backupPath(t time.Time) string {
	ext := filepath.Ext(l.cfg.Path)
	stem := strings.TrimSuffix(l.cfg.Path, ext)
	if ext == "" {
		ext = ".md"
	}
	base := stem + "." + t.Format(backupTimeLayout)
	candidate := base + ext
	for i := 1; ; i++ {
		if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
}

// redactRecord returns rec with secrets removed from every free-text field.
func (l *Log) redactRecord(rec Record) Record {
	inputs := make([]Input, len(rec.Inputs))
	for i, in := range rec.Inputs {
		inputs[i] = Input{Key: in.Key, Value: l.redact(in.Value)}
	}
	rec.Inputs = inputs
	rec.Result = l.redact(rec.Result)
	rec.Augmentation = l.redact(rec.Augmentation)
	if rec.Err != nil {
		rec.Err = errors.New(l.redact(rec.Err.Error()))
	}
	return rec
}

const clippedMarker = "\n[truncated to fit the history size limit]"

// fit formats rec so that a fresh file holding only the header and this
// block stays under the rotation threshold. Augmentation is clipped first,
// then the result. Inputs are bounded by max_input_chars and never clipped.
func (l *Log) fit(rec Record) string {
	block := l.format(rec)
	if !l.cfg.RotationEnabled || l.maxBytes <= 0 {
		return block
	}
	limit := int(l.maxBytes) - len(header) - 1
	for _, field := range []*string{&rec.Augmentation, &rec.Result} {
		for over := len(block) - limit; over > 0 && *field != ""; over = len(block) - limit {
			*field = clip(*field, len(*field)-over-len(clippedMarker))
			block = l.format(rec)
		}
	}
	return block
}

// clip keeps at most n bytes of s, cut on a rune boundary, followed by the
// clipped marker. n <= 0 yields "".
func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if n >= len(s) {
		n = len(s)
	}
	for n > 0 && n < len(s) && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimSuffix(s[:n], clippedMarker) + clippedMarker
}

func (l *Log) redact(s string) string {
	if !l.cfg.RedactSecrets || s == "" {
		return s
	}
	return l.redactor.Redact(s).Text
}

func (l *Log) truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	limit := l.cfg.MaxInputChars
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

func fence(body string) string {
	f := "```"
	for strings.Contains(body, f) {
		f += "`"
	}
	return f
}

func (l *Log) format(rec Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s - %s\n\n", rec.Timestamp.Format(entryTimeLayout), rec.Kind)

	if len(rec.Inputs) > 0 {
		b.WriteString("**Inputs**:\n")
		for _, in := range rec.Inputs {
			fmt.Fprintf(&b, "- %s: %s\n", in.Key, l.truncate(in.Value))
		}
		b.WriteString("\n")
	}

	result := strings.TrimRight(rec.Result, "\n")
	f := fence(result)
	fmt.Fprintf(&b, "**Result**:\n%s\n%s\n%s\n\n", f, result, f)

	if rec.Augmentation != "" {
		aug := strings.TrimRight(rec.Augmentation, "\n")
		f := fence(aug)
		fmt.Fprintf(&b, "**Augmentation**:\n%s\n%s\n%s\n\n", f, aug, f)
	}

	fmt.Fprintf(&b, "**Elapsed**: %.1fms\n\n", float64(rec.Elapsed.Microseconds())/1000)

	if rec.Err != nil {
		fmt.Fprintf(&b, "**Error**: %s\n\n", strings.Join(strings.Fields(rec.Err.Error()), " "))
	}

	b.WriteString("---\n\n")
	return b.String()
}
