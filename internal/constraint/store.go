package constraint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fyrsmithlabs/corethink/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrBaselineMissing means the baseline document could not be read.
	ErrBaselineMissing = errors.New("baseline constraint document missing")

	// ErrDomainMissing means no document exists for the requested domain.
	ErrDomainMissing = errors.New("domain constraint document missing")
)

// Degradation records a step that fell back instead of failing.
type Degradation struct {
	Source string
	Err    error
}

func (d Degradation) String() string {
	return fmt.Sprintf("%s: %v", d.Source, d.Err)
}

// Composition is the applicable constraint text for one domain. Text is
// never empty; Degraded lists what was substituted to keep it that way.
type Composition struct {
	Domain   Domain
	Text     string
	Degraded []Degradation
}

// IsDegraded reports whether any fallback was used.
func (c Composition) IsDegraded() bool {
	return len(c.Degraded) > 0
}

// Store gives read-only access to the baseline and per-domain documents.
// Files are read once on first use and cached for the life of the Store.
type Store struct {
	dir          string
	baselineFile string
	header       string
	logger       *zap.Logger

	once     sync.Once
	baseline string
	baseErr  error
	docs     map[Domain]Document
	index    *KeywordIndex
}

// NewStore creates a Store rooted at cfg.Dir. Nothing is read until first use.
func NewStore(cfg config.ConstraintsConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:          cfg.Dir,
		baselineFile: cfg.BaselineFile,
		header:       cfg.KeywordHeader,
		logger:       logger,
	}
}

func (s *Store) load() {
	s.once.Do(func() {
		s.docs = make(map[Domain]Document)

		raw, err := os.ReadFile(filepath.Join(s.dir, s.baselineFile))
		if err != nil {
			s.baseErr = fmt.Errorf("%w: %v", ErrBaselineMissing, err)
			s.logger.Warn("baseline constraints unavailable", zap.Error(err))
		} else {
			s.baseline = ParseDocument(General, string(raw), s.header).Body
		}

		for _, d := range Priority {
			path := filepath.Join(s.dir, string(d)+".txt")
			raw, err := os.ReadFile(path)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					s.logger.Warn("failed to read domain constraints",
						zap.String("domain", string(d)), zap.Error(err))
				}
				continue
			}
			s.docs[d] = ParseDocument(d, string(raw), s.header)
		}

		s.index = NewKeywordIndex(s.docs, s.logger)
		s.logger.Debug("constraint documents loaded",
			zap.String("dir", s.dir),
			zap.Int("domains", len(s.docs)),
			zap.Bool("fallback_keywords", s.index.UsingFallback()))
	})
}

// Index returns the cached keyword index.
func (s *Store) Index() *KeywordIndex {
	s.load()
	return s.index
}

// Classify maps text plus optional hints to one domain.
func (s *Store) Classify(text string, hints ...string) Domain {
	for _, h := range hints {
		if h != "" {
			text += " " + h
		}
	}
	return s.Index().Classify(text)
}

// Baseline returns the baseline body.
func (s *Store) Baseline() (string, error) {
	s.load()
	return s.baseline, s.baseErr
}

// Document returns the parsed document for d.
func (s *Store) Document(d Domain) (Document, bool) {
	s.load()
	doc, ok := s.docs[d]
	return doc, ok
}

// BaselinePlaceholder is returned in place of the baseline when it cannot be read.
func BaselinePlaceholder(err error) string {
	return fmt.Sprintf("[CONSTRAINTS UNAVAILABLE] The baseline constraint document could not be loaded (%v). "+
		"Proceed conservatively and treat every change as requiring review.", err)
}

// Compose concatenates the baseline with the domain document. General (or an
// unknown domain) yields the baseline alone. A missing domain document is
// logged and degrades to the baseline.
func (s *Store) Compose(d Domain) Composition {
	c := Composition{Domain: d}

	base, err := s.Baseline()
	if err != nil {
		c.Text = BaselinePlaceholder(err)
		c.Degraded = append(c.Degraded, Degradation{Source: "baseline", Err: err})
	} else {
		c.Text = base
	}

	if d == General {
		return c
	}
	if !d.Known() {
		s.logger.Warn("unknown domain, using baseline only", zap.String("domain", string(d)))
		c.Degraded = append(c.Degraded, Degradation{Source: string(d), Err: fmt.Errorf("%w: unknown domain", ErrDomainMissing)})
		return c
	}

	doc, ok := s.Document(d)
	if !ok {
		s.logger.Warn("domain constraints missing, using baseline only", zap.String("domain", string(d)))
		c.Degraded = append(c.Degraded, Degradation{Source: string(d), Err: ErrDomainMissing})
		return c
	}

	c.Text = c.Text + "\n\n## Domain Constraints: " + string(d) + "\n\n" + doc.Body
	return c
}

// ClassifyAndCompose classifies text and composes constraints for the result.
func (s *Store) ClassifyAndCompose(text string, hints ...string) Composition {
	return s.Compose(s.Classify(text, hints...))
}
