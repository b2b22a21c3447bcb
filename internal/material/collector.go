package material

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/corethink/internal/augment"
	"github.com/fyrsmithlabs/corethink/internal/config"
	"github.com/fyrsmithlabs/corethink/internal/constraint"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Collector gathers materials for a topic, one goroutine per kind.
type Collector struct {
	store     *constraint.Store
	augmenter augment.Augmenter
	cfg       config.CollectorConfig
	gatherers map[Kind]Gatherer

	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracer sets the tracer used for material.gather spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Collector) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Collector) { c.metrics = m }
}

// WithRepository points the repository_context gatherer at root.
func WithRepository(root string, excludes []string) Option {
	return func(c *Collector) {
		c.gatherers[RepositoryContext] = repositoryGatherer{
			root:     root,
			maxFiles: c.cfg.RepositoryMaxFiles,
			excludes: excludes,
		}
	}
}

// WithGatherer replaces the local gatherer for k.
func WithGatherer(k Kind, g Gatherer) Option {
	return func(c *Collector) { c.gatherers[k] = g }
}

// NewCollector builds the kind → gatherer table. A nil augmenter disables
// augmentation.
func NewCollector(store *constraint.Store, aug augment.Augmenter, cfg config.CollectorConfig, opts ...Option) *Collector {
	if aug == nil {
		aug = augment.Disabled{}
	}
	c := &Collector{
		store:     store,
		augmenter: aug,
		cfg:       cfg,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("github.com/fyrsmithlabs/corethink/internal/material"),
		gatherers: map[Kind]Gatherer{
			Constraints:       constraintsGatherer{store: store},
			RiskFactors:       riskGatherer{},
			DomainKnowledge:   domainKnowledgeGatherer{store: store},
			RepositoryContext: repositoryGatherer{root: ".", maxFiles: cfg.RepositoryMaxFiles},
			Precedents:        augmentedBase{kind: Precedents},
			Implications:      augmentedBase{kind: Implications},
			Patterns:          augmentedBase{kind: Patterns},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect gathers every kind concurrently and returns one entry per kind in
// request order. It never fails: local errors become placeholders and
// augmentation errors or timeouts keep the local text.
func (c *Collector) Collect(ctx context.Context, topic string, kinds []Kind, depth Depth) Bundle {
	return c.CollectFor(ctx, topic, c.store.Classify(topic), kinds, depth)
}

// CollectFor is Collect with a pre-classified domain.
func (c *Collector) CollectFor(ctx context.Context, topic string, domain constraint.Domain, kinds []Kind, depth Depth) Bundle {
	start := time.Now()
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	if d, ok := ParseDepth(string(depth)); ok {
		depth = d
	} else {
		c.logger.Warn("unknown depth, using standard", zap.String("depth", string(depth)))
		depth = Standard
	}

	req := Request{Topic: topic, Domain: domain, Depth: depth}
	entries := make([]Entry, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	limit := c.cfg.MaxParallel
	if limit < 1 {
		limit = len(kinds)
	}
	g.SetLimit(limit)

	for i, k := range kinds {
		g.Go(func() error {
			entries[i] = c.gather(gctx, k, req)
			return nil
		})
	}
	_ = g.Wait() // gatherers never return errors

	b := Bundle{
		Topic:   topic,
		Domain:  string(domain),
		Depth:   depth,
		Entries: entries,
		Elapsed: time.Since(start),
	}
	c.logger.Debug("materials collected",
		zap.String("domain", string(domain)),
		zap.String("depth", string(depth)),
		zap.String("summary", b.Summary()))
	return b
}

func (c *Collector) gather(ctx context.Context, k Kind, req Request) (e Entry) {
	ctx, span := c.tracer.Start(ctx, "material.gather",
		trace.WithAttributes(
			attribute.String("material.kind", string(k)),
			attribute.String("material.depth", string(req.Depth)),
		))
	start := time.Now()
	defer func() {
		e.Elapsed = time.Since(start)
		span.SetAttributes(attribute.String("material.source", string(e.Source)))
		if e.Degradation != nil {
			span.SetStatus(codes.Error, string(e.Degradation.Reason))
		}
		span.End()
		c.metrics.observe(e)
	}()

	g, ok := c.gatherers[k]
	if !ok {
		return Entry{
			Kind:        k,
			Text:        fmt.Sprintf("Material kind %q is not supported. Supported kinds: %s.", k, supportedList()),
			Source:      SourceUnsupported,
			Degradation: &Degradation{Kind: k, Reason: ReasonUnsupported},
		}
	}

	local, err := c.gatherLocal(ctx, g, req)
	if err != nil {
		c.logger.Warn("local gatherer failed, using placeholder",
			zap.String("kind", string(k)), zap.Error(err))
		return Entry{
			Kind:        k,
			Text:        placeholder(k, err),
			Source:      SourceFallback,
			Degradation: &Degradation{Kind: k, Reason: ReasonLocalError, Err: err},
		}
	}

	if !k.Augmented() {
		return Entry{Kind: k, Text: local, Source: SourceLocal}
	}

	extra, err := c.augment(ctx, augment.Request{
		Kind:      string(k),
		Topic:     req.Topic,
		Domain:    string(req.Domain),
		LocalText: local,
	}, req.Depth.Timeout(c.cfg))
	if err != nil {
		reason := ReasonError
		switch {
		case errors.Is(err, augment.ErrDisabled):
			return Entry{
				Kind:        k,
				Text:        local,
				Source:      SourceLocal,
				Degradation: &Degradation{Kind: k, Reason: ReasonDisabled},
			}
		case errors.Is(err, context.DeadlineExceeded):
			reason = ReasonTimeout
		}
		c.logger.Warn("augmentation failed, using local material",
			zap.String("kind", string(k)),
			zap.String("reason", string(reason)),
			zap.Error(err))
		return Entry{
			Kind:        k,
			Text:        local,
			Source:      SourceFallback,
			Degradation: &Degradation{Kind: k, Reason: reason, Err: err},
		}
	}

	return Entry{
		Kind:   k,
		Text:   local + "\n\nAugmented (" + c.augmenter.Name() + "):\n" + extra,
		Source: SourceAugmented,
	}
}

// gatherLocal runs a local gatherer, turning a panic into an error.
func (c *Collector) gatherLocal(ctx context.Context, g Gatherer, req Request) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gatherer panic: %v", r)
		}
	}()
	text, err = g.Gather(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty result")
	}
	return text, err
}

// augment runs the augmenter under timeout. A call still running at the
// deadline is abandoned; its result is discarded when it arrives.
func (c *Collector) augment(ctx context.Context, req augment.Request, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := c.augmenter.Augment(ctx, req)
		ch <- result{text, err}
	}()

	select {
	case r := <-ch:
		if r.err == nil && strings.TrimSpace(r.text) == "" {
			r.err = errors.New("empty augmentation")
		}
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func supportedList() string {
	names := make([]string, len(AllKinds))
	for i, k := range AllKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
