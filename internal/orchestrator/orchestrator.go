package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/corethink/internal/audit"
	"github.com/fyrsmithlabs/corethink/internal/constraint"
	"github.com/fyrsmithlabs/corethink/internal/logging"
	"github.com/fyrsmithlabs/corethink/internal/material"
	"github.com/fyrsmithlabs/corethink/internal/reasoning"
	"github.com/fyrsmithlabs/corethink/internal/services"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// reasoningKinds are the materials gathered for every RunReasoning call.
var reasoningKinds = []material.Kind{
	material.Constraints,
	material.RiskFactors,
	material.DomainKnowledge,
	material.Precedents,
	material.Implications,
}

// Orchestrator implements the operations exposed to transports.
type Orchestrator struct {
	reg     services.Registry
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *Metrics
	now     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer for invocation spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator over reg.
func New(reg services.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		reg:    reg,
		logger: zap.NewNop(),
		tracer: noop.NewTracerProvider().Tracer("orchestrator"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// begin tags ctx with an invocation ID and returns a logger carrying it.
func (o *Orchestrator) begin(ctx context.Context, op string) (context.Context, *logging.Logger, string) {
	id := logging.InvocationIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = logging.WithInvocationID(ctx, id)
	}
	return ctx, logging.FromZap(o.logger.With(zap.String("operation", op))), id
}

// trace logs full material and stage text, with secrets removed.
func (o *Orchestrator) trace(ctx context.Context, log *logging.Logger, b material.Bundle, res reasoning.Result) {
	if !log.Enabled(logging.TraceLevel) {
		return
	}
	r := o.reg.Redactor()
	for _, e := range b.Entries {
		log.Trace(ctx, "material collected",
			zap.String("kind", string(e.Kind)),
			zap.String("source", string(e.Source)),
			zap.String("text", r.Redact(e.Text).Text))
	}
	for i, out := range res.Outputs {
		id := reasoning.StageID(i + 1)
		log.Trace(ctx, "stage output",
			zap.String("stage.name", id.String()),
			zap.String("text", r.Redact(out).Text))
	}
}

func (o *Orchestrator) record(op string, start time.Time, inputs []audit.Input, result, aug string, err error) {
	elapsed := o.now().Sub(start)
	o.metrics.operation(op, elapsed.Seconds(), err != nil)
	if a := o.reg.Audit(); a != nil {
		a.Append(audit.Record{
			Timestamp:    start,
			Kind:         op,
			Inputs:       inputs,
			Result:       result,
			Augmentation: aug,
			Elapsed:      elapsed,
			Err:          err,
		})
	}
}

// Classify returns the domain for text.
func (o *Orchestrator) Classify(ctx context.Context, text string, hints ...string) constraint.Domain {
	start := o.now()
	d := o.reg.Constraints().Classify(text, hints...)
	o.record("classify", start, []audit.Input{{Key: "text", Value: text}}, string(d), "", nil)
	return d
}

// ClassifyAndCompose classifies request and returns the applicable
// constraints. The result is never empty.
func (o *Orchestrator) ClassifyAndCompose(ctx context.Context, request string, hints ...string) constraint.Composition {
	ctx, log, _ := o.begin(ctx, "classify_and_compose")
	start := o.now()

	comp := o.reg.Constraints().ClassifyAndCompose(request, hints...)
	log.Debug(ctx, "constraints composed",
		zap.String("domain", string(comp.Domain)),
		zap.Bool("degraded", comp.IsDegraded()))

	inputs := []audit.Input{{Key: "request", Value: request}}
	if len(hints) > 0 {
		inputs = append(inputs, audit.Input{Key: "domain_hints", Value: strings.Join(hints, ", ")})
	}
	o.record("classify_and_compose", start, inputs,
		fmt.Sprintf("domain: %s (%d chars)", comp.Domain, len(comp.Text)), "", nil)
	return comp
}

// CollectMaterials gathers the comma-separated kinds for topic.
func (o *Orchestrator) CollectMaterials(ctx context.Context, topic, kindsCSV, depth string) material.Bundle {
	ctx, _, _ = o.begin(ctx, "collect_materials")
	start := o.now()

	b := o.reg.Collector().Collect(ctx, topic, material.ParseKinds(kindsCSV), o.depth(ctx, depth))

	o.record("collect_materials", start, []audit.Input{
		{Key: "topic", Value: topic},
		{Key: "kinds", Value: kindsCSV},
		{Key: "depth", Value: string(b.Depth)},
	}, b.Summary(), augmentationNote(b), nil)
	return b
}

func (o *Orchestrator) depth(ctx context.Context, s string) material.Depth {
	d, ok := material.ParseDepth(s)
	if !ok {
		logging.FromZap(o.logger).Warn(ctx, "unknown depth, using standard", zap.String("depth", s))
	}
	return d
}

func augmentationNote(b material.Bundle) string {
	var lines []string
	for _, k := range b.AugmentedKinds() {
		lines = append(lines, fmt.Sprintf("%s: augmented", k))
	}
	for _, d := range b.Degraded() {
		lines = append(lines, fmt.Sprintf("%s: local fallback (%s)", d.Kind, d.Reason))
	}
	return strings.Join(lines, "\n")
}

// RunReasoning classifies, composes, collects, reasons and scores.
func (o *Orchestrator) RunReasoning(ctx context.Context, request, kind, depth string) Verdict {
	ctx, log, id := o.begin(ctx, "run_reasoning")
	start := o.now()

	ctx, span := o.tracer.Start(ctx, "orchestrator.run_reasoning",
		trace.WithAttributes(attribute.String("invocation.id", id)))
	defer span.End()

	jk, ok := reasoning.ParseJudgmentKind(kind)
	if !ok {
		log.Warn(ctx, "unknown judgment kind, using evaluate_and_decide", zap.String("kind", kind))
	}
	d := o.depth(ctx, depth)

	store := o.reg.Constraints()
	domain := store.Classify(request)
	comp := store.Compose(domain)
	bundle := o.reg.Collector().CollectFor(ctx, request, domain, reasoningKinds, d)

	res := o.reg.Pipeline().Run(ctx, reasoning.Input{
		Request:     request,
		Kind:        jk,
		Domain:      domain,
		Constraints: comp,
		Materials:   bundle,
	})

	o.trace(ctx, log, bundle, res)

	breakdown := o.reg.Scorer().Explain(res.Text(), bundle.Text())

	v := Verdict{
		InvocationID: id,
		Disposition:  res.Disposition,
		Confidence:   breakdown.Band,
		Breakdown:    breakdown,
		Domain:       domain,
		Kind:         jk,
		Depth:        d,
		StageOutputs: res.Outputs,
		StageErrors:  res.Errors,
		Materials:    summarize(bundle),
		Elapsed:      o.now().Sub(start),
	}
	v.Rationale = res.Final() + "\n\n" + qualityFooter(v)

	span.SetAttributes(
		attribute.String("domain", string(domain)),
		attribute.String("disposition", string(v.Disposition)),
		attribute.String("confidence", string(v.Confidence)),
	)
	if v.Degraded() {
		span.SetStatus(codes.Error, "degraded")
	}
	o.metrics.verdict(v)
	log.Info(ctx, "verdict produced",
		zap.String("domain", string(domain)),
		zap.String("disposition", string(v.Disposition)),
		zap.String("confidence", string(v.Confidence)),
		zap.Duration("elapsed", v.Elapsed))

	var stageErr error
	if len(res.Errors) > 0 {
		stageErr = fmt.Errorf("%d stage(s) failed", len(res.Errors))
	}
	o.record("run_reasoning", start, []audit.Input{
		{Key: "request", Value: request},
		{Key: "judgment_kind", Value: string(jk)},
		{Key: "depth", Value: string(d)},
		{Key: "domain", Value: string(domain)},
	}, v.Text(), augmentationNote(bundle), stageErr)
	return v
}

// GetConstraintsText returns the baseline constraints, or a placeholder
// when they cannot be read.
func (o *Orchestrator) GetConstraintsText() string {
	return o.reg.Constraints().Compose(constraint.General).Text
}

// GetAuditLogTail returns the most recent history entries.
func (o *Orchestrator) GetAuditLogTail(n int) string {
	if n <= 0 {
		n = 10
	}
	return o.reg.Audit().Tail(n)
}

// Status describes how each component is configured.
func (o *Orchestrator) Status() map[string]string {
	cfg := o.reg.Config()
	onOff := func(b bool) string {
		if b {
			return "enabled"
		}
		return "disabled"
	}
	status := map[string]string{
		"constraints": cfg.Constraints.Dir,
		"augment":     cfg.Augment.Provider,
		"audit":       onOff(o.reg.Audit().Enabled()),
		"redaction":   onOff(cfg.Audit.RedactSecrets),
		"sandbox":     fmt.Sprintf("%d active", o.reg.Sandbox().Count()),
	}
	if status["augment"] == "" {
		status["augment"] = "disabled"
	}
	return status
}
