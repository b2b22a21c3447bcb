package reasoning

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Handler executes one stage.
type Handler interface {
	Stage() StageID
	Execute(ctx context.Context, st *State) (string, error)
}

// HandlerFunc adapts a function to Handler for a given stage.
type HandlerFunc struct {
	ID StageID
	Fn func(ctx context.Context, st *State) (string, error)
}

// Stage returns the stage ID.
func (h HandlerFunc) Stage() StageID { return h.ID }

// Execute calls Fn.
func (h HandlerFunc) Execute(ctx context.Context, st *State) (string, error) {
	return h.Fn(ctx, st)
}

// Progress reports stage transitions.
type Progress struct {
	Stage      StageID
	Done       bool
	Failed     bool
	Percentage int
}

// ProgressCallback receives progress updates during a run.
type ProgressCallback func(Progress)

// Pipeline runs the registered stage handlers in order.
type Pipeline struct {
	handlers map[StageID]Handler
	progress ProgressCallback
	tracer   trace.Tracer
	logger   *zap.Logger
}

// New creates a pipeline with the default handlers.
func New(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		handlers: make(map[StageID]Handler),
		tracer:   otel.Tracer("github.com/fyrsmithlabs/corethink/internal/reasoning"),
		logger:   logger,
	}
	for _, h := range DefaultHandlers() {
		p.RegisterHandler(h)
	}
	return p
}

// RegisterHandler replaces the handler for its stage.
func (p *Pipeline) RegisterHandler(h Handler) {
	p.handlers[h.Stage()] = h
}

// OnProgress sets the progress callback.
func (p *Pipeline) OnProgress(cb ProgressCallback) {
	p.progress = cb
}

// SetTracer sets the tracer used for reasoning.stage spans.
func (p *Pipeline) SetTracer(t trace.Tracer) {
	if t != nil {
		p.tracer = t
	}
}

// Run executes all four stages. It does not stop on stage failure and does
// not observe ctx cancellation between stages.
func (p *Pipeline) Run(ctx context.Context, in Input) Result {
	if k, ok := ParseJudgmentKind(string(in.Kind)); ok {
		in.Kind = k
	} else {
		p.logger.Warn("unknown judgment kind, using evaluate_and_decide", zap.String("kind", string(in.Kind)))
		in.Kind = EvaluateAndDecide
	}

	st := &State{Input: in}
	var res Result

	stages := AllStages()
	for i, id := range stages {
		p.report(Progress{Stage: id, Percentage: i * 100 / len(stages)})

		out, err := p.runStage(ctx, id, st)
		if err != nil {
			p.logger.Warn("reasoning stage failed",
				zap.String("stage", id.String()), zap.Error(err))
			res.Errors = append(res.Errors, StageError{Stage: id, Err: err.Error()})
			out = withErrorBlock(out, id, err)
		}
		st.outputs = append(st.outputs, out)

		p.report(Progress{Stage: id, Done: true, Failed: err != nil, Percentage: (i + 1) * 100 / len(stages)})
	}

	res.Outputs = st.Outputs()
	if d, ok := st.Disposition(); ok {
		res.Disposition = d
	} else {
		res.Disposition = Caution
	}
	return res
}

func (p *Pipeline) runStage(ctx context.Context, id StageID, st *State) (out string, err error) {
	ctx, span := p.tracer.Start(ctx, "reasoning.stage",
		trace.WithAttributes(
			attribute.Int("stage.number", int(id)),
			attribute.String("stage.name", id.String()),
		))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("stage.output_chars", len(out)))
		span.End()
		p.logger.Debug("reasoning stage finished",
			zap.String("stage", id.String()),
			zap.Duration("elapsed", time.Since(start)))
	}()

	h, ok := p.handlers[id]
	if !ok {
		return "", fmt.Errorf("no handler registered for stage %s", id)
	}
	return h.Execute(ctx, st)
}

func (p *Pipeline) report(pr Progress) {
	if p.progress != nil {
		p.progress(pr)
	}
}

func withErrorBlock(out string, id StageID, err error) string {
	block := fmt.Sprintf("[STAGE ERROR] stage %d (%s): %v", int(id), id, err)
	if out == "" {
		return fmt.Sprintf("## Stage %d: %s\n\n%s", int(id), title(id), block)
	}
	return out + "\n\n" + block
}

func title(id StageID) string {
	switch id {
	case StageParse:
		return "Parse"
	case StageReason:
		return "Reason"
	case StagePlan:
		return "Plan"
	case StageEmit:
		return "Emit"
	}
	return "Unknown"
}
