package augment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/corethink/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultMaxRetries  = 2
	defaultBaseBackoff = 250 * time.Millisecond
	defaultMaxTokens   = 600
	defaultTemperature = 0.2
)

// LLMAugmenter asks a language model to extend local material text.
type LLMAugmenter struct {
	model      llms.Model
	name       string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewOpenAI creates an augmenter backed by an OpenAI-compatible endpoint.
func NewOpenAI(cfg config.AugmentConfig, logger *zap.Logger) (*LLMAugmenter, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("openai augmentation requires augment.api_key")
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey.Value()),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	return NewLLM(llm, "openai:"+cfg.Model, cfg.RateLimit, cfg.Burst, logger), nil
}

// NewLLM wraps any langchaingo model. A non-positive rate disables limiting.
func NewLLM(model llms.Model, name string, perSecond float64, burst int, logger *zap.Logger) *LLMAugmenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &LLMAugmenter{
		model:      model,
		name:       name,
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: defaultMaxRetries,
		backoff:    defaultBaseBackoff,
		logger:     logger,
	}
}

// Name returns the provider and model.
func (a *LLMAugmenter) Name() string { return a.name }

// Augment waits for the limiter, then calls the model with retries. The
// context deadline bounds the whole call including retries.
func (a *LLMAugmenter) Augment(ctx context.Context, req Request) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	prompt := buildPrompt(req)

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := a.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		out, err := llms.GenerateFromSinglePrompt(ctx, a.model, prompt,
			llms.WithTemperature(defaultTemperature),
			llms.WithMaxTokens(defaultMaxTokens),
		)
		if err == nil {
			out = strings.TrimSpace(out)
			if out == "" {
				return "", errors.New("empty completion")
			}
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		a.logger.Debug("augmentation attempt failed",
			zap.String("kind", req.Kind),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

var kindInstructions = map[string]string{
	"precedents":   "List comparable past changes or decisions and how they turned out.",
	"implications": "Describe the downstream effects of this change on users, operations and maintenance.",
	"patterns":     "Name established design or process patterns that apply and when they fit.",
}

func buildPrompt(req Request) string {
	instruction, ok := kindInstructions[req.Kind]
	if !ok {
		instruction = "Provide supporting information relevant to the topic."
	}

	var b strings.Builder
	b.WriteString("You are extending a review brief. Be concise and factual; use short bullet points.\n\n")
	fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	if req.Domain != "" {
		fmt.Fprintf(&b, "Domain: %s\n", req.Domain)
	}
	fmt.Fprintf(&b, "Task: %s\n", instruction)
	if req.LocalText != "" {
		b.WriteString("\nExisting notes:\n")
		b.WriteString(req.LocalText)
		b.WriteString("\n")
	}
	return b.String()
}
