// Package augment provides the slow external augmentation step used by
// the material collector for precedents, implications and patterns.
//
// Augmentation is always optional. Callers bound every call with a context
// deadline and fall back to local text on any error, including ErrDisabled.
package augment

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/corethink/internal/config"
	"go.uber.org/zap"
)

// ErrDisabled is returned when no augmentation provider is configured.
var ErrDisabled = errors.New("augmentation disabled")

// Request describes one augmentation call.
type Request struct {
	Kind      string // material kind, e.g. "precedents"
	Topic     string
	Domain    string
	LocalText string // the local-only result the augmentation should extend
}

// Augmenter produces additional material text for a request.
type Augmenter interface {
	Augment(ctx context.Context, req Request) (string, error)
	Name() string
}

// Func adapts a function to the Augmenter interface.
type Func func(ctx context.Context, req Request) (string, error)

// Augment calls f.
func (f Func) Augment(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Name returns "func".
func (f Func) Name() string { return "func" }

// Disabled always returns ErrDisabled.
type Disabled struct{}

// Augment returns ErrDisabled.
func (Disabled) Augment(context.Context, Request) (string, error) {
	return "", ErrDisabled
}

// Name returns "disabled".
func (Disabled) Name() string { return "disabled" }

// New creates the configured augmenter.
func New(cfg config.AugmentConfig, logger *zap.Logger) (Augmenter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "", "disabled":
		return Disabled{}, nil
	case "openai":
		return NewOpenAI(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown augment provider: %q", cfg.Provider)
	}
}
