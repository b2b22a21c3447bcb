package augment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/corethink/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	calls   atomic.Int32
	failN   int32
	reply   string
	prompts chan string
	block   bool
}

func (m *fakeModel) GenerateContent(ctx context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	n := m.calls.Add(1)
	if m.prompts != nil {
		for _, msg := range msgs {
			for _, p := range msg.Parts {
				if tc, ok := p.(llms.TextContent); ok {
					m.prompts <- tc.Text
				}
			}
		}
	}
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if n <= m.failN {
		return nil, errors.New("upstream 503")
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

func TestNew(t *testing.T) {
	a, err := New(config.AugmentConfig{Provider: "disabled"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "disabled", a.Name())

	_, err = a.Augment(context.Background(), Request{Kind: "precedents"})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = New(config.AugmentConfig{Provider: "openai"}, nil)
	assert.Error(t, err, "openai requires an api key")

	_, err = New(config.AugmentConfig{Provider: "telepathy"}, nil)
	assert.Error(t, err)
}

func TestLLMAugmenter_Success(t *testing.T) {
	m := &fakeModel{reply: "  - precedent one\n", prompts: make(chan string, 1)}
	a := NewLLM(m, "fake", 0, 1, nil)

	out, err := a.Augment(context.Background(), Request{
		Kind:      "precedents",
		Topic:     "improve database query performance",
		Domain:    "engineering",
		LocalText: "local notes",
	})
	require.NoError(t, err)
	assert.Equal(t, "- precedent one", out)

	prompt := <-m.prompts
	assert.Contains(t, prompt, "Topic: improve database query performance")
	assert.Contains(t, prompt, "Domain: engineering")
	assert.Contains(t, prompt, "comparable past changes")
	assert.Contains(t, prompt, "local notes")
}

func TestLLMAugmenter_RetriesTransientErrors(t *testing.T) {
	m := &fakeModel{reply: "ok", failN: 2}
	a := NewLLM(m, "fake", 0, 1, nil)
	a.backoff = time.Millisecond

	out, err := a.Augment(context.Background(), Request{Kind: "patterns"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), m.calls.Load())
}

func TestLLMAugmenter_GivesUp(t *testing.T) {
	m := &fakeModel{failN: 100}
	a := NewLLM(m, "fake", 0, 1, nil)
	a.backoff = time.Millisecond

	_, err := a.Augment(context.Background(), Request{Kind: "patterns"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(defaultMaxRetries+1), m.calls.Load())
}

func TestLLMAugmenter_RespectsDeadline(t *testing.T) {
	a := NewLLM(&fakeModel{block: true}, "fake", 0, 1, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := a.Augment(ctx, Request{Kind: "implications"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLLMAugmenter_EmptyCompletion(t *testing.T) {
	a := NewLLM(&fakeModel{reply: "   "}, "fake", 0, 1, nil)
	_, err := a.Augment(context.Background(), Request{Kind: "patterns"})
	assert.Error(t, err)
}

func TestFunc(t *testing.T) {
	f := Func(func(_ context.Context, req Request) (string, error) {
		return "augmented " + req.Kind, nil
	})
	out, err := f.Augment(context.Background(), Request{Kind: "patterns"})
	require.NoError(t, err)
	assert.Equal(t, "augmented patterns", out)
}
