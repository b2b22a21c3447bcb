package material

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/corethink/internal/augment"
	"github.com/fyrsmithlabs/corethink/internal/config"
	"github.com/fyrsmithlabs/corethink/internal/constraint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testStore(t *testing.T) *constraint.Store {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"constraints.txt": "MUST keep changes minimal.",
		"engineering.txt": "MUST benchmark before and after.\n## Keywords\ndatabase, performance, query\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	cfg := config.Default().Constraints
	cfg.Dir = dir
	return constraint.NewStore(cfg, nil)
}

func testConfig() config.CollectorConfig {
	cfg := config.Default().Collector
	cfg.TimeoutMinimal = 50 * time.Millisecond
	cfg.TimeoutStandard = 80 * time.Millisecond
	cfg.TimeoutComprehensive = 150 * time.Millisecond
	return cfg
}

// slowAugmenter blocks until its context ends.
func slowAugmenter() augment.Augmenter {
	return augment.Func(func(ctx context.Context, _ augment.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
}

func TestParseKinds(t *testing.T) {
	assert.Equal(t, DefaultKinds, ParseKinds(""))
	assert.Equal(t, DefaultKinds, ParseKinds(" , "))
	assert.Equal(t,
		[]Kind{Patterns, Constraints, Kind("astrology")},
		ParseKinds(" Patterns, constraints ,patterns,astrology"))
}

func TestParseDepth(t *testing.T) {
	d, ok := ParseDepth("COMPREHENSIVE")
	assert.True(t, ok)
	assert.Equal(t, Comprehensive, d)

	d, ok = ParseDepth("")
	assert.True(t, ok)
	assert.Equal(t, Standard, d)

	d, ok = ParseDepth("exhaustive")
	assert.False(t, ok)
	assert.Equal(t, Standard, d)
}

func TestCollect_OrderAndLocalKinds(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewCollector(testStore(t), nil, testConfig(), WithRepository(t.TempDir(), nil))
	kinds := []Kind{RiskFactors, Constraints, Kind("astrology"), DomainKnowledge, RepositoryContext, Patterns}

	b := c.Collect(context.Background(), "improve database query performance", kinds, Standard)

	assert.Equal(t, kinds, b.Kinds())
	assert.Equal(t, "engineering", b.Domain)

	text, ok := b.Get(Constraints)
	require.True(t, ok)
	assert.Contains(t, text, "## Domain Constraints: engineering")

	text, _ = b.Get(RiskFactors)
	assert.Contains(t, text, "Sensitivity: moderate")

	text, _ = b.Get(DomainKnowledge)
	assert.Contains(t, text, "MUST benchmark")
	assert.Contains(t, text, "Indicative terms: database, performance, query")

	text, _ = b.Get(RepositoryContext)
	assert.Contains(t, text, "Version control: none detected")
	assert.Contains(t, text, "Files: 0")

	text, _ = b.Get(Kind("astrology"))
	assert.Contains(t, text, "not supported")
	assert.Equal(t, []Kind{Kind("astrology")}, b.DegradedKinds())

	// Disabled augmentation is not a degradation.
	assert.Equal(t, SourceLocal, b.Entries[5].Source)
	assert.NotEmpty(t, b.Text())
}

func TestCollect_AugmentationTimeoutFallsBack(t *testing.T) {
	defer goleak.VerifyNone(t)

	core, logs := observer.New(zapcore.WarnLevel)
	cfg := testConfig()
	c := NewCollector(testStore(t), slowAugmenter(), cfg, WithLogger(zap.New(core)))

	kinds := []Kind{Precedents, Implications, Patterns}
	start := time.Now()
	b := c.Collect(context.Background(), "improve database query performance", kinds, Standard)
	elapsed := time.Since(start)

	// Concurrent kinds: bounded by one timeout, not the sum of three.
	assert.Less(t, elapsed, 3*cfg.TimeoutStandard)
	assert.Equal(t, kinds, b.Kinds())
	assert.ElementsMatch(t, kinds, b.DegradedKinds())

	for _, e := range b.Entries {
		local, err := augmentedBase{kind: e.Kind}.Gather(context.Background(), Request{Topic: b.Topic})
		require.NoError(t, err)
		assert.Equal(t, local, e.Text, "timed-out kind %s keeps local text", e.Kind)
		assert.Equal(t, ReasonTimeout, e.Degradation.Reason)
	}
	assert.Equal(t, 3, logs.FilterMessage("augmentation failed, using local material").Len())
}

func TestCollect_DepthSelectsTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	c := NewCollector(testStore(t), slowAugmenter(), cfg)

	start := time.Now()
	c.Collect(context.Background(), "topic", []Kind{Patterns}, Minimal)
	minimal := time.Since(start)

	start = time.Now()
	c.Collect(context.Background(), "topic", []Kind{Patterns}, Comprehensive)
	comprehensive := time.Since(start)

	assert.GreaterOrEqual(t, comprehensive, cfg.TimeoutComprehensive)
	assert.Less(t, minimal, cfg.TimeoutComprehensive)
}

func TestCollect_AugmentationSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	aug := augment.Func(func(_ context.Context, req augment.Request) (string, error) {
		return "external notes for " + req.Kind + " in " + req.Domain, nil
	})
	c := NewCollector(testStore(t), aug, testConfig())

	b := c.Collect(context.Background(), "database tuning", []Kind{Precedents}, Standard)
	text, _ := b.Get(Precedents)
	assert.Contains(t, text, "Local notes only.")
	assert.Contains(t, text, "external notes for precedents in engineering")
	assert.Equal(t, []Kind{Precedents}, b.AugmentedKinds())
	assert.Empty(t, b.Degraded())
}

func TestCollect_AugmentationError(t *testing.T) {
	aug := augment.Func(func(context.Context, augment.Request) (string, error) {
		return "", errors.New("quota exceeded")
	})
	c := NewCollector(testStore(t), aug, testConfig())

	b := c.Collect(context.Background(), "topic", []Kind{Implications}, Minimal)
	require.Len(t, b.Degraded(), 1)
	assert.Equal(t, ReasonError, b.Degraded()[0].Reason)
	assert.Contains(t, b.Summary(), "degraded: implications")
}

func TestCollect_LocalFailureUsesPlaceholder(t *testing.T) {
	failing := GathererFunc(func(context.Context, Request) (string, error) {
		return "", errors.New("disk on fire")
	})
	panicking := GathererFunc(func(context.Context, Request) (string, error) {
		panic("boom")
	})
	c := NewCollector(testStore(t), nil, testConfig(),
		WithGatherer(RiskFactors, failing),
		WithGatherer(DomainKnowledge, panicking))

	b := c.Collect(context.Background(), "topic", []Kind{RiskFactors, DomainKnowledge}, Standard)

	for _, e := range b.Entries {
		assert.NotEmpty(t, e.Text)
		assert.Equal(t, SourceFallback, e.Source)
		require.NotNil(t, e.Degradation)
		assert.Equal(t, ReasonLocalError, e.Degradation.Reason)
	}
	assert.Contains(t, b.Entries[0].Text, "disk on fire")
	assert.Contains(t, b.Entries[1].Text, "gatherer panic")
}

func TestCollect_EmptyKindsUseDefaults(t *testing.T) {
	c := NewCollector(testStore(t), nil, testConfig())
	b := c.Collect(context.Background(), "topic", nil, Depth("bogus"))
	assert.Equal(t, DefaultKinds, b.Kinds())
	assert.Equal(t, Standard, b.Depth)
}

func TestBundleText(t *testing.T) {
	b := Bundle{Entries: []Entry{
		{Kind: Constraints, Text: "c"},
		{Kind: Patterns, Text: "p"},
	}}
	assert.Equal(t, "### constraints\n\nc\n\n### patterns\n\np", b.Text())
	assert.True(t, strings.HasPrefix(b.Summary(), "2 kinds"))
}
