package balancer

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-router/internal/config"
	"github.com/tributary-ai/llm-router/internal/metrics"
	"github.com/tributary-ai/llm-router/internal/resolver"
	"github.com/tributary-ai/llm-router/internal/statestore"
)

func weight(v float64) *float64 { return &v }

func twoCandidates() []resolver.Candidate {
	return []resolver.Candidate{
		{ProviderID: "openrouter", Provider: &config.ProviderSpec{ID: "openrouter"}, ModelID: "gpt-4o-mini", RequestModelID: "openrouter/gpt-4o-mini", TargetFormat: config.FormatOpenAI},
		{ProviderID: "anthropic", Provider: &config.ProviderSpec{ID: "anthropic"}, ModelID: "claude-3-5-haiku", RequestModelID: "anthropic/claude-3-5-haiku", TargetFormat: config.FormatClaude},
	}
}

func TestRoundRobinFiveRequestSequence(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore(0)
	routeKey := RouteKey("alias", "chat.default", "openai")

	var picks []string
	for i := 0; i < 5; i++ {
		result, err := Rank(ctx, store, &config.RuntimeConfig{}, twoCandidates(), config.StrategyRoundRobin, routeKey, 1000, nil)
		require.NoError(t, err)
		require.NotNil(t, result.SelectedEntry)
		picks = append(picks, result.SelectedEntry.Candidate.RequestModelID)
		require.NoError(t, Commit(ctx, store, routeKey, result))
	}

	assert.Equal(t, []string{
		"openrouter/gpt-4o-mini",
		"anthropic/claude-3-5-haiku",
		"openrouter/gpt-4o-mini",
		"anthropic/claude-3-5-haiku",
		"openrouter/gpt-4o-mini",
	}, picks)
}

func TestWeightedRRDistributionBounds(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore(0)
	routeKey := RouteKey("alias", "chat.weighted", "openai")

	candidates := twoCandidates()
	candidates[0].RouteWeight = weight(1)
	candidates[1].RouteWeight = weight(3)

	counts := map[string]int{}
	for i := 0; i < 120; i++ {
		result, err := Rank(ctx, store, &config.RuntimeConfig{}, candidates, config.StrategyWeightedRR, routeKey, 1000, nil)
		require.NoError(t, err)
		require.NotNil(t, result.SelectedEntry)
		counts[result.SelectedEntry.Candidate.RequestModelID]++
		require.NoError(t, Commit(ctx, store, routeKey, result))
	}

	small := counts["openrouter/gpt-4o-mini"]
	large := counts["anthropic/claude-3-5-haiku"]
	assert.GreaterOrEqual(t, small, 20)
	assert.LessOrEqual(t, small, 40)
	assert.GreaterOrEqual(t, large, 80)
	assert.LessOrEqual(t, large, 100)
	assert.Equal(t, 120, small+large)
}

// gatherCounter reads a counter's value straight out of the registry, since
// the Metrics struct's collectors are unexported and balancer only ever
// sees the *metrics.Metrics facade.
func gatherCounter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			got := make(map[string]string, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range labels {
				if got[k] != v {
					match = false
					break
				}
			}
			if match {
				if metric.Counter != nil {
					return metric.Counter.GetValue()
				}
				if metric.Gauge != nil {
					return metric.Gauge.GetValue()
				}
			}
		}
	}
	return 0
}

func TestRankRecordsCandidateSelectionMetric(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore(0)
	reg := prometheus.NewRegistry()
	m := metrics.New("llm_router", reg)
	routeKey := RouteKey("direct", "openrouter/gpt-4o-mini", "openai")

	result, err := Rank(ctx, store, &config.RuntimeConfig{}, twoCandidates(), config.StrategyOrdered, routeKey, 1000, m)
	require.NoError(t, err)
	require.NotNil(t, result.SelectedEntry)

	got := gatherCounter(t, reg, "llm_router_candidate_selections_total", map[string]string{
		"route":    routeKey,
		"provider": "openrouter",
		"model":    "gpt-4o-mini",
		"strategy": "ordered",
	})
	assert.Equal(t, float64(1), got)
}

func TestRankRecordsRateLimitEvaluationAndBucketRatioMetrics(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore(0)
	reg := prometheus.NewRegistry()
	m := metrics.New("llm_router", reg)
	routeKey := RouteKey("direct", "openrouter/gpt-4o-mini", "openai")

	provider := &config.ProviderSpec{
		ID: "openrouter",
		RateLimits: []config.RateLimitBucket{
			{ID: "daily-cap", Models: []string{"all"}, Requests: 1, Window: config.RateLimitWindow{Unit: "day", Size: 1}},
		},
	}
	candidates := []resolver.Candidate{
		{ProviderID: "openrouter", Provider: provider, ModelID: "gpt-4o-mini", RequestModelID: "openrouter/gpt-4o-mini", TargetFormat: config.FormatOpenAI},
	}

	_, err := Rank(ctx, store, &config.RuntimeConfig{}, candidates, config.StrategyOrdered, routeKey, 1000, m)
	require.NoError(t, err)

	evalCount := gatherCounter(t, reg, "llm_router_rate_limit_evaluations_total", map[string]string{
		"provider": "openrouter",
		"bucket":   "daily-cap",
		"result":   "eligible",
	})
	assert.Equal(t, float64(1), evalCount)

	ratio := gatherCounter(t, reg, "llm_router_bucket_remaining_capacity_ratio", map[string]string{
		"provider": "openrouter",
		"bucket":   "daily-cap",
	})
	assert.Equal(t, float64(1), ratio)
}

func TestOrderedStrategyDoesNotAdvanceCursor(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore(0)
	routeKey := RouteKey("direct", "openrouter/gpt-4o-mini", "openai")

	result, err := Rank(ctx, store, &config.RuntimeConfig{}, twoCandidates(), config.StrategyOrdered, routeKey, 1000, nil)
	require.NoError(t, err)
	assert.False(t, result.ShouldAdvanceCursor)
	assert.Equal(t, "openrouter/gpt-4o-mini", result.SelectedEntry.Candidate.RequestModelID)
	require.NoError(t, Commit(ctx, store, routeKey, result))

	cursor, err := store.GetRouteCursor(ctx, routeKey)
	require.NoError(t, err)
	assert.Equal(t, 0, cursor)
}

func TestEntriesIsPermutationOfInput(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore(0)
	routeKey := RouteKey("alias", "chat.default", "openai")

	candidates := twoCandidates()
	result, err := Rank(ctx, store, &config.RuntimeConfig{}, candidates, config.StrategyOrdered, routeKey, 1000, nil)
	require.NoError(t, err)
	assert.Len(t, result.Entries, len(candidates))

	seen := map[string]bool{}
	for _, e := range result.Entries {
		seen[e.Candidate.RequestModelID] = true
	}
	for _, c := range candidates {
		assert.True(t, seen[c.RequestModelID])
	}
}

func TestCooldownBlocksCandidateAndRecordsSkipReason(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore(0)
	routeKey := RouteKey("alias", "chat.default", "openai")
	candidates := twoCandidates()

	key := CandidateKey(&candidates[0])
	require.NoError(t, store.SetCandidateState(ctx, key, &statestore.CandidateState{CooldownUntil: 5000, UpdatedAt: 1000}))

	result, err := Rank(ctx, store, &config.RuntimeConfig{}, candidates, config.StrategyOrdered, routeKey, 1000, nil)
	require.NoError(t, err)
	require.NotNil(t, result.SelectedEntry)
	assert.Equal(t, "anthropic/claude-3-5-haiku", result.SelectedEntry.Candidate.RequestModelID)
	require.Len(t, result.SkippedEntries, 1)
	assert.Contains(t, result.SkippedEntries[0].SkipReasons, "cooldown")
}

func TestNoEligibleCandidatesYieldsNilSelection(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemoryStore(0)
	routeKey := RouteKey("alias", "chat.default", "openai")
	candidates := twoCandidates()

	for _, c := range candidates {
		key := CandidateKey(&c)
		require.NoError(t, store.SetCandidateState(ctx, key, &statestore.CandidateState{OpenUntil: 99999, UpdatedAt: 1000}))
	}

	result, err := Rank(ctx, store, &config.RuntimeConfig{}, candidates, config.StrategyOrdered, routeKey, 1000, nil)
	require.NoError(t, err)
	assert.Nil(t, result.SelectedEntry)
	assert.Len(t, result.SkippedEntries, 2)
}
