package balancer

import (
	"context"
	"fmt"
	"math"

	"github.com/tributary-ai/llm-router/internal/config"
	"github.com/tributary-ai/llm-router/internal/metrics"
	"github.com/tributary-ai/llm-router/internal/ratelimit"
	"github.com/tributary-ai/llm-router/internal/resolver"
	"github.com/tributary-ai/llm-router/internal/statestore"
)

const slotCap = 512

// Rank builds entries for every candidate, ranks the eligible ones under
// strategy, and returns a Result. It is read-only: the route cursor and
// rate-limit buckets are not mutated. Call Commit afterward to persist the
// cursor advance. m may be nil in tests that do not care about metrics.
func Rank(ctx context.Context, store statestore.Store, cfg *config.RuntimeConfig, candidates []resolver.Candidate, strategy config.AliasStrategy, routeKey string, nowMs int64, m *metrics.Metrics) (*Result, error) {
	strategy = NormalizeStrategy(strategy)

	entries := make([]Entry, len(candidates))
	for i, c := range candidates {
		entry, err := buildEntry(ctx, store, c, nowMs, m)
		if err != nil {
			return nil, err
		}
		entries[i] = entry
	}

	cursor, err := store.GetRouteCursor(ctx, routeKey)
	if err != nil {
		return nil, fmt.Errorf("balancer: read route cursor: %w", err)
	}

	var eligibleIdx []int
	var ineligible []Entry
	for i, e := range entries {
		if e.Eligible {
			eligibleIdx = append(eligibleIdx, i)
		} else {
			ineligible = append(ineligible, e)
		}
	}

	ordered, nextCursor, shouldAdvance := rankEligible(entries, eligibleIdx, strategy, cursor)

	result := &Result{
		Strategy:            strategy,
		Entries:             append(ordered, ineligible...),
		SkippedEntries:      ineligible,
		RouteCursor:         cursor,
		NextCursor:          nextCursor,
		ShouldAdvanceCursor: shouldAdvance,
	}
	if len(ordered) > 0 {
		sel := ordered[0]
		result.SelectedEntry = &sel
		if m != nil {
			m.RecordSelection(routeKey, sel.Candidate.ProviderID, sel.Candidate.ModelID, string(strategy))
		}
	}
	return result, nil
}

// Commit persists the cursor advance for the chosen strategy. It must be
// called at most once per request.
func Commit(ctx context.Context, store statestore.Store, routeKey string, result *Result) error {
	if !result.ShouldAdvanceCursor {
		return nil
	}
	return store.SetRouteCursor(ctx, routeKey, result.NextCursor)
}

func buildEntry(ctx context.Context, store statestore.Store, c resolver.Candidate, nowMs int64, m *metrics.Metrics) (Entry, error) {
	key := CandidateKey(&c)
	state, err := store.GetCandidateState(ctx, key)
	if err != nil {
		return Entry{}, fmt.Errorf("balancer: read candidate state for %s: %w", key, err)
	}

	var consecutiveFailures int
	var blockedUntil int64
	healthScore := 1.0
	if state != nil {
		consecutiveFailures = state.ConsecutiveRetryableFailures
		if state.CooldownUntil > blockedUntil {
			blockedUntil = state.CooldownUntil
		}
		if state.OpenUntil > blockedUntil {
			blockedUntil = state.OpenUntil
		}
		if state.HealthScore != nil {
			healthScore = *state.HealthScore
		}
	}
	healthFactor := clamp(1.0/(1.0+0.5*float64(consecutiveFailures))*clamp(healthScore, 0.05, 1), 0.05, 1)
	blocked := blockedUntil > nowMs

	buckets, err := ratelimit.ApplicableBuckets(c.Provider, c.ModelID, nowMs)
	if err != nil {
		return Entry{}, err
	}
	rlEval, err := ratelimit.Evaluate(ctx, store, buckets, c.ProviderID, m)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		Candidate:        c,
		CandidateKey:     key,
		State:            state,
		RateLimit:        rlEval,
		RateLimitBuckets: buckets,
		HealthFactor:     healthFactor,
		Blocked:          blocked,
		RateLimitBlocked: !rlEval.Eligible,
	}
	entry.Eligible = !entry.Blocked && !entry.RateLimitBlocked
	if entry.Blocked {
		entry.SkipReasons = append(entry.SkipReasons, "cooldown")
	}
	if entry.RateLimitBlocked {
		entry.SkipReasons = append(entry.SkipReasons, "quota-exhausted")
	}
	return entry, nil
}

func rankEligible(entries []Entry, eligibleIdx []int, strategy config.AliasStrategy, cursor int) (ordered []Entry, nextCursor int, shouldAdvance bool) {
	if len(eligibleIdx) == 0 {
		return nil, cursor, false
	}

	switch strategy {
	case config.StrategyOrdered:
		ordered = make([]Entry, len(eligibleIdx))
		for i, idx := range eligibleIdx {
			ordered[i] = entries[idx]
		}
		return ordered, cursor, false

	case config.StrategyRoundRobin:
		n := len(eligibleIdx)
		shift := ((cursor % n) + n) % n
		ordered = make([]Entry, n)
		for i := 0; i < n; i++ {
			ordered[i] = entries[eligibleIdx[(shift+i)%n]]
		}
		return ordered, (cursor + 1) % n, true

	case config.StrategyWeightedRR, config.StrategyQuotaAwareWeightedRR:
		weights := make([]float64, len(eligibleIdx))
		for i, idx := range eligibleIdx {
			w := 1.0
			if entries[idx].Candidate.RouteWeight != nil {
				w = *entries[idx].Candidate.RouteWeight
			}
			if strategy == config.StrategyQuotaAwareWeightedRR {
				w *= clamp(entries[idx].RateLimit.RemainingCapacityRatio, 0, 1) * entries[idx].HealthFactor
				if w <= 0 {
					w = 0.0001 // never fully zero out an eligible candidate's slot share
				}
			}
			weights[i] = w
		}
		slots := buildWeightedSlots(weights)
		total := 0
		for _, s := range slots {
			total += s
		}
		shift := ((cursor % total) + total) % total
		flat := make([]int, 0, total)
		for i, s := range slots {
			for k := 0; k < s; k++ {
				flat = append(flat, i)
			}
		}
		rotated := append(append([]int{}, flat[shift:]...), flat[:shift]...)

		seen := make(map[int]bool, len(eligibleIdx))
		ordered = make([]Entry, 0, len(eligibleIdx))
		for _, idx := range rotated {
			if seen[idx] {
				continue
			}
			seen[idx] = true
			ordered = append(ordered, entries[eligibleIdx[idx]])
		}
		return ordered, (cursor + 1) % total, true

	default:
		ordered = make([]Entry, len(eligibleIdx))
		for i, idx := range eligibleIdx {
			ordered[i] = entries[idx]
		}
		return ordered, cursor, false
	}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// buildWeightedSlots scales weights to integer slots (weight*100), reduces
// by gcd, caps total slots at slotCap, and guarantees every candidate at
// least one slot.
func buildWeightedSlots(weights []float64) []int {
	raw := make([]int64, len(weights))
	for i, w := range weights {
		if w <= 0 {
			w = 0.0001
		}
		v := int64(math.Round(w * 100))
		if v < 1 {
			v = 1
		}
		raw[i] = v
	}

	g := raw[0]
	for _, v := range raw[1:] {
		g = gcd(g, v)
	}
	if g > 1 {
		for i := range raw {
			raw[i] /= g
		}
	}

	total := int64(0)
	for _, v := range raw {
		total += v
	}
	if total > slotCap {
		scale := float64(slotCap) / float64(total)
		total = 0
		for i, v := range raw {
			nv := int64(math.Round(float64(v) * scale))
			if nv < 1 {
				nv = 1
			}
			raw[i] = nv
			total += nv
		}
		for total > slotCap {
			maxIdx := -1
			for i, v := range raw {
				if v > 1 && (maxIdx == -1 || v > raw[maxIdx]) {
					maxIdx = i
				}
			}
			if maxIdx == -1 {
				break
			}
			raw[maxIdx]--
			total--
		}
	}

	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = int(v)
	}
	return out
}
