package balancer

import (
	"github.com/tributary-ai/llm-router/internal/config"
	"github.com/tributary-ai/llm-router/internal/ratelimit"
	"github.com/tributary-ai/llm-router/internal/resolver"
	"github.com/tributary-ai/llm-router/internal/statestore"
)

// Entry is one candidate annotated with its scheduling state.
type Entry struct {
	Candidate        resolver.Candidate
	CandidateKey     string
	State            *statestore.CandidateState
	RateLimit        ratelimit.Evaluation
	RateLimitBuckets []ratelimit.ApplicableBucket
	HealthFactor     float64
	Blocked          bool
	RateLimitBlocked bool
	Eligible         bool
	SkipReasons      []string
}

// Result is the balancer's ranking output for one request.
type Result struct {
	Strategy            config.AliasStrategy
	Entries             []Entry // orderedEligible ++ ineligible, in that order
	SelectedEntry       *Entry
	SkippedEntries      []Entry
	RouteCursor         int
	NextCursor          int
	ShouldAdvanceCursor bool
}

// NormalizeStrategy maps strategy aliases and the empty string to their
// canonical config.AliasStrategy value.
func NormalizeStrategy(s config.AliasStrategy) config.AliasStrategy {
	switch s {
	case "auto", "automatic", "smart", config.StrategyAuto:
		return config.StrategyQuotaAwareWeightedRR
	case "rr":
		return config.StrategyRoundRobin
	case "weighted_rr":
		return config.StrategyWeightedRR
	case config.StrategyOrdered, config.StrategyRoundRobin, config.StrategyWeightedRR, config.StrategyQuotaAwareWeightedRR:
		return s
	default:
		return config.StrategyOrdered
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
