// Package statestore implements the router's mutable state: route cursors
// (for round-robin), per-candidate cooldown/health state, and bucket-usage
// counters. Two backends share one interface: in-memory and single-file
// JSON.
package statestore

import "context"

// CandidateState tracks the scheduling and health state of one candidate.
type CandidateState struct {
	CooldownUntil                int64  `json:"cooldownUntil,omitempty"`
	OpenUntil                    int64  `json:"openUntil,omitempty"`
	ExpiresAt                    int64  `json:"expiresAt,omitempty"`
	ConsecutiveRetryableFailures int    `json:"consecutiveRetryableFailures,omitempty"`
	LastFailureAt                int64  `json:"lastFailureAt,omitempty"`
	LastFailureStatus            int    `json:"lastFailureStatus,omitempty"`
	LastFailureCategory          string `json:"lastFailureCategory,omitempty"`
	HealthScore                  *float64 `json:"healthScore,omitempty"`
	UpdatedAt                    int64  `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy so callers never share mutable state with the
// store's internal maps.
func (s *CandidateState) Clone() *CandidateState {
	if s == nil {
		return nil
	}
	cp := *s
	if s.HealthScore != nil {
		h := *s.HealthScore
		cp.HealthScore = &h
	}
	return &cp
}

// BucketUsage is one window's recorded usage for one bucket.
type BucketUsage struct {
	Count     int   `json:"count"`
	ExpiresAt int64 `json:"expiresAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// PruneResult reports how many rows pruneExpired removed.
type PruneResult struct {
	PrunedBuckets         int
	PrunedCandidateStates int
}

// Store is the capability set every backend implements: route cursor,
// candidate state, bucket usage, pruneExpired, close.
type Store interface {
	GetRouteCursor(ctx context.Context, routeKey string) (int, error)
	SetRouteCursor(ctx context.Context, routeKey string, value int) error

	GetCandidateState(ctx context.Context, candidateKey string) (*CandidateState, error)
	SetCandidateState(ctx context.Context, candidateKey string, state *CandidateState) error

	ReadBucketUsage(ctx context.Context, bucketKey, windowKey string) (int, error)
	IncrementBucketUsage(ctx context.Context, bucketKey, windowKey string, amount int, expiresAt int64, now int64) (int, error)

	PruneExpired(ctx context.Context, now int64) (PruneResult, error)
	Close() error
}
