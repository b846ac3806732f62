package statestore

import (
	"context"
	"sync"
)

const defaultCandidateStateTTLMs = int64(24 * 60 * 60 * 1000) // 24h

// MemoryStore is the plain-map backend. It relies on the handler's
// single-writer-per-key discipline and adds its own mutex only to keep
// the Go race detector happy under concurrent reads.
type MemoryStore struct {
	mu              sync.Mutex
	candidateTTLMs  int64
	routeCursors    map[string]int
	candidateStates map[string]*CandidateState
	bucketUsage     map[string]map[string]*BucketUsage
}

// NewMemoryStore returns an empty in-memory state store. candidateTTLMs of
// zero falls back to a 24h default.
func NewMemoryStore(candidateTTLMs int64) *MemoryStore {
	if candidateTTLMs <= 0 {
		candidateTTLMs = defaultCandidateStateTTLMs
	}
	return &MemoryStore{
		candidateTTLMs:  candidateTTLMs,
		routeCursors:    make(map[string]int),
		candidateStates: make(map[string]*CandidateState),
		bucketUsage:     make(map[string]map[string]*BucketUsage),
	}
}

func (m *MemoryStore) GetRouteCursor(_ context.Context, routeKey string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.routeCursors[routeKey], nil
}

func (m *MemoryStore) SetRouteCursor(_ context.Context, routeKey string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routeCursors[routeKey] = value
	return nil
}

func (m *MemoryStore) GetCandidateState(_ context.Context, candidateKey string) (*CandidateState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.candidateStates[candidateKey].Clone(), nil
}

func (m *MemoryStore) SetCandidateState(_ context.Context, candidateKey string, state *CandidateState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == nil {
		delete(m.candidateStates, candidateKey)
		return nil
	}
	m.candidateStates[candidateKey] = state.Clone()
	return nil
}

func (m *MemoryStore) ReadBucketUsage(_ context.Context, bucketKey, windowKey string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	windows, ok := m.bucketUsage[bucketKey]
	if !ok {
		return 0, nil
	}
	u, ok := windows[windowKey]
	if !ok {
		return 0, nil
	}
	return u.Count, nil
}

func (m *MemoryStore) IncrementBucketUsage(_ context.Context, bucketKey, windowKey string, amount int, expiresAt int64, now int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	windows, ok := m.bucketUsage[bucketKey]
	if !ok {
		windows = make(map[string]*BucketUsage)
		m.bucketUsage[bucketKey] = windows
	}
	u, ok := windows[windowKey]
	if !ok {
		u = &BucketUsage{}
		windows[windowKey] = u
	}
	u.Count += amount
	u.ExpiresAt = expiresAt
	u.UpdatedAt = now
	return u.Count, nil
}

func (m *MemoryStore) PruneExpired(_ context.Context, now int64) (PruneResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result PruneResult

	for candidateKey, state := range m.candidateStates {
		if state == nil {
			continue
		}
		if candidateExpiresAt(state, m.candidateTTLMs) <= now {
			delete(m.candidateStates, candidateKey)
			result.PrunedCandidateStates++
		}
	}

	for bucketKey, windows := range m.bucketUsage {
		for windowKey, u := range windows {
			if u.ExpiresAt > 0 && u.ExpiresAt <= now {
				delete(windows, windowKey)
				result.PrunedBuckets++
			}
		}
		if len(windows) == 0 {
			delete(m.bucketUsage, bucketKey)
		}
	}

	return result, nil
}

func (m *MemoryStore) Close() error { return nil }

// candidateExpiresAt computes a candidate state's expiry:
// max(explicit expiresAt, max(cooldownUntil, openUntil)+TTL, updatedAt+TTL).
func candidateExpiresAt(s *CandidateState, ttlMs int64) int64 {
	blockedUntil := s.CooldownUntil
	if s.OpenUntil > blockedUntil {
		blockedUntil = s.OpenUntil
	}
	candidates := []int64{s.ExpiresAt}
	if blockedUntil > 0 {
		candidates = append(candidates, blockedUntil+ttlMs)
	}
	if s.UpdatedAt > 0 {
		candidates = append(candidates, s.UpdatedAt+ttlMs)
	}
	max := int64(0)
	for _, c := range candidates {
		if c > max {
			max = c
		}
	}
	return max
}
