package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const stateFileVersion = 1

type persistedState struct {
	Version         int                             `json:"version"`
	UpdatedAt       string                          `json:"updatedAt"`
	RouteCursors    map[string]int                  `json:"routeCursors"`
	CandidateStates map[string]*CandidateState       `json:"candidateStates"`
	BucketUsage     map[string]map[string]*BucketUsage `json:"bucketUsage"`
}

// FileStore is the single-file JSON backend. Mutations enqueue an atomic
// rewrite (tmp file + rename); readers always see the in-memory copy, which
// is the source of truth between flushes.
type FileStore struct {
	path           string
	candidateTTLMs int64
	logger         *logrus.Logger

	mu     sync.Mutex
	state  persistedState
	closed bool
}

// NewFileStore opens (or creates) the state file at path.
func NewFileStore(path string, candidateTTLMs int64, logger *logrus.Logger) (*FileStore, error) {
	if candidateTTLMs <= 0 {
		candidateTTLMs = defaultCandidateStateTTLMs
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	fs := &FileStore{
		path:           path,
		candidateTTLMs: candidateTTLMs,
		logger:         logger,
	}
	if err := fs.loadFromDisk(); err != nil {
		return nil, err
	}
	return fs, nil
}

func emptyPersistedState() persistedState {
	return persistedState{
		Version:         stateFileVersion,
		RouteCursors:    make(map[string]int),
		CandidateStates: make(map[string]*CandidateState),
		BucketUsage:     make(map[string]map[string]*BucketUsage),
	}
}

func (f *FileStore) loadFromDisk() error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.state = emptyPersistedState()
		return nil
	}
	if err != nil {
		return fmt.Errorf("statestore: reading %s: %w", f.path, err)
	}
	var st persistedState
	if err := json.Unmarshal(data, &st); err != nil {
		f.quarantine()
		f.state = emptyPersistedState()
		return nil
	}
	if st.RouteCursors == nil {
		st.RouteCursors = make(map[string]int)
	}
	if st.CandidateStates == nil {
		st.CandidateStates = make(map[string]*CandidateState)
	}
	if st.BucketUsage == nil {
		st.BucketUsage = make(map[string]map[string]*BucketUsage)
	}
	f.state = st
	return nil
}

func (f *FileStore) quarantine() {
	dest := fmt.Sprintf("%s.corrupt-%d", f.path, time.Now().UnixNano())
	if err := os.Rename(f.path, dest); err != nil {
		f.logger.WithError(err).WithField("path", f.path).Warn("statestore: failed to quarantine corrupt state file")
		return
	}
	f.logger.WithFields(logrus.Fields{"path": f.path, "quarantined": dest}).Warn("statestore: corrupt state file quarantined")
}

// enqueueWrite performs the atomic rewrite. f.mu is the single-writer queue:
// callers hold it for the whole mutate-then-persist sequence, so writes are
// strictly serialized and readers only ever see a fully-written snapshot.
func (f *FileStore) enqueueWrite() error {
	f.state.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	snapshot := f.state
	return f.writeSnapshot(snapshot)
}

func (f *FileStore) writeSnapshot(snapshot persistedState) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("statestore: marshal: %w", err)
	}
	dir := filepath.Dir(f.path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d-%d", filepath.Base(f.path), os.Getpid(), time.Now().UnixNano(), rand.Int63()))
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("statestore: write tmp: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("statestore: rename: %w", err)
	}
	return nil
}

func (f *FileStore) GetRouteCursor(_ context.Context, routeKey string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.RouteCursors[routeKey], nil
}

func (f *FileStore) SetRouteCursor(_ context.Context, routeKey string, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.RouteCursors[routeKey] = value
	return f.enqueueWrite()
}

func (f *FileStore) GetCandidateState(_ context.Context, candidateKey string) (*CandidateState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.CandidateStates[candidateKey].Clone(), nil
}

func (f *FileStore) SetCandidateState(_ context.Context, candidateKey string, state *CandidateState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if state == nil {
		delete(f.state.CandidateStates, candidateKey)
	} else {
		f.state.CandidateStates[candidateKey] = state.Clone()
	}
	return f.enqueueWrite()
}

func (f *FileStore) ReadBucketUsage(_ context.Context, bucketKey, windowKey string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	windows, ok := f.state.BucketUsage[bucketKey]
	if !ok {
		return 0, nil
	}
	u, ok := windows[windowKey]
	if !ok {
		return 0, nil
	}
	return u.Count, nil
}

func (f *FileStore) IncrementBucketUsage(_ context.Context, bucketKey, windowKey string, amount int, expiresAt int64, now int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	windows, ok := f.state.BucketUsage[bucketKey]
	if !ok {
		windows = make(map[string]*BucketUsage)
		f.state.BucketUsage[bucketKey] = windows
	}
	u, ok := windows[windowKey]
	if !ok {
		u = &BucketUsage{}
		windows[windowKey] = u
	}
	u.Count += amount
	u.ExpiresAt = expiresAt
	u.UpdatedAt = now
	if err := f.enqueueWrite(); err != nil {
		return u.Count, err
	}
	return u.Count, nil
}

func (f *FileStore) PruneExpired(_ context.Context, now int64) (PruneResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result PruneResult

	for candidateKey, state := range f.state.CandidateStates {
		if state == nil {
			continue
		}
		if candidateExpiresAt(state, f.candidateTTLMs) <= now {
			delete(f.state.CandidateStates, candidateKey)
			result.PrunedCandidateStates++
		}
	}
	for bucketKey, windows := range f.state.BucketUsage {
		for windowKey, u := range windows {
			if u.ExpiresAt > 0 && u.ExpiresAt <= now {
				delete(windows, windowKey)
				result.PrunedBuckets++
			}
		}
		if len(windows) == 0 {
			delete(f.state.BucketUsage, bucketKey)
		}
	}

	if result.PrunedBuckets > 0 || result.PrunedCandidateStates > 0 {
		if err := f.enqueueWrite(); err != nil {
			return result, err
		}
	}
	return result, nil
}

// ReloadFromDisk flushes nothing (writes are already synchronous) and
// re-reads the file, replacing the in-memory snapshot.
func (f *FileStore) ReloadFromDisk() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadFromDisk()
}

func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
