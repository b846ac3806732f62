package statestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	s, err := NewFileStore(path, 0, nil)
	require.NoError(t, err)

	require.NoError(t, s.SetRouteCursor(ctx, "route:alias:chat.default@openai", 4))
	require.NoError(t, s.SetCandidateState(ctx, "candidate:a", &CandidateState{ConsecutiveRetryableFailures: 1, UpdatedAt: 1000}))
	_, err = s.IncrementBucketUsage(ctx, "bucket:p:b", "day:1:2026-02-28", 1, 999999, 1000)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := NewFileStore(path, 0, nil)
	require.NoError(t, err)

	cursor, err := reopened.GetRouteCursor(ctx, "route:alias:chat.default@openai")
	require.NoError(t, err)
	assert.Equal(t, 4, cursor)

	cand, err := reopened.GetCandidateState(ctx, "candidate:a")
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.Equal(t, 1, cand.ConsecutiveRetryableFailures)

	usage, err := reopened.ReadBucketUsage(ctx, "bucket:p:b", "day:1:2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, 1, usage)
}

func TestFileStoreQuarantinesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := NewFileStore(path, 0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var sawCorrupt bool
	for _, e := range entries {
		if filepath.Ext(e.Name()) != "" && len(e.Name()) > len("state.json.corrupt-") && e.Name()[:len("state.json.corrupt-")] == "state.json.corrupt-" {
			sawCorrupt = true
		}
	}
	assert.True(t, sawCorrupt, "expected a quarantined corrupt-<ts> file, got %v", entries)
}

func TestFileStoreReloadFromDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	a, err := NewFileStore(path, 0, nil)
	require.NoError(t, err)
	require.NoError(t, a.SetRouteCursor(ctx, "r", 1))

	b, err := NewFileStore(path, 0, nil)
	require.NoError(t, err)
	require.NoError(t, a.SetRouteCursor(ctx, "r", 2))

	require.NoError(t, b.ReloadFromDisk())
	v, err := b.GetRouteCursor(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}
