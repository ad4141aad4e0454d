package persist

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bombarena/server/internal/config"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "arena.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteMatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.LatestMatch(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first := NewMatch("dust", 1)
	first.StartedAt = time.Unix(100, 0).UTC()
	second := NewMatch("dust", 1<<63+5)
	second.StartedAt = time.Unix(200, 0).UTC()
	require.NoError(t, s.CreateMatch(ctx, first))
	require.NoError(t, s.CreateMatch(ctx, second))
	assert.Error(t, s.CreateMatch(ctx, second), "ids are unique")

	got, err := s.LatestMatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestSQLiteSnapshots(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	m := NewMatch("dust", 7)
	require.NoError(t, s.CreateMatch(ctx, m))

	_, err := s.LatestSnapshot(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{MatchID: m.ID, Step: 600, Hash: 0xdeadbeef, Cosmos: []byte{1, 2}, Mode: []byte{3}}))
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{MatchID: m.ID, Step: 1200, Hash: 1, Cosmos: []byte{4}, Mode: []byte{5}}))
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{MatchID: m.ID, Step: 1200, Hash: 2, Cosmos: []byte{6}, Mode: []byte{7}}))

	snap, err := s.LatestSnapshot(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1200), snap.Step)
	assert.Equal(t, uint32(2), snap.Hash, "same step overwrites")
	assert.Equal(t, []byte{6}, snap.Cosmos)
	assert.Equal(t, []byte{7}, snap.Mode)
	assert.Equal(t, m.ID, snap.MatchID)

	_, err = s.LatestSnapshot(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.SaveSnapshot(ctx, Snapshot{MatchID: uuid.New(), Step: 1, Cosmos: []byte{}, Mode: []byte{}})
	assert.Error(t, err, "snapshots need a match")
}

func TestSQLiteChecksums(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	m := NewMatch("dust", 7)
	require.NoError(t, s.CreateMatch(ctx, m))

	require.NoError(t, s.AppendChecksums(ctx, m.ID, nil))
	require.NoError(t, s.AppendChecksums(ctx, m.ID, []Checksum{{1, 10}, {2, 20}, {3, 0xffffffff}}))
	require.NoError(t, s.AppendChecksums(ctx, m.ID, []Checksum{{3, 30}, {4, 40}}))

	sums, err := s.Checksums(ctx, m.ID, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []Checksum{{2, 20}, {3, 30}}, sums)

	all, err := s.Checksums(ctx, m.ID, 0, 100)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestOpenDispatchesOnDriver(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "a.db")}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = Open(ctx, config.DatabaseConfig{Driver: "oracle"}, zap.NewNop())
	assert.Error(t, err)
}
