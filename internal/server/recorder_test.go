package server

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/entropy"
	"github.com/bombarena/server/internal/persist"
)

func TestReplayReproducesLoopChecksums(t *testing.T) {
	td := loadTestData(t)
	opts := td.opts
	opts.Rules.BotQuota = 3
	opts.Simulation.RecordDir = t.TempDir()
	l := newTestLoop(t, opts)

	var want []persist.Checksum
	for i := 0; i < 120; i++ {
		switch i {
		case 20:
			l.in.commands = append(l.in.commands, entropy.PlayerCommand{
				Player: entropy.FirstPlayer, Command: entropy.TeamChoice{Faction: component.FactionResistance},
			})
		case 60:
			l.in.restart = true
		}
		l.Tick()
		want = append(want, persist.Checksum{Step: l.Cosmos().Step(), Hash: currentHash(l)})
	}
	require.Equal(t, uint32(120), l.rec.Steps())
	l.Shutdown()

	files, err := filepath.Glob(filepath.Join(opts.Simulation.RecordDir, "*.rec"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()

	got, err := Replay(f, ReplayOptions{
		Common: td.table.Common(td.scenario.Bounds()),
		Rules:  opts.Rules,
		Log:    zap.NewNop(),
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecorderInMemory(t *testing.T) {
	td := loadTestData(t)
	l := newTestLoop(t, td.opts)

	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, &l.initial, l.cosmos, l.mode)
	require.NoError(t, err)
	e := entropy.Total{Mode: entropy.Mode{Special: entropy.Restart{}}}
	require.NoError(t, rec.Record(&e))
	require.NoError(t, rec.Record(&entropy.Total{}))
	require.NoError(t, rec.Close())

	sums, err := Replay(bytes.NewReader(buf.Bytes()), ReplayOptions{
		Common:       td.table.Common(td.scenario.Bounds()),
		Rules:        td.opts.Rules,
		FullChecksum: true,
	})
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, uint32(1), sums[0].Step)
	assert.Equal(t, uint32(2), sums[1].Step)
}

func TestReplayRejectsBadInput(t *testing.T) {
	td := loadTestData(t)
	ro := ReplayOptions{Common: td.table.Common(td.scenario.Bounds()), Rules: td.opts.Rules}

	_, err := Replay(bytes.NewReader(nil), ro)
	assert.Error(t, err)

	_, err = Replay(bytes.NewReader([]byte{200, 0, 0, 0, 1}), ro)
	assert.ErrorIs(t, err, ErrBadRecording)

	_, err = Replay(bytes.NewReader([]byte{1, 0, 0, 0, 9}), ro)
	assert.ErrorIs(t, err, ErrBadRecording, "unknown version")
}
