package server

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/config"
	"github.com/bombarena/server/internal/data"
	"github.com/bombarena/server/internal/entropy"
	gonet "github.com/bombarena/server/internal/net"
	"github.com/bombarena/server/internal/net/packet"
	"github.com/bombarena/server/internal/persist"
)

type testData struct {
	table    *data.FlavourTable
	scenario *data.Scenario
	opts     Options
}

// loadTestData reads the shipped tables so the tests also cover them.
func loadTestData(t *testing.T) testData {
	t.Helper()
	table, err := data.LoadFlavourTable("../../data/flavours.yaml")
	require.NoError(t, err)
	rules, err := data.LoadRules("../../data/rules.yaml", table)
	require.NoError(t, err)
	scenario, err := data.LoadScenario("../../data/scenario.yaml")
	require.NoError(t, err)
	return testData{
		table:    table,
		scenario: scenario,
		opts: Options{
			Simulation: config.SimulationConfig{Seed: 5, TickRate: 16 * time.Millisecond},
			Table:      table,
			Scenario:   scenario,
			Rules:      rules,
			Log:        zap.NewNop(),
		},
	}
}

func newTestLoop(t *testing.T, opts Options) *Loop {
	t.Helper()
	l, err := NewLoop(context.Background(), opts)
	require.NoError(t, err)
	return l
}

func openStore(t *testing.T) *persist.SQLiteStore {
	t.Helper()
	s, err := persist.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "loop.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func tickN(l *Loop, n int) {
	for i := 0; i < n; i++ {
		l.Tick()
	}
}

func currentHash(l *Loop) uint32 {
	h, _ := l.sums.get(l.cosmos.Step())
	return h
}

type pipeClient struct {
	conn   net.Conn
	sess   *gonet.Session
	frames chan []byte
}

func attachPipe(t *testing.T, l *Loop, id uint64) *pipeClient {
	t.Helper()
	srv, cli := net.Pipe()
	sess := gonet.NewSession(srv, id, gonet.SessionOptions{InSize: 32, OutSize: 64}, zap.NewNop())
	c := &pipeClient{conn: cli, sess: sess, frames: make(chan []byte, 256)}
	go func() {
		for {
			f, err := gonet.ReadFrame(cli)
			if err != nil {
				return
			}
			c.frames <- f
		}
	}()
	t.Cleanup(func() {
		cli.Close()
		sess.Close()
	})
	sess.Start()
	l.Attach(sess)
	return c
}

func (c *pipeClient) send(t *testing.T, data []byte) {
	t.Helper()
	before := len(c.sess.InQueue)
	require.NoError(t, gonet.WriteFrame(c.conn, data))
	require.Eventually(t, func() bool { return len(c.sess.InQueue) > before }, 2*time.Second, time.Millisecond)
}

// next returns the next frame with the given opcode, skipping others.
func (c *pipeClient) next(t *testing.T, opcode byte) *packet.Reader {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-c.frames:
			if f[0] == opcode {
				return packet.NewPacketReader(f)
			}
		case <-deadline:
			t.Fatalf("no frame with opcode %d", opcode)
			return nil
		}
	}
}

func joinFrame(name string, f component.Faction) []byte {
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_JOIN)
	w.WriteS(name)
	w.WriteC(byte(f))
	return w.Bytes()
}

func TestJoinPlayAndLeave(t *testing.T) {
	td := loadTestData(t)
	l := newTestLoop(t, td.opts)
	c := attachPipe(t, l, 1)
	c.next(t, packet.S_OPCODE_HELLO)

	c.send(t, joinFrame("alice", component.FactionMetropolis))
	l.Tick()

	require.Equal(t, packet.StatePlaying, c.sess.State())
	require.Equal(t, firstHumanPlayer, c.sess.Player)
	p, ok := l.Mode().Find(firstHumanPlayer)
	require.True(t, ok)
	assert.Equal(t, "alice", p.Name)
	assert.Equal(t, component.FactionMetropolis, p.Faction)

	r := c.next(t, packet.S_OPCODE_JOINED)
	assert.Equal(t, uint32(firstHumanPlayer), r.ReadDU())
	assert.Equal(t, uint64(p.Controlled), r.ReadQ())

	r = c.next(t, packet.S_OPCODE_CHECKSUM)
	assert.Equal(t, uint32(1), r.ReadDU())
	assert.Equal(t, currentHash(l), r.ReadDU())

	// Input from a playing session lands in the next step's entropy.
	w := packet.NewWriterWithOpcode(packet.C_OPCODE_INTENT)
	w.WriteC(byte(entropy.ActionMoveRight))
	w.WriteBool(true)
	c.send(t, w.Bytes())
	w = packet.NewWriterWithOpcode(packet.C_OPCODE_MOTION)
	w.WriteD(3)
	w.WriteD(-4)
	c.send(t, w.Bytes())
	l.Tick()

	character := l.Mode().Lookup(firstHumanPlayer)
	assert.Equal(t, []entropy.Intent{{Subject: character, Action: entropy.ActionMoveRight, Pressed: true}}, l.entropy.Cosmic.Intents)
	assert.Equal(t, []entropy.Motion{{Subject: character, Delta: component.Vec{X: 3, Y: -4}}}, l.entropy.Cosmic.Motions)

	// Leaving is just a closed connection.
	c.conn.Close()
	require.Eventually(t, c.sess.IsClosed, 2*time.Second, time.Millisecond)
	l.Tick()

	assert.Equal(t, firstHumanPlayer, l.entropy.Mode.Removed)
	_, ok = l.Mode().Find(firstHumanPlayer)
	assert.False(t, ok)
	assert.Equal(t, 0, l.sessions.Len())
}

func TestJoinsEnterOnePerStep(t *testing.T) {
	td := loadTestData(t)
	l := newTestLoop(t, td.opts)
	a := attachPipe(t, l, 1)
	b := attachPipe(t, l, 2)
	a.send(t, joinFrame("alice", component.FactionMetropolis))
	b.send(t, joinFrame("bob", component.FactionResistance))

	l.Tick()
	assert.Equal(t, packet.StatePlaying, a.sess.State())
	assert.Equal(t, packet.StateJoinRequested, b.sess.State())

	l.Tick()
	assert.Equal(t, packet.StatePlaying, b.sess.State())
	assert.Equal(t, firstHumanPlayer+1, b.sess.Player)
}

func TestCommandsBeforeJoinAreRejected(t *testing.T) {
	td := loadTestData(t)
	l := newTestLoop(t, td.opts)
	c := attachPipe(t, l, 1)
	c.send(t, []byte{packet.C_OPCODE_REBUY})
	c.send(t, []byte{packet.C_OPCODE_TEAM_CHOICE, byte(component.FactionAtlantis)})
	l.Tick()

	assert.Empty(t, l.entropy.Mode.Players)
	assert.Equal(t, packet.StateConnected, c.sess.State())
}

func TestAssembleNormalizesAndQueues(t *testing.T) {
	td := loadTestData(t)
	l := newTestLoop(t, td.opts)

	l.in.commands = []entropy.PlayerCommand{
		{Player: firstHumanPlayer + 1, Command: entropy.ItemPurchase{Flavour: 3}},
		{Player: firstHumanPlayer, Command: entropy.SpellPurchase{Spell: 1}},
		{Player: firstHumanPlayer + 1, Command: entropy.SpecialPurchase{Kind: entropy.RebuyPrevious}},
	}
	l.in.leaves = []entropy.PlayerID{7, 8}
	l.in.restart = true
	l.assemble()

	e := l.entropy
	require.Len(t, e.Mode.Players, 3)
	assert.Equal(t, firstHumanPlayer, e.Mode.Players[0].Player)
	assert.Equal(t, entropy.ItemPurchase{Flavour: 3}, e.Mode.Players[1].Command)
	assert.Equal(t, entropy.SpecialPurchase{Kind: entropy.RebuyPrevious}, e.Mode.Players[2].Command)
	assert.Equal(t, entropy.PlayerID(7), e.Mode.Removed)
	assert.Equal(t, entropy.Restart{}, e.Mode.Special)
	assert.Equal(t, []entropy.PlayerID{8}, l.in.leaves)
	assert.False(t, l.in.restart)
	assert.Empty(t, l.in.commands)
}

func TestVerifyChecksums(t *testing.T) {
	td := loadTestData(t)
	l := newTestLoop(t, td.opts)
	c := attachPipe(t, l, 1)
	tickN(l, 3)

	h, ok := l.sums.get(2)
	require.True(t, ok)
	assert.Equal(t, checksumMatch, l.verify(c.sess, 2, h))
	assert.Equal(t, checksumMismatch, l.verify(c.sess, 2, h+1))
	assert.Equal(t, checksumUnknown, l.verify(c.sess, 99, h))

	tickN(l, checksumHistory)
	assert.Equal(t, checksumUnknown, l.verify(c.sess, 2, h), "overwritten by newer steps")
}

func TestAutosaveAndChecksumLog(t *testing.T) {
	td := loadTestData(t)
	store := openStore(t)
	opts := td.opts
	opts.Store = store
	opts.Simulation.SnapshotInterval = 10
	l := newTestLoop(t, opts)
	tickN(l, 25)

	ctx := context.Background()
	m, err := store.LatestMatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, l.Match().ID, m.ID)
	assert.Equal(t, "depot", m.Scenario)

	snap, err := store.LatestSnapshot(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(20), snap.Step)

	sums, err := store.Checksums(ctx, m.ID, 0, 100)
	require.NoError(t, err)
	require.Len(t, sums, 20)
	for _, s := range sums {
		h, ok := l.sums.get(s.Step)
		require.True(t, ok)
		assert.Equal(t, h, s.Hash, "step %d", s.Step)
	}
}

func TestResumeContinuesIdentically(t *testing.T) {
	td := loadTestData(t)
	store := openStore(t)
	opts := td.opts
	opts.Store = store
	opts.Rules.BotQuota = 2

	first := newTestLoop(t, opts)
	tickN(first, 30)
	first.Save()

	second := newTestLoop(t, opts)
	assert.Equal(t, first.Match().ID, second.Match().ID)
	require.Equal(t, uint32(30), second.Cosmos().Step())
	assert.Equal(t, first.Cosmos().CalculateSigniHash(), second.Cosmos().CalculateSigniHash())
	assert.Equal(t, first.Cosmos().FullHash(), second.Cosmos().FullHash())

	for i := 0; i < 40; i++ {
		first.Tick()
		second.Tick()
		require.Equal(t, currentHash(first), currentHash(second), "step %d", first.Cosmos().Step())
	}
}

func TestResumeFallsBackOnBadSnapshot(t *testing.T) {
	td := loadTestData(t)
	store := openStore(t)
	opts := td.opts
	opts.Store = store

	first := newTestLoop(t, opts)
	require.NoError(t, store.SaveSnapshot(context.Background(), persist.Snapshot{
		MatchID: first.Match().ID, Step: 99, Cosmos: []byte{1, 2, 3}, Mode: []byte{9},
	}))

	second := newTestLoop(t, opts)
	assert.Equal(t, uint32(0), second.Cosmos().Step())
	assert.NotEqual(t, first.Match().ID, second.Match().ID)
}

func TestOtherScenarioStartsNewMatch(t *testing.T) {
	td := loadTestData(t)
	store := openStore(t)
	opts := td.opts
	opts.Store = store
	first := newTestLoop(t, opts)

	opts.Simulation.Seed = 6
	second := newTestLoop(t, opts)
	assert.NotEqual(t, first.Match().ID, second.Match().ID)
}
