// Package server drives the simulation: it turns client packets into
// entropy, steps the cosmos once per tick and reports checksums.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bombarena/server/internal/config"
	"github.com/bombarena/server/internal/core/event"
	coresys "github.com/bombarena/server/internal/core/system"
	"github.com/bombarena/server/internal/cosmos"
	"github.com/bombarena/server/internal/data"
	"github.com/bombarena/server/internal/entropy"
	"github.com/bombarena/server/internal/mode"
	gonet "github.com/bombarena/server/internal/net"
	"github.com/bombarena/server/internal/net/packet"
	"github.com/bombarena/server/internal/persist"
	"github.com/bombarena/server/internal/system"
)

// firstHumanPlayer keeps connected players clear of the ids the mode hands
// to bots.
const firstHumanPlayer entropy.PlayerID = 1 << 16

// checksumBatch is how many checksums are buffered before they are written.
const checksumBatch = 300

const storeTimeout = 10 * time.Second

type Options struct {
	Simulation         config.SimulationConfig
	MaxCommandsPerTick int
	Table              *data.FlavourTable
	Scenario           *data.Scenario
	Rules              mode.Rules
	Scripts            mode.Scripts // optional
	Store              persist.Store
	Log                *zap.Logger
}

// Loop owns the simulation. Every method runs on the game loop goroutine.
type Loop struct {
	sim        config.SimulationConfig
	maxPerTick int

	factory cosmos.Factory
	cosmos  *cosmos.Cosmos
	initial cosmos.Solvable
	rules   mode.Rules
	mode    *mode.BombMode
	runner  *coresys.Runner
	queues  *event.Queues
	entropy entropy.Total

	registry   *packet.Registry
	net        *gonet.Server
	sessions   *gonet.SessionStore
	in         intake
	joining    *pendingJoin
	nextPlayer entropy.PlayerID
	lastRound  roundStatus

	store       persist.Store
	match       persist.Match
	pending     []persist.Checksum
	sums        checksumRing
	saveCounter uint32
	rec         *Recorder

	log *zap.Logger
}

func NewLoop(ctx context.Context, opts Options) (*Loop, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	maxPerTick := opts.MaxCommandsPerTick
	if maxPerTick <= 0 {
		maxPerTick = 32
	}
	l := &Loop{
		sim:        opts.Simulation,
		maxPerTick: maxPerTick,
		rules:      opts.Rules,
		runner:     coresys.NewRunner(),
		queues:     event.NewQueues(),
		sessions:   gonet.NewSessionStore(),
		store:      opts.Store,
		log:        log,
	}
	if l.sim.FixedDeltaMs > 0 {
		l.rules.DeltaMs = l.sim.FixedDeltaMs
	}

	c, err := opts.Scenario.Build(&l.factory, opts.Table, l.sim.Seed)
	if err != nil {
		return nil, fmt.Errorf("build scenario: %w", err)
	}
	l.cosmos = c
	l.initial = c.Solvable().Clone()

	l.mode = mode.New(l.sim.Seed)
	l.mode.SetLogger(log.Named("mode"))
	if opts.Scripts != nil {
		l.mode.SetScripts(opts.Scripts)
	}
	system.RegisterDefaults(l.runner)
	l.mode.Register(l.runner, mode.Input{Rules: &l.rules, Initial: &l.initial})

	l.registry = packet.NewRegistry(log)
	l.registerHandlers(l.registry)

	l.match = persist.NewMatch(opts.Scenario.Name, l.sim.Seed)
	if l.store != nil {
		if err := l.resume(ctx, opts.Scenario.Name); err != nil {
			return nil, err
		}
	}

	l.nextPlayer = firstHumanPlayer
	for id := range l.mode.Players {
		if id >= l.nextPlayer {
			l.nextPlayer = id + 1
		}
	}
	l.lastRound = currentRound(l.mode)

	if l.sim.RecordDir != "" {
		name := fmt.Sprintf("%s-%d", l.match.ID, l.cosmos.Step())
		rec, path, err := CreateRecording(l.sim.RecordDir, name, &l.initial, l.cosmos, l.mode)
		if err != nil {
			return nil, err
		}
		l.rec = rec
		log.Info("recording entropy", zap.String("path", path))
	}
	return l, nil
}

// resume continues the latest match of the same scenario and seed. A snapshot
// that cannot be restored starts a new match from the initial world.
func (l *Loop) resume(ctx context.Context, scenario string) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	m, err := l.store.LatestMatch(ctx)
	switch {
	case errors.Is(err, persist.ErrNotFound):
	case err != nil:
		return fmt.Errorf("latest match: %w", err)
	case m.Scenario == scenario && m.Seed == l.sim.Seed:
		snap, err := l.store.LatestSnapshot(ctx, m.ID)
		if errors.Is(err, persist.ErrNotFound) {
			l.match = m
			l.log.Info("continuing match without snapshot", zap.Stringer("match", m.ID))
			return nil
		}
		if err != nil {
			return fmt.Errorf("latest snapshot: %w", err)
		}
		if err := l.restore(snap); err != nil {
			l.log.Warn("snapshot unusable, starting from the initial world",
				zap.Stringer("match", m.ID),
				zap.Uint32("step", snap.Step),
				zap.Error(err),
			)
			break
		}
		l.match = m
		l.log.Info("resumed match", zap.Stringer("match", m.ID), zap.Uint32("step", snap.Step))
		return nil
	}

	if err := l.store.CreateMatch(ctx, l.match); err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	l.log.Info("match created", zap.Stringer("match", l.match.ID))
	return nil
}

// restore applies a snapshot only if both halves decode and the world hashes
// to what was saved.
func (l *Loop) restore(snap persist.Snapshot) error {
	m := l.mode.Clone()
	if err := m.Decode(packet.NewReader(snap.Mode)); err != nil {
		return err
	}
	scratch := l.factory.Clone(l.cosmos)
	if err := scratch.Load(snap.Cosmos); err != nil {
		return err
	}
	if got := checksumOf(scratch, l.sim.FullChecksum); got != snap.Hash {
		return fmt.Errorf("checksum %08x, saved %08x", got, snap.Hash)
	}
	l.cosmos.Set(scratch.Solvable())
	*l.mode = *m
	return nil
}

// Serve takes sessions from a network server from the next tick on.
func (l *Loop) Serve(srv *gonet.Server) { l.net = srv }

// Attach adds a session directly.
func (l *Loop) Attach(sess *gonet.Session) { l.sessions.Add(sess) }

func (l *Loop) Cosmos() *cosmos.Cosmos { return l.cosmos }

func (l *Loop) Mode() *mode.BombMode { return l.mode }

func (l *Loop) Match() persist.Match { return l.match }

// Run ticks until ctx is cancelled, then saves and shuts down.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.sim.TickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Tick()
		case <-ctx.Done():
			l.Shutdown()
			return nil
		}
	}
}

// Tick runs one step: network input, entropy, simulation, output.
func (l *Loop) Tick() {
	l.acceptSessions()
	l.drainSessions()
	l.assemble()

	if l.rec != nil {
		if err := l.rec.Record(&l.entropy); err != nil {
			l.log.Error("recording failed, stopping it", zap.Error(err))
			l.rec.Close()
			l.rec = nil
		}
	}

	start := time.Now()
	l.runner.Advance(coresys.Step{Cosmos: l.cosmos, Entropy: &l.entropy, Queues: l.queues})
	if d := time.Since(start); d > l.sim.TickRate && l.sim.TickRate > 0 {
		l.log.Warn("step overran tick",
			zap.Duration("took", d),
			zap.Uint32("step", l.cosmos.Step()),
			zap.Stringer("slowest", l.slowestPhase()),
		)
	}

	step := l.cosmos.Step()
	hash := checksumOf(l.cosmos, l.sim.FullChecksum)
	l.sums.put(step, hash)

	l.confirmJoin()
	l.publish(step, hash)
	l.persistStep(step, hash)

	l.sessions.ForEach(func(sess *gonet.Session) {
		sess.FlushOutput()
	})
}

func (l *Loop) slowestPhase() coresys.Phase {
	slowest := coresys.PhasePreSolve
	for p := coresys.PhasePreSolve; p <= coresys.PhasePostCleanup; p++ {
		if l.runner.Timing(p) > l.runner.Timing(slowest) {
			slowest = p
		}
	}
	return slowest
}

func (l *Loop) acceptSessions() {
	if l.net == nil {
		return
	}
	for {
		select {
		case sess := <-l.net.NewSessions():
			l.Attach(sess)
		default:
			return
		}
	}
}

// drainSessions dispatches up to maxPerTick packets per session. Closed
// sessions are drained the same way before their player leaves, so a final
// release still reaches the simulation.
func (l *Loop) drainSessions() {
	l.sessions.ForEach(func(sess *gonet.Session) {
		closed := sess.IsClosed()
	drain:
		for i := 0; i < l.maxPerTick; i++ {
			select {
			case data := <-sess.InQueue:
				if err := l.registry.Dispatch(sess, sess.State(), data); err != nil {
					l.log.Debug("packet dispatch error", zap.Uint64("session", sess.ID), zap.Error(err))
				}
			default:
				break drain
			}
		}
		if closed {
			l.release(sess)
			l.sessions.Remove(sess.ID)
			l.log.Info("client disconnected", zap.Uint64("session", sess.ID))
		}
	})
}

// assemble builds this step's entropy. Joins and leaves enter one per step
// so that every player change is a separate, ordered event.
func (l *Loop) assemble() {
	e := &l.entropy
	e.Clear()

	if len(l.in.joins) > 0 {
		j := l.in.joins[0]
		l.in.joins = l.in.joins[1:]
		j.id = l.nextPlayer
		l.nextPlayer++
		e.Mode.Added = &entropy.AddPlayer{ID: j.id, Name: j.name, Faction: j.faction}
		l.joining = &j
	}
	if len(l.in.leaves) > 0 {
		e.Mode.Removed = l.in.leaves[0]
		l.in.leaves = l.in.leaves[1:]
	}
	if l.in.restart {
		e.Mode.Special = entropy.Restart{}
		l.in.restart = false
	}

	e.Mode.Players = append(e.Mode.Players, l.in.commands...)
	e.Cosmic.Intents = append(e.Cosmic.Intents, l.in.intents...)
	e.Cosmic.Motions = append(e.Cosmic.Motions, l.in.motions...)
	l.in.commands = l.in.commands[:0]
	l.in.intents = l.in.intents[:0]
	l.in.motions = l.in.motions[:0]

	e.Normalize()
}

// confirmJoin binds the session that joined this step to its player.
func (l *Loop) confirmJoin() {
	j := l.joining
	l.joining = nil
	if j == nil {
		return
	}
	p, ok := l.mode.Find(j.id)
	if j.sess.State() != packet.StateJoinRequested {
		if ok {
			l.in.leaves = append(l.in.leaves, j.id)
		}
		return
	}
	if !ok {
		j.sess.SetState(packet.StateConnected)
		j.sess.Send(joinedPacket(0, 0))
		return
	}
	j.sess.Player = j.id
	j.sess.SetState(packet.StatePlaying)
	j.sess.Send(joinedPacket(j.id, p.Controlled))
	l.log.Info("player joined",
		zap.Uint64("session", j.sess.ID),
		zap.Uint32("player", uint32(j.id)),
		zap.String("name", p.Name),
		zap.Stringer("faction", p.Faction),
	)
}

func (l *Loop) publish(step, hash uint32) {
	for _, n := range event.Queue[event.GameNotification](l.queues) {
		l.sessions.Broadcast(notificationPacket(n))
	}

	if rs := currentRound(l.mode); rs != l.lastRound {
		l.lastRound = rs
		l.sessions.Broadcast(roundPacket(rs))
		l.log.Debug("round status",
			zap.Uint8("state", uint8(rs.State)),
			zap.Uint32("round", rs.Round),
			zap.Uint32("step", step),
		)
	}

	sum := checksumPacket(step, hash)
	l.sessions.ForEach(func(sess *gonet.Session) {
		if sess.State() == packet.StatePlaying {
			sess.Send(sum)
		}
	})
}

func (l *Loop) persistStep(step, hash uint32) {
	if l.store == nil {
		return
	}
	l.pending = append(l.pending, persist.Checksum{Step: step, Hash: hash})
	if len(l.pending) >= checksumBatch {
		l.flushChecksums()
	}
	if l.sim.SnapshotInterval > 0 {
		l.saveCounter++
		if l.saveCounter >= l.sim.SnapshotInterval {
			l.saveCounter = 0
			l.Save()
		}
	}
}

func (l *Loop) flushChecksums() {
	if len(l.pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := l.store.AppendChecksums(ctx, l.match.ID, l.pending); err != nil {
		l.log.Error("checksum write failed", zap.Int("count", len(l.pending)), zap.Error(err))
		return
	}
	l.pending = l.pending[:0]
}

// Save writes a snapshot of the current step together with the pending
// checksums.
func (l *Loop) Save() {
	if l.store == nil {
		return
	}
	start := time.Now()
	l.flushChecksums()

	w := packet.NewWriter()
	l.mode.Encode(w)
	snap := persist.Snapshot{
		MatchID:   l.match.ID,
		Step:      l.cosmos.Step(),
		Hash:      checksumOf(l.cosmos, l.sim.FullChecksum),
		Cosmos:    l.cosmos.Save(),
		Mode:      w.Bytes(),
		CreatedAt: time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := l.store.SaveSnapshot(ctx, snap); err != nil {
		l.log.Error("snapshot save failed", zap.Uint32("step", snap.Step), zap.Error(err))
		return
	}
	if l.rec != nil {
		if err := l.rec.Flush(); err != nil {
			l.log.Warn("recording flush failed", zap.Error(err))
		}
	}
	l.log.Info("snapshot saved",
		zap.Uint32("step", snap.Step),
		zap.Int("bytes", len(snap.Cosmos)+len(snap.Mode)),
		zap.Duration("took", time.Since(start)),
	)
}

// Shutdown saves, closes the recording and disconnects every session.
func (l *Loop) Shutdown() {
	l.Save()
	if l.rec != nil {
		if err := l.rec.Close(); err != nil {
			l.log.Warn("recording close failed", zap.Error(err))
		}
		l.rec = nil
	}
	l.sessions.ForEach(func(sess *gonet.Session) {
		sess.FlushOutput()
		sess.Close()
	})
}
