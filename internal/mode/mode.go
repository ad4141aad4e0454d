// Package mode implements the bomb-defusal match rules on top of a cosmos:
// players, factions, rounds, the economy and the win conditions.
package mode

import (
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/core/event"
	coresys "github.com/bombarena/server/internal/core/system"
	"github.com/bombarena/server/internal/cosmos"
	"github.com/bombarena/server/internal/entropy"
	"github.com/bombarena/server/internal/system"
)

// matchBeginsMs is the pause between the end of warmup and the first round.
const matchBeginsMs = 4000

// Scripts overrides economy formulas. Implementations must be deterministic.
type Scripts interface {
	KnockoutAward(tool string, fallback int32) int32
	Score(s *Stats) int32
}

// Input is what the mode reads besides its own state. Neither is modified.
type Input struct {
	Rules   *Rules
	Initial *cosmos.Solvable
}

// BombMode is the match state. It is significant: replicas must agree on it
// just like on the cosmos, so it only changes inside a step.
type BombMode struct {
	State    State
	Players  map[entropy.PlayerID]*Player
	Factions [component.FactionCount]FactionState
	Round    RoundState

	ClockBeforeSetup        cosmos.Clock
	CommencingTimerMs       int64
	ShouldCommenceWhenReady bool
	CurrentNumBots          uint32
	RNGSeedOffset           uint64

	log     *zap.Logger
	scripts Scripts
}

func New(seedOffset uint64) *BombMode {
	return &BombMode{
		Players:           make(map[entropy.PlayerID]*Player),
		CommencingTimerMs: -1,
		RNGSeedOffset:     seedOffset,
		log:               zap.NewNop(),
	}
}

// SetLogger attaches a logger for round transitions. Logging never feeds
// back into the state.
func (m *BombMode) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	m.log = l
}

func (m *BombMode) SetScripts(s Scripts) { m.scripts = s }

type preSolve struct {
	m  *BombMode
	in Input
}

func (s preSolve) Phase() coresys.Phase      { return coresys.PhaseModePre }
func (s preSolve) Solve(step coresys.Step) { s.m.PreSolve(s.in, step) }

type postSolve struct {
	m  *BombMode
	in Input
}

func (s postSolve) Phase() coresys.Phase      { return coresys.PhaseModePost }
func (s postSolve) Solve(step coresys.Step) { s.m.PostSolve(s.in, step) }

// Register adds the mode's pre and post solve passes to a runner.
func (m *BombMode) Register(r *coresys.Runner, in Input) {
	r.Register(preSolve{m: m, in: in})
	r.Register(postSolve{m: m, in: in})
}

// PreSolve runs before the cosmos subsystems of a step.
func (m *BombMode) PreSolve(in Input, step coresys.Step) {
	c := step.Cosmos
	if m.State == StateInit {
		m.restart(in, step)
	}

	m.executePlayerCommands(in, step)
	m.spawnAndKickBots(in, step)
	m.addOrRemovePlayers(in, step)
	m.handleSpecialCommands(in, step)
	m.spawnCharactersForRecentlyAssigned(in, step)

	if in.Rules.AllowGameCommencing {
		m.handleGameCommencing(in, step)
	} else {
		m.CommencingTimerMs = -1
	}

	switch m.State {
	case StateWarmup:
		m.respawnTheDead(in, step, int64(in.Rules.WarmupRespawnAfterMs))
		if m.WarmupMsLeft(in, c) <= 0 {
			if !m.Round.PlayersFrozen {
				m.setPlayersFrozen(c, true)
			}
			if m.MatchBeginsInMs(in, c) <= 0 {
				m.State = StateLive
				m.resetPlayersStats(in)
				m.setupRound(in, step, nil)
			}
		}
	case StateLive:
		if m.FreezeMsLeft(in, c) <= 0 {
			if m.Round.PlayersFrozen {
				m.playSoundFor(step, event.BattleStart)
			}
			m.setPlayersFrozen(c, false)
		}
		m.processWinConditions(in, step)
	case StateRoundEndDelay:
		if m.RoundEndMsLeft(in, c) <= 0 {
			m.startNextRound(in, step, true)
		}
	case StateMatchSummary:
		if m.MatchSummaryMsLeft(in, c) <= 0 {
			if m.IsFinalRound(in, c) {
				m.restart(in, step)
				break
			}
			p := m.ParticipatingFactions(c)
			for _, id := range m.playerIDs() {
				pl := m.Players[id]
				if o := p.Opposite(pl.Faction); o != component.FactionSpectator {
					pl.Faction = o
				}
			}
			m.Factions[p.Bombing].Score, m.Factions[p.Defusing].Score =
				m.Factions[p.Defusing].Score, m.Factions[p.Bombing].Score
			p.Each(func(f component.Faction) { m.Factions[f].clearForNextHalf() })
			m.setPlayersMoneyToInitial(in)
			m.log.Debug("halftime, factions swapped", zap.Uint32("round", m.RoundNum()))
			m.startNextRound(in, step, false)
		}
	}
}

// PostSolve runs after the cosmos subsystems of a step, before the clock
// advances.
func (m *BombMode) PostSolve(in Input, step coresys.Step) {
	c := step.Cosmos

	for _, e := range event.Queue[event.BattleEvent](step.Queues) {
		subject := c.ConstHandle(e.Subject)
		if subject.Dead() || e.Event == event.BattleInterruptedDefusing {
			continue
		}
		event.Post(step.Queues, event.StartSound{
			Event:           e.Event,
			ListenerFaction: system.FactionOf(subject),
			Variation:       m.stepSeed(c),
			Predictable:     true,
		})
	}

	for _, e := range event.Queue[event.HealthEvent](step.Queues) {
		if e.Result != event.HealthDeath || !e.WasConscious {
			continue
		}
		victim := c.ConstHandle(e.Subject)
		if s, ok := cosmos.Sentience.Read(victim); ok {
			m.countKnockoutOf(in, c, victim, &s)
		}
	}

	if m.State != StateLive || !m.BombPlanted(in, c) {
		return
	}
	bomb := c.Handle(m.bombEntity(in, c))
	fuse, _ := cosmos.HandFuse.Read(bomb)
	if fuse.WhenArmed.Step == c.Step() {
		m.playSoundFor(step, event.BattleBombPlanted)
		sender, _ := cosmos.Sender.Read(bomb)
		m.Round.BombPlanter = m.LookupPlayer(sender.Capability)
		if s := m.statsOf(m.Round.BombPlanter); s != nil {
			s.BombPlants++
		}
		m.postAward(in, c, m.Round.BombPlanter, in.Rules.Economy.BombPlantingAward)
	}
	if in.Rules.DetonationTheme.IsSet() && m.Round.Theme.IsZero() &&
		m.CriticalMsLeft(in, c) <= secs(in.Rules.SecsUntilDetonationTheme) {
		if h, err := c.CreateEntity(in.Rules.DetonationTheme, nil, nil); err == nil {
			m.Round.Theme = h.ID()
		}
	}
}

func (m *BombMode) playerIDs() []entropy.PlayerID {
	return slices.Sorted(maps.Keys(m.Players))
}

func (m *BombMode) Find(id entropy.PlayerID) (*Player, bool) {
	p, ok := m.Players[id]
	return p, ok
}

func (m *BombMode) statsOf(id entropy.PlayerID) *Stats {
	if p, ok := m.Players[id]; ok {
		return &p.Stats
	}
	return nil
}

// Lookup returns the character a player controls, or zero.
func (m *BombMode) Lookup(id entropy.PlayerID) ecs.EntityID {
	if p, ok := m.Players[id]; ok {
		return p.Controlled
	}
	return 0
}

// LookupPlayer returns the player controlling a character, or zero.
func (m *BombMode) LookupPlayer(character ecs.EntityID) entropy.PlayerID {
	if character.IsZero() {
		return 0
	}
	for _, id := range m.playerIDs() {
		if m.Players[id].Controlled == character {
			return id
		}
	}
	return 0
}

// FindPlayerByName matches the normalized form of name.
func (m *BombMode) FindPlayerByName(name string) (entropy.PlayerID, bool) {
	name = NormalizeName(name)
	for _, id := range m.playerIDs() {
		if m.Players[id].Name == name {
			return id, true
		}
	}
	return 0, false
}

// FirstFreePlayer is the lowest player id not in use.
func (m *BombMode) FirstFreePlayer() entropy.PlayerID {
	for id := entropy.FirstPlayer; ; id++ {
		if _, ok := m.Players[id]; !ok {
			return id
		}
	}
}

func (m *BombMode) NumPlayersIn(f component.Faction) int {
	n := 0
	for _, p := range m.Players {
		if p.Faction == f {
			n++
		}
	}
	return n
}

// eachPlayerHandleIn visits the live sentient characters of a faction's
// players in player id order.
func (m *BombMode) eachPlayerHandleIn(c *cosmos.Cosmos, f component.Faction, fn func(entropy.PlayerID, cosmos.Handle)) {
	for _, id := range m.playerIDs() {
		p := m.Players[id]
		if p.Faction != f {
			continue
		}
		h := c.Handle(p.Controlled)
		if h.Alive() && cosmos.Sentience.Has(h) {
			fn(id, h)
		}
	}
}

func (m *BombMode) NumConsciousPlayersIn(c *cosmos.Cosmos, f component.Faction) int {
	n := 0
	m.eachPlayerHandleIn(c, f, func(_ entropy.PlayerID, h cosmos.Handle) {
		if cosmos.Sentience.Get(h).Conscious() {
			n++
		}
	})
	return n
}

// ParticipatingFactions derives the two sides from the level: the bombing
// faction owns the first bombsite, the defusing faction is the last other
// faction with spawns.
func (m *BombMode) ParticipatingFactions(c *cosmos.Cosmos) ParticipatingFactions {
	var out ParticipatingFactions
	if sites := c.Markers(component.MarkerBombsite, component.FactionDefault); len(sites) > 0 {
		out.Bombing = system.FactionOf(c.ConstHandle(sites[0]))
	}
	for _, f := range component.PlayableFactions {
		if f != out.Bombing && len(c.Markers(component.MarkerSpawn, f)) > 0 {
			out.Defusing = f
		}
	}
	return out
}

func (m *BombMode) weakestFaction(c *cosmos.Cosmos) component.Faction {
	p := m.ParticipatingFactions(c)
	weakest, count := p.Bombing, m.NumPlayersIn(p.Bombing)
	p.Each(func(f component.Faction) {
		if n := m.NumPlayersIn(f); n < count {
			weakest, count = f, n
		}
	})
	return weakest
}

func (m *BombMode) RoundNum() uint32 {
	var total uint32
	for _, f := range component.PlayableFactions {
		total += m.Factions[f].Score
	}
	return total
}

func (m *BombMode) Score(f component.Faction) uint32 { return m.Factions[f].Score }

// PlayerScore is the scoreboard value of a player.
func (m *BombMode) PlayerScore(id entropy.PlayerID) int32 {
	p, ok := m.Players[id]
	if !ok {
		return 0
	}
	if m.scripts != nil {
		return m.scripts.Score(&p.Stats)
	}
	return p.Stats.DefaultScore()
}

func (m *BombMode) IsHalfwayRound(in Input) bool {
	return m.RoundNum() == in.Rules.NumRounds/2
}

func (m *BombMode) IsFinalRound(in Input, c *cosmos.Cosmos) bool {
	n := in.Rules.NumRounds
	over := false
	m.ParticipatingFactions(c).Each(func(f component.Faction) {
		if m.Score(f) > n/2 {
			over = true
		}
	})
	return over || m.RoundNum() == n
}

// MatchResult is only known during the match summary.
func (m *BombMode) MatchResult(c *cosmos.Cosmos) (MatchResult, bool) {
	if m.State != StateMatchSummary {
		return MatchResult{}, false
	}
	p := m.ParticipatingFactions(c)
	b, d := m.Score(p.Bombing), m.Score(p.Defusing)
	switch {
	case b == d:
		return MatchResult{Tie: true}, true
	case b > d:
		return MatchResult{Winner: p.Bombing, Loser: p.Defusing}, true
	default:
		return MatchResult{Winner: p.Defusing, Loser: p.Bombing}, true
	}
}

func (m *BombMode) roundSeed() uint64 {
	return m.RNGSeedOffset + uint64(m.ClockBeforeSetup.Step) + uint64(m.RoundNum())
}

func (m *BombMode) stepSeed(c *cosmos.Cosmos) uint64 {
	return m.roundSeed() + uint64(c.Step())
}

// Timers. All are in milliseconds; -1 means the timer does not apply.

func (m *BombMode) WarmupMsLeft(in Input, c *cosmos.Cosmos) int64 {
	if m.State != StateWarmup {
		return -1
	}
	return secs(in.Rules.WarmupSecs) - c.Clock().Now()
}

func (m *BombMode) MatchBeginsInMs(in Input, c *cosmos.Cosmos) int64 {
	if m.State != StateWarmup {
		return -1
	}
	now, warmup := c.Clock().Now(), secs(in.Rules.WarmupSecs)
	if now < warmup {
		return -1
	}
	return warmup + matchBeginsMs - now
}

func (m *BombMode) RoundMsPassed(in Input, c *cosmos.Cosmos) int64 {
	return c.Clock().Now() - secs(in.Rules.FreezeSecs)
}

func (m *BombMode) FreezeMsLeft(in Input, c *cosmos.Cosmos) int64 {
	return secs(in.Rules.FreezeSecs) - c.Clock().Now()
}

func (m *BombMode) BuyMsLeft(in Input, c *cosmos.Cosmos) int64 {
	if m.State == StateWarmup {
		if !in.Rules.WarmupEnableItemShop {
			return -1
		}
		return m.WarmupMsLeft(in, c)
	}
	if !in.Rules.EnableItemShop {
		return -1
	}
	return secs(in.Rules.FreezeSecs) + secs(in.Rules.BuySecsAfterFreeze) - c.Clock().Now()
}

func (m *BombMode) RoundMsLeft(in Input, c *cosmos.Cosmos) int64 {
	return secs(in.Rules.RoundSecs) + secs(in.Rules.FreezeSecs) - c.Clock().Now()
}

func (m *BombMode) msSinceWin(c *cosmos.Cosmos) int64 {
	if !m.Round.LastWin.Set {
		return -1
	}
	return c.Clock().Now() - m.Round.LastWin.When.Now()
}

func (m *BombMode) RoundEndMsLeft(in Input, c *cosmos.Cosmos) int64 {
	since := m.msSinceWin(c)
	if since < 0 {
		return -1
	}
	return secs(in.Rules.RoundEndSecs) - since
}

func (m *BombMode) MatchSummaryMsLeft(in Input, c *cosmos.Cosmos) int64 {
	since := m.msSinceWin(c)
	if since < 0 {
		return -1
	}
	return secs(in.Rules.MatchSummarySecs) - since
}

// CriticalMsLeft is the time until a planted bomb detonates.
func (m *BombMode) CriticalMsLeft(in Input, c *cosmos.Cosmos) int64 {
	if !m.BombPlanted(in, c) {
		return -1
	}
	bomb := c.ConstHandle(m.bombEntity(in, c))
	def, _ := bomb.Def()
	fuse, _ := cosmos.HandFuse.Read(bomb)
	return int64(def.FuseDelayMs) - c.Clock().Since(fuse.WhenArmed)
}

func (m *BombMode) bombEntity(in Input, c *cosmos.Cosmos) ecs.EntityID {
	if !in.Rules.Bomb.IsSet() {
		return 0
	}
	return c.FirstOfFlavour(in.Rules.Bomb)
}

// BombExploded reports a missing bomb. Once a round set up, the bomb can only
// stop existing by detonating.
func (m *BombMode) BombExploded(in Input, c *cosmos.Cosmos) bool {
	return in.Rules.Bomb.IsSet() && m.bombEntity(in, c).IsZero()
}

func (m *BombMode) BombPlanted(in Input, c *cosmos.Cosmos) bool {
	id := m.bombEntity(in, c)
	if id.IsZero() {
		return false
	}
	fuse, ok := cosmos.HandFuse.Read(c.ConstHandle(id))
	return ok && fuse.Armed()
}

// characterWhoDefused returns the defuser once the bomb is defused.
func (m *BombMode) characterWhoDefused(in Input, c *cosmos.Cosmos) ecs.EntityID {
	id := m.bombEntity(in, c)
	if id.IsZero() {
		return 0
	}
	fuse, ok := cosmos.HandFuse.Read(c.ConstHandle(id))
	if !ok || !fuse.Defused {
		return 0
	}
	return fuse.Defuser
}

func (m *BombMode) setPlayersFrozen(c *cosmos.Cosmos, frozen bool) {
	if m.Round.PlayersFrozen == frozen {
		return
	}
	m.Round.PlayersFrozen = frozen
	for _, id := range m.playerIDs() {
		h := c.Handle(m.Players[id].Controlled)
		if h.Alive() {
			h.SetFrozen(frozen)
			if frozen {
				releaseTriggers(h)
			}
		}
	}
}

// releaseTriggers clears held attack and use inputs so nothing fires when a
// frozen character thaws.
func releaseTriggers(h cosmos.Handle) {
	if mv := cosmos.Movement.Find(h); mv != nil {
		mv.Flags &^= component.InputAttack | component.InputUse
	}
}

func (m *BombMode) playSoundFor(step coresys.Step, e event.BattleEventKind) {
	m.ParticipatingFactions(step.Cosmos).Each(func(f component.Faction) {
		event.Post(step.Queues, event.StartSound{
			Event:           e,
			ListenerFaction: f,
			Variation:       m.stepSeed(step.Cosmos),
			Predictable:     e == event.BattleStart,
		})
	})
}

func (m *BombMode) playWinSound(step coresys.Step, winner component.Faction) {
	m.ParticipatingFactions(step.Cosmos).Each(func(f component.Faction) {
		kind := event.BattleLoss
		if f == winner {
			kind = event.BattleWin
		}
		event.Post(step.Queues, event.StartSound{
			Event:           kind,
			ListenerFaction: f,
			Winner:          winner,
			Variation:       m.stepSeed(step.Cosmos),
		})
	})
}
