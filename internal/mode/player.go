package mode

import (
	"math"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/cosmos"
	"github.com/bombarena/server/internal/entropy"
)

// State is the phase of a match.
type State uint8

const (
	StateInit State = iota
	StateWarmup
	StateLive
	StateRoundEndDelay
	StateMatchSummary
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateWarmup:
		return "warmup"
	case StateLive:
		return "live"
	case StateRoundEndDelay:
		return "round_end_delay"
	case StateMatchSummary:
		return "match_summary"
	}
	return "unknown"
}

// Award is one money change of the current round.
type Award struct {
	When   cosmos.Clock
	Amount int32
}

// RoundStats are cleared at the start of every round.
type RoundStats struct {
	Awards        []Award
	DonePurchases []component.FlavourID
}

// Stats accumulate over a match.
type Stats struct {
	Money          int32
	Knockouts      int32
	Assists        int32
	Deaths         int32
	BombPlants     int32
	BombExplosions int32
	BombDefuses    int32
	Round          RoundStats
	// LastPurchases is what the player bought in the previous round, used by
	// the rebuy shortcut.
	LastPurchases []component.FlavourID
}

// DefaultScore is the fallback scoreboard formula.
func (s *Stats) DefaultScore() int32 {
	return s.Knockouts*2 + s.Assists + s.BombPlants*2 + s.BombExplosions*2 + s.BombDefuses*4
}

// noFactionChoice marks a player who never picked a faction by hand.
const noFactionChoice = math.MaxUint32

// Player is a participant of the mode. It survives respawns.
type Player struct {
	Name                  string
	Faction               component.Faction
	Stats                 Stats
	Controlled            ecs.EntityID
	Bot                   bool
	RoundWhenChoseFaction uint32
}

func newPlayer(name string, f component.Faction) *Player {
	return &Player{Name: name, Faction: f, RoundWhenChoseFaction: noFactionChoice}
}

func (p *Player) clone() *Player {
	c := *p
	c.Stats.Round.Awards = append([]Award(nil), p.Stats.Round.Awards...)
	c.Stats.Round.DonePurchases = append([]component.FlavourID(nil), p.Stats.Round.DonePurchases...)
	c.Stats.LastPurchases = append([]component.FlavourID(nil), p.Stats.LastPurchases...)
	return &c
}

// Participant is a snapshot of who took part in a knockout.
type Participant struct {
	ID      entropy.PlayerID
	Name    string
	Faction component.Faction
}

// Knockout records one counted knockout.
type Knockout struct {
	When       cosmos.Clock
	Origin     component.Origin
	Knockouter Participant
	Assist     Participant
	Victim     Participant
}

// FactionState is per-faction match state.
type FactionState struct {
	Score             uint32
	ConsecutiveLosses uint32
	ShuffledSpawns    []ecs.EntityID
	CurrentSpawnIndex int
}

func (f *FactionState) clearForNextHalf() {
	f.ConsecutiveLosses = 0
}

// Win is the outcome of the last decided round.
type Win struct {
	When   cosmos.Clock
	Winner component.Faction
	Set    bool
}

// RoundState is cleared by every round setup.
type RoundState struct {
	LastWin       Win
	BombPlanter   entropy.PlayerID
	Knockouts     []Knockout
	PlayersFrozen bool
	Theme         ecs.EntityID
}

// MatchResult is the outcome shown during the match summary.
type MatchResult struct {
	Winner component.Faction
	Loser  component.Faction
	Tie    bool
}

// ParticipatingFactions are the two sides of a bomb match.
type ParticipatingFactions struct {
	Bombing  component.Faction
	Defusing component.Faction
}

func (p ParticipatingFactions) Each(fn func(component.Faction)) {
	fn(p.Bombing)
	fn(p.Defusing)
}

// Opposite returns the other side, or Spectator for a faction not taking part.
func (p ParticipatingFactions) Opposite(f component.Faction) component.Faction {
	switch f {
	case p.Bombing:
		return p.Defusing
	case p.Defusing:
		return p.Bombing
	}
	return component.FactionSpectator
}
