package mode

import (
	"go.uber.org/zap"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/event"
	coresys "github.com/bombarena/server/internal/core/system"
	"github.com/bombarena/server/internal/cosmos"
	"github.com/bombarena/server/internal/entropy"
)

// postAward changes a player's money, keeping it within [0, maximum].
// Warmup money is free, so nothing is awarded then.
func (m *BombMode) postAward(in Input, c *cosmos.Cosmos, id entropy.PlayerID, amount int32) {
	if m.State == StateWarmup {
		return
	}
	s := m.statsOf(id)
	if s == nil {
		return
	}
	amount = max(-s.Money, min(amount, in.Rules.Economy.MaximumMoney-s.Money))
	if amount == 0 {
		return
	}
	s.Money += amount
	s.Round.Awards = append(s.Round.Awards, Award{When: c.Clock(), Amount: amount})
}

func (m *BombMode) participant(id entropy.PlayerID) Participant {
	p, ok := m.Players[id]
	if !ok {
		return Participant{}
	}
	return Participant{ID: id, Name: p.Name, Faction: p.Faction}
}

// countKnockoutOf builds the knockout record of a victim from its sentience.
// A knockouter that no longer exists counts as a suicide.
func (m *BombMode) countKnockoutOf(in Input, c *cosmos.Cosmos, victim cosmos.ConstHandle, s *component.Sentience) {
	if victim.Dead() {
		return
	}
	origin := s.KnockoutOrigin
	knockouter := victim.ID()
	if !origin.Sender.IsZero() && c.Alive(origin.Sender) {
		knockouter = origin.Sender
	}

	var ko Knockout
	for _, o := range s.DamageOwners {
		if o.Who.IsZero() || !c.Alive(o.Who) || o.Who == knockouter {
			continue
		}
		if o.Applied >= in.Rules.Economy.MinimalDamageForAssist {
			ko.Assist = m.participant(m.LookupPlayer(o.Who))
			break
		}
	}
	ko.When = c.Clock()
	ko.Origin = origin
	ko.Knockouter = m.participant(m.LookupPlayer(knockouter))
	ko.Victim = m.participant(m.LookupPlayer(victim.ID()))
	m.countKnockout(in, c, ko)
}

func (m *BombMode) countKnockout(in Input, c *cosmos.Cosmos, ko Knockout) {
	m.Round.Knockouts = append(m.Round.Knockouts, ko)

	dt := int32(1)
	switch {
	case ko.Knockouter.ID == ko.Victim.ID:
		dt = 0
	case ko.Knockouter.Faction == ko.Victim.Faction:
		dt = -1
		m.postAward(in, c, ko.Knockouter.ID, -in.Rules.Economy.TeamKillPenalty)
	}
	if dt > 0 {
		if award, ok := m.knockoutAward(c, ko.Origin.Cause); ok {
			m.postAward(in, c, ko.Knockouter.ID, award)
		}
	}
	if s := m.statsOf(ko.Knockouter.ID); s != nil {
		s.Knockouts += dt
	}
	if s := m.statsOf(ko.Victim.ID); s != nil {
		s.Deaths++
	}

	if ko.Assist.ID.IsSet() {
		adt := int32(1)
		if ko.Assist.Faction == ko.Victim.Faction {
			adt = -1
		}
		if s := m.statsOf(ko.Assist.ID); s != nil {
			s.Assists += adt
		}
	}
}

// knockoutAward is the award of the tool that caused a knockout, optionally
// rewritten by scripts.
func (m *BombMode) knockoutAward(c *cosmos.Cosmos, tool component.FlavourID) (int32, bool) {
	def, ok := c.Common().Flavour(tool)
	if !ok {
		return 0, false
	}
	if m.scripts != nil {
		return m.scripts.KnockoutAward(def.Name, def.KnockoutAward), true
	}
	return def.KnockoutAward, true
}

func (m *BombMode) makeWin(in Input, c *cosmos.Cosmos, winner component.Faction) {
	p := m.ParticipatingFactions(c)
	loser := p.Opposite(winner)
	eco := &in.Rules.Economy

	m.Factions[winner].Score++
	m.Factions[winner].ConsecutiveLosses = 0

	m.State = StateRoundEndDelay
	m.Round.LastWin = Win{When: c.Clock(), Winner: winner, Set: true}

	m.Factions[loser].ConsecutiveLosses++
	losses := m.Factions[loser].ConsecutiveLosses

	winnerAward, loserAward := eco.WinningFactionAward, eco.LosingFactionAward
	if losses > 1 {
		loserAward += int32(min(losses-1, eco.MaxConsecutiveLossBonus)) * eco.ConsecutiveLossBonus
	}
	if loser == p.Bombing && m.Round.BombPlanter.IsSet() {
		loserAward += eco.LostButPlantedBonus
		winnerAward += eco.DefusingTeamBonus
	}

	for _, id := range m.playerIDs() {
		if m.Players[id].Faction == winner {
			m.postAward(in, c, id, winnerAward)
		} else {
			m.postAward(in, c, id, loserAward)
		}
	}

	m.log.Debug("round won",
		zap.Stringer("winner", winner),
		zap.Uint32("score", m.Factions[winner].Score),
		zap.Uint32("round", m.RoundNum()))

	if m.IsHalfwayRound(in) || m.IsFinalRound(in, c) {
		m.State = StateMatchSummary
		m.setPlayersFrozen(c, true)
	}
}

// processWinConditions decides the round. Conditions are checked in order
// and the first that holds wins.
func (m *BombMode) processWinConditions(in Input, step coresys.Step) {
	c := step.Cosmos
	p := m.ParticipatingFactions(c)

	win := func(winner component.Faction) {
		m.makeWin(in, c, winner)
		m.playWinSound(step, winner)
	}
	stopTheme := func() {
		if c.Alive(m.Round.Theme) {
			event.Post(step.Queues, event.QueueDeletion{Subject: m.Round.Theme, Reason: "detonation theme interrupted"})
		}
		m.Round.Theme = 0
	}

	if m.BombExploded(in, c) {
		stopTheme()
		planter := m.Round.BombPlanter
		if s := m.statsOf(planter); s != nil {
			s.BombExplosions++
		}
		m.postAward(in, c, planter, in.Rules.Economy.BombExplosionAward)
		win(p.Bombing)
		return
	}

	if defuser := m.characterWhoDefused(in, c); c.Alive(defuser) {
		stopTheme()
		who := m.LookupPlayer(defuser)
		if s := m.statsOf(who); s != nil {
			s.BombDefuses++
		}
		m.postAward(in, c, who, in.Rules.Economy.BombDefusalAward)
		win(p.Defusing)
		return
	}

	planted := m.BombPlanted(in, c)
	if !planted && m.RoundMsLeft(in, c) <= 0 {
		win(p.Defusing)
		return
	}

	if m.NumPlayersIn(p.Bombing) > 0 && !planted && m.NumConsciousPlayersIn(c, p.Bombing) == 0 {
		win(p.Defusing)
		return
	}

	if m.NumPlayersIn(p.Defusing) > 0 && m.NumConsciousPlayersIn(c, p.Defusing) == 0 {
		win(p.Bombing)
	}
}
