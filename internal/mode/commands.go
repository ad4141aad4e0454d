package mode

import (
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/event"
	coresys "github.com/bombarena/server/internal/core/system"
	"github.com/bombarena/server/internal/cosmos"
	"github.com/bombarena/server/internal/entropy"
	"github.com/bombarena/server/internal/system"
)

// NormalizeName puts a chosen name into the form players are stored and
// matched under: NFC, full-width forms folded, trimmed, cut to the name
// length.
func NormalizeName(s string) string {
	s = strings.TrimSpace(width.Fold.String(norm.NFC.String(s)))
	return component.NewName(s).String()
}

func (m *BombMode) addPlayerCustom(in Input, a entropy.AddPlayer) bool {
	name := NormalizeName(a.Name)
	if _, ok := m.Players[a.ID]; ok || !a.ID.IsSet() || name == "" {
		return false
	}
	p := newPlayer(name, component.FactionSpectator)
	if m.State == StateWarmup {
		p.Stats.Money = in.Rules.Economy.WarmupInitialMoney
	} else {
		p.Stats.Money = in.Rules.Economy.InitialMoney
		if m.RoundNum() != 0 {
			p.Stats.Money /= 2
		}
	}
	m.Players[a.ID] = p
	return true
}

func (m *BombMode) addPlayer(in Input, name string) entropy.PlayerID {
	id := m.FirstFreePlayer()
	if !m.addPlayerCustom(in, entropy.AddPlayer{ID: id, Name: name}) {
		return 0
	}
	return id
}

func (m *BombMode) removePlayer(in Input, step coresys.Step, id entropy.PlayerID) {
	m.deleteWithHeldItems(in, step, step.Cosmos.Handle(m.Lookup(id)))
	delete(m.Players, id)
}

func (m *BombMode) addOrRemovePlayers(in Input, step coresys.Step) {
	g := &step.Entropy.Mode

	if a := g.Added; a != nil {
		m.addPlayerCustom(in, *a)
		if p, ok := m.Players[a.ID]; ok {
			event.Post(step.Queues, event.GameNotification{Player: a.ID, Name: p.Name, Kind: event.NotifyJoined})
			if a.Faction == component.FactionDefault {
				m.autoAssignFaction(step.Cosmos, a.ID)
			} else {
				m.chooseFaction(a.ID, a.Faction)
			}
			m.log.Debug("player joined", zap.Uint32("id", uint32(a.ID)), zap.String("name", p.Name))
		}
	}

	if id := g.Removed; id.IsSet() {
		if p, ok := m.Players[id]; ok {
			event.Post(step.Queues, event.GameNotification{Player: id, Name: p.Name, Kind: event.NotifyLeft})
			m.removePlayer(in, step, id)
			m.log.Debug("player left", zap.Uint32("id", uint32(id)))
		}
	}
}

func (m *BombMode) handleSpecialCommands(in Input, step coresys.Step) {
	switch step.Entropy.Mode.Special.(type) {
	case entropy.Restart:
		m.restart(in, step)
	}
}

func (m *BombMode) chooseFaction(id entropy.PlayerID, f component.Faction) event.FactionChoiceResult {
	p, ok := m.Players[id]
	if !ok {
		return event.ChoiceFailed
	}
	if p.Faction == f {
		return event.ChoiceTheSame
	}
	p.Faction = f
	return event.ChoiceChanged
}

func (m *BombMode) autoAssignFaction(c *cosmos.Cosmos, id entropy.PlayerID) event.FactionChoiceResult {
	p, ok := m.Players[id]
	if !ok {
		return event.ChoiceFailed
	}
	previous := p.Faction
	// Leave first so an even split puts the player back where they were.
	p.Faction = component.FactionSpectator
	p.Faction = m.weakestFaction(c)
	if p.Faction != previous {
		return event.ChoiceChanged
	}
	return event.ChoiceBestBalanceAlready
}

// executePlayerCommands applies per-player commands in player id order.
// Rejected commands are dropped silently.
func (m *BombMode) executePlayerCommands(in Input, step coresys.Step) {
	for _, pc := range step.Entropy.Mode.Players {
		p, ok := m.Players[pc.Player]
		if !ok {
			continue
		}
		switch cmd := pc.Command.(type) {
		case entropy.ItemPurchase:
			if h, ok := m.buyer(in, step.Cosmos, pc.Player); ok {
				m.purchaseItem(in, step, p, h, cmd.Flavour)
			}
		case entropy.SpellPurchase:
			if h, ok := m.buyer(in, step.Cosmos, pc.Player); ok {
				m.purchaseSpell(step.Cosmos, p, h, cmd.Spell)
			}
		case entropy.SpecialPurchase:
			if h, ok := m.buyer(in, step.Cosmos, pc.Player); ok && cmd.Kind == entropy.RebuyPrevious {
				for _, f := range p.Stats.LastPurchases {
					m.purchaseItem(in, step, p, h, f)
				}
			}
		case entropy.TeamChoice:
			m.teamChoice(in, step, pc.Player, p, cmd.Faction)
		}
	}
}

// buyer returns the player's character when it may shop right now.
func (m *BombMode) buyer(in Input, c *cosmos.Cosmos, id entropy.PlayerID) (cosmos.Handle, bool) {
	if m.BuyMsLeft(in, c) <= 0 {
		return cosmos.Handle{}, false
	}
	h := c.Handle(m.Lookup(id))
	if h.Dead() {
		return cosmos.Handle{}, false
	}
	pos, ok := cosmos.Position(h)
	if !ok || !c.InMarker(pos, component.MarkerBuyZone, system.FactionOf(h.Const())) {
		return cosmos.Handle{}, false
	}
	return h, true
}

func factionsCompatible(buyer, offer component.Faction) bool {
	return offer == component.FactionSpectator || offer == buyer
}

func (m *BombMode) purchaseItem(in Input, step coresys.Step, p *Player, h cosmos.Handle, f component.FlavourID) {
	def, ok := step.Cosmos.Common().Flavour(f)
	if !ok || def.Tag != component.KindItem || def.Price <= 0 {
		return
	}
	if !factionsCompatible(system.FactionOf(h.Const()), def.Faction) {
		return
	}
	if p.Stats.Money < def.Price || cosmos.FreeSlot(h) == component.SlotNone {
		return
	}
	if m.giveItem(step, h, f).IsZero() {
		return
	}
	if !slices.Contains(p.Stats.Round.DonePurchases, f) {
		p.Stats.Round.DonePurchases = append(p.Stats.Round.DonePurchases, f)
	}
	p.Stats.Money -= def.Price
}

func (m *BombMode) purchaseSpell(c *cosmos.Cosmos, p *Player, h cosmos.Handle, id uint8) {
	spell, ok := c.Common().Spell(id)
	if !ok || spell.Price <= 0 {
		return
	}
	if !factionsCompatible(system.FactionOf(h.Const()), spell.Faction) {
		return
	}
	sent := cosmos.Sentience.Find(h)
	if sent == nil || p.Stats.Money < spell.Price || sent.Learnt(id) {
		return
	}
	sent.LearntSpells |= 1 << id
	p.Stats.Money -= spell.Price
}

// deathDamage is enough to kill any character outright.
const deathDamage = math.MaxInt32 / 2

func (m *BombMode) teamChoice(in Input, step coresys.Step, id entropy.PlayerID, p *Player, requested component.Faction) {
	if requested >= component.FactionCount {
		return
	}
	c := step.Cosmos
	previous := p.Faction
	round := m.RoundNum()

	var death *event.Damage
	if h := c.Handle(p.Controlled); h.Alive() {
		if sent, ok := cosmos.Sentience.Read(h); ok && !sent.Dead() {
			death = &event.Damage{
				Subject:       h.ID(),
				Amount:        deathDamage,
				Consciousness: deathDamage,
				Origin:        component.Origin{Cause: h.Flavour(), Entity: h.ID(), Sender: h.ID()},
			}
		}
	}

	result := func() event.FactionChoiceResult {
		if previous == requested {
			return event.ChoiceTheSame
		}
		if in.Rules.ForbidSpectatorUnlessAlive && death == nil && requested == component.FactionSpectator {
			return event.ChoiceNeedToBeAliveForSpectator
		}
		limit := int(in.Rules.MaxPlayersPerTeam)
		if previous == component.FactionSpectator && limit > 0 {
			if len(m.Players)-m.NumPlayersIn(component.FactionSpectator) >= limit {
				return event.ChoiceTeamIsFull
			}
		}
		if requested != component.FactionSpectator {
			if limit > 0 && m.NumPlayersIn(requested) >= limit {
				return event.ChoiceTeamIsFull
			}
			// A dead player may pick once per round.
			if death == nil && p.RoundWhenChoseFaction == round {
				return event.ChoiceTooFast
			}
			p.RoundWhenChoseFaction = round
		}
		if requested == component.FactionDefault {
			return m.autoAssignFaction(c, id)
		}
		return m.chooseFaction(id, requested)
	}()

	if result == event.ChoiceChanged && death != nil {
		event.Post(step.Queues, *death)
	}
	event.Post(step.Queues, event.GameNotification{
		Player:  id,
		Name:    p.Name,
		Kind:    event.NotifyFactionChoice,
		Choice:  result,
		Faction: p.Faction,
	})
}
