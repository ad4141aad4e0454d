package mode

import (
	"go.uber.org/zap"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/core/event"
	coresys "github.com/bombarena/server/internal/core/system"
	"github.com/bombarena/server/internal/cosmos"
	"github.com/bombarena/server/internal/entropy"
	"github.com/bombarena/server/internal/system"
)

// bombSlots are tried in order when handing out the bomb.
var bombSlots = [...]component.SlotType{component.SlotOverBack, component.SlotPrimaryHand, component.SlotSecondaryHand}

type savedItem struct {
	Flavour component.FlavourID
	Charges int32
	Slot    component.SlotType
	Source  ecs.EntityID
	// Container indexes an earlier saved item, or is -1 for the character.
	Container int
}

// transferredPlayer is what a player carries over into the next round.
type transferredPlayer struct {
	Movement component.InputFlags
	Survived bool
	Spells   uint32
	Items    []savedItem
}

type transfers map[entropy.PlayerID]*transferredPlayer

func (m *BombMode) restart(in Input, step coresys.Step) {
	m.resetPlayersStats(in)
	m.Factions = [component.FactionCount]FactionState{}
	if in.Rules.WarmupSecs > 4 {
		m.State = StateWarmup
		for _, p := range m.Players {
			p.Stats.Money = in.Rules.Economy.WarmupInitialMoney
		}
	} else {
		m.State = StateLive
	}
	m.log.Debug("match restarted", zap.Stringer("state", m.State))
	m.setupRound(in, step, nil)
}

func (m *BombMode) startNextRound(in Input, step coresys.Step, keepEquipment bool) {
	m.State = StateLive
	var t transfers
	if keepEquipment {
		t = m.makeTransferredPlayers(in, step.Cosmos)
	}
	m.setupRound(in, step, t)
}

// setupRound resets the world to the initial state and repopulates it with
// the current players.
func (m *BombMode) setupRound(in Input, step coresys.Step, t transfers) {
	c := step.Cosmos
	m.clearPlayersRoundState()
	m.ClockBeforeSetup = c.Clock()

	former := make(map[entropy.PlayerID]ecs.EntityID, len(m.Players))
	for id, p := range m.Players {
		if c.Alive(p.Controlled) {
			former[id] = p.Controlled
		}
	}

	c.Set(in.Initial)
	// Messages refer to ids of the replaced world.
	step.Queues.Clear()
	c.SetFixedDelta(in.Rules.DeltaMs)

	m.removeLevelCharacters(c)
	if (in.Rules.DeleteLyingItemsOnWarmup && m.State == StateWarmup) || in.Rules.DeleteLyingItemsOnRoundStart {
		m.removeLyingItems(c)
	}

	m.Round = RoundState{}
	for _, f := range component.PlayableFactions {
		m.reshuffleSpawns(c, f)
	}

	var changes []event.IdentityChange
	for _, id := range m.playerIDs() {
		newID := m.createCharacterForPlayer(in, step, id, t[id], &changes)
		if old, ok := former[id]; ok {
			changes = append(changes, event.IdentityChange{From: old, To: newID})
		}
	}

	m.spawnAndKickBots(in, step)
	m.spawnCharactersForRecentlyAssigned(in, step)

	if len(changes) > 0 {
		event.Post(step.Queues, event.ChangedIdentities{Changes: changes})
	}

	if in.Rules.FreezeSecs > 0 {
		if m.State != StateWarmup {
			m.setPlayersFrozen(c, true)
		}
	} else {
		m.playSoundFor(step, event.BattleStart)
	}

	if m.State != StateWarmup {
		if !m.giveBombToRandomPlayer(in, step) {
			m.spawnBombNearPlayers(in, c)
		}
	}

	if m.State == StateWarmup && in.Rules.WarmupTheme.IsSet() {
		if h, err := c.CreateEntity(in.Rules.WarmupTheme, nil, nil); err == nil {
			m.Round.Theme = h.ID()
		}
	}

	m.log.Debug("round set up",
		zap.Uint32("round", m.RoundNum()),
		zap.Stringer("state", m.State),
		zap.Int("players", len(m.Players)),
		zap.Int("entities", c.Count()))
}

// removeLevelCharacters deletes characters a level was saved with.
func (m *BombMode) removeLevelCharacters(c *cosmos.Cosmos) {
	var doomed []ecs.EntityID
	c.Solvable().Arena.Each(func(id ecs.EntityID) {
		if id.Tag() == component.KindCharacter && !c.ConstHandle(id).HasFlag(component.FlagSpawnedByMode) {
			doomed = append(doomed, id)
		}
	})
	for _, id := range doomed {
		c.DeleteEntity(id)
	}
}

func (m *BombMode) removeLyingItems(c *cosmos.Cosmos) {
	var doomed []ecs.EntityID
	c.Solvable().Arena.Each(func(id ecs.EntityID) {
		if id.Tag() == component.KindItem && c.ContainerOf(id).IsZero() {
			doomed = append(doomed, id)
		}
	})
	for _, id := range doomed {
		c.DeleteEntity(id)
	}
}

func (m *BombMode) makeTransferredPlayers(in Input, c *cosmos.Cosmos) transfers {
	out := make(transfers)
	for _, id := range m.playerIDs() {
		h := c.Handle(m.Players[id].Controlled)
		if h.Dead() {
			continue
		}
		tp := &transferredPlayer{}
		out[id] = tp
		if mv, ok := cosmos.Movement.Read(h); ok {
			tp.Movement = mv.Flags
		}
		sent, ok := cosmos.Sentience.Read(h)
		if ok && !sent.Conscious() {
			continue
		}
		tp.Spells = sent.LearntSpells
		tp.Survived = true

		index := map[ecs.EntityID]int{}
		var walk func(parent ecs.EntityID, container int)
		walk = func(parent ecs.EntityID, container int) {
			for _, it := range c.ItemsIn(parent) {
				ih := c.ConstHandle(it)
				if in.Rules.Bomb.IsSet() && ih.Flavour() == in.Rules.Bomb {
					continue
				}
				item, _ := cosmos.Item.Read(ih)
				index[it] = len(tp.Items)
				tp.Items = append(tp.Items, savedItem{
					Flavour:   ih.Flavour(),
					Charges:   item.Charges,
					Slot:      item.Slot,
					Source:    it,
					Container: container,
				})
				walk(it, index[it])
			}
		}
		walk(h.ID(), -1)
	}
	return out
}

// createCharacterForPlayer spawns the character of a player. Spectators and
// factions without a character flavour get none.
func (m *BombMode) createCharacterForPlayer(in Input, step coresys.Step, id entropy.PlayerID, t *transferredPlayer, changes *[]event.IdentityChange) ecs.EntityID {
	p, ok := m.Players[id]
	if !ok {
		return 0
	}
	c := step.Cosmos
	p.Controlled = 0
	if p.Faction == component.FactionSpectator {
		return 0
	}
	flavour, ok := c.Common().CharacterFlavour(p.Faction)
	if !ok {
		return 0
	}

	h, err := c.CreateEntity(flavour, func(h cosmos.Handle) {
		h.SetFlag(component.FlagSpawnedByMode, true)
		cosmos.Name.Add(h, component.NewName(p.Name))
		if p.Bot {
			h.SetFlag(component.FlagBot, true)
			cosmos.Brain.Add(h, component.Brain{})
		}
	}, func(h cosmos.Handle) {
		m.teleportToNextSpawn(c, h)
		m.initSpawned(in, step, h, t, changes)
	})
	if err != nil {
		return 0
	}
	p.Controlled = h.ID()

	if m.State == StateLive && m.FreezeMsLeft(in, c) > 0 {
		h.SetFrozen(true)
	}
	if m.State == StateWarmup && m.WarmupMsLeft(in, c) <= 0 {
		h.SetFrozen(true)
	}
	return h.ID()
}

func (m *BombMode) initSpawned(in Input, step coresys.Step, h cosmos.Handle, t *transferredPlayer, changes *[]event.IdentityChange) {
	c := step.Cosmos
	if !cosmos.Sentience.Has(h) {
		return
	}
	if t != nil && t.Survived {
		cosmos.Sentience.Get(h).LearntSpells = t.Spells
		created := make([]ecs.EntityID, 0, len(t.Items))
		for _, it := range t.Items {
			target := h.ID()
			if it.Container >= 0 && it.Container < len(created) {
				target = created[it.Container]
			}
			var newID ecs.EntityID
			if c.Alive(target) {
				charges := it.Charges
				if ih, err := c.CreateEntity(it.Flavour, func(ih cosmos.Handle) {
					cosmos.Item.Edit(ih, func(item *component.Item) { item.Charges = charges })
				}, nil); err == nil && cosmos.PickUp(ih, target, it.Slot) {
					newID = ih.ID()
					event.Post(step.Queues, event.PerformedTransfer{Item: newID, To: target, Slot: it.Slot})
				}
			}
			if changes != nil {
				*changes = append(*changes, event.IdentityChange{From: it.Source, To: newID})
			}
			created = append(created, newID)
		}
	} else {
		eq := in.Rules.Factions[system.FactionOf(h.Const())].InitialEquipment
		if m.State == StateWarmup {
			eq = in.Rules.Factions[system.FactionOf(h.Const())].WarmupInitialEquipment
		}
		for _, f := range eq {
			m.giveItem(step, h, f)
		}
	}

	sent := cosmos.Sentience.Get(h)
	for i := range sent.Meters {
		sent.Meters[i].MakeFull()
	}
	if t != nil {
		cosmos.Movement.Get(h).Flags = t.Movement
	}
}

// giveItem creates an item of a flavour in the first free slot of h.
func (m *BombMode) giveItem(step coresys.Step, h cosmos.Handle, f component.FlavourID) ecs.EntityID {
	slot := cosmos.FreeSlot(h)
	if slot == component.SlotNone {
		return 0
	}
	return m.giveItemInto(step, h, f, slot)
}

func (m *BombMode) giveItemInto(step coresys.Step, h cosmos.Handle, f component.FlavourID, slot component.SlotType) ecs.EntityID {
	ih, err := step.Cosmos.CreateEntity(f, nil, nil)
	if err != nil {
		return 0
	}
	if !cosmos.PickUp(ih, h.ID(), slot) {
		step.Cosmos.DeleteEntity(ih.ID())
		return 0
	}
	event.Post(step.Queues, event.PerformedTransfer{Item: ih.ID(), To: h.ID(), Slot: slot})
	return ih.ID()
}

func (m *BombMode) reshuffleSpawns(c *cosmos.Cosmos, f component.Faction) {
	rng := cosmos.NewRNG(m.stepSeed(c) + uint64(f))
	st := &m.Factions[f]

	var last ecs.EntityID
	if n := len(st.ShuffledSpawns); n > 0 {
		last = st.ShuffledSpawns[n-1]
	}
	st.ShuffledSpawns = append(st.ShuffledSpawns[:0], c.Markers(component.MarkerSpawn, f)...)
	rng.Shuffle(len(st.ShuffledSpawns), func(i, j int) {
		st.ShuffledSpawns[i], st.ShuffledSpawns[j] = st.ShuffledSpawns[j], st.ShuffledSpawns[i]
	})
	// Never start the new order where the old one ended.
	if n := len(st.ShuffledSpawns); !last.IsZero() && n > 1 && st.ShuffledSpawns[n-1] == last {
		st.ShuffledSpawns[0], st.ShuffledSpawns[n-1] = st.ShuffledSpawns[n-1], st.ShuffledSpawns[0]
	}
	st.CurrentSpawnIndex = 0
}

func (m *BombMode) teleportToNextSpawn(c *cosmos.Cosmos, h cosmos.Handle) {
	if !cosmos.Sentience.Has(h) {
		return
	}
	f := system.FactionOf(h.Const())
	st := &m.Factions[f]
	if len(st.ShuffledSpawns) == 0 {
		m.reshuffleSpawns(c, f)
		if len(st.ShuffledSpawns) == 0 {
			return
		}
	}
	st.CurrentSpawnIndex %= len(st.ShuffledSpawns)

	spawn := c.ConstHandle(st.ShuffledSpawns[st.CurrentSpawnIndex])
	tr, ok := cosmos.Transform.Read(spawn)
	if !ok {
		m.reshuffleSpawns(c, f)
		return
	}
	cosmos.Teleport(h, tr.Pos)
	if tr.Facing != (component.Vec{}) {
		cosmos.Transform.Edit(h, func(t *component.Transform) { t.Facing = tr.Facing })
	}
	st.CurrentSpawnIndex++
	if st.CurrentSpawnIndex >= len(st.ShuffledSpawns) {
		m.reshuffleSpawns(c, f)
	}
}

func (m *BombMode) giveBombToRandomPlayer(in Input, step coresys.Step) bool {
	if !in.Rules.Bomb.IsSet() {
		return false
	}
	c := step.Cosmos
	p := m.ParticipatingFactions(c)

	var viable []cosmos.Handle
	m.eachPlayerHandleIn(c, p.Bombing, func(_ entropy.PlayerID, h cosmos.Handle) {
		for _, s := range bombSlots {
			if cosmos.ItemInSlot(h, s).IsZero() {
				viable = append(viable, h)
				return
			}
		}
	})
	if len(viable) == 0 {
		return false
	}

	h := viable[m.stepSeed(c)%uint64(len(viable))]
	for _, s := range bombSlots {
		if cosmos.ItemInSlot(h, s).IsZero() {
			return !m.giveItemInto(step, h, in.Rules.Bomb, s).IsZero()
		}
	}
	return true
}

func (m *BombMode) spawnBombNearPlayers(in Input, c *cosmos.Cosmos) {
	if !in.Rules.Bomb.IsSet() {
		return
	}
	var sum component.Vec
	spawns := c.Markers(component.MarkerSpawn, m.ParticipatingFactions(c).Bombing)
	for _, s := range spawns {
		if tr, ok := cosmos.Transform.Read(c.ConstHandle(s)); ok {
			sum = sum.Add(tr.Pos)
		}
	}
	if n := int32(len(spawns)); n > 0 {
		sum = component.Vec{X: sum.X / n, Y: sum.Y / n}
	}
	pos := c.Common().Bounds.Clamp(sum)
	c.CreateEntity(in.Rules.Bomb, func(h cosmos.Handle) {
		cosmos.Transform.Edit(h, func(t *component.Transform) { t.Pos = pos })
	}, nil)
}

func (m *BombMode) respawnTheDead(in Input, step coresys.Step, afterMs int64) {
	c := step.Cosmos
	for _, id := range m.playerIDs() {
		p := m.Players[id]
		h := c.Handle(p.Controlled)
		sent, ok := cosmos.Sentience.Read(h)
		if !ok || !sent.WhenKnockedOut.Set || c.Clock().Since(sent.WhenKnockedOut) < afterMs {
			continue
		}
		m.deleteWithHeldItems(in, step, h)
		p.Controlled = 0
		m.createCharacterForPlayer(in, step, id, nil, nil)
	}
}

// deleteWithHeldItems deletes a character and everything it carries. The bomb
// is dropped instead.
func (m *BombMode) deleteWithHeldItems(in Input, step coresys.Step, h cosmos.Handle) {
	if h.Dead() {
		return
	}
	c := step.Cosmos
	pos, _ := cosmos.Position(h)
	doomed := []ecs.EntityID{h.ID()}
	for _, it := range cosmos.ContainedRecursive(h) {
		ih := c.Handle(it)
		if in.Rules.Bomb.IsSet() && ih.Flavour() == in.Rules.Bomb {
			from := c.ContainerOf(it)
			cosmos.Drop(ih, pos)
			event.Post(step.Queues, event.PerformedTransfer{Item: it, From: from})
			continue
		}
		doomed = append(doomed, it)
	}
	for i := len(doomed) - 1; i >= 0; i-- {
		c.DeleteEntity(doomed[i])
	}
}

func (m *BombMode) spawnCharactersForRecentlyAssigned(in Input, step coresys.Step) {
	c := step.Cosmos
	for _, id := range m.playerIDs() {
		if !m.Players[id].Controlled.IsZero() {
			continue
		}
		switch m.State {
		case StateWarmup:
			m.createCharacterForPlayer(in, step, id, nil, nil)
		case StateLive:
			if len(m.Players) == 1 || m.RoundMsPassed(in, c) <= secs(in.Rules.AllowSpawnForSecsAfterStarting) {
				m.createCharacterForPlayer(in, step, id, nil, nil)
			}
		}
	}
}

func (m *BombMode) spawnAndKickBots(in Input, step coresys.Step) {
	names := in.Rules.BotNames
	requested := min(in.Rules.BotQuota, uint32(len(names)))
	if m.CurrentNumBots == requested {
		return
	}

	if m.CurrentNumBots > requested {
		excess := int(m.CurrentNumBots - requested)
		ids := m.playerIDs()
		var kick []entropy.PlayerID
		for i := len(ids) - 1; i >= 0 && len(kick) < excess; i-- {
			if m.Players[ids[i]].Bot {
				kick = append(kick, ids[i])
			}
		}
		for _, id := range kick {
			m.removePlayer(in, step, id)
		}
		m.CurrentNumBots = requested
	}

	for m.CurrentNumBots < requested {
		id := m.addPlayer(in, names[m.CurrentNumBots])
		m.CurrentNumBots++
		if id.IsSet() {
			m.Players[id].Bot = true
			m.autoAssignFaction(step.Cosmos, id)
		}
	}
}

func (m *BombMode) handleGameCommencing(in Input, step coresys.Step) {
	if m.CommencingTimerMs != -1 {
		m.CommencingTimerMs -= int64(step.Cosmos.Clock().DtMs)
		if m.CommencingTimerMs <= 0 {
			m.CommencingTimerMs = -1
			m.restart(in, step)
		}
		return
	}

	ready := true
	m.ParticipatingFactions(step.Cosmos).Each(func(f component.Faction) {
		if m.NumPlayersIn(f) == 0 {
			ready = false
		}
	})

	switch {
	case !m.ShouldCommenceWhenReady && !ready:
		m.ShouldCommenceWhenReady = true
	case m.ShouldCommenceWhenReady && ready:
		m.CommencingTimerMs = secs(in.Rules.GameCommencingSecs)
		m.ShouldCommenceWhenReady = false
		m.log.Debug("game commencing", zap.Int64("in_ms", m.CommencingTimerMs))
	}
}

func (m *BombMode) clearPlayersRoundState() {
	for _, p := range m.Players {
		if len(p.Stats.Round.DonePurchases) > 0 {
			p.Stats.LastPurchases = p.Stats.Round.DonePurchases
		}
		p.Stats.Round = RoundStats{}
	}
}

func (m *BombMode) setPlayersMoneyToInitial(in Input) {
	for _, p := range m.Players {
		p.Stats.Money = in.Rules.Economy.InitialMoney
	}
}

func (m *BombMode) resetPlayersStats(in Input) {
	for _, p := range m.Players {
		p.Stats = Stats{}
		p.RoundWhenChoseFaction = noFactionChoice
	}
	m.clearPlayersRoundState()
	m.setPlayersMoneyToInitial(in)
}
