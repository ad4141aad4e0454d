package system

import (
	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/core/event"
	coresys "github.com/bombarena/server/internal/core/system"
	"github.com/bombarena/server/internal/cosmos"
)

const defaultDefuseReach = 48

// FuseSystem runs explosives: a character holding one arms it by keeping Use
// pressed inside a bombsite of its faction; an enemy defuses it by keeping
// Use pressed next to it; an armed, undefused fuse detonates after its delay.
type FuseSystem struct{}

func NewFuseSystem() *FuseSystem { return &FuseSystem{} }

func (s *FuseSystem) Phase() coresys.Phase { return coresys.PhaseFuse }

func (s *FuseSystem) Solve(step coresys.Step) {
	c := step.Cosmos
	sol := c.Solvable()
	for _, id := range sol.HandFuse.Owners() {
		h := c.Handle(id)
		def, ok := h.Def()
		if !ok {
			continue
		}
		fuse := cosmos.HandFuse.Get(h)
		switch {
		case fuse.Defused:
		case fuse.Armed():
			if s.detonate(step, h, def, fuse) {
				continue
			}
			s.defuse(step, h, def, fuse)
		default:
			s.arm(step, h, def)
		}
	}
}

func (s *FuseSystem) arm(step coresys.Step, bomb cosmos.Handle, def *cosmos.Flavour) {
	c := step.Cosmos
	holder := c.ContainerOf(bomb.ID())
	if holder.IsZero() || !conscious(c, holder) {
		return
	}
	hh := c.Handle(holder)
	mv, _ := cosmos.Movement.Read(hh)
	sent := cosmos.Sentience.Get(hh)
	pos, _ := cosmos.Position(hh)
	if mv.Flags&component.InputUse == 0 || !c.InMarker(pos, component.MarkerBombsite, FactionOf(hh.Const())) {
		sent.ArmingMs = 0
		return
	}
	sent.ArmingMs += c.Clock().DtMs
	if sent.ArmingMs < def.ArmMs {
		return
	}
	sent.ArmingMs = 0
	cosmos.Drop(bomb, pos)
	fuse := cosmos.HandFuse.Get(bomb)
	fuse.WhenArmed = component.At(c.Step())
	cosmos.Sender.Get(bomb).Capability = holder
	event.Post(step.Queues, event.BattleEvent{Subject: holder, Event: event.BattleBombPlanted})
}

func (s *FuseSystem) defuse(step coresys.Step, bomb cosmos.Handle, def *cosmos.Flavour, fuse *component.HandFuse) {
	c := step.Cosmos
	pos, _ := cosmos.Position(bomb)
	planter := cosmos.Sender.Get(bomb).Capability
	planterFaction := def.Faction
	if c.Alive(planter) {
		planterFaction = FactionOf(c.ConstHandle(planter))
	}
	reach := def.Range
	if reach <= 0 {
		reach = defaultDefuseReach
	}

	if !fuse.Defuser.IsZero() && !s.keepsDefusing(c, fuse.Defuser, pos, reach) {
		event.Post(step.Queues, event.BattleEvent{Subject: fuse.Defuser, Event: event.BattleInterruptedDefusing})
		fuse.Defuser = 0
		fuse.DefuseProgress = 0
	}
	if fuse.Defuser.IsZero() {
		fuse.Defuser = s.findDefuser(c, planterFaction, pos, reach)
		if fuse.Defuser.IsZero() {
			return
		}
		event.Post(step.Queues, event.BattleEvent{Subject: fuse.Defuser, Event: event.BattleImDefusingTheBomb})
	}
	fuse.DefuseProgress += c.Clock().DtMs
	if fuse.DefuseProgress >= def.DefuseMs {
		fuse.Defused = true
		event.Post(step.Queues, event.BattleEvent{Subject: fuse.Defuser, Event: event.BattleBombDefused})
	}
}

func (s *FuseSystem) keepsDefusing(c *cosmos.Cosmos, who ecs.EntityID, pos component.Vec, reach int32) bool {
	if !conscious(c, who) {
		return false
	}
	h := c.ConstHandle(who)
	mv, _ := cosmos.Movement.Read(h)
	wpos, _ := cosmos.Position(h)
	return mv.Flags&component.InputUse != 0 && wpos.DistSq(pos) <= int64(reach)*int64(reach)
}

func (s *FuseSystem) findDefuser(c *cosmos.Cosmos, planter component.Faction, pos component.Vec, reach int32) ecs.EntityID {
	for _, id := range c.QueryRadius(pos, reach) {
		if id.Tag() != component.KindCharacter {
			continue
		}
		if !Hostile(planter, FactionOf(c.ConstHandle(id))) {
			continue
		}
		if s.keepsDefusing(c, id, pos, reach) {
			return id
		}
	}
	return 0
}

func (s *FuseSystem) detonate(step coresys.Step, bomb cosmos.Handle, def *cosmos.Flavour, fuse *component.HandFuse) bool {
	c := step.Cosmos
	if c.Clock().Since(fuse.WhenArmed) < int64(def.FuseDelayMs) {
		return false
	}
	pos, _ := cosmos.Position(bomb)
	sender := cosmos.Sender.Get(bomb).Capability
	event.Post(step.Queues, event.Explosion{Source: bomb.ID(), Pos: pos, Radius: def.ExplosionRadius})
	event.Post(step.Queues, event.BattleEvent{Subject: sender, Event: event.BattleBombExploded})

	r := int64(def.ExplosionRadius)
	if r > 0 && def.ExplosionDamage > 0 {
		for _, id := range c.QueryRadius(pos, def.ExplosionRadius) {
			if !cosmos.Sentience.Has(c.ConstHandle(id)) {
				continue
			}
			tpos, _ := cosmos.Position(c.ConstHandle(id))
			d := isqrt(tpos.DistSq(pos))
			amount := int32(int64(def.ExplosionDamage) * (r - d) / r)
			if amount <= 0 {
				continue
			}
			event.Post(step.Queues, event.Damage{
				Subject:       id,
				Amount:        amount,
				Consciousness: amount,
				Origin:        component.Origin{Cause: def.ID, Entity: bomb.ID(), Sender: sender},
			})
		}
	}
	event.Post(step.Queues, event.QueueDeletion{Subject: bomb.ID(), Reason: "detonated"})
	return true
}
