// Package cosmos holds the complete simulation state: the significant state
// every replica agrees on, the shared definitions it is built from and the
// caches inferred from both.
package cosmos

import (
	"fmt"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
)

// Refresh tells ChangeSolvable whether the change needs the inferred caches
// rebuilt.
type Refresh bool

const (
	DoRefresh   Refresh = true
	DontRefresh Refresh = false
)

// Profiler collects diagnostics. It is never hashed or saved.
type Profiler struct {
	Reinferences    uint64
	EntitiesCreated uint64
	EntitiesDeleted uint64
}

// Cosmos is the world. It is owned by a single goroutine.
type Cosmos struct {
	id        uint64
	common    Common
	solvable  Solvable
	inferred  inferred
	suspended bool

	Profiler Profiler
}

// Factory hands out cosmos identities. Identity only tells consumers that the
// world they cached against has been replaced; gameplay never reads it.
type Factory struct {
	next uint64
}

func (f *Factory) issue() uint64 {
	f.next++
	return f.next
}

// NewCosmos returns an empty world over the given definitions.
func (f *Factory) NewCosmos(common Common, seed uint64) *Cosmos {
	c := &Cosmos{
		id:       f.issue(),
		common:   common,
		solvable: NewSolvable(seed),
		inferred: newInferred(defaultCellSize),
	}
	return c
}

// Clone deep-copies c under a fresh identity. Pool order is preserved, so the
// copy steps identically.
func (f *Factory) Clone(c *Cosmos) *Cosmos {
	out := &Cosmos{
		id:       f.issue(),
		common:   c.common.Clone(),
		solvable: c.solvable.Clone(),
		inferred: newInferred(c.inferred.grid.cellSize),
	}
	out.reinferAll()
	return out
}

// RequestResample gives c a fresh identity so consumers drop their caches.
func (f *Factory) RequestResample(c *Cosmos) {
	c.id = f.issue()
}

func (c *Cosmos) ID() uint64 { return c.id }

// Common returns the shared definitions. Change them through ChangeCommon.
func (c *Cosmos) Common() *Common { return &c.common }

// Solvable returns the significant state for reading. Change it through
// ChangeSolvable or entity handles.
func (c *Cosmos) Solvable() *Solvable { return &c.solvable }

func (c *Cosmos) Clock() Clock { return c.solvable.Clock }

func (c *Cosmos) Step() uint32 { return c.solvable.Clock.Step }

// Count is the number of live entities.
func (c *Cosmos) Count() int { return c.solvable.Arena.Count() }

func (c *Cosmos) Alive(id ecs.EntityID) bool { return c.solvable.Arena.Alive(id) }

// Handle borrows id for mutation. The handle may be dead; check Alive.
func (c *Cosmos) Handle(id ecs.EntityID) Handle { return Handle{c: c, id: id} }

func (c *Cosmos) ConstHandle(id ecs.EntityID) ConstHandle { return ConstHandle{c: c, id: id} }

// ChangeSolvable is the only way to bulk-edit the significant state. When fn
// returns DoRefresh every inferred cache is rebuilt afterwards.
func (c *Cosmos) ChangeSolvable(fn func(*Solvable) Refresh) {
	if fn(&c.solvable) == DoRefresh {
		c.reinferAll()
	}
}

// Set replaces the significant state with a deep copy of s.
func (c *Cosmos) Set(s *Solvable) {
	c.ChangeSolvable(func(dst *Solvable) Refresh {
		*dst = s.Clone()
		return DoRefresh
	})
}

// SetFixedDelta changes the step length. It is only honoured at step zero so
// that stamps already taken keep their meaning.
func (c *Cosmos) SetFixedDelta(ms int32) bool {
	if ms <= 0 || c.solvable.Clock.Step != 0 {
		return false
	}
	c.ChangeSolvable(func(s *Solvable) Refresh {
		s.Clock.DtMs = ms
		return DontRefresh
	})
	return true
}

// AdvanceClock moves the clock one step. Only the step protocol calls it.
func (c *Cosmos) AdvanceClock() {
	c.ChangeSolvable(func(s *Solvable) Refresh {
		s.Clock.Step++
		return DontRefresh
	})
}

// ChangeCommon edits the shared definitions and re-infers everything.
func (c *Cosmos) ChangeCommon(fn func(*Common)) {
	fn(&c.common)
	c.reinferAll()
}

// CreateEntity allocates an entity of a flavour with its default components.
// init may edit the raw values; no re-inference happens until it returns.
// post runs after the entity has been inferred and may create further
// entities.
func (c *Cosmos) CreateEntity(flavour component.FlavourID, init, post func(Handle)) (Handle, error) {
	def, ok := c.common.Flavour(flavour)
	if !ok {
		return Handle{}, fmt.Errorf("%w: %d", ErrUnknownFlavour, flavour)
	}
	s := &c.solvable
	h := Handle{c: c, id: s.Arena.Allocate(def.Tag)}

	c.suspended = true
	c.addDefaults(h, def)
	if init != nil {
		init(h)
	}
	c.suspended = false
	c.reinfer(h.id)
	c.Profiler.EntitiesCreated++

	if post != nil {
		post(h)
	}
	return h, nil
}

func (c *Cosmos) addDefaults(h Handle, def *Flavour) {
	Meta.Add(h, component.Meta{Flavour: def.ID, Born: c.solvable.Clock.Step})
	switch def.Tag {
	case component.KindCharacter:
		Transform.Add(h, component.Transform{Facing: component.Vec{X: 100}})
		RigidBody.Add(h, component.RigidBody{})
		var sent component.Sentience
		sent.Meters[component.MeterHealth] = component.Meter{Value: def.MaxHealth, Maximum: def.MaxHealth}
		cons := def.MaxConsciousness
		if cons <= 0 {
			cons = def.MaxHealth
		}
		sent.Meters[component.MeterConsciousness] = component.Meter{Value: cons, Maximum: cons}
		Sentience.Add(h, sent)
		Movement.Add(h, component.Movement{})
		Name.Add(h, component.NewName(def.Name))
	case component.KindItem:
		Transform.Add(h, component.Transform{})
		charges := def.Charges
		if charges <= 0 {
			charges = 1
		}
		Item.Add(h, component.Item{Charges: charges})
		if def.Bomb {
			HandFuse.Add(h, component.HandFuse{})
			Sender.Add(h, component.Sender{})
		}
	case component.KindMarker:
		Transform.Add(h, component.Transform{})
	}
}

// DeleteEntity removes a live entity. Items it contains are dropped where it
// stood. It reports false for a dead id.
func (c *Cosmos) DeleteEntity(id ecs.EntityID) bool {
	s := &c.solvable
	if !s.Arena.Alive(id) {
		return false
	}
	if items := c.ItemsIn(id); len(items) > 0 {
		pos, _ := Position(c.ConstHandle(id))
		for _, it := range items {
			Drop(c.Handle(it), pos)
		}
	}
	c.inferred.forget(id)
	s.registry().RemoveAll(id)
	s.Arena.Free(id)
	c.Profiler.EntitiesDeleted++
	return true
}
