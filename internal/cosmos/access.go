package cosmos

import (
	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
)

// Plain accesses a component that has no derived state. Reads and writes go
// straight to the pool.
type Plain[T any] struct {
	pool func(*Solvable) *ecs.Pool[T]
}

func (a Plain[T]) Has(v Viewer) bool {
	c, id := v.view()
	return a.pool(&c.solvable).Has(id)
}

// Read returns a copy of the value.
func (a Plain[T]) Read(v Viewer) (T, bool) {
	c, id := v.view()
	if p := a.pool(&c.solvable).Find(id); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// Find returns the stored value or nil. The pointer is invalidated by the next
// structural change of the pool.
func (a Plain[T]) Find(h Handle) *T {
	return a.pool(&h.c.solvable).Find(h.id)
}

// Get is Find for callers that know the component is present.
func (a Plain[T]) Get(h Handle) *T {
	return a.pool(&h.c.solvable).Get(h.id)
}

func (a Plain[T]) Add(h Handle, v T) *T {
	if !h.Alive() {
		return nil
	}
	p := a.pool(&h.c.solvable)
	h.c.solvable.Arena.SetBit(h.id, p.Bit(), true)
	return p.Add(h.id, v)
}

func (a Plain[T]) Remove(h Handle) bool {
	p := a.pool(&h.c.solvable)
	h.c.solvable.Arena.SetBit(h.id, p.Bit(), false)
	return p.Remove(h.id)
}

// Synchronized accesses a component whose changes must be followed by
// re-inference of the entity. There is no pointer access: every mutation
// goes through Add, Edit or Remove, which re-infer before returning.
type Synchronized[T any] struct {
	pool func(*Solvable) *ecs.Pool[T]
}

func (a Synchronized[T]) Has(v Viewer) bool {
	c, id := v.view()
	return a.pool(&c.solvable).Has(id)
}

func (a Synchronized[T]) Read(v Viewer) (T, bool) {
	c, id := v.view()
	if p := a.pool(&c.solvable).Find(id); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// Get returns a copy of a value known to be present.
func (a Synchronized[T]) Get(v Viewer) T {
	c, id := v.view()
	return *a.pool(&c.solvable).Get(id)
}

func (a Synchronized[T]) Add(h Handle, v T) {
	if !h.Alive() {
		return
	}
	p := a.pool(&h.c.solvable)
	h.c.solvable.Arena.SetBit(h.id, p.Bit(), true)
	p.Add(h.id, v)
	h.c.Reinfer(h.id)
}

// Edit applies fn to the stored value. It reports false when the component
// is absent.
func (a Synchronized[T]) Edit(h Handle, fn func(*T)) bool {
	p := a.pool(&h.c.solvable).Find(h.id)
	if p == nil {
		return false
	}
	fn(p)
	h.c.Reinfer(h.id)
	return true
}

func (a Synchronized[T]) Remove(h Handle) bool {
	p := a.pool(&h.c.solvable)
	h.c.solvable.Arena.SetBit(h.id, p.Bit(), false)
	if !p.Remove(h.id) {
		return false
	}
	h.c.Reinfer(h.id)
	return true
}

// Component accessors. Position and containment drive the inferred caches,
// so Transform, RigidBody and Item are synchronized.
var (
	Meta      = Plain[component.Meta]{func(s *Solvable) *ecs.Pool[component.Meta] { return &s.Meta }}
	Transform = Synchronized[component.Transform]{func(s *Solvable) *ecs.Pool[component.Transform] { return &s.Transform }}
	RigidBody = Synchronized[component.RigidBody]{func(s *Solvable) *ecs.Pool[component.RigidBody] { return &s.RigidBody }}
	Sentience = Plain[component.Sentience]{func(s *Solvable) *ecs.Pool[component.Sentience] { return &s.Sentience }}
	Movement  = Plain[component.Movement]{func(s *Solvable) *ecs.Pool[component.Movement] { return &s.Movement }}
	Item      = Synchronized[component.Item]{func(s *Solvable) *ecs.Pool[component.Item] { return &s.Item }}
	HandFuse  = Plain[component.HandFuse]{func(s *Solvable) *ecs.Pool[component.HandFuse] { return &s.HandFuse }}
	Sender    = Plain[component.Sender]{func(s *Solvable) *ecs.Pool[component.Sender] { return &s.Sender }}
	Name      = Plain[component.Name]{func(s *Solvable) *ecs.Pool[component.Name] { return &s.Name }}
	Brain     = Plain[component.Brain]{func(s *Solvable) *ecs.Pool[component.Brain] { return &s.Brain }}
)
