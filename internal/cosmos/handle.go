package cosmos

import (
	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
)

// Viewer is implemented by both handle kinds. Read-only helpers take a
// Viewer; anything that mutates takes a Handle.
type Viewer interface {
	view() (*Cosmos, ecs.EntityID)
}

// ConstHandle is a read-only borrow of one entity. It resolves the id on
// every access and must not be kept across steps; keep the id instead.
type ConstHandle struct {
	c  *Cosmos
	id ecs.EntityID
}

// Handle is the mutable borrow of one entity.
type Handle struct {
	c  *Cosmos
	id ecs.EntityID
}

func (h ConstHandle) view() (*Cosmos, ecs.EntityID) { return h.c, h.id }
func (h Handle) view() (*Cosmos, ecs.EntityID)      { return h.c, h.id }

func (h ConstHandle) ID() ecs.EntityID { return h.id }
func (h Handle) ID() ecs.EntityID      { return h.id }

func (h ConstHandle) Alive() bool { return h.c != nil && h.c.solvable.Arena.Alive(h.id) }
func (h Handle) Alive() bool      { return h.Const().Alive() }
func (h ConstHandle) Dead() bool  { return !h.Alive() }
func (h Handle) Dead() bool       { return !h.Alive() }

func (h ConstHandle) Tag() ecs.TypeTag { return h.id.Tag() }
func (h Handle) Tag() ecs.TypeTag      { return h.id.Tag() }

// Const drops write access.
func (h Handle) Const() ConstHandle { return ConstHandle{c: h.c, id: h.id} }

func (h ConstHandle) Cosmos() *Cosmos { return h.c }
func (h Handle) Cosmos() *Cosmos      { return h.c }

// Flavour returns the entity's flavour id, or zero when dead.
func (h ConstHandle) Flavour() component.FlavourID {
	if m := h.c.solvable.Meta.Find(h.id); m != nil {
		return m.Flavour
	}
	return 0
}

func (h Handle) Flavour() component.FlavourID { return h.Const().Flavour() }

// Def returns the flavour definition the entity was created from.
func (h ConstHandle) Def() (*Flavour, bool) {
	return h.c.common.Flavour(h.Flavour())
}

func (h Handle) Def() (*Flavour, bool) { return h.Const().Def() }

// Born is the step the entity was created on.
func (h ConstHandle) Born() uint32 {
	if m := h.c.solvable.Meta.Find(h.id); m != nil {
		return m.Born
	}
	return 0
}

func (h ConstHandle) HasFlag(f ecs.Flags) bool {
	return h.c.solvable.Arena.Flags(h.id)&f != 0
}

func (h Handle) HasFlag(f ecs.Flags) bool { return h.Const().HasFlag(f) }

func (h Handle) SetFlag(f ecs.Flags, on bool) {
	h.c.solvable.Arena.SetFlag(h.id, f, on)
}

// SetFrozen stops or releases the body. Frozen bodies keep their position.
func (h Handle) SetFrozen(frozen bool) {
	RigidBody.Edit(h, func(b *component.RigidBody) {
		b.Frozen = frozen
		if frozen {
			b.Velocity = component.Vec{}
			b.Impulse = component.Vec{}
		}
	})
}
