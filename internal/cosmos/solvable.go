package cosmos

import (
	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
)

const DefaultDeltaMs = 16

// Clock is the simulation time. It only moves through the step protocol.
type Clock struct {
	Step uint32
	DtMs int32
}

// Ms converts a step count to milliseconds.
func (c Clock) Ms(steps uint32) int64 { return int64(steps) * int64(c.DtMs) }

// Now is the elapsed time since step zero in milliseconds.
func (c Clock) Now() int64 { return c.Ms(c.Step) }

// Since is the time elapsed since a stamp, or -1 when it is unset.
func (c Clock) Since(s component.Stamp) int64 {
	if !s.Set || s.Step > c.Step {
		return -1
	}
	return c.Ms(c.Step - s.Step)
}

// Steps converts milliseconds to a whole number of steps, rounding up.
func (c Clock) Steps(ms int64) uint32 {
	if c.DtMs <= 0 || ms <= 0 {
		return 0
	}
	return uint32((ms + int64(c.DtMs) - 1) / int64(c.DtMs))
}

// Solvable is the significant state every replica must agree on bit for bit.
// It is what gets hashed and serialized.
type Solvable struct {
	Clock Clock
	Seed  uint64
	Arena *ecs.Arena

	Meta      ecs.Pool[component.Meta]
	Transform ecs.Pool[component.Transform]
	RigidBody ecs.Pool[component.RigidBody]
	Sentience ecs.Pool[component.Sentience]
	Movement  ecs.Pool[component.Movement]
	Item      ecs.Pool[component.Item]
	HandFuse  ecs.Pool[component.HandFuse]
	Sender    ecs.Pool[component.Sender]
	Name      ecs.Pool[component.Name]
	Brain     ecs.Pool[component.Brain]
}

// NewSolvable returns an empty world at step zero.
func NewSolvable(seed uint64) Solvable {
	return Solvable{
		Clock:     Clock{DtMs: DefaultDeltaMs},
		Seed:      seed,
		Arena:     ecs.NewArena(),
		Meta:      ecs.NewPool[component.Meta](component.BitMeta),
		Transform: ecs.NewPool[component.Transform](component.BitTransform),
		RigidBody: ecs.NewPool[component.RigidBody](component.BitRigidBody),
		Sentience: ecs.NewPool[component.Sentience](component.BitSentience),
		Movement:  ecs.NewPool[component.Movement](component.BitMovement),
		Item:      ecs.NewPool[component.Item](component.BitItem),
		HandFuse:  ecs.NewPool[component.HandFuse](component.BitHandFuse),
		Sender:    ecs.NewPool[component.Sender](component.BitSender),
		Name:      ecs.NewPool[component.Name](component.BitName),
		Brain:     ecs.NewPool[component.Brain](component.BitBrain),
	}
}

// registry lists the pools in bit order. It is rebuilt on demand because it
// holds pointers into this particular value.
func (s *Solvable) registry() *ecs.Registry {
	return ecs.NewRegistry(
		&s.Meta, &s.Transform, &s.RigidBody, &s.Sentience, &s.Movement,
		&s.Item, &s.HandFuse, &s.Sender, &s.Name, &s.Brain,
	)
}

// Clone returns a deep copy with identical pool order.
func (s *Solvable) Clone() Solvable {
	return Solvable{
		Clock:     s.Clock,
		Seed:      s.Seed,
		Arena:     s.Arena.Clone(),
		Meta:      s.Meta.Clone(),
		Transform: s.Transform.Clone(),
		RigidBody: s.RigidBody.Clone(),
		Sentience: s.Sentience.Clone(),
		Movement:  s.Movement.Clone(),
		Item:      s.Item.Clone(),
		HandFuse:  s.HandFuse.Clone(),
		Sender:    s.Sender.Clone(),
		Name:      s.Name.Clone(),
		Brain:     s.Brain.Clone(),
	}
}
