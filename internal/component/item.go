package component

import "github.com/bombarena/server/internal/core/ecs"

// Item is a pickable entity. Container is zero while the item lies on the
// ground. Writes go through the synchronized accessor so the containment
// index stays exact.
type Item struct {
	Charges   int32
	Container ecs.EntityID
	Slot      SlotType
	DroppedBy ecs.EntityID
	DroppedAt Stamp
}

// HandFuse is the arming state of an explosive item.
type HandFuse struct {
	WhenArmed      Stamp
	DefuseProgress int32
	Defuser        ecs.EntityID
	Defused        bool
}

func (f *HandFuse) Armed() bool { return f.WhenArmed.Set }

// Sender records whose capability an entity acts with, e.g. who armed a bomb.
type Sender struct {
	Capability ecs.EntityID
}
