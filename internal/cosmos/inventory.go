package cosmos

import (
	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
)

// HeldItems returns the items directly inside v, ordered by id.
func HeldItems(v Viewer) []ecs.EntityID {
	c, id := v.view()
	return c.ItemsIn(id)
}

// ItemInSlot returns the item occupying a slot of v, or zero.
func ItemInSlot(v Viewer, slot component.SlotType) ecs.EntityID {
	c, _ := v.view()
	for _, it := range HeldItems(v) {
		if item := c.solvable.Item.Find(it); item != nil && item.Slot == slot {
			return it
		}
	}
	return 0
}

// FreeSlot returns the first carry slot of v that holds nothing, or SlotNone.
func FreeSlot(v Viewer) component.SlotType {
	for _, s := range component.CarrySlots {
		if ItemInSlot(v, s).IsZero() {
			return s
		}
	}
	return component.SlotNone
}

// ContainedRecursive returns every item inside v, depth first.
func ContainedRecursive(v Viewer) []ecs.EntityID {
	c, id := v.view()
	var out []ecs.EntityID
	var walk func(ecs.EntityID)
	walk = func(parent ecs.EntityID) {
		for _, it := range c.ItemsIn(parent) {
			out = append(out, it)
			walk(it)
		}
	}
	walk(id)
	return out
}

// Owner returns the outermost container of v, or v itself when it lies in
// the world.
func Owner(v Viewer) ecs.EntityID {
	c, id := v.view()
	for depth := 0; depth < 16; depth++ {
		parent := c.ContainerOf(id)
		if parent.IsZero() {
			return id
		}
		id = parent
	}
	return id
}

// HoldsFlavour returns the first item of a flavour held by v, or zero.
func HoldsFlavour(v Viewer, f component.FlavourID) ecs.EntityID {
	c, _ := v.view()
	for _, it := range ContainedRecursive(v) {
		if c.ConstHandle(it).Flavour() == f {
			return it
		}
	}
	return 0
}

// PickUp moves an item into a slot of a container.
func PickUp(item Handle, container ecs.EntityID, slot component.SlotType) bool {
	if !item.c.Alive(container) || container == item.id {
		return false
	}
	return Item.Edit(item, func(it *component.Item) {
		it.Container = container
		it.Slot = slot
	})
}

// Drop puts an item on the ground at pos and remembers who held it.
func Drop(item Handle, pos component.Vec) bool {
	prev := item.c.ContainerOf(item.id)
	Transform.Edit(item, func(t *component.Transform) { t.Pos = pos })
	return Item.Edit(item, func(it *component.Item) {
		it.Container = 0
		it.Slot = component.SlotNone
		it.DroppedBy = prev
		it.DroppedAt = component.At(item.c.solvable.Clock.Step)
	})
}
