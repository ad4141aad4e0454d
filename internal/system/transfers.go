package system

import (
	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/core/event"
	coresys "github.com/bombarena/server/internal/core/system"
	"github.com/bombarena/server/internal/cosmos"
)

const (
	pickupReach = 32
	// A character cannot pick up what it dropped for this long.
	repickupDelayMs = 1000
)

// TransferSystem moves items between the ground and characters. Explicit
// TransferRequests posted earlier in the step run first, in order; then
// characters holding Drop release their primary item and conscious
// characters pick up what lies within reach.
type TransferSystem struct{}

func NewTransferSystem() *TransferSystem { return &TransferSystem{} }

func (s *TransferSystem) Phase() coresys.Phase { return coresys.PhaseTransfers }

func (s *TransferSystem) Solve(step coresys.Step) {
	c := step.Cosmos
	reqs := event.Queue[event.TransferRequest](step.Queues)
	for i := 0; i < len(reqs); i++ {
		s.perform(step, reqs[i])
	}

	sol := c.Solvable()
	for _, id := range sol.Movement.Owners() {
		h := c.Handle(id)
		mv := cosmos.Movement.Find(h)
		if mv == nil || mv.Flags&component.InputDrop == 0 {
			continue
		}
		mv.Flags &^= component.InputDrop
		if it := dropCandidate(h); !it.IsZero() {
			s.perform(step, event.TransferRequest{Item: it})
		}
	}

	for _, id := range sol.Movement.Owners() {
		if !conscious(c, id) {
			continue
		}
		s.pickUpNearby(step, c.Handle(id))
	}
}

func dropCandidate(h cosmos.Handle) ecs.EntityID {
	for _, slot := range component.CarrySlots {
		if it := cosmos.ItemInSlot(h, slot); !it.IsZero() {
			return it
		}
	}
	return 0
}

func (s *TransferSystem) pickUpNearby(step coresys.Step, h cosmos.Handle) {
	c := step.Cosmos
	pos, _ := cosmos.Position(h)
	mine := FactionOf(h.Const())
	for _, it := range c.QueryRadius(pos, pickupReach) {
		if it.Tag() != component.KindItem {
			continue
		}
		ih := c.ConstHandle(it)
		item, ok := cosmos.Item.Read(ih)
		if !ok {
			continue
		}
		if item.DroppedBy == h.ID() && c.Clock().Since(item.DroppedAt) < repickupDelayMs {
			continue
		}
		if fuse, ok := cosmos.HandFuse.Read(ih); ok && (fuse.Armed() || fuse.Defused) {
			continue
		}
		if def, ok := ih.Def(); ok && def.Faction != component.FactionSpectator && def.Faction != mine {
			continue
		}
		slot := cosmos.FreeSlot(h)
		if slot == component.SlotNone {
			return
		}
		s.perform(step, event.TransferRequest{Item: it, Target: h.ID(), Slot: slot})
	}
}

// perform executes one transfer. Requests naming a dead item or target, or
// an occupied slot, are dropped.
func (s *TransferSystem) perform(step coresys.Step, req event.TransferRequest) {
	c := step.Cosmos
	item := c.Handle(req.Item)
	if !item.Alive() || !cosmos.Item.Has(item) {
		return
	}
	from := c.ContainerOf(req.Item)
	if req.Target.IsZero() {
		if from.IsZero() {
			return
		}
		pos, _ := cosmos.Position(item)
		cosmos.Drop(item, pos)
	} else {
		if req.Target == from {
			return
		}
		if !c.Alive(req.Target) || !cosmos.ItemInSlot(c.ConstHandle(req.Target), req.Slot).IsZero() {
			return
		}
		if !cosmos.PickUp(item, req.Target, req.Slot) {
			return
		}
	}
	event.Post(step.Queues, event.PerformedTransfer{Item: req.Item, From: from, To: req.Target, Slot: req.Slot})
}
