package system

import (
	"github.com/bombarena/server/internal/component"
	coresys "github.com/bombarena/server/internal/core/system"
	"github.com/bombarena/server/internal/cosmos"
)

// maxAim bounds the accumulated aim vector.
const maxAim = 1 << 16

// IntentSystem applies the cosmic entropy: intents toggle held input flags
// and motions move the aim. Entropy order is applied as given.
type IntentSystem struct{}

func NewIntentSystem() *IntentSystem { return &IntentSystem{} }

func (s *IntentSystem) Phase() coresys.Phase { return coresys.PhaseIntent }

func (s *IntentSystem) Solve(step coresys.Step) {
	c := step.Cosmos
	for _, in := range step.Entropy.Cosmic.Intents {
		h := c.Handle(in.Subject)
		mv := cosmos.Movement.Find(h)
		if mv == nil {
			continue
		}
		if in.Pressed {
			mv.Flags |= in.Action.Flag()
		} else {
			mv.Flags &^= in.Action.Flag()
		}
	}
	for _, m := range step.Entropy.Cosmic.Motions {
		h := c.Handle(m.Subject)
		mv := cosmos.Movement.Find(h)
		if mv == nil {
			continue
		}
		mv.Aim = component.Vec{X: addAim(mv.Aim.X, m.Delta.X), Y: addAim(mv.Aim.Y, m.Delta.Y)}
		if f := facingOf(mv.Aim); f != (component.Vec{}) {
			cosmos.Transform.Edit(h, func(t *component.Transform) { t.Facing = f })
		}
	}
}

// addAim accumulates a client delta, widened so a hostile delta cannot wrap.
func addAim(aim, delta int32) int32 {
	return int32(min(max(int64(aim)+int64(delta), -maxAim), maxAim))
}
