package system

import (
	"github.com/bombarena/server/internal/component"
	coresys "github.com/bombarena/server/internal/core/system"
	"github.com/bombarena/server/internal/cosmos"
)

// PhysicsSystem is a small integer kinematics pass. Bodies move by their
// velocity plus any impulse; impulses halve every step. Frozen bodies and
// unconscious characters do not move on their own.
type PhysicsSystem struct{}

func NewPhysicsSystem() *PhysicsSystem { return &PhysicsSystem{} }

func (s *PhysicsSystem) Phase() coresys.Phase { return coresys.PhasePhysics }

func (s *PhysicsSystem) Solve(step coresys.Step) {
	c := step.Cosmos
	sol := c.Solvable()
	bounds := c.Common().Bounds
	for _, id := range sol.RigidBody.Owners() {
		h := c.Handle(id)
		body := cosmos.RigidBody.Get(h)
		if body.Frozen {
			continue
		}

		var vel component.Vec
		if mv, ok := cosmos.Movement.Read(h); ok && conscious(c, id) {
			speed := int32(0)
			if def, ok := h.Def(); ok {
				speed = def.Speed
			}
			if mv.Flags&component.InputWalk != 0 {
				speed /= 2
			}
			d := direction(mv.Flags)
			vel = component.Vec{X: d.X * speed, Y: d.Y * speed}
		}

		delta := vel.Add(body.Impulse)
		cosmos.RigidBody.Edit(h, func(b *component.RigidBody) {
			b.Velocity = vel
			b.Impulse = component.Vec{X: b.Impulse.X / 2, Y: b.Impulse.Y / 2}
		})
		if delta == (component.Vec{}) {
			continue
		}
		cosmos.Transform.Edit(h, func(t *component.Transform) {
			t.Pos = bounds.Clamp(t.Pos.Add(delta))
		})
	}
}
