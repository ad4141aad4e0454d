package cosmos

import "github.com/bombarena/server/internal/component"

// Position returns where v is in the world. Contained items share the
// position of their outermost container.
func Position(v Viewer) (component.Vec, bool) {
	c, _ := v.view()
	owner := Owner(v)
	if tr := c.solvable.Transform.Find(owner); tr != nil {
		return tr.Pos, true
	}
	return component.Vec{}, false
}

// Teleport moves a body and stops it.
func Teleport(h Handle, pos component.Vec) {
	pos = h.c.common.Bounds.Clamp(pos)
	Transform.Edit(h, func(t *component.Transform) { t.Pos = pos })
	RigidBody.Edit(h, func(b *component.RigidBody) {
		b.Velocity = component.Vec{}
		b.Impulse = component.Vec{}
	})
}
