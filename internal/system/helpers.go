package system

import (
	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/cosmos"
)

// FactionOf is the faction of the flavour an entity was created from.
func FactionOf(v cosmos.ConstHandle) component.Faction {
	if def, ok := v.Def(); ok {
		return def.Faction
	}
	return component.FactionSpectator
}

// Hostile reports whether two factions fight each other.
func Hostile(a, b component.Faction) bool {
	if a == b {
		return false
	}
	return a != component.FactionSpectator && b != component.FactionSpectator
}

// conscious reports whether id is a live character able to act.
func conscious(c *cosmos.Cosmos, id ecs.EntityID) bool {
	s, ok := cosmos.Sentience.Read(c.ConstHandle(id))
	return ok && s.Conscious()
}

// direction turns held movement flags into a unit step on each axis.
func direction(f component.InputFlags) component.Vec {
	var d component.Vec
	if f&component.InputMoveUp != 0 {
		d.Y--
	}
	if f&component.InputMoveDown != 0 {
		d.Y++
	}
	if f&component.InputMoveLeft != 0 {
		d.X--
	}
	if f&component.InputMoveRight != 0 {
		d.X++
	}
	return d
}

// isqrt is the integer square root, used instead of floating point so every
// platform agrees.
func isqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// facingOf scales v so its longer axis is 100.
func facingOf(v component.Vec) component.Vec {
	ax, ay := abs32(v.X), abs32(v.Y)
	m := max(ax, ay)
	if m == 0 {
		return component.Vec{}
	}
	return component.Vec{X: int32(int64(v.X) * 100 / int64(m)), Y: int32(int64(v.Y) * 100 / int64(m))}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
