package system

import (
	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	coresys "github.com/bombarena/server/internal/core/system"
	"github.com/bombarena/server/internal/cosmos"
)

const (
	aiMinThinkMs = 400
	aiMaxThinkMs = 1200
	aiSightRange = 400
)

// AISystem drives bot characters. Decisions draw from the per-entity stream
// of the current step, so bots behave the same on every replica regardless
// of how many others drew before them.
type AISystem struct{}

func NewAISystem() *AISystem { return &AISystem{} }

func (s *AISystem) Phase() coresys.Phase { return coresys.PhaseAI }

func (s *AISystem) Solve(step coresys.Step) {
	c := step.Cosmos
	sol := c.Solvable()
	now := c.Step()
	for _, id := range sol.Brain.Owners() {
		h := c.Handle(id)
		if !h.HasFlag(component.FlagBot) || !conscious(c, id) {
			continue
		}
		brain := cosmos.Brain.Get(h)
		mv := cosmos.Movement.Find(h)
		if mv == nil {
			continue
		}

		if now >= brain.NextDecision {
			rng := c.RNGFor(id)
			brain.Wander = component.Vec{X: int32(rng.IntN(3)) - 1, Y: int32(rng.IntN(3)) - 1}
			think := aiMinThinkMs + rng.IntN(aiMaxThinkMs-aiMinThinkMs)
			brain.NextDecision = now + c.Clock().Steps(int64(think))
		}

		mv.Flags &^= component.InputMoveUp | component.InputMoveDown | component.InputMoveLeft | component.InputMoveRight | component.InputAttack | component.InputUse
		pos, _ := cosmos.Position(h)
		if target := s.nearestEnemy(c, h.Const(), pos); !target.IsZero() {
			tpos, _ := cosmos.Position(c.ConstHandle(target))
			mv.Aim = tpos.Sub(pos)
			mv.Flags |= component.InputAttack
			mv.Flags |= flagsToward(tpos.Sub(pos))
			continue
		}
		mv.Flags |= flagsToward(brain.Wander)

		// Carry the objective to a site and arm it.
		if def, ok := h.Def(); ok && c.InMarker(pos, component.MarkerBombsite, def.Faction) {
			for _, it := range cosmos.HeldItems(h) {
				if cosmos.HandFuse.Has(c.ConstHandle(it)) {
					mv.Flags |= component.InputUse
					mv.Flags &^= component.InputMoveUp | component.InputMoveDown | component.InputMoveLeft | component.InputMoveRight
				}
			}
		}
	}
}

func (s *AISystem) nearestEnemy(c *cosmos.Cosmos, self cosmos.ConstHandle, pos component.Vec) ecs.EntityID {
	mine := FactionOf(self)
	var best ecs.EntityID
	var bestD int64 = -1
	for _, id := range c.QueryRadius(pos, aiSightRange) {
		if id == self.ID() || id.Tag() != component.KindCharacter || !conscious(c, id) {
			continue
		}
		if !Hostile(mine, FactionOf(c.ConstHandle(id))) {
			continue
		}
		tpos, _ := cosmos.Position(c.ConstHandle(id))
		if d := tpos.DistSq(pos); bestD < 0 || d < bestD {
			best, bestD = id, d
		}
	}
	return best
}

func flagsToward(d component.Vec) component.InputFlags {
	var f component.InputFlags
	switch {
	case d.X > 0:
		f |= component.InputMoveRight
	case d.X < 0:
		f |= component.InputMoveLeft
	}
	switch {
	case d.Y > 0:
		f |= component.InputMoveDown
	case d.Y < 0:
		f |= component.InputMoveUp
	}
	return f
}
