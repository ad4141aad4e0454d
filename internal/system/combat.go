package system

import (
	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/core/event"
	coresys "github.com/bombarena/server/internal/core/system"
	"github.com/bombarena/server/internal/cosmos"
)

const defaultAttackCooldownMs = 500

// CombatSystem turns held attack inputs into Damage messages. The weapon in
// the primary hand decides damage and reach; without one the character's own
// flavour is used as fists.
type CombatSystem struct{}

func NewCombatSystem() *CombatSystem { return &CombatSystem{} }

func (s *CombatSystem) Phase() coresys.Phase { return coresys.PhaseCombat }

func (s *CombatSystem) Solve(step coresys.Step) {
	c := step.Cosmos
	sol := c.Solvable()
	now := c.Step()
	for _, id := range sol.Movement.Owners() {
		h := c.Handle(id)
		mv, _ := cosmos.Movement.Read(h)
		if mv.Flags&component.InputAttack == 0 || !conscious(c, id) {
			continue
		}
		if body, ok := cosmos.RigidBody.Read(h); ok && body.Frozen {
			continue
		}
		sent := cosmos.Sentience.Get(h)
		if now < sent.NextAttack {
			continue
		}
		self, ok := h.Def()
		if !ok {
			continue
		}

		tool := self
		toolID := id
		if w := cosmos.ItemInSlot(h, component.SlotPrimaryHand); !w.IsZero() {
			if def, ok := c.ConstHandle(w).Def(); ok && def.Weapon {
				tool, toolID = def, w
			}
		}
		if tool.Damage <= 0 || tool.Range <= 0 {
			continue
		}

		pos, _ := cosmos.Position(h)
		target := nearestHostile(c, id, self.Faction, pos, tool.Range)
		cooldown := tool.AttackCooldownMs
		if cooldown <= 0 {
			cooldown = defaultAttackCooldownMs
		}
		sent.NextAttack = now + max(c.Clock().Steps(int64(cooldown)), 1)
		if target.IsZero() {
			continue
		}
		event.Post(step.Queues, event.Damage{
			Subject:       target,
			Amount:        tool.Damage,
			Consciousness: tool.Damage,
			Origin:        component.Origin{Cause: tool.ID, Entity: toolID, Sender: id},
		})
	}
}

// nearestHostile returns the closest conscious enemy character within reach.
// Ties go to the lower id.
func nearestHostile(c *cosmos.Cosmos, self ecs.EntityID, mine component.Faction, pos component.Vec, reach int32) ecs.EntityID {
	var best ecs.EntityID
	var bestD int64 = -1
	for _, id := range c.QueryRadius(pos, reach) {
		if id == self || id.Tag() != component.KindCharacter || !conscious(c, id) {
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
