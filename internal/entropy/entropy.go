// Package entropy defines the per-step input of the simulation. Entropy for
// step N is produced once and must be identical on every replica computing
// step N.
package entropy

import (
	"sort"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
)

// Action is a discrete input a character can press or release.
type Action uint8

const (
	ActionMoveUp Action = iota
	ActionMoveDown
	ActionMoveLeft
	ActionMoveRight
	ActionUse
	ActionAttack
	ActionDrop
	ActionWalk
	ActionCount
)

// Flag returns the input flag an action toggles.
func (a Action) Flag() component.InputFlags {
	if a >= ActionCount {
		return 0
	}
	return component.InputFlags(1) << a
}

// Intent is a press or release of an action by an entity.
type Intent struct {
	Subject ecs.EntityID
	Action  Action
	Pressed bool
}

// Motion is a continuous aim delta for an entity.
type Motion struct {
	Subject ecs.EntityID
	Delta   component.Vec
}

// Cosmic is the entity-keyed part of the entropy. Order is significant.
type Cosmic struct {
	Intents []Intent
	Motions []Motion
}

func (c *Cosmic) Empty() bool {
	return len(c.Intents) == 0 && len(c.Motions) == 0
}

// Total is everything a step consumes.
type Total struct {
	Cosmic Cosmic
	Mode   Mode
}

func (t *Total) Empty() bool {
	return t.Cosmic.Empty() && t.Mode.Empty()
}

// Clear resets the entropy for reuse, keeping capacity.
func (t *Total) Clear() {
	t.Cosmic.Intents = t.Cosmic.Intents[:0]
	t.Cosmic.Motions = t.Cosmic.Motions[:0]
	t.Mode = Mode{Players: t.Mode.Players[:0]}
}

// Normalize puts per-player commands in player order. Commands of one player
// keep their arrival order.
func (t *Total) Normalize() {
	sort.SliceStable(t.Mode.Players, func(i, j int) bool {
		return t.Mode.Players[i].Player < t.Mode.Players[j].Player
	})
}
