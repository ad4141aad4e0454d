package event

import (
	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/entropy"
)

// Damage asks the sentience pass to reduce a character's meters.
type Damage struct {
	Subject       ecs.EntityID
	Amount        int32
	Consciousness int32
	Origin        component.Origin
}

type HealthResult uint8

const (
	HealthNone HealthResult = iota
	HealthDeath
	HealthLossOfConsciousness
)

// HealthEvent reports a change of a character's state caused by damage.
type HealthEvent struct {
	Subject      ecs.EntityID
	Result       HealthResult
	WasConscious bool
	Origin       component.Origin
}

// QueueDeletion asks the deletion pass to delete an entity at the end of the
// solve.
type QueueDeletion struct {
	Subject ecs.EntityID
	Reason  string
}

// TransferRequest moves an item into a container slot, or onto the ground
// when Target is zero.
type TransferRequest struct {
	Item   ecs.EntityID
	Target ecs.EntityID
	Slot   component.SlotType
}

// PerformedTransfer is posted after an item changed hands.
type PerformedTransfer struct {
	Item ecs.EntityID
	From ecs.EntityID
	To   ecs.EntityID
	Slot component.SlotType
}

type BattleEventKind uint8

const (
	BattleStart BattleEventKind = iota
	BattleBombPlanted
	BattleImDefusingTheBomb
	BattleInterruptedDefusing
	BattleBombDefused
	BattleBombExploded
	BattleWin
	BattleLoss
)

// BattleEvent is a gameplay milestone caused by one character.
type BattleEvent struct {
	Subject ecs.EntityID
	Event   BattleEventKind
}

// StartSound asks the audio collaborator to play the sound bound to an event
// for every listener of a faction.
type StartSound struct {
	Event           BattleEventKind
	ListenerFaction component.Faction
	Winner          component.Faction
	Variation       uint64
	Predictable     bool
}

type IdentityChange struct {
	From ecs.EntityID
	To   ecs.EntityID
}

// ChangedIdentities maps characters of a finished round to their successors,
// so viewers can keep following the same player.
type ChangedIdentities struct {
	Changes []IdentityChange
}

type NotificationKind uint8

const (
	NotifyJoined NotificationKind = iota
	NotifyLeft
	NotifyFactionChoice
)

type FactionChoiceResult uint8

const (
	ChoiceFailed FactionChoiceResult = iota
	ChoiceChanged
	ChoiceTheSame
	ChoiceBestBalanceAlready
	ChoiceTeamIsFull
	ChoiceTooFast
	ChoiceNeedToBeAliveForSpectator
)

// GameNotification tells clients about roster changes.
type GameNotification struct {
	Player  entropy.PlayerID
	Name    string
	Kind    NotificationKind
	Choice  FactionChoiceResult
	Faction component.Faction
}

// Explosion is posted when an explosive detonates.
type Explosion struct {
	Source ecs.EntityID
	Pos    component.Vec
	Radius int32
}
