package component

import "github.com/bombarena/server/internal/core/ecs"

// Entity kinds. The kind decides which components an entity is created with.
const (
	KindCharacter ecs.TypeTag = iota + 1
	KindItem
	KindMarker
	KindTheme
)

// Component bits, also the order of pools in a snapshot.
const (
	BitMeta ecs.Bit = iota
	BitTransform
	BitRigidBody
	BitSentience
	BitMovement
	BitItem
	BitHandFuse
	BitSender
	BitName
	BitBrain
)

// Entity flags kept in the arena.
const (
	FlagBot ecs.Flags = 1 << iota
	FlagSpawnedByMode
)

// FlavourID names an entry of the flavour table. Zero is unset.
type FlavourID uint16

func (f FlavourID) IsSet() bool { return f != 0 }

// Faction is the team an entity or player belongs to.
type Faction uint8

const (
	FactionSpectator Faction = iota
	FactionMetropolis
	FactionAtlantis
	FactionResistance
	FactionDefault
	FactionCount
)

// PlayableFactions are the factions that can field characters, in the fixed
// order every per-faction loop uses.
var PlayableFactions = [...]Faction{FactionMetropolis, FactionAtlantis, FactionResistance}

func (f Faction) String() string {
	switch f {
	case FactionSpectator:
		return "spectator"
	case FactionMetropolis:
		return "metropolis"
	case FactionAtlantis:
		return "atlantis"
	case FactionResistance:
		return "resistance"
	case FactionDefault:
		return "default"
	default:
		return "unknown"
	}
}

// ParseFaction maps a table name to a faction. Unknown names map to
// FactionDefault.
func ParseFaction(s string) Faction {
	for f := FactionSpectator; f < FactionCount; f++ {
		if f.String() == s {
			return f
		}
	}
	return FactionDefault
}

// SlotType is the inventory slot an item occupies inside its container.
type SlotType uint8

const (
	SlotNone SlotType = iota
	SlotPrimaryHand
	SlotSecondaryHand
	SlotOverBack
	SlotBelt
	SlotCount
)

// CarrySlots are the slots a character can hold items in, in pickup order.
var CarrySlots = [...]SlotType{SlotPrimaryHand, SlotSecondaryHand, SlotOverBack, SlotBelt}

// MarkerType classifies area markers placed in a level.
type MarkerType uint8

const (
	MarkerNone MarkerType = iota
	MarkerSpawn
	MarkerBombsite
	MarkerBuyZone
)
