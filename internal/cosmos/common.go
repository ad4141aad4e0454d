package cosmos

import (
	"errors"
	"fmt"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
)

var ErrUnknownFlavour = errors.New("cosmos: unknown flavour")

// Flavour is the shared definition an entity is instantiated from. Numeric
// fields that do not apply to the flavour's kind stay zero.
type Flavour struct {
	ID      component.FlavourID
	Name    string
	Tag     ecs.TypeTag
	Faction component.Faction

	// Characters.
	MaxHealth        int32
	MaxConsciousness int32
	Speed            int32
	Damage           int32
	Range            int32
	AttackCooldownMs int32

	// Items.
	Price         int32
	KnockoutAward int32
	Weapon        bool
	Charges       int32

	// Explosives.
	Bomb            bool
	ArmMs           int32
	FuseDelayMs     int32
	DefuseMs        int32
	ExplosionRadius int32
	ExplosionDamage int32

	// Markers.
	Marker component.MarkerType
	Radius int32
}

// Spell is a learnable ability. ID indexes Sentience.LearntSpells.
type Spell struct {
	ID      uint8
	Name    string
	Price   int32
	Faction component.Faction
}

const MaxSpells = 32

// Rect is an axis aligned box, Min inclusive and Max exclusive.
type Rect struct {
	Min, Max component.Vec
}

func (r Rect) Empty() bool { return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y }

// Clamp moves p inside r. An empty rect leaves p unchanged.
func (r Rect) Clamp(p component.Vec) component.Vec {
	if r.Empty() {
		return p
	}
	p.X = min(max(p.X, r.Min.X), r.Max.X-1)
	p.Y = min(max(p.Y, r.Min.Y), r.Max.Y-1)
	return p
}

// Common is the shared definition state. It is agreed on before a match and
// is not part of the per-tick hash.
type Common struct {
	// Flavours is indexed by FlavourID; entry zero is unused.
	Flavours []Flavour
	Spells   []Spell
	Bounds   Rect
}

// Flavour returns the definition for id.
func (c *Common) Flavour(id component.FlavourID) (*Flavour, bool) {
	if id == 0 || int(id) >= len(c.Flavours) || c.Flavours[id].ID != id {
		return nil, false
	}
	return &c.Flavours[id], true
}

// FlavourByName finds a flavour by its table name.
func (c *Common) FlavourByName(name string) (*Flavour, bool) {
	for i := 1; i < len(c.Flavours); i++ {
		if c.Flavours[i].Name == name {
			return &c.Flavours[i], true
		}
	}
	return nil, false
}

// CharacterFlavour returns the first character flavour of a faction.
func (c *Common) CharacterFlavour(f component.Faction) (component.FlavourID, bool) {
	for i := 1; i < len(c.Flavours); i++ {
		fl := &c.Flavours[i]
		if fl.Tag == component.KindCharacter && fl.Faction == f {
			return fl.ID, true
		}
	}
	return 0, false
}

func (c *Common) Spell(id uint8) (*Spell, bool) {
	for i := range c.Spells {
		if c.Spells[i].ID == id {
			return &c.Spells[i], true
		}
	}
	return nil, false
}

// Validate checks the table invariants CreateEntity relies on.
func (c *Common) Validate() error {
	for i := 1; i < len(c.Flavours); i++ {
		f := &c.Flavours[i]
		if int(f.ID) != i {
			return fmt.Errorf("flavour %q: id %d at index %d", f.Name, f.ID, i)
		}
		switch f.Tag {
		case component.KindCharacter:
			if f.MaxHealth <= 0 {
				return fmt.Errorf("flavour %q: character needs max health", f.Name)
			}
		case component.KindItem, component.KindMarker, component.KindTheme:
		default:
			return fmt.Errorf("flavour %q: bad kind %d", f.Name, f.Tag)
		}
		if f.Bomb && f.FuseDelayMs <= 0 {
			return fmt.Errorf("flavour %q: bomb needs a fuse delay", f.Name)
		}
	}
	for _, s := range c.Spells {
		if s.ID >= MaxSpells {
			return fmt.Errorf("spell %q: id %d out of range", s.Name, s.ID)
		}
	}
	return nil
}

// Clone deep-copies the tables.
func (c *Common) Clone() Common {
	return Common{
		Flavours: append([]Flavour(nil), c.Flavours...),
		Spells:   append([]Spell(nil), c.Spells...),
		Bounds:   c.Bounds,
	}
}
