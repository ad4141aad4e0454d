package data

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/cosmos"
)

var ErrInvalidTable = errors.New("data: invalid table")

// FlavourEntry is one row of flavours.yaml. Ids are assigned in file order
// starting at 1, so reordering the file changes the hashed state.
type FlavourEntry struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`    // character | item | marker | theme
	Faction string `yaml:"faction"` // empty means spectator (any)

	MaxHealth        int32 `yaml:"max_health"`
	MaxConsciousness int32 `yaml:"max_consciousness"`
	Speed            int32 `yaml:"speed"`
	Damage           int32 `yaml:"damage"`
	Range            int32 `yaml:"range"`
	AttackCooldownMs int32 `yaml:"attack_cooldown_ms"`

	Price         int32 `yaml:"price"`
	KnockoutAward int32 `yaml:"knockout_award"`
	Weapon        bool  `yaml:"weapon"`
	Charges       int32 `yaml:"charges"`

	Bomb            bool  `yaml:"bomb"`
	ArmMs           int32 `yaml:"arm_ms"`
	FuseDelayMs     int32 `yaml:"fuse_delay_ms"`
	DefuseMs        int32 `yaml:"defuse_ms"`
	ExplosionRadius int32 `yaml:"explosion_radius"`
	ExplosionDamage int32 `yaml:"explosion_damage"`

	Marker string `yaml:"marker"` // spawn | bombsite | buy_zone
	Radius int32  `yaml:"radius"`
}

// SpellEntry is one row of the spells list. Ids are explicit because they
// index a bitmask.
type SpellEntry struct {
	ID      uint8  `yaml:"id"`
	Name    string `yaml:"name"`
	Price   int32  `yaml:"price"`
	Faction string `yaml:"faction"`
}

type flavourFile struct {
	Flavours []FlavourEntry `yaml:"flavours"`
	Spells   []SpellEntry   `yaml:"spells"`
}

var kinds = map[string]ecs.TypeTag{
	"character": component.KindCharacter,
	"item":      component.KindItem,
	"marker":    component.KindMarker,
	"theme":     component.KindTheme,
}

var markers = map[string]component.MarkerType{
	"":         component.MarkerNone,
	"spawn":    component.MarkerSpawn,
	"bombsite": component.MarkerBombsite,
	"buy_zone": component.MarkerBuyZone,
}

func parseFaction(s string) (component.Faction, error) {
	if s == "" {
		return component.FactionSpectator, nil
	}
	f := component.ParseFaction(s)
	if f == component.FactionDefault && s != "default" {
		return 0, fmt.Errorf("%w: unknown faction %q", ErrInvalidTable, s)
	}
	return f, nil
}

// FlavourTable holds the parsed flavour and spell tables.
type FlavourTable struct {
	common cosmos.Common
	byName map[string]component.FlavourID
}

// LoadFlavourTable loads flavours.yaml.
func LoadFlavourTable(path string) (*FlavourTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flavour table: %w", err)
	}
	t, err := ParseFlavourTable(raw)
	if err != nil {
		return nil, fmt.Errorf("flavour table %s: %w", path, err)
	}
	return t, nil
}

func ParseFlavourTable(raw []byte) (*FlavourTable, error) {
	var f flavourFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse flavour table: %w", err)
	}

	t := &FlavourTable{byName: make(map[string]component.FlavourID, len(f.Flavours))}
	t.common.Flavours = make([]cosmos.Flavour, 1, len(f.Flavours)+1)
	for i, e := range f.Flavours {
		id := component.FlavourID(i + 1)
		if e.Name == "" {
			return nil, fmt.Errorf("%w: flavour %d has no name", ErrInvalidTable, id)
		}
		if _, dup := t.byName[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate flavour %q", ErrInvalidTable, e.Name)
		}
		kind, ok := kinds[e.Kind]
		if !ok {
			return nil, fmt.Errorf("%w: flavour %q: unknown kind %q", ErrInvalidTable, e.Name, e.Kind)
		}
		marker, ok := markers[e.Marker]
		if !ok {
			return nil, fmt.Errorf("%w: flavour %q: unknown marker %q", ErrInvalidTable, e.Name, e.Marker)
		}
		faction, err := parseFaction(e.Faction)
		if err != nil {
			return nil, fmt.Errorf("flavour %q: %w", e.Name, err)
		}
		t.byName[e.Name] = id
		t.common.Flavours = append(t.common.Flavours, cosmos.Flavour{
			ID:               id,
			Name:             e.Name,
			Tag:              kind,
			Faction:          faction,
			MaxHealth:        e.MaxHealth,
			MaxConsciousness: e.MaxConsciousness,
			Speed:            e.Speed,
			Damage:           e.Damage,
			Range:            e.Range,
			AttackCooldownMs: e.AttackCooldownMs,
			Price:            e.Price,
			KnockoutAward:    e.KnockoutAward,
			Weapon:           e.Weapon,
			Charges:          e.Charges,
			Bomb:             e.Bomb,
			ArmMs:            e.ArmMs,
			FuseDelayMs:      e.FuseDelayMs,
			DefuseMs:         e.DefuseMs,
			ExplosionRadius:  e.ExplosionRadius,
			ExplosionDamage:  e.ExplosionDamage,
			Marker:           marker,
			Radius:           e.Radius,
		})
	}

	for _, s := range f.Spells {
		faction, err := parseFaction(s.Faction)
		if err != nil {
			return nil, fmt.Errorf("spell %q: %w", s.Name, err)
		}
		if _, dup := t.common.Spell(s.ID); dup {
			return nil, fmt.Errorf("%w: duplicate spell id %d", ErrInvalidTable, s.ID)
		}
		t.common.Spells = append(t.common.Spells, cosmos.Spell{ID: s.ID, Name: s.Name, Price: s.Price, Faction: faction})
	}

	if err := t.common.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return t, nil
}

// Lookup resolves a flavour name.
func (t *FlavourTable) Lookup(name string) (component.FlavourID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Count returns the number of flavours loaded.
func (t *FlavourTable) Count() int { return len(t.byName) }

// Common returns a fresh copy of the tables with the given world bounds.
func (t *FlavourTable) Common(bounds cosmos.Rect) cosmos.Common {
	c := t.common.Clone()
	c.Bounds = bounds
	return c
}

// resolve maps flavour names to ids, failing on the first unknown name.
func (t *FlavourTable) resolve(names []string) ([]component.FlavourID, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]component.FlavourID, 0, len(names))
	for _, n := range names {
		id, ok := t.byName[n]
		if !ok {
			return nil, fmt.Errorf("%w: unknown flavour %q", ErrInvalidTable, n)
		}
		out = append(out, id)
	}
	return out, nil
}

func (t *FlavourTable) resolveOne(name string) (component.FlavourID, error) {
	if name == "" {
		return 0, nil
	}
	id, ok := t.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown flavour %q", ErrInvalidTable, name)
	}
	return id, nil
}
