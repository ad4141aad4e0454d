package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/cosmos"
)

// Placement puts one flavour instance into the level.
type Placement struct {
	Flavour string `yaml:"flavour"`
	X       int32  `yaml:"x"`
	Y       int32  `yaml:"y"`
	FacingX int32  `yaml:"facing_x"`
	FacingY int32  `yaml:"facing_y"`
}

// Scenario is a level: its bounds and what lies in it before the first
// round. Markers, lying items and level characters all come from here.
type Scenario struct {
	Name       string      `yaml:"name"`
	Width      int32       `yaml:"width"`
	Height     int32       `yaml:"height"`
	Placements []Placement `yaml:"placements"`
}

// LoadScenario loads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := ParseScenario(raw)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

func ParseScenario(raw []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("%w: scenario needs positive width and height", ErrInvalidTable)
	}
	return &s, nil
}

func (s *Scenario) Bounds() cosmos.Rect {
	return cosmos.Rect{Max: component.Vec{X: s.Width, Y: s.Height}}
}

// Build creates a cosmos holding the scenario's initial world. Placements
// are created in file order so entity ids are reproducible.
func (s *Scenario) Build(f *cosmos.Factory, t *FlavourTable, seed uint64) (*cosmos.Cosmos, error) {
	c := f.NewCosmos(t.Common(s.Bounds()), seed)
	for i, p := range s.Placements {
		id, ok := t.Lookup(p.Flavour)
		if !ok {
			return nil, fmt.Errorf("%w: placement %d: unknown flavour %q", ErrInvalidTable, i, p.Flavour)
		}
		tr := component.Transform{
			Pos:    c.Common().Bounds.Clamp(component.Vec{X: p.X, Y: p.Y}),
			Facing: component.Vec{X: p.FacingX, Y: p.FacingY},
		}
		if _, err := c.CreateEntity(id, func(h cosmos.Handle) {
			cosmos.Transform.Edit(h, func(dst *component.Transform) { *dst = tr })
		}, nil); err != nil {
			return nil, fmt.Errorf("placement %d (%s): %w", i, p.Flavour, err)
		}
	}
	return c, nil
}
