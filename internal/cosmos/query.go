package cosmos

import (
	"slices"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
)

// QueryRadius returns the entities in the world whose position lies within
// radius of center, ordered by id. Contained items are never returned.
func (c *Cosmos) QueryRadius(center component.Vec, radius int32) []ecs.EntityID {
	cand := c.inferred.grid.near(center, radius, nil)
	r2 := int64(radius) * int64(radius)
	out := cand[:0]
	for _, id := range cand {
		tr := c.solvable.Transform.Find(id)
		if tr != nil && tr.Pos.DistSq(center) <= r2 {
			out = append(out, id)
		}
	}
	slices.SortFunc(out, compareIDs)
	return slices.Compact(out)
}

// ItemsIn returns the items directly inside a container, ordered by id.
func (c *Cosmos) ItemsIn(container ecs.EntityID) []ecs.EntityID {
	return slices.Clone(c.inferred.contents[container])
}

// ContainerOf returns the direct container of an item, or zero.
func (c *Cosmos) ContainerOf(item ecs.EntityID) ecs.EntityID {
	return c.inferred.containerOf[item]
}

// EachOfFlavour visits live entities of a flavour in slot order.
func (c *Cosmos) EachOfFlavour(f component.FlavourID, fn func(ecs.EntityID)) {
	c.solvable.Arena.Each(func(id ecs.EntityID) {
		if m := c.solvable.Meta.Find(id); m != nil && m.Flavour == f {
			fn(id)
		}
	})
}

// FirstOfFlavour returns the lowest-slot live entity of a flavour, or zero.
func (c *Cosmos) FirstOfFlavour(f component.FlavourID) ecs.EntityID {
	var found ecs.EntityID
	c.EachOfFlavour(f, func(id ecs.EntityID) {
		if found.IsZero() {
			found = id
		}
	})
	return found
}

// Markers returns markers of a type, optionally restricted to a faction, in
// slot order. FactionDefault matches any faction.
func (c *Cosmos) Markers(t component.MarkerType, f component.Faction) []ecs.EntityID {
	var out []ecs.EntityID
	c.solvable.Arena.Each(func(id ecs.EntityID) {
		if id.Tag() != component.KindMarker {
			return
		}
		def, ok := c.ConstHandle(id).Def()
		if !ok || def.Marker != t {
			return
		}
		if f != component.FactionDefault && def.Faction != f {
			return
		}
		out = append(out, id)
	})
	return out
}

// InMarker reports whether p lies inside any marker of the type and faction.
func (c *Cosmos) InMarker(p component.Vec, t component.MarkerType, f component.Faction) bool {
	for _, m := range c.Markers(t, f) {
		def, _ := c.ConstHandle(m).Def()
		tr := c.solvable.Transform.Find(m)
		if tr != nil && tr.Pos.DistSq(p) <= int64(def.Radius)*int64(def.Radius) {
			return true
		}
	}
	return false
}
