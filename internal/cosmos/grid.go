package cosmos

import (
	"math"
	"slices"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
)

// grid is the broad-phase index: a uniform cell grid over the positions of
// every entity that is in the world (not inside a container). It is inferred
// state, rebuilt from the pools and never hashed.
type grid struct {
	cellSize int32
	cells    map[cellKey][]ecs.EntityID
	where    map[ecs.EntityID]cellKey
}

type cellKey struct {
	cx, cy int32
}

const defaultCellSize = 256

func newGrid(cellSize int32) *grid {
	if cellSize <= 0 {
		cellSize = defaultCellSize
	}
	return &grid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]ecs.EntityID),
		where:    make(map[ecs.EntityID]cellKey),
	}
}

func (g *grid) coord(v int32) int32 {
	if v < 0 {
		return (v - g.cellSize + 1) / g.cellSize
	}
	return v / g.cellSize
}

func (g *grid) key(p component.Vec) cellKey {
	return cellKey{cx: g.coord(p.X), cy: g.coord(p.Y)}
}

func (g *grid) reset() {
	clear(g.cells)
	clear(g.where)
}

// place puts id in the cell of p, moving it if it was elsewhere.
func (g *grid) place(id ecs.EntityID, p component.Vec) {
	k := g.key(p)
	if old, ok := g.where[id]; ok {
		if old == k {
			return
		}
		g.remove(id)
	}
	g.cells[k] = append(g.cells[k], id)
	g.where[id] = k
}

func (g *grid) remove(id ecs.EntityID) {
	k, ok := g.where[id]
	if !ok {
		return
	}
	cell := g.cells[k]
	if i := slices.Index(cell, id); i >= 0 {
		cell = slices.Delete(cell, i, i+1)
	}
	if len(cell) == 0 {
		delete(g.cells, k)
	} else {
		g.cells[k] = cell
	}
	delete(g.where, id)
}

// near returns candidates from every cell the box around p with the given
// radius touches. The caller filters by exact distance and sorts. A box
// spanning more cells than are occupied scans the occupied cells instead.
func (g *grid) near(p component.Vec, radius int32, out []ecs.EntityID) []ecs.EntityID {
	if radius < 0 {
		return out
	}
	r := int64(radius)
	lo := g.key(component.Vec{X: clamp32(int64(p.X) - r), Y: clamp32(int64(p.Y) - r)})
	hi := g.key(component.Vec{X: clamp32(int64(p.X) + r), Y: clamp32(int64(p.Y) + r)})

	span := (int64(hi.cx) - int64(lo.cx) + 1) * (int64(hi.cy) - int64(lo.cy) + 1)
	if span > int64(len(g.cells)) {
		for k, ids := range g.cells {
			if k.cx >= lo.cx && k.cx <= hi.cx && k.cy >= lo.cy && k.cy <= hi.cy {
				out = append(out, ids...)
			}
		}
		return out
	}
	for cx := int64(lo.cx); cx <= int64(hi.cx); cx++ {
		for cy := int64(lo.cy); cy <= int64(hi.cy); cy++ {
			out = append(out, g.cells[cellKey{int32(cx), int32(cy)}]...)
		}
	}
	return out
}

func clamp32(v int64) int32 {
	return int32(min(max(v, math.MinInt32), math.MaxInt32))
}

func (g *grid) len() int { return len(g.where) }
