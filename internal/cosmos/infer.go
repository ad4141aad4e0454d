package cosmos

import (
	"slices"

	"github.com/bombarena/server/internal/core/ecs"
)

// inferred holds the caches derived from the solvable state. None of it is
// hashed or saved; it is rebuilt by reinferAll after a bulk change.
type inferred struct {
	grid *grid

	// contents maps a container to the items inside it, kept sorted by id.
	contents    map[ecs.EntityID][]ecs.EntityID
	containerOf map[ecs.EntityID]ecs.EntityID
}

func newInferred(cellSize int32) inferred {
	return inferred{
		grid:        newGrid(cellSize),
		contents:    make(map[ecs.EntityID][]ecs.EntityID),
		containerOf: make(map[ecs.EntityID]ecs.EntityID),
	}
}

func (in *inferred) reset() {
	in.grid.reset()
	clear(in.contents)
	clear(in.containerOf)
}

func (in *inferred) forget(id ecs.EntityID) {
	in.grid.remove(id)
	in.uncontain(id)
}

func (in *inferred) uncontain(id ecs.EntityID) {
	parent, ok := in.containerOf[id]
	if !ok {
		return
	}
	list := in.contents[parent]
	if i := slices.Index(list, id); i >= 0 {
		list = slices.Delete(list, i, i+1)
	}
	if len(list) == 0 {
		delete(in.contents, parent)
	} else {
		in.contents[parent] = list
	}
	delete(in.containerOf, id)
}

func (in *inferred) contain(id, parent ecs.EntityID) {
	if cur, ok := in.containerOf[id]; ok {
		if cur == parent {
			return
		}
		in.uncontain(id)
	}
	list := in.contents[parent]
	i, _ := slices.BinarySearchFunc(list, id, compareIDs)
	in.contents[parent] = slices.Insert(list, i, id)
	in.containerOf[id] = parent
}

// compareIDs orders ids by slot, then generation. Inferred lists and query
// results use it so their order never depends on map iteration.
func compareIDs(a, b ecs.EntityID) int {
	if a.Index() != b.Index() {
		if a.Index() < b.Index() {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Reinfer recomputes the derived state of one entity. Synchronized
// accessors call it after every change; it does nothing while an entity is
// being initialized inside CreateEntity.
func (c *Cosmos) Reinfer(id ecs.EntityID) {
	if c.suspended {
		return
	}
	c.reinfer(id)
}

func (c *Cosmos) reinfer(id ecs.EntityID) {
	c.Profiler.Reinferences++
	s := &c.solvable
	if !s.Arena.Alive(id) {
		c.inferred.forget(id)
		return
	}
	if it := s.Item.Find(id); it != nil && s.Arena.Alive(it.Container) {
		c.inferred.contain(id, it.Container)
		c.inferred.grid.remove(id)
		return
	}
	c.inferred.uncontain(id)
	if tr := s.Transform.Find(id); tr != nil {
		c.inferred.grid.place(id, tr.Pos)
	} else {
		c.inferred.grid.remove(id)
	}
}

// reinferAll rebuilds every cache from scratch in slot order.
func (c *Cosmos) reinferAll() {
	c.inferred.reset()
	c.solvable.Arena.Each(c.reinfer)
}
