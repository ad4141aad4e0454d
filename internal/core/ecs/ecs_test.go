package ecs

import (
	"testing"

	"github.com/bombarena/server/internal/net/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct {
	X, Y int32
}

func TestArenaAllocateFree(t *testing.T) {
	a := NewArena()
	id := a.Allocate(2)

	assert.True(t, a.Alive(id))
	assert.Equal(t, TypeTag(2), id.Tag())
	assert.Equal(t, 1, a.Count())

	assert.True(t, a.Free(id))
	assert.False(t, a.Alive(id))
	assert.Equal(t, 0, a.Count())

	// double free is a reported no-op
	assert.False(t, a.Free(id))
}

func TestArenaSlotReuseInvalidatesOldID(t *testing.T) {
	a := NewArena()
	old := a.Allocate(1)
	require.True(t, a.Free(old))

	reused := a.Allocate(1)
	assert.Equal(t, old.Index(), reused.Index())
	assert.NotEqual(t, old.Generation(), reused.Generation())
	assert.False(t, a.Alive(old))
	assert.True(t, a.Alive(reused))
}

func TestZeroIDIsNeverAlive(t *testing.T) {
	a := NewArena()
	a.Allocate(0)
	assert.False(t, a.Alive(0))
}

func TestArenaTagMustMatch(t *testing.T) {
	a := NewArena()
	id := a.Allocate(3)
	forged := NewEntityID(id.Index(), id.Generation(), 4)
	assert.False(t, a.Alive(forged))
}

func TestPoolAddFindRemove(t *testing.T) {
	a := NewArena()
	p := NewPool[position](0)

	e1 := a.Allocate(0)
	e2 := a.Allocate(0)
	e3 := a.Allocate(0)
	p.Add(e1, position{1, 1})
	p.Add(e2, position{2, 2})
	p.Add(e3, position{3, 3})

	require.True(t, p.Remove(e1))
	assert.Nil(t, p.Find(e1))
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, position{3, 3}, *p.Get(e3))
	assert.Equal(t, position{2, 2}, *p.Get(e2))

	// swap-remove moved the last row into the hole
	assert.Equal(t, []EntityID{e3, e2}, p.Owners())
}

func TestPoolDoesNotResolveStaleGeneration(t *testing.T) {
	a := NewArena()
	p := NewPool[position](0)

	old := a.Allocate(0)
	p.Add(old, position{7, 7})
	a.Free(old)
	p.Remove(old)

	fresh := a.Allocate(0)
	p.Add(fresh, position{9, 9})
	assert.Nil(t, p.Find(old))
	assert.Equal(t, position{9, 9}, *p.Get(fresh))
}

func TestPoolGetPanicsWhenAbsent(t *testing.T) {
	p := NewPool[position](0)
	assert.Panics(t, func() { p.Get(NewEntityID(0, 1, 0)) })
}

func TestPoolRejectsVariableSizeComponents(t *testing.T) {
	assert.Panics(t, func() { NewPool[[]int32](0) })
}

func TestPoolCloneIsIndependent(t *testing.T) {
	a := NewArena()
	p := NewPool[position](0)
	id := a.Allocate(0)
	p.Add(id, position{1, 2})

	c := p.Clone()
	c.Get(id).X = 100
	assert.Equal(t, int32(1), p.Get(id).X)
}

func TestArenaAndPoolRoundTrip(t *testing.T) {
	a := NewArena()
	p := NewPool[position](5)
	var ids []EntityID
	for i := 0; i < 6; i++ {
		id := a.Allocate(1)
		p.Add(id, position{int32(i), int32(-i)})
		ids = append(ids, id)
	}
	a.Free(ids[1])
	p.Remove(ids[1])
	a.Free(ids[4])
	p.Remove(ids[4])
	a.SetFlag(ids[2], 0x4, true)

	w := packet.NewWriter()
	a.Encode(w)
	p.Encode(w)

	r := packet.NewReader(w.Bytes())
	b := &Arena{}
	q := NewPool[position](5)
	require.NoError(t, b.Decode(r))
	require.NoError(t, q.Decode(r, b.Capacity()))

	assert.Equal(t, a.Count(), b.Count())
	assert.Equal(t, p.Owners(), q.Owners())
	assert.Equal(t, Flags(0x4), b.Flags(ids[2]))
	// the decoded arena hands out the same next id
	assert.Equal(t, a.Clone().Allocate(1), b.Allocate(1))
}

func TestArenaDecodeTruncated(t *testing.T) {
	a := NewArena()
	a.Allocate(0)
	w := packet.NewWriter()
	a.Encode(w)

	b := &Arena{}
	err := b.Decode(packet.NewReader(w.Bytes()[:5]))
	assert.Error(t, err)
}

func TestPoolDecodeRejectsOwnerBeyondArena(t *testing.T) {
	// one row owned by a slot far past the arena, written by hand since Add
	// would grow the index to reach it
	w := packet.NewWriter()
	w.WriteDU(1)
	w.WriteQ(uint64(NewEntityID(0xFFFFFFF0, 1, 0)))
	w.WriteBlob(make([]byte, 8))

	q := NewPool[position](0)
	err := q.Decode(packet.NewReader(w.Bytes()), 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beyond 4 arena slots")
	assert.Zero(t, q.Len(), "a rejected pool keeps its old rows")
}

func TestEach2VisitsIntersection(t *testing.T) {
	a := NewArena()
	pa := NewPool[position](0)
	pb := NewPool[int32](1)

	e1, e2, e3 := a.Allocate(0), a.Allocate(0), a.Allocate(0)
	pa.Add(e1, position{})
	pa.Add(e2, position{})
	pa.Add(e3, position{})
	pb.Add(e2, 5)
	pb.Add(e3, 6)

	var seen []EntityID
	Each2(&pa, &pb, func(id EntityID, _ *position, _ *int32) {
		seen = append(seen, id)
	})
	assert.Equal(t, []EntityID{e2, e3}, seen)
}
