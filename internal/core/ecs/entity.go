package ecs

import "fmt"

// TypeTag is the static kind of an entity. It decides which components an
// entity of that kind carries by default.
type TypeTag uint8

// EntityID packs a 32-bit slot index in the low bits, a 24-bit generation
// above it and the 8-bit type tag on top. The generation increments when a
// slot is freed, so a stale id never resolves to the slot's next occupant.
// The zero value is never alive.
type EntityID uint64

const (
	generationBits = 24
	generationMask = 1<<generationBits - 1
)

func NewEntityID(index uint32, generation uint32, tag TypeTag) EntityID {
	return EntityID(uint64(tag)<<56 | uint64(generation&generationMask)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id>>32) & generationMask }
func (id EntityID) Tag() TypeTag       { return TypeTag(id >> 56) }
func (id EntityID) IsZero() bool       { return id == 0 }

func (id EntityID) String() string {
	if id.IsZero() {
		return "dead"
	}
	return fmt.Sprintf("%d:%d@%d", id.Tag(), id.Index(), id.Generation())
}

// Mask records which component pools hold an entry for a slot.
type Mask uint32

// Bit is a component's position in a Mask.
type Bit uint8

func (m Mask) Has(b Bit) bool { return m&(1<<b) != 0 }

// Flags are per-entity boolean markers stored in the arena itself.
type Flags uint8

type slot struct {
	generation uint32
	tag        TypeTag
	occupied   bool
	flags      Flags
	mask       Mask
}

// Arena manages entity allocation with generational indices and a free list.
// Freed slots are reused last-in first-out.
type Arena struct {
	slots    []slot
	freeList []uint32
	count    int
}

func NewArena() *Arena {
	return &Arena{
		slots:    make([]slot, 0, 1024),
		freeList: make([]uint32, 0, 256),
	}
}

// Allocate returns the id of a fresh entity of the given kind.
func (a *Arena) Allocate(tag TypeTag) EntityID {
	a.count++
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		s := &a.slots[idx]
		s.occupied = true
		s.tag = tag
		return NewEntityID(idx, s.generation, tag)
	}
	idx := uint32(len(a.slots))
	a.slots = append(a.slots, slot{generation: 1, tag: tag, occupied: true})
	return NewEntityID(idx, 1, tag)
}

func (a *Arena) Alive(id EntityID) bool {
	idx := id.Index()
	if id.IsZero() || int(idx) >= len(a.slots) {
		return false
	}
	s := &a.slots[idx]
	return s.occupied && s.generation == id.Generation() && s.tag == id.Tag()
}

// Free releases a live entity's slot and invalidates every id pointing at it.
// Freeing a dead id is a no-op that reports false; callers that must not
// double free check Alive first.
func (a *Arena) Free(id EntityID) bool {
	if !a.Alive(id) {
		return false
	}
	idx := id.Index()
	s := &a.slots[idx]
	s.generation = (s.generation + 1) & generationMask
	if s.generation == 0 {
		s.generation = 1
	}
	s.occupied = false
	s.flags = 0
	s.mask = 0
	a.freeList = append(a.freeList, idx)
	a.count--
	return true
}

// Count returns the number of live entities.
func (a *Arena) Count() int { return a.count }

// Capacity returns the number of slots ever allocated.
func (a *Arena) Capacity() int { return len(a.slots) }

// Resolve returns the live id occupying a slot, or zero.
func (a *Arena) Resolve(index uint32) EntityID {
	if int(index) >= len(a.slots) || !a.slots[index].occupied {
		return 0
	}
	s := &a.slots[index]
	return NewEntityID(index, s.generation, s.tag)
}

// Each visits live entities in slot order.
func (a *Arena) Each(fn func(EntityID)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.occupied {
			fn(NewEntityID(uint32(i), s.generation, s.tag))
		}
	}
}

func (a *Arena) Mask(id EntityID) Mask {
	if !a.Alive(id) {
		return 0
	}
	return a.slots[id.Index()].mask
}

func (a *Arena) SetBit(id EntityID, b Bit, present bool) {
	if !a.Alive(id) {
		return
	}
	s := &a.slots[id.Index()]
	if present {
		s.mask |= 1 << b
	} else {
		s.mask &^= 1 << b
	}
}

func (a *Arena) Flags(id EntityID) Flags {
	if !a.Alive(id) {
		return 0
	}
	return a.slots[id.Index()].flags
}

func (a *Arena) SetFlag(id EntityID, f Flags, on bool) {
	if !a.Alive(id) {
		return
	}
	s := &a.slots[id.Index()]
	if on {
		s.flags |= f
	} else {
		s.flags &^= f
	}
}

// Clone returns a deep copy.
func (a *Arena) Clone() *Arena {
	return &Arena{
		slots:    append(make([]slot, 0, cap(a.slots)), a.slots...),
		freeList: append(make([]uint32, 0, cap(a.freeList)), a.freeList...),
		count:    a.count,
	}
}

// Encode writes slots and the free list in order, so a decoded arena hands
// out the same ids as the original.
func (a *Arena) Encode(w Writer) {
	w.WriteDU(uint32(len(a.slots)))
	for i := range a.slots {
		s := &a.slots[i]
		w.WriteDU(s.generation)
		w.WriteC(byte(s.tag))
		w.WriteBool(s.occupied)
		w.WriteC(byte(s.flags))
		w.WriteDU(uint32(s.mask))
	}
	w.WriteDU(uint32(len(a.freeList)))
	for _, idx := range a.freeList {
		w.WriteDU(idx)
	}
}

func (a *Arena) Decode(r Reader) error {
	n := int(r.ReadDU())
	if err := r.Err(); err != nil {
		return err
	}
	if n > r.Remaining() {
		return fmt.Errorf("arena: %d slots exceed payload", n)
	}
	slots := make([]slot, n)
	count := 0
	for i := range slots {
		slots[i] = slot{
			generation: r.ReadDU(),
			tag:        TypeTag(r.ReadC()),
			occupied:   r.ReadBool(),
			flags:      Flags(r.ReadC()),
			mask:       Mask(r.ReadDU()),
		}
		if slots[i].occupied {
			count++
		}
	}
	nf := int(r.ReadDU())
	if err := r.Err(); err != nil {
		return err
	}
	if nf > n {
		return fmt.Errorf("arena: free list of %d exceeds %d slots", nf, n)
	}
	free := make([]uint32, nf)
	for i := range free {
		free[i] = r.ReadDU()
		if int(free[i]) >= n || slots[free[i]].occupied {
			return fmt.Errorf("arena: bad free slot %d", free[i])
		}
	}
	if err := r.Err(); err != nil {
		return err
	}
	a.slots = slots
	a.freeList = free
	a.count = count
	return nil
}
