package ecs

import (
	"encoding/binary"
	"fmt"
)

// Store is implemented by every component pool so the Registry can operate on
// all of an entity's data without knowing the component types.
type Store interface {
	Bit() Bit
	Has(id EntityID) bool
	Remove(id EntityID) bool
	Len() int
	Reset()
	Encode(w Writer)
	// Decode reads rows whose owners must index one of the arena's slots.
	Decode(r Reader, slots int) error
}

// Pool is a densely packed table of one component type. Values live in a
// contiguous slice; a sparse index addressed by slot finds an entity's row.
// Removal swaps the last row into the hole, so dense order depends on the
// history of adds and removes. Clone and Encode keep that order verbatim.
//
// T must be a fixed-size value type (no pointers, slices, maps or strings):
// pools are copied with a plain slice copy and serialized by layout.
type Pool[T any] struct {
	bit    Bit
	dense  []T
	owners []EntityID
	sparse []int32
}

func NewPool[T any](bit Bit) Pool[T] {
	var zero T
	if binary.Size(zero) <= 0 {
		panic(fmt.Sprintf("ecs: component %T is not a fixed-size value type", zero))
	}
	return Pool[T]{bit: bit}
}

func (p *Pool[T]) Bit() Bit { return p.bit }

func (p *Pool[T]) row(id EntityID) int {
	idx := id.Index()
	if int(idx) >= len(p.sparse) {
		return -1
	}
	r := p.sparse[idx]
	if r < 0 || p.owners[r] != id {
		return -1
	}
	return int(r)
}

// Add stores v for id, overwriting an existing value.
func (p *Pool[T]) Add(id EntityID, v T) *T {
	if r := p.row(id); r >= 0 {
		p.dense[r] = v
		return &p.dense[r]
	}
	idx := int(id.Index())
	for len(p.sparse) <= idx {
		p.sparse = append(p.sparse, -1)
	}
	p.sparse[idx] = int32(len(p.dense))
	p.dense = append(p.dense, v)
	p.owners = append(p.owners, id)
	return &p.dense[len(p.dense)-1]
}

// Remove deletes id's row. It reports whether there was one.
func (p *Pool[T]) Remove(id EntityID) bool {
	r := p.row(id)
	if r < 0 {
		return false
	}
	last := len(p.dense) - 1
	if r != last {
		p.dense[r] = p.dense[last]
		p.owners[r] = p.owners[last]
		p.sparse[p.owners[r].Index()] = int32(r)
	}
	var zero T
	p.dense[last] = zero
	p.dense = p.dense[:last]
	p.owners = p.owners[:last]
	p.sparse[id.Index()] = -1
	return true
}

// Find returns a pointer to id's value or nil. The pointer is valid until the
// next Add or Remove on this pool.
func (p *Pool[T]) Find(id EntityID) *T {
	if r := p.row(id); r >= 0 {
		return &p.dense[r]
	}
	return nil
}

// Get is Find for callers that have established presence; a missing value is
// a programming error.
func (p *Pool[T]) Get(id EntityID) *T {
	v := p.Find(id)
	if v == nil {
		var zero T
		panic(fmt.Sprintf("ecs: entity %s has no %T", id, zero))
	}
	return v
}

func (p *Pool[T]) Has(id EntityID) bool {
	return p.row(id) >= 0
}

func (p *Pool[T]) Len() int {
	return len(p.dense)
}

// Each visits rows in dense order. fn must not add to or remove from p.
func (p *Pool[T]) Each(fn func(EntityID, *T)) {
	for i := range p.dense {
		fn(p.owners[i], &p.dense[i])
	}
}

// Owners returns a copy of the owning ids in dense order, for passes that
// mutate the pool while iterating.
func (p *Pool[T]) Owners() []EntityID {
	return append([]EntityID(nil), p.owners...)
}

func (p *Pool[T]) Reset() {
	p.dense = p.dense[:0]
	p.owners = p.owners[:0]
	p.sparse = p.sparse[:0]
}

// Clone returns a deep copy with identical dense order.
func (p *Pool[T]) Clone() Pool[T] {
	return Pool[T]{
		bit:    p.bit,
		dense:  append([]T(nil), p.dense...),
		owners: append([]EntityID(nil), p.owners...),
		sparse: append([]int32(nil), p.sparse...),
	}
}

// Encode writes the owners then the raw little-endian layout of every row.
func (p *Pool[T]) Encode(w Writer) {
	w.WriteDU(uint32(len(p.dense)))
	for _, id := range p.owners {
		w.WriteQ(uint64(id))
	}
	raw, err := binary.Append(nil, binary.LittleEndian, p.dense)
	if err != nil {
		panic(fmt.Sprintf("ecs: encode pool %d: %v", p.bit, err))
	}
	w.WriteBlob(raw)
}

func (p *Pool[T]) Decode(r Reader, slots int) error {
	n := int(r.ReadDU())
	if err := r.Err(); err != nil {
		return err
	}
	if n*8 > r.Remaining() {
		return fmt.Errorf("pool %d: %d rows exceed payload", p.bit, n)
	}
	owners := make([]EntityID, n)
	for i := range owners {
		owners[i] = EntityID(r.ReadQ())
	}
	raw := r.ReadBlob()
	if err := r.Err(); err != nil {
		return err
	}
	dense := make([]T, n)
	if n > 0 {
		if _, err := binary.Decode(raw, binary.LittleEndian, dense); err != nil {
			return fmt.Errorf("pool %d: %w", p.bit, err)
		}
	}
	maxIdx := -1
	for _, id := range owners {
		idx := int(id.Index())
		if idx >= slots {
			return fmt.Errorf("pool %d: owner slot %d beyond %d arena slots", p.bit, idx, slots)
		}
		maxIdx = max(maxIdx, idx)
	}
	sparse := make([]int32, maxIdx+1)
	for i := range sparse {
		sparse[i] = -1
	}
	for i, id := range owners {
		idx := int(id.Index())
		if sparse[idx] >= 0 {
			return fmt.Errorf("pool %d: slot %d owned twice", p.bit, idx)
		}
		sparse[idx] = int32(i)
	}
	p.dense, p.owners, p.sparse = dense, owners, sparse
	return nil
}
