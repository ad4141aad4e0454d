package cosmos

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/bombarena/server/internal/core/ecs"
	"github.com/cespare/xxhash/v2"
)

// NewRNG returns a generator seeded from the given parts. Equal parts give
// equal streams on every platform.
func NewRNG(parts ...uint64) *rand.Rand {
	var buf [8]byte
	d := xxhash.New()
	for _, p := range parts {
		binary.LittleEndian.PutUint64(buf[:], p)
		d.Write(buf[:])
	}
	s := d.Sum64()
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// RNGFor is the stream of an entity at the current step. Nothing about it is
// stored, so it does not depend on which entities drew before.
func (c *Cosmos) RNGFor(id ecs.EntityID) *rand.Rand {
	return NewRNG(c.solvable.Seed, uint64(id.Index()), uint64(id.Tag()), uint64(c.solvable.Clock.Step))
}

// NontemporalRNGFor is the stream of an entity that does not change between
// steps. Item charges take part when they differ from one, so each charge of
// a stack draws differently.
func (c *Cosmos) NontemporalRNGFor(id ecs.EntityID) *rand.Rand {
	s := &c.solvable
	parts := []uint64{s.Seed, uint64(id.Index()), uint64(id.Tag())}
	if m := s.Meta.Find(id); m != nil {
		parts = append(parts, uint64(m.Born))
	}
	if it := s.Item.Find(id); it != nil && it.Charges != 1 {
		parts = append(parts, uint64(it.Charges))
	}
	return NewRNG(parts...)
}
