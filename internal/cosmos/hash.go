package cosmos

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// CalculateSigniHash is the per-step desync checksum. It covers the step,
// the entity count and, for every sentient entity in pool order, its body
// and meters. This is a sample: divergence confined to entities without
// sentience is not detected until it reaches one. FullHash covers
// everything.
func (c *Cosmos) CalculateSigniHash() uint32 {
	s := &c.solvable
	d := xxhash.New()
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, s.Clock.Step)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.Arena.Count()))
	for _, id := range s.Sentience.Owners() {
		sent := s.Sentience.Get(id)
		if body := s.RigidBody.Find(id); body != nil {
			buf, _ = binary.Append(buf, binary.LittleEndian, body)
		}
		if tr := s.Transform.Find(id); tr != nil {
			buf, _ = binary.Append(buf, binary.LittleEndian, tr.Pos)
		}
		buf, _ = binary.Append(buf, binary.LittleEndian, sent.Meters)
	}
	d.Write(buf)
	return fold(d.Sum64())
}

// FullHash digests the complete saved form of the significant state.
func (c *Cosmos) FullHash() uint32 {
	return fold(xxhash.Sum64(c.Save()))
}

func fold(h uint64) uint32 {
	return uint32(h) ^ uint32(h>>32)
}
