package cosmos

import (
	"errors"
	"fmt"

	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/net/packet"
)

var ErrCorruptSnapshot = errors.New("cosmos: corrupt snapshot")

const (
	snapshotMagic   = 0x434d5342 // "BSMC" little endian
	snapshotVersion = 1
)

// Save writes the significant state as an opaque blob. The layout is stable
// for a given build.
func (c *Cosmos) Save() []byte {
	w := packet.NewWriter()
	EncodeSolvable(w, &c.solvable)
	return w.Bytes()
}

// Load replaces the significant state with a saved one and re-infers. On any
// error the cosmos is left untouched.
func (c *Cosmos) Load(data []byte) error {
	s, err := DecodeSolvable(packet.NewReader(data))
	if err != nil {
		return err
	}
	c.ChangeSolvable(func(dst *Solvable) Refresh {
		*dst = s
		return DoRefresh
	})
	return nil
}

func EncodeSolvable(w *packet.Writer, s *Solvable) {
	w.WriteDU(snapshotMagic)
	w.WriteH(snapshotVersion)
	w.WriteDU(s.Clock.Step)
	w.WriteD(s.Clock.DtMs)
	w.WriteQ(s.Seed)
	s.Arena.Encode(w)
	s.registry().Encode(w)
}

func DecodeSolvable(r *packet.Reader) (Solvable, error) {
	if magic := r.ReadDU(); magic != snapshotMagic {
		return Solvable{}, fmt.Errorf("%w: bad magic %#x", ErrCorruptSnapshot, magic)
	}
	if v := r.ReadH(); v != snapshotVersion {
		return Solvable{}, fmt.Errorf("%w: version %d", ErrCorruptSnapshot, v)
	}
	s := NewSolvable(0)
	s.Clock.Step = r.ReadDU()
	s.Clock.DtMs = r.ReadD()
	s.Seed = r.ReadQ()
	if err := r.Err(); err != nil {
		return Solvable{}, fmt.Errorf("%w: header: %v", ErrCorruptSnapshot, err)
	}
	if err := s.Arena.Decode(r); err != nil {
		return Solvable{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := s.registry().Decode(r, s.Arena.Capacity()); err != nil {
		return Solvable{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := validateOwnership(&s); err != nil {
		return Solvable{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return s, nil
}

// validateOwnership checks that pool rows and arena masks agree.
func validateOwnership(s *Solvable) error {
	for _, st := range s.registry().Stores() {
		rows := 0
		var bad error
		s.Arena.Each(func(id ecs.EntityID) {
			has := st.Has(id)
			if has != s.Arena.Mask(id).Has(st.Bit()) && bad == nil {
				bad = fmt.Errorf("entity %s: pool %d disagrees with mask", id, st.Bit())
			}
			if has {
				rows++
			}
		})
		if bad != nil {
			return bad
		}
		if rows != st.Len() {
			return fmt.Errorf("pool %d: %d rows owned by dead entities", st.Bit(), st.Len()-rows)
		}
	}
	return nil
}
