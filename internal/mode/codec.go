package mode

import (
	"errors"
	"fmt"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/cosmos"
	"github.com/bombarena/server/internal/entropy"
	"github.com/bombarena/server/internal/net/packet"
)

var ErrCorruptState = errors.New("mode: corrupt state")

const stateVersion = 1

// Clone returns a deep copy sharing only the logger and scripts.
func (m *BombMode) Clone() *BombMode {
	c := *m
	c.Players = make(map[entropy.PlayerID]*Player, len(m.Players))
	for id, p := range m.Players {
		c.Players[id] = p.clone()
	}
	for i := range c.Factions {
		c.Factions[i].ShuffledSpawns = append([]ecs.EntityID(nil), m.Factions[i].ShuffledSpawns...)
	}
	c.Round.Knockouts = append([]Knockout(nil), m.Round.Knockouts...)
	return &c
}

func writeClock(w *packet.Writer, c cosmos.Clock) {
	w.WriteDU(c.Step)
	w.WriteD(c.DtMs)
}

func readClock(r *packet.Reader) cosmos.Clock {
	return cosmos.Clock{Step: r.ReadDU(), DtMs: r.ReadD()}
}

func writeParticipant(w *packet.Writer, p Participant) {
	w.WriteDU(uint32(p.ID))
	w.WriteS(p.Name)
	w.WriteC(byte(p.Faction))
}

func readParticipant(r *packet.Reader) Participant {
	return Participant{ID: entropy.PlayerID(r.ReadDU()), Name: r.ReadS(), Faction: component.Faction(r.ReadC())}
}

func writeFlavours(w *packet.Writer, fs []component.FlavourID) {
	w.WriteH(uint16(len(fs)))
	for _, f := range fs {
		w.WriteH(uint16(f))
	}
}

func readFlavours(r *packet.Reader) []component.FlavourID {
	n := int(r.ReadH())
	if n == 0 || r.Err() != nil {
		return nil
	}
	out := make([]component.FlavourID, 0, min(n, r.Remaining()/2))
	for i := 0; i < n && r.Err() == nil; i++ {
		out = append(out, component.FlavourID(r.ReadH()))
	}
	return out
}

// Encode writes the whole mode state. Players are written in id order so
// equal states encode to equal bytes.
func (m *BombMode) Encode(w *packet.Writer) {
	w.WriteC(stateVersion)
	w.WriteC(byte(m.State))
	w.WriteQ(m.RNGSeedOffset)
	writeClock(w, m.ClockBeforeSetup)
	w.WriteQ(uint64(m.CommencingTimerMs))
	w.WriteBool(m.ShouldCommenceWhenReady)
	w.WriteDU(m.CurrentNumBots)

	ids := m.playerIDs()
	w.WriteDU(uint32(len(ids)))
	for _, id := range ids {
		p := m.Players[id]
		w.WriteDU(uint32(id))
		w.WriteS(p.Name)
		w.WriteC(byte(p.Faction))
		w.WriteQ(uint64(p.Controlled))
		w.WriteBool(p.Bot)
		w.WriteDU(p.RoundWhenChoseFaction)

		s := &p.Stats
		for _, v := range [...]int32{s.Money, s.Knockouts, s.Assists, s.Deaths, s.BombPlants, s.BombExplosions, s.BombDefuses} {
			w.WriteD(v)
		}
		w.WriteH(uint16(len(s.Round.Awards)))
		for _, a := range s.Round.Awards {
			writeClock(w, a.When)
			w.WriteD(a.Amount)
		}
		writeFlavours(w, s.Round.DonePurchases)
		writeFlavours(w, s.LastPurchases)
	}

	for i := range m.Factions {
		f := &m.Factions[i]
		w.WriteDU(f.Score)
		w.WriteDU(f.ConsecutiveLosses)
		w.WriteH(uint16(len(f.ShuffledSpawns)))
		for _, id := range f.ShuffledSpawns {
			w.WriteQ(uint64(id))
		}
		w.WriteDU(uint32(f.CurrentSpawnIndex))
	}

	rs := &m.Round
	w.WriteBool(rs.LastWin.Set)
	writeClock(w, rs.LastWin.When)
	w.WriteC(byte(rs.LastWin.Winner))
	w.WriteDU(uint32(rs.BombPlanter))
	w.WriteBool(rs.PlayersFrozen)
	w.WriteQ(uint64(rs.Theme))
	w.WriteDU(uint32(len(rs.Knockouts)))
	for _, ko := range rs.Knockouts {
		writeClock(w, ko.When)
		w.WriteH(uint16(ko.Origin.Cause))
		w.WriteQ(uint64(ko.Origin.Entity))
		w.WriteQ(uint64(ko.Origin.Sender))
		writeParticipant(w, ko.Knockouter)
		writeParticipant(w, ko.Assist)
		writeParticipant(w, ko.Victim)
	}
}

// Decode replaces the state with one written by Encode. On error the mode is
// left untouched.
func (m *BombMode) Decode(r *packet.Reader) error {
	if v := r.ReadC(); r.Err() == nil && v != stateVersion {
		return fmt.Errorf("%w: version %d", ErrCorruptState, v)
	}
	out := New(0)
	out.log, out.scripts = m.log, m.scripts

	out.State = State(r.ReadC())
	out.RNGSeedOffset = r.ReadQ()
	out.ClockBeforeSetup = readClock(r)
	out.CommencingTimerMs = int64(r.ReadQ())
	out.ShouldCommenceWhenReady = r.ReadBool()
	out.CurrentNumBots = r.ReadDU()

	n := r.ReadDU()
	for i := uint32(0); i < n && r.Err() == nil; i++ {
		id := entropy.PlayerID(r.ReadDU())
		p := newPlayer(r.ReadS(), component.Faction(r.ReadC()))
		p.Controlled = ecs.EntityID(r.ReadQ())
		p.Bot = r.ReadBool()
		p.RoundWhenChoseFaction = r.ReadDU()

		s := &p.Stats
		for _, v := range [...]*int32{&s.Money, &s.Knockouts, &s.Assists, &s.Deaths, &s.BombPlants, &s.BombExplosions, &s.BombDefuses} {
			*v = r.ReadD()
		}
		na := int(r.ReadH())
		for j := 0; j < na && r.Err() == nil; j++ {
			s.Round.Awards = append(s.Round.Awards, Award{When: readClock(r), Amount: r.ReadD()})
		}
		s.Round.DonePurchases = readFlavours(r)
		s.LastPurchases = readFlavours(r)

		if _, dup := out.Players[id]; dup || !id.IsSet() {
			return fmt.Errorf("%w: player id %d", ErrCorruptState, id)
		}
		out.Players[id] = p
	}

	for i := range out.Factions {
		f := &out.Factions[i]
		f.Score = r.ReadDU()
		f.ConsecutiveLosses = r.ReadDU()
		ns := int(r.ReadH())
		for j := 0; j < ns && r.Err() == nil; j++ {
			f.ShuffledSpawns = append(f.ShuffledSpawns, ecs.EntityID(r.ReadQ()))
		}
		f.CurrentSpawnIndex = int(r.ReadDU())
	}

	rs := &out.Round
	rs.LastWin.Set = r.ReadBool()
	rs.LastWin.When = readClock(r)
	rs.LastWin.Winner = component.Faction(r.ReadC())
	rs.BombPlanter = entropy.PlayerID(r.ReadDU())
	rs.PlayersFrozen = r.ReadBool()
	rs.Theme = ecs.EntityID(r.ReadQ())
	nk := r.ReadDU()
	for i := uint32(0); i < nk && r.Err() == nil; i++ {
		var ko Knockout
		ko.When = readClock(r)
		ko.Origin.Cause = component.FlavourID(r.ReadH())
		ko.Origin.Entity = ecs.EntityID(r.ReadQ())
		ko.Origin.Sender = ecs.EntityID(r.ReadQ())
		ko.Knockouter = readParticipant(r)
		ko.Assist = readParticipant(r)
		ko.Victim = readParticipant(r)
		rs.Knockouts = append(rs.Knockouts, ko)
	}

	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if out.State > StateMatchSummary {
		return fmt.Errorf("%w: state %d", ErrCorruptState, out.State)
	}
	*m = *out
	return nil
}
