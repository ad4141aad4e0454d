package entropy

import (
	"errors"
	"fmt"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/net/packet"
)

var ErrUnknownCommand = errors.New("entropy: unknown command tag")

const (
	tagTeamChoice byte = iota + 1
	tagItemPurchase
	tagSpellPurchase
	tagSpecialPurchase
)

// EncodeCommand writes one tagged command.
func EncodeCommand(w *packet.Writer, c Command) {
	switch c := c.(type) {
	case TeamChoice:
		w.WriteC(tagTeamChoice)
		w.WriteC(byte(c.Faction))
	case ItemPurchase:
		w.WriteC(tagItemPurchase)
		w.WriteH(uint16(c.Flavour))
	case SpellPurchase:
		w.WriteC(tagSpellPurchase)
		w.WriteC(c.Spell)
	case SpecialPurchase:
		w.WriteC(tagSpecialPurchase)
		w.WriteC(byte(c.Kind))
	default:
		panic(fmt.Sprintf("entropy: unhandled command %T", c))
	}
}

// DecodeCommand reads a command written by EncodeCommand.
func DecodeCommand(r *packet.Reader) (Command, error) {
	tag := r.ReadC()
	var c Command
	switch tag {
	case tagTeamChoice:
		c = TeamChoice{Faction: component.Faction(r.ReadC())}
	case tagItemPurchase:
		c = ItemPurchase{Flavour: component.FlavourID(r.ReadH())}
	case tagSpellPurchase:
		c = SpellPurchase{Spell: r.ReadC()}
	case tagSpecialPurchase:
		c = SpecialPurchase{Kind: SpecialPurchaseKind(r.ReadC())}
	default:
		if err := r.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, tag)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// Encode writes the whole step input. Used for recordings.
func (t *Total) Encode(w *packet.Writer) {
	w.WriteDU(uint32(len(t.Cosmic.Intents)))
	for _, in := range t.Cosmic.Intents {
		w.WriteQ(uint64(in.Subject))
		w.WriteC(byte(in.Action))
		w.WriteBool(in.Pressed)
	}
	w.WriteDU(uint32(len(t.Cosmic.Motions)))
	for _, m := range t.Cosmic.Motions {
		w.WriteQ(uint64(m.Subject))
		w.WriteD(m.Delta.X)
		w.WriteD(m.Delta.Y)
	}

	m := &t.Mode
	w.WriteBool(m.Added != nil)
	if m.Added != nil {
		w.WriteDU(uint32(m.Added.ID))
		w.WriteS(m.Added.Name)
		w.WriteC(byte(m.Added.Faction))
	}
	w.WriteDU(uint32(m.Removed))
	_, restart := m.Special.(Restart)
	w.WriteBool(restart)
	w.WriteDU(uint32(len(m.Players)))
	for _, p := range m.Players {
		w.WriteDU(uint32(p.Player))
		EncodeCommand(w, p.Command)
	}
}

// Decode reads a step input written by Encode.
func (t *Total) Decode(r *packet.Reader) error {
	t.Clear()
	n := int(r.ReadDU())
	if n*10 > r.Remaining() {
		return fmt.Errorf("entropy: %d intents exceed payload", n)
	}
	for i := 0; i < n; i++ {
		t.Cosmic.Intents = append(t.Cosmic.Intents, Intent{
			Subject: ecs.EntityID(r.ReadQ()),
			Action:  Action(r.ReadC()),
			Pressed: r.ReadBool(),
		})
	}
	n = int(r.ReadDU())
	if n*16 > r.Remaining() {
		return fmt.Errorf("entropy: %d motions exceed payload", n)
	}
	for i := 0; i < n; i++ {
		t.Cosmic.Motions = append(t.Cosmic.Motions, Motion{
			Subject: ecs.EntityID(r.ReadQ()),
			Delta:   component.Vec{X: r.ReadD(), Y: r.ReadD()},
		})
	}
	if r.ReadBool() {
		t.Mode.Added = &AddPlayer{
			ID:      PlayerID(r.ReadDU()),
			Name:    r.ReadS(),
			Faction: component.Faction(r.ReadC()),
		}
	}
	t.Mode.Removed = PlayerID(r.ReadDU())
	if r.ReadBool() {
		t.Mode.Special = Restart{}
	}
	n = int(r.ReadDU())
	if err := r.Err(); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		id := PlayerID(r.ReadDU())
		c, err := DecodeCommand(r)
		if err != nil {
			return err
		}
		t.Mode.Players = append(t.Mode.Players, PlayerCommand{Player: id, Command: c})
	}
	return r.Err()
}
