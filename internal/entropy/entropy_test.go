package entropy

import (
	"testing"

	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/net/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOrdersByPlayerAndKeepsArrivalOrder(t *testing.T) {
	var e Total
	e.Mode.Players = []PlayerCommand{
		{Player: 3, Command: TeamChoice{Faction: component.FactionAtlantis}},
		{Player: 1, Command: ItemPurchase{Flavour: 4}},
		{Player: 3, Command: ItemPurchase{Flavour: 9}},
		{Player: 1, Command: SpellPurchase{Spell: 2}},
	}
	e.Normalize()

	assert.Equal(t, []PlayerCommand{
		{Player: 1, Command: ItemPurchase{Flavour: 4}},
		{Player: 1, Command: SpellPurchase{Spell: 2}},
		{Player: 3, Command: TeamChoice{Faction: component.FactionAtlantis}},
		{Player: 3, Command: ItemPurchase{Flavour: 9}},
	}, e.Mode.Players)
}

func TestTotalEncodeDecode(t *testing.T) {
	subject := ecs.NewEntityID(4, 2, component.KindCharacter)
	in := Total{
		Cosmic: Cosmic{
			Intents: []Intent{{Subject: subject, Action: ActionUse, Pressed: true}},
			Motions: []Motion{{Subject: subject, Delta: component.Vec{X: -3, Y: 8}}},
		},
		Mode: Mode{
			Added:   &AddPlayer{ID: 2, Name: "żółw", Faction: component.FactionDefault},
			Special: Restart{},
			Players: []PlayerCommand{{Player: 1, Command: SpecialPurchase{Kind: RebuyPrevious}}},
		},
	}

	w := packet.NewWriter()
	in.Encode(w)

	var out Total
	require.NoError(t, out.Decode(packet.NewReader(w.Bytes())))
	assert.Equal(t, in.Cosmic, out.Cosmic)
	assert.Equal(t, in.Mode.Added, out.Mode.Added)
	assert.Equal(t, in.Mode.Special, out.Mode.Special)
	assert.Equal(t, in.Mode.Players, out.Mode.Players)
}

func TestDecodeCommandRejectsUnknownTag(t *testing.T) {
	_, err := DecodeCommand(packet.NewReader([]byte{0xEE}))
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestActionFlag(t *testing.T) {
	assert.Equal(t, component.InputUse, ActionUse.Flag())
	assert.Equal(t, component.InputFlags(0), ActionCount.Flag())
}
