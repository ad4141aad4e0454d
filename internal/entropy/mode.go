package entropy

import "github.com/bombarena/server/internal/component"

// PlayerID identifies a participant of a game mode independently of the
// entity it controls. It survives respawns and reconnects. Zero is unset.
type PlayerID uint32

const FirstPlayer PlayerID = 1

func (p PlayerID) IsSet() bool { return p != 0 }

// Command is the closed set of per-player mode commands. Only this package
// can add variants; consumers switch over the concrete types below.
type Command interface {
	isCommand()
}

// TeamChoice requests a faction. FactionDefault asks for auto-balance.
type TeamChoice struct {
	Faction component.Faction
}

// ItemPurchase buys one item of a flavour.
type ItemPurchase struct {
	Flavour component.FlavourID
}

// SpellPurchase buys a spell by index.
type SpellPurchase struct {
	Spell uint8
}

type SpecialPurchaseKind uint8

const (
	RebuyPrevious SpecialPurchaseKind = iota + 1
)

// SpecialPurchase is a shop shortcut.
type SpecialPurchase struct {
	Kind SpecialPurchaseKind
}

func (TeamChoice) isCommand()      {}
func (ItemPurchase) isCommand()    {}
func (SpellPurchase) isCommand()   {}
func (SpecialPurchase) isCommand() {}

// Special is the closed set of mode-wide commands.
type Special interface {
	isSpecial()
}

// Restart restarts the match.
type Restart struct{}

func (Restart) isSpecial() {}

// AddPlayer joins a player under a server-assigned id.
type AddPlayer struct {
	ID      PlayerID
	Name    string
	Faction component.Faction
}

type PlayerCommand struct {
	Player  PlayerID
	Command Command
}

// Mode is the mode-level part of the entropy.
type Mode struct {
	Added   *AddPlayer
	Removed PlayerID
	Special Special
	Players []PlayerCommand
}

func (m *Mode) Empty() bool {
	return m.Added == nil && !m.Removed.IsSet() && m.Special == nil && len(m.Players) == 0
}
