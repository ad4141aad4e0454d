package component

// Meta is carried by every entity.
type Meta struct {
	Flavour FlavourID
	Born    uint32
}

// Input flags set by intents and read by the solve passes.
type InputFlags uint8

const (
	InputMoveUp InputFlags = 1 << iota
	InputMoveDown
	InputMoveLeft
	InputMoveRight
	InputUse
	InputAttack
	InputDrop
	InputWalk
)

// Movement holds a character's held inputs and aim.
type Movement struct {
	Flags InputFlags
	Aim   Vec
}

const NameLen = 32

// Name is a fixed-size UTF-8 name. Longer names are cut at a rune boundary.
type Name struct {
	Len   uint8
	Bytes [NameLen]byte
}

func NewName(s string) Name {
	var n Name
	end := len(s)
	if end > NameLen {
		end = NameLen
		for end > 0 && s[end]&0xC0 == 0x80 {
			end--
		}
	}
	n.Len = uint8(copy(n.Bytes[:], s[:end]))
	return n
}

func (n Name) String() string { return string(n.Bytes[:n.Len]) }

// Brain drives a bot character.
type Brain struct {
	NextDecision uint32
	Wander       Vec
}
