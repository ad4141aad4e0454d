package component

import "github.com/bombarena/server/internal/core/ecs"

// Stamp is a point on the cosmos clock that may be unset.
type Stamp struct {
	Step uint32
	Set  bool
}

func At(step uint32) Stamp { return Stamp{Step: step, Set: true} }

// Meter indices.
const (
	MeterHealth = iota
	MeterConsciousness
	MeterCount
)

type Meter struct {
	Value   int32
	Maximum int32
}

func (m *Meter) MakeFull() { m.Value = m.Maximum }

// Origin identifies what caused damage: the tool flavour, the tool entity and
// the character wielding it.
type Origin struct {
	Cause  FlavourID
	Entity ecs.EntityID
	Sender ecs.EntityID
}

// DamageOwner accumulates damage applied by one attacker.
type DamageOwner struct {
	Who     ecs.EntityID
	Applied int32
}

const MaxDamageOwners = 4

// Sentience is the living state of a character.
type Sentience struct {
	Meters         [MeterCount]Meter
	WhenKnockedOut Stamp
	KnockoutOrigin Origin
	DamageOwners   [MaxDamageOwners]DamageOwner
	LearntSpells   uint32
	NextAttack     uint32
	ArmingMs       int32
}

func (s *Sentience) Conscious() bool {
	return s.Meters[MeterHealth].Value > 0 && s.Meters[MeterConsciousness].Value > 0
}

func (s *Sentience) Dead() bool {
	return s.Meters[MeterHealth].Value <= 0
}

func (s *Sentience) UnconsciousButAlive() bool {
	return !s.Dead() && !s.Conscious()
}

func (s *Sentience) Learnt(spell uint8) bool {
	return s.LearntSpells&(1<<spell) != 0
}
