package system

import (
	"github.com/bombarena/server/internal/component"
	"github.com/bombarena/server/internal/core/ecs"
	"github.com/bombarena/server/internal/core/event"
	coresys "github.com/bombarena/server/internal/core/system"
	"github.com/bombarena/server/internal/cosmos"
)

// SentienceSystem applies Damage messages in order. It records who dealt the
// damage and posts a HealthEvent when a character dies or passes out.
type SentienceSystem struct{}

func NewSentienceSystem() *SentienceSystem { return &SentienceSystem{} }

func (s *SentienceSystem) Phase() coresys.Phase { return coresys.PhaseSentience }

func (s *SentienceSystem) Solve(step coresys.Step) {
	c := step.Cosmos
	dmgs := event.Queue[event.Damage](step.Queues)
	for i := 0; i < len(dmgs); i++ {
		d := dmgs[i]
		h := c.Handle(d.Subject)
		sent := cosmos.Sentience.Find(h)
		if sent == nil || sent.Dead() {
			continue
		}
		wasConscious := sent.Conscious()

		hp := &sent.Meters[component.MeterHealth]
		applied := min(d.Amount, hp.Value)
		hp.Value -= applied
		cons := &sent.Meters[component.MeterConsciousness]
		cons.Value = max(cons.Value-d.Consciousness, 0)
		if applied > 0 && d.Origin.Sender != d.Subject {
			recordOwner(sent, d.Origin.Sender, applied)
		}

		result := event.HealthNone
		switch {
		case sent.Dead():
			result = event.HealthDeath
		case wasConscious && !sent.Conscious():
			result = event.HealthLossOfConsciousness
		}
		if result == event.HealthNone {
			continue
		}
		if wasConscious {
			sent.WhenKnockedOut = component.At(c.Step())
			sent.KnockoutOrigin = d.Origin
			if mv := cosmos.Movement.Find(h); mv != nil {
				mv.Flags = 0
			}
		}
		event.Post(step.Queues, event.HealthEvent{
			Subject:      d.Subject,
			Result:       result,
			WasConscious: wasConscious,
			Origin:       d.Origin,
		})
	}
}

// recordOwner adds damage to an attacker's tally. When the table is full the
// smallest entry is replaced if the new attacker dealt more.
func recordOwner(s *component.Sentience, who ecs.EntityID, amount int32) {
	if who.IsZero() {
		return
	}
	smallest := 0
	for i := range s.DamageOwners {
		o := &s.DamageOwners[i]
		if o.Who == who {
			o.Applied += amount
			return
		}
		if o.Who.IsZero() {
			*o = component.DamageOwner{Who: who, Applied: amount}
			return
		}
		if o.Applied < s.DamageOwners[smallest].Applied {
			smallest = i
		}
	}
	if s.DamageOwners[smallest].Applied < amount {
		s.DamageOwners[smallest] = component.DamageOwner{Who: who, Applied: amount}
	}
}
