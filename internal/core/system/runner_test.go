package system

import (
	"testing"

	"github.com/bombarena/server/internal/core/event"
	"github.com/bombarena/server/internal/cosmos"
	"github.com/bombarena/server/internal/entropy"
	"github.com/stretchr/testify/assert"
)

func newStep() Step {
	f := &cosmos.Factory{}
	return Step{
		Cosmos:  f.NewCosmos(cosmos.Common{}, 1),
		Entropy: &entropy.Total{},
		Queues:  event.NewQueues(),
	}
}

func TestAdvanceRunsPhasesInOrderAndMovesClock(t *testing.T) {
	step := newStep()
	var trace []string
	record := func(name string) func(Step) {
		return func(s Step) {
			trace = append(trace, name)
			if name == "mode_post" {
				assert.Equal(t, uint32(0), s.Cosmos.Step(), "clock moves after the solve")
			}
			if name == "post_solve" {
				assert.Equal(t, uint32(1), s.Cosmos.Step())
			}
		}
	}

	r := NewRunner()
	r.Register(Func{PhasePostSolve, record("post_solve")})
	r.Register(Func{PhaseModePost, record("mode_post")})
	r.Register(Func{PhasePhysics, record("physics_a")})
	r.Register(Func{PhasePreSolve, record("pre")})
	r.Register(Func{PhasePhysics, record("physics_b")})
	r.Register(Func{PhaseModePre, record("mode_pre")})

	r.Advance(step)

	assert.Equal(t, []string{"pre", "mode_pre", "physics_a", "physics_b", "mode_post", "post_solve"}, trace)
	assert.Equal(t, uint32(1), step.Cosmos.Step())
}

func TestAdvanceClearsQueuesAtStart(t *testing.T) {
	step := newStep()
	event.Post(step.Queues, event.QueueDeletion{Reason: "stale"})

	var seen int
	r := NewRunner()
	r.Register(Func{PhaseDeletion, func(s Step) {
		seen = len(event.Queue[event.QueueDeletion](s.Queues))
		event.Post(s.Queues, event.QueueDeletion{Reason: "fresh"})
	}})
	r.Advance(step)

	assert.Zero(t, seen)
	assert.Len(t, event.Queue[event.QueueDeletion](step.Queues), 1, "messages survive until the next step")
}

func TestAdvanceWithoutSystemsStillTicks(t *testing.T) {
	step := newStep()
	r := NewRunner()
	r.Advance(step)
	r.Advance(step)
	assert.Equal(t, uint32(2), step.Cosmos.Step())
}
