package system

import (
	"github.com/bombarena/server/internal/core/event"
	coresys "github.com/bombarena/server/internal/core/system"
)

// DeletionSystem executes queued deletions at the end of the solve, in the
// order they were posted. Ids already dead are skipped.
type DeletionSystem struct{}

func NewDeletionSystem() *DeletionSystem { return &DeletionSystem{} }

func (s *DeletionSystem) Phase() coresys.Phase { return coresys.PhaseDeletion }

func (s *DeletionSystem) Solve(step coresys.Step) {
	q := event.Queue[event.QueueDeletion](step.Queues)
	for i := 0; i < len(q); i++ {
		step.Cosmos.DeleteEntity(q[i].Subject)
	}
}

// RegisterDefaults registers the standard subsystems on a runner.
func RegisterDefaults(r *coresys.Runner) {
	r.Register(NewIntentSystem())
	r.Register(NewAISystem())
	r.Register(NewPhysicsSystem())
	r.Register(NewCombatSystem())
	r.Register(NewFuseSystem())
	r.Register(NewTransferSystem())
	r.Register(NewSentienceSystem())
	r.Register(NewDeletionSystem())
}
