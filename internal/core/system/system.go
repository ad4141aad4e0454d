package system

import (
	"github.com/bombarena/server/internal/core/event"
	"github.com/bombarena/server/internal/cosmos"
	"github.com/bombarena/server/internal/entropy"
)

// Phase defines execution ordering within a single step.
type Phase int

const (
	PhasePreSolve    Phase = iota // 0: caller hooks, not deterministic
	PhaseModePre                  // 1: mode: players, commands, round timers
	PhaseIntent                   // 2: entropy into input flags
	PhaseAI                       // 3: bot decisions
	PhasePhysics                  // 4: kinematics
	PhaseCombat                   // 5: attacks into damage
	PhaseFuse                     // 6: arming, defusing, detonation
	PhaseTransfers                // 7: drops and pickups
	PhaseSentience                // 8: damage into meters and health events
	PhaseDeletion                 // 9: queued deletions
	PhaseModePost                 // 10: mode: knockouts, win conditions
	PhasePostSolve                // 11: caller hooks, after the clock moved
	PhasePostCleanup              // 12: caller hooks
)

// lastSolvePhase is the final deterministic phase. The clock advances right
// after it.
const lastSolvePhase = PhaseModePost

func (p Phase) String() string {
	switch p {
	case PhasePreSolve:
		return "pre_solve"
	case PhaseModePre:
		return "mode_pre"
	case PhaseIntent:
		return "intent"
	case PhaseAI:
		return "ai"
	case PhasePhysics:
		return "physics"
	case PhaseCombat:
		return "combat"
	case PhaseFuse:
		return "fuse"
	case PhaseTransfers:
		return "transfers"
	case PhaseSentience:
		return "sentience"
	case PhaseDeletion:
		return "deletion"
	case PhaseModePost:
		return "mode_post"
	case PhasePostSolve:
		return "post_solve"
	case PhasePostCleanup:
		return "post_cleanup"
	}
	return "unknown"
}

// Step is what a system sees for one tick. Entropy is read only.
type Step struct {
	Cosmos  *cosmos.Cosmos
	Entropy *entropy.Total
	Queues  *event.Queues
}

// System is the interface every subsystem implements.
type System interface {
	Phase() Phase
	Solve(step Step)
}

// Func adapts a function to a System. Drivers use it for hooks.
type Func struct {
	At Phase
	Fn func(Step)
}

func (f Func) Phase() Phase     { return f.At }
func (f Func) Solve(step Step) { f.Fn(step) }
