package system

import (
	"sort"
	"time"
)

// Runner executes systems in phase order each step. Systems sharing a phase
// run in registration order.
type Runner struct {
	systems []System
	sorted  bool

	// last holds the wall time each phase took on the latest step. It is
	// diagnostic only.
	last [PhasePostCleanup + 1]time.Duration
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Advance runs one step: clears the queues, runs every solve phase, advances
// the clock and runs the post hooks. Queues stay populated until the next
// Advance so readers can drain them after it returns.
func (r *Runner) Advance(step Step) {
	r.ensureSorted()
	step.Queues.Clear()
	clear(r.last[:])

	advanced := false
	for _, s := range r.systems {
		p := s.Phase()
		if p > lastSolvePhase && !advanced {
			step.Cosmos.AdvanceClock()
			advanced = true
		}
		start := time.Now()
		s.Solve(step)
		if p >= 0 && int(p) < len(r.last) {
			r.last[p] += time.Since(start)
		}
	}
	if !advanced {
		step.Cosmos.AdvanceClock()
	}
}

// Timing returns how long a phase took on the latest step.
func (r *Runner) Timing(p Phase) time.Duration {
	if p < 0 || int(p) >= len(r.last) {
		return 0
	}
	return r.last[p]
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
