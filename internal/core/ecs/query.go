package ecs

import "fmt"

// LayoutError reports a snapshot whose store layout does not match the
// registry it is decoded into.
type LayoutError struct {
	Want, Got int
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("ecs: store layout mismatch: want %d, got %d", e.Want, e.Got)
}

// Each2 iterates over entities that have both component A and B, in the dense
// order of sa.
func Each2[A, B any](sa *Pool[A], sb *Pool[B], fn func(EntityID, *A, *B)) {
	for i := range sa.dense {
		id := sa.owners[i]
		if b := sb.Find(id); b != nil {
			fn(id, &sa.dense[i], b)
		}
	}
}

// Each3 iterates over entities that have components A, B, and C, in the dense
// order of sa.
func Each3[A, B, C any](sa *Pool[A], sb *Pool[B], sc *Pool[C], fn func(EntityID, *A, *B, *C)) {
	for i := range sa.dense {
		id := sa.owners[i]
		b := sb.Find(id)
		if b == nil {
			continue
		}
		if c := sc.Find(id); c != nil {
			fn(id, &sa.dense[i], b, c)
		}
	}
}
