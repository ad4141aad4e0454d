package event

import (
	"testing"

	"github.com/bombarena/server/internal/core/ecs"
	"github.com/stretchr/testify/assert"
)

func TestPostAndQueue(t *testing.T) {
	q := NewQueues()
	Post(q, Damage{Subject: ecs.NewEntityID(1, 1, 1), Amount: 5})
	Post(q, Damage{Subject: ecs.NewEntityID(2, 1, 1), Amount: 7})
	Post(q, BattleEvent{Event: BattleBombPlanted})

	d := Queue[Damage](q)
	assert.Len(t, d, 2)
	assert.Equal(t, int32(5), d[0].Amount)
	assert.Equal(t, int32(7), d[1].Amount)
	assert.Len(t, Queue[BattleEvent](q), 1)
	assert.Empty(t, Queue[HealthEvent](q))
	assert.Equal(t, 3, q.Len())
}

func TestClearEmptiesEveryQueue(t *testing.T) {
	q := NewQueues()
	Post(q, QueueDeletion{Reason: "x"})
	Post(q, ChangedIdentities{Changes: []IdentityChange{{}}})
	q.Clear()
	assert.Zero(t, q.Len())
}

func TestQueueSeesMessagesPostedDuringIteration(t *testing.T) {
	q := NewQueues()
	Post(q, Damage{Amount: 1})
	n := 0
	for i := 0; i < len(Queue[Damage](q)); i++ {
		if Queue[Damage](q)[i].Amount == 1 {
			Post(q, Damage{Amount: 2})
		}
		n++
	}
	assert.Equal(t, 2, n)
}
