package event

import "fmt"

// Message is the closed set of types a step can post.
type Message interface {
	Damage | HealthEvent | QueueDeletion | TransferRequest | PerformedTransfer |
		BattleEvent | StartSound | ChangedIdentities | GameNotification | Explosion
}

// Queues holds one append-only queue per message type. The step driver clears
// them at the start of every step; until then presentation code may read what
// the last step posted. Queues are not part of the hashed state.
type Queues struct {
	damages      []Damage
	health       []HealthEvent
	deletions    []QueueDeletion
	transfers    []TransferRequest
	performed    []PerformedTransfer
	battle       []BattleEvent
	sounds       []StartSound
	identities   []ChangedIdentities
	notification []GameNotification
	explosions   []Explosion
}

func NewQueues() *Queues {
	return &Queues{}
}

func queueOf[T Message](q *Queues) *[]T {
	var zero T
	var p any
	switch any(zero).(type) {
	case Damage:
		p = &q.damages
	case HealthEvent:
		p = &q.health
	case QueueDeletion:
		p = &q.deletions
	case TransferRequest:
		p = &q.transfers
	case PerformedTransfer:
		p = &q.performed
	case BattleEvent:
		p = &q.battle
	case StartSound:
		p = &q.sounds
	case ChangedIdentities:
		p = &q.identities
	case GameNotification:
		p = &q.notification
	case Explosion:
		p = &q.explosions
	default:
		panic(fmt.Sprintf("event: no queue for %T", zero))
	}
	return p.(*[]T)
}

// Post appends a message to its queue.
func Post[T Message](q *Queues, msg T) {
	s := queueOf[T](q)
	*s = append(*s, msg)
}

// Queue returns the messages of one type posted since the last Clear. The
// slice is owned by q; callers must not retain it past the next step.
func Queue[T Message](q *Queues) []T {
	return *queueOf[T](q)
}

// Clear empties every queue.
func (q *Queues) Clear() {
	q.damages = q.damages[:0]
	q.health = q.health[:0]
	q.deletions = q.deletions[:0]
	q.transfers = q.transfers[:0]
	q.performed = q.performed[:0]
	q.battle = q.battle[:0]
	q.sounds = q.sounds[:0]
	clear(q.identities)
	q.identities = q.identities[:0]
	clear(q.notification)
	q.notification = q.notification[:0]
	q.explosions = q.explosions[:0]
}

// Len returns the number of queued messages over all queues.
func (q *Queues) Len() int {
	return len(q.damages) + len(q.health) + len(q.deletions) + len(q.transfers) +
		len(q.performed) + len(q.battle) + len(q.sounds) + len(q.identities) +
		len(q.notification) + len(q.explosions)
}
