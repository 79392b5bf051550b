package bootstrap

import "github.com/aretw0/wharf/pkg/domain"

// Pending is a class waiting to be bound under a role.
type Pending struct {
	Class domain.Class
	Role  domain.Role
}

// QueueState is the lifecycle of one role queue.
type QueueState int

const (
	QueueEmpty QueueState = iota
	QueueAccumulating
	QueueDraining
)

func (s QueueState) String() string {
	switch s {
	case QueueAccumulating:
		return "accumulating"
	case QueueDraining:
		return "draining"
	default:
		return "empty"
	}
}

// queue holds the pending registrations of one role. Items added while the
// queue drains belong to the next cycle. Callers hold the Bootstrapper lock.
type queue struct {
	items    []Pending
	draining bool
}

func (q *queue) push(p Pending) {
	q.items = append(q.items, p)
}

// take hands over the current items and marks the queue draining.
func (q *queue) take() []Pending {
	items := q.items
	q.items = nil
	q.draining = true
	return items
}

func (q *queue) finish() {
	q.draining = false
}

func (q *queue) state() QueueState {
	switch {
	case q.draining:
		return QueueDraining
	case len(q.items) > 0:
		return QueueAccumulating
	default:
		return QueueEmpty
	}
}
