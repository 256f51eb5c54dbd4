package simulation

import (
	"context"
	"sync"
)

// ActionKind tells which backend call an Action performs.
type ActionKind int

const (
	// ActionOpen inserts a new event record.
	ActionOpen ActionKind = iota
	// ActionClose updates an existing event record with its end time.
	ActionClose
)

func (k ActionKind) String() string {
	if k == ActionClose {
		return "close"
	}

	return "open"
}

// Action is one queued unit of backend work. Run captures everything it needs and is called
// exactly once by the Dispatcher. Key identifies the action in logs.
type Action struct {
	Kind ActionKind
	Key  string
	Run  func(ctx context.Context) error
}

// Queue is an unbounded FIFO of actions, safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	items []Action
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends an action at the tail.
func (q *Queue) Push(action Action) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, action)
}

// DequeueUpTo removes and returns at most n actions from the head, in FIFO order,
// together with how many actions are still queued afterwards.
func (q *Queue) DequeueUpTo(n int) ([]Action, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.items) {
		n = len(q.items)
	}

	batch := make([]Action, n)
	copy(batch, q.items[:n])

	remaining := copy(q.items, q.items[n:])
	for i := remaining; i < len(q.items); i++ {
		q.items[i] = Action{} // drop closure references
	}
	q.items = q.items[:remaining]

	return batch, remaining
}

// Len returns the number of queued actions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Clear drops all queued actions and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := len(q.items)
	q.items = nil

	return dropped
}
