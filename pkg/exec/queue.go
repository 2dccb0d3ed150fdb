// Package exec provides the deterministic execution surfaces of the harness:
// a manually drained action queue, an execution context that toggles between
// immediate and deferred submission, an inline context, and the process-wide
// shared scheduler.
package exec

import "errors"

// ErrEmptyQueue reports a pop or trigger against an empty action queue.
// This is a programming error in the calling test, never a blocking wait.
var ErrEmptyQueue = errors.New("action queue is empty")

// ActionQueue is an ordered, unbounded FIFO of deferred actions. It carries
// no internal locking: the queue is meant for single-threaded, turn-by-turn
// draining by test code. Callers sharing a queue across goroutines must
// serialize access themselves.
type ActionQueue struct {
	actions []func()
}

// NewActionQueue returns an empty queue.
func NewActionQueue() *ActionQueue {
	return &ActionQueue{}
}

// Enqueue appends an action at the tail.
func (q *ActionQueue) Enqueue(action func()) {
	q.actions = append(q.actions, action)
}

// Pop removes and returns the head action without running it.
func (q *ActionQueue) Pop() (func(), error) {
	if len(q.actions) == 0 {
		return nil, ErrEmptyQueue
	}
	head := q.actions[0]
	q.actions[0] = nil
	q.actions = q.actions[1:]
	return head, nil
}

// Trigger pops the head action and runs it synchronously on the caller.
// A panic raised by the action propagates to the caller.
func (q *ActionQueue) Trigger() error {
	head, err := q.Pop()
	if err != nil {
		return err
	}
	head()
	return nil
}

// IsEmpty reports whether the queue holds no actions.
func (q *ActionQueue) IsEmpty() bool { return len(q.actions) == 0 }

// Len reports the number of queued actions.
func (q *ActionQueue) Len() int { return len(q.actions) }
