package exec

import (
	"errors"
	"testing"
)

func TestQueuePreservesEnqueueOrder(t *testing.T) {
	q := NewActionQueue()
	var log []string
	for _, label := range []string{"A", "B", "C"} {
		label := label
		q.Enqueue(func() { log = append(log, label) })
	}
	for i := 0; i < 3; i++ {
		if err := q.Trigger(); err != nil {
			t.Fatalf("trigger %d: %v", i, err)
		}
	}
	if len(log) != 3 || log[0] != "A" || log[1] != "B" || log[2] != "C" {
		t.Fatalf("unexpected execution order: %v", log)
	}
	if !q.IsEmpty() {
		t.Fatalf("expected queue to be empty after draining")
	}
}

func TestQueueEmptyPopAndTriggerFail(t *testing.T) {
	q := NewActionQueue()
	if _, err := q.Pop(); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("expected ErrEmptyQueue from Pop, got %v", err)
	}
	if err := q.Trigger(); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("expected ErrEmptyQueue from Trigger, got %v", err)
	}
}

func TestQueuePopDoesNotRun(t *testing.T) {
	q := NewActionQueue()
	ran := false
	q.Enqueue(func() { ran = true })
	head, err := q.Pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if ran {
		t.Fatalf("pop must not run the action")
	}
	head()
	if !ran {
		t.Fatalf("returned action did not run")
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got len=%d", q.Len())
	}
}

func TestQueueTriggerPropagatesPanic(t *testing.T) {
	q := NewActionQueue()
	q.Enqueue(func() { panic("boom") })
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate from Trigger")
		}
	}()
	_ = q.Trigger()
}
