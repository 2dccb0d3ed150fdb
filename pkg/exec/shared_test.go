package exec

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsDeferredCall(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	done := make(chan struct{})
	if err := s.After(10*time.Millisecond, func() { close(done) }); err != nil {
		t.Fatalf("after: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("deferred call never ran")
	}
}

func TestSchedulerOrdersByDeadline(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var first atomic.Int32
	late := make(chan struct{})
	if err := s.After(150*time.Millisecond, func() {
		first.CompareAndSwap(0, 2)
		close(late)
	}); err != nil {
		t.Fatalf("after: %v", err)
	}
	if err := s.After(10*time.Millisecond, func() {
		first.CompareAndSwap(0, 1)
	}); err != nil {
		t.Fatalf("after: %v", err)
	}
	select {
	case <-late:
	case <-time.After(2 * time.Second):
		t.Fatalf("late call never ran")
	}
	if first.Load() != 1 {
		t.Fatalf("expected the earlier deadline to run first")
	}
}

func TestSchedulerStopRejectsNewCalls(t *testing.T) {
	s := NewScheduler()
	s.Stop()
	if !s.Stopped() {
		t.Fatalf("expected stopped scheduler")
	}
	if err := s.After(time.Millisecond, func() {}); err == nil {
		t.Fatalf("expected error scheduling on a stopped scheduler")
	}
}

func TestSharedSchedulerRecreatedAfterStop(t *testing.T) {
	first := SharedScheduler()
	if first.Stopped() {
		t.Fatalf("fresh shared scheduler must be running")
	}
	first.Stop()
	second := SharedScheduler()
	if second == first {
		t.Fatalf("expected a fresh scheduler after the shared one was stopped")
	}
	if second.Stopped() {
		t.Fatalf("recreated shared scheduler must be running")
	}
	if third := SharedScheduler(); third != second {
		t.Fatalf("running shared scheduler must be reused")
	}
}
