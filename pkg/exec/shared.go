package exec

import (
	"errors"
	"sync"
	"time"
)

// ErrSchedulerStopped reports a deferred call handed to a stopped scheduler.
var ErrSchedulerStopped = errors.New("scheduler is stopped")

// Scheduler runs deferred calls on one dedicated goroutine, in deadline
// order. It backs registration retries and other low-volume timed work that
// must not spawn per-call goroutines.
type Scheduler struct {
	add  chan schedEntry
	quit chan struct{}
	done chan struct{}

	mu      sync.Mutex
	stopped bool
}

type schedEntry struct {
	at time.Time
	fn func()
}

// NewScheduler starts the scheduler goroutine.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		add:  make(chan schedEntry, 16),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.loop()
	return s
}

// After runs fn on the scheduler goroutine once delay has elapsed.
func (s *Scheduler) After(delay time.Duration, fn func()) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	s.mu.Unlock()

	select {
	case s.add <- schedEntry{at: time.Now().Add(delay), fn: fn}:
		return nil
	case <-s.quit:
		return ErrSchedulerStopped
	}
}

// Stop terminates the scheduler goroutine. Pending entries are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.quit)
	s.mu.Unlock()
	<-s.done
}

// Stopped reports whether Stop has been called.
func (s *Scheduler) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Scheduler) loop() {
	defer close(s.done)
	var pending []schedEntry
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		next := time.Hour
		if len(pending) > 0 {
			earliest := pending[0].at
			for _, e := range pending[1:] {
				if e.at.Before(earliest) {
					earliest = e.at
				}
			}
			next = time.Until(earliest)
			if next < 0 {
				next = 0
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(next)

		select {
		case <-s.quit:
			return
		case e := <-s.add:
			pending = append(pending, e)
		case <-timer.C:
			remaining := pending[:0]
			for _, e := range pending {
				if !e.at.After(time.Now()) {
					e.fn()
				} else {
					remaining = append(remaining, e)
				}
			}
			pending = remaining
		}
	}
}

var (
	sharedMu sync.Mutex
	shared   *Scheduler
)

// SharedScheduler returns the process-wide scheduler, creating it on first
// use and recreating it if a previous one was stopped. The check-and-create
// sequence is guarded by a single lock.
func SharedScheduler() *Scheduler {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil || shared.Stopped() {
		shared = NewScheduler()
	}
	return shared
}
