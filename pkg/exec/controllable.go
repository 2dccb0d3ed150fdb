package exec

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrUnsupported reports a periodic or delayed scheduling request against a
// controllable context. Deterministic contexts never degrade to timers.
var ErrUnsupported = errors.New("scheduled execution is not supported by a controllable context")

// Context is the submission surface role actors run their asynchronous work
// against.
type Context interface {
	Submit(work func())
}

// Controllable is an execution context a test steers by hand: in automatic
// mode submissions run synchronously on the caller; in manual mode they are
// buffered into the owned ActionQueue until the test triggers them.
//
// Mode switches are not atomic with respect to submissions from other
// goroutines; a test toggling concurrently with multi-threaded submitters
// must provide its own synchronization.
type Controllable struct {
	queue     *ActionQueue
	automatic bool
	onFailure func(error)
}

// ControllableOption configures a Controllable context.
type ControllableOption func(*Controllable)

// WithFailureHook replaces the default failure hook. The hook observes
// panics recovered from automatically executed work.
func WithFailureHook(hook func(error)) ControllableOption {
	return func(c *Controllable) { c.onFailure = hook }
}

// WithLogger routes recovered failures to the given logger.
func WithLogger(log *zap.Logger) ControllableOption {
	return func(c *Controllable) {
		c.onFailure = func(err error) {
			log.Error("deferred work failed", zap.Error(err))
		}
	}
}

// NewControllable returns a context starting in manual mode with an empty
// queue.
func NewControllable(opts ...ControllableOption) *Controllable {
	c := &Controllable{
		queue: NewActionQueue(),
		onFailure: func(err error) {
			zap.L().Error("deferred work failed", zap.Error(err))
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit runs work now (automatic mode) or queues it (manual mode). It
// never blocks and never rejects on load. Panics from automatic execution
// are recovered and handed to the failure hook so one failing piece of work
// cannot abort the harness.
func (c *Controllable) Submit(work func()) {
	if !c.automatic {
		c.queue.Enqueue(work)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.onFailure(fmt.Errorf("submitted work panicked: %v", r))
		}
	}()
	work()
}

// ToggleMode flips manual and automatic execution. Only submissions issued
// after the toggle are affected; already-queued actions stay queued.
func (c *Controllable) ToggleMode() {
	c.automatic = !c.automatic
}

// Automatic reports the current mode.
func (c *Controllable) Automatic() bool { return c.automatic }

// Queue exposes the owned queue for manual draining.
func (c *Controllable) Queue() *ActionQueue { return c.queue }

// ScheduleOnce always fails: delayed execution is a misuse of a
// deterministic context.
func (c *Controllable) ScheduleOnce(delay time.Duration, work func()) error {
	return ErrUnsupported
}

// ScheduleAtFixedRate always fails, regardless of arguments.
func (c *Controllable) ScheduleAtFixedRate(initial, period time.Duration, work func()) error {
	return ErrUnsupported
}

// ScheduleWithFixedDelay always fails, regardless of arguments.
func (c *Controllable) ScheduleWithFixedDelay(initial, delay time.Duration, work func()) error {
	return ErrUnsupported
}

// Shutdown is a no-op so generic cleanup paths can call it without
// discarding queued state. Callers needing real cleanup drain the queue
// explicitly.
func (c *Controllable) Shutdown() {}

// IsShutdown always reports false; see Shutdown.
func (c *Controllable) IsShutdown() bool { return false }

// IsTerminated always reports false; see Shutdown.
func (c *Controllable) IsTerminated() bool { return false }

// AwaitTermination returns false immediately without waiting.
func (c *Controllable) AwaitTermination(timeout time.Duration) bool { return false }
