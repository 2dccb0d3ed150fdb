package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultMailboxSize = 256

// envelope wraps a user message with its sender.
type envelope struct {
	sender  Ref
	message any
}

type mailbox struct {
	ref       Ref
	recv      Receiver
	ch        chan envelope
	quit      chan struct{}
	done      chan struct{}
	serialize bool
	killOnce  sync.Once
}

// Local is a single-process System implementation. One goroutine per actor
// drains a buffered mailbox; message handling is therefore serialized per
// actor but concurrent across actors.
type Local struct {
	name string
	log  *zap.Logger

	mu      sync.RWMutex
	actors  map[string]*mailbox
	stopped bool
}

// NewLocal creates an empty local actor system. A nil logger defaults to a
// no-op logger.
func NewLocal(name string, log *zap.Logger) *Local {
	if log == nil {
		log = zap.NewNop()
	}
	return &Local{
		name:   name,
		log:    log.With(zap.String("system", name)),
		actors: make(map[string]*mailbox),
	}
}

func (s *Local) addr(name string) string {
	return fmt.Sprintf("local://%s/%s", s.name, name)
}

func (s *Local) Spawn(name string, r Receiver, opts ...SpawnOption) (Ref, error) {
	cfg := spawnConfig{mailboxSize: defaultMailboxSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return Ref{}, ErrSystemStopped
	}
	if _, exists := s.actors[name]; exists {
		s.mu.Unlock()
		return Ref{}, fmt.Errorf("spawn %q: %w", name, ErrNameTaken)
	}
	mb := &mailbox{
		ref:       Ref{Name: name, Addr: s.addr(name)},
		recv:      r,
		ch:        make(chan envelope, cfg.mailboxSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		serialize: cfg.serialize,
	}
	s.actors[name] = mb
	s.mu.Unlock()

	go s.run(mb)
	mb.ch <- envelope{sender: NoSender, message: Started{}}
	return mb.ref, nil
}

func (s *Local) run(mb *mailbox) {
	defer close(mb.done)
	for {
		select {
		case <-mb.quit:
			return
		case env := <-mb.ch:
			s.dispatch(mb, env)
		}
	}
}

// dispatch invokes the receiver with panic isolation: a panicking handler
// is logged and the actor keeps processing its mailbox.
func (s *Local) dispatch(mb *mailbox, env envelope) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("actor panicked handling message",
				zap.String("actor", mb.ref.Name),
				zap.Any("panic", r))
		}
	}()
	mb.recv.Receive(&Context{
		system:  s,
		self:    mb.ref,
		sender:  env.sender,
		message: env.message,
	})
}

func (s *Local) Tell(to Ref, msg any, sender Ref) error {
	if to.IsZero() {
		s.log.Debug("dead letter: message to no one", zap.Any("message", msg))
		return nil
	}
	s.mu.RLock()
	mb, ok := s.actors[to.Name]
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrSystemStopped
	}
	if !ok {
		s.log.Debug("dead letter", zap.String("to", to.Addr))
		return fmt.Errorf("tell %s: %w", to.Addr, ErrUnknownActor)
	}

	if mb.serialize && sender.Name != to.Name {
		copied, err := roundtrip(msg)
		if err != nil {
			return fmt.Errorf("tell %s: %w", to.Addr, err)
		}
		msg = copied
	}

	select {
	case mb.ch <- envelope{sender: sender, message: msg}:
		return nil
	case <-mb.quit:
		return fmt.Errorf("tell %s: %w", to.Addr, ErrUnknownActor)
	}
}

// Ask spawns an ephemeral reply actor so the reply path survives message
// interception: the target (or any relay in between) just answers the
// sender it sees.
func (s *Local) Ask(ctx context.Context, to Ref, msg any, timeout time.Duration) (any, error) {
	replyCh := make(chan any, 1)
	tmp := "ask-" + uuid.NewString()[:8]
	ref, err := s.Spawn(tmp, ReceiverFunc(func(c *Context) {
		if _, ok := c.Message().(Started); ok {
			return
		}
		select {
		case replyCh <- c.Message():
		default:
		}
	}))
	if err != nil {
		return nil, err
	}
	defer s.Kill(ref)

	if err := s.Tell(to, msg, ref); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case reply := <-replyCh:
		return reply, nil
	case <-timer.C:
		return nil, fmt.Errorf("ask %s after %s: %w", to.Addr, timeout, ErrAskTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Local) Kill(ref Ref) {
	s.mu.Lock()
	mb, ok := s.actors[ref.Name]
	if ok {
		delete(s.actors, ref.Name)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	mb.killOnce.Do(func() { close(mb.quit) })
}

func (s *Local) Lookup(name string) (Ref, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mb, ok := s.actors[name]
	if !ok {
		return Ref{}, false
	}
	return mb.ref, true
}

func (s *Local) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.actors))
	for name := range s.actors {
		names = append(names, name)
	}
	return names
}

// Shutdown kills every live actor and waits for their goroutines to exit.
func (s *Local) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	mbs := make([]*mailbox, 0, len(s.actors))
	for _, mb := range s.actors {
		mbs = append(mbs, mb)
	}
	s.actors = make(map[string]*mailbox)
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, mb := range mbs {
		mb := mb
		mb.killOnce.Do(func() { close(mb.quit) })
		g.Go(func() error {
			select {
			case <-mb.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}
