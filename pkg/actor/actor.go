// Package actor provides the in-process actor substrate the cluster harness
// runs on: named mailboxes, fire-and-forget sends, bounded-timeout
// request/reply, and forceful termination. The bootstrapper depends only on
// the System interface, so a fake substrate can be swapped in by tests.
package actor

import (
	"context"
	"strings"
	"time"
)

// Ref is a reachable handle for a spawned actor. The zero value means
// "no sender" and is safe to pass wherever a sender is optional.
type Ref struct {
	Name string
	Addr string
}

// IsZero reports whether the ref identifies no actor.
func (r Ref) IsZero() bool { return r.Name == "" && r.Addr == "" }

// NoSender is the absent sender ref.
var NoSender = Ref{}

// RefFromAddr reconstructs a ref from a substrate address such as
// "local://system/name". Used when only an address survived a lookup
// (e.g. through a leader binding).
func RefFromAddr(addr string) Ref {
	name := addr
	if i := strings.LastIndex(addr, "/"); i >= 0 {
		name = addr[i+1:]
	}
	return Ref{Name: name, Addr: addr}
}

// Receiver handles messages delivered to an actor's mailbox, one at a time.
type Receiver interface {
	Receive(ctx *Context)
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func(ctx *Context)

func (f ReceiverFunc) Receive(ctx *Context) { f(ctx) }

// Started is delivered to an actor as the first message after spawning.
type Started struct{}

// Context carries one delivered message plus the capabilities the receiver
// may use while handling it.
type Context struct {
	system  System
	self    Ref
	sender  Ref
	message any
}

func (c *Context) System() System { return c.system }
func (c *Context) Self() Ref      { return c.self }
func (c *Context) Sender() Ref    { return c.sender }
func (c *Context) Message() any   { return c.message }

// Respond sends a reply to the sender of the current message. Replies to an
// absent sender go to dead letters.
func (c *Context) Respond(msg any) {
	_ = c.system.Tell(c.sender, msg, c.self)
}

// Tell sends a message to another actor with this actor as the sender.
func (c *Context) Tell(to Ref, msg any) error {
	return c.system.Tell(to, msg, c.self)
}

// System is the substrate surface the harness depends on: create, send,
// request/reply with timeout, and forceful kill.
type System interface {
	// Spawn creates an actor under the given unique name and delivers
	// Started to it before any other message.
	Spawn(name string, r Receiver, opts ...SpawnOption) (Ref, error)
	// Tell enqueues msg for the target actor and returns without waiting
	// for it to be handled. An unknown target is an error.
	Tell(to Ref, msg any, sender Ref) error
	// Ask sends msg and blocks for a reply up to timeout. Timeout is a
	// first-class outcome reported as ErrAskTimeout.
	Ask(ctx context.Context, to Ref, msg any, timeout time.Duration) (any, error)
	// Kill forcefully terminates the actor behind ref without draining its
	// mailbox and without waiting for acknowledgement.
	Kill(ref Ref)
	// Lookup resolves a spawned actor by name.
	Lookup(name string) (Ref, bool)
	// Names lists the names of all live actors.
	Names() []string
	// Shutdown kills every actor and waits for their goroutines to exit.
	Shutdown(ctx context.Context) error
}

// SpawnOption configures one spawned actor.
type SpawnOption func(*spawnConfig)

type spawnConfig struct {
	mailboxSize int
	serialize   bool
}

// WithMailboxSize overrides the default mailbox capacity.
func WithMailboxSize(n int) SpawnOption {
	return func(c *spawnConfig) {
		if n > 0 {
			c.mailboxSize = n
		}
	}
}

// WithSerializedDelivery routes every inbound message from other actors
// through the codec registry (marshal then unmarshal) before it reaches the
// mailbox. This mimics a remote transport: messages must be registered and
// must not share memory with the sender. Self-sends bypass the codec.
func WithSerializedDelivery() SpawnOption {
	return func(c *spawnConfig) { c.serialize = true }
}
