// Package relay provides a forwarding relay actor: an addressable sink that
// re-sends every message to a fixed target while preserving the original
// sender, so the target's replies go straight back to the caller. Tests
// drop a relay between roles to observe or intercept traffic.
package relay

import (
	"go.uber.org/zap"

	"github.com/gridlet/gridlet/pkg/actor"
	"github.com/gridlet/gridlet/pkg/discovery"
)

// Relay is an actor.Receiver with a single state: relaying. It lives until
// the substrate kills it.
type Relay struct {
	log     *zap.Logger
	target  actor.Ref
	session discovery.SessionID
	fence   bool
}

// Option configures a Relay.
type Option func(*Relay)

// WithSessionFence drops messages tagged with a leader session other than
// the given one instead of forwarding them, matching the cluster's
// at-most-one-active-leader discipline. Untagged messages always pass.
func WithSessionFence(session discovery.SessionID) Option {
	return func(r *Relay) {
		r.session = session
		r.fence = true
	}
}

// WithLogger sets the relay's logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Relay) { r.log = log }
}

// New builds a relay forwarding to target.
func New(target actor.Ref, opts ...Option) *Relay {
	r := &Relay{log: zap.NewNop(), target: target}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Receive(ctx *actor.Context) {
	msg := ctx.Message()
	if _, ok := msg.(actor.Started); ok {
		return
	}
	if r.fence {
		if tagged, ok := msg.(discovery.SessionTagged); ok && tagged.LeaderSession() != r.session {
			r.log.Debug("dropping stale-session message",
				zap.String("session", string(tagged.LeaderSession())),
				zap.Any("message", msg))
			return
		}
	}
	_ = ctx.System().Tell(r.target, msg, ctx.Sender())
}
