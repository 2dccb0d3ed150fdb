// Package discovery provides leader-session identifiers and the
// fixed-address leader binding the harness substitutes for real leader
// election. Real election is asynchronous and non-deterministic; pinning
// the leader address removes that flakiness while the registration and
// messaging paths of each role stay real.
package discovery

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SessionID is the epoch token distinguishing the active coordinator
// instance from superseded ones.
type SessionID string

// WellKnownSession is the fixed leader session every harness-started
// coordinator binds to. Tests that need a stale session mint one with
// NewSessionID.
const WellKnownSession SessionID = "00000000-0000-0000-0000-000000000000"

// NewSessionID mints a fresh session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// SessionTagged is implemented by messages carrying the leader session they
// were produced under, enabling stale-session fencing.
type SessionTagged interface {
	LeaderSession() SessionID
}

// Role names resolvable through a binding.
const (
	RoleCoordinator     = "coordinator"
	RoleResourceManager = "resource-manager"
)

// ErrUnknownRole reports a lookup for a role the binding does not carry.
var ErrUnknownRole = errors.New("no address bound for role")

// Resolver is the lookup contract of the leader-discovery service.
type Resolver interface {
	// Resolve maps a logical role name to a concrete address.
	Resolve(role string) (string, error)
	// Watch delivers address changes for a role. The fixed binding never
	// fires it.
	Watch(role string) <-chan string
}

// FixedBinding resolves every configured role to one preconfigured address.
// Immutable once constructed.
type FixedBinding struct {
	addrs map[string]string
	never chan string
}

// NewFixedBinding copies the given role-to-address pairs into a binding.
func NewFixedBinding(addrs map[string]string) *FixedBinding {
	copied := make(map[string]string, len(addrs))
	for role, addr := range addrs {
		copied[role] = addr
	}
	return &FixedBinding{addrs: copied, never: make(chan string)}
}

// SingleLeader binds exactly one role to one address.
func SingleLeader(role, addr string) *FixedBinding {
	return NewFixedBinding(map[string]string{role: addr})
}

func (b *FixedBinding) Resolve(role string) (string, error) {
	addr, ok := b.addrs[role]
	if !ok {
		return "", fmt.Errorf("resolve %q: %w", role, ErrUnknownRole)
	}
	return addr, nil
}

// Watch returns a channel that never delivers: a fixed binding has no
// address changes to report.
func (b *FixedBinding) Watch(role string) <-chan string {
	return b.never
}
