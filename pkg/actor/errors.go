package actor

import "errors"

var (
	// ErrAskTimeout reports that a bounded-wait request/reply elapsed
	// without a reply.
	ErrAskTimeout = errors.New("ask timed out waiting for reply")
	// ErrSystemStopped reports an operation against a shut-down system.
	ErrSystemStopped = errors.New("actor system is stopped")
	// ErrNameTaken reports a spawn under a name that is already live.
	ErrNameTaken = errors.New("actor name already taken")
	// ErrUnknownActor reports a send to an address with no live actor.
	ErrUnknownActor = errors.New("no actor at address")
	// ErrUnknownMessage reports a serialized delivery of a message type
	// that was never registered with the codec.
	ErrUnknownMessage = errors.New("message type not registered")
)
