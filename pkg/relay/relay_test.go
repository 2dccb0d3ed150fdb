package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridlet/gridlet/pkg/actor"
	"github.com/gridlet/gridlet/pkg/discovery"
	"github.com/gridlet/gridlet/pkg/roles"
)

type delivery struct {
	sender actor.Ref
	msg    any
}

func spawnSink(t *testing.T, sys actor.System, name string) (actor.Ref, chan delivery) {
	t.Helper()
	out := make(chan delivery, 8)
	ref, err := sys.Spawn(name, actor.ReceiverFunc(func(ctx *actor.Context) {
		if _, ok := ctx.Message().(actor.Started); ok {
			return
		}
		out <- delivery{sender: ctx.Sender(), msg: ctx.Message()}
	}))
	require.NoError(t, err)
	return ref, out
}

func TestRelayPreservesOriginalSender(t *testing.T) {
	sys := actor.NewLocal("relay-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()

	target, out := spawnSink(t, sys, "target")
	relayRef, err := sys.Spawn("relay", New(target))
	require.NoError(t, err)

	origin := actor.RefFromAddr("local://relay-test/origin")
	probe := roles.Probe{Session: discovery.WellKnownSession, Payload: "hello"}
	require.NoError(t, sys.Tell(relayRef, probe, origin))

	select {
	case got := <-out:
		assert.Equal(t, probe, got.msg)
		assert.Equal(t, origin, got.sender, "target must see the original sender, not the relay")
	case <-time.After(2 * time.Second):
		t.Fatalf("probe never forwarded")
	}
}

func TestRelayRepliesBypassTheRelay(t *testing.T) {
	sys := actor.NewLocal("relay-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()

	target, err := sys.Spawn("target", actor.ReceiverFunc(func(ctx *actor.Context) {
		if m, ok := ctx.Message().(roles.Probe); ok {
			ctx.Respond(roles.ProbeAck{Payload: m.Payload})
		}
	}))
	require.NoError(t, err)
	relayRef, err := sys.Spawn("relay", New(target))
	require.NoError(t, err)

	// asking the relay gets an answer straight from the target
	reply, err := sys.Ask(context.Background(), relayRef,
		roles.Probe{Session: discovery.WellKnownSession, Payload: "ping"}, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, roles.ProbeAck{Payload: "ping"}, reply)
}

func TestRelayDropsStaleSessionMessages(t *testing.T) {
	sys := actor.NewLocal("relay-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()

	target, out := spawnSink(t, sys, "target")
	relayRef, err := sys.Spawn("relay", New(target, WithSessionFence(discovery.WellKnownSession)))
	require.NoError(t, err)

	stale := roles.Probe{Session: discovery.NewSessionID(), Payload: "stale"}
	current := roles.Probe{Session: discovery.WellKnownSession, Payload: "current"}
	require.NoError(t, sys.Tell(relayRef, stale, actor.NoSender))
	require.NoError(t, sys.Tell(relayRef, current, actor.NoSender))

	select {
	case got := <-out:
		assert.Equal(t, current, got.msg, "stale-session message must be dropped")
	case <-time.After(2 * time.Second):
		t.Fatalf("current-session probe never forwarded")
	}
	select {
	case got := <-out:
		t.Fatalf("unexpected extra delivery: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRelayForwardsUntaggedMessagesWhenFenced(t *testing.T) {
	sys := actor.NewLocal("relay-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()

	target, out := spawnSink(t, sys, "target")
	relayRef, err := sys.Spawn("relay", New(target, WithSessionFence(discovery.WellKnownSession)))
	require.NoError(t, err)

	require.NoError(t, sys.Tell(relayRef, roles.GetWorkers{}, actor.NoSender))
	select {
	case got := <-out:
		assert.Equal(t, roles.GetWorkers{}, got.msg)
	case <-time.After(2 * time.Second):
		t.Fatalf("untagged message never forwarded")
	}
}
