package resourcemanager

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

const askBound = 2 * time.Second

func spawnManager(t *testing.T, sys actor.System, coord actor.Ref) actor.Ref {
	t.Helper()
	binding := discovery.SingleLeader(discovery.RoleCoordinator, coord.Addr)
	ref, err := sys.Spawn("rm", New("rm", discovery.WellKnownSession, binding, nil))
	require.NoError(t, err)
	return ref
}

func TestManagerRegistersWithCoordinator(t *testing.T) {
	sys := actor.NewLocal("rm-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()

	registers := make(chan roles.RegisterManager, 4)
	coord, err := sys.Spawn("coordinator", actor.ReceiverFunc(func(ctx *actor.Context) {
		if m, ok := ctx.Message().(roles.RegisterManager); ok {
			registers <- m
			ctx.Respond(roles.ManagerAck{Session: m.Session})
		}
	}))
	require.NoError(t, err)

	ref := spawnManager(t, sys, coord)
	select {
	case reg := <-registers:
		assert.Equal(t, discovery.WellKnownSession, reg.Session)
		assert.Equal(t, "rm", reg.Name)
		assert.Equal(t, ref.Addr, reg.Addr)
	case <-time.After(askBound):
		t.Fatalf("manager never registered")
	}
}

func TestManagerTracksSlots(t *testing.T) {
	sys := actor.NewLocal("rm-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()

	coord, err := sys.Spawn("coordinator", actor.ReceiverFunc(func(ctx *actor.Context) {
		if m, ok := ctx.Message().(roles.RegisterManager); ok {
			ctx.Respond(roles.ManagerAck{Session: m.Session})
		}
	}))
	require.NoError(t, err)
	ref := spawnManager(t, sys, coord)

	require.NoError(t, sys.Tell(ref, roles.SlotsAdded{Worker: "w1", Slots: 2}, actor.NoSender))
	require.NoError(t, sys.Tell(ref, roles.SlotsAdded{Worker: "w2", Slots: 3}, actor.NoSender))
	// a repeated report for the same worker replaces, not adds
	require.NoError(t, sys.Tell(ref, roles.SlotsAdded{Worker: "w1", Slots: 4}, actor.NoSender))

	reply, err := sys.Ask(context.Background(), ref, roles.SlotReport{}, askBound)
	require.NoError(t, err)
	status := reply.(roles.SlotStatus)
	assert.Equal(t, 2, status.Workers)
	assert.Equal(t, 7, status.TotalSlots)
}

func TestManagerEmptyLedger(t *testing.T) {
	sys := actor.NewLocal("rm-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()

	coord, err := sys.Spawn("coordinator", actor.ReceiverFunc(func(*actor.Context) {}))
	require.NoError(t, err)
	ref := spawnManager(t, sys, coord)

	reply, err := sys.Ask(context.Background(), ref, roles.SlotReport{}, askBound)
	require.NoError(t, err)
	status := reply.(roles.SlotStatus)
	assert.Zero(t, status.Workers)
	assert.Zero(t, status.TotalSlots)
}
