package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridlet/gridlet/internal/enroll"
	"github.com/gridlet/gridlet/pkg/actor"
	"github.com/gridlet/gridlet/pkg/config"
	"github.com/gridlet/gridlet/pkg/discovery"
	"github.com/gridlet/gridlet/pkg/roles"
)

const askBound = 2 * time.Second

// autoWorker acks nothing and echoes every dispatched task straight back as
// done, standing in for a real worker.
func autoWorker(coord *actor.Ref) actor.Receiver {
	return actor.ReceiverFunc(func(ctx *actor.Context) {
		if m, ok := ctx.Message().(roles.RunTask); ok {
			_ = ctx.Tell(*coord, roles.TaskDone{
				JobID: m.JobID,
				Seq:   m.Seq,
				Result: roles.TaskResult{Handler: m.Spec.Handler, Output: m.Spec.Payload},
			})
		}
	})
}

func startCoordinator(t *testing.T, sys actor.System, cfg *config.Config) actor.Ref {
	t.Helper()
	archive, err := sys.Spawn("archive", NewArchive(nil))
	require.NoError(t, err)
	ref, err := sys.Spawn("coordinator", New(discovery.WellKnownSession, cfg, archive, nil))
	require.NoError(t, err)
	return ref
}

func registerFakeWorker(t *testing.T, sys actor.System, coord actor.Ref, name string, slots int) actor.Ref {
	t.Helper()
	ref, err := sys.Spawn(name, autoWorker(&coord))
	require.NoError(t, err)
	require.NoError(t, sys.Tell(coord, roles.RegisterWorker{
		Session: discovery.WellKnownSession,
		Name:    name,
		Addr:    ref.Addr,
		Slots:   slots,
	}, ref))
	return ref
}

func awaitWorkerCount(t *testing.T, sys actor.System, coord actor.Ref, want int) roles.WorkerSet {
	t.Helper()
	deadline := time.Now().Add(askBound)
	for {
		reply, err := sys.Ask(context.Background(), coord, roles.GetWorkers{}, askBound)
		require.NoError(t, err)
		set := reply.(roles.WorkerSet)
		if len(set.Workers) == want {
			return set
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d workers, got %d", want, len(set.Workers))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegisterWorkerAndListWorkers(t *testing.T) {
	sys := actor.NewLocal("coord-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()
	coord := startCoordinator(t, sys, nil)

	registerFakeWorker(t, sys, coord, "w1", 2)
	set := awaitWorkerCount(t, sys, coord, 1)
	assert.Equal(t, "w1", set.Workers[0].Name)
	assert.Equal(t, 2, set.Workers[0].Slots)
	assert.False(t, set.Workers[0].RegisteredAt.IsZero())
}

func TestStaleSessionRegistrationRefused(t *testing.T) {
	sys := actor.NewLocal("coord-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()
	coord := startCoordinator(t, sys, nil)

	reply, err := sys.Ask(context.Background(), coord, roles.RegisterWorker{
		Session: discovery.NewSessionID(),
		Name:    "stale",
	}, askBound)
	require.NoError(t, err)
	refused, ok := reply.(roles.RegistrationRefused)
	require.True(t, ok, "expected refusal, got %T", reply)
	assert.Contains(t, refused.Reason, "stale")

	awaitWorkerCount(t, sys, coord, 0)
}

func TestEnrollmentEnforcedWhenSecretConfigured(t *testing.T) {
	sys := actor.NewLocal("coord-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()

	cfg := config.New()
	cfg.Set(config.KeyEnrollSecret, "hush")
	coord := startCoordinator(t, sys, cfg)

	// missing token is refused
	reply, err := sys.Ask(context.Background(), coord, roles.RegisterWorker{
		Session: discovery.WellKnownSession,
		Name:    "anon",
	}, askBound)
	require.NoError(t, err)
	_, refused := reply.(roles.RegistrationRefused)
	assert.True(t, refused, "expected refusal without token, got %T", reply)

	// a valid token is admitted
	token, err := enroll.IssueToken([]byte("hush"), "w1", time.Minute)
	require.NoError(t, err)
	reply, err = sys.Ask(context.Background(), coord, roles.RegisterWorker{
		Session: discovery.WellKnownSession,
		Name:    "w1",
		Token:   token,
	}, askBound)
	require.NoError(t, err)
	ack, ok := reply.(roles.RegistrationAck)
	require.True(t, ok, "expected ack, got %T", reply)
	assert.Equal(t, "w1", ack.AssignedID)
}

func TestSubmitJobWithNoWorkersFails(t *testing.T) {
	sys := actor.NewLocal("coord-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()
	coord := startCoordinator(t, sys, nil)

	reply, err := sys.Ask(context.Background(), coord, roles.SubmitJob{
		Session: discovery.WellKnownSession,
		Job:     roles.Job{ID: "j1", Tasks: []roles.TaskSpec{{Handler: "echo"}}},
	}, askBound)
	require.NoError(t, err)
	result := reply.(roles.JobResult)
	assert.Equal(t, "no workers registered", result.Err)
}

func TestSubmitJobAggregatesTaskResults(t *testing.T) {
	sys := actor.NewLocal("coord-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()
	coord := startCoordinator(t, sys, nil)
	registerFakeWorker(t, sys, coord, "w1", 1)
	registerFakeWorker(t, sys, coord, "w2", 1)
	awaitWorkerCount(t, sys, coord, 2)

	job := roles.Job{ID: "job-agg", Name: "agg", Tasks: []roles.TaskSpec{
		{Handler: "echo", Payload: []byte("a")},
		{Handler: "echo", Payload: []byte("b")},
		{Handler: "echo", Payload: []byte("c")},
	}}
	reply, err := sys.Ask(context.Background(), coord, roles.SubmitJob{
		Session: discovery.WellKnownSession,
		Job:     job,
	}, askBound)
	require.NoError(t, err)
	result := reply.(roles.JobResult)
	require.Empty(t, result.Err)
	require.Len(t, result.Results, 3)
	assert.Equal(t, []byte("a"), result.Results[0].Output)
	assert.Equal(t, []byte("b"), result.Results[1].Output)
	assert.Equal(t, []byte("c"), result.Results[2].Output)

	// the finished job is fetchable from the archive
	archive, found := sys.Lookup("archive")
	require.True(t, found)
	archReply, err := sys.Ask(context.Background(), archive, roles.FetchJob{JobID: "job-agg"}, askBound)
	require.NoError(t, err)
	archived := archReply.(roles.ArchivedJob)
	assert.True(t, archived.Found)
	assert.Equal(t, "job-agg", archived.Result.JobID)
}

func TestEmptyJobSucceedsImmediately(t *testing.T) {
	sys := actor.NewLocal("coord-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()
	coord := startCoordinator(t, sys, nil)

	reply, err := sys.Ask(context.Background(), coord, roles.SubmitJob{
		Session: discovery.WellKnownSession,
		Job:     roles.Job{Name: "empty"},
	}, askBound)
	require.NoError(t, err)
	result := reply.(roles.JobResult)
	assert.Empty(t, result.Err)
	assert.NotEmpty(t, result.JobID, "coordinator must assign an id")
}

func TestArchiveFetchUnknownJob(t *testing.T) {
	sys := actor.NewLocal("coord-test", nil)
	defer func() { require.NoError(t, sys.Shutdown(context.Background())) }()
	archive, err := sys.Spawn("archive", NewArchive(nil))
	require.NoError(t, err)

	reply, err := sys.Ask(context.Background(), archive, roles.FetchJob{JobID: "nope"}, askBound)
	require.NoError(t, err)
	archived := reply.(roles.ArchivedJob)
	assert.False(t, archived.Found)
}
