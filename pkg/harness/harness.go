// Package harness assembles runnable miniature clusters for tests: it
// spawns coordinator, worker, and resource-manager role actors against a
// fixed leader binding and offers bounded-wait synchronization on worker
// registration and job completion.
package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridlet/gridlet/pkg/actor"
	"github.com/gridlet/gridlet/pkg/config"
	"github.com/gridlet/gridlet/pkg/discovery"
	"github.com/gridlet/gridlet/pkg/exec"
	"github.com/gridlet/gridlet/pkg/roles"
	"github.com/gridlet/gridlet/pkg/roles/coordinator"
	"github.com/gridlet/gridlet/pkg/roles/resourcemanager"
	"github.com/gridlet/gridlet/pkg/roles/worker"
)

// Gateway is a reachable role actor plus the leader session it is bound to.
type Gateway struct {
	Ref     actor.Ref
	Session discovery.SessionID
}

// IsZero reports whether the gateway identifies no actor.
func (g Gateway) IsZero() bool { return g.Ref.IsZero() }

// RegistrationTimeoutError reports that a worker did not acknowledge its
// registration handshake within the bound.
type RegistrationTimeoutError struct {
	Worker  string
	Elapsed time.Duration
}

func (e *RegistrationTimeoutError) Error() string {
	return fmt.Sprintf("worker %s did not register within %s", e.Worker, e.Elapsed)
}

// SubmissionTimeoutError reports that a submitted job did not complete
// within the bound.
type SubmissionTimeoutError struct {
	JobID   string
	Elapsed time.Duration
}

func (e *SubmissionTimeoutError) Error() string {
	return fmt.Sprintf("job %s did not complete within %s", e.JobID, e.Elapsed)
}

// StartCoordinator spawns a coordinator bound to the well-known leader
// session, plus its archive companion, and returns the coordinator's
// gateway. namePrefix keeps concurrently running mini clusters apart.
func StartCoordinator(sys actor.System, cfg *config.Config, namePrefix string) (Gateway, error) {
	merged := mergedConfig(cfg)
	if namePrefix == "" {
		namePrefix = "gridlet"
	}
	log := zap.L()

	archiveRef, err := sys.Spawn(namePrefix+"-archive", coordinator.NewArchive(log))
	if err != nil {
		return Gateway{}, fmt.Errorf("start archive: %w", err)
	}
	coordRef, err := sys.Spawn(namePrefix+"-coordinator",
		coordinator.New(discovery.WellKnownSession, merged, archiveRef, log))
	if err != nil {
		sys.Kill(archiveRef)
		return Gateway{}, fmt.Errorf("start coordinator: %w", err)
	}
	return Gateway{Ref: coordRef, Session: discovery.WellKnownSession}, nil
}

// WorkerOption tweaks a harness-started worker.
type WorkerOption func(*workerConfig)

type workerConfig struct {
	name      string
	execCtx   exec.Context
	executors []worker.Executor
	scheduler *exec.Scheduler
}

// WithWorkerName fixes the worker's actor name instead of generating one.
func WithWorkerName(name string) WorkerOption {
	return func(c *workerConfig) { c.name = name }
}

// WithWorkerExecutionContext runs the worker's task handlers on the given
// context, e.g. a manually drained controllable context.
func WithWorkerExecutionContext(ec exec.Context) WorkerOption {
	return func(c *workerConfig) { c.execCtx = ec }
}

// WithWorkerExecutors registers task handlers on the worker.
func WithWorkerExecutors(execs ...worker.Executor) WorkerOption {
	return func(c *workerConfig) { c.executors = append(c.executors, execs...) }
}

// WithWorkerScheduler overrides the worker's registration-retry scheduler.
func WithWorkerScheduler(s *exec.Scheduler) WorkerOption {
	return func(c *workerConfig) { c.scheduler = s }
}

// StartWorker spawns a worker against the coordinator behind gw, bypassing
// real leader discovery with a fixed binding. Caller overrides in cfg are
// merged over the harness defaults (small memory footprint, one task
// slot). With localTransport false, every message delivered to the worker
// round-trips through the codec. With waitForRegistration true the call
// blocks until the worker acknowledges its registration handshake or the
// registration timeout elapses; on timeout the worker is killed and no
// gateway is returned.
func StartWorker(ctx context.Context, sys actor.System, gw Gateway, cfg *config.Config, localTransport, waitForRegistration bool, opts ...WorkerOption) (Gateway, error) {
	merged := mergedConfig(cfg)
	wc := workerConfig{}
	for _, opt := range opts {
		opt(&wc)
	}
	if wc.name == "" {
		wc.name = "worker-" + uuid.NewString()[:8]
	}

	binding := discovery.SingleLeader(discovery.RoleCoordinator, gw.Ref.Addr)
	workerOpts := []worker.Option{worker.WithLogger(zap.L())}
	if wc.execCtx != nil {
		workerOpts = append(workerOpts, worker.WithExecutionContext(wc.execCtx))
	}
	if len(wc.executors) > 0 {
		workerOpts = append(workerOpts, worker.WithExecutors(wc.executors...))
	}
	if wc.scheduler != nil {
		workerOpts = append(workerOpts, worker.WithScheduler(wc.scheduler))
	}
	w := worker.New(wc.name, gw.Session, binding, merged, workerOpts...)

	var spawnOpts []actor.SpawnOption
	if !localTransport {
		spawnOpts = append(spawnOpts, actor.WithSerializedDelivery())
	}
	ref, err := sys.Spawn(wc.name, w, spawnOpts...)
	if err != nil {
		return Gateway{}, fmt.Errorf("start worker: %w", err)
	}

	if waitForRegistration {
		bound := merged.GetDuration(config.KeyRegistrationTimeout)
		start := time.Now()
		_, err := sys.Ask(ctx, ref, roles.NotifyWhenRegistered{}, bound)
		if err != nil {
			sys.Kill(ref)
			if errors.Is(err, actor.ErrAskTimeout) {
				return Gateway{}, &RegistrationTimeoutError{Worker: wc.name, Elapsed: time.Since(start)}
			}
			return Gateway{}, fmt.Errorf("await registration of %s: %w", wc.name, err)
		}
	}
	return Gateway{Ref: ref, Session: gw.Session}, nil
}

// StartResourceManager spawns a resource-manager role actor bound to the
// coordinator's leader session. It does not wait for its registration.
func StartResourceManager(sys actor.System, coordinatorRef actor.Ref, cfg *config.Config) (Gateway, error) {
	merged := mergedConfig(cfg)
	name := "resource-manager-" + uuid.NewString()[:8]
	binding := discovery.SingleLeader(discovery.RoleCoordinator, coordinatorRef.Addr)
	m := resourcemanager.New(name, discovery.WellKnownSession, binding, merged,
		resourcemanager.WithLogger(zap.L()))
	ref, err := sys.Spawn(name, m)
	if err != nil {
		return Gateway{}, fmt.Errorf("start resource manager: %w", err)
	}
	return Gateway{Ref: ref, Session: discovery.WellKnownSession}, nil
}

// SubmitJobAndWait submits job to the coordinator behind gw and blocks up
// to the submission timeout (generous, on the order of minutes) for its
// result. A failing job surfaces as an error alongside the result carrying
// the per-task outcomes.
func SubmitJobAndWait(ctx context.Context, sys actor.System, gw Gateway, job roles.Job, cfg *config.Config) (roles.JobResult, error) {
	merged := mergedConfig(cfg)
	bound := merged.GetDuration(config.KeySubmissionTimeout)
	start := time.Now()

	reply, err := sys.Ask(ctx, gw.Ref, roles.SubmitJob{Session: gw.Session, Job: job}, bound)
	if err != nil {
		if errors.Is(err, actor.ErrAskTimeout) {
			return roles.JobResult{}, &SubmissionTimeoutError{JobID: job.ID, Elapsed: time.Since(start)}
		}
		return roles.JobResult{}, fmt.Errorf("submit job: %w", err)
	}
	result, ok := reply.(roles.JobResult)
	if !ok {
		return roles.JobResult{}, fmt.Errorf("submit job: unexpected reply %T", reply)
	}
	if result.Err != "" {
		return result, fmt.Errorf("job %s failed: %s", result.JobID, result.Err)
	}
	return result, nil
}

// Terminate sends a forceful termination to the actor behind gw without
// waiting for shutdown. A zero gateway is a no-op.
func Terminate(sys actor.System, gw Gateway) {
	if gw.IsZero() {
		return
	}
	sys.Kill(gw.Ref)
}

func mergedConfig(cfg *config.Config) *config.Config {
	if cfg == nil {
		return config.New()
	}
	return cfg.Clone()
}
