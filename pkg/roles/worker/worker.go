// Package worker implements the worker role actor: it resolves the
// coordinator through its leader binding, runs the registration handshake
// with retry, and executes dispatched tasks on its execution context.
package worker

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gridlet/gridlet/pkg/actor"
	"github.com/gridlet/gridlet/pkg/config"
	"github.com/gridlet/gridlet/pkg/discovery"
	"github.com/gridlet/gridlet/pkg/exec"
	"github.com/gridlet/gridlet/pkg/roles"
)

// Executor is a unit of work a worker can run. Implementations should be
// idempotent when possible.
type Executor interface {
	Name() string
	Run(payload []byte) ([]byte, error)
}

// EchoExecutor returns its payload unchanged. Registered by tests and the
// demo as a trivial handler.
type EchoExecutor struct{}

func (EchoExecutor) Name() string                      { return "echo" }
func (EchoExecutor) Run(payload []byte) ([]byte, error) { return payload, nil }

// registerTick is the worker's self-sent retry signal. Self-sends bypass
// serialized delivery, so it needs no codec registration.
type registerTick struct{}

// Worker is an actor.Receiver.
type Worker struct {
	log     *zap.Logger
	name    string
	session discovery.SessionID
	binding discovery.Resolver
	cfg     *config.Config

	execCtx   exec.Context
	sched     *exec.Scheduler
	executors map[string]Executor
	sem       chan struct{}

	coordinator actor.Ref
	registered  bool
	refused     bool
	assignedID  string
	waiting     []actor.Ref
}

// Option configures a Worker.
type Option func(*Worker)

// WithExecutionContext sets the context task handlers run on. Defaults to
// an inline context.
func WithExecutionContext(ec exec.Context) Option {
	return func(w *Worker) { w.execCtx = ec }
}

// WithExecutors registers task handlers by name.
func WithExecutors(execs ...Executor) Option {
	return func(w *Worker) {
		for _, e := range execs {
			w.executors[e.Name()] = e
		}
	}
}

// WithScheduler overrides the retry scheduler. Defaults to the shared one.
func WithScheduler(s *exec.Scheduler) Option {
	return func(w *Worker) { w.sched = s }
}

// WithLogger sets the worker's logger.
func WithLogger(log *zap.Logger) Option {
	return func(w *Worker) { w.log = log }
}

// New builds a worker bound to the given leader session and binding.
func New(name string, session discovery.SessionID, binding discovery.Resolver, cfg *config.Config, opts ...Option) *Worker {
	if cfg == nil {
		cfg = config.New()
	}
	w := &Worker{
		log:       zap.NewNop(),
		name:      name,
		session:   session,
		binding:   binding,
		cfg:       cfg,
		executors: make(map[string]Executor),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.execCtx == nil {
		w.execCtx = exec.Inline(w.log)
	}
	if w.sched == nil {
		w.sched = exec.SharedScheduler()
	}
	slots := cfg.GetInt(config.KeyWorkerTaskSlots)
	if slots < 1 {
		slots = 1
	}
	w.sem = make(chan struct{}, slots)
	return w
}

func (w *Worker) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		w.onStarted(ctx)
	case registerTick:
		if !w.registered && !w.refused {
			w.sendRegister(ctx)
			w.scheduleRetry(ctx)
		}
	case roles.RegistrationAck:
		w.onAck(ctx, msg)
	case roles.RegistrationRefused:
		w.log.Warn("registration refused",
			zap.String("worker", w.name), zap.String("reason", msg.Reason))
		w.refused = true
	case roles.NotifyWhenRegistered:
		if w.registered {
			ctx.Respond(roles.WorkerRegistered{Name: w.name, AssignedID: w.assignedID})
			return
		}
		w.waiting = append(w.waiting, ctx.Sender())
	case roles.RunTask:
		w.onRunTask(ctx, msg)
	default:
		w.log.Debug("worker ignoring message", zap.Any("message", msg))
	}
}

func (w *Worker) onStarted(ctx *actor.Context) {
	addr, err := w.binding.Resolve(discovery.RoleCoordinator)
	if err != nil {
		w.log.Error("cannot resolve coordinator", zap.Error(err))
		w.refused = true
		return
	}
	w.coordinator = actor.RefFromAddr(addr)
	w.log.Info("worker started",
		zap.String("worker", w.name), zap.String("coordinator", addr))
	w.sendRegister(ctx)
	w.scheduleRetry(ctx)
}

func (w *Worker) sendRegister(ctx *actor.Context) {
	msg := roles.RegisterWorker{
		Session: w.session,
		Name:    w.name,
		Addr:    ctx.Self().Addr,
		Slots:   w.cfg.GetInt(config.KeyWorkerTaskSlots),
		Token:   w.cfg.GetString(config.KeyWorkerEnrollToken),
	}
	if err := ctx.Tell(w.coordinator, msg); err != nil {
		w.log.Debug("register send failed, will retry", zap.Error(err))
	}
}

func (w *Worker) scheduleRetry(ctx *actor.Context) {
	interval := w.cfg.GetDuration(config.KeyWorkerRegisterInterval)
	sys, self := ctx.System(), ctx.Self()
	if err := w.sched.After(interval, func() {
		_ = sys.Tell(self, registerTick{}, self)
	}); err != nil {
		w.log.Warn("cannot schedule registration retry", zap.Error(err))
	}
}

func (w *Worker) onAck(ctx *actor.Context, msg roles.RegistrationAck) {
	if msg.Session != w.session {
		return
	}
	first := !w.registered
	w.registered = true
	w.assignedID = msg.AssignedID
	if first {
		w.log.Info("worker registered",
			zap.String("worker", w.name), zap.String("assigned", msg.AssignedID))
	}
	for _, waiter := range w.waiting {
		_ = ctx.Tell(waiter, roles.WorkerRegistered{Name: w.name, AssignedID: w.assignedID})
	}
	w.waiting = nil
}

func (w *Worker) onRunTask(ctx *actor.Context, msg roles.RunTask) {
	sys, self, coordinator := ctx.System(), ctx.Self(), w.coordinator
	w.execCtx.Submit(func() {
		w.sem <- struct{}{}
		defer func() { <-w.sem }()
		result := w.runTask(msg.Spec)
		_ = sys.Tell(coordinator, roles.TaskDone{JobID: msg.JobID, Seq: msg.Seq, Result: result}, self)
	})
}

func (w *Worker) runTask(spec roles.TaskSpec) roles.TaskResult {
	executor, ok := w.executors[spec.Handler]
	if !ok {
		return roles.TaskResult{
			Handler: spec.Handler,
			Err:     fmt.Sprintf("no executor registered for handler %q", spec.Handler),
		}
	}
	out, err := executor.Run(spec.Payload)
	if err != nil {
		return roles.TaskResult{Handler: spec.Handler, Err: err.Error()}
	}
	return roles.TaskResult{Handler: spec.Handler, Output: out}
}
