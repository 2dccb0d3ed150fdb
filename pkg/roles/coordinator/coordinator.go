// Package coordinator implements the cluster's coordinator role actor: it
// keeps the session-fenced registry of workers, dispatches job tasks across
// them, aggregates results, and hands completed jobs to its archive
// companion.
package coordinator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridlet/gridlet/internal/enroll"
	"github.com/gridlet/gridlet/pkg/actor"
	"github.com/gridlet/gridlet/pkg/config"
	"github.com/gridlet/gridlet/pkg/discovery"
	"github.com/gridlet/gridlet/pkg/roles"
)

type jobStatus string

const (
	statusRunning   jobStatus = "running"
	statusSucceeded jobStatus = "succeeded"
	statusFailed    jobStatus = "failed"
)

type jobState struct {
	job        roles.Job
	requester  actor.Ref
	status     jobStatus
	results    []roles.TaskResult
	done       int
	createdAt  time.Time
	finishedAt *time.Time
}

// Coordinator is an actor.Receiver. Spawn it with the archive companion's
// ref so completed jobs survive the coordinator being killed.
type Coordinator struct {
	log     *zap.Logger
	session discovery.SessionID
	cfg     *config.Config
	archive actor.Ref

	workers    map[string]roles.WorkerInfo
	workerRefs map[string]actor.Ref
	order      []string // registration order, drives round-robin dispatch
	rr         int
	manager    actor.Ref
	jobs       map[string]*jobState
}

// New builds a coordinator bound to the given leader session.
func New(session discovery.SessionID, cfg *config.Config, archive actor.Ref, log *zap.Logger) *Coordinator {
	if cfg == nil {
		cfg = config.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		log:        log,
		session:    session,
		cfg:        cfg,
		archive:    archive,
		workers:    make(map[string]roles.WorkerInfo),
		workerRefs: make(map[string]actor.Ref),
		jobs:       make(map[string]*jobState),
	}
}

func (c *Coordinator) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		c.log.Info("coordinator started",
			zap.String("actor", ctx.Self().Name),
			zap.String("session", string(c.session)))
	case roles.RegisterWorker:
		c.onRegisterWorker(ctx, msg)
	case roles.GetWorkers:
		ctx.Respond(roles.WorkerSet{Workers: c.workerList()})
	case roles.RegisterManager:
		c.onRegisterManager(ctx, msg)
	case roles.SubmitJob:
		c.onSubmitJob(ctx, msg)
	case roles.TaskDone:
		c.onTaskDone(ctx, msg)
	case roles.Probe:
		ctx.Respond(roles.ProbeAck{Payload: msg.Payload})
	default:
		c.log.Debug("coordinator ignoring message", zap.Any("message", msg))
	}
}

func (c *Coordinator) onRegisterWorker(ctx *actor.Context, msg roles.RegisterWorker) {
	if msg.Session != c.session {
		ctx.Respond(roles.RegistrationRefused{Reason: "stale leader session"})
		return
	}
	if secret := c.cfg.GetString(config.KeyEnrollSecret); secret != "" {
		if _, err := enroll.VerifyToken([]byte(secret), msg.Token); err != nil {
			c.log.Warn("worker enrollment rejected",
				zap.String("worker", msg.Name), zap.Error(err))
			ctx.Respond(roles.RegistrationRefused{Reason: "invalid enrollment token"})
			return
		}
	}

	ref := ctx.Sender()
	if ref.IsZero() {
		ref = actor.RefFromAddr(msg.Addr)
	}
	if _, known := c.workers[msg.Name]; !known {
		c.order = append(c.order, msg.Name)
		c.workers[msg.Name] = roles.WorkerInfo{
			Name:         msg.Name,
			Addr:         msg.Addr,
			Slots:        msg.Slots,
			RegisteredAt: time.Now().UTC(),
		}
		c.log.Info("worker registered",
			zap.String("worker", msg.Name), zap.Int("slots", msg.Slots))
		if !c.manager.IsZero() {
			_ = ctx.Tell(c.manager, roles.SlotsAdded{Worker: msg.Name, Slots: msg.Slots})
		}
	}
	// Registration retries are acked again so a lost ack cannot wedge the
	// worker.
	c.workerRefs[msg.Name] = ref
	ctx.Respond(roles.RegistrationAck{Session: c.session, AssignedID: msg.Name})
}

func (c *Coordinator) onRegisterManager(ctx *actor.Context, msg roles.RegisterManager) {
	if msg.Session != c.session {
		ctx.Respond(roles.RegistrationRefused{Reason: "stale leader session"})
		return
	}
	c.manager = ctx.Sender()
	if c.manager.IsZero() {
		c.manager = actor.RefFromAddr(msg.Addr)
	}
	c.log.Info("resource manager registered", zap.String("manager", msg.Name))
	ctx.Respond(roles.ManagerAck{Session: c.session})
	for _, name := range c.order {
		info := c.workers[name]
		_ = ctx.Tell(c.manager, roles.SlotsAdded{Worker: info.Name, Slots: info.Slots})
	}
}

func (c *Coordinator) onSubmitJob(ctx *actor.Context, msg roles.SubmitJob) {
	if msg.Session != c.session {
		ctx.Respond(roles.JobResult{JobID: msg.Job.ID, Err: "stale leader session"})
		return
	}
	job := msg.Job
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if len(job.Tasks) == 0 {
		result := roles.JobResult{JobID: job.ID}
		ctx.Respond(result)
		c.archiveResult(ctx, result)
		return
	}
	if len(c.order) == 0 {
		ctx.Respond(roles.JobResult{JobID: job.ID, Err: "no workers registered"})
		return
	}

	st := &jobState{
		job:       job,
		requester: ctx.Sender(),
		status:    statusRunning,
		results:   make([]roles.TaskResult, len(job.Tasks)),
		createdAt: time.Now().UTC(),
	}
	c.jobs[job.ID] = st
	c.log.Info("job accepted", zap.String("job", job.ID),
		zap.String("name", job.Name), zap.Int("tasks", len(job.Tasks)))

	for seq, spec := range job.Tasks {
		worker := c.nextWorker()
		_ = ctx.Tell(worker, roles.RunTask{JobID: job.ID, Seq: seq, Spec: spec})
	}
}

func (c *Coordinator) onTaskDone(ctx *actor.Context, msg roles.TaskDone) {
	st, ok := c.jobs[msg.JobID]
	if !ok || st.status != statusRunning {
		return
	}
	if msg.Seq < 0 || msg.Seq >= len(st.results) {
		c.log.Warn("task result out of range",
			zap.String("job", msg.JobID), zap.Int("seq", msg.Seq))
		return
	}
	st.results[msg.Seq] = msg.Result
	st.done++

	if msg.Result.Err != "" {
		c.finishJob(ctx, st, statusFailed,
			fmt.Sprintf("task %d (%s): %s", msg.Seq, msg.Result.Handler, msg.Result.Err))
		return
	}
	if st.done == len(st.results) {
		c.finishJob(ctx, st, statusSucceeded, "")
	}
}

func (c *Coordinator) finishJob(ctx *actor.Context, st *jobState, status jobStatus, errMsg string) {
	now := time.Now().UTC()
	st.status = status
	st.finishedAt = &now
	result := roles.JobResult{JobID: st.job.ID, Results: st.results, Err: errMsg}
	_ = ctx.Tell(st.requester, result)
	c.archiveResult(ctx, result)
	c.log.Info("job finished", zap.String("job", st.job.ID),
		zap.String("status", string(status)),
		zap.Duration("elapsed", now.Sub(st.createdAt)))
}

func (c *Coordinator) archiveResult(ctx *actor.Context, result roles.JobResult) {
	if c.archive.IsZero() {
		return
	}
	_ = ctx.Tell(c.archive, roles.ArchiveJob{Result: result})
}

func (c *Coordinator) nextWorker() actor.Ref {
	name := c.order[c.rr%len(c.order)]
	c.rr++
	return c.workerRefs[name]
}

func (c *Coordinator) workerList() []roles.WorkerInfo {
	out := make([]roles.WorkerInfo, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.workers[name])
	}
	return out
}
