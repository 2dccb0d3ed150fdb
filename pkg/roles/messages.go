// Package roles defines the messages exchanged between the cluster's role
// actors: worker registration, job submission and dispatch, resource slot
// accounting, and result archival. All message types are registered with
// the substrate codec so serialized delivery works out of the box.
package roles

import (
	"time"

	"github.com/gridlet/gridlet/pkg/actor"
	"github.com/gridlet/gridlet/pkg/discovery"
)

// RegisterWorker is a worker's registration handshake with the coordinator.
type RegisterWorker struct {
	Session discovery.SessionID
	Name    string
	Addr    string
	Slots   int
	Token   string // enrollment token, required only when the coordinator enforces enrollment
}

func (m RegisterWorker) LeaderSession() discovery.SessionID { return m.Session }

// RegistrationAck confirms a successful registration.
type RegistrationAck struct {
	Session    discovery.SessionID
	AssignedID string
}

func (m RegistrationAck) LeaderSession() discovery.SessionID { return m.Session }

// RegistrationRefused rejects a registration attempt.
type RegistrationRefused struct {
	Reason string
}

// NotifyWhenRegistered asks a worker to reply with WorkerRegistered once
// its handshake with the coordinator has completed.
type NotifyWhenRegistered struct{}

// WorkerRegistered is the reply to NotifyWhenRegistered.
type WorkerRegistered struct {
	Name       string
	AssignedID string
}

// GetWorkers asks the coordinator for its registered-worker set.
type GetWorkers struct{}

// WorkerInfo describes one registered worker.
type WorkerInfo struct {
	Name         string
	Addr         string
	Slots        int
	RegisteredAt time.Time
}

// WorkerSet is the reply to GetWorkers.
type WorkerSet struct {
	Workers []WorkerInfo
}

// RegisterManager is the resource manager's registration with the
// coordinator.
type RegisterManager struct {
	Session discovery.SessionID
	Name    string
	Addr    string
}

func (m RegisterManager) LeaderSession() discovery.SessionID { return m.Session }

// ManagerAck confirms a resource-manager registration.
type ManagerAck struct {
	Session discovery.SessionID
}

// SlotsAdded informs the resource manager of a worker's task slots.
type SlotsAdded struct {
	Worker string
	Slots  int
}

// SlotReport asks the resource manager for its slot ledger.
type SlotReport struct{}

// SlotStatus is the reply to SlotReport.
type SlotStatus struct {
	Workers    int
	TotalSlots int
}

// TaskSpec names a handler and carries its opaque payload.
type TaskSpec struct {
	Handler string
	Payload []byte
}

// Job is a submittable unit of work, split into tasks dispatched across
// registered workers.
type Job struct {
	ID    string
	Name  string
	Tasks []TaskSpec
}

// SubmitJob hands a job to the coordinator.
type SubmitJob struct {
	Session discovery.SessionID
	Job     Job
}

func (m SubmitJob) LeaderSession() discovery.SessionID { return m.Session }

// RunTask dispatches one task of a job to a worker.
type RunTask struct {
	JobID string
	Seq   int
	Spec  TaskSpec
}

// TaskResult is the outcome of one executed task.
type TaskResult struct {
	Handler string
	Output  []byte
	Err     string
}

// TaskDone reports a task outcome back to the coordinator.
type TaskDone struct {
	JobID  string
	Seq    int
	Result TaskResult
}

// JobResult is the aggregated outcome of a job. Err is empty on success.
type JobResult struct {
	JobID   string
	Results []TaskResult
	Err     string
}

// ArchiveJob hands a completed result to the archive actor.
type ArchiveJob struct {
	Result JobResult
}

// FetchJob asks the archive for a completed result.
type FetchJob struct {
	JobID string
}

// ArchivedJob is the reply to FetchJob.
type ArchivedJob struct {
	Result JobResult
	Found  bool
}

// Probe is a session-tagged no-op message, handy for exercising relays.
type Probe struct {
	Session discovery.SessionID
	Payload string
}

func (m Probe) LeaderSession() discovery.SessionID { return m.Session }

// ProbeAck is the reply to Probe.
type ProbeAck struct {
	Payload string
}

func init() {
	actor.RegisterMessage("roles.register-worker", RegisterWorker{})
	actor.RegisterMessage("roles.registration-ack", RegistrationAck{})
	actor.RegisterMessage("roles.registration-refused", RegistrationRefused{})
	actor.RegisterMessage("roles.notify-when-registered", NotifyWhenRegistered{})
	actor.RegisterMessage("roles.worker-registered", WorkerRegistered{})
	actor.RegisterMessage("roles.get-workers", GetWorkers{})
	actor.RegisterMessage("roles.worker-set", WorkerSet{})
	actor.RegisterMessage("roles.register-manager", RegisterManager{})
	actor.RegisterMessage("roles.manager-ack", ManagerAck{})
	actor.RegisterMessage("roles.slots-added", SlotsAdded{})
	actor.RegisterMessage("roles.slot-report", SlotReport{})
	actor.RegisterMessage("roles.slot-status", SlotStatus{})
	actor.RegisterMessage("roles.submit-job", SubmitJob{})
	actor.RegisterMessage("roles.run-task", RunTask{})
	actor.RegisterMessage("roles.task-done", TaskDone{})
	actor.RegisterMessage("roles.job-result", JobResult{})
	actor.RegisterMessage("roles.archive-job", ArchiveJob{})
	actor.RegisterMessage("roles.fetch-job", FetchJob{})
	actor.RegisterMessage("roles.archived-job", ArchivedJob{})
	actor.RegisterMessage("roles.probe", Probe{})
	actor.RegisterMessage("roles.probe-ack", ProbeAck{})
}
