// Package resourcemanager implements the resource-controller role actor:
// it registers with the coordinator under the shared leader session and
// keeps a ledger of the task slots workers have brought into the cluster.
package resourcemanager

import (
	"go.uber.org/zap"

	"github.com/gridlet/gridlet/pkg/actor"
	"github.com/gridlet/gridlet/pkg/config"
	"github.com/gridlet/gridlet/pkg/discovery"
	"github.com/gridlet/gridlet/pkg/exec"
	"github.com/gridlet/gridlet/pkg/roles"
)

type registerTick struct{}

// Manager is an actor.Receiver.
type Manager struct {
	log     *zap.Logger
	name    string
	session discovery.SessionID
	binding discovery.Resolver
	cfg     *config.Config
	sched   *exec.Scheduler

	coordinator actor.Ref
	registered  bool
	refused     bool
	slots       map[string]int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithScheduler overrides the retry scheduler. Defaults to the shared one.
func WithScheduler(s *exec.Scheduler) Option {
	return func(m *Manager) { m.sched = s }
}

// New builds a resource manager bound to the given leader session.
func New(name string, session discovery.SessionID, binding discovery.Resolver, cfg *config.Config, opts ...Option) *Manager {
	if cfg == nil {
		cfg = config.New()
	}
	m := &Manager{
		log:     zap.NewNop(),
		name:    name,
		session: session,
		binding: binding,
		cfg:     cfg,
		slots:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sched == nil {
		m.sched = exec.SharedScheduler()
	}
	return m
}

func (m *Manager) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		m.onStarted(ctx)
	case registerTick:
		if !m.registered && !m.refused {
			m.sendRegister(ctx)
			m.scheduleRetry(ctx)
		}
	case roles.ManagerAck:
		if msg.Session != m.session {
			return
		}
		if !m.registered {
			m.log.Info("resource manager registered", zap.String("manager", m.name))
		}
		m.registered = true
	case roles.RegistrationRefused:
		m.log.Warn("resource manager registration refused",
			zap.String("reason", msg.Reason))
		m.refused = true
	case roles.SlotsAdded:
		m.slots[msg.Worker] = msg.Slots
	case roles.SlotReport:
		total := 0
		for _, n := range m.slots {
			total += n
		}
		ctx.Respond(roles.SlotStatus{Workers: len(m.slots), TotalSlots: total})
	default:
		m.log.Debug("resource manager ignoring message", zap.Any("message", msg))
	}
}

func (m *Manager) onStarted(ctx *actor.Context) {
	addr, err := m.binding.Resolve(discovery.RoleCoordinator)
	if err != nil {
		m.log.Error("cannot resolve coordinator", zap.Error(err))
		m.refused = true
		return
	}
	m.coordinator = actor.RefFromAddr(addr)
	m.sendRegister(ctx)
	m.scheduleRetry(ctx)
}

func (m *Manager) sendRegister(ctx *actor.Context) {
	msg := roles.RegisterManager{Session: m.session, Name: m.name, Addr: ctx.Self().Addr}
	if err := ctx.Tell(m.coordinator, msg); err != nil {
		m.log.Debug("register send failed, will retry", zap.Error(err))
	}
}

func (m *Manager) scheduleRetry(ctx *actor.Context) {
	interval := m.cfg.GetDuration(config.KeyWorkerRegisterInterval)
	sys, self := ctx.System(), ctx.Self()
	if err := m.sched.After(interval, func() {
		_ = sys.Tell(self, registerTick{}, self)
	}); err != nil {
		m.log.Warn("cannot schedule registration retry", zap.Error(err))
	}
}
