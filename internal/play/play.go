// Package play accepts external commands and applies them to the
// simulation between steps, so player input never interleaves with an
// in-flight month.
package play

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/domacity/internal/engine"
)

// CommandKind names a player action.
type CommandKind string

const (
	CmdSelectTenant  CommandKind = "select_tenant"
	CmdReleaseTenant CommandKind = "release_tenant"
	CmdMoveTenant    CommandKind = "move_tenant"
	CmdContribute    CommandKind = "contribute"
	CmdEnactPolicy   CommandKind = "enact_policy"
	CmdRun           CommandKind = "run"
)

// Command is one queued player action. Fields beyond Kind are used or
// ignored depending on the kind.
type Command struct {
	ID      uuid.UUID   `json:"id"`
	Session uuid.UUID   `json:"session"`
	Kind    CommandKind `json:"kind"`

	TenantID int     `json:"tenantId,omitempty"`
	UnitID   int     `json:"unitId,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	Policy   string  `json:"policy,omitempty"`
	Months   int     `json:"months,omitempty"`
}

// Result reports the outcome of one applied command.
type Result struct {
	Command uuid.UUID `json:"command"`
	Error   string    `json:"error,omitempty"`
}

// Session is a player's claim on a tenant.
type Session struct {
	ID       uuid.UUID `json:"id"`
	TenantID int       `json:"tenantId"`
}

// Manager holds sessions and the pending command queue. All methods are
// safe for concurrent use; Apply is called by the simulation loop only.
type Manager struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*Session
	queue     []Command
	requested int
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[uuid.UUID]*Session)}
}

// Claim registers a session controlling the given tenant. A tenant can
// only be claimed by one session at a time.
func (m *Manager) Claim(tenantID int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TenantID == tenantID {
			return nil, fmt.Errorf("tenant %d already claimed", tenantID)
		}
	}
	s := &Session{ID: uuid.New(), TenantID: tenantID}
	m.sessions[s.ID] = s
	return s, nil
}

// SessionTenant resolves a session id to its tenant.
func (m *Manager) SessionTenant(id uuid.UUID) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return 0, false
	}
	return s.TenantID, true
}

// Enqueue queues a command for the next Apply. The command id is
// assigned here and returned to the caller for correlation.
func (m *Manager) Enqueue(cmd Command) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd.ID = uuid.New()
	m.queue = append(m.queue, cmd)
	return cmd.ID
}

// Pending reports the number of queued commands.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Active reports whether any session currently controls a tenant. While
// sessions are active the run loop advances only on run commands.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions) > 0
}

// RequestSteps adds n months to the run counter.
func (m *Manager) RequestSteps(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requested += n
}

// ConsumeStep takes one requested month off the counter. It reports
// false when no steps are pending.
func (m *Manager) ConsumeStep() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requested == 0 {
		return false
	}
	m.requested--
	return true
}

// Apply drains the queue against the simulation, in arrival order. It is
// meant to run between steps while no agent code is executing.
func (m *Manager) Apply(sim *engine.Simulation) []Result {
	m.mu.Lock()
	queue := m.queue
	m.queue = nil
	m.mu.Unlock()

	results := make([]Result, 0, len(queue))
	for _, cmd := range queue {
		err := m.apply(sim, cmd)
		r := Result{Command: cmd.ID}
		if err != nil {
			r.Error = err.Error()
			slog.Warn("command rejected", "kind", cmd.Kind, "err", err)
		}
		results = append(results, r)
	}
	return results
}

func (m *Manager) apply(sim *engine.Simulation, cmd Command) error {
	switch cmd.Kind {
	case CmdSelectTenant:
		return sim.SetPlayer(cmd.TenantID, true)

	case CmdReleaseTenant:
		tenantID, ok := m.dropSession(cmd.Session)
		if !ok {
			return fmt.Errorf("unknown session %s", cmd.Session)
		}
		return sim.SetPlayer(tenantID, false)

	case CmdMoveTenant:
		return sim.MoveTenant(cmd.TenantID, cmd.UnitID)

	case CmdContribute:
		if cmd.Amount <= 0 {
			return fmt.Errorf("contribution must be positive, got %v", cmd.Amount)
		}
		return sim.Contribute(cmd.TenantID, cmd.Amount)

	case CmdEnactPolicy:
		kind := engine.PolicyKind(cmd.Policy)
		if kind != engine.PolicyRentFreeze && kind != engine.PolicyMarketTax {
			return fmt.Errorf("unknown policy %q", cmd.Policy)
		}
		if cmd.Months < 1 {
			return fmt.Errorf("policy months must be at least 1, got %d", cmd.Months)
		}
		sim.EnactPolicy(kind, cmd.Months)
		return nil

	case CmdRun:
		if cmd.Months < 1 {
			return fmt.Errorf("run months must be at least 1, got %d", cmd.Months)
		}
		m.RequestSteps(cmd.Months)
		return nil

	default:
		return fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
}

func (m *Manager) dropSession(id uuid.UUID) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return 0, false
	}
	delete(m.sessions, id)
	return s.TenantID, true
}
