package health

import (
	"slices"
	"sync"
)

// Check reports the current health of one component.
type Check func() Status

// Monitor aggregates named checks. Checks run on every Status call, so
// they must be cheap and must not block.
type Monitor struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{checks: make(map[string]Check)}
}

// Register adds or replaces the check for name.
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Remove removes a component from monitoring
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checks, name)
}

// Components returns the registered names in sorted order.
func (m *Monitor) Components() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Status runs every check and aggregates the results under system.
// Sub-statuses are ordered by component name.
func (m *Monitor) Status(system string) Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	checks := make(map[string]Check, len(m.checks))
	for name, check := range m.checks {
		names = append(names, name)
		checks[name] = check
	}
	m.mu.RUnlock()

	slices.Sort(names)
	subs := make([]Status, 0, len(names))
	for _, name := range names {
		s := checks[name]()
		s.Component = name
		subs = append(subs, s)
	}
	return Aggregate(system, subs)
}

// HealthFunc adapts the monitor to a health endpoint that fails only when the
// aggregate is unhealthy.
func (m *Monitor) HealthFunc(system string) func() error {
	return func() error {
		return m.Status(system).Err()
	}
}
