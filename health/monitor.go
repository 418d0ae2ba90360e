package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Checker produces the current status of one component.
type Checker func(ctx context.Context) Status

// Monitor tracks the health of named components. Statuses are either pushed
// with Update or pulled from registered checkers by Refresh.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	checkers map[string]Checker
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
		checkers: make(map[string]Checker),
	}
}

// Register adds a checker for name, replacing any previous one. The checker
// runs on every Refresh.
func (m *Monitor) Register(name string, check Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = check
}

// Update records status for name. The component field is overwritten with
// name and a zero timestamp is set to now.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[name] = normalize(name, status)
}

// Get returns the last recorded status for name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[name]
	return status, ok
}

// GetAll returns a copy of every recorded status.
func (m *Monitor) GetAll() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]Status, len(m.statuses))
	for name, status := range m.statuses {
		result[name] = status
	}
	return result
}

// Remove forgets name and its checker.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
	delete(m.checkers, name)
}

// Count returns the number of components with a recorded status.
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statuses)
}

// Refresh runs every registered checker concurrently, records the results
// and returns the aggregate for systemName.
func (m *Monitor) Refresh(ctx context.Context, systemName string) Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.checkers))
	checks := make([]Checker, 0, len(m.checkers))
	for name, check := range m.checkers {
		names = append(names, name)
		checks = append(checks, check)
	}
	m.mu.RUnlock()

	results := make([]Status, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			results[i] = check(gctx)
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	for i, name := range names {
		m.statuses[name] = normalize(name, results[i])
	}
	m.mu.Unlock()

	return m.AggregateHealth(systemName)
}

// AggregateHealth aggregates every recorded status, ordered by component name.
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	subStatuses := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		subStatuses = append(subStatuses, status)
	}
	m.mu.RUnlock()

	sort.Slice(subStatuses, func(i, j int) bool {
		return subStatuses[i].Component < subStatuses[j].Component
	})
	return Aggregate(systemName, subStatuses)
}

func normalize(name string, status Status) Status {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	return status
}
