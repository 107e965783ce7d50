// Package resource provides the in-memory capacity-accounting resource
// manager consumed by the execution engine. Reservation is best effort:
// a reserve that would exceed any limit is refused and the caller backs
// off and retries.
package resource

import (
	"log/slog"
	"sync"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// Manager tracks resource limits and the usage currently reserved by
// in-flight steps. All accounting happens under one mutex; a reserve is
// an atomic check-then-add.
type Manager struct {
	mu     sync.Mutex
	limits types.ResourceSpec
	usage  types.ResourceSpec
	tools  []string
	logger *slog.Logger
}

// NewManager creates a Manager with the given limits and the tool names
// advertised in resource-state snapshots.
func NewManager(limits types.ResourceSpec, availableTools []string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		limits: limits,
		tools:  availableTools,
		logger: logger,
	}
}

// Reserve attempts to claim the requested resources. It returns false
// without side effects when any dimension would exceed its limit.
func (m *Manager) Reserve(spec types.ResourceSpec) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ok := m.usage.CPUPercent+spec.CPUPercent <= m.limits.CPUPercent &&
		m.usage.MemoryMB+spec.MemoryMB <= m.limits.MemoryMB &&
		m.usage.NetworkMbps+spec.NetworkMbps <= m.limits.NetworkMbps

	if ok {
		m.usage.CPUPercent += spec.CPUPercent
		m.usage.MemoryMB += spec.MemoryMB
		m.usage.NetworkMbps += spec.NetworkMbps
	} else {
		m.logger.Debug("resource reservation refused",
			"requested_cpu", spec.CPUPercent,
			"requested_memory_mb", spec.MemoryMB,
			"used_cpu", m.usage.CPUPercent,
			"used_memory_mb", m.usage.MemoryMB)
	}
	return ok
}

// Release returns previously reserved resources. Usage floors at zero
// so an unbalanced release cannot drive the accounting negative.
func (m *Manager) Release(spec types.ResourceSpec) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usage.CPUPercent = max(m.usage.CPUPercent-spec.CPUPercent, 0)
	if spec.MemoryMB >= m.usage.MemoryMB {
		m.usage.MemoryMB = 0
	} else {
		m.usage.MemoryMB -= spec.MemoryMB
	}
	m.usage.NetworkMbps = max(m.usage.NetworkMbps-spec.NetworkMbps, 0)
}

// CheckAvailability reports whether every dimension is strictly below
// its limit, leaving headroom for at least a minimal reservation.
func (m *Manager) CheckAvailability() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.usage.CPUPercent < m.limits.CPUPercent &&
		m.usage.MemoryMB < m.limits.MemoryMB &&
		m.usage.NetworkMbps < m.limits.NetworkMbps
}

// State returns a point-in-time snapshot of usage, limits, and the
// available tools.
func (m *Manager) State() types.ResourceState {
	m.mu.Lock()
	defer m.mu.Unlock()

	tools := make([]string, len(m.tools))
	copy(tools, m.tools)
	return types.ResourceState{
		Usage:          m.usage,
		Limits:         m.limits,
		AvailableTools: tools,
	}
}
