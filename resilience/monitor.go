package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/agentuity/go-catalog/logger"
)

// ProviderID is the opaque identity health is tracked under.
type ProviderID string

const (
	Primary  ProviderID = "primary"
	Fallback ProviderID = "fallback"
)

// HealthState is the state derived from a provider's failure record.
type HealthState int

const (
	// StateHealthy means the failure count is below the threshold.
	StateHealthy HealthState = iota
	// StateTripped means the threshold is reached and the recovery window has not elapsed.
	StateTripped
	// StateProbationary means the threshold is reached but the recovery window
	// has elapsed. The provider is eligible again; its counter is untouched, so
	// a single further failure trips it again.
	StateProbationary
)

func (s HealthState) String() string {
	switch s {
	case StateHealthy:
		return "HEALTHY"
	case StateTripped:
		return "TRIPPED"
	case StateProbationary:
		return "PROBATIONARY"
	default:
		return "UNKNOWN"
	}
}

// HealthPolicy decides when a provider stops being eligible and when it may
// be tried again.
type HealthPolicy struct {
	// MaxFailures is the failure count at which a provider is tripped
	MaxFailures int

	// RecoveryWindow is how long after its last failure a tripped provider becomes eligible again
	RecoveryWindow time.Duration
}

// DefaultHealthPolicy returns a default policy
func DefaultHealthPolicy() HealthPolicy {
	return HealthPolicy{
		MaxFailures:    3,
		RecoveryWindow: 5 * time.Minute,
	}
}

// ProviderHealth is a point-in-time copy of a provider's failure record.
// FailureCount is zero exactly when LastFailureAt is nil.
type ProviderHealth struct {
	ProviderID    ProviderID  `json:"provider_id"`
	FailureCount  int         `json:"failure_count"`
	LastFailureAt *time.Time  `json:"last_failure_at,omitempty"`
	State         HealthState `json:"state"`
	Healthy       bool        `json:"healthy"`
}

type healthRecord struct {
	failures      int
	lastFailureAt time.Time
}

// HealthMonitor tracks failures per provider identity. One monitor is meant to
// be shared by every dispatcher in the process, so a provider's health is the
// same whichever capability observed the failures.
type HealthMonitor struct {
	policy HealthPolicy
	now    func() time.Time
	logger logger.Logger

	mu      sync.Mutex
	records map[ProviderID]*healthRecord
}

// MonitorOption configures a HealthMonitor.
type MonitorOption func(*HealthMonitor)

// WithClock overrides the monitor's time source.
func WithClock(now func() time.Time) MonitorOption {
	return func(m *HealthMonitor) { m.now = now }
}

// WithMonitorLogger logs trip transitions.
func WithMonitorLogger(log logger.Logger) MonitorOption {
	return func(m *HealthMonitor) { m.logger = log }
}

// NewHealthMonitor creates a monitor enforcing policy. Non-positive policy
// values fall back to DefaultHealthPolicy.
func NewHealthMonitor(policy HealthPolicy, opts ...MonitorOption) *HealthMonitor {
	def := DefaultHealthPolicy()
	if policy.MaxFailures <= 0 {
		policy.MaxFailures = def.MaxFailures
	}
	if policy.RecoveryWindow <= 0 {
		policy.RecoveryWindow = def.RecoveryWindow
	}
	m := &HealthMonitor{
		policy:  policy,
		now:     time.Now,
		logger:  logger.Discard(),
		records: make(map[ProviderID]*healthRecord),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the policy the monitor enforces.
func (m *HealthMonitor) Policy() HealthPolicy {
	return m.policy
}

// RecordSuccess clears the provider's failure record.
func (m *HealthMonitor) RecordSuccess(id ProviderID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return
	}
	if rec.failures >= m.policy.MaxFailures {
		m.logger.Info("provider %s recovered after %d failures", id, rec.failures)
	}
	delete(m.records, id)
}

// RecordFailure increments the provider's failure count and stamps the time.
func (m *HealthMonitor) RecordFailure(id ProviderID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	prev := m.stateLocked(id, now)
	rec, ok := m.records[id]
	if !ok {
		rec = &healthRecord{}
		m.records[id] = rec
	}
	rec.failures++
	rec.lastFailureAt = now
	if prev != StateTripped && rec.failures >= m.policy.MaxFailures {
		m.logger.Warn("provider %s tripped with %d failures", id, rec.failures)
	}
}

// Reset forgets every failure recorded against id.
func (m *HealthMonitor) Reset(id ProviderID) {
	m.mu.Lock()
	delete(m.records, id)
	m.mu.Unlock()
}

func (m *HealthMonitor) stateLocked(id ProviderID, now time.Time) HealthState {
	rec, ok := m.records[id]
	if !ok || rec.failures < m.policy.MaxFailures {
		return StateHealthy
	}
	if now.Sub(rec.lastFailureAt) > m.policy.RecoveryWindow {
		return StateProbationary
	}
	return StateTripped
}

// State returns the provider's derived state.
func (m *HealthMonitor) State(id ProviderID) HealthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked(id, m.now())
}

// IsHealthy reports whether the provider may serve the next request: its
// failure count is under the threshold, or the recovery window has elapsed
// since its last failure. Unknown providers are healthy.
func (m *HealthMonitor) IsHealthy(id ProviderID) bool {
	return m.State(id) != StateTripped
}

func (m *HealthMonitor) healthLocked(id ProviderID, now time.Time) ProviderHealth {
	h := ProviderHealth{ProviderID: id}
	if rec, ok := m.records[id]; ok {
		at := rec.lastFailureAt
		h.FailureCount = rec.failures
		h.LastFailureAt = &at
	}
	h.State = m.stateLocked(id, now)
	h.Healthy = h.State != StateTripped
	return h
}

// Health returns a snapshot of the provider's record.
func (m *HealthMonitor) Health(id ProviderID) ProviderHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthLocked(id, m.now())
}

// Snapshot returns the records of the given providers plus every provider
// with recorded failures, sorted by id.
func (m *HealthMonitor) Snapshot(ids ...ProviderID) []ProviderHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[ProviderID]bool, len(ids)+len(m.records))
	for _, id := range ids {
		seen[id] = true
	}
	for id := range m.records {
		seen[id] = true
	}
	now := m.now()
	out := make([]ProviderHealth, 0, len(seen))
	for id := range seen {
		out = append(out, m.healthLocked(id, now))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out
}
