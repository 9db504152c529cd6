package resilience

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentuity/go-catalog/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMonitor_InitialState(t *testing.T) {
	m := NewHealthMonitor(DefaultHealthPolicy())

	assert.True(t, m.IsHealthy(Primary))
	h := m.Health(Primary)
	assert.Equal(t, 0, h.FailureCount)
	assert.Nil(t, h.LastFailureAt)
	assert.Equal(t, StateHealthy, h.State)
}

func TestMonitor_DefaultsForInvalidPolicy(t *testing.T) {
	m := NewHealthMonitor(HealthPolicy{})
	assert.Equal(t, DefaultHealthPolicy(), m.Policy())
}

func TestMonitor_TripsAtThresholdAndSuccessResets(t *testing.T) {
	clock := newFakeClock()
	m := NewHealthMonitor(HealthPolicy{MaxFailures: 3, RecoveryWindow: 5 * time.Minute}, WithClock(clock.Now))

	for i := 0; i < 2; i++ {
		m.RecordFailure(Primary)
		assert.True(t, m.IsHealthy(Primary), "below threshold after %d failures", i+1)
	}
	m.RecordFailure(Primary)
	assert.False(t, m.IsHealthy(Primary))
	assert.Equal(t, StateTripped, m.State(Primary))

	clock.Advance(time.Minute)
	m.RecordSuccess(Primary)
	assert.True(t, m.IsHealthy(Primary))
	h := m.Health(Primary)
	assert.Equal(t, 0, h.FailureCount)
	assert.Nil(t, h.LastFailureAt)
}

func TestMonitor_FailureStampsTime(t *testing.T) {
	clock := newFakeClock()
	m := NewHealthMonitor(DefaultHealthPolicy(), WithClock(clock.Now))

	m.RecordFailure(Fallback)
	h := m.Health(Fallback)
	assert.Equal(t, 1, h.FailureCount)
	require.NotNil(t, h.LastFailureAt)
	assert.True(t, clock.Now().Equal(*h.LastFailureAt))
}

func TestMonitor_RecoveryWindowScenario(t *testing.T) {
	clock := newFakeClock()
	m := NewHealthMonitor(HealthPolicy{MaxFailures: 3, RecoveryWindow: 5 * time.Minute}, WithClock(clock.Now))

	// Failures at t=0, 1, 2 minutes.
	m.RecordFailure(Primary)
	clock.Advance(time.Minute)
	m.RecordFailure(Primary)
	clock.Advance(time.Minute)
	m.RecordFailure(Primary)
	assert.False(t, m.IsHealthy(Primary), "t=2:00")

	clock.Advance(4*time.Minute + 59*time.Second)
	assert.False(t, m.IsHealthy(Primary), "t=6:59")

	clock.Advance(time.Second)
	assert.False(t, m.IsHealthy(Primary), "t=7:00 is not past the window")

	clock.Advance(time.Second)
	assert.True(t, m.IsHealthy(Primary), "t=7:01")
	assert.Equal(t, StateProbationary, m.State(Primary))
	assert.Equal(t, 3, m.Health(Primary).FailureCount, "time does not reset the counter")

	// A single further failure trips it again.
	m.RecordFailure(Primary)
	assert.False(t, m.IsHealthy(Primary))
	assert.Equal(t, 4, m.Health(Primary).FailureCount)
}

func TestMonitor_HealthIsPerProvider(t *testing.T) {
	m := NewHealthMonitor(HealthPolicy{MaxFailures: 1, RecoveryWindow: time.Hour})
	m.RecordFailure(Primary)
	assert.False(t, m.IsHealthy(Primary))
	assert.True(t, m.IsHealthy(Fallback))

	m.Reset(Primary)
	assert.True(t, m.IsHealthy(Primary))
}

func TestMonitor_Snapshot(t *testing.T) {
	m := NewHealthMonitor(HealthPolicy{MaxFailures: 2, RecoveryWindow: time.Hour})
	m.RecordFailure("zeta")
	m.RecordFailure("zeta")

	snap := m.Snapshot(Primary, Fallback)
	require.Len(t, snap, 3)
	assert.Equal(t, Fallback, snap[0].ProviderID)
	assert.Equal(t, Primary, snap[1].ProviderID)
	assert.Equal(t, ProviderID("zeta"), snap[2].ProviderID)
	assert.False(t, snap[2].Healthy)
	assert.Equal(t, 2, snap[2].FailureCount)
}

func TestMonitor_ConcurrentFailuresAreNotLost(t *testing.T) {
	m := NewHealthMonitor(HealthPolicy{MaxFailures: 1000, RecoveryWindow: time.Hour})
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordFailure(Primary)
		}()
	}
	wg.Wait()
	assert.Equal(t, 200, m.Health(Primary).FailureCount)
}

func TestMonitor_LogsTripAndRecovery(t *testing.T) {
	log := logger.NewTestLogger()
	m := NewHealthMonitor(HealthPolicy{MaxFailures: 2, RecoveryWindow: time.Hour}, WithMonitorLogger(log))
	m.RecordFailure(Primary)
	m.RecordFailure(Primary)
	m.RecordFailure(Primary)
	m.RecordSuccess(Primary)

	var trips int
	for _, entry := range log.Logs() {
		if entry.Severity == "WARNING" {
			trips++
		}
	}
	assert.Equal(t, 1, trips, "only the transition into the tripped state is logged")
	assert.True(t, log.Contains("INFO", "provider primary recovered after 3 failures"))
}
