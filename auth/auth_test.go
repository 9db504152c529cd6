package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agentuity/go-catalog/resilience"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newMemory(t *testing.T, opts ...MemoryOption) *Memory {
	t.Helper()
	m := NewMemory(append([]MemoryOption{WithCost(bcrypt.MinCost)}, opts...)...)
	_, err := m.Register(context.Background(), "ada@example.com", "s3cret", "Ada")
	require.NoError(t, err)
	return m
}

func TestMemory_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	s, err := m.SignIn(ctx, "ADA@example.com", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)

	u, err := m.CurrentUser(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.DisplayName)
	assert.Equal(t, s.UserID, u.ID)

	name, lang := "Ada L.", "es"
	u, err = m.UpdateProfile(ctx, s.Token, ProfileUpdate{DisplayName: &name, Language: &lang})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", u.DisplayName)
	assert.Equal(t, "es", u.Language)

	u, err = m.UpdateProfile(ctx, s.Token, ProfileUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", u.DisplayName, "nil fields are kept")

	require.NoError(t, m.SignOut(ctx, s.Token))
	_, err = m.CurrentUser(ctx, s.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.True(t, resilience.IsPermanent(err))

	err = m.SignOut(ctx, s.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemory_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	_, err := m.SignIn(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.True(t, resilience.IsPermanent(err))

	_, err = m.SignIn(ctx, "nobody@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = m.Register(ctx, "Ada@Example.com", "x", "")
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = m.Register(ctx, "", "x", "")
	assert.Error(t, err)
}

func TestMemory_SessionExpiry(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	m := newMemory(t, WithClock(c.Now), WithSessionTTL(time.Hour))

	s, err := m.SignIn(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)
	c.Advance(time.Hour)
	_, err = m.CurrentUser(ctx, s.Token)
	require.NoError(t, err)
	c.Advance(time.Second)
	_, err = m.CurrentUser(ctx, s.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

type downProvider struct {
	err   error
	calls int
}

func (d *downProvider) SignIn(context.Context, string, string) (Session, error) {
	d.calls++
	return Session{}, d.err
}

func (d *downProvider) SignOut(context.Context, string) error {
	d.calls++
	return d.err
}

func (d *downProvider) CurrentUser(context.Context, string) (User, error) {
	d.calls++
	return User{}, d.err
}

func (d *downProvider) UpdateProfile(context.Context, string, ProfileUpdate) (User, error) {
	d.calls++
	return User{}, d.err
}

func newFailover(t *testing.T, monitor *resilience.HealthMonitor, providers ...Provider) *Failover {
	t.Helper()
	ids := []resilience.ProviderID{resilience.Primary, resilience.Fallback}
	list := make([]resilience.Provider[Provider], len(providers))
	for i, p := range providers {
		list[i] = resilience.Provider[Provider]{ID: ids[i], Impl: p}
	}
	d, err := resilience.NewDispatcher("auth", monitor, list)
	require.NoError(t, err)
	return NewFailover(d)
}

func TestFailover_FallsBackOnOutage(t *testing.T) {
	ctx := context.Background()
	monitor := resilience.NewHealthMonitor(resilience.DefaultHealthPolicy())
	down := &downProvider{err: errors.New("connection reset")}
	backup := newMemory(t)
	f := newFailover(t, monitor, down, backup)

	s, err := f.SignIn(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)
	u, err := f.CurrentUser(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	lang := "fr"
	_, err = f.UpdateProfile(ctx, s.Token, ProfileUpdate{Language: &lang})
	require.NoError(t, err)

	assert.False(t, monitor.IsHealthy(resilience.Primary), "three outages trip the primary")
	require.NoError(t, f.SignOut(ctx, s.Token))
	assert.Equal(t, 3, down.calls, "tripped primary is skipped")
}

func TestFailover_PermanentAnswerIsFinal(t *testing.T) {
	ctx := context.Background()
	monitor := resilience.NewHealthMonitor(resilience.DefaultHealthPolicy())
	primary := newMemory(t)
	backup := &downProvider{}
	f := newFailover(t, monitor, primary, backup)

	_, err := f.SignIn(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 0, backup.calls)
	assert.Equal(t, 0, monitor.Health(resilience.Primary).FailureCount)
}

func TestFailover_Exhausted(t *testing.T) {
	monitor := resilience.NewHealthMonitor(resilience.DefaultHealthPolicy())
	last := errors.New("backup offline")
	f := newFailover(t, monitor, &downProvider{err: errors.New("primary offline")}, &downProvider{err: last})

	_, err := f.SignIn(context.Background(), "a", "b")
	assert.ErrorIs(t, err, resilience.ErrAllProvidersExhausted)
	assert.ErrorIs(t, err, last)
}
