package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/agentuity/go-catalog/resilience"
)

// DefaultSessionTTL is how long a session issued by Memory stays valid.
const DefaultSessionTTL = 24 * time.Hour

type account struct {
	user User
	hash []byte
}

// Memory is an in-process Provider. Passwords are stored as bcrypt hashes.
type Memory struct {
	sessionTTL time.Duration
	cost       int
	now        func() time.Time

	mu       sync.RWMutex
	accounts map[string]*account // by lowercased email
	byID     map[string]*account
	sessions map[string]Session
}

var _ Provider = (*Memory)(nil)

type MemoryOption func(*Memory)

func WithSessionTTL(d time.Duration) MemoryOption {
	return func(m *Memory) { m.sessionTTL = d }
}

// WithCost sets the bcrypt cost used when registering users.
func WithCost(cost int) MemoryOption {
	return func(m *Memory) { m.cost = cost }
}

func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		sessionTTL: DefaultSessionTTL,
		cost:       bcrypt.DefaultCost,
		now:        time.Now,
		accounts:   make(map[string]*account),
		byID:       make(map[string]*account),
		sessions:   make(map[string]Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a user that can sign in with email and password.
func (m *Memory) Register(_ context.Context, email, password, displayName string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return User{}, errors.New("email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return User{}, errors.Wrap(err, "failed to hash password")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := m.accounts[key]; ok {
		return User{}, resilience.Permanent(errors.Wrapf(ErrUserExists, "%s", email))
	}
	now := m.now()
	acct := &account{
		user: User{ID: uuid.NewString(), Email: email, DisplayName: displayName, CreatedAt: now, UpdatedAt: now},
		hash: hash,
	}
	m.accounts[key] = acct
	m.byID[acct.user.ID] = acct
	return acct.user, nil
}

func (m *Memory) SignIn(_ context.Context, email, password string) (Session, error) {
	m.mu.RLock()
	acct, ok := m.accounts[strings.ToLower(strings.TrimSpace(email))]
	m.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return Session{}, resilience.Permanent(ErrInvalidCredentials)
	}
	now := m.now()
	s := Session{Token: uuid.NewString(), UserID: acct.user.ID, IssuedAt: now, ExpiresAt: now.Add(m.sessionTTL)}
	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()
	return s, nil
}

func (m *Memory) SignOut(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return resilience.Permanent(ErrSessionNotFound)
	}
	delete(m.sessions, token)
	return nil
}

// session resolves token to its account. Callers hold m.mu.
func (m *Memory) session(token string) (*account, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, resilience.Permanent(ErrSessionNotFound)
	}
	if m.now().After(s.ExpiresAt) {
		return nil, resilience.Permanent(ErrSessionExpired)
	}
	acct, ok := m.byID[s.UserID]
	if !ok {
		return nil, resilience.Permanent(ErrSessionNotFound)
	}
	return acct, nil
}

func (m *Memory) CurrentUser(_ context.Context, token string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, err := m.session(token)
	if err != nil {
		return User{}, err
	}
	return acct.user, nil
}

func (m *Memory) UpdateProfile(_ context.Context, token string, update ProfileUpdate) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, err := m.session(token)
	if err != nil {
		return User{}, err
	}
	user := acct.user
	if update.DisplayName != nil {
		user.DisplayName = *update.DisplayName
	}
	if update.Language != nil {
		user.Language = *update.Language
	}
	user.UpdatedAt = m.now()
	acct.user = user
	return user, nil
}
