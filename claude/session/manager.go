package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	maxSessions     int
	sessionTTL      time.Duration
	cleanupInterval time.Duration
	defaultOpts     []Option
}

func defaultManagerConfig() managerConfig {
	return managerConfig{
		maxSessions:     10,
		sessionTTL:      30 * time.Minute,
		cleanupInterval: time.Minute,
	}
}

// WithMaxSessions limits the number of live sessions.
func WithMaxSessions(n int) ManagerOption {
	return func(c *managerConfig) { c.maxSessions = n }
}

// WithSessionTTL sets how long an idle session may sit before the cleanup
// loop disconnects it. Zero disables expiry.
func WithSessionTTL(d time.Duration) ManagerOption {
	return func(c *managerConfig) { c.sessionTTL = d }
}

// WithCleanupInterval sets how often expired sessions are looked for.
func WithCleanupInterval(d time.Duration) ManagerOption {
	return func(c *managerConfig) { c.cleanupInterval = d }
}

// WithDefaultOptions sets options applied to every session before the
// per-call ones.
func WithDefaultOptions(opts ...Option) ManagerOption {
	return func(c *managerConfig) { c.defaultOpts = opts }
}

// Manager keeps a set of named, connected sessions.
type Manager struct {
	config     managerConfig
	sessions   map[string]*Session
	mu         sync.RWMutex
	closed     bool
	closedOnce sync.Once
	stopClean  chan struct{}
}

// NewManager creates a new session manager.
func NewManager(opts ...ManagerOption) *Manager {
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manager{
		config:    cfg,
		sessions:  make(map[string]*Session),
		stopClean: make(chan struct{}),
	}

	if cfg.sessionTTL > 0 && cfg.cleanupInterval > 0 {
		go m.cleanupLoop()
	}

	return m
}

// Create connects a new session under name.
func (m *Manager) Create(ctx context.Context, name string, cmd Command, opts ...Option) (*Session, error) {
	if err := m.checkCapacity(name); err != nil {
		return nil, err
	}

	allOpts := make([]Option, 0, len(m.config.defaultOpts)+len(opts))
	allOpts = append(allOpts, m.config.defaultOpts...)
	allOpts = append(allOpts, opts...)

	s := New(cmd, allOpts...)
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check: another Create may have won while connecting.
	if err := m.checkCapacityLocked(name); err != nil {
		_ = s.Disconnect()
		return nil, err
	}

	m.sessions[name] = s
	go m.watchSession(name, s)

	return s, nil
}

func (m *Manager) checkCapacity(name string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkCapacityLocked(name)
}

func (m *Manager) checkCapacityLocked(name string) error {
	switch {
	case m.closed:
		return fmt.Errorf("manager is closed")
	case m.sessions[name] != nil:
		return fmt.Errorf("session already exists: %s", name)
	case len(m.sessions) >= m.config.maxSessions:
		return fmt.Errorf("max sessions reached (%d)", m.config.maxSessions)
	}
	return nil
}

// watchSession removes a session from the map once it disconnects.
func (m *Manager) watchSession(name string, s *Session) {
	<-s.Done()
	m.mu.Lock()
	if m.sessions[name] == s {
		delete(m.sessions, name)
	}
	m.mu.Unlock()
}

// Get returns the named session if it is connected.
func (m *Manager) Get(name string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[name]
	if !ok || !s.State().Connected() {
		return nil, false
	}
	return s, true
}

// Close disconnects the named session.
func (m *Manager) Close(name string) error {
	m.mu.Lock()
	s, ok := m.sessions[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("session not found: %s", name)
	}
	delete(m.sessions, name)
	m.mu.Unlock()

	return s.Disconnect()
}

// CloseAll disconnects every session and rejects further Creates.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	m.closedOnce.Do(func() {
		close(m.stopClean)
		m.closed = true
	})
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	clear(m.sessions)
	m.mu.Unlock()

	var lastErr error
	for _, s := range sessions {
		if err := s.Disconnect(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// List returns the names of connected sessions.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.sessions))
	for name, s := range m.sessions {
		if s.State().Connected() {
			names = append(names, name)
		}
	}
	return names
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Info returns information about the named session.
func (m *Manager) Info(name string) (*SessionInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[name]
	if !ok {
		return nil, false
	}

	info := s.Info()
	return &info, true
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.config.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopClean:
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}

// cleanupExpired disconnects sessions that have been idle too long. Sessions
// with a turn in flight are left alone.
func (m *Manager) cleanupExpired() {
	m.mu.RLock()
	var expired []*Session
	cutoff := time.Now().Add(-m.config.sessionTTL)

	for _, s := range m.sessions {
		info := s.Info()
		if info.State == StateIdle && info.LastActivity.Before(cutoff) {
			expired = append(expired, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range expired {
		_ = s.Disconnect()
	}
}
