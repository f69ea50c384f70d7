package config

import (
	"context"
	"sync"

	"github.com/stacklok/toolhive-core/env"
)

// SetupOptions are explicit connection values, e.g. from a login call.
type SetupOptions struct {
	APIKey    string
	Host      string
	Username  string
	Password  string
	VerifyTLS bool
}

// Session holds the active Configuration for a process. It resolves lazily
// on first use and can be re-derived with Reload or overridden with Setup.
type Session struct {
	mu       sync.RWMutex
	path     string
	env      env.Reader
	opts     []Option
	cfg      *Configuration
	state    AuthState
	resolved bool
}

// NewSession creates a session backed by the settings file at path.
func NewSession(path string, envReader env.Reader, opts ...Option) *Session {
	if envReader == nil {
		envReader = &env.OSReader{}
	}
	return &Session{
		path: path,
		env:  envReader,
		opts: opts,
	}
}

// Path returns the settings file path of the session.
func (s *Session) Path() string {
	return s.path
}

// Ensure returns the active configuration, resolving it on first use.
func (s *Session) Ensure() (*Configuration, AuthState, error) {
	s.mu.RLock()
	if s.resolved {
		defer s.mu.RUnlock()
		return s.cfg.Clone(), s.state, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.resolved {
		if err := s.resolveLocked(); err != nil {
			return nil, AuthState{}, err
		}
	}
	return s.cfg.Clone(), s.state, nil
}

// Reload discards the active configuration and resolves it again.
func (s *Session) Reload() (*Configuration, AuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.resolveLocked(); err != nil {
		return nil, AuthState{}, err
	}
	return s.cfg.Clone(), s.state, nil
}

func (s *Session) resolveLocked() error {
	cfg, state, err := Resolve(s.env, s.path, s.opts...)
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.state = state
	s.resolved = true
	return nil
}

// Setup replaces the active configuration with explicit values. An empty
// host selects DefaultHost.
func (s *Session) Setup(o SetupOptions) (*Configuration, AuthState) {
	cfg := &Configuration{
		Host:      firstNonEmpty(o.Host, DefaultHost),
		APIKey:    o.APIKey,
		Username:  o.Username,
		Password:  o.Password,
		VerifyTLS: o.VerifyTLS,
		Retries:   DefaultRetryPolicy(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.state = deriveAuthState(cfg.APIKey, cfg.Username)
	s.resolved = true
	return cfg.Clone(), s.state
}

// Save persists the active configuration to the session's settings file.
func (s *Session) Save(ctx context.Context) error {
	s.mu.RLock()
	cfg := s.cfg.Clone()
	s.mu.RUnlock()

	if cfg == nil {
		return ErrNoConfiguration
	}
	return Persist(ctx, cfg, s.path, s.opts...)
}

var (
	defaultSession *Session
	defaultLock    sync.Mutex
)

// Default returns the process-wide session, creating one for the default
// settings file on first use. Nothing is read until Ensure is called.
func Default() *Session {
	defaultLock.Lock()
	defer defaultLock.Unlock()
	if defaultSession == nil {
		defaultSession = NewSession(DefaultSettingsFile(), &env.OSReader{})
	}
	return defaultSession
}

// SetDefault replaces the process-wide session.
func SetDefault(s *Session) {
	defaultLock.Lock()
	defer defaultLock.Unlock()
	defaultSession = s
}

// ResetDefault clears the process-wide session. Useful for test cleanup.
func ResetDefault() {
	SetDefault(nil)
}
