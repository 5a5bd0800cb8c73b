// Package session owns the single live terminal session. Every external
// call, including state transitions, passes through one exclusive scope so
// the non-reentrant terminal API is never entered concurrently.
package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"MT5Pull/internal/domain/models"
	"MT5Pull/internal/domain/repository"
	applogger "MT5Pull/pkg/logger"
)

// state is the published session view. Writers build a fresh value and swap
// it, so Snapshot readers never block and never see a torn state.
type state struct {
	phase  models.SessionState
	reason string
	creds  *models.Credentials
}

// Manager serializes access to the terminal session handle.
type Manager struct {
	provider    repository.SessionProvider
	metrics     repository.Metrics
	logger      *applogger.Logger
	busyTimeout time.Duration

	// sem is a one-slot semaphore guarding the session handle. Channel
	// acquire supports both bounded waits and try-acquire, which a
	// sync.Mutex cannot.
	sem chan struct{}

	st atomic.Pointer[state]
}

// NewManager creates a session manager around a provider.
func NewManager(provider repository.SessionProvider, metrics repository.Metrics, logger *applogger.Logger, busyTimeout time.Duration) *Manager {
	m := &Manager{
		provider:    provider,
		metrics:     metrics,
		logger:      logger,
		busyTimeout: busyTimeout,
		sem:         make(chan struct{}, 1),
	}
	m.st.Store(&state{phase: models.SessionUninitialized})
	return m
}

// Initialize binds credentials and opens the terminal session. Calling it
// while already ready with identical credentials is a no-op; different
// credentials tear the old session down first.
func (m *Manager) Initialize(ctx context.Context, creds models.Credentials) error {
	if !creds.Complete() {
		return models.ErrCredentialsMissing
	}

	release, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	cur := m.st.Load()
	if cur.phase == models.SessionReady && cur.creds != nil && *cur.creds == creds {
		return nil
	}
	if cur.phase == models.SessionReady {
		if err := m.provider.Shutdown(); err != nil {
			m.logger.Warn("session teardown before re-initialize failed", applogger.Error(err))
		}
	}

	return m.login(ctx, creds)
}

// Reset forcibly tears down and re-initializes using last-known credentials.
func (m *Manager) Reset(ctx context.Context) error {
	release, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	cur := m.st.Load()
	if cur.creds == nil {
		return models.ErrCredentialsMissing
	}

	if err := m.provider.Shutdown(); err != nil {
		m.logger.Warn("session teardown failed", applogger.Error(err))
	}
	m.publish(models.SessionUninitialized, "", cur.creds)

	return m.login(ctx, *cur.creds)
}

// EnsureReady fails fast when the session is not ready. Queries use it as a
// precondition gate before ever touching the session scope.
func (m *Manager) EnsureReady() error {
	if m.st.Load().phase != models.SessionReady {
		return models.ErrSessionNotReady
	}
	return nil
}

// WithSession runs fn with exclusive access to the session provider. The
// hold is released on every exit path. Callers that cannot acquire within
// the busy timeout get ErrSessionBusy instead of waiting indefinitely.
func (m *Manager) WithSession(ctx context.Context, fn func(repository.SessionProvider) error) error {
	release, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(m.provider)
}

// TrySession is the non-blocking variant used by the background refresher:
// a busy session skips the cycle rather than queueing behind foreground
// queries.
func (m *Manager) TrySession(fn func(repository.SessionProvider) error) error {
	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
		return fn(m.provider)
	default:
		return models.ErrSessionBusy
	}
}

// State returns the current phase and failure reason.
func (m *Manager) State() (models.SessionState, string) {
	st := m.st.Load()
	return st.phase, st.reason
}

// CredentialsSet reports whether credentials were ever bound.
func (m *Manager) CredentialsSet() bool {
	return m.st.Load().creds != nil
}

// Close shuts the terminal session down.
func (m *Manager) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.busyTimeout)
	defer cancel()
	release, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	cur := m.st.Load()
	m.publish(models.SessionUninitialized, "", cur.creds)
	return m.provider.Shutdown()
}

// login opens the session. Caller must hold the session scope.
func (m *Manager) login(ctx context.Context, creds models.Credentials) error {
	if err := m.provider.Login(ctx, creds); err != nil {
		m.publish(models.SessionFailed, err.Error(), &creds)
		m.logger.Error("session initialization failed",
			applogger.Int64("login", creds.Login),
			applogger.String("server", creds.Server),
			applogger.Error(err),
		)
		return fmt.Errorf("%w: %v", models.ErrSessionInitFailed, err)
	}

	m.publish(models.SessionReady, "", &creds)
	m.logger.Info("session ready",
		applogger.Int64("login", creds.Login),
		applogger.String("server", creds.Server),
	)
	return nil
}

func (m *Manager) publish(phase models.SessionState, reason string, creds *models.Credentials) {
	m.st.Store(&state{phase: phase, reason: reason, creds: creds})
	if m.metrics != nil {
		m.metrics.RecordSessionState(int32(phase))
	}
}

func (m *Manager) acquire(ctx context.Context) (func(), error) {
	timer := time.NewTimer(m.busyTimeout)
	defer timer.Stop()

	select {
	case m.sem <- struct{}{}:
		return func() { <-m.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, models.ErrSessionBusy
	}
}
