package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MT5Pull/internal/domain/models"
	"MT5Pull/internal/domain/repository"
	applogger "MT5Pull/pkg/logger"
)

type stubProvider struct {
	mu        sync.Mutex
	loginErr  error
	logins    int
	shutdowns int
	inCall    bool
	overlaps  int
}

func (p *stubProvider) Login(context.Context, models.Credentials) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logins++
	return p.loginErr
}

func (p *stubProvider) Tick(context.Context, string) (*models.Tick, error) {
	return &models.Tick{Time: time.Now().Unix()}, nil
}

func (p *stubProvider) RatesRange(ctx context.Context, _ string, _ repository.Timeframe, _, _ time.Time) ([]models.Candle, error) {
	p.enter()
	defer p.leave()
	time.Sleep(2 * time.Millisecond)
	return []models.Candle{{Time: 1}}, nil
}

func (p *stubProvider) RatesFromOffset(context.Context, string, repository.Timeframe, int, int) ([]models.Candle, error) {
	return nil, nil
}

func (p *stubProvider) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdowns++
	return nil
}

// enter/leave detect concurrent entry into the non-reentrant provider.
func (p *stubProvider) enter() {
	p.mu.Lock()
	if p.inCall {
		p.overlaps++
	}
	p.inCall = true
	p.mu.Unlock()
}

func (p *stubProvider) leave() {
	p.mu.Lock()
	p.inCall = false
	p.mu.Unlock()
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

var testCreds = models.Credentials{Path: "/opt/mt5", Login: 123, Password: "pw", Server: "Broker-Demo"}

func newTestManager(t *testing.T, p repository.SessionProvider) *Manager {
	t.Helper()
	return NewManager(p, nil, testLogger(t), 50*time.Millisecond)
}

func TestInitializeLifecycle(t *testing.T) {
	p := &stubProvider{}
	m := newTestManager(t, p)

	if err := m.EnsureReady(); !errors.Is(err, models.ErrSessionNotReady) {
		t.Fatalf("err = %v, want ErrSessionNotReady", err)
	}

	if err := m.Initialize(context.Background(), testCreds); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := m.EnsureReady(); err != nil {
		t.Fatalf("EnsureReady after init: %v", err)
	}
	if phase, _ := m.State(); phase != models.SessionReady {
		t.Fatalf("phase = %v, want ready", phase)
	}
	if !m.CredentialsSet() {
		t.Fatalf("expected credentials to be bound")
	}
}

func TestInitializeIdempotentSameCredentials(t *testing.T) {
	p := &stubProvider{}
	m := newTestManager(t, p)

	if err := m.Initialize(context.Background(), testCreds); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := m.Initialize(context.Background(), testCreds); err != nil {
		t.Fatalf("re-Initialize: %v", err)
	}
	if p.logins != 1 {
		t.Fatalf("logins = %d, want 1", p.logins)
	}
}

func TestInitializeDifferentCredentialsReopens(t *testing.T) {
	p := &stubProvider{}
	m := newTestManager(t, p)

	if err := m.Initialize(context.Background(), testCreds); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	other := testCreds
	other.Login = 456
	if err := m.Initialize(context.Background(), other); err != nil {
		t.Fatalf("Initialize with new creds: %v", err)
	}
	if p.shutdowns != 1 || p.logins != 2 {
		t.Fatalf("shutdowns=%d logins=%d, want 1 and 2", p.shutdowns, p.logins)
	}
}

func TestInitializeIncompleteCredentials(t *testing.T) {
	m := newTestManager(t, &stubProvider{})
	err := m.Initialize(context.Background(), models.Credentials{Login: 1})
	if !errors.Is(err, models.ErrCredentialsMissing) {
		t.Fatalf("err = %v, want ErrCredentialsMissing", err)
	}
}

func TestInitializeFailure(t *testing.T) {
	p := &stubProvider{loginErr: errors.New("invalid account")}
	m := newTestManager(t, p)

	err := m.Initialize(context.Background(), testCreds)
	if !errors.Is(err, models.ErrSessionInitFailed) {
		t.Fatalf("err = %v, want ErrSessionInitFailed", err)
	}
	phase, reason := m.State()
	if phase != models.SessionFailed || reason == "" {
		t.Fatalf("state = (%v, %q), want failed with reason", phase, reason)
	}
}

func TestResetWithoutCredentials(t *testing.T) {
	m := newTestManager(t, &stubProvider{})
	if err := m.Reset(context.Background()); !errors.Is(err, models.ErrCredentialsMissing) {
		t.Fatalf("err = %v, want ErrCredentialsMissing", err)
	}
}

func TestResetRestoresReady(t *testing.T) {
	p := &stubProvider{}
	m := newTestManager(t, p)

	if err := m.Initialize(context.Background(), testCreds); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := m.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := m.EnsureReady(); err != nil {
		t.Fatalf("EnsureReady after reset: %v", err)
	}
	if p.shutdowns != 1 || p.logins != 2 {
		t.Fatalf("shutdowns=%d logins=%d, want 1 and 2", p.shutdowns, p.logins)
	}
}

func TestWithSessionSerializesAccess(t *testing.T) {
	p := &stubProvider{}
	m := NewManager(p, nil, testLogger(t), 5*time.Second)
	if err := m.Initialize(context.Background(), testCreds); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithSession(context.Background(), func(sp repository.SessionProvider) error {
				_, err := sp.RatesRange(context.Background(), "EURUSD", repository.TFM1, time.Now().Add(-time.Hour), time.Now())
				return err
			})
			if err != nil {
				t.Errorf("WithSession: %v", err)
			}
		}()
	}
	wg.Wait()

	if p.overlaps != 0 {
		t.Fatalf("detected %d concurrent provider entries", p.overlaps)
	}
}

func TestWithSessionBusyTimeout(t *testing.T) {
	m := newTestManager(t, &stubProvider{})

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = m.WithSession(context.Background(), func(repository.SessionProvider) error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	err := m.WithSession(context.Background(), func(repository.SessionProvider) error { return nil })
	if !errors.Is(err, models.ErrSessionBusy) {
		t.Fatalf("err = %v, want ErrSessionBusy", err)
	}
	close(block)
}

func TestTrySessionBusy(t *testing.T) {
	m := newTestManager(t, &stubProvider{})

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = m.WithSession(context.Background(), func(repository.SessionProvider) error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	if err := m.TrySession(func(repository.SessionProvider) error { return nil }); !errors.Is(err, models.ErrSessionBusy) {
		t.Fatalf("err = %v, want ErrSessionBusy", err)
	}
	close(block)

	// once released, TrySession succeeds
	deadline := time.After(time.Second)
	for {
		err := m.TrySession(func(repository.SessionProvider) error { return nil })
		if err == nil {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("TrySession never succeeded after release: %v", err)
		case <-time.After(time.Millisecond):
		}
	}
}
