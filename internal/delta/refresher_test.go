package delta

import (
	"context"
	"errors"
	"testing"
	"time"

	"MT5Pull/internal/domain/models"
	"MT5Pull/internal/domain/repository"
)

type fakeTrier struct {
	provider *fakeProvider
	readyErr error
	busy     bool
}

func (g *fakeTrier) EnsureReady() error { return g.readyErr }

func (g *fakeTrier) TrySession(fn func(repository.SessionProvider) error) error {
	if g.busy {
		return models.ErrSessionBusy
	}
	return fn(g.provider)
}

func TestRefreshSkipsNonAutoProvenance(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{tick: &models.Tick{Symbol: "XAUUSD", Time: now.Unix()}}
	trier := &fakeTrier{provider: provider}

	e := newTestEstimator(t, &fakeGate{provider: provider}, now)
	r := NewRefresher(e, trier, nil, testLogger(t), time.Minute)

	// unset: nothing to refresh
	r.refreshOnce(context.Background())
	if provider.calls != 0 {
		t.Fatalf("unset delta must not be refreshed, probes=%d", provider.calls)
	}

	// manual: pinned, never refreshed
	if err := e.SetManual("120"); err != nil {
		t.Fatalf("SetManual: %v", err)
	}
	r.refreshOnce(context.Background())
	if provider.calls != 0 {
		t.Fatalf("manual delta must not be refreshed, probes=%d", provider.calls)
	}
	if offset, prov := e.Get(); prov != models.ProvenanceManual || offset != 2*time.Hour {
		t.Fatalf("manual value changed: (%v, %v)", offset, prov)
	}
}

func TestRefreshUpdatesAutoValue(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{tick: &models.Tick{Symbol: "XAUUSD", Time: now.Add(-3 * time.Hour).Unix()}}
	trier := &fakeTrier{provider: provider}

	e := newTestEstimator(t, &fakeGate{provider: provider}, now)
	if err := e.AutoDetect(context.Background()); err != nil {
		t.Fatalf("AutoDetect: %v", err)
	}

	// broker rolled DST: server now lags by 2h
	provider.tick = &models.Tick{Symbol: "XAUUSD", Time: now.Add(-2 * time.Hour).Unix()}

	r := NewRefresher(e, trier, nil, testLogger(t), time.Minute)
	r.refreshOnce(context.Background())

	offset, prov := e.Get()
	if prov != models.ProvenanceAuto || offset != 2*time.Hour {
		t.Fatalf("got (%v, %v), want (2h, auto)", offset, prov)
	}
	if r.LastError() != nil {
		t.Fatalf("unexpected refresh error: %v", r.LastError())
	}
}

func TestRefreshSkipsBusySession(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{tick: &models.Tick{Symbol: "XAUUSD", Time: now.Add(-time.Hour).Unix()}}

	e := newTestEstimator(t, &fakeGate{provider: provider}, now)
	if err := e.AutoDetect(context.Background()); err != nil {
		t.Fatalf("AutoDetect: %v", err)
	}
	before, _ := e.Get()

	trier := &fakeTrier{provider: provider, busy: true}
	r := NewRefresher(e, trier, nil, testLogger(t), time.Minute)
	r.refreshOnce(context.Background())

	if after, _ := e.Get(); after != before {
		t.Fatalf("busy skip changed delta: %v -> %v", before, after)
	}
	if r.LastError() != nil {
		t.Fatalf("busy skip is not a failure: %v", r.LastError())
	}
}

func TestRefreshFailureKeepsPreviousValue(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{tick: &models.Tick{Symbol: "XAUUSD", Time: now.Add(-time.Hour).Unix()}}

	e := newTestEstimator(t, &fakeGate{provider: provider}, now)
	if err := e.AutoDetect(context.Background()); err != nil {
		t.Fatalf("AutoDetect: %v", err)
	}

	provider.tickErr = errors.New("terminal hiccup")
	trier := &fakeTrier{provider: provider}
	r := NewRefresher(e, trier, nil, testLogger(t), time.Minute)
	r.refreshOnce(context.Background())

	offset, prov := e.Get()
	if prov != models.ProvenanceAuto || offset != time.Hour {
		t.Fatalf("failed refresh must keep previous value, got (%v, %v)", offset, prov)
	}
	if r.LastError() == nil {
		t.Fatalf("expected recorded refresh error")
	}
}
