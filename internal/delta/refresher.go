package delta

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"MT5Pull/internal/domain/models"
	"MT5Pull/internal/domain/repository"
	applogger "MT5Pull/pkg/logger"
)

// SessionTrier is the non-blocking session access the refresher uses.
type SessionTrier interface {
	EnsureReady() error
	TrySession(fn func(repository.SessionProvider) error) error
}

// Refresher periodically re-validates the auto-detected delta. It runs only
// while provenance is Auto, skips cycles when the session is busy, and on
// failure leaves the previous value authoritative.
type Refresher struct {
	estimator *Estimator
	sessions  SessionTrier
	metrics   repository.Metrics
	logger    *applogger.Logger
	interval  time.Duration

	lastErr atomic.Pointer[refreshFailure]
}

type refreshFailure struct {
	at  time.Time
	err error
}

// NewRefresher creates the background delta refresher.
func NewRefresher(estimator *Estimator, sessions SessionTrier, metrics repository.Metrics, logger *applogger.Logger, interval time.Duration) *Refresher {
	return &Refresher{
		estimator: estimator,
		sessions:  sessions,
		metrics:   metrics,
		logger:    logger,
		interval:  interval,
	}
}

// Run loops until ctx is cancelled. Intended to be started as one goroutine
// by the application lifecycle.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshOnce(ctx)
		}
	}
}

// LastError returns the most recent refresh failure, or nil.
func (r *Refresher) LastError() error {
	if f := r.lastErr.Load(); f != nil {
		return f.err
	}
	return nil
}

func (r *Refresher) refreshOnce(ctx context.Context) {
	// manual and unset deltas are never refreshed in the background
	if _, prov := r.estimator.Get(); prov != models.ProvenanceAuto {
		return
	}
	if err := r.sessions.EnsureReady(); err != nil {
		return
	}

	start := time.Now()
	err := r.sessions.TrySession(func(p repository.SessionProvider) error {
		return r.estimator.DetectWith(ctx, p)
	})
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil:
		r.lastErr.Store(nil)
		if r.metrics != nil {
			r.metrics.RecordRefresh(true, elapsed)
		}
	case errors.Is(err, models.ErrSessionBusy):
		// foreground query holds the session; skip this cycle
		r.logger.Debug("delta refresh skipped: session busy")
	default:
		r.lastErr.Store(&refreshFailure{at: time.Now(), err: err})
		if r.metrics != nil {
			r.metrics.RecordRefresh(false, elapsed)
		}
		r.logger.Warn("delta refresh failed, keeping previous value", applogger.Error(err))
	}
}
