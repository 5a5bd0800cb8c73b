// Package delta maintains the signed offset between the terminal's server
// clock and UTC. The value is replaced wholesale on every write and read
// through an atomic pointer, so concurrent readers always observe one
// coherent (value, provenance) pair.
package delta

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"MT5Pull/internal/domain/models"
	"MT5Pull/internal/domain/repository"
	applogger "MT5Pull/pkg/logger"
)

// roundStep is the granularity of broker server offsets. Auto-detected
// deltas snap to the nearest step; exact ties round toward zero.
const roundStep = 30 * time.Minute

// value is one immutable delta observation.
type value struct {
	offset   time.Duration
	prov     models.Provenance
	syncedAt time.Time // UTC instant of the last successful auto sync
}

// SessionGate is the slice of the session manager the estimator needs.
type SessionGate interface {
	EnsureReady() error
	WithSession(ctx context.Context, fn func(repository.SessionProvider) error) error
}

// Estimator computes and stores the delta. Single writer, many readers.
type Estimator struct {
	sessions  SessionGate
	clock     repository.Clock
	metrics   repository.Metrics
	logger    *applogger.Logger
	refSymbol string

	writeMu sync.Mutex
	cur     atomic.Pointer[value]
}

// NewEstimator creates a delta estimator probing refSymbol for detection.
func NewEstimator(gate SessionGate, clock repository.Clock, metrics repository.Metrics, logger *applogger.Logger, refSymbol string) *Estimator {
	e := &Estimator{
		sessions:  gate,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
		refSymbol: refSymbol,
	}
	e.cur.Store(&value{prov: models.ProvenanceUnset})
	return e
}

// Get returns the current (offset, provenance) atomically.
func (e *Estimator) Get() (time.Duration, models.Provenance) {
	v := e.cur.Load()
	return v.offset, v.prov
}

// LastSync returns the instant of the last successful auto-detection, or
// zero time if none happened yet.
func (e *Estimator) LastSync() time.Time {
	return e.cur.Load().syncedAt
}

// SetManual parses a manual override (signed minutes or ±HH:MM[:SS]) and
// stores it with Manual provenance.
func (e *Estimator) SetManual(s string) error {
	offset, err := Parse(s)
	if err != nil {
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	prev := e.cur.Load()
	e.cur.Store(&value{offset: offset, prov: models.ProvenanceManual, syncedAt: prev.syncedAt})
	e.record(offset)
	e.logger.Info("delta set manually", applogger.Duration("delta", offset))
	return nil
}

// Clear resets the delta to zero with Unset provenance. The next query
// triggers re-detection through Ensure before being trusted.
func (e *Estimator) Clear() {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.cur.Store(&value{prov: models.ProvenanceUnset})
	e.record(0)
	e.logger.Info("delta cleared")
}

// Ensure makes sure a trusted delta exists, auto-detecting when unset.
// Queries never proceed with an unset delta.
func (e *Estimator) Ensure(ctx context.Context) error {
	if _, prov := e.Get(); prov != models.ProvenanceUnset {
		return nil
	}
	return e.AutoDetect(ctx)
}

// AutoDetect probes the most recent tick of the reference instrument and
// stores delta = round30(utc_now - tick.server_time) with Auto provenance.
func (e *Estimator) AutoDetect(ctx context.Context) error {
	if err := e.sessions.EnsureReady(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrDeltaDetectionFailed, err)
	}

	var offset time.Duration
	err := e.sessions.WithSession(ctx, func(p repository.SessionProvider) error {
		var derr error
		offset, derr = e.detect(ctx, p)
		return derr
	})
	if err != nil {
		return err
	}

	e.storeAuto(offset)
	return nil
}

// DetectWith runs detection against an already-acquired provider. The
// refresher uses it under TrySession so it never queues behind queries.
func (e *Estimator) DetectWith(ctx context.Context, p repository.SessionProvider) error {
	offset, err := e.detect(ctx, p)
	if err != nil {
		return err
	}
	e.storeAuto(offset)
	return nil
}

func (e *Estimator) detect(ctx context.Context, p repository.SessionProvider) (time.Duration, error) {
	tick, err := p.Tick(ctx, e.refSymbol)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrDeltaDetectionFailed, err)
	}
	if tick == nil || tick.Time == 0 {
		return 0, fmt.Errorf("%w: no tick for %s", models.ErrDeltaDetectionFailed, e.refSymbol)
	}

	serverTime := time.Unix(tick.Time, 0).UTC()
	now := e.clock.Now()
	raw := now.Sub(serverTime)
	rounded := RoundToStep(raw, roundStep)

	e.logger.Debug("delta auto-detected",
		applogger.String("symbol", e.refSymbol),
		applogger.Duration("raw", raw),
		applogger.Duration("rounded", rounded),
	)
	return rounded, nil
}

func (e *Estimator) storeAuto(offset time.Duration) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.cur.Store(&value{offset: offset, prov: models.ProvenanceAuto, syncedAt: e.clock.Now()})
	e.record(offset)
}

func (e *Estimator) record(offset time.Duration) {
	if e.metrics != nil {
		e.metrics.RecordDeltaSeconds(offset.Seconds())
	}
}

// RoundToStep rounds d to the nearest multiple of step. Exact half-step
// remainders round toward zero, so a sign flip never comes from rounding.
func RoundToStep(d, step time.Duration) time.Duration {
	neg := d < 0
	if neg {
		d = -d
	}
	n := d / step
	if d%step > step/2 {
		n++
	}
	r := n * step
	if neg {
		r = -r
	}
	return r
}

// Parse accepts a signed minute count ("210", "-90") or a signed clock
// offset ("+03:30", "-02:00", "+03:30:15"). Empty and "0" mean zero.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "0", "+0", "-0":
		return 0, nil
	}

	// minutes form
	if isDigits(strings.TrimLeft(s, "+-")) {
		mins, err := strconv.Atoi(s)
		if err != nil {
			return 0, models.ErrInvalidDeltaFormat
		}
		return time.Duration(mins) * time.Minute, nil
	}

	// clock form
	sign := time.Duration(1)
	if s[0] == '+' || s[0] == '-' {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, models.ErrInvalidDeltaFormat
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		if p == "" || !isDigits(p) {
			return 0, models.ErrInvalidDeltaFormat
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, models.ErrInvalidDeltaFormat
		}
		nums[i] = n
	}
	d := time.Duration(nums[0])*time.Hour + time.Duration(nums[1])*time.Minute
	if len(nums) == 3 {
		d += time.Duration(nums[2]) * time.Second
	}
	return sign * d, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
