package usecase

import (
	"context"

	"MT5Pull/internal/domain/models"
	"MT5Pull/internal/domain/repository"
	"MT5Pull/pkg/util"
)

// SessionControl is the session lifecycle surface exposed to the front-end.
type SessionControl interface {
	Initialize(ctx context.Context, creds models.Credentials) error
	Reset(ctx context.Context) error
}

// DeltaControl is the delta override surface exposed to the front-end.
type DeltaControl interface {
	SetManual(s string) error
	Clear()
}

// Frontend is the plain-call facade for a same-process front-end. It offers
// the same operations as the HTTP surface without assuming any transport.
type Frontend struct {
	candles  *CandleQueryService
	sessions SessionControl
	delta    DeltaControl
	status   *StatusReporter
}

// NewFrontend builds the facade and marks the front-end ready for status.
func NewFrontend(candles *CandleQueryService, sessions SessionControl, delta DeltaControl, status *StatusReporter) *Frontend {
	f := &Frontend{candles: candles, sessions: sessions, delta: delta, status: status}
	status.AttachFrontend()
	return f
}

// FetchRange fetches candles between two wall-clock strings (unix seconds
// or "YYYY-MM-DD HH:MM:SS").
func (f *Frontend) FetchRange(ctx context.Context, symbol, timeFrame, from, to string) ([]models.Candle, error) {
	tf, ok := repository.ParseTimeframe(timeFrame)
	if !ok {
		return nil, models.ErrInvalidTimeframe
	}
	fromT, ok := util.ParseTime(from)
	if !ok {
		return nil, models.ErrInvalidTime
	}
	toT, ok := util.ParseTime(to)
	if !ok {
		return nil, models.ErrInvalidTime
	}
	return f.candles.FetchRange(ctx, symbol, tf, fromT, toT)
}

// FetchByOffset fetches count candles ending offset bars back.
func (f *Frontend) FetchByOffset(ctx context.Context, symbol, timeFrame string, offset, count int) ([]models.Candle, error) {
	tf, ok := repository.ParseTimeframe(timeFrame)
	if !ok {
		return nil, models.ErrInvalidTimeframe
	}
	return f.candles.FetchByOffset(ctx, symbol, tf, offset, count)
}

// Initialize binds credentials and opens the session.
func (f *Frontend) Initialize(ctx context.Context, creds models.Credentials) error {
	return f.sessions.Initialize(ctx, creds)
}

// ResetSession tears down and re-opens the session with known credentials.
func (f *Frontend) ResetSession(ctx context.Context) error {
	return f.sessions.Reset(ctx)
}

// SetDelta applies a manual delta override.
func (f *Frontend) SetDelta(s string) error {
	return f.delta.SetManual(s)
}

// ResetDelta clears the delta; the next query re-detects it.
func (f *Frontend) ResetDelta() {
	f.delta.Clear()
}

// Status returns the readiness snapshot.
func (f *Frontend) Status() models.StatusSnapshot {
	return f.status.Snapshot()
}
