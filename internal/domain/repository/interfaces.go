package repository

import (
	"context"
	"time"

	"MT5Pull/internal/domain/models"
)

// SessionProvider is the contract required from the external terminal. The
// terminal API is not reentrant: callers must never invoke two methods
// concurrently. Serialization is the session manager's job, not the
// provider's.
type SessionProvider interface {
	Login(ctx context.Context, creds models.Credentials) error
	Tick(ctx context.Context, symbol string) (*models.Tick, error)
	RatesRange(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) ([]models.Candle, error)
	RatesFromOffset(ctx context.Context, symbol string, tf Timeframe, offset, count int) ([]models.Candle, error)
	Shutdown() error
}

// Clock supplies the current UTC instant. Stubbed in tests.
type Clock interface {
	Now() time.Time
}

// UTCClock is the production Clock.
type UTCClock struct{}

func (UTCClock) Now() time.Time { return time.Now().UTC() }

// Archiver receives successfully fetched candles for out-of-band storage.
// Implementations must tolerate duplicate batches.
type Archiver interface {
	Archive(ctx context.Context, symbol string, tf Timeframe, candles []models.Candle) error
	Close() error
}

// Metrics abstracts the Prometheus recorder for the domain layer.
type Metrics interface {
	RecordFetch(op, symbol string, candles int)
	RecordError(kind string)
	RecordSessionState(state int32)
	RecordDeltaSeconds(seconds float64)
	RecordRefresh(ok bool, seconds float64)
	RecordLatency(op string, seconds float64)
}
