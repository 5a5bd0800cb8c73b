package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"MT5Pull/internal/domain/models"
	"MT5Pull/internal/domain/repository"
	"MT5Pull/pkg/cache"
	applogger "MT5Pull/pkg/logger"
)

// SessionAccess is what the query service needs from the session manager.
type SessionAccess interface {
	EnsureReady() error
	WithSession(ctx context.Context, fn func(repository.SessionProvider) error) error
}

// DeltaSource provides the current clock correction.
type DeltaSource interface {
	Get() (time.Duration, models.Provenance)
	Ensure(ctx context.Context) error
}

// CandleQueryService translates range and offset requests into session
// calls and applies delta correction to every query.
type CandleQueryService struct {
	sessions SessionAccess
	delta    DeltaSource
	metrics  repository.Metrics
	logger   *applogger.Logger

	cache    cache.Service
	cacheTTL time.Duration
	archiver repository.Archiver
}

// NewCandleQueryService creates the query service. Cache and archiver are
// optional; nil disables them.
func NewCandleQueryService(sessions SessionAccess, delta DeltaSource, metrics repository.Metrics, logger *applogger.Logger) *CandleQueryService {
	return &CandleQueryService{
		sessions: sessions,
		delta:    delta,
		metrics:  metrics,
		logger:   logger,
	}
}

// SetCache enables response caching for range queries.
func (s *CandleQueryService) SetCache(c cache.Service, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

// SetArchiver enables out-of-band archiving of fetched candles.
func (s *CandleQueryService) SetArchiver(a repository.Archiver) {
	s.archiver = a
}

// FetchRange returns candles whose open time falls inside [from, to],
// ascending. The caller supplies UTC bounds; the session speaks server
// time, so bounds are shifted by -delta on the way in and bar timestamps by
// +delta on the way out (delta = utc - server_time).
func (s *CandleQueryService) FetchRange(ctx context.Context, symbol string, tf repository.Timeframe, from, to time.Time) ([]models.Candle, error) {
	if !from.Before(to) {
		return nil, models.ErrInvalidRange
	}
	if err := s.sessions.EnsureReady(); err != nil {
		return nil, err
	}
	if err := s.delta.Ensure(ctx); err != nil {
		return nil, err
	}
	offset, _ := s.delta.Get()

	key := fmt.Sprintf("candles:range:%s:%s:%d:%d:%d", symbol, tf, from.Unix(), to.Unix(), int64(offset.Seconds()))
	if s.cache != nil {
		var cached []models.Candle
		if err := s.cache.Get(ctx, key, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	start := time.Now()
	var raw []models.Candle
	err := s.sessions.WithSession(ctx, func(p repository.SessionProvider) error {
		var ferr error
		raw, ferr = p.RatesRange(ctx, symbol, tf, from.Add(-offset), to.Add(-offset))
		return ferr
	})
	s.observe("range", symbol, start, err)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, models.ErrNoDataAvailable
	}

	candles := correctToUTC(raw, offset)
	if s.metrics != nil {
		s.metrics.RecordFetch("range", symbol, len(candles))
	}
	if s.cache != nil {
		if cerr := s.cache.Set(ctx, key, candles, s.cacheTTL); cerr != nil {
			s.logger.Warn("candle cache set failed", applogger.Error(cerr))
		}
	}
	s.archive(symbol, tf, candles)
	return candles, nil
}

// FetchByOffset returns count candles ending offset bars before the latest
// closed bar. Offset and count are bar-index-relative and get no delta
// correction; returned timestamps are still corrected to UTC.
func (s *CandleQueryService) FetchByOffset(ctx context.Context, symbol string, tf repository.Timeframe, barOffset, count int) ([]models.Candle, error) {
	if barOffset < 0 || count <= 0 {
		return nil, models.ErrInvalidOffset
	}
	if err := s.sessions.EnsureReady(); err != nil {
		return nil, err
	}
	if err := s.delta.Ensure(ctx); err != nil {
		return nil, err
	}
	offset, _ := s.delta.Get()

	start := time.Now()
	var raw []models.Candle
	err := s.sessions.WithSession(ctx, func(p repository.SessionProvider) error {
		var ferr error
		raw, ferr = p.RatesFromOffset(ctx, symbol, tf, barOffset, count)
		return ferr
	})
	s.observe("offset", symbol, start, err)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, models.ErrNoDataAvailable
	}

	if s.metrics != nil {
		s.metrics.RecordFetch("offset", symbol, len(raw))
	}
	return correctToUTC(raw, offset), nil
}

func (s *CandleQueryService) observe(op, symbol string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordLatency("fetch_"+op, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError("fetch_" + op)
	}
}

// archive hands candles to the configured backend without blocking the
// request path. Archive failures are logged, never surfaced.
func (s *CandleQueryService) archive(symbol string, tf repository.Timeframe, candles []models.Candle) {
	if s.archiver == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.archiver.Archive(ctx, symbol, tf, candles); err != nil {
			s.logger.Warn("candle archive failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
	}()
}

// correctToUTC shifts bar open times from server time to UTC and returns
// them in ascending order.
func correctToUTC(raw []models.Candle, offset time.Duration) []models.Candle {
	out := make([]models.Candle, len(raw))
	copy(out, raw)
	shift := int64(offset.Seconds())
	for i := range out {
		out[i].Time += shift
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}
