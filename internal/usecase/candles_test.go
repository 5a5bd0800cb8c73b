package usecase

import (
	"context"
	"testing"
	"time"

	"MT5Pull/internal/domain/models"
	"MT5Pull/internal/domain/repository"
	"MT5Pull/pkg/cache"
	applogger "MT5Pull/pkg/logger"

	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	candles   []models.Candle
	rangeErr  error
	lastFrom  time.Time
	lastTo    time.Time
	lastOff   int
	lastCount int
	calls     int
}

func (p *stubProvider) Login(context.Context, models.Credentials) error { return nil }

func (p *stubProvider) Tick(context.Context, string) (*models.Tick, error) { return nil, nil }

func (p *stubProvider) RatesRange(_ context.Context, _ string, _ repository.Timeframe, from, to time.Time) ([]models.Candle, error) {
	p.calls++
	p.lastFrom, p.lastTo = from, to
	return p.candles, p.rangeErr
}

func (p *stubProvider) RatesFromOffset(_ context.Context, _ string, _ repository.Timeframe, offset, count int) ([]models.Candle, error) {
	p.calls++
	p.lastOff, p.lastCount = offset, count
	return p.candles, p.rangeErr
}

func (p *stubProvider) Shutdown() error { return nil }

type stubSessions struct {
	provider *stubProvider
	readyErr error
}

func (s *stubSessions) EnsureReady() error { return s.readyErr }

func (s *stubSessions) WithSession(_ context.Context, fn func(repository.SessionProvider) error) error {
	return fn(s.provider)
}

type stubDelta struct {
	offset    time.Duration
	prov      models.Provenance
	ensureErr error
}

func (d *stubDelta) Get() (time.Duration, models.Provenance) { return d.offset, d.prov }

func (d *stubDelta) Ensure(context.Context) error { return d.ensureErr }

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func newTestService(t *testing.T, provider *stubProvider, d *stubDelta) *CandleQueryService {
	t.Helper()
	return NewCandleQueryService(&stubSessions{provider: provider}, d, nil, testLogger(t))
}

func TestFetchRangeRejectsInvalidRange(t *testing.T) {
	svc := newTestService(t, &stubProvider{}, &stubDelta{prov: models.ProvenanceAuto})
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := svc.FetchRange(context.Background(), "EURUSD", repository.TFM1, at, at)
	require.ErrorIs(t, err, models.ErrInvalidRange)

	_, err = svc.FetchRange(context.Background(), "EURUSD", repository.TFM1, at, at.Add(-time.Hour))
	require.ErrorIs(t, err, models.ErrInvalidRange)
}

func TestFetchRangeRequiresReadySession(t *testing.T) {
	svc := NewCandleQueryService(
		&stubSessions{provider: &stubProvider{}, readyErr: models.ErrSessionNotReady},
		&stubDelta{prov: models.ProvenanceAuto},
		nil, testLogger(t),
	)
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.FetchRange(context.Background(), "EURUSD", repository.TFM1, from, from.Add(time.Hour))
	require.ErrorIs(t, err, models.ErrSessionNotReady)
}

func TestFetchRangeAppliesDeltaBothWays(t *testing.T) {
	from := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	to := from.Add(2 * time.Hour)
	delta := 3 * time.Hour

	serverOpen := from.Add(-delta).Unix() // bar as the terminal reports it
	provider := &stubProvider{candles: []models.Candle{{Time: serverOpen, Open: 1.1, Close: 1.2}}}
	svc := newTestService(t, provider, &stubDelta{offset: delta, prov: models.ProvenanceAuto})

	got, err := svc.FetchRange(context.Background(), "EURUSD", repository.TFH1, from, to)
	require.NoError(t, err)

	// bounds shifted into server time on the way in
	require.Equal(t, from.Add(-delta).Unix(), provider.lastFrom.Unix())
	require.Equal(t, to.Add(-delta).Unix(), provider.lastTo.Unix())

	// bar timestamps corrected back to UTC on the way out
	require.Len(t, got, 1)
	require.Equal(t, from.Unix(), got[0].Time)
}

func TestFetchRangeSortsAscending(t *testing.T) {
	provider := &stubProvider{candles: []models.Candle{
		{Time: 300}, {Time: 100}, {Time: 200},
	}}
	svc := newTestService(t, provider, &stubDelta{prov: models.ProvenanceAuto})

	from := time.Unix(0, 0).UTC()
	got, err := svc.FetchRange(context.Background(), "EURUSD", repository.TFM1, from, from.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, []int64{100, 200, 300}, []int64{got[0].Time, got[1].Time, got[2].Time})
}

func TestFetchRangeNoData(t *testing.T) {
	svc := newTestService(t, &stubProvider{}, &stubDelta{prov: models.ProvenanceAuto})
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.FetchRange(context.Background(), "EURUSD", repository.TFM1, from, from.Add(time.Hour))
	require.ErrorIs(t, err, models.ErrNoDataAvailable)
}

func TestFetchRangeServesFromCache(t *testing.T) {
	provider := &stubProvider{candles: []models.Candle{{Time: 100, Close: 1.5}}}
	svc := newTestService(t, provider, &stubDelta{prov: models.ProvenanceAuto})

	mem := cache.NewMemoryCache()
	defer mem.Close()
	svc.SetCache(mem, time.Minute)

	from := time.Unix(0, 0).UTC()
	to := from.Add(time.Hour)

	first, err := svc.FetchRange(context.Background(), "EURUSD", repository.TFM1, from, to)
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls)

	second, err := svc.FetchRange(context.Background(), "EURUSD", repository.TFM1, from, to)
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls, "second fetch must hit the cache")
	require.Equal(t, first, second)
}

func TestFetchByOffsetValidation(t *testing.T) {
	svc := newTestService(t, &stubProvider{}, &stubDelta{prov: models.ProvenanceAuto})

	_, err := svc.FetchByOffset(context.Background(), "EURUSD", repository.TFM1, -1, 10)
	require.ErrorIs(t, err, models.ErrInvalidOffset)

	_, err = svc.FetchByOffset(context.Background(), "EURUSD", repository.TFM1, 0, 0)
	require.ErrorIs(t, err, models.ErrInvalidOffset)
}

func TestFetchByOffsetPassesBarIndexesUncorrected(t *testing.T) {
	delta := 2 * time.Hour
	serverOpen := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC).Unix()
	provider := &stubProvider{candles: []models.Candle{{Time: serverOpen}}}
	svc := newTestService(t, provider, &stubDelta{offset: delta, prov: models.ProvenanceAuto})

	got, err := svc.FetchByOffset(context.Background(), "EURUSD", repository.TFH1, 5, 100)
	require.NoError(t, err)

	// bar indexes are clock-free and must reach the terminal untouched
	require.Equal(t, 5, provider.lastOff)
	require.Equal(t, 100, provider.lastCount)

	// output timestamps still corrected to UTC
	require.Len(t, got, 1)
	require.Equal(t, serverOpen+int64(delta.Seconds()), got[0].Time)
}

func TestFetchByOffsetNoData(t *testing.T) {
	svc := newTestService(t, &stubProvider{}, &stubDelta{prov: models.ProvenanceAuto})
	_, err := svc.FetchByOffset(context.Background(), "EURUSD", repository.TFM1, 0, 10)
	require.ErrorIs(t, err, models.ErrNoDataAvailable)
}
