package usecase

import (
	"testing"
	"time"

	"MT5Pull/internal/domain/models"

	"github.com/stretchr/testify/require"
)

type stubSessionView struct {
	phase models.SessionState
	creds bool
}

func (s *stubSessionView) State() (models.SessionState, string) { return s.phase, "" }

func (s *stubSessionView) CredentialsSet() bool { return s.creds }

type stubDeltaView struct {
	offset time.Duration
	prov   models.Provenance
	sync   time.Time
}

func (d *stubDeltaView) Get() (time.Duration, models.Provenance) { return d.offset, d.prov }

func (d *stubDeltaView) LastSync() time.Time { return d.sync }

func TestSnapshotUninitialized(t *testing.T) {
	r := NewStatusReporter(&stubSessionView{}, &stubDeltaView{prov: models.ProvenanceUnset})

	snap := r.Snapshot()
	require.False(t, snap.FrontendReady)
	require.False(t, snap.SessionReady)
	require.False(t, snap.CredentialsSet)
	require.Nil(t, snap.DeltaSeconds, "unset delta must serialize as null")
	require.Nil(t, snap.LastUTCSync)
	require.Equal(t, "uninitialized", snap.SessionStatus)
}

func TestSnapshotReady(t *testing.T) {
	syncAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sessions := &stubSessionView{phase: models.SessionReady, creds: true}
	delta := &stubDeltaView{offset: 3 * time.Hour, prov: models.ProvenanceAuto, sync: syncAt}

	r := NewStatusReporter(sessions, delta)
	r.AttachFrontend()

	snap := r.Snapshot()
	require.True(t, snap.FrontendReady)
	require.True(t, snap.SessionReady)
	require.True(t, snap.CredentialsSet)
	require.NotNil(t, snap.DeltaSeconds)
	require.Equal(t, int64(10800), *snap.DeltaSeconds)
	require.Equal(t, "auto", snap.DeltaProvenance)
	require.NotNil(t, snap.LastUTCSync)
	require.Equal(t, "2024-06-01T12:00:00Z", *snap.LastUTCSync)
}

func TestSnapshotManualDeltaWithoutSync(t *testing.T) {
	r := NewStatusReporter(
		&stubSessionView{phase: models.SessionFailed},
		&stubDeltaView{offset: -90 * time.Minute, prov: models.ProvenanceManual},
	)

	snap := r.Snapshot()
	require.False(t, snap.SessionReady)
	require.Equal(t, "failed", snap.SessionStatus)
	require.NotNil(t, snap.DeltaSeconds)
	require.Equal(t, int64(-5400), *snap.DeltaSeconds)
	require.Nil(t, snap.LastUTCSync, "manual delta has no auto sync timestamp")
}
