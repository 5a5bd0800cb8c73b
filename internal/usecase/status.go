package usecase

import (
	"sync/atomic"
	"time"

	"MT5Pull/internal/domain/models"
)

// SessionObserver is the read-only session view the reporter consumes.
type SessionObserver interface {
	State() (models.SessionState, string)
	CredentialsSet() bool
}

// DeltaObserver is the read-only delta view the reporter consumes.
type DeltaObserver interface {
	Get() (time.Duration, models.Provenance)
	LastSync() time.Time
}

// StatusReporter aggregates component health into one snapshot. It only
// reads published state and never triggers a session call or detection.
type StatusReporter struct {
	sessions SessionObserver
	delta    DeltaObserver

	frontendReady atomic.Bool
}

// NewStatusReporter creates the reporter.
func NewStatusReporter(sessions SessionObserver, delta DeltaObserver) *StatusReporter {
	return &StatusReporter{sessions: sessions, delta: delta}
}

// AttachFrontend marks the in-process front-end as ready.
func (r *StatusReporter) AttachFrontend() {
	r.frontendReady.Store(true)
}

// Snapshot returns the current readiness view. Non-blocking, best effort.
func (r *StatusReporter) Snapshot() models.StatusSnapshot {
	phase, _ := r.sessions.State()
	offset, prov := r.delta.Get()

	snap := models.StatusSnapshot{
		FrontendReady:   r.frontendReady.Load(),
		SessionReady:    phase == models.SessionReady,
		CredentialsSet:  r.sessions.CredentialsSet(),
		DeltaProvenance: string(prov),
		SessionStatus:   phase.String(),
	}
	if prov != models.ProvenanceUnset {
		seconds := int64(offset.Seconds())
		snap.DeltaSeconds = &seconds
	}
	if sync := r.delta.LastSync(); !sync.IsZero() {
		formatted := sync.UTC().Format(time.RFC3339)
		snap.LastUTCSync = &formatted
	}
	return snap
}
