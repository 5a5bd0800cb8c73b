package models

// Provenance tags where the current delta value came from.
type Provenance string

const (
	ProvenanceUnset  Provenance = "unset"
	ProvenanceAuto   Provenance = "auto"
	ProvenanceManual Provenance = "manual"
)

// SessionState is the lifecycle state of the single terminal session.
type SessionState int32

const (
	SessionUninitialized SessionState = iota
	SessionReady
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionReady:
		return "ready"
	case SessionFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// StatusSnapshot is the derived readiness view returned by GET /status.
// JSON keys are kept wire-compatible with the previous service, including
// the legacy gui_ready/mt5_ready names.
type StatusSnapshot struct {
	FrontendReady   bool    `json:"gui_ready"`
	SessionReady    bool    `json:"mt5_ready"`
	CredentialsSet  bool    `json:"credentials_set"`
	DeltaSeconds    *int64  `json:"delta_seconds"`
	DeltaProvenance string  `json:"delta_provenance"`
	SessionStatus   string  `json:"session_state"`
	LastUTCSync     *string `json:"utc_time_tracking"`
}
