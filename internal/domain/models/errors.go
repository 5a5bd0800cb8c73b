package models

import "errors"

// Error taxonomy for session, delta, and query failures. Handlers map these
// to HTTP status codes; the plain-call frontend surfaces them as-is.
var (
	ErrCredentialsMissing  = errors.New("terminal credentials missing")
	ErrSessionNotReady     = errors.New("terminal session not ready")
	ErrSessionInitFailed   = errors.New("terminal session initialization failed")
	ErrSessionBusy         = errors.New("terminal session busy")
	ErrDeltaDetectionFailed = errors.New("delta auto-detection failed")
	ErrInvalidDeltaFormat  = errors.New("invalid delta format: use minutes or ±HH:MM[:SS]")
	ErrInvalidRange        = errors.New("invalid range: time_from must be before time_to")
	ErrInvalidOffset       = errors.New("invalid offset: offset must be >= 0 and count > 0")
	ErrInvalidTimeframe    = errors.New("invalid time frame")
	ErrInvalidTime         = errors.New("invalid time format: use unix seconds or 'YYYY-MM-DD HH:MM:SS'")
	ErrNoDataAvailable     = errors.New("no data found for the given parameters")
)
