package api

import (
	"errors"
	"net/http"

	"MT5Pull/internal/domain/models"
	xhttp "MT5Pull/pkg/http"
)

// domainStatus maps sentinel errors to machine-readable codes and statuses.
// Validation failures reject before touching the session (400); terminal
// and connectivity failures surface as 5xx with the captured reason.
var domainStatus = []struct {
	err    error
	code   string
	status int
}{
	{models.ErrInvalidRange, "ERR_INVALID_RANGE", http.StatusBadRequest},
	{models.ErrInvalidOffset, "ERR_INVALID_OFFSET", http.StatusBadRequest},
	{models.ErrInvalidDeltaFormat, "ERR_INVALID_DELTA_FORMAT", http.StatusBadRequest},
	{models.ErrInvalidTimeframe, "ERR_INVALID_TIME_FRAME", http.StatusBadRequest},
	{models.ErrInvalidTime, "ERR_INVALID_TIME", http.StatusBadRequest},
	{models.ErrNoDataAvailable, "ERR_NO_DATA", http.StatusNotFound},
	{models.ErrSessionNotReady, "ERR_SESSION_NOT_READY", http.StatusServiceUnavailable},
	{models.ErrCredentialsMissing, "ERR_CREDENTIALS_MISSING", http.StatusServiceUnavailable},
	{models.ErrSessionBusy, "ERR_SESSION_BUSY", http.StatusServiceUnavailable},
	{models.ErrSessionInitFailed, "ERR_SESSION_INIT_FAILED", http.StatusBadGateway},
	{models.ErrDeltaDetectionFailed, "ERR_DELTA_DETECTION_FAILED", http.StatusBadGateway},
}

// toAppError converts a domain error into an AppError with the proper
// status code. Unknown errors become 500s.
func toAppError(err error) *xhttp.AppError {
	for _, m := range domainStatus {
		if errors.Is(err, m.err) {
			return xhttp.NewAppError(m.code, err.Error(), m.status).WithError(err)
		}
	}
	return xhttp.InternalError(err.Error()).WithError(err)
}
