package models

// CandleRangeRequest is the body of POST /get_candles/. Timestamps accept
// unix seconds or "YYYY-MM-DD HH:MM:SS" and are interpreted as UTC wall
// clock, to be delta-corrected before reaching the terminal.
type CandleRangeRequest struct {
	Symbol    string `json:"symbol" validate:"required"`
	TimeFrame string `json:"time_frame" validate:"required"`
	TimeFrom  string `json:"time_from" validate:"required"`
	TimeTo    string `json:"time_to" validate:"required"`
}

// CandleOffsetRequest is the body of POST /get_candles_by_offset/.
// Offset counts backward in bars from the most recent closed bar.
type CandleOffsetRequest struct {
	Symbol    string `json:"symbol" validate:"required"`
	TimeFrame string `json:"time_frame" validate:"required"`
	Offset    int    `json:"offset" validate:"gte=0"`
	Count     int    `json:"count" validate:"required,gt=0"`
}

// DeltaRequest carries a manual delta override: signed minutes ("210",
// "-90") or a signed clock offset ("+03:30", "-02:00:15").
type DeltaRequest struct {
	Delta string `json:"delta" validate:"required"`
}

// InitializeRequest binds terminal credentials and opens the session.
type InitializeRequest struct {
	Path     string `json:"path" validate:"required"`
	Login    int64  `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
	Server   string `json:"server" validate:"required"`
}

// Credentials converts the request into a Credentials value.
func (r *InitializeRequest) Credentials() Credentials {
	return Credentials{Path: r.Path, Login: r.Login, Password: r.Password, Server: r.Server}
}
