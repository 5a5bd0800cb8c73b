package models

// Candle is a single OHLCV bar. Time is the bar open time in unix seconds,
// already corrected to UTC by the query layer before it leaves the service.
type Candle struct {
	Time       int64   `json:"open_time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	TickVolume int64   `json:"tick_volume"`
	Spread     int32   `json:"spread"`
	RealVolume int64   `json:"real_volume"`
}

// Tick is the most recent quote for an instrument as reported by the
// terminal. Time is in terminal server time, unix seconds.
type Tick struct {
	Symbol string  `json:"symbol"`
	Time   int64   `json:"time"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// Credentials identify one terminal account. They are immutable once bound
// to a live session; replacing them requires an explicit re-initialize.
type Credentials struct {
	Path     string `json:"path" yaml:"path"`
	Login    int64  `json:"login" yaml:"login"`
	Password string `json:"password" yaml:"password"`
	Server   string `json:"server" yaml:"server"`
}

// Complete reports whether every credential field is present.
func (c Credentials) Complete() bool {
	return c.Path != "" && c.Login != 0 && c.Password != "" && c.Server != ""
}
