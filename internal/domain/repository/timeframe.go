package repository

// Timeframe is a terminal bar period identifier (M1..MN1).
type Timeframe string

const (
	TFM1  Timeframe = "M1"
	TFM5  Timeframe = "M5"
	TFM15 Timeframe = "M15"
	TFM30 Timeframe = "M30"
	TFH1  Timeframe = "H1"
	TFH4  Timeframe = "H4"
	TFD1  Timeframe = "D1"
	TFW1  Timeframe = "W1"
	TFMN1 Timeframe = "MN1"
)

// timeframes is the full catalogue the terminal accepts.
var timeframes = map[Timeframe]struct{}{
	"M1": {}, "M2": {}, "M3": {}, "M4": {}, "M5": {}, "M6": {}, "M10": {}, "M12": {},
	"M15": {}, "M20": {}, "M30": {},
	"H1": {}, "H2": {}, "H3": {}, "H4": {}, "H6": {}, "H8": {}, "H12": {},
	"D1": {}, "W1": {}, "MN1": {},
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := timeframes[tf]
	return ok
}

// ParseTimeframe validates a raw string and returns the timeframe, or
// ("", false) when the terminal does not know it.
func ParseTimeframe(s string) (Timeframe, bool) {
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf, true
	}
	return "", false
}
