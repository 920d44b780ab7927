package fetcher

import "fmt"

// Interval is a candle aggregation window. The set is fixed; both the token
// feed and the fallback venue understand the same codes.
type Interval string

const (
	Interval1s  Interval = "1s"
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

var supportedIntervals = map[Interval]struct{}{
	Interval1s:  {},
	Interval1m:  {},
	Interval5m:  {},
	Interval15m: {},
	Interval30m: {},
	Interval1h:  {},
	Interval4h:  {},
	Interval1d:  {},
	Interval1w:  {},
	Interval1M:  {},
}

// ParseInterval validates an interval code. An unsupported interval is a
// configuration error, not a runtime fallback.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if _, ok := supportedIntervals[iv]; !ok {
		return "", fmt.Errorf("unsupported candle interval %q", s)
	}
	return iv, nil
}
