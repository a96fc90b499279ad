package harvest

import (
	"fmt"
	"math"
	"time"
)

const isoLayout = "2006-01-02T15:04:05"

// FormatISO renders t without a zone offset, appending microseconds only
// when they are non-zero.
func FormatISO(t time.Time) string {
	s := t.Format(isoLayout)
	if us := t.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}

// EpochTime converts fractional epoch seconds to a time in loc.
func EpochTime(seconds float64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	whole, frac := math.Modf(seconds)
	us := math.Round(frac * 1e6)
	return time.Unix(int64(whole), int64(us)*1000).In(loc)
}
