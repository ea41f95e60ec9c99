package utils

import "time"

// Clock lets services read time without calling time.Now directly.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now() }

// StartOfDayUTC returns midnight UTC of the day t falls in.
func StartOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDayUTC reports whether two unix-second timestamps fall on the same UTC day.
func SameDayUTC(a, b int64) bool {
	return StartOfDayUTC(time.Unix(a, 0)).Equal(StartOfDayUTC(time.Unix(b, 0)))
}

func FromUnixSeconds(t int64) time.Time {
	if t <= 0 {
		return time.Time{}
	}
	return time.Unix(t, 0).UTC()
}

func FormatRFC3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
