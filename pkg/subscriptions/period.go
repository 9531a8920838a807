package subscriptions

import "time"

// AddOneMonth returns t moved to the same day of the following month. When the
// following month is shorter the day is clamped to its last day, so Jan 31
// becomes Feb 28 (or 29). Time of day and location are preserved.
func AddOneMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	if last := daysIn(year, month+1, t.Location()); day > last {
		day = last
	}
	hour, min, sec := t.Clock()
	return time.Date(year, month+1, day, hour, min, sec, t.Nanosecond(), t.Location())
}

// daysIn counts the days in month; month may overflow into the next year
func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// FirstPeriod is the one-month window opened at start, used on creation and
// reactivation.
func FirstPeriod(start time.Time) (time.Time, time.Time) {
	return start, AddOneMonth(start)
}
