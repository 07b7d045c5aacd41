package preprocess

import (
	"time"
)

// BusinessDays returns every weekday from start to end inclusive.
// Exchange holidays are not modelled; the calendar is the same Mon-Fri
// grid the rest of the pipeline aligns to, which also drops the
// weekend observations cryptocurrencies trade on.
func BusinessDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		default:
			days = append(days, d)
		}
	}
	return days
}

// IsBusinessDay reports whether the date falls on a weekday.
func IsBusinessDay(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
