package repository

import "time"

// SessionStart returns midnight of ts's calendar day in the market's
// local time zone. Daily trade counts are taken from this instant.
func SessionStart(ts time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := ts.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
