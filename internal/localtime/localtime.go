// Package localtime buckets instants into Nepal calendar days.
// Every ledger read and write goes through StartOfLocalDay.
package localtime

import "time"

// Offset of Nepal Time from UTC (+5:45, no daylight saving).
const Offset = 5*time.Hour + 45*time.Minute

// Zone is Nepal Time.
var Zone = time.FixedZone("NPT", int(Offset/time.Second))

// StartOfLocalDay returns local midnight of the day containing t, expressed in UTC.
func StartOfLocalDay(t time.Time) time.Time {
	l := t.In(Zone)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, Zone).UTC()
}

// DayRange returns the half-open [start, end) interval of t's local day, in UTC.
func DayRange(t time.Time) (time.Time, time.Time) {
	start := StartOfLocalDay(t)
	return start, start.AddDate(0, 0, 1)
}

// LocalHour is the hour of day of t in Nepal Time.
func LocalHour(t time.Time) int {
	return t.In(Zone).Hour()
}

// Date formats t as the local calendar date.
func Date(t time.Time) string {
	return t.In(Zone).Format("2006-01-02")
}
