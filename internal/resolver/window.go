package resolver

import "time"

// ComputeWindow returns the processing window for a run started at now:
// the full calendar day offsetDays ahead, in loc. The end bound is the last
// representable instant of that day, so Contains() is inclusive on both
// sides.
func ComputeWindow(now time.Time, offsetDays int, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	day := now.In(loc).AddDate(0, 0, offsetDays)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return Window{Start: start, End: end}
}
