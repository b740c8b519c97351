package resolver

import (
	"testing"
	"time"
)

func TestComputeWindowOneDayWide(t *testing.T) {
	loc := time.UTC
	cases := []struct {
		name   string
		now    time.Time
		offset int
	}{
		{"midday", time.Date(2026, 8, 25, 13, 37, 11, 0, loc), 7},
		{"just before midnight", time.Date(2026, 8, 25, 23, 59, 59, 999999999, loc), 7},
		{"midnight", time.Date(2026, 8, 25, 0, 0, 0, 0, loc), 7},
		{"short offset", time.Date(2026, 8, 25, 9, 0, 0, 0, loc), 1},
		{"month rollover", time.Date(2026, 8, 28, 18, 0, 0, 0, loc), 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			win := ComputeWindow(tc.now, tc.offset, loc)

			wantStart := time.Date(tc.now.Year(), tc.now.Month(), tc.now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, tc.offset)
			if !win.Start.Equal(wantStart) {
				t.Fatalf("start = %v, want %v", win.Start, wantStart)
			}
			if got, want := win.End.Sub(win.Start), 24*time.Hour-time.Nanosecond; got != want {
				t.Fatalf("width = %v, want %v", got, want)
			}
			if !win.Contains(win.Start) || !win.Contains(win.End) {
				t.Fatalf("window must include both boundaries")
			}
			if win.Contains(win.Start.Add(-time.Nanosecond)) {
				t.Fatalf("instant before start must be outside")
			}
			if win.Contains(win.End.Add(time.Nanosecond)) {
				t.Fatalf("instant after end must be outside")
			}
		})
	}
}

func TestComputeWindowNilLocation(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.Local)
	win := ComputeWindow(now, 7, nil)
	if win.Start.Location() != time.Local {
		t.Fatalf("nil location should fall back to local")
	}
}

func TestWindowCovers(t *testing.T) {
	loc := time.UTC
	win := ComputeWindow(time.Date(2026, 8, 25, 12, 0, 0, 0, loc), 7, loc)
	day := win.Start // 2026-09-01 00:00:00 UTC

	ev := func(start, end time.Time) Event { return Event{Start: start, End: end} }

	cases := []struct {
		name string
		e    Event
		want bool
	}{
		{"fully inside", ev(day.Add(9*time.Hour), day.Add(11*time.Hour)), true},
		{"starts exactly at window start", ev(win.Start, win.Start.Add(time.Hour)), true},
		{"ends exactly at window end", ev(win.End.Add(-time.Hour), win.End), true},
		{"straddles start boundary", ev(win.Start.Add(-2*time.Hour), win.Start.Add(2*time.Hour)), true},
		{"straddles end boundary", ev(win.End.Add(-2*time.Hour), win.End.Add(2*time.Hour)), true},
		{"spans the whole window", ev(win.Start.Add(-24*time.Hour), win.End.Add(24*time.Hour)), true},
		{"entirely before", ev(win.Start.Add(-48*time.Hour), win.Start.Add(-24*time.Hour)), false},
		{"entirely after", ev(win.End.Add(24*time.Hour), win.End.Add(48*time.Hour)), false},
		{"only two days ahead of now", ev(
			time.Date(2026, 8, 27, 9, 0, 0, 0, loc),
			time.Date(2026, 8, 27, 10, 0, 0, 0, loc)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := win.Covers(tc.e); got != tc.want {
				t.Fatalf("Covers(%v..%v) = %v, want %v", tc.e.Start, tc.e.End, got, tc.want)
			}
		})
	}
}
