package resolver

import (
	"context"
	"time"
)

// Status is an event's lifecycle state. The three tokens below are the only
// canonical values; the store's read filter and write targets must use them
// verbatim.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Event is a time-bounded booking request. Start < End always holds for
// events handed to the resolver; the store skips rows that violate it.
type Event struct {
	ID     int64
	Title  string
	Start  time.Time
	End    time.Time
	Status Status
}

// Window is the one-day processing span. Both boundary instants are inside
// the window.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the window, boundaries included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Covers reports whether the event's span intersects or fully spans the
// window. This is the candidate-selection predicate: start inside, or end
// inside, or the event straddles the whole window.
func (w Window) Covers(e Event) bool {
	return w.Contains(e.Start) || w.Contains(e.End) ||
		(!e.Start.After(w.Start) && !e.End.Before(w.End))
}

// Decision is the outcome of resolving one conflict group: exactly one
// winner, zero or more losers. Transient; consumed within a single run.
type Decision struct {
	Members  []int64
	WinnerID int64
	LoserIDs []int64
}

// Store is the persistence surface the pipeline depends on.
type Store interface {
	// FetchPendingCandidates returns pending events intersecting the window,
	// ordered by id, plus the number of rows skipped for bad timestamps.
	FetchPendingCandidates(ctx context.Context, win Window) (events []Event, skipped int, err error)

	// ApplyDecision transitions the winner to confirmed and the losers to
	// failed in one transactional unit. Events that already left pending are
	// not touched.
	ApplyDecision(ctx context.Context, d Decision) error
}
