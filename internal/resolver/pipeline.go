package resolver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	logx "slotter/pkg/logx"
)

// ErrRunInProgress means another run holds the single-flight guard. The
// caller must not retry with stale data; the next trigger picks up whatever
// is left pending.
var ErrRunInProgress = errors.New("resolver: run already in progress")

// Options configures a Runner. Zero values fall back to sane defaults
// (offset 7 days, local clock, wall-clock now, seeded math/rand).
type Options struct {
	OffsetDays int
	Location   *time.Location

	// Now and Rand are injectable for tests.
	Now  func() time.Time
	Rand Rand
}

// Report is the outcome of one pipeline run. Lines is the ordered
// human-readable log; transports render it however they like.
type Report struct {
	RunAt       time.Time  `json:"run_at"`
	Window      Window     `json:"window"`
	Candidates  int        `json:"candidates"`
	SkippedRows int        `json:"skipped_rows,omitempty"`
	Groups      int        `json:"groups"`
	Decisions   []Decision `json:"decisions,omitempty"`
	Confirmed   int        `json:"confirmed"`
	Failed      int        `json:"failed"`
	WriteErrors int        `json:"write_errors,omitempty"`
	Lines       []string   `json:"lines"`
}

func (r *Report) addLine(format string, args ...any) {
	r.Lines = append(r.Lines, fmt.Sprintf(format, args...))
}

// Runner is the sole pipeline entry point; both the cron trigger and the
// HTTP trigger call Run. Runs are serialized: a second concurrent caller
// gets ErrRunInProgress instead of a stale read.
type Runner struct {
	store Store
	opts  Options
	log   logx.Logger

	mu sync.Mutex
}

func NewRunner(store Store, opts Options, log logx.Logger) *Runner {
	if opts.OffsetDays <= 0 {
		opts.OffsetDays = 7
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		// Local RNG to avoid global lock contention. Fairness is per-run;
		// reproducibility is only needed in tests, which inject their own.
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{store: store, opts: opts, log: log}
}

// WindowFor returns the window offsetDays ahead of now, on the runner's
// clock and location. A negative offset uses the configured one.
func (r *Runner) WindowFor(offsetDays int) Window {
	if offsetDays < 0 {
		offsetDays = r.opts.OffsetDays
	}
	return ComputeWindow(r.opts.Now(), offsetDays, r.opts.Location)
}

// Run executes one full pipeline pass: window, fetch, group, resolve,
// persist, report. A fetch error aborts the run with no writes performed; a
// per-decision write error is recorded and the remaining groups continue.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	started := time.Now()
	now := r.opts.Now()
	win := ComputeWindow(now, r.opts.OffsetDays, r.opts.Location)

	rep := &Report{RunAt: now, Window: win}
	rep.addLine("window %s .. %s", win.Start.Format(time.RFC3339), win.End.Format(time.RFC3339))

	events, skipped, err := r.store.FetchPendingCandidates(ctx, win)
	if err != nil {
		r.log.Error("candidate fetch failed; aborting run", logx.Err(err))
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	rep.Candidates = len(events)
	rep.SkippedRows = skipped
	if skipped > 0 {
		rep.addLine("skipped %d row(s) with unusable timestamps", skipped)
		r.log.Warn("skipped rows with unusable timestamps", logx.Int("rows", skipped))
	}

	if len(events) == 0 {
		rep.addLine("no events found")
		rep.addLine("run complete")
		r.log.Info("no pending candidates in window",
			logx.Time("window_start", win.Start), logx.Time("window_end", win.End))
		return rep, nil
	}

	groups := GroupOverlapping(events)
	rep.Groups = len(groups)
	rep.addLine("%d candidate(s) in %d group(s)", len(events), len(groups))

	for gi, group := range groups {
		d, err := Resolve(group, r.opts.Rand)
		if err != nil {
			// Cannot happen for GroupOverlapping output; treat as a bug.
			return nil, fmt.Errorf("resolve group %d: %w", gi+1, err)
		}
		rep.Decisions = append(rep.Decisions, d)

		if err := r.store.ApplyDecision(ctx, d); err != nil {
			rep.WriteErrors++
			rep.addLine("group %d: members=%v write failed, left pending: %v", gi+1, d.Members, err)
			r.log.Warn("decision write failed; group left pending",
				logx.Int("group", gi+1), logx.Any("members", d.Members), logx.Err(err))
			continue
		}

		rep.Confirmed++
		rep.Failed += len(d.LoserIDs)
		if len(d.LoserIDs) == 0 {
			rep.addLine("group %d: members=%v -> confirmed %d (no conflict)", gi+1, d.Members, d.WinnerID)
		} else {
			rep.addLine("group %d: members=%v -> winner %d confirmed, losers %v failed",
				gi+1, d.Members, d.WinnerID, d.LoserIDs)
		}
	}

	rep.addLine("run complete: confirmed=%d failed=%d write_errors=%d",
		rep.Confirmed, rep.Failed, rep.WriteErrors)
	r.log.Info("run complete",
		logx.Int("candidates", rep.Candidates),
		logx.Int("groups", rep.Groups),
		logx.Int("confirmed", rep.Confirmed),
		logx.Int("failed", rep.Failed),
		logx.Int("write_errors", rep.WriteErrors),
		logx.Duration("took", time.Since(started)))
	return rep, nil
}
