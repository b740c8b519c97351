package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"slotter/internal/resolver"
	logx "slotter/pkg/logx"
)

// Config configures the event store.
//
// Driver values:
//   - "sqlite" (default when empty): SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Store is the persistence API used by the pipeline and the HTTP surface.
// It is a superset of resolver.Store.
type Store interface {
	FetchPendingCandidates(ctx context.Context, win resolver.Window) ([]resolver.Event, int, error)
	ApplyDecision(ctx context.Context, d resolver.Decision) error

	// InsertEvent creates a new pending event. Start must precede end.
	InsertEvent(ctx context.Context, title string, start, end time.Time) (resolver.Event, error)

	// ListEvents returns every event (any status) intersecting the window,
	// ordered by id. Used for post-run inspection.
	ListEvents(ctx context.Context, win resolver.Window) ([]resolver.Event, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
