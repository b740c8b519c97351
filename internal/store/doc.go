// Package store persists events in SQLite.
//
// Events are created pending by external callers (the HTTP surface, or
// anything else writing to the same database) and only ever advance to
// confirmed or failed through ApplyDecision.
package store
