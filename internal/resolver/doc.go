// Package resolver is the conflict-resolution engine.
//
// A run selects pending events whose spans intersect the processing window
// (one calendar day, a configurable number of days ahead), partitions them
// into transitively-overlapping groups with a union-find, and resolves each
// group: the sole member of a singleton is confirmed outright, while a
// larger group confirms one uniformly-random winner and fails the rest.
//
// The pipeline itself stays free of transports: it returns its ordered log
// as data and leaves rendering to the cron and HTTP triggers, which share
// Runner.Run as the single entry point.
package resolver
