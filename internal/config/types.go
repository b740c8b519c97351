package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Window    WindowConfig    `json:"window"`
	Scheduler SchedulerConfig `json:"scheduler"`
	HTTP      HTTPConfig      `json:"http"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the event store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./slotter.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// WindowConfig controls the processing window: candidates are selected from
// the single calendar day OffsetDays ahead of "now", in Timezone.
type WindowConfig struct {
	OffsetDays int    `json:"offset_days,omitempty"` // default 7
	Timezone   string `json:"timezone,omitempty"`    // IANA name; default local
}

// SchedulerConfig controls the periodic trigger.
//
// Spec is a cron expression (5-field, or 6-field with seconds, or a
// descriptor like "@daily"). Default: "0 3 * * *".
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Spec     string `json:"spec,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// HTTPConfig controls the on-demand trigger surface.
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:8470"

	// RunRatePerMin bounds how often POST /run is accepted. 0 keeps the
	// default of 6 per minute.
	RunRatePerMin int `json:"run_rate_per_min,omitempty"`

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// DefaultOffsetDays is how far ahead the processing window sits when
// window.offset_days is omitted.
const DefaultOffsetDays = 7

// Validate checks cross-field constraints that the strict decoder cannot.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Window.OffsetDays < 0 {
		return fmt.Errorf("window.offset_days: must be >= 0")
	}
	if tz := strings.TrimSpace(c.Window.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("window.timezone: %w", err)
		}
	}
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}
	if c.HTTP.RunRatePerMin < 0 {
		return fmt.Errorf("http.run_rate_per_min: must be >= 0")
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	for _, f := range []struct{ path, raw string }{
		{"http.read_timeout", c.HTTP.ReadTimeout},
		{"http.write_timeout", c.HTTP.WriteTimeout},
		{"http.idle_timeout", c.HTTP.IdleTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}

// OffsetDaysOrDefault returns the configured window offset, defaulting to 7.
func (w WindowConfig) OffsetDaysOrDefault() int {
	if w.OffsetDays <= 0 {
		return DefaultOffsetDays
	}
	return w.OffsetDays
}

// Location resolves the window timezone, falling back to the local clock.
func (w WindowConfig) Location() *time.Location {
	tz := strings.TrimSpace(w.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}
