// Package scheduler owns the periodic trigger: a cron-driven invocation of
// the resolution pipeline.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"slotter/internal/resolver"
	logx "slotter/pkg/logx"
)

type Config struct {
	Enabled  bool
	Spec     string // cron expression; "" uses DefaultSpec
	Timezone string // IANA name; "" uses the local clock
}

const DefaultSpec = "0 3 * * *"

// RunFunc is the pipeline entry point the trigger invokes.
type RunFunc func(ctx context.Context) (*resolver.Report, error)

type Service struct {
	log    logx.Logger
	run    RunFunc
	parser cron.Parser

	mu     sync.Mutex
	cfg    Config
	c      *cron.Cron
	runCtx context.Context
	cancel context.CancelFunc
}

func New(cfg Config, run RunFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		run: run,
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Validate checks that a config would start cleanly, without starting it.
func (s *Service) Validate(cfg Config) error {
	if _, err := s.parser.Parse(specOrDefault(cfg.Spec)); err != nil {
		return err
	}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.c != nil {
		return errors.New("scheduler: already started")
	}
	if !s.cfg.Enabled {
		s.log.Info("periodic trigger disabled")
		return nil
	}
	return s.startLocked(ctx)
}

func (s *Service) startLocked(ctx context.Context) error {
	spec := specOrDefault(s.cfg.Spec)
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return err
	}
	loc := s.loadLocationLocked()

	s.runCtx, s.cancel = context.WithCancel(ctx)
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	c.Schedule(sched, cron.FuncJob(s.tick))
	c.Start()
	s.c = c

	s.log.Info("periodic trigger started", logx.String("spec", spec), logx.String("tz", loc.String()))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
		s.log.Info("periodic trigger stopped")
	case <-ctx.Done():
		// stop continues in background
	}
}

// Apply swaps the trigger config at runtime (config hot reload). The cron is
// restarted only when the spec, timezone or enabled flag actually changed.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	changed := s.cfg.Enabled != cfg.Enabled ||
		specOrDefault(s.cfg.Spec) != specOrDefault(cfg.Spec) ||
		strings.TrimSpace(s.cfg.Timezone) != strings.TrimSpace(cfg.Timezone)
	s.cfg = cfg
	running := s.c != nil
	s.mu.Unlock()

	if !changed {
		return nil
	}
	if running {
		s.Stop(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !cfg.Enabled {
		s.log.Info("periodic trigger disabled")
		return nil
	}
	return s.startLocked(ctx)
}

func (s *Service) tick() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	rep, err := s.run(ctx)
	switch {
	case errors.Is(err, resolver.ErrRunInProgress):
		// Another trigger beat us to it; never proceed with a stale read.
		s.log.Warn("scheduled run skipped: already in progress")
	case err != nil:
		s.log.Error("scheduled run failed", logx.Err(err))
	default:
		for _, line := range rep.Lines {
			s.log.Info(line)
		}
	}
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid scheduler timezone; using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func specOrDefault(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return DefaultSpec
	}
	return spec
}
