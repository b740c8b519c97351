// Package app wires slotter's components together: config, logging, store,
// the resolution pipeline, and both triggers.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"slotter/internal/config"
	"slotter/internal/httpapi"
	"slotter/internal/resolver"
	"slotter/internal/scheduler"
	"slotter/internal/store"
	logx "slotter/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store  store.Store
	runner *resolver.Runner
	sched  *scheduler.Service
	http   *httpapi.Server // nil when disabled

	cfgCh  chan *config.Config
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	runner := resolver.NewRunner(st, resolver.Options{
		OffsetDays: cfg.Window.OffsetDaysOrDefault(),
		Location:   cfg.Window.Location(),
	}, log.With(logx.String("comp", "resolver")))

	sched := scheduler.New(scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Spec:     cfg.Scheduler.Spec,
		Timezone: cfg.Scheduler.Timezone,
	}, runner.Run, log.With(logx.String("comp", "scheduler")))

	// Reject hot-reloaded configs the scheduler could not start with.
	mgr.SetValidator(func(_ context.Context, c *config.Config) error {
		return sched.Validate(scheduler.Config{
			Enabled:  c.Scheduler.Enabled,
			Spec:     c.Scheduler.Spec,
			Timezone: c.Scheduler.Timezone,
		})
	})

	a := &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		store:  st,
		runner: runner,
		sched:  sched,
	}

	if cfg.HTTP.Enabled {
		readT, _ := config.ParseDurationOrDefault("http.read_timeout", cfg.HTTP.ReadTimeout, 10*time.Second)
		idleT, _ := config.ParseDurationOrDefault("http.idle_timeout", cfg.HTTP.IdleTimeout, time.Minute)
		// Write timeout defaults to 0 (disabled) so a slow /run still
		// delivers its report.
		writeT, _ := config.ParseDurationField("http.write_timeout", cfg.HTTP.WriteTimeout)
		a.http = httpapi.New(httpapi.Config{
			Addr:          cfg.HTTP.Addr,
			RunRatePerMin: cfg.HTTP.RunRatePerMin,
			ReadTimeout:   readT,
			WriteTimeout:  writeT,
			IdleTimeout:   idleT,
		}, runner.Run, runner.WindowFor, st, log.With(logx.String("comp", "http")))
	}

	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if err := a.sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if a.http != nil {
		a.http.Start()
	}

	// Watch the config file and re-apply logging + trigger settings.
	a.cfgCh = a.cfgMgr.Subscribe(1)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.cfgMgr.Watch(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.applyLoop(ctx)
	}()

	a.log.Info("slotter started")
	return nil
}

func (a *App) applyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-a.cfgCh:
			if !ok || cfg == nil {
				return
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			if err := a.sched.Apply(ctx, scheduler.Config{
				Enabled:  cfg.Scheduler.Enabled,
				Spec:     cfg.Scheduler.Spec,
				Timezone: cfg.Scheduler.Timezone,
			}); err != nil {
				a.log.Warn("scheduler config re-apply failed", logx.Err(err))
			}
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.http != nil {
		a.http.Stop(ctx)
	}
	a.sched.Stop(ctx)
	if a.cfgCh != nil {
		a.cfgMgr.Unsubscribe(a.cfgCh)
	}
	a.wg.Wait()
	err := a.store.Close()
	a.log.Info("slotter stopped")
	_ = a.logSvc.Close()
	return err
}

// RunOnce executes a single pipeline pass, for the -once CLI mode.
func (a *App) RunOnce(ctx context.Context) (*resolver.Report, error) {
	return a.runner.Run(ctx)
}
