// Package httpapi exposes the on-demand trigger and event inspection over
// HTTP. It shares the pipeline entry point with the cron trigger, so both
// produce the same report shape.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"slotter/internal/resolver"
	"slotter/internal/store"
	logx "slotter/pkg/logx"
)

type Config struct {
	Addr          string
	RunRatePerMin int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

const (
	defaultAddr          = "127.0.0.1:8470"
	defaultRunRatePerMin = 6
)

// RunFunc is the shared pipeline entry point.
type RunFunc func(ctx context.Context) (*resolver.Report, error)

// WindowFunc returns the processing window offsetDays ahead, for event
// listings; a negative offset means the configured default.
type WindowFunc func(offsetDays int) resolver.Window

type Server struct {
	cfg    Config
	run    RunFunc
	window WindowFunc
	store  store.Store
	log    logx.Logger

	// limiter bounds POST /run so a misbehaving client can't hammer the
	// lottery; each accepted request still serializes on the runner guard.
	limiter *rate.Limiter

	srv *http.Server
}

func New(cfg Config, run RunFunc, window WindowFunc, st store.Store, log logx.Logger) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.RunRatePerMin <= 0 {
		cfg.RunRatePerMin = defaultRunRatePerMin
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	perMin := rate.Limit(float64(cfg.RunRatePerMin) / 60.0)
	s := &Server{
		cfg:     cfg,
		run:     run,
		window:  window,
		store:   st,
		log:     log,
		limiter: rate.NewLimiter(perMin, cfg.RunRatePerMin),
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/run", s.handleRun).Methods(http.MethodPost)
	r.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	r.HandleFunc("/events", s.handleCreateEvent).Methods(http.MethodPost)

	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r)
	h = handlers.LoggingHandler(logx.Stdout(), h)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) Start() {
	go func() {
		s.log.Info("http listening", logx.String("addr", s.cfg.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", logx.Err(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown", logx.Err(err))
	}
}
