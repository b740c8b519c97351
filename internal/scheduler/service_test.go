package scheduler

import (
	"context"
	"testing"

	"slotter/internal/resolver"
	logx "slotter/pkg/logx"
)

func noopRun(context.Context) (*resolver.Report, error) { return &resolver.Report{}, nil }

func TestValidateSpecs(t *testing.T) {
	s := New(Config{}, noopRun, logx.Nop())
	cases := []struct {
		spec string
		ok   bool
	}{
		{"", true}, // falls back to DefaultSpec
		{"0 3 * * *", true},
		{"30 0 3 * * *", true}, // with seconds
		{"@daily", true},
		{"not a cron spec", false},
		{"61 * * * *", false},
	}
	for _, tc := range cases {
		err := s.Validate(Config{Spec: tc.spec})
		if tc.ok && err != nil {
			t.Fatalf("spec %q: unexpected error %v", tc.spec, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("spec %q: expected error", tc.spec)
		}
	}
	if err := s.Validate(Config{Timezone: "Mars/Olympus"}); err == nil {
		t.Fatalf("bad timezone should fail validation")
	}
}

func TestStartDisabledAndStop(t *testing.T) {
	s := New(Config{Enabled: false}, noopRun, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start (disabled): %v", err)
	}
	s.Stop(context.Background())
}

func TestStartStopAndReapply(t *testing.T) {
	ctx := context.Background()
	s := New(Config{Enabled: true, Spec: "@daily", Timezone: "UTC"}, noopRun, logx.Nop())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Fatalf("double Start should fail")
	}
	// Unchanged config is a no-op.
	if err := s.Apply(ctx, Config{Enabled: true, Spec: "@daily", Timezone: "UTC"}); err != nil {
		t.Fatalf("Apply (unchanged): %v", err)
	}
	// Changed spec restarts the cron.
	if err := s.Apply(ctx, Config{Enabled: true, Spec: "0 4 * * *", Timezone: "UTC"}); err != nil {
		t.Fatalf("Apply (respec): %v", err)
	}
	// Disabling stops it.
	if err := s.Apply(ctx, Config{Enabled: false}); err != nil {
		t.Fatalf("Apply (disable): %v", err)
	}
	s.Stop(ctx)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(Config{Enabled: true, Spec: "nope"}, noopRun, logx.Nop())
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
}
