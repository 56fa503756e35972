package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "restockbot/pkg/logx"
)

func TestNewRejectsBadSpec(t *testing.T) {
	t.Parallel()
	if _, err := New("not a cron spec", 0, func(context.Context) error { return nil }, logx.Nop()); err == nil {
		t.Fatal("bad spec should fail at construction")
	}
}

func TestNewAcceptsCommonSpecs(t *testing.T) {
	t.Parallel()
	for _, spec := range []string{"@every 10s", "@every 1m", "*/5 * * * *", "*/10 * * * * *"} {
		if _, err := New(spec, time.Second, func(context.Context) error { return nil }, logx.Nop()); err != nil {
			t.Fatalf("spec %q rejected: %v", spec, err)
		}
	}
}

func TestSchedulerRunsJob(t *testing.T) {
	t.Parallel()
	var runs atomic.Int32
	// cron rounds @every below one second up to 1s; this ticks every second.
	s, err := New("@every 1s", time.Second, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.After(5 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("runs = %d, want >= 2", runs.Load())
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestSchedulerTimeoutBoundsRun(t *testing.T) {
	t.Parallel()
	timedOut := make(chan struct{}, 1)
	s, err := New("@every 1s", 20*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			select {
			case timedOut <- struct{}{}:
			default:
			}
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("run was not bounded")
		}
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	select {
	case <-timedOut:
	case <-time.After(5 * time.Second):
		t.Fatal("per-run timeout never fired")
	}
}

func TestStopPreventsFurtherRuns(t *testing.T) {
	t.Parallel()
	var runs atomic.Int32
	s, err := New("@every 1s", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	s.Stop()

	after := runs.Load()
	time.Sleep(1200 * time.Millisecond)
	if runs.Load() != after {
		t.Fatalf("job ran after Stop: %d -> %d", after, runs.Load())
	}
}
