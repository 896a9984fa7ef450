package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestIntervalSchedulerFiresUntilStopped(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(10 * time.Millisecond)
	fired := make(chan time.Time, 16)

	if err := s.Start(context.Background(), func(at time.Time) {
		select {
		case fired <- at:
		default:
		}
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, ok := s.NextRun(); !ok {
		t.Fatal("expected next run while started")
	}

	for i := 0; i < 2; i++ {
		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatalf("job did not fire (iteration %d)", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, ok := s.NextRun(); ok {
		t.Fatal("expected no next run after stop")
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestIntervalSchedulerStartIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour)
	job := func(time.Time) {}
	if err := s.Start(context.Background(), job); err != nil {
		t.Fatalf("start: %v", err)
	}
	first, _ := s.NextRun()
	if err := s.Start(context.Background(), job); err != nil {
		t.Fatalf("restart: %v", err)
	}
	second, _ := s.NextRun()
	if !first.Equal(second) {
		t.Fatalf("second start rescheduled: %s vs %s", first, second)
	}
	if until := time.Until(first); until < 59*time.Minute {
		t.Fatalf("first run should be one interval away, got %s", until)
	}
	_ = s.Stop(context.Background())
}

func TestIntervalSchedulerRejectsNonPositiveInterval(t *testing.T) {
	t.Parallel()

	if err := NewIntervalScheduler(0).Start(context.Background(), func(time.Time) {}); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if err := NewIntervalScheduler(0).Start(context.Background(), nil); err != nil {
		t.Fatalf("nil job should be ignored, got %v", err)
	}
}

func TestIntervalSchedulerStopsWithContext(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx, func(time.Time) {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.NextRun(); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("scheduler kept running after context cancel")
}
