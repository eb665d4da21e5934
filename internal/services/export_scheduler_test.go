package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingExporter struct{ calls atomic.Int32 }

func (c *countingExporter) ExportAll(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, nil
}

func TestExportSchedulerLifecycle(t *testing.T) {
	exp := &countingExporter{}
	s := NewExportScheduler(exp, ExportSchedulerConfig{Interval: 10 * time.Millisecond, RunOnStart: true})
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("expected error when starting twice")
	}
	if !s.IsRunning() {
		t.Error("scheduler should be running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for exp.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if exp.calls.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", exp.calls.Load())
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should be stopped")
	}
	if s.Runs() < 3 {
		t.Errorf("runs = %d, want >= 3", s.Runs())
	}
	// Stopping twice is a no-op.
	if err := s.Stop(stopCtx); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestExportSchedulerDefaultInterval(t *testing.T) {
	s := NewExportScheduler(&countingExporter{}, ExportSchedulerConfig{})
	if s.config.Interval != time.Hour {
		t.Errorf("interval = %v, want 1h", s.config.Interval)
	}
}

// blockingExporter holds every run until release is closed.
type blockingExporter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingExporter) ExportAll(ctx context.Context) (int, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return 0, nil
}

func TestExportSchedulerStopAfterTimeout(t *testing.T) {
	exp := &blockingExporter{started: make(chan struct{}), release: make(chan struct{})}
	s := NewExportScheduler(exp, ExportSchedulerConfig{Interval: time.Hour, RunOnStart: true})
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-exp.started

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := s.Stop(short); err == nil {
		t.Fatal("expected timeout while an export is running")
	}
	if s.IsRunning() {
		t.Error("scheduler should report stopped once Stop was called")
	}

	// Further stops, concurrent or not, must not close the stop channel again.
	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			errs <- s.Stop(stopCtx)
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(exp.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("stop: %v", err)
		}
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	stopCtx, cancel2 := context.WithTimeout(ctx, time.Second)
	defer cancel2()
	if err := s.Stop(stopCtx); err != nil {
		t.Errorf("stop after restart: %v", err)
	}
}
