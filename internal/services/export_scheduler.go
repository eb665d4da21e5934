package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// BulkExporter exports every user's overview.
type BulkExporter interface {
	ExportAll(ctx context.Context) (int, error)
}

// ExportSchedulerConfig holds configuration for the export scheduler
type ExportSchedulerConfig struct {
	// Interval between full exports (default: 1h)
	Interval time.Duration

	// RunOnStart triggers an export right after Start
	RunOnStart bool
}

func DefaultExportSchedulerConfig() ExportSchedulerConfig {
	return ExportSchedulerConfig{Interval: time.Hour, RunOnStart: true}
}

// ExportScheduler periodically re-exports all overviews. It is the backup
// for events lost while the broker or the worker was down.
type ExportScheduler struct {
	exporter BulkExporter
	config   ExportSchedulerConfig

	mu      sync.Mutex
	running bool
	runs    int
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportScheduler(exporter BulkExporter, config ExportSchedulerConfig) *ExportScheduler {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	return &ExportScheduler{exporter: exporter, config: config}
}

// Start begins the loop. Returns an error if already running.
func (s *ExportScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("export scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stop, done := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stop, done)

	slog.InfoContext(ctx, "Export scheduler started", "interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish. Only the
// first of several concurrent calls closes the stop channel; every caller
// waits for the same loop.
func (s *ExportScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return nil
	}
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	done := s.doneCh
	s.mu.Unlock()

	select {
	case <-done:
		slog.InfoContext(ctx, "Export scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	if s.doneCh == done {
		s.stopCh, s.doneCh = nil, nil
	}
	s.mu.Unlock()
	return nil
}

func (s *ExportScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Runs reports how many export rounds have completed.
func (s *ExportScheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *ExportScheduler) runLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.runOnce(ctx)
	}

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *ExportScheduler) runOnce(ctx context.Context) {
	start := time.Now()
	n, err := s.exporter.ExportAll(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Scheduled export finished with errors", "exported", n, "error", err)
	} else {
		slog.InfoContext(ctx, "Scheduled export completed", "exported", n, "duration", time.Since(start))
	}
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
}
