// Package worker turns budget events into spreadsheet exports.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/sheets"
	"budget/internal/storage"

	"golang.org/x/sync/errgroup"
)

// OverviewSource computes a user's yearly overview.
type OverviewSource interface {
	YearlyOverview(ctx context.Context, v services.Viewer) (core.YearlyOverview, error)
	Invalidate(userID int64)
}

type UserLister interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

var (
	_ OverviewSource = (*services.BudgetService)(nil)
	_ UserLister     = (*storage.SQLiteRepository)(nil)
)

// ExportWorker exports yearly overviews whenever a budget changes.
type ExportWorker struct {
	source      OverviewSource
	users       UserLister
	exporter    sheets.OverviewExporter
	concurrency int
	now         func() time.Time
	logger      *applog.Logger
}

func NewExportWorker(source OverviewSource, users UserLister, exporter sheets.OverviewExporter, logger *applog.Logger, concurrency int) *ExportWorker {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ExportWorker{
		source:      source,
		users:       users,
		exporter:    exporter,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger.WithComponent(applog.ComponentExport),
	}
}

// HandleBudgetEvent processes a single budget event from AMQP. The local
// cache is dropped first since the write happened in another process.
func (w *ExportWorker) HandleBudgetEvent(ctx context.Context, evt *amqp.BudgetEvent) error {
	w.logger.InfoContext(ctx, "Processing budget event",
		applog.FieldEventID, evt.ID,
		"type", evt.Type,
		applog.FieldUserID, evt.UserID)

	w.source.Invalidate(evt.UserID)
	if _, err := w.ExportUser(ctx, evt.UserID); err != nil {
		return fmt.Errorf("export user %d: %w", evt.UserID, err)
	}
	return nil
}

// ExportUser rebuilds and exports the current year's overview for userID.
func (w *ExportWorker) ExportUser(ctx context.Context, userID int64) (string, error) {
	yo, err := w.source.YearlyOverview(ctx, services.UserViewer(userID))
	if err != nil {
		return "", fmt.Errorf("build overview: %w", err)
	}
	now := w.now()
	ref, err := w.exporter.ExportOverview(ctx, sheets.OverviewExport{
		UserID:      userID,
		Year:        now.Year(),
		Overview:    yo,
		GeneratedAt: now,
	})
	if err != nil {
		return "", err
	}

	w.logger.InfoContext(ctx, "Successfully exported overview",
		applog.FieldUserID, userID,
		applog.FieldYear, now.Year(),
		"sheets_ref", ref,
		applog.FieldAmountCents, yo.TotalExpenses.Cents)
	return ref, nil
}

// ExportAll exports every user. Failures for one user do not stop the
// others; it returns how many succeeded and the joined errors.
func (w *ExportWorker) ExportAll(ctx context.Context) (int, error) {
	ids, err := w.users.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	var (
		mu   sync.Mutex
		ok   int
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			w.source.Invalidate(id)
			_, err := w.ExportUser(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("user %d: %w", id, err))
				return nil
			}
			ok++
			return nil
		})
	}
	_ = g.Wait()
	return ok, errors.Join(errs...)
}

// StartupExportCheck exports everything once when the worker starts, to
// recover from events missed while it was down.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	ok, err := w.ExportAll(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "Startup export finished with errors",
			"exported", ok,
			applog.FieldError, err)
		return err
	}
	w.logger.InfoContext(ctx, "Startup export completed", "exported", ok)
	return nil
}
