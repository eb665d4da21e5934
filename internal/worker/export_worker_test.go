package worker

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/sheets"
	"budget/internal/sheets/memory"
	"budget/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

type fixture struct {
	repo   *storage.SQLiteRepository
	budget *services.BudgetService
	store  *memory.Store
	worker *ExportWorker
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "budget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	budget := services.NewBudgetService(repo, nil, quietLogger(), services.Config{})
	store := memory.New()
	w := NewExportWorker(budget, repo, store, quietLogger(), 2)
	w.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return fixture{repo: repo, budget: budget, store: store, worker: w}
}

func (f fixture) user(t *testing.T, name string, monthlyRent int64) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := f.repo.CreateUser(ctx, name, "hash", "")
	require.NoError(t, err)
	_, err = f.budget.AddExpense(ctx, services.UserViewer(id), core.Expense{
		Name: "Husleje", Category: "Bolig", Amount: core.Kroner(monthlyRent), Frequency: core.Monthly,
	})
	require.NoError(t, err)
	return id
}

func TestHandleBudgetEventExportsFreshData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user(t, "alice", 1000)

	// Warm the cache, then write behind the service's back like another
	// process would.
	_, err := f.budget.YearlyOverview(ctx, services.UserViewer(id))
	require.NoError(t, err)
	_, err = f.repo.AddExpense(ctx, core.Expense{UserID: id, Name: "El", Category: "Forbrug", Amount: core.Kroner(500), Frequency: core.Monthly})
	require.NoError(t, err)

	require.NoError(t, f.worker.HandleBudgetEvent(ctx, amqp.NewBudgetEvent(amqp.EventExpenseCreated, id, 0)))

	export, ok := f.store.Export(id, 2026)
	require.True(t, ok)
	assert.Equal(t, core.Kroner(12*1500), export.Overview.TotalExpenses)
	assert.Len(t, export.Overview.Rows, 2)
}

func TestExportAll(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "alice", 1000)
	b := f.user(t, "bob", 2000)

	n, err := f.worker.ExportAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for id, rent := range map[int64]int64{a: 1000, b: 2000} {
		yo, err := f.store.ReadOverview(context.Background(), id, 2026)
		require.NoError(t, err)
		assert.Equal(t, core.Kroner(12*rent), yo.TotalExpenses)
	}
}

type failingExporter struct{ calls int }

func (e *failingExporter) ExportOverview(context.Context, sheets.OverviewExport) (string, error) {
	e.calls++
	return "", errors.New("quota exceeded")
}

func TestExportAllReportsFailures(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice", 1000)
	f.user(t, "bob", 2000)

	exp := &failingExporter{}
	w := NewExportWorker(f.budget, f.repo, exp, quietLogger(), 1)

	n, err := w.ExportAll(context.Background())
	assert.Equal(t, 0, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, 2, exp.calls)

	assert.Error(t, w.StartupExportCheck(context.Background()))
	assert.Error(t, w.HandleBudgetEvent(context.Background(), amqp.NewBudgetEvent(amqp.EventIncomeChanged, 1, 0)))
}
