package sheets

import (
	"context"
	"errors"
	"time"

	"budget/internal/core"
)

var ErrNoExport = errors.New("no export found")

// OverviewExport is one user's yearly overview as handed to an exporter.
type OverviewExport struct {
	UserID      int64
	Year        int
	Overview    core.YearlyOverview
	GeneratedAt time.Time
}

// Ports for outbound adapters.
type (
	OverviewExporter interface {
		// ExportOverview writes the overview, replacing any earlier export
		// for the same user and year, and returns a reference to it.
		ExportOverview(ctx context.Context, export OverviewExport) (ref string, err error)
	}

	OverviewReader interface {
		// ReadOverview loads a previous export back. Only the category rows,
		// monthly income and monthly expenses are restored.
		ReadOverview(ctx context.Context, userID int64, year int) (core.YearlyOverview, error)
	}
)
