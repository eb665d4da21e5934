package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/sheets"
)

func TestMemoryStoreExportAndRead(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.ReadOverview(ctx, 1, 2026); !errors.Is(err, sheets.ErrNoExport) {
		t.Fatalf("expected ErrNoExport, got %v", err)
	}

	yo := core.BuildYearlyOverview(nil, []core.Expense{
		{Name: "Husleje", Category: "Bolig", Amount: core.Kroner(100), Frequency: core.Monthly},
	})
	ref, err := s.ExportOverview(ctx, sheets.OverviewExport{UserID: 1, Year: 2026, Overview: yo, GeneratedAt: time.Now()})
	if err != nil || ref != "mem:1:2026" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}
	// Re-exporting replaces the previous export.
	if _, err := s.ExportOverview(ctx, sheets.OverviewExport{UserID: 1, Year: 2026, Overview: yo}); err != nil {
		t.Fatalf("re-export: %v", err)
	}

	got, err := s.ReadOverview(ctx, 1, 2026)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.TotalExpenses != core.Kroner(1200) {
		t.Errorf("total expenses = %v, want 1200 kr", got.TotalExpenses)
	}
	if s.Writes() != 2 {
		t.Errorf("writes = %d, want 2", s.Writes())
	}
}

func TestMemoryStoreRejectsInvalidUser(t *testing.T) {
	s := New()
	if _, err := s.ExportOverview(context.Background(), sheets.OverviewExport{UserID: 0, Year: 2026}); err == nil {
		t.Fatal("expected error for user 0")
	}
}
