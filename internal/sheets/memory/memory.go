// Package memory keeps exported overviews in process memory. It backs
// development setups and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"budget/internal/core"
	"budget/internal/sheets"
)

var (
	_ sheets.OverviewExporter = (*Store)(nil)
	_ sheets.OverviewReader   = (*Store)(nil)
)

type key struct {
	userID int64
	year   int
}

type Store struct {
	mu      sync.Mutex
	exports map[key]sheets.OverviewExport
	writes  int
}

func New() *Store {
	return &Store{exports: make(map[key]sheets.OverviewExport)}
}

// ExportOverview stores the export and returns a synthetic reference.
func (s *Store) ExportOverview(_ context.Context, e sheets.OverviewExport) (string, error) {
	if e.UserID <= 0 {
		return "", fmt.Errorf("invalid user id: %d", e.UserID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports[key{e.UserID, e.Year}] = e
	s.writes++
	return fmt.Sprintf("mem:%d:%d", e.UserID, e.Year), nil
}

func (s *Store) ReadOverview(_ context.Context, userID int64, year int) (core.YearlyOverview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exports[key{userID, year}]
	if !ok {
		return core.YearlyOverview{}, sheets.ErrNoExport
	}
	return e.Overview, nil
}

// Export returns the stored export for userID and year.
func (s *Store) Export(userID int64, year int) (sheets.OverviewExport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exports[key{userID, year}]
	return e, ok
}

// Writes counts ExportOverview calls, replacements included.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
