package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"budget/internal/core"
	ports "budget/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func sampleOverview() core.YearlyOverview {
	return core.BuildYearlyOverview(
		[]core.Income{
			{Person: "Person 1", Amount: core.Kroner(28000), Frequency: core.Monthly},
			{Person: "Bonus", Amount: core.Money{Cents: 1000050}, Frequency: core.SemiAnnual},
		},
		[]core.Expense{
			{Name: "Husleje", Category: "Bolig", Amount: core.Kroner(12000), Frequency: core.Monthly},
			{Name: "Vand", Category: "Forbrug", Amount: core.Money{Cents: 240075}, Frequency: core.Quarterly, Months: []int{2, 5, 8, 11}},
			{Name: "Bilforsikring", Category: "Transport", Amount: core.Kroner(6000), Frequency: core.Yearly, Months: []int{3}},
		},
	)
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	oldID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	defer os.Setenv("GOOGLE_SPREADSHEET_ID", oldID)
	os.Unsetenv("GOOGLE_SPREADSHEET_ID")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSheetNameAndQuoting(t *testing.T) {
	c, err := NewWithService(nil, Options{SpreadsheetID: "id"})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.SheetName(7, 2026); got != "Budget 7 2026" {
		t.Errorf("SheetName = %q", got)
	}
	c, _ = NewWithService(nil, Options{SpreadsheetID: "id", SheetPrefix: " Familie "})
	if got := c.SheetName(1, 2025); got != "Familie 1 2025" {
		t.Errorf("SheetName with prefix = %q", got)
	}
	if got := quoteSheet("Mor's 1 2026"); got != "'Mor''s 1 2026'" {
		t.Errorf("quoteSheet = %q", got)
	}
}

func TestExportWithoutServiceFails(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.ExportOverview(context.Background(), ports.OverviewExport{UserID: 1, Year: 2026}); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestParseOverviewRoundTrip(t *testing.T) {
	want := sampleOverview()

	got, err := parseOverview(toValues(ports.Rows(want)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Rows) != len(want.Rows) {
		t.Fatalf("rows = %d, want %d", len(got.Rows), len(want.Rows))
	}
	for i := range want.Rows {
		if got.Rows[i] != want.Rows[i] {
			t.Errorf("row %d = %+v, want %+v", i, got.Rows[i], want.Rows[i])
		}
	}
	if got.Income != want.Income || got.Expenses != want.Expenses || got.Balance != want.Balance {
		t.Errorf("monthly totals differ:\n got %+v\nwant %+v", got, want)
	}
	if got.TotalBalance != want.TotalBalance {
		t.Errorf("total balance = %v, want %v", got.TotalBalance, want.TotalBalance)
	}
}

func TestParseOverviewHeaderMismatch(t *testing.T) {
	values := [][]interface{}{{"Primary", "Secondary", "Jan", "Feb"}}
	_, err := parseOverview(values)
	if err == nil || !strings.Contains(err.Error(), "unexpected overview header") {
		t.Fatalf("expected header error, got %v", err)
	}
	if _, err := parseOverview(nil); !errors.Is(err, ports.ErrNoExport) {
		t.Fatalf("expected ErrNoExport for empty sheet, got %v", err)
	}
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		in    interface{}
		cents int64
		ok    bool
	}{
		{float64(12.5), 1250, true},
		{float64(-600), -60000, true},
		{nil, 0, true},
		{"", 0, true},
		{"1.234,50", 123450, true},
		{"-600,00", -60000, true},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseCell(tt.in)
		if ok != tt.ok || got.Cents != tt.cents {
			t.Errorf("parseCell(%v) = %d, %v; want %d, %v", tt.in, got.Cents, ok, tt.cents, tt.ok)
		}
	}
}

// fakeSheetsAPI answers the handful of Sheets endpoints the exporter uses.
type fakeSheetsAPI struct {
	mu      sync.Mutex
	gets    int
	adds    int
	clears  int
	updates []gsheet.ValueRange
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/v4/spreadsheets/sheet-id"):
		f.gets++
		w.Write([]byte(`{"spreadsheetId":"sheet-id","sheets":[{"properties":{"title":"Other"}}]}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		f.adds++
		w.Write([]byte(`{"spreadsheetId":"sheet-id","replies":[{}]}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.clears++
		w.Write([]byte(`{"spreadsheetId":"sheet-id"}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.updates = append(f.updates, vr)
		w.Write([]byte(`{"spreadsheetId":"sheet-id"}`))
	default:
		http.NotFound(w, r)
	}
}

func TestExportOverviewAgainstFakeAPI(t *testing.T) {
	api := &fakeSheetsAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	ctx := context.Background()
	svc, err := gsheet.NewService(ctx,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	c, err := NewWithService(svc, Options{SpreadsheetID: "sheet-id"})
	if err != nil {
		t.Fatal(err)
	}

	export := ports.OverviewExport{UserID: 3, Year: 2026, Overview: sampleOverview()}
	ref, err := c.ExportOverview(ctx, export)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if ref != "'Budget 3 2026'!A1:N7" {
		t.Errorf("ref = %q", ref)
	}
	if _, err := c.ExportOverview(ctx, export); err != nil {
		t.Fatalf("second export: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if api.gets != 1 || api.adds != 1 {
		t.Errorf("spreadsheet inspected %d times, %d tabs added; want 1 and 1", api.gets, api.adds)
	}
	if api.clears != 2 || len(api.updates) != 2 {
		t.Fatalf("clears=%d updates=%d, want 2 each", api.clears, len(api.updates))
	}
	first := api.updates[0].Values
	if len(first) != 7 || first[0][0] != "Kategori" || first[1][0] != "Bolig" {
		t.Errorf("unexpected values: %v", first)
	}
	if first[1][1] != float64(12000) {
		t.Errorf("Bolig January = %v, want 12000", first[1][1])
	}
}
