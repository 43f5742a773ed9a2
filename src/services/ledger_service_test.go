package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/username/stocktracker/src/database"
	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/parsers"
)

func strPtr(s string) *string      { return &s }
func numPtr(f float64) *float64    { return &f }
func fixedClock() func() time.Time { return func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) } }

func newTestLedger(t *testing.T) (LedgerService, *database.MemoryStore) {
	t.Helper()
	store := database.NewMemoryStore()
	return NewLedgerService(store, LedgerOptions{DefaultCurrency: "USD", DefaultPortfolioID: "main", Now: fixedClock()}), store
}

func buyInput(symbol string, amount, price float64) models.TransactionInput {
	return models.TransactionInput{Symbol: strPtr(symbol), Amount: numPtr(amount), Price: numPtr(price)}
}

func TestLedgerAddAppliesDefaults(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	tx, err := ledger.Add(ctx, buyInput(" aapl ", 10, 150))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if tx.ID == "" {
		t.Error("Add() assigned no id")
	}
	if tx.Symbol != "AAPL" || tx.Currency != "USD" || tx.PortfolioID != "main" {
		t.Errorf("Add() = %+v, want normalized symbol and defaults", tx)
	}
	if tx.Date != models.NewDate(2024, time.March, 1) {
		t.Errorf("Date = %v, want 2024-03-01", tx.Date)
	}

	got, err := ledger.Get(ctx, tx.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != tx {
		t.Errorf("Get() = %+v, want %+v", got, tx)
	}
}

func TestLedgerAddReportsEveryViolation(t *testing.T) {
	store := database.NewMemoryStore()
	ledger := NewLedgerService(store, LedgerOptions{Now: fixedClock()})

	_, err := ledger.Add(context.Background(), models.TransactionInput{Amount: numPtr(0), Price: numPtr(-1)})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Add() error = %v, want ValidationError", err)
	}
	fields := map[string]bool{}
	for _, v := range verr.Violations {
		fields[v.Field] = true
	}
	for _, f := range []string{"symbol", "amount", "price", "currency", "portfolio_id"} {
		if !fields[f] {
			t.Errorf("missing violation for %s in %v", f, verr.Violations)
		}
	}
	res, _ := store.Load(context.Background())
	if len(res.Transactions) != 0 {
		t.Errorf("store has %d records after rejected add", len(res.Transactions))
	}
}

func TestLedgerAddRejectsDuplicateID(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	in := buyInput("VT", 1, 100)
	in.ID = strPtr("fixed")
	if _, err := ledger.Add(ctx, in); err != nil {
		t.Fatalf("first Add() error = %v", err)
	}
	if _, err := ledger.Add(ctx, in); !errors.Is(err, models.ErrValidationFailed) {
		t.Errorf("second Add() error = %v, want validation failure", err)
	}
}

func TestLedgerUpdate(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	tx, err := ledger.Add(ctx, buyInput("MSFT", 5, 300))
	if err != nil {
		t.Fatal(err)
	}

	updated, err := ledger.Update(ctx, tx.ID, models.TransactionInput{Price: numPtr(310), Notes: strPtr("adjusted")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Price != 310 || updated.Amount != 5 || updated.Notes == nil || *updated.Notes != "adjusted" {
		t.Errorf("Update() = %+v", updated)
	}
	if updated.Date != tx.Date {
		t.Errorf("Update() changed date to %v", updated.Date)
	}

	if _, err := ledger.Update(ctx, tx.ID, models.TransactionInput{ID: strPtr("other")}); !errors.Is(err, models.ErrValidationFailed) {
		t.Errorf("Update(id change) error = %v, want validation failure", err)
	}
	if _, err := ledger.Update(ctx, "missing", models.TransactionInput{}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestLedgerDelete(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	tx, err := ledger.Add(ctx, buyInput("VOO", 2, 400))
	if err != nil {
		t.Fatal(err)
	}
	if removed, err := ledger.Delete(ctx, tx.ID); err != nil || !removed {
		t.Fatalf("Delete() = %v, %v, want true, nil", removed, err)
	}
	if removed, err := ledger.Delete(ctx, tx.ID); err != nil || removed {
		t.Errorf("second Delete() = %v, %v, want false, nil", removed, err)
	}
}

func TestLedgerListFilterAndSort(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	for _, in := range []models.TransactionInput{
		{Symbol: strPtr("AAPL"), Amount: numPtr(1), Price: numPtr(1), Date: strPtr("2024-02-01")},
		{Symbol: strPtr("AAPL"), Amount: numPtr(1), Price: numPtr(1), Date: strPtr("2024-01-01")},
		{Symbol: strPtr("MSFT"), Amount: numPtr(1), Price: numPtr(1), Date: strPtr("2024-01-15"), PortfolioID: strPtr("ira")},
	} {
		if _, err := ledger.Add(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ledger.List(ctx, models.TransactionFilter{PortfolioID: "main", Sort: models.SortDateDesc})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Date.String() != "2024-02-01" || got[1].Date.String() != "2024-01-01" {
		t.Errorf("List(main, desc) = %+v", got)
	}

	got, err = ledger.List(ctx, models.TransactionFilter{Symbol: "msft"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].PortfolioID != "ira" {
		t.Errorf("List(msft) = %+v", got)
	}
}

func TestLedgerExportImportRoundTrip(t *testing.T) {
	for _, format := range []string{parsers.FormatCSV, parsers.FormatJSON} {
		t.Run(format, func(t *testing.T) {
			src, _ := newTestLedger(t)
			ctx := context.Background()
			notes := models.TransactionInput{Symbol: strPtr("AAPL"), Amount: numPtr(3), Price: numPtr(120.5), Commission: numPtr(1), Notes: strPtr("=SUM(A1)")}
			if _, err := src.Add(ctx, notes); err != nil {
				t.Fatal(err)
			}
			if _, err := src.Add(ctx, models.TransactionInput{Symbol: strPtr("AAPL"), Amount: numPtr(1), Price: numPtr(130), Side: "sell"}); err != nil {
				t.Fatal(err)
			}

			var buf bytes.Buffer
			n, err := src.Export(ctx, format, &buf, models.TransactionFilter{}, parsers.ExportOptions{SanitizeFormulas: true})
			if err != nil || n != 2 {
				t.Fatalf("Export() = %d, %v, want 2, nil", n, err)
			}

			dst, _ := newTestLedger(t)
			imported, err := dst.Import(ctx, format, &buf)
			if err != nil {
				t.Fatalf("Import() error = %v", err)
			}
			if len(imported) != 2 {
				t.Fatalf("Import() returned %d records, want 2", len(imported))
			}
			originals, _ := src.List(ctx, models.TransactionFilter{})
			ids := map[string]bool{}
			for _, o := range originals {
				ids[o.ID] = true
			}
			var sold bool
			for _, tx := range imported {
				if ids[tx.ID] {
					t.Errorf("imported record kept source id %s", tx.ID)
				}
				if tx.Amount == -1 {
					sold = true
				}
				if tx.Amount == 3 && (tx.Notes == nil || *tx.Notes != "=SUM(A1)") {
					t.Errorf("notes = %v, want =SUM(A1) restored", tx.Notes)
				}
			}
			if !sold {
				t.Errorf("sell lost in round trip: %+v", imported)
			}
		})
	}
}

func TestLedgerImportIsAllOrNothing(t *testing.T) {
	ledger, store := newTestLedger(t)
	csvData := "date,symbol,amount,price\n2024-01-02,AAPL,10,100\n2024-01-03,,5,abc\n"

	_, err := ledger.Import(context.Background(), parsers.FormatCSV, strings.NewReader(csvData))
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Import() error = %v, want ValidationError", err)
	}
	for _, v := range verr.Violations {
		if !strings.HasPrefix(v.Field, "row 2: ") {
			t.Errorf("violation %q not attributed to row 2", v.Field)
		}
	}
	res, _ := store.Load(context.Background())
	if len(res.Transactions) != 0 {
		t.Errorf("store has %d records after rejected import", len(res.Transactions))
	}
}

func TestLedgerImportErrors(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	if _, err := ledger.Import(ctx, "xlsx", strings.NewReader("")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Import(xlsx) error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := ledger.Import(ctx, parsers.FormatJSON, strings.NewReader("{oops")); !errors.Is(err, ErrParsingFailed) {
		t.Errorf("Import(bad json) error = %v, want ErrParsingFailed", err)
	}
}

func TestLedgerListReportsSkippedPerCall(t *testing.T) {
	dir := t.TempDir()
	store, err := database.NewDirStore(dir, models.RecordDefaults{})
	if err != nil {
		t.Fatal(err)
	}
	ledger := NewLedgerService(store, LedgerOptions{DefaultCurrency: "USD", DefaultPortfolioID: "main", Now: fixedClock()})
	ctx := context.Background()
	if _, err := ledger.Add(ctx, buyInput("AAPL", 1, 10)); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := ledger.ListWithSkipped(ctx, models.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListWithSkipped() error = %v", err)
	}
	if len(res.Transactions) != 1 || len(res.Skipped) != 1 {
		t.Fatalf("ListWithSkipped() = %d records / %d skipped, want 1 / 1", len(res.Transactions), len(res.Skipped))
	}

	if err := os.Remove(bad); err != nil {
		t.Fatal(err)
	}
	again, err := ledger.ListWithSkipped(ctx, models.TransactionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Skipped) != 0 {
		t.Errorf("second load skipped = %+v, want none", again.Skipped)
	}
	if len(res.Skipped) != 1 {
		t.Errorf("first result changed after a later load: %+v", res.Skipped)
	}
}
