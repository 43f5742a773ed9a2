package cli

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/username/stocktracker/src/database"
	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/services"
)

type offline struct{}

func (offline) LatestClose(ctx context.Context, symbol string) (float64, bool, error) {
	return 0, false, nil
}

func (offline) History(ctx context.Context, symbol string, start, end models.Date) ([]models.PricePoint, error) {
	return nil, nil
}

type harness struct {
	out, errOut bytes.Buffer
	ledger      services.LedgerService
	app         *App
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	h.ledger = services.NewLedgerService(database.NewMemoryStore(), services.LedgerOptions{DefaultCurrency: "USD", DefaultPortfolioID: "main"})
	backupDir := t.TempDir()
	h.app = &App{
		Out: &h.out,
		Err: &h.errOut,
		Open: func(ctx context.Context) (*Services, error) {
			return &Services{
				Ledger:          h.ledger,
				Portfolio:       services.NewPortfolioService(h.ledger, offline{}, 30),
				Backups:         services.NewBackupService(h.ledger, backupDir, 0),
				DefaultCurrency: "USD",
			}, nil
		},
	}
	return h
}

func (h *harness) run(t *testing.T, args ...string) subcommands.ExitStatus {
	t.Helper()
	h.out.Reset()
	h.errOut.Reset()
	fs := flag.NewFlagSet("ledgerctl", flag.ContinueOnError)
	commander := subcommands.NewCommander(fs, "ledgerctl")
	for _, c := range Commands(h.app) {
		commander.Register(c, "")
	}
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	return commander.Execute(context.Background())
}

func TestAddListDelete(t *testing.T) {
	h := newHarness(t)
	if st := h.run(t, "add", "-symbol", "aapl", "-amount", "10", "-price", "1234.5", "-date", "2024-01-02"); st != subcommands.ExitSuccess {
		t.Fatalf("add exit = %v, stderr %s", st, h.errOut.String())
	}
	if !strings.Contains(h.out.String(), "AAPL 10 @ $1,234.50") {
		t.Errorf("add output = %q", h.out.String())
	}

	txs, _ := h.ledger.List(context.Background(), models.TransactionFilter{})
	if len(txs) != 1 {
		t.Fatalf("ledger has %d records", len(txs))
	}
	id := txs[0].ID

	h.run(t, "list")
	if !strings.Contains(h.out.String(), id) {
		t.Errorf("list output = %q, want id %s", h.out.String(), id)
	}

	if st := h.run(t, "update", "-price", "1300", id); st != subcommands.ExitSuccess {
		t.Fatalf("update exit = %v, stderr %s", st, h.errOut.String())
	}
	if !strings.Contains(h.out.String(), "$1,300.00") {
		t.Errorf("update output = %q", h.out.String())
	}

	if st := h.run(t, "delete", id); st != subcommands.ExitSuccess {
		t.Errorf("delete exit = %v", st)
	}
	if st := h.run(t, "delete", id); st != subcommands.ExitFailure {
		t.Errorf("second delete exit = %v, want failure", st)
	}
}

func TestAddPrintsEveryViolation(t *testing.T) {
	h := newHarness(t)
	if st := h.run(t, "add", "-symbol", "AAPL", "-amount", "0", "-price", "abc"); st != subcommands.ExitFailure {
		t.Fatalf("exit = %v, want failure", st)
	}
	for _, want := range []string{"amount: must be non-zero", "price: must be a number"} {
		if !strings.Contains(h.errOut.String(), want) {
			t.Errorf("stderr %q missing %q", h.errOut.String(), want)
		}
	}
}

func TestHoldingsWithoutPrices(t *testing.T) {
	h := newHarness(t)
	h.run(t, "add", "-symbol", "VT", "-amount", "4", "-price", "100")
	if st := h.run(t, "holdings"); st != subcommands.ExitSuccess {
		t.Fatalf("holdings exit = %v", st)
	}
	out := h.out.String()
	if !strings.Contains(out, "VT") || !strings.Contains(out, "$100.00") || !strings.Contains(out, "n/a") {
		t.Errorf("holdings output = %q", out)
	}
}

func TestImportExportFiles(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(in, []byte("date,symbol,amount,price\n2024-01-02,AAPL,1,10\n2024-01-03,MSFT,2,20\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if st := h.run(t, "import", in); st != subcommands.ExitSuccess {
		t.Fatalf("import exit = %v, stderr %s", st, h.errOut.String())
	}
	if !strings.Contains(h.out.String(), "imported 2 transactions") {
		t.Errorf("import output = %q", h.out.String())
	}

	out := filepath.Join(dir, "out.json")
	if st := h.run(t, "export", "-format", "json", "-o", out); st != subcommands.ExitSuccess {
		t.Fatalf("export exit = %v, stderr %s", st, h.errOut.String())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"symbol": "MSFT"`) {
		t.Errorf("export file = %s", data)
	}

	if st := h.run(t, "backup"); st != subcommands.ExitSuccess {
		t.Fatalf("backup exit = %v, stderr %s", st, h.errOut.String())
	}
	h.run(t, "backup", "-list")
	if !strings.Contains(h.out.String(), "transactions-") {
		t.Errorf("backup -list output = %q", h.out.String())
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount   float64
		currency string
		want     string
	}{
		{1234.5, "USD", "$1,234.50"},
		{0.125, "USD", "$0.13"},
		{99.9, "XXQ", "99.90 XXQ"},
	}
	for _, tt := range tests {
		if got := FormatMoney(tt.amount, tt.currency); got != tt.want {
			t.Errorf("FormatMoney(%v, %s) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}
