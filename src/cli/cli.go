// Package cli implements the ledgerctl subcommands on top of the same services
// the HTTP server uses.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/services"
)

// Services is what a command needs once the ledger is open.
type Services struct {
	Ledger          services.LedgerService
	Portfolio       services.PortfolioService
	Backups         services.BackupService
	DefaultCurrency string
	Close           func() error
}

// App carries the output stream and the lazy service factory. Opening is
// deferred until a command runs so that global flags are already parsed.
type App struct {
	Out  io.Writer
	Err  io.Writer
	Open func(ctx context.Context) (*Services, error)
}

// Commands returns every ledgerctl subcommand bound to app.
func Commands(app *App) []subcommands.Command {
	return []subcommands.Command{
		&addCmd{app: app},
		&listCmd{app: app},
		&updateCmd{app: app},
		&deleteCmd{app: app},
		&holdingsCmd{app: app},
		&historyCmd{app: app},
		&importCmd{app: app},
		&exportCmd{app: app},
		&backupCmd{app: app},
	}
}

func (a *App) stderr() io.Writer {
	if a.Err != nil {
		return a.Err
	}
	return os.Stderr
}

func (a *App) errorf(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(a.stderr(), format+"\n", args...)
	return subcommands.ExitFailure
}

// run opens the services, hands them to fn and closes them afterwards.
func (a *App) run(ctx context.Context, fn func(*Services) subcommands.ExitStatus) subcommands.ExitStatus {
	svc, err := a.Open(ctx)
	if err != nil {
		return a.errorf("Error opening ledger: %v", err)
	}
	if svc.Close != nil {
		defer svc.Close()
	}
	return fn(svc)
}

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.Out, 0, 0, 2, ' ', 0)
}

// reportError prints a service error, listing every violation.
func (a *App) reportError(action string, err error) subcommands.ExitStatus {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintf(a.stderr(), "Error %s: validation failed\n", action)
		for _, v := range verr.Violations {
			fmt.Fprintf(a.stderr(), "  %s: %s\n", v.Field, v.Message)
		}
		return subcommands.ExitFailure
	}
	return a.errorf("Error %s: %v", action, err)
}

// FormatMoney renders amount in currency's notation, e.g. $1,234.50. Unknown
// codes fall back to "1234.50 XYZ".
func FormatMoney(amount float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return strconv.FormatFloat(amount, 'f', 2, 64) + " " + currency
	}
	units := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(units, currency).Display()
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// txFlags are the record fields shared by add and update.
type txFlags struct {
	date, symbol, currency, portfolio, notes, side string
	amount, price, commission                      string
}

func (t *txFlags) register(f *flag.FlagSet) {
	f.StringVar(&t.date, "date", "", "trade date YYYY-MM-DD (default today)")
	f.StringVar(&t.symbol, "symbol", "", "ticker symbol")
	f.StringVar(&t.amount, "amount", "", "number of shares, negative for a sell")
	f.StringVar(&t.price, "price", "", "price per share")
	f.StringVar(&t.commission, "commission", "", "commission paid")
	f.StringVar(&t.currency, "currency", "", "ISO 4217 currency code")
	f.StringVar(&t.portfolio, "portfolio", "", "portfolio id")
	f.StringVar(&t.notes, "notes", "", "free text notes")
	f.StringVar(&t.side, "side", "", "buy or sell; sell negates a positive amount")
}

// input builds a TransactionInput from the flags that were set on f.
func (t *txFlags) input(f *flag.FlagSet) models.TransactionInput {
	var in models.TransactionInput
	set := map[string]bool{}
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	str := func(name, v string) *string {
		if !set[name] {
			return nil
		}
		return &v
	}
	num := func(name, v string) *float64 {
		if !set[name] {
			return nil
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			in.Invalid(name, "must be a number")
			return nil
		}
		return &n
	}

	in.Date = str("date", t.date)
	in.Symbol = str("symbol", t.symbol)
	in.Amount = num("amount", t.amount)
	in.Price = num("price", t.price)
	in.Commission = num("commission", t.commission)
	in.Currency = str("currency", t.currency)
	in.PortfolioID = str("portfolio", t.portfolio)
	in.Notes = str("notes", t.notes)
	in.Side = t.side
	return in
}

func printTransaction(w io.Writer, tx models.Transaction) {
	fmt.Fprintf(w, "%s  %s  %s %s @ %s", tx.ID, tx.Date, tx.Symbol, formatQuantity(tx.Amount), FormatMoney(tx.Price, tx.Currency))
	if tx.Commission != 0 {
		fmt.Fprintf(w, " (commission %s)", FormatMoney(tx.Commission, tx.Currency))
	}
	fmt.Fprintf(w, "  [%s]", tx.PortfolioID)
	if tx.Notes != nil {
		fmt.Fprintf(w, "  %q", *tx.Notes)
	}
	fmt.Fprintln(w)
}
