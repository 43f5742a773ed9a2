package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"
	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/parsers"
	"github.com/username/stocktracker/src/utils"
)

type addCmd struct {
	app *App
	txFlags
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a buy or sell" }
func (*addCmd) Usage() string {
	return `ledgerctl add -symbol <ticker> -amount <n> -price <p> [-date YYYY-MM-DD] [-side sell] [-notes ...]

  Adds a transaction to the ledger. Currency and portfolio default to the configured values.
`
}
func (c *addCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	input := c.input(f)
	return c.app.run(ctx, func(s *Services) subcommands.ExitStatus {
		tx, err := s.Ledger.Add(ctx, input)
		if err != nil {
			return c.app.reportError("adding transaction", err)
		}
		printTransaction(c.app.Out, tx)
		return subcommands.ExitSuccess
	})
}

type listCmd struct {
	app       *App
	portfolio string
	symbol    string
	desc      bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list ledger transactions by date" }
func (*listCmd) Usage() string {
	return `ledgerctl list [-portfolio <id>] [-symbol <ticker>] [-desc]
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "portfolio", "", "only this portfolio")
	f.StringVar(&c.symbol, "symbol", "", "only this symbol")
	f.BoolVar(&c.desc, "desc", false, "newest first")
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter := models.TransactionFilter{PortfolioID: c.portfolio, Symbol: c.symbol, Sort: models.SortDateAsc}
	if c.desc {
		filter.Sort = models.SortDateDesc
	}
	return c.app.run(ctx, func(s *Services) subcommands.ExitStatus {
		res, err := s.Ledger.ListWithSkipped(ctx, filter)
		if err != nil {
			return c.app.reportError("listing transactions", err)
		}
		for _, tx := range res.Transactions {
			printTransaction(c.app.Out, tx)
		}
		for _, skipped := range res.Skipped {
			fmt.Fprintf(c.app.stderr(), "warning: skipped corrupt record %s: %v\n", skipped.Source, skipped.Err)
		}
		return subcommands.ExitSuccess
	})
}

type updateCmd struct {
	app *App
	txFlags
}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "change fields of a transaction" }
func (*updateCmd) Usage() string {
	return `ledgerctl update [field flags] <id>

  Only the flags given are changed; the id itself cannot be changed.
`
}
func (c *updateCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *updateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(c.app.stderr(), c.Usage())
		return subcommands.ExitUsageError
	}
	patch := c.input(f)
	return c.app.run(ctx, func(s *Services) subcommands.ExitStatus {
		tx, err := s.Ledger.Update(ctx, f.Arg(0), patch)
		if err != nil {
			return c.app.reportError("updating transaction", err)
		}
		printTransaction(c.app.Out, tx)
		return subcommands.ExitSuccess
	})
}

type deleteCmd struct {
	app *App
}

func (*deleteCmd) Name() string             { return "delete" }
func (*deleteCmd) Synopsis() string         { return "remove transactions by id" }
func (*deleteCmd) Usage() string            { return "ledgerctl delete <id>...\n" }
func (*deleteCmd) SetFlags(f *flag.FlagSet) {}

func (c *deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprint(c.app.stderr(), c.Usage())
		return subcommands.ExitUsageError
	}
	return c.app.run(ctx, func(s *Services) subcommands.ExitStatus {
		status := subcommands.ExitSuccess
		for _, id := range f.Args() {
			removed, err := s.Ledger.Delete(ctx, id)
			switch {
			case err != nil:
				return c.app.reportError("deleting transaction", err)
			case !removed:
				fmt.Fprintf(c.app.stderr(), "%s: not found\n", id)
				status = subcommands.ExitFailure
			default:
				fmt.Fprintf(c.app.Out, "deleted %s\n", id)
			}
		}
		return status
	})
}

type holdingsCmd struct {
	app       *App
	portfolio string
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "show current positions valued at the latest close" }
func (*holdingsCmd) Usage() string {
	return `ledgerctl holdings [-portfolio <id>]
`
}
func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "portfolio", "", "only this portfolio")
}

func (c *holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(s *Services) subcommands.ExitStatus {
		holdings, err := s.Portfolio.GetHoldings(ctx, c.portfolio)
		if err != nil {
			return c.app.reportError("computing holdings", err)
		}
		cur := s.DefaultCurrency
		tw := c.app.table()
		fmt.Fprintln(tw, "SYMBOL\tAMOUNT\tAVG COST\tPRICE\tVALUE\tGAIN %\t")
		for _, h := range holdings {
			price, value, gain := "n/a", "n/a", "n/a"
			if h.PriceStatus == models.PriceStatusOK {
				price = FormatMoney(h.CurrentPrice, cur)
				value = FormatMoney(h.TotalValue, cur)
				gain = fmt.Sprintf("%.2f", utils.PercentChange(h.CostBasis, h.TotalValue))
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n", h.Symbol, formatQuantity(h.Amount), FormatMoney(h.AverageCost, cur), price, value, gain)
		}
		return flushTable(c.app, tw)
	})
}

type historyCmd struct {
	app       *App
	portfolio string
	days      int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "show daily portfolio value against amount invested" }
func (*historyCmd) Usage() string {
	return `ledgerctl history [-days N] [-portfolio <id>]
`
}
func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "portfolio", "", "only this portfolio")
	f.IntVar(&c.days, "days", 0, "window in days (default from HISTORY_WINDOW_DAYS)")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(s *Services) subcommands.ExitStatus {
		points, err := s.Portfolio.GetHistory(ctx, c.portfolio, c.days)
		if err != nil {
			return c.app.reportError("computing history", err)
		}
		tw := c.app.table()
		fmt.Fprintln(tw, "DATE\tVALUE\tINVESTED\t")
		for _, p := range points {
			fmt.Fprintf(tw, "%s\t%s\t%s\t\n", p.Date, FormatMoney(p.Value, s.DefaultCurrency), FormatMoney(p.CostBasis, s.DefaultCurrency))
		}
		return flushTable(c.app, tw)
	})
}

type importCmd struct {
	app    *App
	format string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "add every record of a CSV or JSON file" }
func (*importCmd) Usage() string {
	return `ledgerctl import [-format csv|json|ibkr] <file>

  Every row is validated first; nothing is written if any row is invalid.
  Ids in the file are replaced with new ones.
`
}
func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.format, "format", "", "csv, json or ibkr (default from the file extension)")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(c.app.stderr(), c.Usage())
		return subcommands.ExitUsageError
	}
	path := f.Arg(0)
	format := c.format
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	file, err := os.Open(path)
	if err != nil {
		return c.app.errorf("Error opening %s: %v", path, err)
	}
	defer file.Close()

	return c.app.run(ctx, func(s *Services) subcommands.ExitStatus {
		txs, err := s.Ledger.Import(ctx, format, file)
		if err != nil {
			return c.app.reportError("importing "+path, err)
		}
		fmt.Fprintf(c.app.Out, "imported %d transactions\n", len(txs))
		return subcommands.ExitSuccess
	})
}

type exportCmd struct {
	app       *App
	format    string
	output    string
	portfolio string
	sanitize  bool
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the ledger as CSV or JSON" }
func (*exportCmd) Usage() string {
	return `ledgerctl export [-format csv|json] [-o file] [-portfolio <id>] [-sanitize]
`
}
func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.format, "format", parsers.FormatCSV, "csv or json")
	f.StringVar(&c.output, "o", "", "output file (default stdout)")
	f.StringVar(&c.portfolio, "portfolio", "", "only this portfolio")
	f.BoolVar(&c.sanitize, "sanitize", false, "prefix spreadsheet formulas in CSV text cells with '")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(s *Services) subcommands.ExitStatus {
		out := c.app.Out
		if c.output != "" {
			file, err := os.Create(c.output)
			if err != nil {
				return c.app.errorf("Error creating %s: %v", c.output, err)
			}
			defer file.Close()
			out = file
		}
		n, err := s.Ledger.Export(ctx, c.format, out, models.TransactionFilter{PortfolioID: c.portfolio}, parsers.ExportOptions{SanitizeFormulas: c.sanitize})
		if err != nil {
			return c.app.reportError("exporting", err)
		}
		if c.output != "" {
			fmt.Fprintf(c.app.Out, "exported %d transactions to %s\n", n, c.output)
		}
		return subcommands.ExitSuccess
	})
}

type backupCmd struct {
	app  *App
	list bool
}

func (*backupCmd) Name() string     { return "backup" }
func (*backupCmd) Synopsis() string { return "snapshot the ledger, or list snapshots" }
func (*backupCmd) Usage() string {
	return `ledgerctl backup [-list]
`
}
func (c *backupCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "list", false, "list existing snapshots instead of creating one")
}

func (c *backupCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func(s *Services) subcommands.ExitStatus {
		if c.list {
			backups, err := s.Backups.List()
			if err != nil {
				return c.app.reportError("listing backups", err)
			}
			tw := c.app.table()
			fmt.Fprintln(tw, "CREATED\tSIZE\tPATH\t")
			for _, b := range backups {
				fmt.Fprintf(tw, "%s\t%d\t%s\t\n", b.Created, b.Size, b.Path)
			}
			return flushTable(c.app, tw)
		}
		info, err := s.Backups.Create(ctx)
		if err != nil {
			return c.app.reportError("creating backup", err)
		}
		fmt.Fprintf(c.app.Out, "backed up %d transactions to %s\n", info.Records, info.Path)
		return subcommands.ExitSuccess
	})
}

func flushTable(app *App, tw interface{ Flush() error }) subcommands.ExitStatus {
	if err := tw.Flush(); err != nil {
		return app.errorf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}
