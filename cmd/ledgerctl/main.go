package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/username/stocktracker/src/cli"
	"github.com/username/stocktracker/src/config"
	"github.com/username/stocktracker/src/database"
	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/services"
)

var (
	ledgerSpec = flag.String("ledger", "", "ledger location overriding LEDGER_BACKEND/LEDGER_PATH, e.g. sqlite:ledger.db, dir:data/tx, memory")
	provider   = flag.String("provider", "", "price provider overriding PRICE_PROVIDER (yahoo, alphavantage, none)")
	logLevel   = flag.String("log", "warn", "log level written to stderr")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	app := &cli.App{Out: os.Stdout, Err: os.Stderr, Open: openServices}
	for _, c := range cli.Commands(app) {
		commander.Register(c, "")
	}

	flag.Parse()
	logger.InitTextLogger(os.Stderr, *logLevel)
	config.LoadConfig()
	os.Exit(int(commander.Execute(context.Background())))
}

func openServices(ctx context.Context) (*cli.Services, error) {
	cfg := config.Cfg
	backend, location := cfg.LedgerBackend, cfg.LedgerLocation()
	if *ledgerSpec != "" {
		backend, location = database.ParseSpec(*ledgerSpec)
	}
	store, err := database.OpenLedgerStore(ctx, backend, location, models.RecordDefaults{
		Currency:    cfg.DefaultCurrency,
		PortfolioID: cfg.DefaultPortfolioID,
	})
	if err != nil {
		return nil, err
	}

	providerName := cfg.PriceProvider
	if *provider != "" {
		providerName = *provider
	}
	prices, err := services.NewPriceProvider(providerName, services.ProviderOptions{
		Timeout:            cfg.ProviderTimeout,
		AlphaVantageAPIKey: cfg.AlphaVantageAPIKey,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	ledger := services.NewLedgerService(store, services.LedgerOptions{
		DefaultCurrency:    cfg.DefaultCurrency,
		DefaultPortfolioID: cfg.DefaultPortfolioID,
	})
	return &cli.Services{
		Ledger:          ledger,
		Portfolio:       services.NewPortfolioService(ledger, prices, cfg.HistoryWindowDays),
		Backups:         services.NewBackupService(ledger, cfg.BackupDir, cfg.MaxBackups),
		DefaultCurrency: cfg.DefaultCurrency,
		Close:           store.Close,
	}, nil
}
