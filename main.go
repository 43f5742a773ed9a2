package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/username/stocktracker/src/config"
	"github.com/username/stocktracker/src/database"
	"github.com/username/stocktracker/src/handlers"
	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.FromContext(r.Context()).Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(allowed []string) func(http.Handler) http.Handler {
	allowedOrigins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		allowedOrigins[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowedOrigins[origin] || allowedOrigins["*"] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-Requested-With, X-Request-ID, If-None-Match")
				w.Header().Set("Access-Control-Expose-Headers", "ETag, X-Request-ID, Content-Disposition")
			} else if origin == "" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			if r.Method == http.MethodOptions {
				logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Stock tracker server starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.L.Info("Opening ledger...", "backend", config.Cfg.LedgerBackend, "path", config.Cfg.LedgerPath)
	store, err := database.OpenLedgerStore(ctx, config.Cfg.LedgerBackend, config.Cfg.LedgerLocation(), models.RecordDefaults{
		Currency:    config.Cfg.DefaultCurrency,
		PortfolioID: config.Cfg.DefaultPortfolioID,
	})
	if err != nil {
		logger.L.Error("Failed to open ledger", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	logger.L.Info("Initializing services and handlers...", "priceProvider", config.Cfg.PriceProvider)
	prices, err := services.NewPriceProvider(config.Cfg.PriceProvider, services.ProviderOptions{
		Timeout:            config.Cfg.ProviderTimeout,
		AlphaVantageAPIKey: config.Cfg.AlphaVantageAPIKey,
	})
	if err != nil {
		logger.L.Error("Failed to configure price provider", "error", err)
		os.Exit(1)
	}
	ledger := services.NewLedgerService(store, services.LedgerOptions{
		DefaultCurrency:    config.Cfg.DefaultCurrency,
		DefaultPortfolioID: config.Cfg.DefaultPortfolioID,
	})
	portfolio := services.NewPortfolioService(ledger, prices, config.Cfg.HistoryWindowDays)
	tickers := services.NewTickerService("", config.Cfg.ProviderTimeout, config.Cfg.TickerCacheTTL)
	backups := services.NewBackupService(ledger, config.Cfg.BackupDir, config.Cfg.MaxBackups)

	if res, err := ledger.ListWithSkipped(ctx, models.TransactionFilter{}); err != nil {
		logger.L.Error("Ledger is unreadable", "error", err)
		os.Exit(1)
	} else if len(res.Skipped) > 0 {
		logger.L.Warn("Ledger contains corrupt records that will be ignored", "count", len(res.Skipped))
	}

	router := handlers.NewRouter(handlers.Handlers{
		Transactions: handlers.NewTransactionHandler(ledger),
		Portfolio:    handlers.NewPortfolioHandler(portfolio),
		Upload:       handlers.NewUploadHandler(ledger, config.Cfg.MaxUploadSizeBytes),
		Tickers:      handlers.NewTickerHandler(tickers),
		Backups:      handlers.NewBackupHandler(backups),
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := handlers.RequestLogger(enableCORS(config.Cfg.AllowedOrigins)(rateLimitMiddleware(router)))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: config.Cfg.ProviderTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.L.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("Graceful shutdown failed", "error", err)
		}
	}()

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	}
	logger.L.Info("Server stopped gracefully.")
}
