package handlers

import (
	"net/http"

	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/utils"
)

// Handlers groups everything the router serves.
type Handlers struct {
	Transactions *TransactionHandler
	Portfolio    *PortfolioHandler
	Upload       *UploadHandler
	Tickers      *TickerHandler
	Backups      *BackupHandler
}

// NewRouter registers the API routes plus the legacy paths served by the old
// front end (/portfolio_values, /search_ticker, /add_transaction, /submit,
// /transactions).
func NewRouter(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/transactions", h.Transactions.HandleListTransactions)
	mux.HandleFunc("POST /api/transactions", h.Transactions.HandleAddTransaction)
	mux.HandleFunc("GET /api/transactions/export", h.Upload.HandleExport)
	mux.HandleFunc("POST /api/transactions/import", h.Upload.HandleImport)
	mux.HandleFunc("GET /api/transactions/{id}", h.Transactions.HandleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", h.Transactions.HandleUpdateTransaction)
	mux.HandleFunc("PATCH /api/transactions/{id}", h.Transactions.HandleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", h.Transactions.HandleDeleteTransaction)

	mux.HandleFunc("GET /api/holdings", h.Portfolio.HandleGetHoldings)
	mux.HandleFunc("GET /api/portfolio/history", h.Portfolio.HandleGetHistory)
	mux.HandleFunc("GET /api/tickers/search", h.Tickers.HandleSearch)
	mux.HandleFunc("POST /api/backups", h.Backups.HandleCreateBackup)
	mux.HandleFunc("GET /api/backups", h.Backups.HandleListBackups)

	mux.HandleFunc("GET /portfolio_values", h.Portfolio.HandleGetHistory)
	mux.HandleFunc("GET /search_ticker", h.Tickers.HandleSearch)
	mux.HandleFunc("POST /add_transaction", h.Transactions.HandleAddTransaction)
	mux.HandleFunc("POST /submit", h.Transactions.HandleAddTransaction)
	mux.HandleFunc("GET /transactions", h.Transactions.HandleListTransactions)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Stock tracker backend is running"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Warn("Path not found", "method", r.Method, "path", r.URL.Path)
		utils.SendJSONError(w, "not found", http.StatusNotFound)
	})
	return mux
}
