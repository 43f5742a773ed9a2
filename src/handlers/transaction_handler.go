package handlers

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/services"
	"github.com/username/stocktracker/src/utils"
)

const maxTransactionBodyBytes = 1 << 20

type TransactionHandler struct {
	ledger services.LedgerService
}

func NewTransactionHandler(ledger services.LedgerService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

type transactionListResponse struct {
	Transactions []models.Transaction `json:"transactions"`
	Skipped      []models.RecordError `json:"skipped,omitempty"`
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.TransactionFilter{
		PortfolioID: q.Get("portfolio_id"),
		Symbol:      q.Get("symbol"),
		Sort:        q.Get("sort"),
	}
	switch filter.Sort {
	case "", models.SortDateAsc, models.SortDateDesc:
	default:
		utils.SendJSONError(w, fmt.Sprintf("sort must be %s or %s", models.SortDateAsc, models.SortDateDesc), http.StatusBadRequest)
		return
	}

	res, err := h.ledger.ListWithSkipped(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err, "list transactions")
		return
	}
	utils.WriteJSON(w, http.StatusOK, transactionListResponse{Transactions: res.Transactions, Skipped: res.Skipped})
}

func (h *TransactionHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.ledger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "get transaction")
		return
	}
	utils.WriteJSON(w, http.StatusOK, tx)
}

// HandleAddTransaction accepts a JSON object or an HTML form post.
func (h *TransactionHandler) HandleAddTransaction(w http.ResponseWriter, r *http.Request) {
	input, err := decodeTransactionInput(w, r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	tx, err := h.ledger.Add(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err, "add transaction")
		return
	}
	w.Header().Set("Location", "/api/transactions/"+tx.ID)
	utils.WriteJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeTransactionInput(w, r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	tx, err := h.ledger.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, r, err, "update transaction")
		return
	}
	utils.WriteJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, err := h.ledger.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "delete transaction")
		return
	}
	if !removed {
		logger.FromContext(r.Context()).Debug("Delete of unknown transaction", "id", id)
		utils.SendJSONError(w, models.ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeTransactionInput(w http.ResponseWriter, r *http.Request) (models.TransactionInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTransactionBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var input models.TransactionInput
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxTransactionBodyBytes); err != nil && err != http.ErrNotMultipart {
			return input, fmt.Errorf("invalid form body: %w", err)
		}
		return formInput(r), nil
	default:
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			return input, fmt.Errorf("invalid JSON body: %w", err)
		}
		return input, nil
	}
}

var formFields = map[string][]string{
	"id":           {"id"},
	"date":         {"date"},
	"symbol":       {"symbol", "ticker", "stockTicker"},
	"amount":       {"amount", "quantity"},
	"price":        {"price", "pricePerShare"},
	"commission":   {"commission"},
	"currency":     {"currency"},
	"portfolio_id": {"portfolio_id", "portfolioId"},
	"notes":        {"notes"},
	"side":         {"side", "transactionType"},
}

// formInput maps the add-transaction form onto an input. Empty fields count as
// absent.
func formInput(r *http.Request) models.TransactionInput {
	var in models.TransactionInput
	text := func(field string) *string {
		for _, key := range formFields[field] {
			if v := strings.TrimSpace(r.PostForm.Get(key)); v != "" {
				return &v
			}
		}
		return nil
	}
	number := func(field string) *float64 {
		v := text(field)
		if v == nil {
			return nil
		}
		f, err := strconv.ParseFloat(*v, 64)
		if err != nil {
			in.Invalid(field, "must be a number")
			return nil
		}
		return &f
	}

	in.ID = text("id")
	in.Date = text("date")
	in.Symbol = text("symbol")
	in.Amount = number("amount")
	in.Price = number("price")
	in.Commission = number("commission")
	in.Currency = text("currency")
	in.PortfolioID = text("portfolio_id")
	in.Notes = text("notes")
	if side := text("side"); side != nil {
		in.Side = *side
	}
	return in
}
