package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/username/stocktracker/src/security/validation"
)

// Transaction is one persisted buy (positive Amount) or sell (negative Amount).
type Transaction struct {
	ID          string  `json:"id"`
	Date        Date    `json:"date"`
	Symbol      string  `json:"symbol"`
	Amount      float64 `json:"amount"`
	Price       float64 `json:"price"`
	Commission  float64 `json:"commission"`
	Currency    string  `json:"currency"`
	PortfolioID string  `json:"portfolio_id"`
	Notes       *string `json:"notes"`
}

// IsBuy reports whether the transaction adds shares.
func (t Transaction) IsBuy() bool { return t.Amount > 0 }

// Input returns a fully populated input mirroring t, used as the base for patches.
func (t Transaction) Input() TransactionInput {
	id, date, symbol, currency, portfolio := t.ID, t.Date.String(), t.Symbol, t.Currency, t.PortfolioID
	amount, price, commission := t.Amount, t.Price, t.Commission
	in := TransactionInput{
		ID:          &id,
		Date:        &date,
		Symbol:      &symbol,
		Amount:      &amount,
		Price:       &price,
		Commission:  &commission,
		Currency:    &currency,
		PortfolioID: &portfolio,
	}
	if t.Notes != nil {
		notes := *t.Notes
		in.Notes = &notes
	}
	return in
}

// UnmarshalJSON reads persisted records, including the legacy key spellings,
// and rejects records that lack an id or break a record invariant.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	tx, err := DecodeRecord(data, "", RecordDefaults{})
	if err != nil {
		return err
	}
	*t = tx
	return nil
}

// RecordDefaults fill the fields that records written by the first version of
// the tracker never stored.
type RecordDefaults struct {
	Currency    string
	PortfolioID string
}

// DecodeRecord decodes one persisted record. fallbackID is used when the body
// carries no id, as in files named after their id. The record is then checked
// against the same invariants as a new transaction.
func DecodeRecord(data []byte, fallbackID string, defaults RecordDefaults) (Transaction, error) {
	var in TransactionInput
	if err := json.Unmarshal(data, &in); err != nil {
		return Transaction{}, err
	}
	id := fallbackID
	if in.ID != nil && strings.TrimSpace(*in.ID) != "" {
		id = *in.ID
	}
	if strings.TrimSpace(id) == "" {
		return Transaction{}, fmt.Errorf("record has no id")
	}
	return in.WithDefaults(defaults.Currency, defaults.PortfolioID).Build(id, Date{})
}

// TransactionInput is the write-side shape of a transaction. Every field is a
// pointer so that a missing value can be told apart from a zero one; the same
// type carries full records for Add and partial patches for Update.
type TransactionInput struct {
	ID          *string  `json:"id,omitempty"`
	Date        *string  `json:"date,omitempty"`
	Symbol      *string  `json:"symbol,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Commission  *float64 `json:"commission,omitempty"`
	Currency    *string  `json:"currency,omitempty"`
	PortfolioID *string  `json:"portfolio_id,omitempty"`
	Notes       *string  `json:"notes,omitempty"`

	// Side is "buy" or "sell". A sell flips a positive amount negative, which
	// lets forms submit unsigned quantities.
	Side string `json:"side,omitempty"`

	// values that were present but could not be decoded
	invalid []Violation
}

var inputKeys = map[string][]string{
	"id":           {"id", "transaction_id"},
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

func (in *TransactionInput) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("transaction must be a JSON object: %w", err)
	}
	lookup := func(field string) (json.RawMessage, bool) {
		for _, key := range inputKeys[field] {
			if v, ok := raw[key]; ok && string(v) != "null" {
				return v, true
			}
		}
		return nil, false
	}

	*in = TransactionInput{}
	in.ID = in.decodeString(lookup, "id")
	in.Date = in.decodeString(lookup, "date")
	in.Symbol = in.decodeString(lookup, "symbol")
	in.Amount = in.decodeNumber(lookup, "amount")
	in.Price = in.decodeNumber(lookup, "price")
	in.Commission = in.decodeNumber(lookup, "commission")
	in.Currency = in.decodeString(lookup, "currency")
	in.PortfolioID = in.decodeString(lookup, "portfolio_id")
	in.Notes = in.decodeString(lookup, "notes")
	if side := in.decodeString(lookup, "side"); side != nil {
		in.Side = *side
	}
	return nil
}

func (in *TransactionInput) decodeString(lookup func(string) (json.RawMessage, bool), field string) *string {
	v, ok := lookup(field)
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		in.invalid = append(in.invalid, Violation{Field: field, Message: "must be a string"})
		return nil
	}
	return &s
}

// decodeNumber accepts JSON numbers and numeric strings.
func (in *TransactionInput) decodeNumber(lookup func(string) (json.RawMessage, bool), field string) *float64 {
	v, ok := lookup(field)
	if !ok {
		return nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if s = strings.TrimSpace(s); s == "" {
			return nil
		}
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			return &parsed
		}
	}
	in.invalid = append(in.invalid, Violation{Field: field, Message: "must be a number"})
	return nil
}

// Invalid records a value that was supplied but could not be parsed, so that
// Build reports it alongside the other violations.
func (in *TransactionInput) Invalid(field, message string) {
	in.invalid = append(in.invalid, Violation{Field: field, Message: message})
}

// WithDefaults fills currency and portfolio_id when they are absent.
func (in TransactionInput) WithDefaults(currency, portfolioID string) TransactionInput {
	if isBlank(in.Currency) && currency != "" {
		in.Currency = &currency
	}
	if isBlank(in.PortfolioID) && portfolioID != "" {
		in.PortfolioID = &portfolioID
	}
	return in
}

// Merge overlays the fields present in patch onto in.
func (in TransactionInput) Merge(patch TransactionInput) TransactionInput {
	if patch.Date != nil {
		in.Date = patch.Date
	}
	if patch.Symbol != nil {
		in.Symbol = patch.Symbol
	}
	if patch.Amount != nil {
		in.Amount = patch.Amount
	}
	if patch.Price != nil {
		in.Price = patch.Price
	}
	if patch.Commission != nil {
		in.Commission = patch.Commission
	}
	if patch.Currency != nil {
		in.Currency = patch.Currency
	}
	if patch.PortfolioID != nil {
		in.PortfolioID = patch.PortfolioID
	}
	if patch.Notes != nil {
		in.Notes = patch.Notes
	}
	if patch.Side != "" {
		in.Side = patch.Side
	}
	in.invalid = append(append([]Violation(nil), in.invalid...), patch.invalid...)
	return in
}

// Build validates the input and returns the normalized record. A zero
// defaultDate makes the date field required. Every violation is reported.
func (in TransactionInput) Build(id string, defaultDate Date) (Transaction, error) {
	verr := &ValidationError{}
	for _, v := range in.invalid {
		verr.Add(v.Field, "%s", v.Message)
	}
	tx := Transaction{ID: strings.TrimSpace(id)}

	switch {
	case in.Date != nil && strings.TrimSpace(*in.Date) != "":
		d, err := ParseDate(*in.Date)
		if err != nil {
			verr.Add("date", "must be an ISO-8601 date (YYYY-MM-DD)")
		}
		tx.Date = d
	case !defaultDate.IsZero():
		tx.Date = defaultDate
	default:
		verr.Add("date", "is required")
	}

	if isBlank(in.Symbol) {
		verr.Add("symbol", "is required")
	} else {
		tx.Symbol = NormalizeSymbol(*in.Symbol)
		if strings.ContainsFunc(tx.Symbol, unicode.IsSpace) {
			verr.Add("symbol", "must not contain whitespace")
		}
	}

	side := strings.ToLower(strings.TrimSpace(in.Side))
	if side != "" && side != "buy" && side != "sell" {
		verr.Add("side", "must be buy or sell")
	}

	switch {
	case in.Amount == nil:
		verr.Add("amount", "is required")
	case !isFinite(*in.Amount):
		verr.Add("amount", "must be a finite number")
	case *in.Amount == 0:
		verr.Add("amount", "must be non-zero")
	default:
		tx.Amount = *in.Amount
		if side == "sell" && tx.Amount > 0 {
			tx.Amount = -tx.Amount
		}
	}

	switch {
	case in.Price == nil:
		verr.Add("price", "is required")
	case !isFinite(*in.Price) || *in.Price <= 0:
		verr.Add("price", "must be greater than zero")
	default:
		tx.Price = *in.Price
	}

	if in.Commission != nil {
		if !isFinite(*in.Commission) || *in.Commission < 0 {
			verr.Add("commission", "must not be negative")
		} else {
			tx.Commission = *in.Commission
		}
	}

	if isBlank(in.Currency) {
		verr.Add("currency", "is required")
	} else {
		tx.Currency = NormalizeCurrency(*in.Currency)
		if !isCurrencyCode(tx.Currency) {
			verr.Add("currency", "must be a 3-letter code")
		}
	}

	if isBlank(in.PortfolioID) {
		verr.Add("portfolio_id", "is required")
	} else {
		tx.PortfolioID = strings.TrimSpace(*in.PortfolioID)
	}

	if in.Notes != nil {
		if notes := strings.TrimSpace(validation.StripUnprintable(*in.Notes)); notes != "" {
			tx.Notes = &notes
		}
	}

	if err := verr.Err(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// NormalizeCurrency trims and upper-cases a currency code.
func NormalizeCurrency(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func isBlank(s *string) bool { return s == nil || strings.TrimSpace(*s) == "" }

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// TransactionFilter narrows a ledger listing. Zero values match everything.
type TransactionFilter struct {
	PortfolioID string
	Symbol      string
	Sort        string // "", "date_asc" or "date_desc"
}

const (
	SortDateAsc  = "date_asc"
	SortDateDesc = "date_desc"
)

// Match reports whether t passes the filter.
func (f TransactionFilter) Match(t Transaction) bool {
	if f.PortfolioID != "" && t.PortfolioID != f.PortfolioID {
		return false
	}
	if f.Symbol != "" && t.Symbol != NormalizeSymbol(f.Symbol) {
		return false
	}
	return true
}
