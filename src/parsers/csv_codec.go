package parsers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/security/validation"
)

// CSVHeader is the column order written on export.
var CSVHeader = []string{"id", "date", "symbol", "amount", "price", "commission", "currency", "portfolio_id", "notes"}

// free-text columns of CSVHeader; numeric and date columns are never quoted
var textColumns = []int{0, 2, 6, 7, 8}

// Commas in numbers are accepted only as thousands separators. A decimal comma
// such as "1,5" is rejected rather than read as 15.
var thousandsGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

var csvColumnAliases = map[string]string{
	"transaction_id": "id",
	"ticker":         "symbol",
	"stockticker":    "symbol",
	"quantity":       "amount",
	"pricepershare":  "price",
	"fee":            "commission",
	"portfolio":      "portfolio_id",
	"portfolioid":    "portfolio_id",
	"note":           "notes",
	"side":           "side",
	"type":           "side",
}

type CSVCodec struct {
	opts ExportOptions
}

func NewCSVCodec(opts ExportOptions) *CSVCodec {
	return &CSVCodec{opts: opts}
}

func (c *CSVCodec) ContentType() string { return "text/csv" }
func (c *CSVCodec) Extension() string   { return ".csv" }

// Parse maps columns by header name, so column order is free and unknown
// columns are ignored. An empty cell means "not provided"; an empty notes cell
// therefore becomes a null note.
func (c *CSVCodec) Parse(file io.Reader) ([]models.TransactionInput, error) {
	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("CSV file is empty: a header row is required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if alias, ok := csvColumnAliases[key]; ok {
			key = alias
		}
		if _, dup := columns[key]; dup {
			return nil, fmt.Errorf("duplicate CSV column %q", name)
		}
		columns[key] = i
	}
	for _, required := range []string{"symbol", "amount", "price"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CSV header is missing required column %q", required)
		}
	}

	var inputs []models.TransactionInput
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if isBlankRecord(record) {
			continue
		}
		inputs = append(inputs, buildInput(columns, record))
	}
	return inputs, nil
}

func buildInput(columns map[string]int, record []string) models.TransactionInput {
	cell := func(name string) *string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return nil
		}
		v := strings.TrimSpace(record[i])
		if v == "" {
			return nil
		}
		v = validation.UnsanitizeFormula(v)
		return &v
	}

	var in models.TransactionInput
	number := func(name string) *float64 {
		v := cell(name)
		if v == nil {
			return nil
		}
		s := *v
		if strings.Contains(s, ",") {
			if !thousandsGrouped.MatchString(s) {
				in.Invalid(name, "must be a number")
				return nil
			}
			s = strings.ReplaceAll(s, ",", "")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			in.Invalid(name, "must be a number")
			return nil
		}
		return &f
	}

	in.ID = cell("id")
	in.Date = cell("date")
	in.Symbol = cell("symbol")
	in.Amount = number("amount")
	in.Price = number("price")
	in.Commission = number("commission")
	in.Currency = cell("currency")
	in.PortfolioID = cell("portfolio_id")
	in.Notes = cell("notes")
	if side := cell("side"); side != nil {
		in.Side = *side
	}
	return in
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (c *CSVCodec) Export(w io.Writer, txs []models.Transaction) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return err
	}
	for _, tx := range txs {
		notes := ""
		if tx.Notes != nil {
			notes = *tx.Notes
		}
		row := []string{
			tx.ID,
			tx.Date.String(),
			tx.Symbol,
			formatFloat(tx.Amount),
			formatFloat(tx.Price),
			formatFloat(tx.Commission),
			tx.Currency,
			tx.PortfolioID,
			notes,
		}
		escape := validation.EscapeQuotePrefix
		if c.opts.SanitizeFormulas {
			escape = validation.SanitizeForFormulaInjection
		}
		for _, i := range textColumns {
			row[i] = escape(row[i])
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
