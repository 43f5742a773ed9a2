package parsers

import (
	"io"

	"github.com/username/stocktracker/src/models"
)

// Parser reads transaction inputs from an import file. Rows are returned
// unvalidated; the ledger validates them before anything is written.
type Parser interface {
	Parse(file io.Reader) ([]models.TransactionInput, error)
}

// Exporter writes persisted transactions in one interchange format.
type Exporter interface {
	Export(w io.Writer, txs []models.Transaction) error
	ContentType() string
	Extension() string
}

// Codec both reads and writes a format.
type Codec interface {
	Parser
	Exporter
}

// ExportOptions tune the output of an Exporter.
type ExportOptions struct {
	// SanitizeFormulas prefixes cells that a spreadsheet would evaluate as a
	// formula with a single quote. Only the tabular format honours it.
	SanitizeFormulas bool
}
