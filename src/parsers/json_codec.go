package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/username/stocktracker/src/models"
)

// JSONCodec reads and writes the structured format: an array of transaction
// objects using the persisted keys. Parse also accepts {"transactions": [...]}.
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec { return &JSONCodec{} }

func (c *JSONCodec) ContentType() string { return "application/json" }
func (c *JSONCodec) Extension() string   { return ".json" }

func (c *JSONCodec) Parse(file io.Reader) ([]models.TransactionInput, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if len(data) == 0 {
		return nil, fmt.Errorf("JSON file is empty")
	}

	var inputs []models.TransactionInput
	if data[0] == '{' {
		var wrapped struct {
			Transactions []models.TransactionInput `json:"transactions"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode JSON document: %w", err)
		}
		inputs = wrapped.Transactions
	} else if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("failed to decode JSON array: %w", err)
	}
	return inputs, nil
}

func (c *JSONCodec) Export(w io.Writer, txs []models.Transaction) error {
	if txs == nil {
		txs = []models.Transaction{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(txs)
}
