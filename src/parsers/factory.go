package parsers

import (
	"fmt"
	"strings"

	"github.com/username/stocktracker/src/parsers/ibkr"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	// FormatIBKR is an Interactive Brokers Flex Query statement. Import only.
	FormatIBKR = "ibkr"
)

func GetCodec(format string, opts ExportOptions) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatCSV, "tabular":
		return NewCSVCodec(opts), nil
	case FormatJSON, "structured":
		return NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("no codec available for format: %s", format)
	}
}

// GetParser returns a reader for format, including the broker statement
// formats that cannot be exported.
func GetParser(format string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatIBKR, "flex", "xml":
		return ibkr.NewParser(), nil
	default:
		codec, err := GetCodec(format, ExportOptions{})
		if err != nil {
			return nil, fmt.Errorf("no parser available for format: %s", format)
		}
		return codec, nil
	}
}
