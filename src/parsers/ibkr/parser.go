// Package ibkr reads Interactive Brokers Flex Query statements.
package ibkr

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
)

// FlexQueryResponse is the root element of the IBKR Flex Query report.
type FlexQueryResponse struct {
	XMLName        xml.Name        `xml:"FlexQueryResponse"`
	FlexStatements []FlexStatement `xml:"FlexStatements>FlexStatement"`
}

// FlexStatement contains all the data for a given account and period.
type FlexStatement struct {
	AccountId string  `xml:"accountId,attr"`
	Trades    []Trade `xml:"Trades>Trade"`
}

// Trade is one execution. Quantity is negative for sells.
type Trade struct {
	AssetCategory        string  `xml:"assetCategory,attr"`
	Symbol               string  `xml:"symbol,attr"`
	Description          string  `xml:"description,attr"`
	ISIN                 string  `xml:"isin,attr"`
	DateTime             string  `xml:"dateTime,attr"`
	TradeDate            string  `xml:"tradeDate,attr"`
	Quantity             float64 `xml:"quantity,attr"`
	TradePrice           float64 `xml:"tradePrice,attr"`
	Currency             string  `xml:"currency,attr"`
	Exchange             string  `xml:"exchange,attr"`
	IBCommission         float64 `xml:"ibCommission,attr"`
	IBCommissionCurrency string  `xml:"ibCommissionCurrency,attr"`
	IBOrderID            string  `xml:"ibOrderID,attr"`
}

// Parser turns the stock trades of a Flex Query XML file into transaction
// inputs. Options, FX conversions and cash movements are not ledger records and
// are dropped.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes the statement. Each account becomes the portfolio id of its
// trades.
func (p *Parser) Parse(file io.Reader) ([]models.TransactionInput, error) {
	var response FlexQueryResponse
	if err := xml.NewDecoder(file).Decode(&response); err != nil {
		return nil, fmt.Errorf("ibkr parser: failed to decode XML: %w", err)
	}

	var inputs []models.TransactionInput
	dropped := 0
	for _, stmt := range response.FlexStatements {
		for _, trade := range stmt.Trades {
			// internal currency conversions
			if trade.Exchange == "IDEALFX" || trade.AssetCategory != "STK" {
				dropped++
				continue
			}
			inputs = append(inputs, toInput(stmt.AccountId, trade))
		}
	}
	if dropped > 0 {
		logger.L.Debug("IBKR parser: skipped non-stock trades", "count", dropped)
	}
	return inputs, nil
}

func toInput(account string, trade Trade) models.TransactionInput {
	var in models.TransactionInput

	raw := trade.TradeDate
	if raw == "" {
		raw = trade.DateTime
	}
	if date, err := parseIBKRDateTime(raw); err != nil {
		in.Invalid("date", err.Error())
	} else {
		s := date.Format(models.DateFormat)
		in.Date = &s
	}

	symbol := trade.Symbol
	in.Symbol = &symbol
	amount, price := trade.Quantity, trade.TradePrice
	in.Amount = &amount
	in.Price = &price
	if trade.Currency != "" {
		currency := trade.Currency
		in.Currency = &currency
	}

	// Commission is recorded only when charged in the trade currency.
	if trade.IBCommissionCurrency == "" || strings.EqualFold(trade.IBCommissionCurrency, trade.Currency) {
		commission := math.Abs(trade.IBCommission)
		in.Commission = &commission
	} else if trade.IBCommission != 0 {
		logger.L.Warn("IBKR parser: commission currency differs from trade currency, commission dropped",
			"ibOrderID", trade.IBOrderID, "currency", trade.Currency, "commissionCurrency", trade.IBCommissionCurrency)
	}

	if account != "" {
		portfolio := account
		in.PortfolioID = &portfolio
	}
	if trade.Description != "" {
		notes := trade.Description
		if trade.IBOrderID != "" {
			notes += " (order " + trade.IBOrderID + ")"
		}
		in.Notes = &notes
	}
	return in
}

var ibkrLayouts = []string{"20060102;150405", "2006-01-02;15:04:05", "20060102", "2006-01-02"}

// parseIBKRDateTime accepts the compact and dashed Flex date formats, with or
// without a time part.
func parseIBKRDateTime(datetime string) (time.Time, error) {
	datetime = strings.TrimSpace(datetime)
	for _, layout := range ibkrLayouts {
		if t, err := time.Parse(layout, datetime); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse ibkr datetime '%s'", datetime)
}
