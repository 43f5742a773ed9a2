package ibkr

import (
	"strings"
	"testing"

	"github.com/username/stocktracker/src/models"
)

const statement = `<?xml version="1.0" encoding="UTF-8"?>
<FlexQueryResponse queryName="trades" type="AF">
  <FlexStatements count="1">
    <FlexStatement accountId="U1234567" fromDate="20240101" toDate="20241231">
      <Trades>
        <Trade assetCategory="STK" symbol="AAPL" description="APPLE INC" isin="US0378331005" dateTime="20240102;093512" tradeDate="20240102" quantity="10" tradePrice="185.5" currency="USD" exchange="NASDAQ" ibCommission="-1" ibCommissionCurrency="USD" ibOrderID="111"/>
        <Trade assetCategory="STK" symbol="AAPL" description="APPLE INC" dateTime="2024-03-04;15:00:00" quantity="-4" tradePrice="175" currency="USD" exchange="NASDAQ" ibCommission="-0.5" ibCommissionCurrency="EUR" ibOrderID="112"/>
        <Trade assetCategory="CASH" symbol="EUR.USD" dateTime="20240105;100000" quantity="1000" tradePrice="1.09" currency="USD" exchange="IDEALFX"/>
        <Trade assetCategory="OPT" symbol="AAPL 240621C00200000" dateTime="20240105;100000" quantity="1" tradePrice="2.1" currency="USD" exchange="CBOE"/>
        <Trade assetCategory="STK" symbol="BAD" dateTime="yesterday" quantity="1" tradePrice="1" currency="USD" exchange="NYSE"/>
      </Trades>
    </FlexStatement>
  </FlexStatements>
</FlexQueryResponse>`

func TestParseStockTrades(t *testing.T) {
	inputs, err := NewParser().Parse(strings.NewReader(statement))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(inputs) != 3 {
		t.Fatalf("Parse() returned %d inputs, want 3", len(inputs))
	}

	buy, err := inputs[0].Build("a", models.Date{})
	if err != nil {
		t.Fatalf("Build(buy) error = %v", err)
	}
	if buy.Date != models.NewDate(2024, 1, 2) || buy.Symbol != "AAPL" || buy.Amount != 10 || buy.Price != 185.5 || buy.Commission != 1 {
		t.Errorf("buy = %+v", buy)
	}
	if buy.PortfolioID != "U1234567" || buy.Currency != "USD" {
		t.Errorf("buy portfolio/currency = %s/%s", buy.PortfolioID, buy.Currency)
	}
	if buy.Notes == nil || *buy.Notes != "APPLE INC (order 111)" {
		t.Errorf("buy notes = %v", buy.Notes)
	}

	sell, err := inputs[1].Build("b", models.Date{})
	if err != nil {
		t.Fatalf("Build(sell) error = %v", err)
	}
	if sell.Date != models.NewDate(2024, 3, 4) || sell.Amount != -4 || sell.Commission != 0 {
		t.Errorf("sell = %+v", sell)
	}

	if _, err := inputs[2].Build("c", models.Date{}); err == nil {
		t.Error("Build() accepted an unparseable trade date")
	}
}

func TestParseRejectsMalformedXML(t *testing.T) {
	if _, err := NewParser().Parse(strings.NewReader("<FlexQueryResponse><oops")); err == nil {
		t.Error("Parse() error = nil for truncated XML")
	}
}
