package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/username/stocktracker/src/models"
)

// 2024-01-02 and 2024-01-03 at 14:30 UTC; the last close is null
const yahooChartBody = `{"chart":{"result":[{
  "meta":{"currency":"USD","symbol":"AAPL","regularMarketPrice":187.5,"gmtoffset":-18000},
  "timestamp":[1704205800,1704292200,1704378600],
  "indicators":{"quote":[{"close":[185.64,184.25,null]}]}
}],"error":null}}`

func newYahooServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chart/AAPL":
			if r.Header.Get("User-Agent") == "" {
				t.Error("request sent without User-Agent")
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, yahooChartBody)
		case "/chart/BROKEN":
			http.Error(w, "upstream exploded", http.StatusBadGateway)
		case "/chart/EMPTY":
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestYahooLatestClose(t *testing.T) {
	srv := newYahooServer(t)
	svc := NewPriceService(ProviderOptions{YahooChartURL: srv.URL + "/chart", Timeout: 2 * time.Second})
	ctx := context.Background()

	price, ok, err := svc.LatestClose(ctx, "aapl")
	if err != nil || !ok || price != 184.25 {
		t.Errorf("LatestClose(aapl) = %v, %v, %v, want 184.25, true, nil", price, ok, err)
	}

	for _, symbol := range []string{"NOPE", "EMPTY"} {
		if _, ok, err := svc.LatestClose(ctx, symbol); ok || err != nil {
			t.Errorf("LatestClose(%s) = _, %v, %v, want not found without error", symbol, ok, err)
		}
	}

	if _, _, err := svc.LatestClose(ctx, "BROKEN"); !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("LatestClose(BROKEN) error = %v, want ErrProviderUnavailable", err)
	}
}

func TestYahooHistory(t *testing.T) {
	srv := newYahooServer(t)
	svc := NewPriceService(ProviderOptions{YahooChartURL: srv.URL + "/chart"})

	points, err := svc.History(context.Background(), "AAPL", models.NewDate(2024, 1, 1), models.NewDate(2024, 1, 2))
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("History() = %+v, want a single point inside the window", points)
	}
	if points[0].Date != models.NewDate(2024, 1, 2) || points[0].Close != 185.64 {
		t.Errorf("History()[0] = %+v", points[0])
	}
}

func TestYahooUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	svc := NewPriceService(ProviderOptions{YahooChartURL: url, Timeout: time.Second})
	if _, err := svc.History(context.Background(), "AAPL", models.NewDate(2024, 1, 1), models.NewDate(2024, 1, 5)); !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("History() error = %v, want ErrProviderUnavailable", err)
	}
}

func newAlphaVantageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apikey") != "demo" {
			t.Errorf("apikey = %q, want demo", q.Get("apikey"))
		}
		switch {
		case q.Get("symbol") == "LIMIT":
			fmt.Fprint(w, `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`)
		case q.Get("symbol") == "NOPE":
			fmt.Fprint(w, `{"Error Message":"Invalid API call."}`)
		case q.Get("function") == "GLOBAL_QUOTE":
			fmt.Fprint(w, `{"Global Quote":{"01. symbol":"IBM","05. price":"171.2000"}}`)
		case q.Get("function") == "TIME_SERIES_DAILY":
			fmt.Fprint(w, `{"Time Series (Daily)":{
			  "2024-01-03":{"4. close":"160.10"},
			  "2024-01-02":{"4. close":"158.00"},
			  "2023-12-29":{"4. close":"163.55"}}}`)
		default:
			http.Error(w, "bad function", http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAlphaVantageLatestClose(t *testing.T) {
	srv := newAlphaVantageServer(t)
	svc := NewAlphaVantageService(ProviderOptions{AlphaVantageURL: srv.URL, AlphaVantageAPIKey: "demo"})
	ctx := context.Background()

	price, ok, err := svc.LatestClose(ctx, "IBM")
	if err != nil || !ok || price != 171.2 {
		t.Errorf("LatestClose(IBM) = %v, %v, %v, want 171.2, true, nil", price, ok, err)
	}
	if _, ok, err := svc.LatestClose(ctx, "NOPE"); ok || err != nil {
		t.Errorf("LatestClose(NOPE) = _, %v, %v, want not found", ok, err)
	}
	if _, _, err := svc.LatestClose(ctx, "LIMIT"); !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("LatestClose(LIMIT) error = %v, want ErrProviderUnavailable", err)
	}
}

func TestAlphaVantageHistory(t *testing.T) {
	srv := newAlphaVantageServer(t)
	svc := NewAlphaVantageService(ProviderOptions{AlphaVantageURL: srv.URL, AlphaVantageAPIKey: "demo"})

	points, err := svc.History(context.Background(), "IBM", models.NewDate(2024, 1, 1), models.NewDate(2024, 1, 31))
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(points) != 2 || points[0].Date.String() != "2024-01-02" || points[1].Close != 160.10 {
		t.Errorf("History() = %+v", points)
	}
}

func TestAlphaVantageWithoutKey(t *testing.T) {
	svc := NewAlphaVantageService(ProviderOptions{})
	if _, _, err := svc.LatestClose(context.Background(), "IBM"); !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("LatestClose() error = %v, want ErrProviderUnavailable", err)
	}
}

func TestNewPriceProvider(t *testing.T) {
	for name, want := range map[string]string{"": "yahoo", "Yahoo": "yahoo", "alphavantage": "alphavantage", "none": "none"} {
		svc, err := NewPriceProvider(name, ProviderOptions{})
		if err != nil {
			t.Fatalf("NewPriceProvider(%q) error = %v", name, err)
		}
		if svc.Name() != want {
			t.Errorf("NewPriceProvider(%q).Name() = %q, want %q", name, svc.Name(), want)
		}
	}
	if _, err := NewPriceProvider("bloomberg", ProviderOptions{}); err == nil || !strings.Contains(err.Error(), "bloomberg") {
		t.Errorf("NewPriceProvider(bloomberg) error = %v", err)
	}
}
