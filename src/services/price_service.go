package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
	"golang.org/x/net/publicsuffix"
)

const (
	defaultYahooChartURL  = "https://query2.finance.yahoo.com/v8/finance/chart"
	defaultYahooSearchURL = "https://query1.finance.yahoo.com/v1/finance/search"
	browserUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"
)

// ProviderOptions configures the market data adapters.
type ProviderOptions struct {
	Timeout            time.Duration
	YahooChartURL      string
	AlphaVantageURL    string
	AlphaVantageAPIKey string
}

// NewPriceProvider returns the adapter named by PRICE_PROVIDER.
func NewPriceProvider(name string, opts ProviderOptions) (PriceService, error) {
	switch strings.ToLower(name) {
	case "", "yahoo":
		return NewPriceService(opts), nil
	case "alphavantage":
		return NewAlphaVantageService(opts), nil
	case "none", "offline":
		return offlinePriceService{}, nil
	default:
		return nil, fmt.Errorf("unknown price provider: %s", name)
	}
}

// newYahooHTTPClient returns a client with a cookie jar; Yahoo sets consent
// cookies on the first response and expects them back.
func newYahooHTTPClient(timeout time.Duration) http.Client {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return http.Client{
		Jar:     jar,
		Timeout: timeout,
	}
}

// Yahoo Finance v8 chart response. Closes are null on halted days.
type yahooChartResponse struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooChartResult struct {
	Meta struct {
		Currency           string  `json:"currency"`
		Symbol             string  `json:"symbol"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		GMTOffset          int64   `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// priceServiceImpl implements PriceService against Yahoo Finance.
type priceServiceImpl struct {
	httpClient http.Client
	chartURL   string
}

// NewPriceService creates the Yahoo Finance adapter.
func NewPriceService(opts ProviderOptions) PriceService {
	chartURL := opts.YahooChartURL
	if chartURL == "" {
		chartURL = defaultYahooChartURL
	}
	return &priceServiceImpl{
		httpClient: newYahooHTTPClient(opts.Timeout),
		chartURL:   strings.TrimRight(chartURL, "/"),
	}
}

func (s *priceServiceImpl) Name() string { return "yahoo" }

// LatestClose returns the most recent non-null daily close, falling back to
// the chart's regular market price.
func (s *priceServiceImpl) LatestClose(ctx context.Context, symbol string) (float64, bool, error) {
	params := url.Values{"range": {"5d"}, "interval": {"1d"}}
	result, found, err := s.fetchChart(ctx, symbol, params)
	if err != nil || !found {
		return 0, false, err
	}
	points := result.points()
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Close > 0 {
			return points[i].Close, true, nil
		}
	}
	if result.Meta.RegularMarketPrice > 0 {
		return result.Meta.RegularMarketPrice, true, nil
	}
	return 0, false, nil
}

func (s *priceServiceImpl) History(ctx context.Context, symbol string, start, end models.Date) ([]models.PricePoint, error) {
	params := url.Values{
		"interval": {"1d"},
		"period1":  {fmt.Sprint(start.Time().Unix())},
		// period2 is exclusive
		"period2": {fmt.Sprint(end.AddDays(1).Time().Unix())},
	}
	result, found, err := s.fetchChart(ctx, symbol, params)
	if err != nil || !found {
		return nil, err
	}
	var out []models.PricePoint
	for _, p := range result.points() {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// fetchChart reports found=false for symbols Yahoo does not know. Transport
// failures, 5xx and undecodable bodies wrap models.ErrProviderUnavailable.
func (s *priceServiceImpl) fetchChart(ctx context.Context, symbol string, params url.Values) (*yahooChartResult, bool, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, false, nil
	}
	chartURL := fmt.Sprintf("%s/%s?%s", s.chartURL, url.PathEscape(symbol), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chartURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: yahoo chart request for %s: %v", models.ErrProviderUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		logger.FromContext(ctx).Debug("Yahoo chart: unknown symbol", "symbol", symbol)
		return nil, false, nil
	case resp.StatusCode != http.StatusOK:
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, fmt.Errorf("%w: yahoo chart returned status %d for %s: %s", models.ErrProviderUnavailable, resp.StatusCode, symbol, strings.TrimSpace(string(bodyBytes)))
	}

	var chart yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, false, fmt.Errorf("%w: failed to decode yahoo chart for %s: %v", models.ErrProviderUnavailable, symbol, err)
	}
	if chart.Chart.Error != nil || len(chart.Chart.Result) == 0 {
		return nil, false, nil
	}
	return &chart.Chart.Result[0], true, nil
}

// points pairs timestamps with closes, dating each bar in the exchange's
// local calendar.
func (r *yahooChartResult) points() []models.PricePoint {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	closes := r.Indicators.Quote[0].Close
	out := make([]models.PricePoint, 0, len(r.Timestamp))
	seen := make(map[models.Date]int, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		d := models.DateOf(time.Unix(ts+r.Meta.GMTOffset, 0))
		if j, dup := seen[d]; dup {
			out[j].Close = *closes[i]
			continue
		}
		seen[d] = len(out)
		out = append(out, models.PricePoint{Date: d, Close: *closes[i]})
	}
	return out
}

// offlinePriceService reports no market data at all.
type offlinePriceService struct{}

func (offlinePriceService) Name() string { return "none" }

func (offlinePriceService) LatestClose(ctx context.Context, symbol string) (float64, bool, error) {
	return 0, false, nil
}

func (offlinePriceService) History(ctx context.Context, symbol string, start, end models.Date) ([]models.PricePoint, error) {
	return nil, nil
}
