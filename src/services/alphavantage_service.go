package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
)

const defaultAlphaVantageURL = "https://www.alphavantage.co/query"

type alphaVantageServiceImpl struct {
	httpClient http.Client
	baseURL    string
	apiKey     string
}

// NewAlphaVantageService creates the Alpha Vantage adapter (GLOBAL_QUOTE and
// TIME_SERIES_DAILY).
func NewAlphaVantageService(opts ProviderOptions) PriceService {
	baseURL := opts.AlphaVantageURL
	if baseURL == "" {
		baseURL = defaultAlphaVantageURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &alphaVantageServiceImpl{
		httpClient: http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     opts.AlphaVantageAPIKey,
	}
}

func (s *alphaVantageServiceImpl) Name() string { return "alphavantage" }

func (s *alphaVantageServiceImpl) LatestClose(ctx context.Context, symbol string) (float64, bool, error) {
	var data struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	params := url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {models.NormalizeSymbol(symbol)}}
	if err := s.query(ctx, params, &data); err != nil {
		return 0, false, err
	}
	priceStr, ok := data.GlobalQuote["05. price"]
	if !ok || priceStr == "" {
		return 0, false, nil
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil || price <= 0 {
		return 0, false, nil
	}
	return price, true, nil
}

func (s *alphaVantageServiceImpl) History(ctx context.Context, symbol string, start, end models.Date) ([]models.PricePoint, error) {
	outputSize := "compact" // last 100 trading days
	if end.Time().Sub(start.Time()) > 140*24*time.Hour {
		outputSize = "full"
	}
	var data struct {
		Series map[string]map[string]string `json:"Time Series (Daily)"`
	}
	params := url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {models.NormalizeSymbol(symbol)},
		"outputsize": {outputSize},
	}
	if err := s.query(ctx, params, &data); err != nil {
		return nil, err
	}

	out := make([]models.PricePoint, 0, len(data.Series))
	for ds, bar := range data.Series {
		d, err := models.ParseDate(ds)
		if err != nil || d.Before(start) || d.After(end) {
			continue
		}
		closePrice, err := strconv.ParseFloat(bar["4. close"], 64)
		if err != nil || closePrice <= 0 {
			continue
		}
		out = append(out, models.PricePoint{Date: d, Close: closePrice})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// query decodes a response into dst. Alpha Vantage answers 200 even when
// throttled, signalling it with a "Note" or "Information" field.
func (s *alphaVantageServiceImpl) query(ctx context.Context, params url.Values, dst any) error {
	if s.apiKey == "" {
		return fmt.Errorf("%w: alphavantage API key is not configured", models.ErrProviderUnavailable)
	}
	params.Set("apikey", s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: alphavantage request: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: alphavantage returned status %d", models.ErrProviderUnavailable, resp.StatusCode)
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("%w: failed to decode alphavantage response: %v", models.ErrProviderUnavailable, err)
	}
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := raw[key]; ok {
			return fmt.Errorf("%w: alphavantage limit: %s", models.ErrProviderUnavailable, strings.Trim(string(msg), `"`))
		}
	}
	if msg, ok := raw["Error Message"]; ok {
		// unknown symbol
		logger.FromContext(ctx).Debug("Alpha Vantage rejected query", "function", params.Get("function"), "symbol", params.Get("symbol"), "message", string(msg))
		return nil
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, dst)
}
