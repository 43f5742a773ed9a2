package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
)

const (
	ckTickerSearch = "ticker_search_%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type yahooSearchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		Exchange  string `json:"exchange"`
		Shortname string `json:"shortname"`
		Longname  string `json:"longname"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

type tickerServiceImpl struct {
	httpClient  http.Client
	searchURL   string
	searchCache *cache.Cache
}

// NewTickerService searches Yahoo Finance for symbols. Results are memoised
// per query for ttl; valuation never goes through this cache.
func NewTickerService(searchURL string, timeout, ttl time.Duration) TickerService {
	if searchURL == "" {
		searchURL = defaultYahooSearchURL
	}
	if ttl <= 0 {
		ttl = DefaultCacheExpiration
	}
	return &tickerServiceImpl{
		httpClient:  newYahooHTTPClient(timeout),
		searchURL:   searchURL,
		searchCache: cache.New(ttl, CacheCleanupInterval),
	}
}

// Search returns suggestions labelled "SYMBOL - Short name". Provider failures
// yield an empty list.
func (s *tickerServiceImpl) Search(ctx context.Context, query string) []models.TickerSuggestion {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.TickerSuggestion{}
	}
	key := fmt.Sprintf(ckTickerSearch, strings.ToUpper(query))
	if cached, found := s.searchCache.Get(key); found {
		if suggestions, ok := cached.([]models.TickerSuggestion); ok {
			logger.FromContext(ctx).Debug("Ticker search cache hit", "query", query)
			return suggestions
		}
	}

	suggestions, err := s.fetch(ctx, query)
	if err != nil {
		logger.FromContext(ctx).Warn("Ticker search failed", "query", query, "error", err)
		return []models.TickerSuggestion{}
	}
	s.searchCache.Set(key, suggestions, cache.DefaultExpiration)
	return suggestions
}

func (s *tickerServiceImpl) fetch(ctx context.Context, query string) ([]models.TickerSuggestion, error) {
	params := url.Values{"q": {query}, "quotesCount": {"10"}, "newsCount": {"0"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo search: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: yahoo search returned status %d", models.ErrProviderUnavailable, resp.StatusCode)
	}

	var searchData yahooSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchData); err != nil {
		return nil, fmt.Errorf("failed to decode yahoo search response: %w", err)
	}

	suggestions := make([]models.TickerSuggestion, 0, len(searchData.Quotes))
	for _, q := range searchData.Quotes {
		if q.Symbol == "" {
			continue
		}
		name := q.Shortname
		if name == "" {
			name = q.Longname
		}
		label := q.Symbol
		if name != "" {
			label = q.Symbol + " - " + name
		}
		suggestions = append(suggestions, models.TickerSuggestion{Label: label, Value: q.Symbol})
	}
	return suggestions, nil
}
