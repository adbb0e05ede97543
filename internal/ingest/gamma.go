// Package ingest fetches markets from the Polymarket Gamma REST API and the
// CLOB WebSocket and normalizes them into domain values the detection
// packages consume.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"polyedge/internal/domain"
)

const defaultPageSize = 100

// GammaClient is the REST client for the Polymarket Gamma API, which provides
// market discovery, metadata, and search.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	normalizer *Normalizer
}

// NewGammaClient creates a Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, normalizer *Normalizer) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		normalizer: normalizer,
	}
}

// ActiveMarkets pages through open markets and returns the ones that pass
// normalization. Markets the normalizer rejects are skipped, not fatal.
func (g *GammaClient) ActiveMarkets(ctx context.Context) ([]domain.Market, error) {
	var markets []domain.Market
	for offset := 0; ; offset += defaultPageSize {
		page, err := g.marketPage(ctx, defaultPageSize, offset)
		if err != nil {
			return nil, err
		}
		for i := range page {
			m, err := g.normalizer.Normalize(&page[i])
			if err != nil {
				continue
			}
			markets = append(markets, m)
		}
		if len(page) < defaultPageSize {
			return markets, nil
		}
	}
}

// SearchMarkets returns normalized markets matching the query string.
func (g *GammaClient) SearchMarkets(ctx context.Context, query string) ([]domain.Market, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", "50")

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("ingest/gamma: search markets: %w", err)
	}

	var raw []RawMarket
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("ingest/gamma: decode search results: %w", err)
	}

	markets := make([]domain.Market, 0, len(raw))
	for i := range raw {
		m, err := g.normalizer.Normalize(&raw[i])
		if err != nil {
			continue
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// GetMarket returns a single normalized market by its ID. Normalization
// failures are returned to the caller here, unlike in list endpoints.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	body, err := g.doGet(ctx, fmt.Sprintf("/markets/%s", url.PathEscape(id)))
	if err != nil {
		return domain.Market{}, fmt.Errorf("ingest/gamma: get market %s: %w", id, err)
	}

	var raw RawMarket
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Market{}, fmt.Errorf("ingest/gamma: decode market: %w", err)
	}

	m, err := g.normalizer.Normalize(&raw)
	if err != nil {
		return domain.Market{}, fmt.Errorf("ingest/gamma: market %s: %w", id, err)
	}
	return m, nil
}

// marketPage fetches one page of open markets.
func (g *GammaClient) marketPage(ctx context.Context, limit, offset int) ([]RawMarket, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("active", "true")
	params.Set("closed", "false")

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("ingest/gamma: get markets: %w", err)
	}

	var raw []RawMarket
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("ingest/gamma: decode markets: %w", err)
	}
	return raw, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
