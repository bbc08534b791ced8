package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://api.dexscreener.com"
	RequestTimeout = 10 * time.Second
)

// Client fetches market capitalization for a token address from the
// DexScreener public API. All failures degrade to "unknown": callers only
// ever see (value, ok).
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL string, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: RequestTimeout},
		logger:     logger,
	}
}

// FetchMarketCap returns the market cap for address, preferring the
// fully-diluted valuation over the market-cap field. ok is false when the
// value could not be determined this call.
func (c *Client) FetchMarketCap(ctx context.Context, address string) (float64, bool) {
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.WithError(err).WithField("address", address).Warn("Failed to build DexScreener request")
		return 0, false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("address", address).Warn("DexScreener request failed")
		return 0, false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.WithError(err).WithField("address", address).Warn("Failed to read DexScreener response")
		return 0, false
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"status":  resp.StatusCode,
		}).Warn("DexScreener returned non-OK status")
		return 0, false
	}

	pairs := decodePairs(body)
	if len(pairs) == 0 {
		c.logger.WithField("address", address).Warn("No pairs in DexScreener response")
		return 0, false
	}

	// First candidate wins; fdv preferred, market cap as fallback.
	pair := pairs[0]
	if pair.FDV > 0 {
		return pair.FDV, true
	}
	if pair.MarketCap > 0 {
		return pair.MarketCap, true
	}
	return 0, false
}

// decodePairs accepts the three payload shapes DexScreener serves: a
// {"pairs": [...]} wrapper, a bare array, or a single pair object.
func decodePairs(body []byte) []Pair {
	var wrapped TokenResponse
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Pairs) > 0 {
		return wrapped.Pairs
	}

	var list []Pair
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		return list
	}

	var single Pair
	if err := json.Unmarshal(body, &single); err == nil && (single.FDV > 0 || single.MarketCap > 0) {
		return []Pair{single}
	}

	return nil
}
