package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jgoulah/dayboard/internal/calendar"
	"github.com/jgoulah/dayboard/pkg/models"
)

// MarketClient fetches previous-close bars from a Polygon-style aggregates API
type MarketClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	loc     *time.Location
}

// NewMarketClient creates a market client. Bar dates are derived in loc.
func NewMarketClient(baseURL, apiKey string, client *http.Client, loc *time.Location) *MarketClient {
	return &MarketClient{baseURL: baseURL, apiKey: apiKey, client: client, loc: loc}
}

type prevCloseResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Results []struct {
		T *int64   `json:"t"` // bar start, unix ms
		O *float64 `json:"o"`
		H *float64 `json:"h"`
		L *float64 `json:"l"`
		C *float64 `json:"c"`
		V *float64 `json:"v"`
	} `json:"results"`
}

// PreviousClose returns the most recent completed bar for ticker, stored under symbol.
// A non-OK status, an empty result set or a bar missing a price field is an error;
// the caller treats that ticker as absent.
func (c *MarketClient) PreviousClose(ctx context.Context, ticker, symbol string) (models.MarketSnapshot, error) {
	reqURL := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev?%s",
		c.baseURL, url.PathEscape(ticker), url.Values{"apiKey": {c.apiKey}}.Encode())

	var resp prevCloseResponse
	if err := getJSON(ctx, c.client, reqURL, nil, &resp); err != nil {
		return models.MarketSnapshot{}, fmt.Errorf("fetching %s: %w", ticker, err)
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return models.MarketSnapshot{}, fmt.Errorf("fetching %s: status %q %s: %w", ticker, resp.Status, resp.Error, ErrNoData)
	}

	r := resp.Results[0]
	if r.T == nil || r.O == nil || r.H == nil || r.L == nil || r.C == nil {
		return models.MarketSnapshot{}, fmt.Errorf("fetching %s: incomplete bar: %w", ticker, ErrNoData)
	}

	return models.MarketSnapshot{
		Date:   calendar.Day(time.UnixMilli(*r.T), c.loc),
		Symbol: symbol,
		Open:   *r.O,
		High:   *r.H,
		Low:    *r.L,
		Close:  *r.C,
		Volume: r.V,
	}, nil
}
