// Package feed retrieves the market listing, single-asset snapshots and
// price history from a remote price feed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/micko4develop/crypto-dash/internal/httputil"
	"github.com/micko4develop/crypto-dash/internal/metrics"
	"github.com/micko4develop/crypto-dash/internal/models"
)

const (
	DefaultBaseURL    = "https://api.coingecko.com/api/v3"
	DefaultVSCurrency = "usd"
	DefaultPerPage    = 100
	DefaultTimeout    = 10 * time.Second
)

type Options struct {
	BaseURL    string
	VSCurrency string
	PerPage    int
	Timeout    time.Duration
	Retry      httputil.RetryConfig
	Metrics    *metrics.Metrics
}

type CoinGeckoClient struct {
	baseURL    string
	vsCurrency string
	perPage    int
	httpClient *http.Client
	retry      httputil.RetryConfig
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

func NewCoinGeckoClient(opts Options, log zerolog.Logger) *CoinGeckoClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.VSCurrency == "" {
		opts.VSCurrency = DefaultVSCurrency
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = httputil.NoRetry
	}
	return &CoinGeckoClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		vsCurrency: strings.ToLower(opts.VSCurrency),
		perPage:    opts.PerPage,
		httpClient: &http.Client{Timeout: opts.Timeout},
		retry:      opts.Retry,
		metrics:    opts.Metrics,
		log:        log.With().Str("component", "feed").Logger(),
	}
}

// FetchListing returns the first page of the market listing ordered by
// market cap. An empty array is a valid, empty result.
func (c *CoinGeckoClient) FetchListing(ctx context.Context) ([]models.Asset, error) {
	const op = "fetch listing"

	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("page", "1")
	q.Set("sparkline", "false")

	var assets []models.Asset
	if err := c.getJSON(ctx, op, "/coins/markets", q, &assets); err != nil {
		return nil, err
	}
	if assets == nil {
		return nil, malformed(op, "expected an array of assets")
	}
	for i, a := range assets {
		if a.ID == "" {
			return nil, malformed(op, "asset at index %d has no id", i)
		}
	}

	c.log.Info().Int("assets", len(assets)).Msg("listing fetched")
	return assets, nil
}

type coinDetailJSON struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	MarketCapRank *int   `json:"market_cap_rank"`
	Image         struct {
		Thumb string `json:"thumb"`
		Small string `json:"small"`
	} `json:"image"`
	MarketData *struct {
		CurrentPrice             map[string]*float64 `json:"current_price"`
		MarketCap                map[string]*float64 `json:"market_cap"`
		TotalVolume              map[string]*float64 `json:"total_volume"`
		PriceChangePercentage24h *float64            `json:"price_change_percentage_24h"`
	} `json:"market_data"`
}

// FetchAsset returns the current snapshot of one asset.
func (c *CoinGeckoClient) FetchAsset(ctx context.Context, id string) (*models.AssetDetail, error) {
	op := "fetch asset " + id

	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("market_data", "true")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")
	q.Set("sparkline", "false")

	var raw coinDetailJSON
	if err := c.getJSON(ctx, op, "/coins/"+url.PathEscape(id), q, &raw); err != nil {
		return nil, err
	}
	if raw.ID == "" {
		return nil, malformed(op, "asset has no id")
	}

	d := &models.AssetDetail{
		ID:            raw.ID,
		Name:          raw.Name,
		Symbol:        raw.Symbol,
		Image:         raw.Image.Thumb,
		MarketCapRank: raw.MarketCapRank,
	}
	if md := raw.MarketData; md != nil {
		d.CurrentPrice = md.CurrentPrice[c.vsCurrency]
		d.MarketCap = md.MarketCap[c.vsCurrency]
		d.TotalVolume = md.TotalVolume[c.vsCurrency]
		d.PriceChange24h = md.PriceChangePercentage24h
	}
	return d, nil
}

// FetchSeries returns the trailing price history of one asset, oldest first.
func (c *CoinGeckoClient) FetchSeries(ctx context.Context, id string, days int) ([]models.PricePoint, error) {
	op := "fetch series " + id

	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("days", strconv.Itoa(days))

	var raw struct {
		Prices *[]models.PricePoint `json:"prices"`
	}
	if err := c.getJSON(ctx, op, "/coins/"+url.PathEscape(id)+"/market_chart", q, &raw); err != nil {
		return nil, err
	}
	if raw.Prices == nil {
		return nil, malformed(op, "missing prices")
	}
	return *raw.Prices, nil
}

func (c *CoinGeckoClient) getJSON(ctx context.Context, op, path string, q url.Values, into any) error {
	endpoint := c.baseURL + path + "?" + q.Encode()
	start := time.Now()

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, c.log, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		fe := transportError(op, err)
		c.observe(path, fe.Kind.String(), start)
		return fe
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("op", op).
			Str("body", string(body)).
			Msg("feed returned non-success status")
		c.observe(path, BadResponse.String(), start)
		return &Error{Kind: BadResponse, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		if ctx.Err() != nil {
			fe := transportError(op, ctx.Err())
			c.observe(path, fe.Kind.String(), start)
			return fe
		}
		c.observe(path, MalformedPayload.String(), start)
		return malformed(op, "decode: %w", err)
	}

	c.observe(path, "ok", start)
	return nil
}

func (c *CoinGeckoClient) observe(path, outcome string, start time.Time) {
	c.metrics.ObserveFeedRequest(endpointLabel(path), outcome, time.Since(start))
}

// endpointLabel keeps metric cardinality independent of asset ids.
func endpointLabel(path string) string {
	switch {
	case path == "/coins/markets":
		return "listing"
	case strings.HasSuffix(path, "/market_chart"):
		return "series"
	default:
		return "asset"
	}
}
