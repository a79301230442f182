package feed

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/micko4develop/crypto-dash/internal/models"
)

// FixtureSource serves a fixed sample listing and synthetic price history.
// It stands in for the remote feed in offline mode and in tests.
type FixtureSource struct {
	assets []models.Asset
	now    func() time.Time
}

// NewFixtureSource returns a source over assets, or over SampleAssets when
// assets is nil.
func NewFixtureSource(assets []models.Asset) *FixtureSource {
	if assets == nil {
		assets = SampleAssets()
	}
	return &FixtureSource{assets: slices.Clone(assets), now: time.Now}
}

func (s *FixtureSource) FetchListing(ctx context.Context) ([]models.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, transportError("fetch listing", err)
	}
	return slices.Clone(s.assets), nil
}

func (s *FixtureSource) FetchAsset(ctx context.Context, id string) (*models.AssetDetail, error) {
	op := "fetch asset " + id
	if err := ctx.Err(); err != nil {
		return nil, transportError(op, err)
	}
	a, ok := s.find(id)
	if !ok {
		return nil, &Error{Kind: BadResponse, Op: op, Status: 404, Err: fmt.Errorf("unknown asset %q", id)}
	}
	return &models.AssetDetail{
		ID:             a.ID,
		Name:           a.Name,
		Symbol:         a.Symbol,
		Image:          a.Image,
		MarketCapRank:  a.MarketCapRank,
		CurrentPrice:   a.CurrentPrice,
		MarketCap:      a.MarketCap,
		TotalVolume:    a.TotalVolume,
		PriceChange24h: a.PriceChangePercentage24h,
	}, nil
}

// FetchSeries synthesizes hourly samples ending now and converging on the
// asset's current price.
func (s *FixtureSource) FetchSeries(ctx context.Context, id string, days int) ([]models.PricePoint, error) {
	op := "fetch series " + id
	if err := ctx.Err(); err != nil {
		return nil, transportError(op, err)
	}
	a, ok := s.find(id)
	if !ok {
		return nil, &Error{Kind: BadResponse, Op: op, Status: 404, Err: fmt.Errorf("unknown asset %q", id)}
	}

	price, _ := a.Metric(models.FieldCurrentPrice)
	n := max(days, 1) * 24
	end := s.now().Truncate(time.Hour)
	out := make([]models.PricePoint, n+1)
	for i := range out {
		// fraction of the window still ahead of this sample
		ahead := float64(n-i) / float64(n)
		wave := 0.04*math.Sin(float64(i)/9) + 0.02*math.Cos(float64(i)/4)
		out[i] = models.PricePoint{
			Timestamp: end.Add(-time.Duration(n-i) * time.Hour).UnixMilli(),
			Value:     price * (1 + wave*ahead),
		}
	}
	return out, nil
}

func (s *FixtureSource) find(id string) (models.Asset, bool) {
	for _, a := range s.assets {
		if a.ID == id {
			return a, true
		}
	}
	return models.Asset{}, false
}

// SampleAssets is a small listing snapshot used for offline mode.
func SampleAssets() []models.Asset {
	f, r := models.Float, models.Int
	return []models.Asset{
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "btc", CurrentPrice: f(67250.12), MarketCap: f(1.325e12), TotalVolume: f(2.81e10), PriceChangePercentage24h: f(1.42), MarketCapRank: r(1)},
		{ID: "ethereum", Name: "Ethereum", Symbol: "eth", CurrentPrice: f(3512.4), MarketCap: f(4.22e11), TotalVolume: f(1.57e10), PriceChangePercentage24h: f(-0.87), MarketCapRank: r(2)},
		{ID: "tether", Name: "Tether", Symbol: "usdt", CurrentPrice: f(1), MarketCap: f(1.12e11), TotalVolume: f(5.4e10), PriceChangePercentage24h: f(0.01), MarketCapRank: r(3)},
		{ID: "binancecoin", Name: "BNB", Symbol: "bnb", CurrentPrice: f(590.3), MarketCap: f(8.71e10), TotalVolume: f(1.9e9), PriceChangePercentage24h: f(0.55), MarketCapRank: r(4)},
		{ID: "solana", Name: "Solana", Symbol: "sol", CurrentPrice: f(152.77), MarketCap: f(7.05e10), TotalVolume: f(2.6e9), PriceChangePercentage24h: f(3.1), MarketCapRank: r(5)},
		{ID: "usd-coin", Name: "USDC", Symbol: "usdc", CurrentPrice: f(1), MarketCap: f(3.3e10), TotalVolume: f(6.1e9), PriceChangePercentage24h: f(0), MarketCapRank: r(6)},
		{ID: "ripple", Name: "XRP", Symbol: "xrp", CurrentPrice: f(0.52), MarketCap: f(2.89e10), TotalVolume: f(1.1e9), PriceChangePercentage24h: f(-1.9), MarketCapRank: r(7)},
		{ID: "dogecoin", Name: "Dogecoin", Symbol: "doge", CurrentPrice: f(0.153), MarketCap: f(2.21e10), TotalVolume: f(9.8e8), PriceChangePercentage24h: f(4.7), MarketCapRank: r(8)},
		{ID: "cardano", Name: "Cardano", Symbol: "ada", CurrentPrice: f(0.45), MarketCap: f(1.6e10), TotalVolume: f(3.4e8), PriceChangePercentage24h: f(-2.2), MarketCapRank: r(9)},
		{ID: "tron", Name: "TRON", Symbol: "trx", CurrentPrice: f(0.121), MarketCap: f(1.06e10), TotalVolume: f(2.9e8), PriceChangePercentage24h: f(0.3), MarketCapRank: r(10)},
		{ID: "chainlink", Name: "Chainlink", Symbol: "link", CurrentPrice: f(14.9), MarketCap: f(8.7e9), TotalVolume: f(3.1e8), MarketCapRank: r(11)},
		{ID: "polkadot", Name: "Polkadot", Symbol: "dot", CurrentPrice: f(6.8), MarketCap: f(9.4e9), TotalVolume: f(2.2e8), PriceChangePercentage24h: f(-0.4), MarketCapRank: r(12)},
	}
}
