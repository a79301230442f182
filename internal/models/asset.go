package models

// Field names a numeric attribute of an Asset that can be sorted or displayed.
type Field int

const (
	FieldMarketCap Field = iota
	FieldCurrentPrice
	FieldTotalVolume
	FieldPriceChange24h
)

func (f Field) String() string {
	switch f {
	case FieldMarketCap:
		return "market_cap"
	case FieldCurrentPrice:
		return "current_price"
	case FieldTotalVolume:
		return "total_volume"
	case FieldPriceChange24h:
		return "price_change_percentage_24h"
	default:
		return "unknown"
	}
}

// Asset is one row of the market listing. Every attribute except ID may be
// missing from the feed; numerics are pointers so absence survives decoding.
type Asset struct {
	ID                       string   `json:"id"`
	Name                     string   `json:"name"`
	Symbol                   string   `json:"symbol"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	TotalVolume              *float64 `json:"total_volume"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	MarketCapRank            *int     `json:"market_cap_rank"`
	Image                    string   `json:"image,omitempty"`
}

// Metric returns the value of f and whether the feed supplied it.
// Callers that order assets use the value (0 when absent); callers that
// display it use ok to render a "not available" marker.
func (a Asset) Metric(f Field) (float64, bool) {
	var p *float64
	switch f {
	case FieldMarketCap:
		p = a.MarketCap
	case FieldCurrentPrice:
		p = a.CurrentPrice
	case FieldTotalVolume:
		p = a.TotalVolume
	case FieldPriceChange24h:
		p = a.PriceChangePercentage24h
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// AssetDetail is the single-asset snapshot shown above the price chart.
type AssetDetail struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Symbol         string   `json:"symbol"`
	Image          string   `json:"image,omitempty"`
	MarketCapRank  *int     `json:"marketCapRank"`
	CurrentPrice   *float64 `json:"currentPrice"`
	MarketCap      *float64 `json:"marketCap"`
	TotalVolume    *float64 `json:"totalVolume"`
	PriceChange24h *float64 `json:"priceChange24h"`
}

// Float is a convenience for building optional numerics in fixtures and tests.
func Float(v float64) *float64 { return &v }

// Int is the *int counterpart of Float.
func Int(v int) *int { return &v }
