package pipeline

import (
	"fmt"

	"github.com/micko4develop/crypto-dash/internal/models"
)

// SortKey selects the field and direction of the listing order.
type SortKey string

const (
	MarketCapDesc SortKey = "market_cap_desc"
	MarketCapAsc  SortKey = "market_cap_asc"
	PriceDesc     SortKey = "price_desc"
	PriceAsc      SortKey = "price_asc"
	VolumeDesc    SortKey = "volume_desc"
	VolumeAsc     SortKey = "volume_asc"
)

// DefaultSort matches the feed's own ordering.
const DefaultSort = MarketCapDesc

var sortKeys = map[SortKey]struct {
	field models.Field
	desc  bool
	label string
}{
	MarketCapDesc: {models.FieldMarketCap, true, "Market Cap (High to Low)"},
	MarketCapAsc:  {models.FieldMarketCap, false, "Market Cap (Low to High)"},
	PriceDesc:     {models.FieldCurrentPrice, true, "Price (High to Low)"},
	PriceAsc:      {models.FieldCurrentPrice, false, "Price (Low to High)"},
	VolumeDesc:    {models.FieldTotalVolume, true, "Volume (High to Low)"},
	VolumeAsc:     {models.FieldTotalVolume, false, "Volume (Low to High)"},
}

// SortKeys lists every key in the order a selector should offer them.
func SortKeys() []SortKey {
	return []SortKey{MarketCapDesc, MarketCapAsc, PriceDesc, PriceAsc, VolumeDesc, VolumeAsc}
}

func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(s)
	if _, ok := sortKeys[k]; !ok {
		return "", fmt.Errorf("unknown sort key %q", s)
	}
	return k, nil
}

func (k SortKey) Valid() bool {
	_, ok := sortKeys[k]
	return ok
}

// Field returns the asset attribute the key orders by.
func (k SortKey) Field() models.Field { return sortKeys[k].field }

// Descending reports the direction of the key.
func (k SortKey) Descending() bool { return sortKeys[k].desc }

// Label is the human-readable name of the key.
func (k SortKey) Label() string { return sortKeys[k].label }
