package repository

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/micko4develop/crypto-dash/internal/models"
)

// Upstream is the live market source a Mirror copies from.
type Upstream interface {
	FetchListing(ctx context.Context) ([]models.Asset, error)
	FetchAsset(ctx context.Context, id string) (*models.AssetDetail, error)
	FetchSeries(ctx context.Context, id string, days int) ([]models.PricePoint, error)
}

// Writer persists fetched market data. *MarketRepo implements it.
type Writer interface {
	UpsertAssets(ctx context.Context, assets []models.Asset) error
	RecordPrices(ctx context.Context, id string, series []models.PricePoint) error
}

var _ Writer = (*MarketRepo)(nil)

// Mirror serves reads from an upstream source and copies every successful
// listing and price series into a Writer, so a later FEED_SOURCE=postgres
// run has data to serve. A failed write is logged and never fails the read.
type Mirror struct {
	src Upstream
	w   Writer
	log zerolog.Logger
}

func NewMirror(src Upstream, w Writer, log zerolog.Logger) *Mirror {
	return &Mirror{
		src: src,
		w:   w,
		log: log.With().Str("component", "mirror").Logger(),
	}
}

func (m *Mirror) FetchListing(ctx context.Context) ([]models.Asset, error) {
	assets, err := m.src.FetchListing(ctx)
	if err != nil || len(assets) == 0 {
		return assets, err
	}
	if werr := m.w.UpsertAssets(ctx, assets); werr != nil {
		m.log.Warn().Err(werr).Int("assets", len(assets)).Msg("listing not mirrored")
	} else {
		m.log.Debug().Int("assets", len(assets)).Msg("listing mirrored")
	}
	return assets, nil
}

func (m *Mirror) FetchAsset(ctx context.Context, id string) (*models.AssetDetail, error) {
	return m.src.FetchAsset(ctx, id)
}

func (m *Mirror) FetchSeries(ctx context.Context, id string, days int) ([]models.PricePoint, error) {
	series, err := m.src.FetchSeries(ctx, id, days)
	if err != nil || len(series) == 0 {
		return series, err
	}
	// Rows for assets never listed are rejected by the foreign key.
	if werr := m.w.RecordPrices(ctx, id, series); werr != nil {
		m.log.Warn().Err(werr).Str("asset", id).Int("points", len(series)).Msg("price series not mirrored")
	}
	return series, nil
}
