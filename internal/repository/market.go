package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/micko4develop/crypto-dash/internal/feed"
	"github.com/micko4develop/crypto-dash/internal/models"
)

//go:embed schema.sql
var schema string

// ErrNotFound is wrapped in the error returned for an unknown asset id.
var ErrNotFound = errors.New("asset not found")

const assetColumns = `id, name, symbol, image, current_price, market_cap,
	total_volume, price_change_percentage_24h, market_cap_rank`

// MarketRepo reads a Postgres mirror of the market feed. It satisfies the
// same listing and detail source contracts as the HTTP client, so failures
// come back as *feed.Error.
type MarketRepo struct {
	pool  *pgxpool.Pool
	limit int
	now   func() time.Time
}

func NewMarketRepo(pool *pgxpool.Pool, limit int) *MarketRepo {
	if limit <= 0 {
		limit = feed.DefaultPerPage
	}
	return &MarketRepo{pool: pool, limit: limit, now: time.Now}
}

// EnsureSchema creates the mirror tables if they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *MarketRepo) FetchListing(ctx context.Context) ([]models.Asset, error) {
	const op = "fetch listing"
	rows, err := r.pool.Query(ctx,
		`SELECT `+assetColumns+` FROM market_assets
		 ORDER BY market_cap DESC NULLS LAST, id ASC LIMIT $1`,
		r.limit,
	)
	if err != nil {
		return nil, queryError(op, err)
	}
	defer rows.Close()

	out := []models.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, queryError(op, err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(op, err)
	}
	return out, nil
}

func (r *MarketRepo) FetchAsset(ctx context.Context, id string) (*models.AssetDetail, error) {
	op := "fetch asset " + id
	row := r.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM market_assets WHERE id = $1`, id)
	a, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &feed.Error{Kind: feed.BadResponse, Op: op, Status: 404, Err: ErrNotFound}
		}
		return nil, queryError(op, err)
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

// FetchSeries returns the samples of the last days days, oldest first.
func (r *MarketRepo) FetchSeries(ctx context.Context, id string, days int) ([]models.PricePoint, error) {
	op := "fetch series " + id
	since := r.now().Add(-time.Duration(max(days, 1)) * 24 * time.Hour)
	rows, err := r.pool.Query(ctx,
		`SELECT ts, price FROM asset_price_history
		 WHERE asset_id = $1 AND ts >= $2 ORDER BY ts ASC`,
		id, since,
	)
	if err != nil {
		return nil, queryError(op, err)
	}
	defer rows.Close()

	out := []models.PricePoint{}
	for rows.Next() {
		var ts time.Time
		var p models.PricePoint
		if err := rows.Scan(&ts, &p.Value); err != nil {
			return nil, queryError(op, err)
		}
		p.Timestamp = ts.UnixMilli()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(op, err)
	}
	return out, nil
}

// UpsertAssets writes a listing snapshot into the mirror.
func (r *MarketRepo) UpsertAssets(ctx context.Context, assets []models.Asset) error {
	batch := &pgx.Batch{}
	for _, a := range assets {
		batch.Queue(
			`INSERT INTO market_assets (`+assetColumns+`, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			 ON CONFLICT (id) DO UPDATE SET
			   name = EXCLUDED.name,
			   symbol = EXCLUDED.symbol,
			   image = EXCLUDED.image,
			   current_price = EXCLUDED.current_price,
			   market_cap = EXCLUDED.market_cap,
			   total_volume = EXCLUDED.total_volume,
			   price_change_percentage_24h = EXCLUDED.price_change_percentage_24h,
			   market_cap_rank = EXCLUDED.market_cap_rank,
			   updated_at = NOW()`,
			a.ID, a.Name, a.Symbol, a.Image, a.CurrentPrice, a.MarketCap,
			a.TotalVolume, a.PriceChangePercentage24h, a.MarketCapRank,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert assets: %w", err)
	}
	return nil
}

// RecordPrices appends history samples for id. Existing samples at the same
// instant are overwritten.
func (r *MarketRepo) RecordPrices(ctx context.Context, id string, series []models.PricePoint) error {
	batch := &pgx.Batch{}
	for _, p := range series {
		batch.Queue(
			`INSERT INTO asset_price_history (asset_id, ts, price) VALUES ($1, $2, $3)
			 ON CONFLICT (asset_id, ts) DO UPDATE SET price = EXCLUDED.price`,
			id, time.UnixMilli(p.Timestamp).UTC(), p.Value,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("record prices for %s: %w", id, err)
	}
	return nil
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanAsset(row scannable) (*models.Asset, error) {
	var a models.Asset
	err := row.Scan(&a.ID, &a.Name, &a.Symbol, &a.Image, &a.CurrentPrice, &a.MarketCap,
		&a.TotalVolume, &a.PriceChangePercentage24h, &a.MarketCapRank)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func queryError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &feed.Error{Kind: feed.Timeout, Op: op, Err: err}
	}
	return &feed.Error{Kind: feed.NetworkFailure, Op: op, Err: err}
}
