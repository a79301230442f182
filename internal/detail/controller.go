// Package detail loads one asset's snapshot and price history for the
// detail screen and projects the history onto the chart canvas.
package detail

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/micko4develop/crypto-dash/internal/chart"
	"github.com/micko4develop/crypto-dash/internal/feed"
	"github.com/micko4develop/crypto-dash/internal/format"
	"github.com/micko4develop/crypto-dash/internal/metrics"
	"github.com/micko4develop/crypto-dash/internal/models"
)

type State string

const (
	Idle    State = "idle"
	Loading State = "loading"
	Ready   State = "ready"
	Failed  State = "failed"
)

const (
	DefaultDays    = 7
	DefaultTimeout = 15 * time.Second
)

// ErrSuperseded is returned by Load when a newer Load started before this
// one finished. The result was discarded.
var ErrSuperseded = errors.New("detail load superseded")

// Source provides the two halves of a detail screen.
type Source interface {
	FetchAsset(ctx context.Context, id string) (*models.AssetDetail, error)
	FetchSeries(ctx context.Context, id string, days int) ([]models.PricePoint, error)
}

type Options struct {
	Days    int
	Canvas  chart.Canvas
	Timeout time.Duration
	Metrics *metrics.Metrics
}

// Summary is the snapshot formatted for display.
type Summary struct {
	Price     string `json:"price"`
	MarketCap string `json:"marketCap"`
	Volume    string `json:"volume"`
	Change24h string `json:"change24h"`
	Rank      string `json:"rank"`
}

type View struct {
	State     State               `json:"state"`
	ID        string              `json:"id,omitempty"`
	Asset     *models.AssetDetail `json:"asset,omitempty"`
	Summary   *Summary            `json:"summary,omitempty"`
	Chart     *chart.Projection   `json:"chart,omitempty"`
	Error     string              `json:"error,omitempty"`
	ErrorKind string              `json:"errorKind,omitempty"`
}

// Controller holds the single detail session. Each Load supersedes the
// previous one: its context is cancelled and its result, if it still
// arrives, is dropped.
type Controller struct {
	src     Source
	days    int
	canvas  chart.Canvas
	timeout time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	view       View
}

func NewController(src Source, opts Options, log zerolog.Logger) *Controller {
	if opts.Days <= 0 {
		opts.Days = DefaultDays
	}
	if opts.Canvas.Width <= 0 || opts.Canvas.Height <= 0 {
		loc := opts.Canvas.Location
		opts.Canvas = chart.DefaultCanvas
		opts.Canvas.Location = loc
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Controller{
		src:     src,
		days:    opts.Days,
		canvas:  opts.Canvas,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		log:     log.With().Str("component", "detail").Logger(),
		view:    View{State: Idle},
	}
}

// Load fetches the snapshot and series for id concurrently. Both must
// succeed for the view to become Ready. The returned view is the one the
// load produced; ErrSuperseded means a newer Load owns the session.
func (c *Controller) Load(ctx context.Context, id string) (View, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	gen := c.generation
	c.cancel = cancel
	c.view = View{State: Loading, ID: id}
	c.mu.Unlock()

	var (
		asset  *models.AssetDetail
		series []models.PricePoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := c.src.FetchAsset(gctx, id)
		asset = a
		return err
	})
	g.Go(func() error {
		s, err := c.src.FetchSeries(gctx, id, c.days)
		series = s
		return err
	})
	err := g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.metrics.DetailLoad("superseded")
		c.log.Debug().Str("id", id).Msg("discarding superseded detail load")
		return View{}, ErrSuperseded
	}
	c.cancel = nil

	if err != nil {
		if _, ok := feed.KindOf(err); !ok && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = &feed.Error{Kind: feed.Timeout, Op: "load detail", Err: err}
		}
		c.metrics.DetailLoad("failed")
		c.log.Error().Err(err).Str("id", id).Msg("detail load failed")
		c.view = View{State: Failed, ID: id, Error: err.Error(), ErrorKind: kindOf(err)}
		return c.view, err
	}

	projection := chart.Project(series, c.canvas)
	c.view = View{
		State:   Ready,
		ID:      id,
		Asset:   asset,
		Summary: summarize(asset),
		Chart:   &projection,
	}
	c.metrics.DetailLoad("ready")
	c.log.Info().Str("id", id).Int("points", len(series)).Msg("detail loaded")
	return c.view, nil
}

// View returns the current session's view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Close cancels any in-flight load and returns the session to Idle.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	c.view = View{State: Idle}
}

func summarize(a *models.AssetDetail) *Summary {
	if a == nil {
		return nil
	}
	return &Summary{
		Price:     format.USDOf(a.CurrentPrice),
		MarketCap: format.CompactOf(a.MarketCap),
		Volume:    format.CompactOf(a.TotalVolume),
		Change24h: format.PercentOf(a.PriceChange24h),
		Rank:      format.RankOf(a.MarketCapRank),
	}
}

func kindOf(err error) string {
	if k, ok := feed.KindOf(err); ok {
		return k.String()
	}
	return feed.NetworkFailure.String()
}
