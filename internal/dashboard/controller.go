// Package dashboard drives the listing screen: it decides when to fetch,
// keeps the cache current and recomputes the derived view on every query
// change.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/micko4develop/crypto-dash/internal/cache"
	"github.com/micko4develop/crypto-dash/internal/feed"
	"github.com/micko4develop/crypto-dash/internal/metrics"
	"github.com/micko4develop/crypto-dash/internal/models"
	"github.com/micko4develop/crypto-dash/internal/pipeline"
)

type State string

const (
	Idle    State = "idle"
	Loading State = "loading"
	Ready   State = "ready"
	Failed  State = "failed"
)

// DefaultFetchTimeout bounds a single listing fetch.
const DefaultFetchTimeout = 15 * time.Second

// ListingSource is where the controller gets the asset listing from: the
// remote feed, an offline fixture or a database mirror.
type ListingSource interface {
	FetchListing(ctx context.Context) ([]models.Asset, error)
}

type Options struct {
	FetchTimeout time.Duration
	PageSize     int
	Sort         pipeline.SortKey
	Metrics      *metrics.Metrics
}

// View is the listing view-model handed to the rendering layer.
type View struct {
	Version    uint64         `json:"version"`
	State      State          `json:"state"`
	Query      pipeline.Query `json:"query"`
	Derived    pipeline.View  `json:"view"`
	Empty      bool           `json:"empty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  string         `json:"errorKind,omitempty"`
	CacheValid bool           `json:"cacheValid"`
	FetchedAt  *time.Time     `json:"fetchedAt,omitempty"`
}

type Controller struct {
	src     ListingSource
	store   *cache.Store
	timeout time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu        sync.Mutex
	version   uint64
	state     State
	query     pipeline.Query
	assets    []models.Asset
	fetchedAt time.Time
	derived   pipeline.View
	err       error
	observers []func(View)
}

func NewController(src ListingSource, store *cache.Store, opts Options, log zerolog.Logger) *Controller {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	c := &Controller{
		src:     src,
		store:   store,
		timeout: opts.FetchTimeout,
		metrics: opts.Metrics,
		log:     log.With().Str("component", "dashboard").Logger(),
		state:   Idle,
		query:   pipeline.NewQuery(opts.Sort, opts.PageSize),
	}
	c.derived = pipeline.Compute(nil, c.query)
	return c
}

// Observe registers fn to receive every new view. Observers run while the
// controller is locked, in transition order; they must return quickly and
// must not call back into the controller.
func (c *Controller) Observe(fn func(View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Mount is the first display of the listing. From Idle a valid cache entry
// is reused without touching the network; in every other state, or on a
// cache miss, the listing is fetched.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Idle {
		if entry, ok := c.store.Lookup(); ok {
			defer c.mu.Unlock()
			c.metrics.CacheLookup(true)
			c.log.Debug().Dur("age", entry.Age(c.store.Now())).Int("assets", len(entry.Assets)).Msg("using cached listing")
			c.assets = entry.Assets
			c.fetchedAt = entry.FetchedAt
			c.err = nil
			c.transitionLocked(Ready)
			return nil
		}
	}
	c.mu.Unlock()

	c.metrics.CacheLookup(false)
	return c.load(ctx)
}

// Refresh always fetches, whatever the cache state. It is the retry path
// out of Failed.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.load(ctx)
}

func (c *Controller) load(ctx context.Context) error {
	c.mu.Lock()
	c.err = nil
	c.transitionLocked(Loading)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	assets, err := c.src.FetchListing(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if _, ok := feed.KindOf(err); !ok {
			err = &feed.Error{Kind: feed.Timeout, Op: "fetch listing", Err: err}
		}
	}

	// Applied under the lock in completion order: when fetches overlap,
	// the one that finishes last wins.
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.err = err
		c.assets = nil
		c.log.Error().Err(err).Str("kind", kindOf(err)).Dur("elapsed", time.Since(start)).Msg("listing fetch failed")
		c.transitionLocked(Failed)
		return err
	}

	entry := c.store.Put(assets)
	c.assets = entry.Assets
	c.fetchedAt = entry.FetchedAt
	c.log.Info().Int("assets", len(assets)).Dur("elapsed", time.Since(start)).Msg("listing refreshed")
	c.transitionLocked(Ready)
	return nil
}

// Dispatch applies a query change and recomputes the view. It never fetches.
func (c *Controller) Dispatch(act pipeline.Action) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = pipeline.Reduce(c.query, act, c.derived.TotalItems)
	c.recomputeLocked()
	return c.publishLocked()
}

func (c *Controller) SetFilter(text string) View { return c.Dispatch(pipeline.SetFilter{Text: text}) }

func (c *Controller) SetSort(key pipeline.SortKey) View {
	return c.Dispatch(pipeline.SetSort{Key: key})
}

func (c *Controller) SetPage(page int) View { return c.Dispatch(pipeline.SetPage{Page: page}) }

func (c *Controller) SetPageSize(size int) View { return c.Dispatch(pipeline.SetPageSize{Size: size}) }

// View returns the current view-model.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) transitionLocked(s State) {
	if s != c.state {
		c.log.Debug().Str("from", string(c.state)).Str("to", string(s)).Msg("state change")
		c.metrics.DashboardTransition(string(s))
	}
	c.state = s
	c.recomputeLocked()
	c.publishLocked()
}

// recomputeLocked rebuilds the derived view and pulls a page that fell off
// the end (after a smaller fetch or a stray SetPage) back onto the last page.
func (c *Controller) recomputeLocked() {
	c.derived = pipeline.Compute(c.assets, c.query)
	if c.query.Page > max(c.derived.TotalPages, 1) {
		c.query.Page = max(c.derived.TotalPages, 1)
		c.derived = pipeline.Compute(c.assets, c.query)
	}
}

func (c *Controller) publishLocked() View {
	c.version++
	v := c.snapshotLocked()
	for _, fn := range c.observers {
		fn(v)
	}
	return v
}

func (c *Controller) snapshotLocked() View {
	v := View{
		Version:    c.version,
		State:      c.state,
		Query:      c.query,
		CacheValid: c.store.Valid(),
		Derived:    pipeline.Compute(nil, c.query),
	}
	switch c.state {
	case Ready:
		v.Derived = c.derived
		v.Empty = len(c.assets) == 0
		at := c.fetchedAt
		v.FetchedAt = &at
	case Failed:
		v.Error = c.err.Error()
		v.ErrorKind = kindOf(c.err)
	}
	return v
}

func kindOf(err error) string {
	if k, ok := feed.KindOf(err); ok {
		return k.String()
	}
	return feed.NetworkFailure.String()
}
