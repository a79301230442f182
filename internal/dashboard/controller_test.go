package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micko4develop/crypto-dash/internal/cache"
	"github.com/micko4develop/crypto-dash/internal/feed"
	"github.com/micko4develop/crypto-dash/internal/models"
	"github.com/micko4develop/crypto-dash/internal/pipeline"
)

type sourceFunc struct {
	calls atomic.Int32
	fn    func(ctx context.Context, call int) ([]models.Asset, error)
}

func (s *sourceFunc) FetchListing(ctx context.Context) ([]models.Asset, error) {
	n := int(s.calls.Add(1))
	return s.fn(ctx, n)
}

func returning(assets []models.Asset) *sourceFunc {
	return &sourceFunc{fn: func(context.Context, int) ([]models.Asset, error) { return assets, nil }}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func threeCoins() []models.Asset {
	f := models.Float
	return []models.Asset{
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "btc", MarketCap: f(1e9)},
		{ID: "ethereum", Name: "Ethereum", Symbol: "eth", MarketCap: f(4e8)},
		{ID: "cardano", Name: "Cardano", Symbol: "ada", MarketCap: f(2e7)},
	}
}

func manyCoins(n int) []models.Asset {
	out := make([]models.Asset, n)
	for i := range out {
		out[i] = models.Asset{ID: fmt.Sprintf("coin-%02d", i), Name: fmt.Sprintf("Coin %d", i), MarketCap: models.Float(float64(1000 - i))}
	}
	return out
}

func pageIDs(v View) []string {
	out := make([]string, len(v.Derived.Page))
	for i, a := range v.Derived.Page {
		out[i] = a.ID
	}
	return out
}

func newController(src ListingSource, clk *clock) (*Controller, *cache.Store) {
	store := cache.NewStore(time.Minute, clk.Now)
	return NewController(src, store, Options{FetchTimeout: time.Second}, zerolog.Nop()), store
}

func TestMount_FetchesOnEmptyCache(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	src := returning(threeCoins())
	c, store := newController(src, clk)

	assert.Equal(t, Idle, c.State())
	require.NoError(t, c.Mount(context.Background()))

	v := c.View()
	assert.Equal(t, Ready, v.State)
	assert.Equal(t, []string{"bitcoin", "ethereum", "cardano"}, pageIDs(v))
	assert.Equal(t, 1, v.Derived.TotalPages)
	assert.Equal(t, 3, v.Derived.TotalItems)
	assert.True(t, v.CacheValid)
	assert.EqualValues(t, 1, src.calls.Load())

	entry, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, clk.Now(), entry.FetchedAt)
}

func TestMount_ValidCacheSkipsNetwork(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	src := returning(threeCoins())
	c, store := newController(src, clk)
	store.Put(threeCoins()[:2])

	clk.Advance(30 * time.Second)
	require.NoError(t, c.Mount(context.Background()))

	assert.EqualValues(t, 0, src.calls.Load())
	v := c.View()
	assert.Equal(t, Ready, v.State)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, pageIDs(v))
}

func TestMount_ExpiredCacheFetches(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	src := returning(threeCoins())
	c, store := newController(src, clk)
	store.Put(threeCoins()[:1])

	clk.Advance(time.Minute)
	require.NoError(t, c.Mount(context.Background()))
	assert.EqualValues(t, 1, src.calls.Load())
	assert.Len(t, c.View().Derived.Page, 3)
}

func TestRefresh_FailureHidesStaleData(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	boom := &feed.Error{Kind: feed.BadResponse, Op: "fetch listing", Status: 503, Err: errors.New("HTTP 503")}
	src := &sourceFunc{fn: func(_ context.Context, call int) ([]models.Asset, error) {
		if call == 1 {
			return threeCoins(), nil
		}
		return nil, boom
	}}
	c, store := newController(src, clk)

	require.NoError(t, c.Mount(context.Background()))
	before, _ := store.Get()

	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, boom)

	v := c.View()
	assert.Equal(t, Failed, v.State)
	assert.Equal(t, "bad_response", v.ErrorKind)
	assert.Contains(t, v.Error, "503")
	assert.Empty(t, v.Derived.Page, "stale items must not be shown")
	assert.Nil(t, v.FetchedAt)

	after, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, before, after, "cache untouched by failure")
}

func TestMount_AfterFailedRefreshFetchesAgain(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	boom := &feed.Error{Kind: feed.BadResponse, Op: "fetch listing", Status: 503, Err: errors.New("HTTP 503")}
	src := &sourceFunc{fn: func(_ context.Context, call int) ([]models.Asset, error) {
		if call == 1 {
			return threeCoins(), nil
		}
		return nil, boom
	}}
	c, store := newController(src, clk)

	require.NoError(t, c.Mount(context.Background()))
	require.ErrorIs(t, c.Refresh(context.Background()), boom)
	require.True(t, store.Valid(), "cache still fresh")

	err := c.Mount(context.Background())
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 3, src.calls.Load())

	v := c.View()
	assert.Equal(t, Failed, v.State)
	assert.Empty(t, v.Derived.Page)
}

func TestMount_CacheHitLogsAgeFromStoreClock(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	var buf bytes.Buffer
	store := cache.NewStore(time.Minute, clk.Now)
	c := NewController(returning(threeCoins()), store, Options{FetchTimeout: time.Second}, zerolog.New(&buf).Level(zerolog.DebugLevel))
	store.Put(threeCoins())

	clk.Advance(30 * time.Second)
	require.NoError(t, c.Mount(context.Background()))
	assert.Contains(t, buf.String(), `"age":30000`)
}

func TestRefresh_RetryFromFailed(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	src := &sourceFunc{fn: func(_ context.Context, call int) ([]models.Asset, error) {
		if call == 1 {
			return nil, &feed.Error{Kind: feed.NetworkFailure, Op: "fetch listing", Err: errors.New("connection refused")}
		}
		return threeCoins(), nil
	}}
	c, _ := newController(src, clk)

	require.Error(t, c.Mount(context.Background()))
	assert.Equal(t, Failed, c.State())
	assert.Equal(t, "network_failure", c.View().ErrorKind)

	require.NoError(t, c.Refresh(context.Background()))
	v := c.View()
	assert.Equal(t, Ready, v.State)
	assert.Empty(t, v.Error)
	assert.Len(t, v.Derived.Page, 3)
}

func TestLoad_TimeoutIsReported(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	src := &sourceFunc{fn: func(ctx context.Context, _ int) ([]models.Asset, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	store := cache.NewStore(time.Minute, clk.Now)
	c := NewController(src, store, Options{FetchTimeout: 50 * time.Millisecond}, zerolog.Nop())

	err := c.Mount(context.Background())
	require.Error(t, err)
	v := c.View()
	assert.Equal(t, Failed, v.State)
	assert.Equal(t, "timeout", v.ErrorKind)
}

func TestLoad_EmptyResultIsReadyAndEmpty(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	c, store := newController(returning([]models.Asset{}), clk)

	require.NoError(t, c.Mount(context.Background()))
	v := c.View()
	assert.Equal(t, Ready, v.State)
	assert.True(t, v.Empty)
	assert.Equal(t, 0, v.Derived.TotalPages)
	assert.Nil(t, v.Derived.Controls)
	assert.False(t, store.Valid(), "empty entry never counts as fresh")
}

func TestQueryChangesNeverFetch(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	src := returning(manyCoins(25))
	c, _ := newController(src, clk)
	require.NoError(t, c.Mount(context.Background()))

	v := c.SetPage(3)
	assert.Equal(t, 3, v.Query.Page)
	assert.Len(t, v.Derived.Page, 5)

	v = c.SetFilter("coin 1")
	assert.Equal(t, 1, v.Query.Page, "filter change resets page")
	// "Coin 1" and "Coin 10".."Coin 19"
	assert.Equal(t, 11, v.Derived.TotalItems)

	v = c.SetSort(pipeline.MarketCapAsc)
	assert.Equal(t, "coin-19", v.Derived.Page[0].ID)

	v = c.SetPageSize(5)
	assert.Equal(t, 3, v.Derived.TotalPages)

	assert.EqualValues(t, 1, src.calls.Load())
}

func TestPageBeyondRangeIsCorrected(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	src := &sourceFunc{fn: func(_ context.Context, call int) ([]models.Asset, error) {
		if call == 1 {
			return manyCoins(40), nil
		}
		return manyCoins(12), nil
	}}
	c, _ := newController(src, clk)
	require.NoError(t, c.Mount(context.Background()))

	v := c.SetPage(4)
	assert.Equal(t, 4, v.Query.Page)

	require.NoError(t, c.Refresh(context.Background()))
	v = c.View()
	assert.Equal(t, 2, v.Query.Page)
	assert.Len(t, v.Derived.Page, 2)

	v = c.SetPage(99)
	assert.Equal(t, 2, v.Query.Page)
}

func TestOverlappingRefreshes_LastCompletionWins(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	releaseFirst := make(chan struct{})
	firstStarted := make(chan struct{})
	src := &sourceFunc{fn: func(_ context.Context, call int) ([]models.Asset, error) {
		if call == 1 {
			close(firstStarted)
			<-releaseFirst
			return threeCoins()[:1], nil
		}
		return threeCoins(), nil
	}}
	c, _ := newController(src, clk)

	done := make(chan error)
	go func() { done <- c.Refresh(context.Background()) }()
	<-firstStarted

	require.NoError(t, c.Refresh(context.Background()))
	assert.Len(t, c.View().Derived.Page, 3)

	close(releaseFirst)
	require.NoError(t, <-done)

	// the first request finished last, so its result is the one shown
	assert.Equal(t, []string{"bitcoin"}, pageIDs(c.View()))
}

func TestObserversSeeTransitionsInOrder(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	c, _ := newController(returning(threeCoins()), clk)

	var states []State
	var versions []uint64
	c.Observe(func(v View) {
		states = append(states, v.State)
		versions = append(versions, v.Version)
	})

	require.NoError(t, c.Mount(context.Background()))
	c.SetFilter("eth")

	assert.Equal(t, []State{Loading, Ready, Ready}, states)
	assert.IsIncreasing(t, versions)
}
