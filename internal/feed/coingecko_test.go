package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *CoinGeckoClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewCoinGeckoClient(Options{BaseURL: srv.URL, Timeout: 2 * time.Second}, zerolog.Nop())
}

func requireKind(t *testing.T, err error, want Kind) {
	t.Helper()
	require.Error(t, err)
	got, ok := KindOf(err)
	require.True(t, ok, "not a feed error: %v", err)
	assert.Equal(t, want, got, "error: %v", err)
}

func TestFetchListing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "market_cap_desc", r.URL.Query().Get("order"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		w.Write([]byte(`[
			{"id":"bitcoin","name":"Bitcoin","symbol":"btc","current_price":67000.5,"market_cap":1.3e12,
			 "total_volume":2.8e10,"price_change_percentage_24h":1.5,"market_cap_rank":1,"image":"https://img/btc.png"},
			{"id":"newcoin","name":"New Coin","symbol":"new","current_price":null,"market_cap":null,
			 "total_volume":null,"price_change_percentage_24h":null,"market_cap_rank":null}
		]`))
	})

	assets, err := client.FetchListing(context.Background())
	require.NoError(t, err)
	require.Len(t, assets, 2)

	assert.Equal(t, "bitcoin", assets[0].ID)
	require.NotNil(t, assets[0].CurrentPrice)
	assert.Equal(t, 67000.5, *assets[0].CurrentPrice)
	require.NotNil(t, assets[0].MarketCapRank)
	assert.Equal(t, 1, *assets[0].MarketCapRank)

	assert.Nil(t, assets[1].MarketCap)
	assert.Nil(t, assets[1].MarketCapRank)
}

func TestFetchListing_EmptyArrayIsNotAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	assets, err := client.FetchListing(context.Background())
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestFetchListing_BadResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":{"error_code":429}}`))
	})
	_, err := client.FetchListing(context.Background())
	requireKind(t, err, BadResponse)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusTooManyRequests, fe.Status)
	assert.Contains(t, err.Error(), "429")
}

func TestFetchListing_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":   `<html>oops</html>`,
		"object":     `{"error":"nope"}`,
		"null":       `null`,
		"missing id": `[{"name":"Anon"}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := client.FetchListing(context.Background())
			requireKind(t, err, MalformedPayload)
		})
	}
}

func TestFetchListing_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewCoinGeckoClient(Options{BaseURL: srv.URL, Timeout: 5 * time.Second}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.FetchListing(ctx)
	requireKind(t, err, Timeout)
}

func TestFetchListing_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewCoinGeckoClient(Options{BaseURL: url, Timeout: time.Second}, zerolog.Nop())
	_, err := client.FetchListing(context.Background())
	requireKind(t, err, NetworkFailure)
}

func TestFetchAsset(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/ethereum", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("market_data"))
		w.Write([]byte(`{
			"id":"ethereum","symbol":"eth","name":"Ethereum","market_cap_rank":2,
			"image":{"thumb":"https://img/eth-thumb.png","small":"https://img/eth-small.png"},
			"market_data":{
				"current_price":{"usd":3500.25,"eur":3200},
				"market_cap":{"usd":4.2e11},
				"total_volume":{"usd":1.5e10},
				"price_change_percentage_24h":-0.8
			}
		}`))
	})

	d, err := client.FetchAsset(context.Background(), "ethereum")
	require.NoError(t, err)
	assert.Equal(t, "Ethereum", d.Name)
	assert.Equal(t, "https://img/eth-thumb.png", d.Image)
	require.NotNil(t, d.CurrentPrice)
	assert.Equal(t, 3500.25, *d.CurrentPrice)
	require.NotNil(t, d.PriceChange24h)
	assert.Equal(t, -0.8, *d.PriceChange24h)
}

func TestFetchAsset_MissingMarketDataIsTolerated(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"obscure","symbol":"obs","name":"Obscure"}`))
	})
	d, err := client.FetchAsset(context.Background(), "obscure")
	require.NoError(t, err)
	assert.Nil(t, d.CurrentPrice)
	assert.Nil(t, d.MarketCapRank)
}

func TestFetchAsset_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"coin not found"}`))
	})
	_, err := client.FetchAsset(context.Background(), "nope")
	requireKind(t, err, BadResponse)
}

func TestFetchSeries(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/market_chart", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		w.Write([]byte(`{"prices":[[1700000000000,100.5],[1700003600000,101.25]],"market_caps":[],"total_volumes":[]}`))
	})

	series, err := client.FetchSeries(context.Background(), "bitcoin", 7)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, int64(1700000000000), series[0].Timestamp)
	assert.Equal(t, 101.25, series[1].Value)
}

func TestFetchSeries_Malformed(t *testing.T) {
	cases := map[string]string{
		"missing prices": `{"market_caps":[]}`,
		"bad pair":       `{"prices":[[1700000000000]]}`,
		"string pair":    `{"prices":[["a","b"]]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := client.FetchSeries(context.Background(), "bitcoin", 7)
			requireKind(t, err, MalformedPayload)
		})
	}
}

func TestKindOf(t *testing.T) {
	_, ok := KindOf(assert.AnError)
	assert.False(t, ok)

	k, ok := KindOf(context.DeadlineExceeded)
	assert.True(t, ok)
	assert.Equal(t, Timeout, k)

	assert.Equal(t, "malformed_payload", MalformedPayload.String())
}
