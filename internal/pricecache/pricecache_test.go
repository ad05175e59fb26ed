package pricecache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Heesho/miner-miniapp/internal/logging"
)

func TestCache_EvictsOnRead(t *testing.T) {
	mock := clock.NewMock()
	c := New(mock, time.Minute)

	c.Set(AssetETH, decimal.NewFromInt(3_000))
	p, ok := c.Get(AssetETH)
	require.True(t, ok)
	require.True(t, p.Equal(decimal.NewFromInt(3_000)))

	mock.Add(59 * time.Second)
	_, ok = c.Get(AssetETH)
	require.True(t, ok)

	mock.Add(time.Second)
	require.Equal(t, 1, c.Len())
	_, ok = c.Get(AssetETH)
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestCache_Miss(t *testing.T) {
	c := New(clock.NewMock(), time.Minute)
	_, ok := c.Get("unknown")
	require.False(t, ok)
}

func newFeed(t *testing.T, h http.Handler, c *Cache) *Feed {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewFeed(logging.Discard(), srv.URL, c, map[string]decimal.Decimal{
		AssetETH:   decimal.NewFromInt(3_500),
		AssetDonut: decimal.RequireFromString("0.001"),
	})
}

func TestFeed_FetchesThenCaches(t *testing.T) {
	var hits atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, "/api/v3/simple/price", r.URL.Path)
		require.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		id := r.URL.Query().Get("ids")
		fmt.Fprintf(w, `{%q:{"usd":2875.42}}`, id)
	})
	mock := clock.NewMock()
	f := newFeed(t, h, New(mock, time.Minute))

	p := f.EthUSD(context.Background())
	require.True(t, p.Equal(decimal.RequireFromString("2875.42")), "got %s", p)
	f.EthUSD(context.Background())
	require.Equal(t, int32(1), hits.Load())

	mock.Add(time.Minute)
	f.EthUSD(context.Background())
	require.Equal(t, int32(2), hits.Load())
}

func TestFeed_FallsBackToDefault(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c := New(clock.NewMock(), time.Minute)
	f := newFeed(t, h, c)

	p := f.DonutUSD(context.Background())
	require.True(t, p.Equal(decimal.RequireFromString("0.001")))
	require.Zero(t, c.Len())
}

func TestFeed_MissingAssetFallsBack(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	f := newFeed(t, h, New(clock.NewMock(), time.Minute))

	require.True(t, f.EthUSD(context.Background()).Equal(decimal.NewFromInt(3_500)))
}
