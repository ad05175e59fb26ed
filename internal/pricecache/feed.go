package pricecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/sling"
	"github.com/shopspring/decimal"
)

// CoinGecko asset ids.
const (
	AssetETH   = "ethereum"
	AssetDonut = "donut-2"
)

const (
	defaultMaxIdleConns    = 10
	defaultIdleConnTimeout = 2 * time.Second
	defaultRequestTimeout  = 5 * time.Second
)

var ErrPriceUnavailable = errors.New("price unavailable")

type simplePriceParams struct {
	IDs          string `url:"ids"`
	VsCurrencies string `url:"vs_currencies"`
}

// Feed resolves USD prices through the cache, falling back to fixed
// defaults when the API cannot answer.
type Feed struct {
	logger   *slog.Logger
	client   *sling.Sling
	cache    *Cache
	defaults map[string]decimal.Decimal
}

// NewFeed builds a Feed against a CoinGecko-compatible baseURL.
func NewFeed(logger *slog.Logger, baseURL string, cache *Cache, defaults map[string]decimal.Decimal) *Feed {
	tr := &http.Transport{
		MaxIdleConns:       defaultMaxIdleConns,
		IdleConnTimeout:    defaultIdleConnTimeout,
		DisableCompression: true,
	}
	httpClient := &http.Client{Transport: tr, Timeout: defaultRequestTimeout}
	return &Feed{
		logger:   logger,
		client:   sling.New().Base(strings.TrimRight(baseURL, "/") + "/").Client(httpClient),
		cache:    cache,
		defaults: defaults,
	}
}

// Price returns the USD price of asset. It never fails: on any error the
// default for asset is returned and nothing is cached.
func (f *Feed) Price(ctx context.Context, asset string) decimal.Decimal {
	if p, ok := f.cache.Get(asset); ok {
		return p
	}
	p, err := f.fetch(ctx, asset)
	if err != nil {
		f.logger.Warn("price fetch failed, using default", "asset", asset, "err", err)
		return f.defaults[asset]
	}
	f.cache.Set(asset, p)
	return p
}

// EthUSD is Price(AssetETH).
func (f *Feed) EthUSD(ctx context.Context) decimal.Decimal { return f.Price(ctx, AssetETH) }

// DonutUSD is Price(AssetDonut).
func (f *Feed) DonutUSD(ctx context.Context) decimal.Decimal { return f.Price(ctx, AssetDonut) }

func (f *Feed) fetch(ctx context.Context, asset string) (decimal.Decimal, error) {
	req, err := f.client.New().Get("api/v3/simple/price").
		QueryStruct(simplePriceParams{IDs: asset, VsCurrencies: "usd"}).Request()
	if err != nil {
		return decimal.Zero, err
	}
	var body map[string]map[string]decimal.Decimal
	res, err := f.client.Do(req.WithContext(ctx), &body, nil)
	if err != nil {
		return decimal.Zero, err
	}
	if res.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: status %d", ErrPriceUnavailable, res.StatusCode)
	}
	p, ok := body[asset]["usd"]
	if !ok || !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, asset)
	}
	return p, nil
}
