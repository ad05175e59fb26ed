// Package quote derives trade estimates, minimum-output bounds and required
// counterpart amounts from pool reserves and aggregator quotes.
package quote

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	"github.com/Heesho/miner-miniapp/internal/metric"
	"github.com/Heesho/miner-miniapp/pkg/uniswapv2"
)

// Slippage bounds, in percent.
const (
	MinSlippagePct    = 2
	MaxSlippagePct    = 49
	slippageBufferPct = 2

	// LPMinPct is the share of each desired deposit amount accepted as the
	// minimum when adding liquidity.
	LPMinPct = 99

	tokenDecimals = 18
)

var hundred = decimal.NewFromInt(100)

// Reference prices used when the provider omits USD amounts. Values are USD
// per whole token; zero means unknown.
type Reference struct {
	SellUSD decimal.Decimal
	BuyUSD  decimal.Decimal
}

// ReferencePrice returns the pool price when known, else the last known
// token price.
func ReferencePrice(pool decimal.NullDecimal, lastKnown decimal.Decimal) decimal.Decimal {
	if pool.Valid && pool.Decimal.IsPositive() {
		return pool.Decimal
	}
	return lastKnown
}

// Engine wraps a Provider with slippage policy and quote freshness checks.
type Engine struct {
	logger   *slog.Logger
	provider Provider
	clock    clock.Clock
	ttl      time.Duration
}

// NewEngine builds an Engine. Firm quotes expire ttl after they are fetched.
func NewEngine(logger *slog.Logger, p Provider, c clock.Clock, ttl time.Duration) *Engine {
	if c == nil {
		c = clock.New()
	}
	return &Engine{logger: logger, provider: p, clock: c, ttl: ttl}
}

// QuotePrice returns a price-only estimate.
func (e *Engine) QuotePrice(ctx context.Context, req Request) (*Estimate, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	est, err := e.provider.Price(ctx, req)
	observe("price", err)
	if err != nil {
		e.logger.Debug("price quote failed", "sell", req.SellToken.Hex(), "buy", req.BuyToken.Hex(), "err", err)
		return nil, err
	}
	return est, nil
}

// QuoteFirm returns an executable quote for req.Taker bounded by
// req.SlippageBps, stamped with a deadline.
func (e *Engine) QuoteFirm(ctx context.Context, req Request) (*Quote, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	q, err := e.provider.Firm(ctx, req)
	observe("firm", err)
	if err != nil {
		e.logger.Debug("firm quote failed", "sell", req.SellToken.Hex(), "buy", req.BuyToken.Hex(), "err", err)
		return nil, err
	}
	q.Deadline = e.clock.Now().Add(e.ttl)
	return q, nil
}

// Check rejects q with ErrStaleQuote when its deadline has passed or it was
// issued for a different request.
func (e *Engine) Check(q *Quote, want Key) error {
	if q == nil {
		return ErrStaleQuote
	}
	if q.Key() != want {
		return ErrStaleQuote
	}
	if !q.Deadline.IsZero() && !e.clock.Now().Before(q.Deadline) {
		return ErrStaleQuote
	}
	return nil
}

func validate(req Request) error {
	if req.SellAmount == nil || req.SellAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if req.SellToken == req.BuyToken {
		return ErrSameToken
	}
	return nil
}

func observe(kind string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNoLiquidity):
		result = "no_liquidity"
	case err != nil:
		result = "error"
	}
	metric.QuoteRequests.WithLabelValues(kind, result).Inc()
}

// usdAmounts returns the USD value of both sides, preferring provider
// figures and falling back to reference prices. ok is false when the input
// side cannot be valued.
func usdAmounts(est *Estimate, ref Reference) (in, out decimal.Decimal, ok bool) {
	if est == nil || est.BuyAmount == nil || est.SellAmount == nil || est.SellAmount.Sign() <= 0 {
		return decimal.Zero, decimal.Zero, false
	}
	if est.SellAmountUSD != nil && est.BuyAmountUSD != nil &&
		!est.SellAmountUSD.IsZero() && !est.BuyAmountUSD.IsZero() {
		in, out = *est.SellAmountUSD, *est.BuyAmountUSD
	} else {
		in = decimal.NewFromBigInt(est.SellAmount, -tokenDecimals).Mul(ref.SellUSD)
		out = decimal.NewFromBigInt(est.BuyAmount, -tokenDecimals).Mul(ref.BuyUSD)
	}
	if in.IsZero() {
		return decimal.Zero, decimal.Zero, false
	}
	return in, out, true
}

// PriceImpactPct returns max(0, (in - out) / in * 100), or false when the
// input side has no USD value.
func PriceImpactPct(est *Estimate, ref Reference) (decimal.Decimal, bool) {
	in, out, ok := usdAmounts(est, ref)
	if !ok {
		return decimal.Zero, false
	}
	impact := in.Sub(out).Div(in).Mul(hundred)
	if impact.IsNegative() {
		impact = decimal.Zero
	}
	return impact, true
}

// SlippagePct maps a price impact to the allowed slippage percent:
// ceil(max(0, impact)) + 2, clamped to [2, 49].
func SlippagePct(impact decimal.Decimal) int64 {
	if impact.IsNegative() {
		impact = decimal.Zero
	}
	pct := impact.Ceil().IntPart() + slippageBufferPct
	if pct < MinSlippagePct {
		return MinSlippagePct
	}
	if pct > MaxSlippagePct {
		return MaxSlippagePct
	}
	return pct
}

// ComputeSlippageBps returns the allowed slippage for est in basis points.
// Without a usable USD valuation the minimum applies.
func ComputeSlippageBps(est *Estimate, ref Reference) int64 {
	impact, ok := PriceImpactPct(est, ref)
	if !ok {
		return MinSlippagePct * 100
	}
	return SlippagePct(impact) * 100
}

// MinReceived is buyAmount * (10000 - bps) / 10000. It is advisory: the
// enforced bound is whatever the firm transaction encodes.
func MinReceived(buyAmount *big.Int, bps int64) *big.Int {
	if buyAmount == nil {
		return new(big.Int)
	}
	return uniswapv2.ApplyBps(new(big.Int), buyAmount, bps)
}

// RequiredCounterpart returns the paired amount needed to deposit desired
// units, with the 0.5% drift margin.
func RequiredCounterpart(desired, reserveTarget, reserveCounterpart *big.Int) *big.Int {
	if desired == nil || reserveTarget == nil || reserveCounterpart == nil {
		return new(big.Int)
	}
	return uniswapv2.RequiredCounterpart(new(big.Int), desired, reserveTarget, reserveCounterpart)
}

// EstimateLPShare returns desiredA * totalSupply / reserveA. No margin is
// applied.
func EstimateLPShare(desiredA, totalSupply, reserveA *big.Int) *big.Int {
	if desiredA == nil || reserveA == nil {
		return new(big.Int)
	}
	return uniswapv2.LPShare(new(big.Int), desiredA, totalSupply, reserveA)
}

// LPMin returns amount * 99 / 100, the minimum accepted for a deposit leg.
func LPMin(amount *big.Int) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	v := new(big.Int).Mul(amount, big.NewInt(LPMinPct))
	return v.Div(v, big.NewInt(100))
}
