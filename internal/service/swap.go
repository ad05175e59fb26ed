package service

import (
	"context"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/Heesho/miner-miniapp/internal/batch"
	"github.com/Heesho/miner-miniapp/internal/quote"
)

// Direction is the side of a unit swap.
type Direction string

const (
	// DirectionBuy sells ETH for units.
	DirectionBuy Direction = "buy"
	// DirectionSell sells units for ETH.
	DirectionSell Direction = "sell"
)

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionBuy, DirectionSell:
		return d, nil
	default:
		return "", ErrInvalidDirection
	}
}

// Quoter is the quote engine seen by the swap flow.
type Quoter interface {
	QuotePrice(ctx context.Context, req quote.Request) (*quote.Estimate, error)
	QuoteFirm(ctx context.Context, req quote.Request) (*quote.Quote, error)
	Check(q *quote.Quote, want quote.Key) error
}

// SwapParams are the addresses of the swap flow. Taker is the signer.
type SwapParams struct {
	Unit  common.Address
	Taker common.Address
}

// Preview is a price-only swap estimate with the slippage it would get.
type Preview struct {
	Direction      Direction        `json:"direction"`
	SellToken      common.Address   `json:"sellToken"`
	BuyToken       common.Address   `json:"buyToken"`
	SellAmount     *big.Int         `json:"sellAmount"`
	BuyAmount      *big.Int         `json:"buyAmount"`
	SlippageBps    int64            `json:"slippageBps"`
	PriceImpactPct *decimal.Decimal `json:"priceImpactPct,omitempty"`
	MinReceived    *big.Int         `json:"minReceived"`
}

// SwapService swaps units against ETH through the quote engine.
type SwapService struct {
	BaseService
	env    Env
	engine Quoter
	flow   *Flow
	params SwapParams

	mu   sync.Mutex
	last *quote.Quote
}

func NewSwapService(logger *slog.Logger, env Env, engine Quoter, flow *Flow, params SwapParams) *SwapService {
	return &SwapService{
		BaseService: BaseService{logger: logger},
		env:         env,
		engine:      engine,
		flow:        flow,
		params:      params,
	}
}

func (s *SwapService) request(dir Direction, amount *big.Int) quote.Request {
	req := quote.Request{SellAmount: amount, Taker: s.params.Taker}
	if dir == DirectionBuy {
		req.SellToken, req.BuyToken = quote.NativeToken, s.params.Unit
	} else {
		req.SellToken, req.BuyToken = s.params.Unit, quote.NativeToken
	}
	return req
}

// Reference returns the USD prices used to value a swap when the provider
// reports none. The unit price comes from the pool and falls back to the
// last price the rig reported.
func (s *SwapService) Reference(ctx context.Context, dir Direction) quote.Reference {
	ethUSD := s.env.Prices.EthUSD(ctx)
	donutUSD := s.env.Prices.DonutUSD(ctx)

	var lastKnown decimal.Decimal
	if rig := s.env.Snapshots.Rig(); rig != nil {
		lastKnown = fixed(rig.UnitPrice).Mul(donutUSD)
	}
	unitUSD := quote.ReferencePrice(s.poolUnitPrice(donutUSD), lastKnown)

	if dir == DirectionBuy {
		return quote.Reference{SellUSD: ethUSD, BuyUSD: unitUSD}
	}
	return quote.Reference{SellUSD: unitUSD, BuyUSD: ethUSD}
}

// poolUnitPrice is the unit price implied by the unit/DONUT reserves.
func (s *SwapService) poolUnitPrice(donutUSD decimal.Decimal) decimal.NullDecimal {
	pool := s.env.Snapshots.Pool()
	if pool == nil || pool.Empty() {
		return decimal.NullDecimal{}
	}
	reserveUnit, reserveDonut, err := pool.Oriented(s.params.Unit)
	if err != nil {
		return decimal.NullDecimal{}
	}
	perUnit := decimal.NewFromBigInt(reserveDonut, 0).Div(decimal.NewFromBigInt(reserveUnit, 0))
	return decimal.NewNullDecimal(perUnit.Mul(donutUSD))
}

// Preview returns a price-only estimate for selling amount in direction dir.
func (s *SwapService) Preview(ctx context.Context, dir Direction, amount *big.Int) (*Preview, error) {
	req := s.request(dir, amount)
	est, err := s.engine.QuotePrice(ctx, req)
	if err != nil {
		return nil, err
	}
	ref := s.Reference(ctx, dir)
	bps := quote.ComputeSlippageBps(est, ref)

	p := &Preview{
		Direction:   dir,
		SellToken:   est.SellToken,
		BuyToken:    est.BuyToken,
		SellAmount:  est.SellAmount,
		BuyAmount:   est.BuyAmount,
		SlippageBps: bps,
		MinReceived: quote.MinReceived(est.BuyAmount, bps),
	}
	if impact, ok := quote.PriceImpactPct(est, ref); ok {
		p.PriceImpactPct = &impact
	}
	return p, nil
}

// Quote fetches a firm quote bounded by the slippage of a fresh preview
// and keeps it for the next Swap.
func (s *SwapService) Quote(ctx context.Context, dir Direction, amount *big.Int) (*quote.Quote, error) {
	preview, err := s.Preview(ctx, dir, amount)
	if err != nil {
		return nil, err
	}
	req := s.request(dir, amount)
	req.SlippageBps = preview.SlippageBps

	q, err := s.engine.QuoteFirm(ctx, req)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.last = q
	s.mu.Unlock()
	return q, nil
}

// PrepareSwap builds the job for the kept quote. The quote must match dir
// and amount and must not have expired. It is consumed either way.
func (s *SwapService) PrepareSwap(dir Direction, amount *big.Int) ([]batch.Call, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	rig := s.env.Snapshots.Rig()
	if rig == nil {
		return nil, ErrNotReady
	}

	s.mu.Lock()
	q := s.last
	s.last = nil
	s.mu.Unlock()

	if err := s.engine.Check(q, s.request(dir, amount).Key()); err != nil {
		return nil, err
	}
	if q.Transaction == nil {
		return nil, quote.ErrMissingTx
	}

	if dir == DirectionBuy {
		if !covers(rig.EthBalance, amount) {
			return nil, ErrInsufficientBalance
		}
		return []batch.Call{*q.Transaction}, nil
	}

	if !covers(rig.UnitBalance, amount) {
		return nil, ErrInsufficientBalance
	}
	approve, err := batch.EncodeApprove(s.params.Unit, q.Transaction.Target(), amount)
	if err != nil {
		return nil, err
	}
	return []batch.Call{approve, *q.Transaction}, nil
}

// Swap submits the job for the kept quote.
func (s *SwapService) Swap(_ context.Context, dir Direction, amount *big.Int) error {
	calls, err := s.PrepareSwap(dir, amount)
	if err != nil {
		return err
	}
	s.logger.Info("submitting swap", "direction", string(dir), "amount", amount.String())
	return s.flow.Submit(calls)
}

// Status reports the swap flow.
func (s *SwapService) Status() FlowStatus { return s.flow.Status() }

// Reset returns the swap flow to idle.
func (s *SwapService) Reset() { s.flow.Reset() }
