package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/Heesho/miner-miniapp/internal/batch"
	"github.com/Heesho/miner-miniapp/internal/chain"
	"github.com/Heesho/miner-miniapp/internal/quote"
)

// AuctionParams are the addresses and timings of the auction buy and LP
// flows. Account receives the minted LP tokens.
type AuctionParams struct {
	Multicall             common.Address
	Rig                   common.Address
	Router                common.Address
	Unit                  common.Address
	Donut                 common.Address
	Account               common.Address
	AuctionDeadlineBuffer time.Duration
	LPDeadlineBuffer      time.Duration
}

// AuctionView is the state rendered by the auction page.
type AuctionView struct {
	Auction  *chain.AuctionSnapshot `json:"auction"`
	PnLUSD   decimal.Decimal        `json:"pnlUsd"`
	EthUSD   decimal.Decimal        `json:"ethUsd"`
	DonutUSD decimal.Decimal        `json:"donutUsd"`
	Buy      FlowStatus             `json:"buy"`
	LP       FlowStatus             `json:"lp"`
}

// LPPlan is a liquidity deposit sized against the current reserves.
type LPPlan struct {
	Pair          common.Address `json:"pair"`
	Unit          common.Address `json:"unit"`
	Donut         common.Address `json:"donut"`
	UnitAmount    *big.Int       `json:"unitAmount"`
	DonutRequired *big.Int       `json:"donutRequired"`
	UnitMin       *big.Int       `json:"unitMin"`
	DonutMin      *big.Int       `json:"donutMin"`
	LPShare       *big.Int       `json:"lpShare"`
}

// AuctionService buys the accumulated WETH with LP tokens and mints the LP
// tokens needed to pay for it.
type AuctionService struct {
	BaseService
	env    Env
	buy    *Flow
	lp     *Flow
	params AuctionParams
}

func NewAuctionService(logger *slog.Logger, env Env, buy, lp *Flow, params AuctionParams) *AuctionService {
	return &AuctionService{
		BaseService: BaseService{logger: logger},
		env:         env,
		buy:         buy,
		lp:          lp,
		params:      params,
	}
}

// View returns the latest auction snapshot and its profit at current
// prices.
func (s *AuctionService) View(ctx context.Context) (*AuctionView, error) {
	a := s.env.Snapshots.Auction()
	if a == nil {
		return nil, ErrNotReady
	}
	ethUSD := s.env.Prices.EthUSD(ctx)
	donutUSD := s.env.Prices.DonutUSD(ctx)
	return &AuctionView{
		Auction:  a,
		PnLUSD:   AuctionPnL(a, ethUSD, donutUSD),
		EthUSD:   ethUSD,
		DonutUSD: donutUSD,
		Buy:      s.buy.Status(),
		LP:       s.lp.Status(),
	}, nil
}

// AuctionPnL is wethAccumulated x ethUSD - price x paymentTokenPrice x
// donutUSD.
func AuctionPnL(a *chain.AuctionSnapshot, ethUSD, donutUSD decimal.Decimal) decimal.Decimal {
	if a == nil {
		return decimal.Zero
	}
	gain := fixed(a.WethAccumulated).Mul(ethUSD)
	cost := fixed(a.Price).Mul(fixed(a.PaymentTokenPrice)).Mul(donutUSD)
	return gain.Sub(cost)
}

// PrepareBuy builds [approve(paymentToken, multicall, price), buy(...)].
// The approval is exact and is never revoked if buy fails.
func (s *AuctionService) PrepareBuy() ([]batch.Call, error) {
	a := s.env.Snapshots.Auction()
	if a == nil || a.EpochID == nil || a.Price == nil {
		return nil, ErrNotReady
	}
	if a.WethAccumulated == nil || a.WethAccumulated.Sign() == 0 {
		return nil, ErrNothingToBuy
	}
	if !covers(a.PaymentTokenBalance, a.Price) {
		return nil, ErrInsufficientBalance
	}

	approve, err := batch.EncodeApprove(a.PaymentToken, s.params.Multicall, a.Price)
	if err != nil {
		return nil, err
	}
	buy, err := batch.EncodeContractCall(s.params.Multicall, chain.MulticallABI, "buy", nil,
		s.params.Rig, a.EpochID, deadline(s.env.now(), s.params.AuctionDeadlineBuffer), a.Price)
	if err != nil {
		return nil, err
	}
	return []batch.Call{approve, buy}, nil
}

// Buy submits the auction buy job.
func (s *AuctionService) Buy(_ context.Context) error {
	calls, err := s.PrepareBuy()
	if err != nil {
		return err
	}
	s.logger.Info("submitting auction buy", "rig", s.params.Rig.Hex())
	return s.buy.Submit(calls)
}

// PlanLP sizes a deposit of unitAmount against the unit/DONUT pool.
func (s *AuctionService) PlanLP(unitAmount *big.Int) (*LPPlan, error) {
	if unitAmount == nil || unitAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pool := s.env.Snapshots.Pool()
	if pool == nil {
		return nil, ErrNotReady
	}
	donut, err := pool.Other(s.params.Unit)
	if err != nil {
		return nil, ErrPairMismatch
	}
	if s.params.Donut != (common.Address{}) && donut != s.params.Donut {
		return nil, ErrPairMismatch
	}
	if pool.Empty() {
		return nil, ErrEmptyReserves
	}
	reserveUnit, reserveDonut, err := pool.Oriented(s.params.Unit)
	if err != nil {
		if errors.Is(err, chain.ErrPairMismatch) {
			return nil, ErrPairMismatch
		}
		return nil, err
	}

	required := quote.RequiredCounterpart(unitAmount, reserveUnit, reserveDonut)
	if required.Sign() == 0 {
		return nil, ErrDustDeposit
	}
	return &LPPlan{
		Pair:          pool.Pair,
		Unit:          s.params.Unit,
		Donut:         donut,
		UnitAmount:    new(big.Int).Set(unitAmount),
		DonutRequired: required,
		UnitMin:       quote.LPMin(unitAmount),
		DonutMin:      quote.LPMin(required),
		LPShare:       quote.EstimateLPShare(unitAmount, pool.TotalSupply, reserveUnit),
	}, nil
}

// PrepareLP builds [approve(unit), approve(donut), addLiquidity(...)] for
// a deposit of unitAmount.
func (s *AuctionService) PrepareLP(unitAmount *big.Int) ([]batch.Call, error) {
	plan, err := s.PlanLP(unitAmount)
	if err != nil {
		return nil, err
	}
	if rig := s.env.Snapshots.Rig(); rig == nil || !covers(rig.UnitBalance, plan.UnitAmount) {
		return nil, ErrInsufficientBalance
	}
	if a := s.env.Snapshots.Auction(); a == nil || !covers(a.DonutBalance, plan.DonutRequired) {
		return nil, ErrInsufficientBalance
	}

	approveUnit, err := batch.EncodeApprove(plan.Unit, s.params.Router, plan.UnitAmount)
	if err != nil {
		return nil, err
	}
	approveDonut, err := batch.EncodeApprove(plan.Donut, s.params.Router, plan.DonutRequired)
	if err != nil {
		return nil, err
	}
	add, err := batch.EncodeContractCall(s.params.Router, chain.RouterABI, "addLiquidity", nil,
		plan.Unit, plan.Donut, plan.UnitAmount, plan.DonutRequired, plan.UnitMin, plan.DonutMin,
		s.params.Account, deadline(s.env.now(), s.params.LPDeadlineBuffer))
	if err != nil {
		return nil, err
	}
	return []batch.Call{approveUnit, approveDonut, add}, nil
}

// AddLiquidity submits the LP creation job.
func (s *AuctionService) AddLiquidity(_ context.Context, unitAmount *big.Int) error {
	calls, err := s.PrepareLP(unitAmount)
	if err != nil {
		return err
	}
	s.logger.Info("submitting add liquidity", "unit", unitAmount.String())
	return s.lp.Submit(calls)
}

// Flows returns the buy and LP flows.
func (s *AuctionService) Flows() (buy, lp *Flow) { return s.buy, s.lp }

func fixed(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -tokenDecimals)
}
