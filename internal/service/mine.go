package service

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/Heesho/miner-miniapp/internal/accrual"
	"github.com/Heesho/miner-miniapp/internal/batch"
	"github.com/Heesho/miner-miniapp/internal/chain"
)

// DefaultMineMessage is attached to a mine call when the user leaves the
// message empty.
const DefaultMineMessage = "gm"

// MineParams are the addresses and timings of the mine flow.
type MineParams struct {
	Multicall      common.Address
	Rig            common.Address
	DeadlineBuffer time.Duration
}

// MineView is the state rendered by the mine page.
type MineView struct {
	Rig         *chain.RigSnapshot `json:"rig"`
	Accrual     accrual.Value      `json:"accrual"`
	ElapsedText string             `json:"elapsed"`
	GlazedUSD   decimal.Decimal    `json:"glazedUsd"`
	RateUSD     decimal.Decimal    `json:"rateUsd"`
	PriceUSD    decimal.Decimal    `json:"priceUsd"`
	EthUSD      decimal.Decimal    `json:"ethUsd"`
	DonutUSD    decimal.Decimal    `json:"donutUsd"`
	Flow        FlowStatus         `json:"flow"`
}

// MineService takes over the rig by paying its current price.
type MineService struct {
	BaseService
	env     Env
	accrual Accrual
	flow    *Flow
	params  MineParams
}

func NewMineService(logger *slog.Logger, env Env, acc Accrual, flow *Flow, params MineParams) *MineService {
	return &MineService{
		BaseService: BaseService{logger: logger},
		env:         env,
		accrual:     acc,
		flow:        flow,
		params:      params,
	}
}

// View returns the latest rig snapshot with the interpolated balance.
func (s *MineService) View(ctx context.Context) (*MineView, error) {
	rig := s.env.Snapshots.Rig()
	if rig == nil {
		return nil, ErrNotReady
	}
	ethUSD := s.env.Prices.EthUSD(ctx)
	donutUSD := s.env.Prices.DonutUSD(ctx)

	v := s.accrual.Value()
	glazed, rate := v.ValueUSD(rig.UnitPrice, donutUSD)
	return &MineView{
		Rig:         rig,
		Accrual:     v,
		ElapsedText: accrual.FormatElapsed(v.Elapsed),
		GlazedUSD:   glazed,
		RateUSD:     rate,
		PriceUSD:    fixed(rig.Price).Mul(ethUSD),
		EthUSD:      ethUSD,
		DonutUSD:    donutUSD,
		Flow:        s.flow.Status(),
	}, nil
}

// MaxPrice is the price bound sent with a mine call: price plus 5%.
func MaxPrice(price *big.Int) *big.Int {
	if price == nil || price.Sign() <= 0 {
		return new(big.Int)
	}
	v := new(big.Int).Mul(price, big.NewInt(105))
	return v.Div(v, big.NewInt(100))
}

// PrepareMine builds the single-call job that mines the current epoch.
func (s *MineService) PrepareMine(message string) ([]batch.Call, error) {
	rig := s.env.Snapshots.Rig()
	if rig == nil || rig.EpochID == nil {
		return nil, ErrNotReady
	}
	if message == "" {
		message = DefaultMineMessage
	}
	price := rig.Price
	if price == nil {
		price = new(big.Int)
	}
	if price.Sign() > 0 && !covers(rig.EthBalance, price) {
		return nil, ErrInsufficientBalance
	}

	call, err := batch.EncodeContractCall(s.params.Multicall, chain.MulticallABI, "mine", price,
		s.params.Rig, rig.EpochID, deadline(s.env.now(), s.params.DeadlineBuffer), MaxPrice(price), message)
	if err != nil {
		return nil, err
	}
	return []batch.Call{call}, nil
}

// Mine submits the mine job and returns without waiting for it.
func (s *MineService) Mine(_ context.Context, message string) error {
	calls, err := s.PrepareMine(message)
	if err != nil {
		return err
	}
	s.logger.Info("submitting mine", "rig", s.params.Rig.Hex(), "message", message)
	return s.flow.Submit(calls)
}

// Status reports the mine flow.
func (s *MineService) Status() FlowStatus { return s.flow.Status() }

// Reset returns the mine flow to idle.
func (s *MineService) Reset() { s.flow.Reset() }
