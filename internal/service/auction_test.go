package service

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Heesho/miner-miniapp/internal/batch"
	"github.com/Heesho/miner-miniapp/internal/chain"
	"github.com/Heesho/miner-miniapp/internal/logging"
)

var approveSelector = common.FromHex("0x095ea7b3")

func newAuctionService(snaps *fakeSnapshots) (*AuctionService, *fakeExecutor, *fakeExecutor) {
	c := mockClock()
	buy, lp := succeeding("auction"), succeeding("lp")
	env := Env{Clock: c, Snapshots: snaps, Prices: fixedPrices{eth: decimal.NewFromInt(3000), donut: decimal.NewFromInt(2)}}
	svc := NewAuctionService(logging.Discard(), env, newFlow(c, buy), newFlow(c, lp), AuctionParams{
		Multicall:             multicall,
		Rig:                   rigAddr,
		Router:                router,
		Unit:                  unit,
		Donut:                 donut,
		Account:               account,
		AuctionDeadlineBuffer: 5 * time.Minute,
		LPDeadlineBuffer:      5 * time.Minute,
	})
	return svc, buy, lp
}

func auctionSnapshot() *chain.AuctionSnapshot {
	return &chain.AuctionSnapshot{
		EpochID:             big.NewInt(4),
		PaymentToken:        lpPair,
		Price:               ether(2),
		PaymentTokenPrice:   ether(3),
		WethAccumulated:     ether(1),
		DonutBalance:        ether(50),
		PaymentTokenBalance: ether(5),
	}
}

func unitDonutPool() *chain.PoolReserves {
	return &chain.PoolReserves{
		Pair:        lpPair,
		Token0:      unit,
		Token1:      donut,
		Reserve0:    ether(1000),
		Reserve1:    ether(500),
		TotalSupply: ether(400),
	}
}

func approveArgs(t *testing.T, call batch.Call) (common.Address, *big.Int) {
	t.Helper()
	payload := call.Payload()
	require.Len(t, payload, 68)
	require.Equal(t, approveSelector, payload[:4])
	return common.BytesToAddress(payload[4:36]), new(big.Int).SetBytes(payload[36:68])
}

func TestAuctionPnL(t *testing.T) {
	// 1 WETH x $3000 - 2 LP x 3 DONUT x $2
	pnl := AuctionPnL(auctionSnapshot(), decimal.NewFromInt(3000), decimal.NewFromInt(2))
	require.True(t, pnl.Equal(decimal.NewFromInt(2988)), pnl.String())

	a := auctionSnapshot()
	a.WethAccumulated = big.NewInt(0)
	pnl = AuctionPnL(a, decimal.NewFromInt(3000), decimal.NewFromInt(2))
	require.True(t, pnl.Equal(decimal.NewFromInt(-12)), pnl.String())

	require.True(t, AuctionPnL(nil, decimal.NewFromInt(1), decimal.NewFromInt(1)).IsZero())
}

func TestPrepareBuy(t *testing.T) {
	svc, _, _ := newAuctionService(&fakeSnapshots{auction: auctionSnapshot()})

	calls, err := svc.PrepareBuy()
	require.NoError(t, err)
	require.Len(t, calls, 2)

	require.Equal(t, lpPair, calls[0].Target())
	spender, amount := approveArgs(t, calls[0])
	require.Equal(t, multicall, spender)
	require.Zero(t, amount.Cmp(ether(2)))

	require.Equal(t, multicall, calls[1].Target())
	require.Zero(t, calls[1].Value().Sign())
	args := unpackCall(t, calls[1], "buy")
	require.Equal(t, rigAddr, args[0].(common.Address))
	require.Equal(t, int64(4), args[1].(*big.Int).Int64())
	require.Equal(t, start.Add(5*time.Minute).Unix(), args[2].(*big.Int).Int64())
	require.Zero(t, args[3].(*big.Int).Cmp(ether(2)))
}

func TestPrepareBuy_Refusals(t *testing.T) {
	svc, _, _ := newAuctionService(&fakeSnapshots{})
	_, err := svc.PrepareBuy()
	require.ErrorIs(t, err, ErrNotReady)

	empty := auctionSnapshot()
	empty.WethAccumulated = big.NewInt(0)
	svc, _, _ = newAuctionService(&fakeSnapshots{auction: empty})
	_, err = svc.PrepareBuy()
	require.ErrorIs(t, err, ErrNothingToBuy)

	poor := auctionSnapshot()
	poor.PaymentTokenBalance = ether(1)
	svc, buy, _ := newAuctionService(&fakeSnapshots{auction: poor})
	require.ErrorIs(t, svc.Buy(t.Context()), ErrInsufficientBalance)
	require.Empty(t, buy.Jobs())
}

func TestPlanLP(t *testing.T) {
	svc, _, _ := newAuctionService(&fakeSnapshots{pool: unitDonutPool()})

	plan, err := svc.PlanLP(ether(10))
	require.NoError(t, err)
	require.Equal(t, donut, plan.Donut)
	// 10 x 500/1000 = 5, plus 0.5%
	require.Zero(t, plan.DonutRequired.Cmp(milli(5_025)), plan.DonutRequired.String())
	require.Zero(t, plan.UnitMin.Cmp(milli(9_900)))
	require.Zero(t, plan.DonutMin.Cmp(big.NewInt(4_974_750e12)), plan.DonutMin.String())
	require.Zero(t, plan.LPShare.Cmp(ether(4)))
}

func TestPlanLP_ReversedPair(t *testing.T) {
	pool := unitDonutPool()
	pool.Token0, pool.Token1 = donut, unit
	pool.Reserve0, pool.Reserve1 = ether(500), ether(1000)
	svc, _, _ := newAuctionService(&fakeSnapshots{pool: pool})

	plan, err := svc.PlanLP(ether(10))
	require.NoError(t, err)
	require.Zero(t, plan.DonutRequired.Cmp(milli(5_025)))
}

func TestPlanLP_Refusals(t *testing.T) {
	svc, _, _ := newAuctionService(&fakeSnapshots{pool: unitDonutPool()})
	_, err := svc.PlanLP(big.NewInt(0))
	require.ErrorIs(t, err, ErrInvalidAmount)

	svc, _, _ = newAuctionService(&fakeSnapshots{})
	_, err = svc.PlanLP(ether(1))
	require.ErrorIs(t, err, ErrNotReady)

	other := unitDonutPool()
	other.Token1 = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	svc, _, _ = newAuctionService(&fakeSnapshots{pool: other})
	_, err = svc.PlanLP(ether(1))
	require.ErrorIs(t, err, ErrPairMismatch)

	empty := unitDonutPool()
	empty.Reserve0 = big.NewInt(0)
	svc, _, _ = newAuctionService(&fakeSnapshots{pool: empty})
	_, err = svc.PlanLP(ether(1))
	require.ErrorIs(t, err, ErrEmptyReserves)
}

func TestPrepareLP_DustDepositRefused(t *testing.T) {
	pool := unitDonutPool()
	pool.Reserve0, pool.Reserve1 = ether(1000), big.NewInt(1)
	snaps := &fakeSnapshots{rig: rigSnapshot(), auction: auctionSnapshot(), pool: pool}
	svc, _, lp := newAuctionService(snaps)

	_, err := svc.PlanLP(big.NewInt(1000))
	require.ErrorIs(t, err, ErrDustDeposit)

	require.ErrorIs(t, svc.AddLiquidity(t.Context(), big.NewInt(1000)), ErrDustDeposit)
	require.Empty(t, lp.Jobs())
}

func TestPrepareLP(t *testing.T) {
	snaps := &fakeSnapshots{rig: rigSnapshot(), auction: auctionSnapshot(), pool: unitDonutPool()}
	svc, _, _ := newAuctionService(snaps)

	calls, err := svc.PrepareLP(ether(10))
	require.NoError(t, err)
	require.Len(t, calls, 3)

	require.Equal(t, unit, calls[0].Target())
	spender, amount := approveArgs(t, calls[0])
	require.Equal(t, router, spender)
	require.Zero(t, amount.Cmp(ether(10)))

	require.Equal(t, donut, calls[1].Target())
	spender, amount = approveArgs(t, calls[1])
	require.Equal(t, router, spender)
	require.Zero(t, amount.Cmp(milli(5_025)))

	require.Equal(t, router, calls[2].Target())
	args := unpackCall(t, calls[2], "addLiquidity")
	require.Equal(t, unit, args[0].(common.Address))
	require.Equal(t, donut, args[1].(common.Address))
	require.Zero(t, args[2].(*big.Int).Cmp(ether(10)))
	require.Zero(t, args[3].(*big.Int).Cmp(milli(5_025)))
	require.Zero(t, args[4].(*big.Int).Cmp(milli(9_900)))
	require.Zero(t, args[5].(*big.Int).Cmp(big.NewInt(4_974_750e12)))
	require.Equal(t, account, args[6].(common.Address))
	require.Equal(t, start.Add(5*time.Minute).Unix(), args[7].(*big.Int).Int64())
}

func TestPrepareLP_InsufficientBalances(t *testing.T) {
	rig := rigSnapshot()
	rig.UnitBalance = ether(1)
	svc, _, lp := newAuctionService(&fakeSnapshots{rig: rig, auction: auctionSnapshot(), pool: unitDonutPool()})
	require.ErrorIs(t, svc.AddLiquidity(t.Context(), ether(10)), ErrInsufficientBalance)
	require.Empty(t, lp.Jobs())

	a := auctionSnapshot()
	a.DonutBalance = ether(5)
	svc, _, _ = newAuctionService(&fakeSnapshots{rig: rigSnapshot(), auction: a, pool: unitDonutPool()})
	_, err := svc.PrepareLP(ether(10))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestAuctionView(t *testing.T) {
	svc, _, _ := newAuctionService(&fakeSnapshots{auction: auctionSnapshot()})

	view, err := svc.View(t.Context())
	require.NoError(t, err)
	require.True(t, view.PnLUSD.Equal(decimal.NewFromInt(2988)))
	require.Equal(t, "auction", view.Buy.Executor)
	require.Equal(t, "lp", view.LP.Executor)
}
