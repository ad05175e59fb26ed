package service

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/Heesho/miner-miniapp/internal/accrual"
	"github.com/Heesho/miner-miniapp/internal/batch"
	"github.com/Heesho/miner-miniapp/internal/chain"
	"github.com/Heesho/miner-miniapp/internal/logging"
)

var (
	multicall = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	rigAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	account   = common.HexToAddress("0x00000000000000000000000000000000000000c4")
	router    = common.HexToAddress("0x00000000000000000000000000000000000000c5")
	unit      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	donut     = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	lpPair    = common.HexToAddress("0x00000000000000000000000000000000000000a3")

	start = time.Unix(1_700_000_000, 0)
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// milli returns n thousandths of a token.
func milli(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e15))
}

type fakeSnapshots struct {
	mu      sync.Mutex
	rig     *chain.RigSnapshot
	auction *chain.AuctionSnapshot
	pool    *chain.PoolReserves
}

func (f *fakeSnapshots) Rig() *chain.RigSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rig
}

func (f *fakeSnapshots) Auction() *chain.AuctionSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auction
}

func (f *fakeSnapshots) Pool() *chain.PoolReserves {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pool
}

type fixedPrices struct {
	eth, donut decimal.Decimal
}

func (p fixedPrices) EthUSD(context.Context) decimal.Decimal   { return p.eth }
func (p fixedPrices) DonutUSD(context.Context) decimal.Decimal { return p.donut }

type fixedAccrual struct {
	v accrual.Value
}

func (a fixedAccrual) Value() accrual.Value { return a.v }

// fakeExecutor ends every job with result. When gate is set, jobs block
// until it is closed.
type fakeExecutor struct {
	name   string
	result batch.Result
	gate   chan struct{}

	mu     sync.Mutex
	state  batch.State
	kind   batch.Kind
	jobs   [][]batch.Call
	resets int
}

func (f *fakeExecutor) Name() string { return f.name }

func (f *fakeExecutor) Begin(calls []batch.Call) (func(context.Context) batch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.InFlight() {
		return nil, &batch.Error{Kind: batch.KindAlreadyInFlight, Index: -1, Err: batch.ErrAlreadyInFlight}
	}
	f.jobs = append(f.jobs, calls)
	f.state = batch.StatePending
	return f.run, nil
}

func (f *fakeExecutor) run(context.Context) batch.Result {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = f.result.State
	f.kind = batch.KindOf(f.result.Err)
	return f.result
}

func (f *fakeExecutor) State() batch.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeExecutor) LastKind() batch.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kind
}

func (f *fakeExecutor) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = batch.StateIdle
	f.kind = batch.KindNone
	f.resets++
}

func (f *fakeExecutor) Jobs() [][]batch.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]batch.Call(nil), f.jobs...)
}

func succeeding(name string) *fakeExecutor {
	return &fakeExecutor{name: name, result: batch.Result{State: batch.StateSuccess}}
}

func newFlow(c clock.Clock, ex Executor) *Flow {
	return NewFlow(context.Background(), logging.Discard(), ex, NewNotice(c, NoticeTTL))
}

func mockClock() *clock.Mock {
	c := clock.NewMock()
	c.Set(start)
	return c
}
