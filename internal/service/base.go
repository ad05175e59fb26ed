// Package service contains business logic and integrations backing HTTP handlers.
package service

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	"github.com/Heesho/miner-miniapp/internal/accrual"
	"github.com/Heesho/miner-miniapp/internal/batch"
	"github.com/Heesho/miner-miniapp/internal/chain"
)

// Token and ETH amounts are 18-decimal fixed point.
const tokenDecimals = 18

// BaseService provides common dependencies for service types.
type BaseService struct {
	logger *slog.Logger
}

// Snapshots exposes the latest authoritative reads. Any of them may be nil
// before the first successful poll.
type Snapshots interface {
	Rig() *chain.RigSnapshot
	Auction() *chain.AuctionSnapshot
	Pool() *chain.PoolReserves
}

// Prices resolves USD prices. Implementations never fail; they fall back to
// defaults.
type Prices interface {
	EthUSD(ctx context.Context) decimal.Decimal
	DonutUSD(ctx context.Context) decimal.Decimal
}

// Executor runs batch jobs. Begin claims the executor for a job, or refuses
// it, before returning; the job runs when the returned function is called.
type Executor interface {
	Name() string
	Begin(calls []batch.Call) (func(context.Context) batch.Result, error)
	State() batch.State
	LastKind() batch.Kind
	Reset()
}

// Accrual exposes the interpolated mined balance.
type Accrual interface {
	Value() accrual.Value
}

// Env is what the flow services read from.
type Env struct {
	Clock     clock.Clock
	Snapshots Snapshots
	Prices    Prices
}

func (e Env) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}

func deadline(now time.Time, buffer time.Duration) *big.Int {
	return big.NewInt(now.Add(buffer).Unix())
}

// covers reports whether balance is at least amount. A missing balance
// covers nothing.
func covers(balance, amount *big.Int) bool {
	return balance != nil && balance.Cmp(amount) >= 0
}
