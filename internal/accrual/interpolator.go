// Package accrual advances the mined balance locally between rig polls.
package accrual

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Heesho/miner-miniapp/internal/chain"
)

// TickPeriod is the local display cadence.
const TickPeriod = time.Second

// Value is a consistent view of the interpolator.
type Value struct {
	Displayed      *big.Int       `json:"displayed"`
	Base           *big.Int       `json:"base"`
	PerTick        *big.Int       `json:"perTick"`
	EpochID        *big.Int       `json:"epochId"`
	EpochStartTime int64          `json:"epochStartTime"`
	Elapsed        int64          `json:"elapsedSeconds"`
	Miner          common.Address `json:"miner"`
	LastSnapshotAt time.Time      `json:"lastSnapshotAt"`
}

// Interpolator holds the extrapolated accrual for one rig. The zero value is
// not usable; use New.
type Interpolator struct {
	logger *slog.Logger
	clock  clock.Clock

	mu             sync.Mutex
	ready          bool
	base           *big.Int
	perTick        *big.Int
	displayed      *big.Int
	epochID        *big.Int
	epochStartTime int64
	miner          common.Address
	lastSnapshotAt time.Time
}

// New returns an Interpolator with no snapshot yet.
func New(logger *slog.Logger, c clock.Clock) *Interpolator {
	if c == nil {
		c = clock.New()
	}
	return &Interpolator{
		logger:    logger,
		clock:     c,
		base:      new(big.Int),
		perTick:   new(big.Int),
		displayed: new(big.Int),
		epochID:   new(big.Int),
	}
}

// Observe replaces the interpolation state with snapshot. Whatever was
// extrapolated before is discarded.
func (in *Interpolator) Observe(snapshot *chain.RigSnapshot) {
	if snapshot == nil {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	in.base = cloneOrZero(snapshot.Glazed)
	in.perTick = cloneOrZero(snapshot.NextUps)
	in.displayed = new(big.Int).Set(in.base)
	in.epochID = cloneOrZero(snapshot.EpochID)
	in.epochStartTime = 0
	if snapshot.EpochStartTime != nil {
		in.epochStartTime = snapshot.EpochStartTime.Int64()
	}
	in.miner = snapshot.Miner
	in.lastSnapshotAt = in.clock.Now()
	in.ready = true
	in.logger.Debug("accrual resynced", "base", in.base, "perTick", in.perTick, "epoch", in.epochID)
}

// Tick advances the displayed value by one period. It is a no-op before the
// first snapshot or when the rate is zero.
func (in *Interpolator) Tick() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.ready || in.perTick.Sign() <= 0 {
		return
	}
	in.displayed.Add(in.displayed, in.perTick)
}

// Run ticks once per TickPeriod until ctx is done.
func (in *Interpolator) Run(ctx context.Context) {
	ticker := in.clock.Ticker(TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			in.Tick()
		}
	}
}

// Ready reports whether a snapshot has been observed.
func (in *Interpolator) Ready() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.ready
}

// Displayed returns a copy of the current extrapolated quantity.
func (in *Interpolator) Displayed() *big.Int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return new(big.Int).Set(in.displayed)
}

// Elapsed returns whole seconds since the epoch started, derived from the
// clock on every call. Negative values clamp to zero.
func (in *Interpolator) Elapsed() int64 {
	in.mu.Lock()
	start := in.epochStartTime
	ready := in.ready
	in.mu.Unlock()
	if !ready {
		return 0
	}
	return elapsed(in.clock.Now(), start)
}

func elapsed(now time.Time, start int64) int64 {
	d := now.Unix() - start
	if d < 0 {
		return 0
	}
	return d
}

// Value returns a snapshot of the interpolator state.
func (in *Interpolator) Value() Value {
	in.mu.Lock()
	defer in.mu.Unlock()
	v := Value{
		Displayed:      new(big.Int).Set(in.displayed),
		Base:           new(big.Int).Set(in.base),
		PerTick:        new(big.Int).Set(in.perTick),
		EpochID:        new(big.Int).Set(in.epochID),
		EpochStartTime: in.epochStartTime,
		Miner:          in.miner,
		LastSnapshotAt: in.lastSnapshotAt,
	}
	if in.ready {
		v.Elapsed = elapsed(in.clock.Now(), in.epochStartTime)
	}
	return v
}

// FormatElapsed renders seconds as "1h 2m", "3m 4s" or "5s".
func FormatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
