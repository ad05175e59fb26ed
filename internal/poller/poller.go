// Package poller keeps the latest rig, auction and pool snapshots fresh.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/Heesho/miner-miniapp/internal/accrual"
	"github.com/Heesho/miner-miniapp/internal/batch"
	"github.com/Heesho/miner-miniapp/internal/chain"
	"github.com/Heesho/miner-miniapp/internal/metric"
)

// RefetchDelays are the offsets after a successful job at which every
// snapshot is read again, to absorb node indexing lag.
var RefetchDelays = []time.Duration{time.Second, 3 * time.Second}

const refetchTimeout = 10 * time.Second

// Reader is the chain state the poller reads.
type Reader interface {
	ReadRig(ctx context.Context, rig, viewer common.Address) (*chain.RigSnapshot, error)
	ReadAuction(ctx context.Context, rig, viewer common.Address) (*chain.AuctionSnapshot, error)
	ReadPoolReserves(ctx context.Context, pair common.Address) (*chain.PoolReserves, error)
}

// Intervals between scheduled reads.
type Intervals struct {
	Rig     time.Duration
	Auction time.Duration
	Pool    time.Duration
}

// Poller reads snapshots on fixed intervals and on demand. Read errors are
// logged and absorbed: the previous snapshot stays current until the next
// successful read.
type Poller struct {
	logger    *slog.Logger
	clock     clock.Clock
	reader    Reader
	interp    *accrual.Interpolator
	rig       common.Address
	viewer    common.Address
	intervals Intervals

	mu      sync.RWMutex
	runCtx  context.Context
	rigSnap *chain.RigSnapshot
	auction *chain.AuctionSnapshot
	pool    *chain.PoolReserves

	rigSeq, auctionSeq, poolSeq sequence
}

// sequence orders overlapping reads of one source. A read takes its number
// before it starts and is applied only if no later read has landed first.
// Guarded by Poller.mu.
type sequence struct {
	issued  uint64
	applied uint64
}

func (s *sequence) next() uint64 {
	s.issued++
	return s.issued
}

func (s *sequence) accept(n uint64) bool {
	if n < s.applied {
		return false
	}
	s.applied = n
	return true
}

func (p *Poller) begin(s *sequence) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return s.next()
}

// New builds a Poller for rig as seen by viewer. interp, when not nil, is
// resynced on every rig snapshot.
func New(logger *slog.Logger, c clock.Clock, r Reader, interp *accrual.Interpolator, rig, viewer common.Address, iv Intervals) *Poller {
	if c == nil {
		c = clock.New()
	}
	return &Poller{
		logger:    logger,
		clock:     c,
		reader:    r,
		interp:    interp,
		rig:       rig,
		viewer:    viewer,
		intervals: iv,
		runCtx:    context.Background(),
	}
}

// Run polls until ctx is done. The first read of each source happens
// immediately.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	p.runCtx = ctx
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.loop(gctx, p.intervals.Rig, p.RefreshRig) })
	g.Go(func() error { return p.loop(gctx, p.intervals.Auction, p.RefreshAuction) })
	g.Go(func() error { return p.loop(gctx, p.intervals.Pool, p.RefreshPool) })
	return g.Wait()
}

func (p *Poller) loop(ctx context.Context, every time.Duration, refresh func(context.Context) error) error {
	_ = refresh(ctx)
	ticker := p.clock.Ticker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = refresh(ctx)
		}
	}
}

// RefreshRig reads the rig snapshot and resyncs the interpolator. A read
// that finishes after a newer one is dropped.
func (p *Poller) RefreshRig(ctx context.Context) error {
	seq := p.begin(&p.rigSeq)
	s, err := p.reader.ReadRig(ctx, p.rig, p.viewer)
	if err != nil {
		p.absorb("rig", err)
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.rigSeq.accept(seq) {
		p.logger.Debug("stale read dropped", "source", "rig", "seq", seq)
		return nil
	}
	p.rigSnap = s
	if p.interp != nil {
		p.interp.Observe(s)
	}
	if s.EpochStartTime != nil {
		metric.EpochStartTime.Set(float64(s.EpochStartTime.Int64()))
	}
	return nil
}

// RefreshAuction reads the auction snapshot.
func (p *Poller) RefreshAuction(ctx context.Context) error {
	seq := p.begin(&p.auctionSeq)
	s, err := p.reader.ReadAuction(ctx, p.rig, p.viewer)
	if err != nil {
		p.absorb("auction", err)
		return err
	}
	p.mu.Lock()
	if p.auctionSeq.accept(seq) {
		p.auction = s
	}
	p.mu.Unlock()
	return nil
}

// RefreshPool reads the reserves of the auction's payment token pair. It is
// a no-op until an auction snapshot is known.
func (p *Poller) RefreshPool(ctx context.Context) error {
	p.mu.Lock()
	a := p.auction
	seq := p.poolSeq.next()
	p.mu.Unlock()
	if a == nil || a.PaymentToken == (common.Address{}) {
		return nil
	}
	s, err := p.reader.ReadPoolReserves(ctx, a.PaymentToken)
	if err != nil {
		p.absorb("pool", err)
		return err
	}
	p.mu.Lock()
	if p.poolSeq.accept(seq) {
		p.pool = s
	}
	p.mu.Unlock()
	return nil
}

// RefreshAll reads rig and auction in parallel, then the pool.
func (p *Poller) RefreshAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.RefreshRig(gctx) })
	g.Go(func() error { return p.RefreshAuction(gctx) })
	err := g.Wait()
	if perr := p.RefreshPool(ctx); err == nil {
		err = perr
	}
	return err
}

// ScheduleRefetch reads everything again at each of RefetchDelays.
func (p *Poller) ScheduleRefetch() {
	for _, d := range RefetchDelays {
		p.clock.AfterFunc(d, func() {
			p.mu.RLock()
			parent := p.runCtx
			p.mu.RUnlock()
			if parent.Err() != nil {
				return
			}
			ctx, cancel := context.WithTimeout(parent, refetchTimeout)
			defer cancel()
			_ = p.RefreshAll(ctx)
		})
	}
}

// RefetchHook adapts ScheduleRefetch to an executor success hook.
func (p *Poller) RefetchHook() batch.Hook {
	return func([]batch.Receipt) { p.ScheduleRefetch() }
}

func (p *Poller) absorb(source string, err error) {
	metric.PollErrors.WithLabelValues(source).Inc()
	p.logger.Warn("poll failed", "source", source, "err", err)
}

// Rig returns the latest rig snapshot, or nil before the first read.
func (p *Poller) Rig() *chain.RigSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rigSnap
}

// Auction returns the latest auction snapshot, or nil.
func (p *Poller) Auction() *chain.AuctionSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.auction
}

// Pool returns the latest pool reserves, or nil.
func (p *Poller) Pool() *chain.PoolReserves {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pool
}
