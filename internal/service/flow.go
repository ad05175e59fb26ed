package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Heesho/miner-miniapp/internal/batch"
)

// NoticeTTL is how long a job outcome stays visible.
const NoticeTTL = 3 * time.Second

// Outcome is the user-facing result of the last job.
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Notice holds the outcome of the last job for a limited time.
type Notice struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.Mutex
	outcome Outcome
	kind    batch.Kind
	expires time.Time
}

// NewNotice returns an empty Notice.
func NewNotice(c clock.Clock, ttl time.Duration) *Notice {
	if c == nil {
		c = clock.New()
	}
	return &Notice{clock: c, ttl: ttl}
}

// Show replaces the current notice and restarts its lifetime.
func (n *Notice) Show(o Outcome, kind batch.Kind) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcome = o
	n.kind = kind
	n.expires = n.clock.Now().Add(n.ttl)
}

// Record shows the outcome of res. Detached jobs and jobs refused because
// another one was running show nothing.
func (n *Notice) Record(res batch.Result) {
	if batch.KindOf(res.Err) == batch.KindAlreadyInFlight {
		return
	}
	switch res.State {
	case batch.StateSuccess:
		n.Show(OutcomeSuccess, batch.KindNone)
	case batch.StateError:
		n.Show(OutcomeFailure, batch.KindOf(res.Err))
	}
}

// Current returns the live notice, or OutcomeNone once it expired.
func (n *Notice) Current() (Outcome, batch.Kind) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.outcome == OutcomeNone || !n.clock.Now().Before(n.expires) {
		return OutcomeNone, batch.KindNone
	}
	return n.outcome, n.kind
}

// FlowStatus is what the UI needs to render a flow.
type FlowStatus struct {
	Executor string      `json:"executor"`
	State    batch.State `json:"state"`
	LastKind batch.Kind  `json:"lastKind"`
	Notice   Outcome     `json:"notice,omitempty"`
	Reason   batch.Kind  `json:"reason,omitempty"`
}

// Flow binds an executor to its notice and runs jobs in the background.
type Flow struct {
	logger   *slog.Logger
	executor Executor
	notice   *Notice
	baseCtx  context.Context
	wg       sync.WaitGroup
}

// NewFlow builds a Flow. Jobs started by Submit run under ctx, not under the
// request that started them.
func NewFlow(ctx context.Context, logger *slog.Logger, ex Executor, n *Notice) *Flow {
	return &Flow{
		logger:   logger.With("flow", ex.Name()),
		executor: ex,
		notice:   n,
		baseCtx:  ctx,
	}
}

// Name is the executor name.
func (f *Flow) Name() string { return f.executor.Name() }

// Execute runs calls and blocks until the job is terminal. A refused job
// leaves the notice alone.
func (f *Flow) Execute(ctx context.Context, calls []batch.Call) batch.Result {
	run, err := f.executor.Begin(calls)
	if err != nil {
		return batch.Result{State: f.executor.State(), Err: err}
	}
	return f.finish(run(ctx))
}

// Submit claims the executor for calls and runs the job in the background.
// It returns ErrJobInFlight when another job holds the executor.
func (f *Flow) Submit(calls []batch.Call) error {
	run, err := f.executor.Begin(calls)
	if err != nil {
		if batch.KindOf(err) == batch.KindAlreadyInFlight {
			return ErrJobInFlight
		}
		return err
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.finish(run(f.baseCtx))
	}()
	return nil
}

func (f *Flow) finish(res batch.Result) batch.Result {
	f.notice.Record(res)
	if res.Err != nil {
		f.logger.Info("job ended", "state", res.State.String(), "err", res.Err)
	}
	return res
}

// Wait blocks until every job started by Submit has returned.
func (f *Flow) Wait() { f.wg.Wait() }

// Reset returns the executor to idle.
func (f *Flow) Reset() { f.executor.Reset() }

// Status reports the executor state and the live notice.
func (f *Flow) Status() FlowStatus {
	outcome, reason := f.notice.Current()
	return FlowStatus{
		Executor: f.executor.Name(),
		State:    f.executor.State(),
		LastKind: f.executor.LastKind(),
		Notice:   outcome,
		Reason:   reason,
	}
}
