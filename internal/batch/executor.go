package batch

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Heesho/miner-miniapp/internal/metric"
)

// Receipt is the confirmation of a single call.
type Receipt struct {
	TxHash      common.Hash `json:"txHash"`
	Status      uint64      `json:"status"`
	BlockNumber *big.Int    `json:"blockNumber,omitempty"`
}

// Submitter broadcasts one call and returns its hash once accepted by the
// node. A refusal by the signer must wrap ErrUserRejected.
type Submitter interface {
	Submit(ctx context.Context, call Call) (common.Hash, error)
}

// Watcher blocks until the call identified by hash is included, or ctx ends.
type Watcher interface {
	WaitConfirmed(ctx context.Context, hash common.Hash) (Receipt, error)
}

// Result is the outcome of Execute. Receipts holds one entry per confirmed
// call, in submission order.
type Result struct {
	State    State     `json:"state"`
	Receipts []Receipt `json:"receipts"`
	Err      error     `json:"-"`
}

// Final returns the receipt of the last call, the resolved value of a
// successful job.
func (r Result) Final() (Receipt, bool) {
	if r.State != StateSuccess || len(r.Receipts) == 0 {
		return Receipt{}, false
	}
	return r.Receipts[len(r.Receipts)-1], true
}

// Hook runs after a job reaches success.
type Hook func(receipts []Receipt)

// Executor runs at most one job at a time. Calls inside a job are strictly
// sequential: call i+1 is only submitted after call i is confirmed.
type Executor struct {
	name           string
	logger         *slog.Logger
	submitter      Submitter
	watcher        Watcher
	clock          clock.Clock
	confirmTimeout time.Duration

	mu       sync.Mutex
	state    State
	lastKind Kind
	gen      uint64
	subs     map[int]chan Transition
	nextSub  int
	hooks    []Hook
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithConfirmTimeout bounds the wait for each confirmation.
func WithConfirmTimeout(d time.Duration) Option {
	return func(e *Executor) { e.confirmTimeout = d }
}

// OnSuccess registers a hook run after every successful job.
func OnSuccess(h Hook) Option {
	return func(e *Executor) { e.hooks = append(e.hooks, h) }
}

const defaultConfirmTimeout = 2 * time.Minute

// NewExecutor builds an idle Executor.
func NewExecutor(name string, logger *slog.Logger, s Submitter, w Watcher, opts ...Option) *Executor {
	e := &Executor{
		name:           name,
		logger:         logger.With("executor", name),
		submitter:      s,
		watcher:        w,
		clock:          clock.New(),
		confirmTimeout: defaultConfirmTimeout,
		subs:           make(map[int]chan Transition),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the executor in logs and metrics.
func (e *Executor) Name() string { return e.name }

// State returns the current state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastKind returns the failure kind of the last job that reached error.
func (e *Executor) LastKind() Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastKind
}

// Subscribe returns a channel of state transitions and a function that
// releases it. Slow subscribers miss transitions rather than block the job.
func (e *Executor) Subscribe() (<-chan Transition, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan Transition, 16)
	e.subs[id] = ch
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
}

// Reset returns the executor to idle from any state. It does not cancel
// calls already broadcast; a job still running is detached and its later
// progress no longer changes the state.
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.lastKind = KindNone
	e.setLocked(StateIdle, KindNone)
}

// Execute runs calls as one job and blocks until it reaches a terminal
// state. A second Execute while a job is in flight fails immediately with
// KindAlreadyInFlight and leaves the running job untouched.
func (e *Executor) Execute(ctx context.Context, calls []Call) Result {
	run, state, err := e.begin(calls)
	if err != nil {
		return Result{State: state, Err: err}
	}
	return run(ctx)
}

// Begin claims the executor for calls and returns the function that runs
// the job to a terminal state. The claim and the in-flight check happen
// under one lock, so of two concurrent callers exactly one gets a job.
// Refusals are the same as Execute's and leave the state untouched.
func (e *Executor) Begin(calls []Call) (func(context.Context) Result, error) {
	run, _, err := e.begin(calls)
	return run, err
}

func (e *Executor) begin(calls []Call) (func(context.Context) Result, State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.accepting() {
		metric.BatchJobs.WithLabelValues(e.name, KindAlreadyInFlight.String()).Inc()
		return nil, e.state, &Error{Kind: KindAlreadyInFlight, Index: -1, Err: ErrAlreadyInFlight}
	}
	if len(calls) == 0 {
		metric.BatchJobs.WithLabelValues(e.name, KindInvalidJob.String()).Inc()
		return nil, e.state, &Error{Kind: KindInvalidJob, Index: -1, Err: ErrEmptyJob}
	}
	e.gen++
	gen := e.gen
	e.lastKind = KindNone
	e.setLocked(StatePending, KindNone)
	calls = append([]Call(nil), calls...)
	return func(ctx context.Context) Result { return e.run(ctx, gen, calls) }, StatePending, nil
}

func (e *Executor) run(ctx context.Context, gen uint64, calls []Call) Result {
	start := e.clock.Now()
	e.logger.Info("job started", "calls", len(calls))

	receipts := make([]Receipt, 0, len(calls))
	for i, call := range calls {
		if !e.transition(gen, StatePending, KindNone) {
			return e.detached(receipts)
		}

		hash, err := e.submitter.Submit(ctx, call)
		if err != nil {
			kind := KindSubmissionFailed
			if errors.Is(err, ErrUserRejected) {
				kind = KindUserRejected
			}
			return e.fail(gen, receipts, &Error{Kind: kind, Index: i, Err: err})
		}
		metric.BatchCalls.WithLabelValues(e.name).Inc()
		e.logger.Debug("call submitted", "index", i, "target", call.Target().Hex(), "tx", hash.Hex())

		if i == len(calls)-1 {
			if !e.transition(gen, StateConfirming, KindNone) {
				return e.detached(receipts)
			}
		}

		receipt, err := e.waitConfirmed(ctx, hash)
		if err != nil {
			kind := KindSubmissionFailed
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				kind = KindTimeout
			}
			return e.fail(gen, receipts, &Error{Kind: kind, Index: i, Err: err})
		}
		receipts = append(receipts, receipt)
		if receipt.Status != types.ReceiptStatusSuccessful {
			return e.fail(gen, receipts, &Error{Kind: KindReverted, Index: i, Err: ErrReverted})
		}
	}

	if !e.transition(gen, StateSuccess, KindNone) {
		return e.detached(receipts)
	}
	metric.MeasureDuration(metric.BatchJobDuration, start, e.name)
	metric.BatchJobs.WithLabelValues(e.name, "success").Inc()
	e.logger.Info("job succeeded", "calls", len(calls))

	e.mu.Lock()
	hooks := append([]Hook(nil), e.hooks...)
	e.mu.Unlock()
	for _, h := range hooks {
		h(receipts)
	}
	return Result{State: StateSuccess, Receipts: receipts}
}

func (e *Executor) waitConfirmed(ctx context.Context, hash common.Hash) (Receipt, error) {
	wctx, cancel := e.clock.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()
	return e.watcher.WaitConfirmed(wctx, hash)
}

func (e *Executor) fail(gen uint64, receipts []Receipt, err *Error) Result {
	if !e.transition(gen, StateError, err.Kind) {
		return e.detached(receipts)
	}
	metric.BatchJobs.WithLabelValues(e.name, err.Kind.String()).Inc()
	e.logger.Warn("job failed", "kind", err.Kind.String(), "index", err.Index, "error", err.Err)
	return Result{State: StateError, Receipts: receipts, Err: err}
}

func (e *Executor) detached(receipts []Receipt) Result {
	e.logger.Info("job detached", "confirmed", len(receipts))
	return Result{State: StateIdle, Receipts: receipts, Err: ErrDetached}
}

// transition moves to next only if the job identified by gen still owns
// the executor.
func (e *Executor) transition(gen uint64, next State, kind Kind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return false
	}
	if next == StateError {
		e.lastKind = kind
	}
	e.setLocked(next, kind)
	return true
}

func (e *Executor) setLocked(next State, kind Kind) {
	prev := e.state
	if prev == next {
		return
	}
	e.state = next
	tr := Transition{Executor: e.name, From: prev, To: next, Kind: kind, At: e.clock.Now()}
	for _, ch := range e.subs {
		select {
		case ch <- tr:
		default:
		}
	}
}
