package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Heesho/miner-miniapp/internal/batch"
)

func TestFlow_SubmitSuccessShowsNotice(t *testing.T) {
	c := mockClock()
	ex := succeeding("mine")
	f := newFlow(c, ex)

	require.NoError(t, f.Submit([]batch.Call{{}}))
	f.Wait()

	st := f.Status()
	require.Equal(t, "mine", st.Executor)
	require.Equal(t, batch.StateSuccess, st.State)
	require.Equal(t, OutcomeSuccess, st.Notice)
	require.Len(t, ex.Jobs(), 1)
}

func TestFlow_FailureNoticeCarriesKind(t *testing.T) {
	c := mockClock()
	ex := &fakeExecutor{name: "swap", result: batch.Result{
		State: batch.StateError,
		Err:   &batch.Error{Kind: batch.KindReverted, Index: 1, Err: batch.ErrReverted},
	}}
	f := newFlow(c, ex)

	res := f.Execute(t.Context(), []batch.Call{{}, {}})
	require.ErrorIs(t, res.Err, batch.ErrReverted)

	st := f.Status()
	require.Equal(t, batch.StateError, st.State)
	require.Equal(t, batch.KindReverted, st.LastKind)
	require.Equal(t, OutcomeFailure, st.Notice)
	require.Equal(t, batch.KindReverted, st.Reason)
}

func TestFlow_NoticeExpires(t *testing.T) {
	c := mockClock()
	f := newFlow(c, succeeding("lp"))

	f.Execute(t.Context(), []batch.Call{{}})
	c.Add(NoticeTTL - time.Millisecond)
	require.Equal(t, OutcomeSuccess, f.Status().Notice)

	c.Add(time.Millisecond)
	st := f.Status()
	require.Equal(t, OutcomeNone, st.Notice)
	// the executor keeps its terminal state until reset
	require.Equal(t, batch.StateSuccess, st.State)
}

func TestFlow_SubmitWhileInFlight(t *testing.T) {
	c := mockClock()
	ex := succeeding("auction")
	ex.gate = make(chan struct{})
	f := newFlow(c, ex)

	require.NoError(t, f.Submit([]batch.Call{{}}))
	require.Eventually(t, func() bool { return ex.State().InFlight() }, time.Second, time.Millisecond)

	require.ErrorIs(t, f.Submit([]batch.Call{{}}), ErrJobInFlight)

	close(ex.gate)
	f.Wait()
	require.Len(t, ex.Jobs(), 1)
	require.Equal(t, batch.StateSuccess, f.Status().State)
}

func TestFlow_ResetDelegates(t *testing.T) {
	ex := succeeding("mine")
	f := newFlow(mockClock(), ex)

	f.Execute(t.Context(), []batch.Call{{}})
	f.Reset()
	require.Equal(t, batch.StateIdle, f.Status().State)
	require.Equal(t, 1, ex.resets)
}

func TestNotice_DetachedShowsNothing(t *testing.T) {
	n := NewNotice(mockClock(), NoticeTTL)
	n.Record(batch.Result{State: batch.StateIdle, Err: batch.ErrDetached})
	o, _ := n.Current()
	require.Equal(t, OutcomeNone, o)
}

func TestNotice_IgnoresRefusedJob(t *testing.T) {
	n := NewNotice(mockClock(), NoticeTTL)
	n.Record(batch.Result{
		State: batch.StateConfirming,
		Err:   &batch.Error{Kind: batch.KindAlreadyInFlight, Index: -1, Err: batch.ErrAlreadyInFlight},
	})
	o, _ := n.Current()
	require.Equal(t, OutcomeNone, o)
}

func TestFlow_ConcurrentSubmitsStartOneJob(t *testing.T) {
	ex := succeeding("swap")
	ex.gate = make(chan struct{})
	f := newFlow(mockClock(), ex)

	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.Submit([]batch.Call{{}})
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, err, ErrJobInFlight)
	}
	require.Equal(t, 1, accepted)

	close(ex.gate)
	f.Wait()
	require.Len(t, ex.Jobs(), 1)
	require.Equal(t, OutcomeSuccess, f.Status().Notice)
}
