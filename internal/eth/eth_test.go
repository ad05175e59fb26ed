package eth

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/Heesho/miner-miniapp/internal/batch"
	"github.com/Heesho/miner-miniapp/internal/chain/chaintest"
	"github.com/Heesho/miner-miniapp/internal/logging"
)

var target = common.HexToAddress("0x00000000000000000000000000000000000000ee")

func newBroadcaster(t *testing.T, b *chaintest.Backend) *Broadcaster {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	br, err := NewBroadcaster(logging.Discard(), b.Client(t), hexutil.Encode(crypto.FromECDSA(key)), big.NewInt(8453))
	require.NoError(t, err)
	return br
}

func call(t *testing.T, value int64) batch.Call {
	t.Helper()
	c, err := batch.NewCall(target, []byte{0xca, 0xfe}, big.NewInt(value))
	require.NoError(t, err)
	return c
}

func TestNewBroadcaster_InvalidKey(t *testing.T) {
	_, err := NewBroadcaster(logging.Discard(), nil, "0x1234", big.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestBroadcaster_Submit(t *testing.T) {
	b := chaintest.NewBackend()
	br := newBroadcaster(t, b)

	hash, err := br.Submit(context.Background(), call(t, 7))
	require.NoError(t, err)

	sent := b.Sent()
	require.Len(t, sent, 1)
	tx := sent[0]
	require.Equal(t, hash, tx.Hash())
	require.Equal(t, target, *tx.To())
	require.Equal(t, int64(7), tx.Value().Int64())
	require.Equal(t, []byte{0xca, 0xfe}, tx.Data())
	require.Equal(t, uint64(0), tx.Nonce())
	require.Equal(t, uint64(120_000), tx.Gas())

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(8453)), tx)
	require.NoError(t, err)
	require.Equal(t, br.From(), from)

	// nonce follows the pending count
	_, err = br.Submit(context.Background(), call(t, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(1), b.Sent()[1].Nonce())
}

func TestBroadcaster_ApproverRefuses(t *testing.T) {
	b := chaintest.NewBackend()
	br := newBroadcaster(t, b)
	br.SetApprover(func(context.Context, batch.Call) error { return errors.New("denied") })

	_, err := br.Submit(context.Background(), call(t, 0))
	require.ErrorIs(t, err, batch.ErrUserRejected)
	require.Empty(t, b.Sent())
}

func TestBroadcaster_SpendCap(t *testing.T) {
	b := chaintest.NewBackend()
	br := newBroadcaster(t, b)
	br.SetApprover(SpendCap(big.NewInt(10)))

	_, err := br.Submit(context.Background(), call(t, 10))
	require.NoError(t, err)

	_, err = br.Submit(context.Background(), call(t, 11))
	require.ErrorIs(t, err, batch.ErrUserRejected)
	require.ErrorIs(t, err, ErrOverSpendCap)
	require.Len(t, b.Sent(), 1)
}

func TestBroadcaster_SigningFailureIsSubmissionFailure(t *testing.T) {
	b := chaintest.NewBackend()
	br := newBroadcaster(t, b)
	// legacy-only signer cannot sign a dynamic fee transaction
	br.signer = types.HomesteadSigner{}

	_, err := br.Submit(context.Background(), call(t, 0))
	require.ErrorIs(t, err, batch.ErrSubmissionFailed)
	require.NotErrorIs(t, err, batch.ErrUserRejected)
	require.Empty(t, b.Sent())
}

func TestBroadcaster_NodeRejects(t *testing.T) {
	b := chaintest.NewBackend()
	b.FailSends(errors.New("insufficient funds for gas * price + value"))
	br := newBroadcaster(t, b)

	_, err := br.Submit(context.Background(), call(t, 0))
	require.ErrorIs(t, err, batch.ErrSubmissionFailed)
}

func TestReadOnly_Refuses(t *testing.T) {
	_, err := ReadOnly{}.Submit(context.Background(), call(t, 0))
	require.ErrorIs(t, err, batch.ErrUserRejected)
	require.ErrorIs(t, err, ErrNoSigner)
}

func TestWatcher_WaitsForReceipt(t *testing.T) {
	b := chaintest.NewBackend()
	w := NewWatcher(logging.Discard(), b.Client(t), clock.New(), 5*time.Millisecond)
	hash := common.HexToHash("0x01")

	go func() {
		time.Sleep(20 * time.Millisecond)
		b.Mine(hash, types.ReceiptStatusSuccessful)
	}()

	r, err := w.WaitConfirmed(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, hash, r.TxHash)
	require.Equal(t, types.ReceiptStatusSuccessful, r.Status)
	require.NotNil(t, r.BlockNumber)
}

func TestWatcher_ContextEnds(t *testing.T) {
	b := chaintest.NewBackend()
	w := NewWatcher(logging.Discard(), b.Client(t), clock.New(), 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := w.WaitConfirmed(ctx, common.HexToHash("0x02"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecutor_OverNode(t *testing.T) {
	b := chaintest.NewBackend()
	br := newBroadcaster(t, b)
	w := NewWatcher(logging.Discard(), b.Client(t), clock.New(), 5*time.Millisecond)
	ex := batch.NewExecutor("lp", logging.Discard(), br, w)

	res := ex.Execute(context.Background(), []batch.Call{call(t, 0), call(t, 1)})
	require.NoError(t, res.Err)
	final, ok := res.Final()
	require.True(t, ok)
	require.Equal(t, b.Sent()[1].Hash(), final.TxHash)

	ex.Reset()
	b.RevertSend(2)
	res = ex.Execute(context.Background(), []batch.Call{call(t, 0), call(t, 0), call(t, 0)})
	require.ErrorIs(t, res.Err, batch.ErrReverted)
	// first call of the second job reverted, the rest were never sent
	require.Len(t, b.Sent(), 3)
}
