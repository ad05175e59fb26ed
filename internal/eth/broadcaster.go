package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Heesho/miner-miniapp/internal/batch"
)

// gas limit headroom over the node estimate, in percent
const gasHeadroomPct = 120

var (
	ErrInvalidKey   = errors.New("invalid private key")
	ErrNoSigner     = errors.New("no signer configured")
	ErrOverSpendCap = errors.New("call value exceeds the configured cap")
)

// ReadOnly refuses every call. It stands in for the Broadcaster when no key
// is configured.
type ReadOnly struct{}

func (ReadOnly) Submit(context.Context, batch.Call) (common.Hash, error) {
	return common.Hash{}, fmt.Errorf("%w: %w", batch.ErrUserRejected, ErrNoSigner)
}

// Approver is asked before every call is signed. Returning an error refuses
// the call.
type Approver func(ctx context.Context, call batch.Call) error

// SpendCap approves calls whose native value is at most maxValue.
func SpendCap(maxValue *big.Int) Approver {
	limit := new(big.Int).Set(maxValue)
	return func(_ context.Context, call batch.Call) error {
		if call.Value().Cmp(limit) > 0 {
			return fmt.Errorf("%w: %s > %s", ErrOverSpendCap, call.Value(), limit)
		}
		return nil
	}
}

// Broadcaster signs calls with a local key and sends them to the node.
type Broadcaster struct {
	logger   *slog.Logger
	client   *ethclient.Client
	key      *ecdsa.PrivateKey
	from     common.Address
	signer   types.Signer
	approver Approver

	// serializes nonce allocation between executors sharing the key
	mu sync.Mutex
}

// NewBroadcaster parses hexKey (with or without 0x) and binds it to chainID.
func NewBroadcaster(logger *slog.Logger, client *ethclient.Client, hexKey string, chainID *big.Int) (*Broadcaster, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &Broadcaster{
		logger: logger,
		client: client,
		key:    key,
		from:   crypto.PubkeyToAddress(key.PublicKey),
		signer: types.LatestSignerForChainID(chainID),
	}, nil
}

// SetApprover installs a hook consulted before signing.
func (b *Broadcaster) SetApprover(a Approver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.approver = a
}

// From is the account calls are sent from.
func (b *Broadcaster) From() common.Address { return b.from }

// Submit signs call as a dynamic fee transaction and broadcasts it. A refusal
// by the approver wraps batch.ErrUserRejected. Signing errors and anything
// the node rejects, including a failing gas estimate, wrap
// batch.ErrSubmissionFailed.
func (b *Broadcaster) Submit(ctx context.Context, call batch.Call) (common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.approver != nil {
		if err := b.approver(ctx, call); err != nil {
			b.logger.Warn("call refused", "to", call.Target().Hex(), "err", err)
			return common.Hash{}, fmt.Errorf("%w: %w", batch.ErrUserRejected, err)
		}
	}

	to := call.Target()
	msg := ethereum.CallMsg{From: b.from, To: &to, Value: call.Value(), Data: call.Payload()}

	nonce, err := b.client.PendingNonceAt(ctx, b.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: nonce: %v", batch.ErrSubmissionFailed, err)
	}
	tip, err := b.client.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: tip cap: %v", batch.ErrSubmissionFailed, err)
	}
	price, err := b.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: gas price: %v", batch.ErrSubmissionFailed, err)
	}
	gas, err := b.client.EstimateGas(ctx, msg)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: estimate gas: %v", batch.ErrSubmissionFailed, err)
	}

	feeCap := new(big.Int).Mul(price, big.NewInt(2))
	if feeCap.Cmp(tip) < 0 {
		feeCap.Set(tip)
	}

	tx, err := types.SignNewTx(b.key, b.signer, &types.DynamicFeeTx{
		ChainID:   b.signer.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas * gasHeadroomPct / 100,
		To:        &to,
		Value:     msg.Value,
		Data:      msg.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: sign: %v", batch.ErrSubmissionFailed, err)
	}

	if err := b.client.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("%w: send: %v", batch.ErrSubmissionFailed, err)
	}
	b.logger.Info("transaction sent", "tx", tx.Hash().Hex(), "to", to.Hex(), "nonce", nonce)
	return tx.Hash(), nil
}
