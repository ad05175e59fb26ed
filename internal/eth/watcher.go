package eth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Heesho/miner-miniapp/internal/batch"
)

const DefaultReceiptPollInterval = 2 * time.Second

// Watcher polls the node for receipts.
type Watcher struct {
	logger   *slog.Logger
	client   *ethclient.Client
	clock    clock.Clock
	interval time.Duration
}

// NewWatcher builds a Watcher polling every interval.
func NewWatcher(logger *slog.Logger, client *ethclient.Client, c clock.Clock, interval time.Duration) *Watcher {
	if c == nil {
		c = clock.New()
	}
	if interval <= 0 {
		interval = DefaultReceiptPollInterval
	}
	return &Watcher{logger: logger, client: client, clock: c, interval: interval}
}

// WaitConfirmed blocks until hash has a receipt or ctx is done. Transient
// node errors are logged and polling continues.
func (w *Watcher) WaitConfirmed(ctx context.Context, hash common.Hash) (batch.Receipt, error) {
	ticker := w.clock.Ticker(w.interval)
	defer ticker.Stop()

	for {
		r, err := w.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			w.logger.Debug("receipt observed", "tx", hash.Hex(), "status", r.Status, "block", r.BlockNumber)
			return batch.Receipt{TxHash: hash, Status: r.Status, BlockNumber: r.BlockNumber}, nil
		case errors.Is(err, ethereum.NotFound):
		case ctx.Err() != nil:
			return batch.Receipt{}, ctx.Err()
		default:
			w.logger.Debug("receipt poll failed", "tx", hash.Hex(), "err", err)
		}

		select {
		case <-ctx.Done():
			return batch.Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
