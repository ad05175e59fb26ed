// Package eth connects to the node and implements call submission and
// confirmation on top of it.
package eth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

const dialTimeout = 15 * time.Second

var ErrNoEndpoint = errors.New("no rpc endpoint reachable")

func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	return ethclient.DialContext(ctx, url)
}

// DialFirst tries endpoints in order and returns the first client that
// answers eth_chainId, together with the chain id it reported.
func DialFirst(ctx context.Context, logger *slog.Logger, endpoints []string) (*ethclient.Client, *big.Int, error) {
	var errs []error
	for _, url := range endpoints {
		client, err := Dial(ctx, url)
		if err != nil {
			logger.Warn("rpc dial failed", "url", url, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}

		pctx, cancel := context.WithTimeout(ctx, dialTimeout)
		chainID, err := client.ChainID(pctx)
		cancel()
		if err != nil {
			client.Close()
			logger.Warn("rpc endpoint not answering", "url", url, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}

		logger.Info("connected to rpc", "url", url, "chain_id", chainID)
		return client, chainID, nil
	}
	return nil, nil, fmt.Errorf("%w: %w", ErrNoEndpoint, errors.Join(errs...))
}
