package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Heesho/miner-miniapp/internal/chain"
	"github.com/Heesho/miner-miniapp/pkg/uniswapv2"
)

// PoolReader reads pair reserves.
type PoolReader interface {
	ReadPoolReserves(ctx context.Context, pair common.Address) (*chain.PoolReserves, error)
}

// EstimateService provides Uniswap V2 output amount estimations from
// on-chain pair storage.
type EstimateService struct {
	BaseService
	pools PoolReader
}

// NewEstimateService constructs an EstimateService using the provided logger
// and pool reader.
func NewEstimateService(logger *slog.Logger, pools PoolReader) *EstimateService {
	return &EstimateService{
		BaseService: BaseService{logger: logger},
		pools:       pools,
	}
}

// Estimate computes the expected output amount for swapping amountIn of src to
// dst in the provided pool at the latest block.
func (e *EstimateService) Estimate(ctx context.Context, pool, src, dst common.Address, amountIn *big.Int) (*big.Int, error) {
	e.logger.Debug("estimating swap", "pool", pool.Hex(), "src", src.Hex(), "dst", dst.Hex(), "in", amountIn.String())

	if src == dst {
		return nil, ErrSameToken
	}

	reserves, err := e.pools.ReadPoolReserves(ctx, pool)
	if err != nil {
		return nil, err
	}

	other, err := reserves.Other(src)
	if err != nil || other != dst {
		return nil, ErrPairMismatch
	}
	reserveIn, reserveOut, err := reserves.Oriented(src)
	if err != nil {
		if errors.Is(err, chain.ErrPairMismatch) {
			return nil, ErrPairMismatch
		}
		return nil, err
	}

	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, ErrEmptyReserves
	}

	var outAmt, tmp1, tmp2 big.Int
	out := uniswapv2.GetAmountOut(&outAmt, &tmp1, &tmp2, amountIn, reserveIn, reserveOut)
	e.logger.Debug("amount out computed", "out", out.String())
	return out, nil
}
