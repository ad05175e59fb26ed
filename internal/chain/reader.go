// Package chain reads rig, auction and pool state from the node.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"
)

// Pair storage layout (UniswapV2ERC20 then UniswapV2Pair):
//
//	slot 0  totalSupply
//	slot 6  token0
//	slot 7  token1
//	slot 8  reserve0 (uint112) | reserve1 (uint112) | blockTimestampLast (uint32)
const (
	slotTotalSupply = 0
	slotToken0      = 6
	slotToken1      = 7
	slotReserves    = 8
)

// Reader performs single reads of authoritative state. It holds no state of
// its own; every call returns a fresh, independent snapshot.
type Reader struct {
	logger    *slog.Logger
	client    *ethclient.Client
	multicall common.Address
	core      common.Address
}

// NewReader constructs a Reader against the given multicall and core
// deployments.
func NewReader(logger *slog.Logger, client *ethclient.Client, multicall, core common.Address) *Reader {
	return &Reader{
		logger:    logger,
		client:    client,
		multicall: multicall,
		core:      core,
	}
}

// ReadRig returns the rig state as seen by viewer.
func (r *Reader) ReadRig(ctx context.Context, rig, viewer common.Address) (*RigSnapshot, error) {
	values, err := r.call(ctx, MulticallABI, r.multicall, "getRig", rig, viewer)
	if err != nil {
		return nil, err
	}
	s := *abi.ConvertType(values[0], new(rigState)).(*rigState)
	r.logger.Debug("rig read", "rig", rig.Hex(), "epoch", s.EpochId, "glazed", s.Glazed)
	return &RigSnapshot{
		EpochID:        s.EpochId,
		EpochStartTime: s.EpochStartTime,
		Price:          s.Price,
		NextUps:        s.NextUps,
		Glazed:         s.Glazed,
		Miner:          s.Miner,
		UnitPrice:      s.UnitPrice,
		UnitBalance:    s.UnitBalance,
		EthBalance:     s.EthBalance,
		RigURI:         s.RigUri,
	}, nil
}

// ReadAuction returns the fee auction state as seen by viewer.
func (r *Reader) ReadAuction(ctx context.Context, rig, viewer common.Address) (*AuctionSnapshot, error) {
	values, err := r.call(ctx, MulticallABI, r.multicall, "getAuction", rig, viewer)
	if err != nil {
		return nil, err
	}
	s := *abi.ConvertType(values[0], new(auctionState)).(*auctionState)
	r.logger.Debug("auction read", "rig", rig.Hex(), "epoch", s.EpochId, "price", s.Price)
	return &AuctionSnapshot{
		EpochID:             s.EpochId,
		InitPrice:           s.InitPrice,
		StartTime:           s.StartTime,
		PaymentToken:        s.PaymentToken,
		Price:               s.Price,
		PaymentTokenPrice:   s.PaymentTokenPrice,
		WethAccumulated:     s.WethAccumulated,
		WethBalance:         s.WethBalance,
		DonutBalance:        s.DonutBalance,
		PaymentTokenBalance: s.PaymentTokenBalance,
	}, nil
}

// ReadUnit resolves the token mined by rig.
func (r *Reader) ReadUnit(ctx context.Context, rig common.Address) (common.Address, error) {
	values, err := r.call(ctx, CoreABI, r.core, "rigToUnit", rig)
	if err != nil {
		return common.Address{}, err
	}
	unit, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: rigToUnit returned %T", ErrUnexpectedOutput, values[0])
	}
	return unit, nil
}

// ReadPoolReserves reads token0, token1, reserves and total supply of a
// Uniswap V2 pair directly from storage, pinned to the latest block.
func (r *Reader) ReadPoolReserves(ctx context.Context, pair common.Address) (*PoolReserves, error) {
	bn, err := r.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	blockNum := new(big.Int).SetUint64(bn)

	var words [4][]byte
	slots := [4]uint64{slotToken0, slotToken1, slotReserves, slotTotalSupply}

	g, gctx := errgroup.WithContext(ctx)
	for i, slot := range slots {
		g.Go(func() error {
			b, err := r.readSlot(gctx, pair, blockNum, slot)
			if err != nil {
				return err
			}
			words[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reserve0, reserve1, ts := parseReserves(words[2])
	res := &PoolReserves{
		Pair:               pair,
		Token0:             common.BytesToAddress(words[0]),
		Token1:             common.BytesToAddress(words[1]),
		Reserve0:           reserve0,
		Reserve1:           reserve1,
		TotalSupply:        new(big.Int).SetBytes(words[3]),
		BlockTimestampLast: ts,
		BlockNumber:        bn,
	}
	r.logger.Debug("pool read", "pair", pair.Hex(), "block", bn, "r0", reserve0, "r1", reserve1)
	return res, nil
}

func (r *Reader) call(ctx context.Context, contractABI abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedOutput, method, len(values))
	}
	return values, nil
}

func (r *Reader) readSlot(ctx context.Context, pair common.Address, blockNum *big.Int, slot uint64) ([]byte, error) {
	key := common.BigToHash(new(big.Int).SetUint64(slot))
	b, err := r.client.StorageAt(ctx, pair, key, blockNum)
	if err != nil {
		return nil, fmt.Errorf("storageAt slot %d (pair %s, block %s): %w",
			slot, pair.Hex(), blockNum.String(), err)
	}
	return b, nil
}

// parseReserves unpacks the packed reserves word. The layout is:
//
//	[ 32 bits timestamp | 112 bits reserve1 | 112 bits reserve0 ]
//
// from most to least significant, big-endian within the 256-bit word.
func parseReserves(b []byte) (reserve0, reserve1 *big.Int, ts uint32) {
	v := new(big.Int).SetBytes(b)
	one := big.NewInt(1)
	mask112 := new(big.Int).Sub(new(big.Int).Lsh(one, 112), one)

	reserve0 = new(big.Int).And(v, mask112)
	tmp := new(big.Int).Rsh(v, 112)
	reserve1 = new(big.Int).And(tmp, mask112)
	ts = uint32(new(big.Int).Rsh(v, 224).Uint64())
	return
}
