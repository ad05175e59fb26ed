package chain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Heesho/miner-miniapp/internal/chain"
	"github.com/Heesho/miner-miniapp/internal/chain/chaintest"
	"github.com/Heesho/miner-miniapp/internal/logging"
)

var (
	multicall = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	core      = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	rig       = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	viewer    = common.HexToAddress("0x00000000000000000000000000000000000000c4")
	pair      = common.HexToAddress("0x0000000000000000000000000000000000000abc")
	token0    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	token1    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func newReader(t *testing.T, b *chaintest.Backend) *chain.Reader {
	t.Helper()
	return chain.NewReader(logging.Discard(), b.Client(t), multicall, core)
}

func TestReadRig(t *testing.T) {
	b := chaintest.NewBackend()
	miner := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	b.SetRig(t, multicall, chain.RigSnapshot{
		EpochID:        big.NewInt(7),
		EpochStartTime: big.NewInt(1_700_000_000),
		Price:          big.NewInt(1e15),
		NextUps:        big.NewInt(5),
		Glazed:         big.NewInt(100),
		Miner:          miner,
		UnitPrice:      big.NewInt(42),
		UnitBalance:    big.NewInt(3),
		EthBalance:     big.NewInt(9),
		RigURI:         "ipfs://rig",
	})

	s, err := newReader(t, b).ReadRig(context.Background(), rig, viewer)
	require.NoError(t, err)
	require.Equal(t, int64(7), s.EpochID.Int64())
	require.Equal(t, int64(1_700_000_000), s.EpochStartTime.Int64())
	require.Equal(t, int64(5), s.NextUps.Int64())
	require.Equal(t, int64(100), s.Glazed.Int64())
	require.Equal(t, miner, s.Miner)
	require.Equal(t, int64(42), s.UnitPrice.Int64())
	require.Equal(t, "ipfs://rig", s.RigURI)
}

func TestReadAuction(t *testing.T) {
	b := chaintest.NewBackend()
	b.SetAuction(t, multicall, chain.AuctionSnapshot{
		EpochID:             big.NewInt(2),
		InitPrice:           big.NewInt(1_000),
		StartTime:           big.NewInt(1_700_000_100),
		PaymentToken:        pair,
		Price:               big.NewInt(600),
		PaymentTokenPrice:   big.NewInt(11),
		WethAccumulated:     big.NewInt(5_000),
		WethBalance:         big.NewInt(1),
		DonutBalance:        big.NewInt(2),
		PaymentTokenBalance: big.NewInt(700),
	})

	s, err := newReader(t, b).ReadAuction(context.Background(), rig, viewer)
	require.NoError(t, err)
	require.Equal(t, pair, s.PaymentToken)
	require.Equal(t, int64(600), s.Price.Int64())
	require.Equal(t, int64(5_000), s.WethAccumulated.Int64())
	require.Equal(t, int64(700), s.PaymentTokenBalance.Int64())
}

func TestReadUnit(t *testing.T) {
	b := chaintest.NewBackend()
	b.SetUnit(t, core, token0)

	unit, err := newReader(t, b).ReadUnit(context.Background(), rig)
	require.NoError(t, err)
	require.Equal(t, token0, unit)
}

func TestReadRig_CallError(t *testing.T) {
	b := chaintest.NewBackend()
	b.FailCalls(errors.New("boom"))

	_, err := newReader(t, b).ReadRig(context.Background(), rig, viewer)
	require.Error(t, err)
}

func TestReadPoolReserves(t *testing.T) {
	b := chaintest.NewBackend()
	b.Block = 12_345
	b.SetPool(pair, token0, token1, big.NewInt(1_000_000), big.NewInt(2_000_000), big.NewInt(777), 1_700_000_000)

	p, err := newReader(t, b).ReadPoolReserves(context.Background(), pair)
	require.NoError(t, err)
	require.Equal(t, token0, p.Token0)
	require.Equal(t, token1, p.Token1)
	require.Equal(t, int64(1_000_000), p.Reserve0.Int64())
	require.Equal(t, int64(2_000_000), p.Reserve1.Int64())
	require.Equal(t, int64(777), p.TotalSupply.Int64())
	require.Equal(t, uint32(1_700_000_000), p.BlockTimestampLast)
	require.Equal(t, uint64(12_345), p.BlockNumber)
	require.False(t, p.Empty())

	in, out, err := p.Oriented(token1)
	require.NoError(t, err)
	require.Equal(t, int64(2_000_000), in.Int64())
	require.Equal(t, int64(1_000_000), out.Int64())

	other, err := p.Other(token1)
	require.NoError(t, err)
	require.Equal(t, token0, other)

	_, _, err = p.Oriented(viewer)
	require.ErrorIs(t, err, chain.ErrPairMismatch)
}

func TestReadPoolReserves_Empty(t *testing.T) {
	b := chaintest.NewBackend()

	p, err := newReader(t, b).ReadPoolReserves(context.Background(), pair)
	require.NoError(t, err)
	require.True(t, p.Empty())
	require.Zero(t, p.TotalSupply.Sign())
}
