// Package chaintest provides an in-process node for tests. It answers the
// subset of the eth namespace the reader, broadcaster and watcher use.
package chaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/Heesho/miner-miniapp/internal/chain"
)

// Backend is a fake node. Zero values answer with empty data; tests fill the
// fields they need through the Set helpers.
type Backend struct {
	mu sync.Mutex

	ChainID uint64
	Block   uint64
	// storage[address][positionHash] = 32-byte value
	storage map[common.Address]map[common.Hash][]byte
	// calls[to][selector] = returned data
	calls    map[common.Address]map[[4]byte][]byte
	callErr  error
	sendErr  error
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	// revert marks, by send order, transactions whose receipt reports failure
	revert map[int]bool
	// autoMine, when set, produces a receipt as soon as a tx is sent
	autoMine bool
}

// NewBackend returns a Backend on chain id 8453 at block 1 that mines every
// sent transaction immediately.
func NewBackend() *Backend {
	return &Backend{
		ChainID:  8453,
		Block:    1,
		storage:  make(map[common.Address]map[common.Hash][]byte),
		calls:    make(map[common.Address]map[[4]byte][]byte),
		receipts: make(map[common.Hash]*types.Receipt),
		revert:   make(map[int]bool),
		autoMine: true,
	}
}

// Client registers b under the eth namespace of an in-process server and
// returns a client bound to it. The client is closed with the test.
func (b *Backend) Client(t testing.TB) *ethclient.Client {
	t.Helper()
	srv := gethrpc.NewServer()
	if err := srv.RegisterName("eth", b); err != nil {
		t.Fatalf("register rpc service: %v", err)
	}
	c := ethclient.NewClient(gethrpc.DialInProc(srv))
	t.Cleanup(func() {
		c.Close()
		srv.Stop()
	})
	return c
}

// SetStorage stores a 32-byte word.
func (b *Backend) SetStorage(addr common.Address, slot uint64, word []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.storage[addr]
	if !ok {
		m = make(map[common.Hash][]byte)
		b.storage[addr] = m
	}
	m[common.BigToHash(new(big.Int).SetUint64(slot))] = common.LeftPadBytes(word, 32)
}

// SetPool lays out a Uniswap V2 pair in storage.
func (b *Backend) SetPool(pair, token0, token1 common.Address, reserve0, reserve1, supply *big.Int, ts uint32) {
	b.SetStorage(pair, 0, supply.Bytes())
	b.SetStorage(pair, 6, token0.Bytes())
	b.SetStorage(pair, 7, token1.Bytes())
	b.SetStorage(pair, 8, PackReserves(reserve0, reserve1, ts))
}

// SetCallResult answers eth_call to `to` with data for calls whose selector
// matches.
func (b *Backend) SetCallResult(to common.Address, selector []byte, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.calls[to]
	if !ok {
		m = make(map[[4]byte][]byte)
		b.calls[to] = m
	}
	var key [4]byte
	copy(key[:], selector)
	m[key] = data
}

// FailCalls makes every eth_call return err, nil restores normal answers.
func (b *Backend) FailCalls(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callErr = err
}

// FailSends makes eth_sendRawTransaction return err.
func (b *Backend) FailSends(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendErr = err
}

// SetAutoMine controls whether sent transactions get a receipt right away.
func (b *Backend) SetAutoMine(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoMine = on
}

// RevertSend marks the n-th sent transaction (0-based) as reverted.
func (b *Backend) RevertSend(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revert[n] = true
}

// Mine writes a receipt for hash.
func (b *Backend) Mine(hash common.Hash, status uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mineLocked(hash, status)
}

func (b *Backend) mineLocked(hash common.Hash, status uint64) {
	b.Block++
	b.receipts[hash] = &types.Receipt{
		Type:              types.DynamicFeeTxType,
		Status:            status,
		CumulativeGasUsed: 21_000,
		Logs:              []*types.Log{},
		TxHash:            hash,
		GasUsed:           21_000,
		BlockNumber:       new(big.Int).SetUint64(b.Block),
		BlockHash:         common.BigToHash(new(big.Int).SetUint64(b.Block)),
	}
}

// Sent returns the transactions received so far.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// CallArgs is the subset of eth_call arguments the fake inspects. Recent
// clients send calldata as "input", older ones as "data".
type CallArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Data  *hexutil.Bytes  `json:"data"`
	Input *hexutil.Bytes  `json:"input"`
	Value *hexutil.Big    `json:"value"`
}

func (a CallArgs) calldata() []byte {
	if a.Input != nil {
		return *a.Input
	}
	if a.Data != nil {
		return *a.Data
	}
	return nil
}

func (b *Backend) ChainId(ctx context.Context) (*hexutil.Big, error) {
	return (*hexutil.Big)(new(big.Int).SetUint64(b.ChainID)), nil
}

func (b *Backend) BlockNumber(ctx context.Context) (hexutil.Uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return hexutil.Uint64(b.Block), nil
}

func (b *Backend) GetStorageAt(ctx context.Context, addr common.Address, position common.Hash, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.storage[addr]; ok {
		if v, ok := m[position]; ok {
			return hexutil.Bytes(v), nil
		}
	}
	return hexutil.Bytes(make([]byte, 32)), nil
}

func (b *Backend) Call(ctx context.Context, args CallArgs, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.callErr != nil {
		return nil, b.callErr
	}
	data := args.calldata()
	if args.To == nil || len(data) < 4 {
		return nil, errors.New("execution reverted")
	}
	var key [4]byte
	copy(key[:], data[:4])
	out, ok := b.calls[*args.To][key]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return hexutil.Bytes(out), nil
}

func (b *Backend) GetTransactionCount(ctx context.Context, addr common.Address, _ gethrpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return hexutil.Uint64(len(b.sent)), nil
}

func (b *Backend) GasPrice(ctx context.Context) (*hexutil.Big, error) {
	return (*hexutil.Big)(big.NewInt(1_000_000_000)), nil
}

func (b *Backend) MaxPriorityFeePerGas(ctx context.Context) (*hexutil.Big, error) {
	return (*hexutil.Big)(big.NewInt(1_000_000)), nil
}

func (b *Backend) EstimateGas(ctx context.Context, args CallArgs, _ *gethrpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	return hexutil.Uint64(100_000), nil
}

func (b *Backend) SendRawTransaction(ctx context.Context, raw hexutil.Bytes) (common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return common.Hash{}, b.sendErr
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	b.sent = append(b.sent, tx)
	if b.autoMine {
		status := types.ReceiptStatusSuccessful
		if b.revert[len(b.sent)-1] {
			status = types.ReceiptStatusFailed
		}
		b.mineLocked(tx.Hash(), status)
	}
	return tx.Hash(), nil
}

func (b *Backend) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receipts[hash], nil
}

// PackReserves lays out reserves the way a pair stores them in slot 8.
func PackReserves(r0, r1 *big.Int, ts uint32) []byte {
	v := new(big.Int).SetUint64(uint64(ts))
	v.Lsh(v, 112)
	v.Or(v, r1)
	v.Lsh(v, 112)
	v.Or(v, r0)
	return common.LeftPadBytes(v.Bytes(), 32)
}

// Tuple mirrors used to pack multicall outputs.
type rigTuple struct {
	EpochId        *big.Int       `abi:"epochId"`
	EpochStartTime *big.Int       `abi:"epochStartTime"`
	Price          *big.Int       `abi:"price"`
	NextUps        *big.Int       `abi:"nextUps"`
	Glazed         *big.Int       `abi:"glazed"`
	Miner          common.Address `abi:"miner"`
	UnitPrice      *big.Int       `abi:"unitPrice"`
	UnitBalance    *big.Int       `abi:"unitBalance"`
	EthBalance     *big.Int       `abi:"ethBalance"`
	RigUri         string         `abi:"rigUri"`
}

type auctionTuple struct {
	EpochId             *big.Int       `abi:"epochId"`
	InitPrice           *big.Int       `abi:"initPrice"`
	StartTime           *big.Int       `abi:"startTime"`
	PaymentToken        common.Address `abi:"paymentToken"`
	Price               *big.Int       `abi:"price"`
	PaymentTokenPrice   *big.Int       `abi:"paymentTokenPrice"`
	WethAccumulated     *big.Int       `abi:"wethAccumulated"`
	WethBalance         *big.Int       `abi:"wethBalance"`
	DonutBalance        *big.Int       `abi:"donutBalance"`
	PaymentTokenBalance *big.Int       `abi:"paymentTokenBalance"`
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// SetRig answers getRig on multicall with s.
func (b *Backend) SetRig(t testing.TB, multicall common.Address, s chain.RigSnapshot) {
	t.Helper()
	m := chain.MulticallABI.Methods["getRig"]
	out, err := m.Outputs.Pack(rigTuple{
		EpochId:        orZero(s.EpochID),
		EpochStartTime: orZero(s.EpochStartTime),
		Price:          orZero(s.Price),
		NextUps:        orZero(s.NextUps),
		Glazed:         orZero(s.Glazed),
		Miner:          s.Miner,
		UnitPrice:      orZero(s.UnitPrice),
		UnitBalance:    orZero(s.UnitBalance),
		EthBalance:     orZero(s.EthBalance),
		RigUri:         s.RigURI,
	})
	if err != nil {
		t.Fatalf("pack getRig: %v", err)
	}
	b.SetCallResult(multicall, m.ID, out)
}

// SetAuction answers getAuction on multicall with s.
func (b *Backend) SetAuction(t testing.TB, multicall common.Address, s chain.AuctionSnapshot) {
	t.Helper()
	m := chain.MulticallABI.Methods["getAuction"]
	out, err := m.Outputs.Pack(auctionTuple{
		EpochId:             orZero(s.EpochID),
		InitPrice:           orZero(s.InitPrice),
		StartTime:           orZero(s.StartTime),
		PaymentToken:        s.PaymentToken,
		Price:               orZero(s.Price),
		PaymentTokenPrice:   orZero(s.PaymentTokenPrice),
		WethAccumulated:     orZero(s.WethAccumulated),
		WethBalance:         orZero(s.WethBalance),
		DonutBalance:        orZero(s.DonutBalance),
		PaymentTokenBalance: orZero(s.PaymentTokenBalance),
	})
	if err != nil {
		t.Fatalf("pack getAuction: %v", err)
	}
	b.SetCallResult(multicall, m.ID, out)
}

// SetUnit answers rigToUnit on core with unit.
func (b *Backend) SetUnit(t testing.TB, core, unit common.Address) {
	t.Helper()
	m := chain.CoreABI.Methods["rigToUnit"]
	out, err := m.Outputs.Pack(unit)
	if err != nil {
		t.Fatalf("pack rigToUnit: %v", err)
	}
	b.SetCallResult(core, m.ID, out)
}
