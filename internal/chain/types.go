package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RigSnapshot is one read of the rig state. It is never merged with a
// previous read: the next snapshot replaces it entirely.
type RigSnapshot struct {
	EpochID        *big.Int       `json:"epochId"`
	EpochStartTime *big.Int       `json:"epochStartTime"`
	Price          *big.Int       `json:"price"`
	NextUps        *big.Int       `json:"nextUps"` // accrual per second
	Glazed         *big.Int       `json:"glazed"`  // accrued at snapshot time
	Miner          common.Address `json:"miner"`
	UnitPrice      *big.Int       `json:"unitPrice"`
	UnitBalance    *big.Int       `json:"unitBalance"`
	EthBalance     *big.Int       `json:"ethBalance"`
	RigURI         string         `json:"rigUri"`
}

// AuctionSnapshot is one read of the fee auction state.
type AuctionSnapshot struct {
	EpochID             *big.Int       `json:"epochId"`
	InitPrice           *big.Int       `json:"initPrice"`
	StartTime           *big.Int       `json:"startTime"`
	PaymentToken        common.Address `json:"paymentToken"`
	Price               *big.Int       `json:"price"`
	PaymentTokenPrice   *big.Int       `json:"paymentTokenPrice"`
	WethAccumulated     *big.Int       `json:"wethAccumulated"`
	WethBalance         *big.Int       `json:"wethBalance"`
	DonutBalance        *big.Int       `json:"donutBalance"`
	PaymentTokenBalance *big.Int       `json:"paymentTokenBalance"`
}

// PoolReserves is the state of a Uniswap V2 pair at one block.
type PoolReserves struct {
	Pair               common.Address `json:"pair"`
	Token0             common.Address `json:"token0"`
	Token1             common.Address `json:"token1"`
	Reserve0           *big.Int       `json:"reserve0"`
	Reserve1           *big.Int       `json:"reserve1"`
	TotalSupply        *big.Int       `json:"totalSupply"`
	BlockTimestampLast uint32         `json:"blockTimestampLast"`
	BlockNumber        uint64         `json:"blockNumber"`
}

// Oriented returns the reserves as (reserve of token, reserve of the other
// token).
func (p *PoolReserves) Oriented(token common.Address) (*big.Int, *big.Int, error) {
	switch token {
	case p.Token0:
		return p.Reserve0, p.Reserve1, nil
	case p.Token1:
		return p.Reserve1, p.Reserve0, nil
	default:
		return nil, nil, ErrPairMismatch
	}
}

// Other returns the token paired with token.
func (p *PoolReserves) Other(token common.Address) (common.Address, error) {
	switch token {
	case p.Token0:
		return p.Token1, nil
	case p.Token1:
		return p.Token0, nil
	default:
		return common.Address{}, ErrPairMismatch
	}
}

// Empty reports whether either side of the pool holds nothing.
func (p *PoolReserves) Empty() bool {
	return p.Reserve0 == nil || p.Reserve1 == nil || p.Reserve0.Sign() == 0 || p.Reserve1.Sign() == 0
}

// rigState and auctionState mirror the multicall tuples field for field.
type rigState struct {
	EpochId        *big.Int
	EpochStartTime *big.Int
	Price          *big.Int
	NextUps        *big.Int
	Glazed         *big.Int
	Miner          common.Address
	UnitPrice      *big.Int
	UnitBalance    *big.Int
	EthBalance     *big.Int
	RigUri         string
}

type auctionState struct {
	EpochId             *big.Int
	InitPrice           *big.Int
	StartTime           *big.Int
	PaymentToken        common.Address
	Price               *big.Int
	PaymentTokenPrice   *big.Int
	WethAccumulated     *big.Int
	WethBalance         *big.Int
	DonutBalance        *big.Int
	PaymentTokenBalance *big.Int
}
