// Package batch sequences dependent on-chain calls (typically approve, then
// act) as one logical job tracked through a bounded state machine.
package batch

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Call is a single on-chain invocation. It is immutable once constructed:
// accessors return copies.
type Call struct {
	target  common.Address
	payload []byte
	value   *big.Int
}

// NewCall builds a Call. A nil value is treated as zero; negative values are
// rejected.
func NewCall(target common.Address, payload []byte, value *big.Int) (Call, error) {
	v := new(big.Int)
	if value != nil {
		if value.Sign() < 0 {
			return Call{}, ErrNegativeValue
		}
		v.Set(value)
	}
	return Call{
		target:  target,
		payload: common.CopyBytes(payload),
		value:   v,
	}, nil
}

// Target is the contract or account the call is sent to.
func (c Call) Target() common.Address { return c.target }

// Payload returns a copy of the calldata.
func (c Call) Payload() []byte { return common.CopyBytes(c.payload) }

// Value returns a copy of the wei attached to the call.
func (c Call) Value() *big.Int {
	if c.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(c.value)
}

const erc20ApproveABI = `[{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}]`

var erc20ABI = mustParseABI(erc20ApproveABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("batch: parse abi: %v", err))
	}
	return parsed
}

// EncodeApprove builds an ERC20 approve(spender, amount) call on token.
func EncodeApprove(token, spender common.Address, amount *big.Int) (Call, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return Call{}, fmt.Errorf("pack approve: %w", err)
	}
	return NewCall(token, data, nil)
}

// EncodeContractCall packs method(args...) against contractABI and attaches
// value.
func EncodeContractCall(target common.Address, contractABI abi.ABI, method string, value *big.Int, args ...interface{}) (Call, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return NewCall(target, data, value)
}
