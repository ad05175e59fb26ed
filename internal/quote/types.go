package quote

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/Heesho/miner-miniapp/internal/batch"
)

// NativeToken is the pseudo-address quote providers use for ETH.
var NativeToken = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// Request keys a quote. Taker and SlippageBps are only sent for firm quotes.
type Request struct {
	SellToken   common.Address
	BuyToken    common.Address
	SellAmount  *big.Int
	Taker       common.Address
	SlippageBps int64
}

// Key returns the identity a quote is bound to.
func (r Request) Key() Key {
	return Key{SellToken: r.SellToken, BuyToken: r.BuyToken, SellAmount: amountString(r.SellAmount)}
}

// Key identifies the (sellToken, buyToken, sellAmount) combination a quote
// was issued for.
type Key struct {
	SellToken  common.Address
	BuyToken   common.Address
	SellAmount string
}

// Estimate is a price-only quote. USD fields are nil when the provider did
// not report them.
type Estimate struct {
	SellToken     common.Address
	BuyToken      common.Address
	SellAmount    *big.Int
	BuyAmount     *big.Int
	SellAmountUSD *decimal.Decimal
	BuyAmountUSD  *decimal.Decimal
}

// Key returns the identity of the estimate.
func (e *Estimate) Key() Key {
	return Key{SellToken: e.SellToken, BuyToken: e.BuyToken, SellAmount: amountString(e.SellAmount)}
}

// Quote is a firm quote. Transaction is opaque: the engine never inspects
// the bound it encodes.
type Quote struct {
	Estimate
	Taker       common.Address
	SlippageBps int64
	Transaction *batch.Call
	Deadline    time.Time
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
