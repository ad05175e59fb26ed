package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const multicallJSON = `[
  {"inputs":[{"name":"rig","type":"address"},{"name":"account","type":"address"}],"name":"getRig",
   "outputs":[{"components":[
     {"name":"epochId","type":"uint256"},{"name":"epochStartTime","type":"uint256"},
     {"name":"price","type":"uint256"},{"name":"nextUps","type":"uint256"},
     {"name":"glazed","type":"uint256"},{"name":"miner","type":"address"},
     {"name":"unitPrice","type":"uint256"},{"name":"unitBalance","type":"uint256"},
     {"name":"ethBalance","type":"uint256"},{"name":"rigUri","type":"string"}],
   "name":"state","type":"tuple"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"rig","type":"address"},{"name":"account","type":"address"}],"name":"getAuction",
   "outputs":[{"components":[
     {"name":"epochId","type":"uint256"},{"name":"initPrice","type":"uint256"},
     {"name":"startTime","type":"uint256"},{"name":"paymentToken","type":"address"},
     {"name":"price","type":"uint256"},{"name":"paymentTokenPrice","type":"uint256"},
     {"name":"wethAccumulated","type":"uint256"},{"name":"wethBalance","type":"uint256"},
     {"name":"donutBalance","type":"uint256"},{"name":"paymentTokenBalance","type":"uint256"}],
   "name":"state","type":"tuple"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"rig","type":"address"},{"name":"epochId","type":"uint256"},{"name":"deadline","type":"uint256"},
     {"name":"maxPrice","type":"uint256"},{"name":"epochUri","type":"string"}],
   "name":"mine","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[{"name":"rig","type":"address"},{"name":"epochId","type":"uint256"},{"name":"deadline","type":"uint256"},
     {"name":"maxPaymentTokenAmount","type":"uint256"}],
   "name":"buy","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const coreJSON = `[
  {"inputs":[{"name":"rig","type":"address"}],"name":"rigToUnit",
   "outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const routerJSON = `[
  {"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},
     {"name":"amountADesired","type":"uint256"},{"name":"amountBDesired","type":"uint256"},
     {"name":"amountAMin","type":"uint256"},{"name":"amountBMin","type":"uint256"},
     {"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
   "name":"addLiquidity","outputs":[{"name":"amountA","type":"uint256"},{"name":"amountB","type":"uint256"},
     {"name":"liquidity","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}
]`

// Contract ABIs shared by the reader and the flows that encode calls.
var (
	MulticallABI = mustParse(multicallJSON)
	CoreABI      = mustParse(coreJSON)
	RouterABI    = mustParse(routerJSON)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("chain: parse abi: %v", err))
	}
	return parsed
}
