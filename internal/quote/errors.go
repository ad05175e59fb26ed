package quote

import "errors"

var (
	ErrNoLiquidity     = errors.New("no route or liquidity for pair")
	ErrStaleQuote      = errors.New("quote is stale")
	ErrInvalidAmount   = errors.New("sell amount must be greater than zero")
	ErrSameToken       = errors.New("sell and buy tokens are equal")
	ErrMissingTx       = errors.New("firm quote has no transaction")
	ErrProviderFailure = errors.New("quote provider failure")
)
