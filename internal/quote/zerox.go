package quote

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/sling"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/Heesho/miner-miniapp/internal/batch"
)

const (
	defaultMaxIdleConns    = 10
	defaultIdleConnTimeout = 2 * time.Second
	defaultRequestTimeout  = 10 * time.Second

	pricePath = "swap/allowance-holder/price"
	quotePath = "swap/allowance-holder/quote"
)

// Provider fetches quotes from an external aggregator.
type Provider interface {
	// Price returns a price-only estimate.
	Price(ctx context.Context, req Request) (*Estimate, error)
	// Firm returns a quote carrying an executable transaction for req.Taker.
	// The returned Deadline is left zero; the engine stamps it.
	Firm(ctx context.Context, req Request) (*Quote, error)
}

type zeroXParams struct {
	ChainID     int64  `url:"chainId"`
	SellToken   string `url:"sellToken"`
	BuyToken    string `url:"buyToken"`
	SellAmount  string `url:"sellAmount"`
	Taker       string `url:"taker,omitempty"`
	SlippageBps int64  `url:"slippageBps,omitempty"`
}

type zeroXResponse struct {
	LiquidityAvailable *bool             `json:"liquidityAvailable"`
	SellAmount         string            `json:"sellAmount"`
	BuyAmount          string            `json:"buyAmount"`
	SellAmountUsd      string            `json:"sellAmountUsd"`
	BuyAmountUsd       string            `json:"buyAmountUsd"`
	Transaction        *zeroXTransaction `json:"transaction"`
}

type zeroXTransaction struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

type zeroXError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ZeroX is a Provider backed by the 0x swap API.
type ZeroX struct {
	client  *sling.Sling
	chainID int64
}

// NewZeroX builds a client for baseURL. apiKey may be empty for proxies that
// inject it.
func NewZeroX(baseURL, apiKey string, chainID int64) *ZeroX {
	tr := &http.Transport{
		MaxIdleConns:       defaultMaxIdleConns,
		IdleConnTimeout:    defaultIdleConnTimeout,
		DisableCompression: true,
	}
	httpClient := &http.Client{Transport: tr, Timeout: defaultRequestTimeout}
	base := strings.TrimRight(baseURL, "/") + "/"
	s := sling.New().Base(base).Client(httpClient).Set("0x-version", "v2")
	if apiKey != "" {
		s = s.Set("0x-api-key", apiKey)
	}
	return &ZeroX{client: s, chainID: chainID}
}

func (z *ZeroX) Price(ctx context.Context, req Request) (*Estimate, error) {
	resp, err := z.get(ctx, pricePath, zeroXParams{
		ChainID:    z.chainID,
		SellToken:  req.SellToken.Hex(),
		BuyToken:   req.BuyToken.Hex(),
		SellAmount: amountString(req.SellAmount),
	})
	if err != nil {
		return nil, err
	}
	return resp.estimate(req)
}

func (z *ZeroX) Firm(ctx context.Context, req Request) (*Quote, error) {
	resp, err := z.get(ctx, quotePath, zeroXParams{
		ChainID:     z.chainID,
		SellToken:   req.SellToken.Hex(),
		BuyToken:    req.BuyToken.Hex(),
		SellAmount:  amountString(req.SellAmount),
		Taker:       req.Taker.Hex(),
		SlippageBps: req.SlippageBps,
	})
	if err != nil {
		return nil, err
	}
	est, err := resp.estimate(req)
	if err != nil {
		return nil, err
	}
	if resp.Transaction == nil || resp.Transaction.To == "" {
		return nil, ErrMissingTx
	}
	call, err := resp.Transaction.call()
	if err != nil {
		return nil, err
	}
	return &Quote{
		Estimate:    *est,
		Taker:       req.Taker,
		SlippageBps: req.SlippageBps,
		Transaction: &call,
	}, nil
}

func (z *ZeroX) get(ctx context.Context, path string, params zeroXParams) (*zeroXResponse, error) {
	httpReq, err := z.client.New().Get(path).QueryStruct(params).Request()
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}
	var ok zeroXResponse
	var apiErr zeroXError
	res, err := z.client.Do(httpReq.WithContext(ctx), &ok, &apiErr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		if isNoLiquidity(apiErr.Name) {
			return nil, ErrNoLiquidity
		}
		return nil, fmt.Errorf("%w: status %d %s %s", ErrProviderFailure, res.StatusCode, apiErr.Name, apiErr.Message)
	}
	return &ok, nil
}

func isNoLiquidity(name string) bool {
	n := strings.ToUpper(name)
	return strings.Contains(n, "LIQUIDITY") || strings.Contains(n, "NO_ROUTE")
}

func (r *zeroXResponse) estimate(req Request) (*Estimate, error) {
	if r.LiquidityAvailable != nil && !*r.LiquidityAvailable {
		return nil, ErrNoLiquidity
	}
	buy, ok := new(big.Int).SetString(r.BuyAmount, 10)
	if !ok {
		return nil, ErrNoLiquidity
	}
	if buy.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative buyAmount %s", ErrProviderFailure, r.BuyAmount)
	}
	sell := new(big.Int).Set(req.SellAmount)
	if r.SellAmount != "" {
		if v, ok := new(big.Int).SetString(r.SellAmount, 10); ok {
			sell = v
		}
	}
	return &Estimate{
		SellToken:     req.SellToken,
		BuyToken:      req.BuyToken,
		SellAmount:    sell,
		BuyAmount:     buy,
		SellAmountUSD: parseUSD(r.SellAmountUsd),
		BuyAmountUSD:  parseUSD(r.BuyAmountUsd),
	}, nil
}

func (t *zeroXTransaction) call() (batch.Call, error) {
	if !common.IsHexAddress(t.To) {
		return batch.Call{}, fmt.Errorf("%w: invalid transaction target %q", ErrProviderFailure, t.To)
	}
	data, err := hexutil.Decode(t.Data)
	if err != nil {
		return batch.Call{}, fmt.Errorf("%w: transaction data: %v", ErrProviderFailure, err)
	}
	value := new(big.Int)
	if t.Value != "" {
		v, ok := new(big.Int).SetString(t.Value, 0)
		if !ok {
			return batch.Call{}, fmt.Errorf("%w: transaction value %q", ErrProviderFailure, t.Value)
		}
		value = v
	}
	return batch.NewCall(common.HexToAddress(t.To), data, value)
}

func parseUSD(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}
