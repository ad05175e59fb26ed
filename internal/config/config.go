package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env"
	"github.com/ethereum/go-ethereum/common"
)

// Base mainnet deployments used when nothing else is configured.
const defaultValues = `
addr = ":1337"
log_level = "info"
log_format = "text"
chain_id = 8453

multicall_address = "0x0000000000000000000000000000000000000000"
core_address = "0x0000000000000000000000000000000000000000"
unit_address = "0x0000000000000000000000000000000000000000"
router_address = "0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24"
donut_address = "0x0000000000000000000000000000000000000000"
weth_address = "0x4200000000000000000000000000000000000006"

quote_api_url = "https://api.0x.org"
price_api_url = "https://api.coingecko.com"
price_cache_ttl_seconds = 60
default_eth_price_usd = 3500.0
default_donut_price_usd = 0.001

rig_poll_seconds = 15
auction_poll_seconds = 15
pool_poll_seconds = 30
confirm_timeout_seconds = 120
quote_ttl_seconds = 30
deadline_buffer_seconds = 900
auction_deadline_buffer_seconds = 300
`

// Config is the flattened application configuration. Values are layered as
// defaults, then the optional TOML file, then environment variables.
type Config struct {
	Addr         string   `toml:"addr" env:"ADDR"`
	RPCEndpoint  string   `toml:"rpc_endpoint" env:"ETH_RPC_URL"`
	RPCFallbacks []string `toml:"rpc_fallbacks" env:"ETH_RPC_FALLBACKS" envSeparator:","`
	ChainID      int64    `toml:"chain_id" env:"CHAIN_ID"`
	LogLevel     string   `toml:"log_level" env:"LOG_LEVEL"`
	LogFormat    string   `toml:"log_format" env:"LOG_FORMAT"`

	RigAddress       string `toml:"rig_address" env:"RIG_ADDRESS"`
	MulticallAddress string `toml:"multicall_address" env:"MULTICALL_ADDRESS"`
	CoreAddress      string `toml:"core_address" env:"CORE_ADDRESS"`
	// UnitAddress overrides the rigToUnit lookup on core when set.
	UnitAddress      string `toml:"unit_address" env:"UNIT_ADDRESS"`
	RouterAddress    string `toml:"router_address" env:"ROUTER_ADDRESS"`
	DonutAddress     string `toml:"donut_address" env:"DONUT_ADDRESS"`
	WETHAddress      string `toml:"weth_address" env:"WETH_ADDRESS"`

	// PrivateKey backs the local signer. Without it the API is read-only.
	PrivateKey string `toml:"private_key" env:"PRIVATE_KEY"`
	// MaxCallValueWei caps the native value of any single call the signer
	// will approve. Empty means no cap.
	MaxCallValueWei string `toml:"max_call_value_wei" env:"MAX_CALL_VALUE_WEI"`

	QuoteAPIURL string `toml:"quote_api_url" env:"QUOTE_API_URL"`
	QuoteAPIKey string `toml:"quote_api_key" env:"QUOTE_API_KEY"`
	PriceAPIURL string `toml:"price_api_url" env:"PRICE_API_URL"`

	PriceCacheTTLSeconds int     `toml:"price_cache_ttl_seconds" env:"PRICE_CACHE_TTL_SECONDS"`
	DefaultEthPriceUSD   float64 `toml:"default_eth_price_usd" env:"DEFAULT_ETH_PRICE_USD"`
	DefaultDonutPriceUSD float64 `toml:"default_donut_price_usd" env:"DEFAULT_DONUT_PRICE_USD"`

	RigPollSeconds               int `toml:"rig_poll_seconds" env:"RIG_POLL_SECONDS"`
	AuctionPollSeconds           int `toml:"auction_poll_seconds" env:"AUCTION_POLL_SECONDS"`
	PoolPollSeconds              int `toml:"pool_poll_seconds" env:"POOL_POLL_SECONDS"`
	ConfirmTimeoutSeconds        int `toml:"confirm_timeout_seconds" env:"CONFIRM_TIMEOUT_SECONDS"`
	QuoteTTLSeconds              int `toml:"quote_ttl_seconds" env:"QUOTE_TTL_SECONDS"`
	DeadlineBufferSeconds        int `toml:"deadline_buffer_seconds" env:"DEADLINE_BUFFER_SECONDS"`
	AuctionDeadlineBufferSeconds int `toml:"auction_deadline_buffer_seconds" env:"AUCTION_DEADLINE_BUFFER_SECONDS"`
}

// Load reads the configuration. filePath may be empty, in which case only
// defaults and the environment are used.
func Load(filePath string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.Decode(defaultValues, cfg); err != nil {
		return nil, fmt.Errorf("error loading default configuration: %w", err)
	}

	if filePath != "" {
		bs, err := os.ReadFile(filepath.Clean(filePath))
		if err != nil {
			return nil, fmt.Errorf("error loading configuration file: %w", err)
		}
		if _, err := toml.Decode(string(bs), cfg); err != nil {
			return nil, fmt.Errorf("error loading configuration file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv loads the configuration without a file, honouring CONFIG_FILE when
// it is set.
func FromEnv() (*Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

func (c *Config) validate() error {
	if c.RPCEndpoint == "" {
		return ErrMissingRPCEndpoint
	}
	if c.RigAddress == "" {
		return ErrMissingRigAddress
	}

	addresses := map[string]string{
		"rig":       c.RigAddress,
		"multicall": c.MulticallAddress,
		"core":      c.CoreAddress,
		"unit":      c.UnitAddress,
		"router":    c.RouterAddress,
		"donut":     c.DonutAddress,
		"weth":      c.WETHAddress,
	}
	for field, addr := range addresses {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%w: %s=%q", ErrInvalidAddress, field, addr)
		}
	}

	for _, v := range []int{
		c.RigPollSeconds, c.AuctionPollSeconds, c.PoolPollSeconds,
		c.ConfirmTimeoutSeconds, c.QuoteTTLSeconds, c.PriceCacheTTLSeconds,
		c.DeadlineBufferSeconds, c.AuctionDeadlineBufferSeconds,
	} {
		if v <= 0 {
			return ErrInvalidInterval
		}
	}
	if c.MaxCallValueWei != "" {
		if v, ok := new(big.Int).SetString(c.MaxCallValueWei, 10); !ok || v.Sign() <= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidSpendLimit, c.MaxCallValueWei)
		}
	}
	return nil
}

// Endpoints returns the primary RPC endpoint followed by the fallbacks, in
// the order they should be tried.
func (c *Config) Endpoints() []string {
	out := make([]string, 0, 1+len(c.RPCFallbacks))
	out = append(out, c.RPCEndpoint)
	for _, u := range c.RPCFallbacks {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// MaxCallValue returns the per-call value cap, or nil when none is set.
func (c *Config) MaxCallValue() *big.Int {
	if c.MaxCallValueWei == "" {
		return nil
	}
	v, _ := new(big.Int).SetString(c.MaxCallValueWei, 10)
	return v
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c *Config) RigPollInterval() time.Duration { return seconds(c.RigPollSeconds) }
func (c *Config) AuctionPollInterval() time.Duration { return seconds(c.AuctionPollSeconds) }
func (c *Config) PoolPollInterval() time.Duration { return seconds(c.PoolPollSeconds) }
func (c *Config) ConfirmTimeout() time.Duration { return seconds(c.ConfirmTimeoutSeconds) }
func (c *Config) QuoteTTL() time.Duration { return seconds(c.QuoteTTLSeconds) }
func (c *Config) PriceCacheTTL() time.Duration { return seconds(c.PriceCacheTTLSeconds) }
func (c *Config) DeadlineBuffer() time.Duration { return seconds(c.DeadlineBufferSeconds) }
func (c *Config) AuctionDeadlineBuffer() time.Duration { return seconds(c.AuctionDeadlineBufferSeconds) }
