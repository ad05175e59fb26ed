package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/Heesho/miner-miniapp/internal/accrual"
	"github.com/Heesho/miner-miniapp/internal/batch"
	"github.com/Heesho/miner-miniapp/internal/chain"
	"github.com/Heesho/miner-miniapp/internal/config"
	"github.com/Heesho/miner-miniapp/internal/eth"
	"github.com/Heesho/miner-miniapp/internal/handler"
	"github.com/Heesho/miner-miniapp/internal/logging"
	"github.com/Heesho/miner-miniapp/internal/poller"
	"github.com/Heesho/miner-miniapp/internal/pricecache"
	"github.com/Heesho/miner-miniapp/internal/quote"
	"github.com/Heesho/miner-miniapp/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	app := fiber.New()
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ethereumClient, chainID, err := eth.DialFirst(ctx, logger, cfg.Endpoints())
	if err != nil {
		return fmt.Errorf("failed to connect to Ethereum node: %w", err)
	}
	defer ethereumClient.Close()

	if chainID.Int64() != cfg.ChainID {
		logger.Warn("rpc chain id differs from configuration", "rpc", chainID, "config", cfg.ChainID)
	}

	clk := clock.New()
	submitter, account, err := newSubmitter(logger, ethereumClient, cfg.PrivateKey, chainID, cfg.MaxCallValue())
	if err != nil {
		return err
	}

	rig := common.HexToAddress(cfg.RigAddress)
	multicall := common.HexToAddress(cfg.MulticallAddress)
	reader := chain.NewReader(logger, ethereumClient, multicall, common.HexToAddress(cfg.CoreAddress))

	unit := common.HexToAddress(cfg.UnitAddress)
	if unit == (common.Address{}) {
		if unit, err = reader.ReadUnit(ctx, rig); err != nil {
			return fmt.Errorf("failed to resolve unit token: %w", err)
		}
	}
	logger.Info("rig resolved", "rig", rig.Hex(), "unit", unit.Hex(), "account", account.Hex())

	interp := accrual.New(logger.With("component", "accrual"), clk)
	poll := poller.New(logger.With("component", "poller"), clk, reader, interp, rig, account, poller.Intervals{
		Rig:     cfg.RigPollInterval(),
		Auction: cfg.AuctionPollInterval(),
		Pool:    cfg.PoolPollInterval(),
	})
	go interp.Run(ctx)
	go func() { _ = poll.Run(ctx) }()

	feed := pricecache.NewFeed(logger, cfg.PriceAPIURL, pricecache.New(clk, cfg.PriceCacheTTL()), map[string]decimal.Decimal{
		pricecache.AssetETH:   decimal.NewFromFloat(cfg.DefaultEthPriceUSD),
		pricecache.AssetDonut: decimal.NewFromFloat(cfg.DefaultDonutPriceUSD),
	})
	engine := quote.NewEngine(logger, quote.NewZeroX(cfg.QuoteAPIURL, cfg.QuoteAPIKey, chainID.Int64()), clk, cfg.QuoteTTL())

	watcher := eth.NewWatcher(logger, ethereumClient, clk, eth.DefaultReceiptPollInterval)
	newFlow := func(name string) *service.Flow {
		ex := batch.NewExecutor(name, logger.With("executor", name), submitter, watcher,
			batch.WithClock(clk),
			batch.WithConfirmTimeout(cfg.ConfirmTimeout()),
			batch.OnSuccess(poll.RefetchHook()),
		)
		return service.NewFlow(ctx, logger, ex, service.NewNotice(clk, service.NoticeTTL))
	}
	mineFlow, buyFlow, lpFlow, swapFlow := newFlow("mine"), newFlow("auction"), newFlow("lp"), newFlow("swap")

	env := service.Env{Clock: clk, Snapshots: poll, Prices: feed}
	mineService := service.NewMineService(logger, env, interp, mineFlow, service.MineParams{
		Multicall:      multicall,
		Rig:            rig,
		DeadlineBuffer: cfg.DeadlineBuffer(),
	})
	auctionService := service.NewAuctionService(logger, env, buyFlow, lpFlow, service.AuctionParams{
		Multicall:             multicall,
		Rig:                   rig,
		Router:                common.HexToAddress(cfg.RouterAddress),
		Unit:                  unit,
		Donut:                 common.HexToAddress(cfg.DonutAddress),
		Account:               account,
		AuctionDeadlineBuffer: cfg.AuctionDeadlineBuffer(),
		LPDeadlineBuffer:      cfg.AuctionDeadlineBuffer(),
	})
	swapService := service.NewSwapService(logger, env, engine, swapFlow, service.SwapParams{
		Unit:  unit,
		Taker: account,
	})
	estimateService := service.NewEstimateService(logger, reader)

	handler.Register(app, handler.Handlers{
		Estimate: handler.NewEstimateHandler(logger, estimateService),
		Mine:     handler.NewMineHandler(logger, mineService),
		Auction:  handler.NewAuctionHandler(logger, auctionService),
		Swap:     handler.NewSwapHandler(logger, swapService),
		Flows:    handler.NewFlowHandler(logger, mineFlow, buyFlow, lpFlow, swapFlow),
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = app.Shutdown()
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_ = app.Shutdown()
	for _, f := range []*service.Flow{mineFlow, buyFlow, lpFlow, swapFlow} {
		f.Wait()
	}

	<-shutdownCtx.Done()
	return nil
}

// newSubmitter returns the local signer for hexKey, or a submitter that
// refuses everything when no key is configured. A non-nil maxValue caps the
// value of every call the signer approves.
func newSubmitter(logger *slog.Logger, client *ethclient.Client, hexKey string, chainID *big.Int, maxValue *big.Int) (batch.Submitter, common.Address, error) {
	if hexKey == "" {
		logger.Warn("no private key configured, write routes will refuse")
		return eth.ReadOnly{}, common.Address{}, nil
	}
	b, err := eth.NewBroadcaster(logger, client, hexKey, chainID)
	if err != nil {
		return nil, common.Address{}, err
	}
	if maxValue != nil {
		logger.Info("spend cap enabled", "maxCallValueWei", maxValue.String())
		b.SetApprover(eth.SpendCap(maxValue))
	}
	return b, b.From(), nil
}
