package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rezerve/config"
	"rezerve/core/events"
	"rezerve/core/rebase"
	"rezerve/native/burner"
	"rezerve/native/ops"
	"rezerve/native/staking"
	"rezerve/native/token"
	"rezerve/native/treasury"
	"rezerve/observability"
	"rezerve/observability/logging"
	"rezerve/rpc"
	"rezerve/storage"
)

const rpcTokenEnv = "REZERVE_RPC_TOKEN"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("REZERVE_ENV"))
	logger := logging.Setup("rezerved", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", slog.Any("error", err))
		os.Exit(1)
	}
	store, err := storage.Open(cfg.HistoryDB)
	if err != nil {
		logger.Error("failed to open history store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	scheduler, err := buildScheduler(cfg, store, logger)
	if err != nil {
		logger.Error("failed to initialise scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	authToken := strings.TrimSpace(os.Getenv(rpcTokenEnv))
	if authToken == "" {
		authToken = cfg.RPCToken
	}
	server := rpc.NewServer(scheduler, store, authToken, cfg.ExecuteLimit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runEpochTicker(ctx, scheduler, logger)

	logger.Info("starting rezerved",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.Int64("epoch_seconds", cfg.EpochSeconds))
	if err := server.Serve(ctx, cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("rezerved shut down")
}

// runEpochTicker probes the epoch boundary once a minute. ErrNotReady is the
// steady state between boundaries and is not logged.
func runEpochTicker(ctx context.Context, scheduler *rebase.Scheduler, logger *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := scheduler.ExecuteEpoch(); err != nil && !errors.Is(err, rebase.ErrNotReady) {
				logger.Error("epoch execution failed", slog.Any("error", err))
			}
		}
	}
}

func buildScheduler(cfg *config.Config, store *storage.Store, logger *slog.Logger) (*rebase.Scheduler, error) {
	genesis := cfg.Genesis
	ledger := token.NewLedger()
	reserves := treasury.New()
	pool := staking.NewPool(genesis.StakingAccount)
	opsSink := ops.NewSink(genesis.OpsAccount)

	floorValue, err := config.ParseAmount(genesis.FloorValue)
	if err != nil {
		return nil, fmt.Errorf("genesis floor value: %w", err)
	}
	floorSink, err := burner.New(genesis.BurnerAccount, floorValue)
	if err != nil {
		return nil, err
	}

	if genesis.InitialSupply != "" {
		supply, err := config.ParseAmount(genesis.InitialSupply)
		if err != nil {
			return nil, fmt.Errorf("genesis supply: %w", err)
		}
		if supply.Sign() > 0 {
			if err := ledger.Mint(genesis.SupplyAccount, supply); err != nil {
				return nil, fmt.Errorf("genesis supply: %w", err)
			}
		}
	}
	if genesis.ReserveValue != "" {
		reserve, err := config.ParseAmount(genesis.ReserveValue)
		if err != nil {
			return nil, fmt.Errorf("genesis reserve: %w", err)
		}
		if reserve.Sign() > 0 {
			if err := reserves.Deposit(genesis.ReserveAsset, reserve); err != nil {
				return nil, fmt.Errorf("genesis reserve: %w", err)
			}
		}
	}
	if genesis.BondFromGenesis && genesis.StakingBond != "" {
		bond, err := config.ParseAmount(genesis.StakingBond)
		if err != nil {
			return nil, fmt.Errorf("genesis bond: %w", err)
		}
		if bond.Sign() > 0 {
			if err := ledger.Transfer(genesis.SupplyAccount, genesis.StakingAccount, bond); err != nil {
				return nil, fmt.Errorf("genesis bond: %w", err)
			}
			if err := pool.Bond(genesis.InitialStaker, bond); err != nil {
				return nil, fmt.Errorf("genesis bond: %w", err)
			}
		}
	}

	history := func(record rebase.Record) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return store.AppendRebase(ctx, record)
	}

	return rebase.NewScheduler(cfg.Params(), ledger, reserves, pool, opsSink, floorSink,
		rebase.WithLogger(logger),
		rebase.WithMetrics(observability.Metrics()),
		rebase.WithHistory(history),
		rebase.WithEmitter(logEmitter{logger: logger}),
	)
}

// logEmitter mirrors emitted events into the structured log.
type logEmitter struct {
	logger *slog.Logger
}

func (e logEmitter) Emit(evt *events.Event) {
	if evt == nil {
		return
	}
	attrs := make([]any, 0, len(evt.Attributes)+1)
	attrs = append(attrs, slog.String("event", evt.Type))
	for key, value := range evt.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	e.logger.Info("event emitted", attrs...)
}
