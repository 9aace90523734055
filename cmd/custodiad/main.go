package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodia/config"
	"custodia/core/state"
	"custodia/native/custody"
	"custodia/observability"
	"custodia/observability/logging"
	"custodia/rpc"
	"custodia/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup("custodiad", cfg.Environment, cfg.LogFile)

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	engine, manualFeed, err := buildEngine(cfg, db)
	if err != nil {
		logger.Error("build engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	engine.SetEmitter(observability.NewEventRecorder())

	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		go serveMetrics(addr, engine, logger)
	}

	logger.Info("custody rpc listening", slog.String("address", cfg.RPCAddress))
	server := rpc.NewServer(engine, manualFeed, "")
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func openDatabase(cfg config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageBackend)) {
	case "memory":
		return storage.NewMemDB(), nil
	case "bolt":
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "custodia.bolt"))
	default:
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "custodia.leveldb"))
	}
}

func buildEngine(cfg config.Config, db storage.Database) (*custody.Engine, *custody.ManualFeed, error) {
	manager := state.NewManager(db)

	params, err := cfg.Custody.Parameters()
	if err != nil {
		return nil, nil, err
	}
	ledger, err := custody.NewLedger(manager)
	if err != nil {
		return nil, nil, err
	}
	capacity, err := custody.NewCapacityGuard(params.BankCapWei)
	if err != nil {
		return nil, nil, err
	}

	var feed custody.PriceFeed
	var manualFeed *custody.ManualFeed
	if strings.EqualFold(strings.TrimSpace(cfg.OracleMode), "http") {
		feed = custody.NewHTTPFeed(nil, cfg.OracleURL)
	} else {
		manualFeed = custody.NewManualFeed()
		feed = manualFeed
	}
	adapter, err := custody.NewOracleAdapter(feed)
	if err != nil {
		return nil, nil, err
	}
	limiter, err := custody.NewWithdrawalLimiter(adapter, params.MaxWithdrawUSD)
	if err != nil {
		return nil, nil, err
	}

	vault, err := custody.NewLocalVault(manager)
	if err != nil {
		return nil, nil, err
	}
	var vaultAddr [20]byte
	copy(vaultAddr[:], ethcrypto.Keccak256([]byte("custodia/vault"))[12:])
	transfers, err := custody.NewTransferAdapter(vault, vaultAddr)
	if err != nil {
		return nil, nil, err
	}

	operator, err := custody.ParseAddress(cfg.OperatorAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("operatorAddress: %w", err)
	}
	acl, err := custody.NewAccessControlRegistry(manager, operator)
	if err != nil {
		return nil, nil, err
	}

	engine, err := custody.NewEngine(manager, ledger, capacity, limiter, transfers, acl, params)
	if err != nil {
		return nil, nil, err
	}
	return engine, manualFeed, nil
}

func serveMetrics(addr string, engine *custody.Engine, logger *slog.Logger) {
	metrics := observability.Custody()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if held, err := engine.BankBalance(); err == nil {
				metrics.SetHoldings(held)
			}
			if remaining, err := engine.RemainingCapacity(); err == nil {
				metrics.SetCapacityRemaining(remaining)
			}
		}
	}()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics listening", slog.String("address", addr))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Error("metrics server stopped", slog.String("error", err.Error()))
	}
}
