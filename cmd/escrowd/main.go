package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"escrowd/config"
	"escrowd/escrow"
	"escrowd/events"
	"escrowd/ledger"
	"escrowd/observability/logging"
	"escrowd/rpc"
	"escrowd/storage"
)

const rpcTokenEnv = "ESCROWD_RPC_TOKEN"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ESCROWD_ENV"))
	logger := logging.Setup("escrowd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	manager := ledger.NewManager(db)

	allocs, err := cfg.Allocations()
	if err != nil {
		logger.Error("Failed to parse genesis allocations", slog.Any("error", err))
		os.Exit(1)
	}
	if err := manager.ApplyGenesis(allocs); err != nil {
		logger.Error("Failed to apply genesis allocations", slog.Any("error", err))
		os.Exit(1)
	}

	engine := escrow.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(events.NewLogEmitter(logger))

	token := strings.TrimSpace(os.Getenv(rpcTokenEnv))
	if token == "" {
		logger.Warn("RPC auth token not configured; mutating methods are disabled", slog.String("env", rpcTokenEnv))
	}
	server := rpc.NewServer(engine, manager, token)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting JSON-RPC server", slog.String("addr", cfg.ListenAddress))
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("Shutdown failed", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
