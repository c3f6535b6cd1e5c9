package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/anchor"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/chain"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/config"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/events/amqp"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/events/kafka"
	api "github.com/sheikh-saqib/tamper-evident-ledger/internal/http"
	interfaces "github.com/sheikh-saqib/tamper-evident-ledger/internal/interfaces"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/ledger"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/log"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/storage/sqlite"
)

func main() {
	cfg := config.Load()

	logConfig := log.DefaultConfig()
	logConfig.Level = log.ParseLevel(cfg.LogLevel)
	logConfig.Format = cfg.LogFormat
	logger := log.New(logConfig)
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closer, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	publisher, err := openPublisher(cfg, logger)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	heuristics := chain.DefaultHeuristics()
	heuristics.FutureSkew = cfg.FutureSkew
	heuristics.RegressionTolerance = cfg.RegressionTolerance
	heuristics.AmountCeiling = cfg.AmountCeiling

	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithLocation(loc),
		ledger.WithHeuristics(heuristics),
	}
	if publisher != nil {
		opts = append(opts, ledger.WithPublisher(publisher))
	}
	ledgerService := ledger.NewLedger(store, opts...)

	apiServer := api.NewServer(ledgerService, logger)
	if cfg.MetricsEnabled {
		apiServer.EnableMetrics()
	}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if publisher != nil {
		worker := anchor.NewWorker(ledgerService, cfg.AnchorInterval, cfg.AnchorConcurrency, logger)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Anchor worker stopped", log.FieldError, err)
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			"anchor_broker", cfg.AnchorBroker,
			"timezone", loc.String(),
			"protocol_version", chain.ProtocolVersion)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (interfaces.LedgerStore, io.Closer, error) {
	storageLog := logger.WithComponent(log.ComponentStorage)

	switch cfg.DataBackend {
	case "postgres":
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		storageLog.Info("Postgres store ready")
		return store, store, nil
	case "sqlite":
		store, err := sqlite.NewSQLiteLedgerStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		storageLog.Info("SQLite store ready", "path", cfg.SQLiteDBPath)
		return store, store, nil
	default:
		storageLog.Warn("Using in-memory store, entries are lost on restart")
		return memory.NewMemoryLedgerStore(), nopCloser{}, nil
	}
}

func openPublisher(cfg *config.Config, logger *log.Logger) (interfaces.EventPublisher, error) {
	switch cfg.AnchorBroker {
	case "kafka":
		logger.Info("Anchoring to kafka", "brokers", cfg.KafkaBrokers, log.FieldTopic, cfg.KafkaTopic)
		return kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger), nil
	case "amqp":
		p, err := amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize amqp publisher: %w", err)
		}
		logger.Info("Anchoring to amqp", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		return p, nil
	default:
		logger.Info("Anchoring disabled")
		return nil, nil
	}
}
