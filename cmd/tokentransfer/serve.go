package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tokentransfer/internal/app/transfer"
	"tokentransfer/internal/config"
	"tokentransfer/internal/domain"
	"tokentransfer/internal/funding"
	transfers_http "tokentransfer/internal/handler/http/transfers"
	kafka_handler "tokentransfer/internal/handler/kafka"
	"tokentransfer/internal/infrastructure/database"
	kafka_infra "tokentransfer/internal/infrastructure/kafka"
	"tokentransfer/internal/ledger/memory"
	"tokentransfer/internal/ledger/postgres"
	"tokentransfer/internal/outbox"
	"tokentransfer/internal/signature"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the Kafka instruction consumer and the outbox relay",
	RunE:  runServe,
}

// ledgerBackend is what serve needs from a ledger: transfers and the outbox.
type ledgerBackend interface {
	transfer.Ledger
	outbox.Store
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Level())
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("Token transfer service starting", zap.String("ledger_backend", cfg.LedgerBackend))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	key, err := cfg.DerivationKeyBytes()
	if err != nil {
		return err
	}
	deriver, err := domain.NewAddressDeriver(key)
	if err != nil {
		return err
	}

	ledger, closeLedger, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	service := transfer.NewTransferService(
		ledger,
		deriver,
		signature.NewEd25519Verifier(),
		funding.NewRentSchedule(cfg.Rent.LamportsPerByteYear, cfg.Rent.ExemptionYears),
		logger.With(zap.String("component", "TransferService")),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           transfers_http.NewRouter(service, logger, transfers_http.RouterOptions{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server graceful shutdown failed", zap.Error(err))
			return err
		}
		logger.Info("HTTP server gracefully shut down")
		return nil
	})

	if cfg.Kafka.Enabled {
		if err := startKafka(gctx, g, cfg, service, ledger, logger); err != nil {
			stop()
			g.Wait()
			return err
		}
	} else {
		logger.Warn("Kafka disabled: no instruction consumer, outbox messages stay pending")
	}

	err = g.Wait()
	logger.Info("Application shut down")
	return err
}

func startKafka(ctx context.Context, g *errgroup.Group, cfg *config.Config, service transfer.Service, ledger ledgerBackend, logger *zap.Logger) error {
	brokers := cfg.GetKafkaBrokers()
	if cfg.Kafka.EnsureTopics {
		topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		topics := []string{cfg.Kafka.TransferInstructionsTopic, cfg.Kafka.TransferEventsTopic}
		if err := kafka_infra.EnsureTopics(topicCtx, brokers, topics, logger.With(zap.String("component", "KafkaAdmin"))); err != nil {
			return fmt.Errorf("ensure kafka topics: %w", err)
		}
	}

	producer := kafka_infra.NewProducer(brokers, logger.With(zap.String("component", "KafkaProducer")))
	processor := outbox.NewProcessor(ledger, producer, outbox.Config{
		PollInterval:    cfg.Outbox.PollInterval,
		PollTimeout:     cfg.Outbox.PollTimeout,
		BatchSize:       cfg.Outbox.BatchSize,
		MaxAttempts:     cfg.Outbox.MaxAttempts,
		BreakerFailures: uint32(cfg.Outbox.BreakerFailures),
		BreakerCooldown: cfg.Outbox.BreakerCooldown,
	}, logger.With(zap.String("component", "OutboxProcessor")))

	consumer := kafka_infra.NewConsumer(
		brokers,
		cfg.Kafka.TransferInstructionsTopic,
		cfg.Kafka.ConsumerGroup,
		kafka_handler.TransferInstructionMessageHandler(service, cfg.Kafka.ConsumerGroup, logger.With(zap.String("component", "TransferInstructionHandler"))),
		logger.With(zap.String("component", "TransferInstructionConsumer")),
	)

	g.Go(func() error {
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Error("Error closing Kafka producer", zap.Error(err))
			}
		}()
		return processor.Run(ctx)
	})
	g.Go(func() error {
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Error("Error closing Kafka consumer", zap.Error(err))
			}
		}()
		return consumer.Consume(ctx)
	})
	return nil
}

func openLedger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ledgerBackend, func(), error) {
	if cfg.LedgerBackend == config.LedgerBackendMemory {
		logger.Warn("Using the in-memory ledger; balances are lost on exit")
		return memory.New(cfg.Kafka.TransferEventsTopic), func() {}, nil
	}

	logger.Info("Waiting for database to be available...")
	db, err := database.ConnectWithRetry(ctx, dbConfig(cfg), cfg.DB.ConnectRetries, 5*time.Second, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := migrateUp(cfg, logger); err != nil {
		db.Close()
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Error("Error closing database connection", zap.Error(err))
			return
		}
		logger.Info("Database connection closed")
	}
	return postgres.New(db, cfg.Kafka.TransferEventsTopic, logger.With(zap.String("component", "PostgresLedger"))), closeDB, nil
}

func dbConfig(cfg *config.Config) database.DBConfig {
	return database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.Name,
		SSLMode:  cfg.DB.SSLMode,
	}
}
