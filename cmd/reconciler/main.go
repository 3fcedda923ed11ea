package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimasrn/cashback-ledger/internal/config"
	"github.com/nimasrn/cashback-ledger/internal/processor"
	"github.com/nimasrn/cashback-ledger/internal/queue"
	"github.com/nimasrn/cashback-ledger/internal/repository"
	"github.com/nimasrn/cashback-ledger/internal/services"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/nimasrn/cashback-ledger/pkg/prom"
	"github.com/nimasrn/cashback-ledger/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// The reconciler replays settlement batches that failed after their payout
// resolution had committed.
func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting settlement reconciler", "version", version, "commit", commit, "date", date)

	if !cfg.QueueEnabled() {
		logger.Error("REDIS_ADDR is required by the reconciler")
		return
	}

	var db *pg.DB
	if cfg.DBDriver == config.DBDriverSQLite {
		db, err = pg.CreateSQLite(cfg.SQLitePath, cfg.AppDebug)
		if err == nil {
			err = repository.AutoMigrate(context.Background(), db)
		}
	} else {
		db, err = pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppDebug)
	}
	if err != nil {
		logger.Error("failed connecting to database", "driver", cfg.DBDriver, "error", err)
		return
	}
	defer db.Close()

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.RedisOptions())
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}
	defer redisAdap.Close()

	store := repository.NewStore(db, repository.StoreConfig{
		MaxRetries: cfg.LedgerMaxRetries,
		BaseDelay:  cfg.LedgerRetryBaseDelay,
	})
	transactionRepo := repository.NewTransactionRepository(db)
	userRepo := repository.NewUserProfileRepository(db)
	payoutRepo := repository.NewPayoutRequestRepository(db)

	// replays never publish, a failed replay stays on the stream instead
	payoutService := services.NewPayoutService(store, payoutRepo, transactionRepo, userRepo, nil, services.PayoutServiceConfig{})

	idempotencyConfig := processor.DefaultIdempotencyConfig()
	idempotencyConfig.MaxRetries = cfg.QueueMaxRetries
	idempotencyService := processor.NewIdempotencyService(redisAdap, idempotencyConfig)

	service := processor.NewProcessorService(redisAdap, processor.ServiceConfig{
		Queue: queue.QueueConfig{
			Name:              cfg.QueueName,
			ConsumerGroup:     cfg.QueueConsumerGroup,
			ConsumerName:      cfg.QueueConsumerName,
			MaxRetries:        cfg.QueueMaxRetries,
			VisibilityTimeout: cfg.QueueVisibilityTimeout,
			PollInterval:      cfg.QueuePollInterval,
			BatchSize:         cfg.QueueBatchSize,
			MaxLen:            cfg.QueueMaxLen,
			EnableDLQ:         cfg.QueueEnableDLQ,
		},
		Consumers: cfg.ReconcilerConsumers,
		Workers:   cfg.ReconcilerWorkers,
	})
	service.RegisterProcessor(processor.NewSettlementSyncProcessor(payoutService, idempotencyService))

	if cfg.MetricsAddr != "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
			logger.Error("failed to create prometheus metrics", "error", err)
			return
		}
		go func() {
			_ = prom.ListenAndServe(cfg.MetricsAddr, cfg.MetricsPath)
		}()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		return
	}

	<-c
	service.Stop()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, "--env=") {
			path := strings.TrimPrefix(v, "--env=")
			if _, err := os.Stat(path); err != nil {
				logger.Error("failed to open the passed env file", "path", path, "error", err)
				return ""
			}
			return path
		}
	}
	return ""
}
