package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/config"
	"github.com/nimasrn/cashback-ledger/internal/handlers"
	"github.com/nimasrn/cashback-ledger/internal/queue"
	"github.com/nimasrn/cashback-ledger/internal/repository"
	"github.com/nimasrn/cashback-ledger/internal/services"
	xhttp "github.com/nimasrn/cashback-ledger/pkg/http"
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

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting cashback ledger api", "version", version, "commit", commit, "date", date)

	db, err := openDB(cfg)
	if err != nil {
		logger.Error("failed connecting to database", "driver", cfg.DBDriver, "error", err)
		return
	}
	defer db.Close()

	// a queue is optional, without it partial settlements are only logged
	var publisher services.JobPublisher
	deps := map[string]services.Pinger{"database": db}
	if cfg.QueueEnabled() {
		redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.RedisOptions())
		if err != nil {
			logger.Error("failed connecting to redis", "error", err)
			return
		}
		defer redisAdap.Close()

		q, err := queue.NewQueue(context.Background(), redisAdap, queueConfig(cfg))
		if err != nil {
			logger.Error("failed creating queue", "error", err)
			return
		}
		publisher = q
		deps["queue"] = q
	} else {
		logger.Warn("REDIS_ADDR is empty, settlement reconciliation jobs are disabled")
	}

	if err := setupMetrics(cfg); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	store := repository.NewStore(db, repository.StoreConfig{
		MaxRetries: cfg.LedgerMaxRetries,
		BaseDelay:  cfg.LedgerRetryBaseDelay,
	})
	transactionRepo := repository.NewTransactionRepository(db)
	userRepo := repository.NewUserProfileRepository(db)
	payoutRepo := repository.NewPayoutRequestRepository(db)

	// services
	transactionService := services.NewTransactionService(store, transactionRepo, userRepo)
	payoutService := services.NewPayoutService(store, payoutRepo, transactionRepo, userRepo, publisher, services.PayoutServiceConfig{
		AtomicSettlementLimit: cfg.LedgerAtomicSettlementLimit,
	})
	walletService := services.NewWalletService(userRepo, transactionRepo, payoutRepo)
	healthService := services.NewHealthService(deps)

	// transport
	opts := xhttp.DefaultServerOption
	opts.RequestTimeout = cfg.HttpRequestTimeout
	opts.Name = cfg.AppName
	s := xhttp.NewServer(opts)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.TimeoutMiddleware(s.RequestTimeout()))

	g := s.Router.Group("/api/v1")
	handlers.RegisterTransactionRoutes(g, handlers.NewTransactionHandler(transactionService))
	handlers.RegisterPayoutRoutes(g, handlers.NewPayoutHandler(payoutService))
	handlers.RegisterWalletRoutes(g, handlers.NewWalletHandler(walletService))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(healthService))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
			c <- syscall.SIGTERM
		}
	}()

	<-c
	_ = s.Shutdown()
}

func openDB(cfg *config.Config) (*pg.DB, error) {
	debug := cfg.AppDebug
	if cfg.DBDriver == config.DBDriverSQLite {
		db, err := pg.CreateSQLite(cfg.SQLitePath, debug)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := repository.AutoMigrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}
	return pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), debug)
}

func queueConfig(cfg *config.Config) queue.QueueConfig {
	return queue.QueueConfig{
		Name:              cfg.QueueName,
		ConsumerGroup:     cfg.QueueConsumerGroup,
		ConsumerName:      cfg.QueueConsumerName,
		MaxRetries:        cfg.QueueMaxRetries,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
		PollInterval:      cfg.QueuePollInterval,
		BatchSize:         cfg.QueueBatchSize,
		MaxLen:            cfg.QueueMaxLen,
		EnableDLQ:         cfg.QueueEnableDLQ,
	}
}

func setupMetrics(cfg *config.Config) error {
	if cfg.MetricsAddr == "" {
		return nil
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		return err
	}
	go func() {
		_ = prom.ListenAndServe(cfg.MetricsAddr, cfg.MetricsPath)
	}()
	return nil
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
