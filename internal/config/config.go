package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/nimasrn/cashback-ledger/pkg/redis"
	"github.com/pkg/errors"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

var config *Config

// Config holds every setting the binaries read. Only this struct is used to
// hold configuration values, no direct access to env or files is made
// elsewhere.
type Config struct {
	AppEnv   string `env:"APP_ENV,default=dev"`
	AppName  string `env:"APP_NAME,default=cashback_ledger"`
	AppDebug bool   `env:"APP_DEBUG,default=false"`

	HttpListenAddr     string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=5s"`

	DBDriver   string `env:"DB_DRIVER,default=postgres"`
	SQLitePath string `env:"SQLITE_PATH,default=cashback.db"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST,default=localhost"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST,default=localhost"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	PostgresSSLMode string `env:"POSTGRES_SSLMODE,default=disable"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE,default=0"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=cashback:"`

	PromNamespace string `env:"PROM_NAMESPACE,default=cashback"`
	MetricsAddr   string `env:"METRICS_ADDR"`
	MetricsPath   string `env:"METRICS_PATH,default=/metrics"`

	LedgerMaxRetries            int           `env:"LEDGER_MAX_RETRIES,default=3"`
	LedgerRetryBaseDelay        time.Duration `env:"LEDGER_RETRY_BASE_DELAY,default=2ms"`
	LedgerAtomicSettlementLimit int           `env:"LEDGER_ATOMIC_SETTLEMENT_LIMIT,default=0"`

	QueueName              string        `env:"QUEUE_NAME,default=settlement:sync"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=reconciler"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME,default=reconciler"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=5"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=1s"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=10"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`

	ReconcilerWorkers   int `env:"RECONCILER_WORKERS,default=4"`
	ReconcilerConsumers int `env:"RECONCILER_CONSUMERS,default=1"`
}

// Load reads the optional .env file at path and decodes the environment.
func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("loading env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to configuration")
	}

	if err := c.Validate(); err != nil {
		return err
	}

	config = c
	return nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		return errors.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.LedgerMaxRetries < 0 {
		return errors.New("LEDGER_MAX_RETRIES must not be negative")
	}
	if c.LedgerAtomicSettlementLimit < 0 {
		return errors.New("LEDGER_ATOMIC_SETTLEMENT_LIMIT must not be negative")
	}
	if c.ReconcilerWorkers <= 0 {
		return errors.New("RECONCILER_WORKERS must be positive")
	}
	return nil
}

// QueueEnabled reports whether a Redis address is configured.
func (c *Config) QueueEnabled() bool {
	return c.RedisAddr != ""
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

func (c *Config) PostgresRead() pg.Config {
	return pg.Config{
		User:     c.PostgresReadUser,
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
		SSLMode:  c.PostgresSSLMode,
	}
}

func (c *Config) PostgresWrite() pg.Config {
	return pg.Config{
		User:     c.PostgresWriteUser,
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
		SSLMode:  c.PostgresSSLMode,
	}
}

func (c *Config) RedisOptions() *redis.Options {
	return &redis.Options{
		Addrs:      []string{c.RedisAddr},
		ClientName: c.AppName,
		DB:         c.RedisDatabase,
		Username:   c.RedisUsername,
		Password:   c.RedisPassword,
	}
}
