package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/paint-rewards/pkg/logger"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"

var config *Config

// Config holds every environment-level setting of the api, processor and cli.
// Only this struct must be used to hold configuration values, no direct access
// to env or any other config source should be made.
type Config struct {
	AppEnv              string `env:"APP_ENV"`
	AppName             string `env:"APP_NAME"`
	AppDebug            bool   `env:"APP_DEBUG"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`
	AppBaseUrl          string `env:"APP_BASE_URL"`
	AppTimezone         string `env:"APP_TIMEZONE"`
	LogLevel            string `env:"LOG_LEVEL"`

	HttpListenAddr            string `env:"HTTP_LISTEN_ADDR"`
	HttpBaseRequestUrl        string `env:"HTTP_BASE_REQUEST_URI"`
	HttpServerReadTimeout     int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout    int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`
	HttpServerReadBufferSize  int    `env:"HTTP_SERVER_READ_BUFFER_SIZE"`
	HttpServerWriteBufferSize int    `env:"HTTP_SERVER_WRITE_BUFFER_SIZE"`
	HttpPrefork               bool   `env:"HTTP_PREFORK"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	ProfilerEnable bool `env:"PROFILER_ENABLE"`
	ProfilerPort   int  `env:"PROFILER_PORT"`

	JWTSecret string `env:"JWT_SECRET"`

	SuperUserMobile        string `env:"SUPER_USER_MOBILE"`
	RedemptionBypassMobile string `env:"REDEMPTION_BYPASS_MOBILE"`
	CouponBaseUrl          string `env:"COUPON_BASE_URL"`

	ExternalCallTimeout time.Duration `env:"EXTERNAL_CALL_TIMEOUT"`

	PayoutProviderUrl          string        `env:"PAYOUT_PROVIDER_URL"`
	PayoutClientID             string        `env:"PAYOUT_CLIENT_ID"`
	PayoutClientSecret         string        `env:"PAYOUT_CLIENT_SECRET"`
	PayoutWebhookSecret        string        `env:"PAYOUT_WEBHOOK_SECRET"`
	PayoutReconcileEnabled     bool          `env:"PAYOUT_RECONCILE_ENABLED"`
	PayoutReconcileInterval    time.Duration `env:"PAYOUT_RECONCILE_INTERVAL"`
	PayoutReconcileMaxAttempts int           `env:"PAYOUT_RECONCILE_MAX_ATTEMPTS"`

	Focus8Url       string `env:"FOCUS8_URL"`
	Focus8Username  string `env:"FOCUS8_USERNAME"`
	Focus8Password  string `env:"FOCUS8_PASSWORD"`
	Focus8CompanyID string `env:"FOCUS8_COMPANY_ID"`

	ErpQueueName           string        `env:"ERP_QUEUE_NAME"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ"`

	WorkerCount int `env:"WORKER_COUNT"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	c.applyDefaults()
	config = c
	return nil
}

// Set replaces the global config, used by tests and tools.
func Set(c *Config) {
	c.applyDefaults()
	config = c
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

func (c *Config) applyDefaults() {
	if c.AppName == "" {
		c.AppName = "paint_rewards"
	}
	if c.AppEnv == "" {
		c.AppEnv = "dev"
	}
	if c.AppTimezone == "" {
		c.AppTimezone = "Asia/Kolkata"
	}
	if c.ExternalCallTimeout <= 0 {
		c.ExternalCallTimeout = 10 * time.Second
	}
	if c.PayoutReconcileInterval <= 0 {
		c.PayoutReconcileInterval = 30 * time.Minute
	}
	if c.PayoutReconcileMaxAttempts <= 0 {
		c.PayoutReconcileMaxAttempts = 2
	}
	if c.HttpServerReadBufferSize == 0 {
		c.HttpServerReadBufferSize = 16 * 1024
	}
	if c.HttpServerWriteBufferSize == 0 {
		c.HttpServerWriteBufferSize = 16 * 1024
	}
	if c.ErpQueueName == "" {
		c.ErpQueueName = "erp_order_sync"
	}
	if c.QueueConsumerGroup == "" {
		c.QueueConsumerGroup = "erp_sync_group"
	}
	if c.QueueConsumerName == "" {
		c.QueueConsumerName = "erp_sync_consumer"
	}
	if c.QueueMaxRetries <= 0 {
		c.QueueMaxRetries = 3
	}
	if c.QueueVisibilityTimeout <= 0 {
		c.QueueVisibilityTimeout = 5 * time.Minute
	}
	if c.QueuePollInterval <= 0 {
		c.QueuePollInterval = time.Second
	}
	if c.QueueBatchSize <= 0 {
		c.QueueBatchSize = 10
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
}

// Location resolves AppTimezone; an unknown zone is a configuration error.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid APP_TIMEZONE %q", c.AppTimezone)
	}
	return loc, nil
}
