package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/oneclick/wa-gateway/pkg/logger"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every environment-sourced setting. Only this struct may be
// used to read configuration; no direct env/ini access anywhere else.
type Config struct {
	AppEnv   string `env:"APP_ENV" default:"dev"`
	AppName  string `env:"APP_NAME" default:"wa_gateway"`
	AppDebug bool   `env:"APP_DEBUG" default:"1"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

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

	LogLevel []string `env:"LOG_LEVEL"`

	QueueName              string        `env:"QUEUE_NAME" default:"webhook_events"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP" default:"reconciler"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME" default:"reconciler-0"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES" default:"3"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT" default:"30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL" default:"100ms"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE" default:"10"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ" default:"1"`

	// Billing defaults used when a client has no pricing rule.
	DefaultPricePerMessage string `env:"DEFAULT_PRICE_PER_MESSAGE" default:"0.0150"`
	DefaultCurrency        string `env:"DEFAULT_CURRENCY" default:"USD"`

	// WhatsApp Graph API transport.
	GraphAPIBaseURL    string        `env:"GRAPH_API_BASE_URL" default:"https://graph.facebook.com"`
	GraphAPIVersion    string        `env:"GRAPH_API_VERSION" default:"v19.0"`
	GraphSendTimeout   time.Duration `env:"GRAPH_SEND_TIMEOUT" default:"10s"`
	WebhookVerifyToken string        `env:"WEBHOOK_VERIFY_TOKEN"`

	// Campaign scheduler / supervisor.
	SchedulerInterval    time.Duration `env:"SCHEDULER_INTERVAL" default:"30s"`
	CampaignStallTimeout time.Duration `env:"CAMPAIGN_STALL_TIMEOUT" default:"30m"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
