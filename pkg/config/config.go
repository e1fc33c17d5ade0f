package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "shredder"

// Environment variable names shared with tests and deploy tooling.
const (
	EnvAppEnv               = "SHREDDER_APP_ENV"
	EnvAppPort              = "SHREDDER_APP_PORT"
	EnvGCPProjectID         = "SHREDDER_GCP_PROJECT_ID"
	EnvEnrichedSubscription = "SHREDDER_PUBSUB_ENRICHED_SUBSCRIPTION"
	EnvBadRowsTopic         = "SHREDDER_PUBSUB_BAD_ROWS_TOPIC"
	EnvBigQueryDataset      = "SHREDDER_BIGQUERY_DATASET"
	EnvRedisURL             = "SHREDDER_REDIS_URL"
	EnvIgluRegistryURLs     = "SHREDDER_IGLU_REGISTRY_URLS"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

type Config struct {
	App      AppConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	BigQuery BigQueryConfig
	Redis    RedisConfig
	Iglu     IgluConfig
	Writer   WriterConfig
	Eventing EventingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Iglu.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHREDDER_APP_ENV" required:"true"`
	Port         string `envconfig:"SHREDDER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SHREDDER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHREDDER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SHREDDER_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SHREDDER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SHREDDER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EnrichedSubscription string `envconfig:"SHREDDER_PUBSUB_ENRICHED_SUBSCRIPTION" required:"true"`
	BadRowsTopic         string `envconfig:"SHREDDER_PUBSUB_BAD_ROWS_TOPIC" required:"true"`
}

type BigQueryConfig struct {
	Dataset string `envconfig:"SHREDDER_BIGQUERY_DATASET" required:"true"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHREDDER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHREDDER_REDIS_ADDR"`
	Password     string        `envconfig:"SHREDDER_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHREDDER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHREDDER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHREDDER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHREDDER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHREDDER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHREDDER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// IgluConfig locates the schema registries queried during validation.
type IgluConfig struct {
	RegistryURLs   []string      `envconfig:"SHREDDER_IGLU_REGISTRY_URLS" required:"true"`
	ResolveTimeout time.Duration `envconfig:"SHREDDER_IGLU_RESOLVE_TIMEOUT" default:"5s"`
}

func (i IgluConfig) validate() error {
	for _, raw := range i.RegistryURLs {
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("iglu registry url must not be blank")
		}
	}
	if len(i.RegistryURLs) == 0 {
		return fmt.Errorf("at least one iglu registry url is required")
	}
	return nil
}

type WriterConfig struct {
	MaxAttempts    int           `envconfig:"SHREDDER_WRITER_MAX_ATTEMPTS" default:"3"`
	InitialBackoff time.Duration `envconfig:"SHREDDER_WRITER_INITIAL_BACKOFF" default:"250ms"`
	MaximumBackoff time.Duration `envconfig:"SHREDDER_WRITER_MAXIMUM_BACKOFF" default:"2s"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"SHREDDER_IDEMPOTENCY_TTL" default:"168h"`
}
