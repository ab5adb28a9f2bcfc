package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort     int           `env:"SERVER_PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	CORSOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`

	Database  DatabaseConfig
	Auth      AuthConfig
	MQ        MQConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

type DatabaseConfig struct {
	// Driver selects the backing database: "postgres" or "sqlite".
	Driver     string `env:"DB_DRIVER" envDefault:"postgres"`
	Host       string `env:"DB_HOST" envDefault:"localhost"`
	Port       int    `env:"DB_PORT" envDefault:"5432"`
	User       string `env:"DB_USER" envDefault:"todo"`
	Password   string `env:"DB_PASSWORD" envDefault:"password"`
	DBName     string `env:"DB_NAME" envDefault:"todo_db"`
	UseSSL     bool   `env:"DB_USE_SSL" envDefault:"false"`
	SQLitePath string `env:"DB_SQLITE_PATH" envDefault:"todo.db"`
}

type AuthConfig struct {
	JWTSecret       string        `env:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `env:"JWT_ACCESS_TTL" envDefault:"5m"`
	RefreshTokenTTL time.Duration `env:"JWT_REFRESH_TTL" envDefault:"24h"`
	OAuthTokenTTL   time.Duration `env:"OAUTH_TOKEN_TTL" envDefault:"10h"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"10"`

	// UnifiedTokens lets the GraphQL endpoint accept REST access tokens
	// in addition to OAuth bearer tokens.
	UnifiedTokens bool `env:"AUTH_UNIFIED_TOKENS" envDefault:"false"`
}

type MQConfig struct {
	// Backend is one of "", "rabbitmq" or "pubsub". Empty disables events.
	Backend  string `env:"MQ_BACKEND"`
	Channel  string `env:"MQ_TODO_EVENTS_CHANNEL" envDefault:"todo-events"`
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string `env:"RABBITMQ_URL"`
	QueueDurable    bool   `env:"RABBITMQ_QUEUE_DURABLE" envDefault:"true"`
	QueueAutoDelete bool   `env:"RABBITMQ_QUEUE_AUTO_DELETE" envDefault:"false"`
	PrefetchCount   int    `env:"RABBITMQ_PREFETCH" envDefault:"0"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX" envDefault:"-sub"`
}

type StorageConfig struct {
	// Backend is one of "minio" or "gcs".
	Backend string `env:"STORAGE_BACKEND" envDefault:"minio"`
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" envDefault:"todo-backups"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type GCSConfig struct {
	ProjectID       string `env:"GCS_PROJECT_ID"`
	Bucket          string `env:"GCS_BUCKET"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

type TelemetryConfig struct {
	// Endpoint is the OTLP/HTTP collector URL. Empty disables tracing.
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"todoapi"`
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	cfg, err := Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// Parse reads the configuration from the process environment.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
