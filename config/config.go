package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env        string `env:"ENV" envDefault:"development"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"3001"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// CORSOrigins lists origins allowed in addition to localhost during development.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	Auth     AuthConfig
	Database DatabaseConfig
	Storage  StorageConfig
	MQ       MQConfig
	SMTP     SMTPConfig
}

type AuthConfig struct {
	JWTSecret       string        `env:"JWT_SECRET"`
	TokenTTL        time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"12"`
	DefaultApproved bool          `env:"DEFAULT_APPROVED" envDefault:"false"`
}

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"alumni"`
	Password string `env:"DB_PASSWORD" envDefault:"password"`
	DBName   string `env:"DB_NAME" envDefault:"alumni_db"`
	UseSSL   bool   `env:"DB_USE_SSL" envDefault:"false"`
}

// StorageConfig selects the object storage used for profile photos.
// An empty Backend disables photo uploads.
type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND"`
	// PublicBaseURL prefixes object keys to build the stored profile_photo_url.
	PublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL"`

	Minio MinioConfig
	GCS   GCSConfig
	S3    S3Config
}

type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type GCSConfig struct {
	Bucket          string `env:"GCS_BUCKET"`
	ProjectID       string `env:"GCS_PROJECT_ID"`
	CredentialsFile string `env:"GCS_CREDENTIALS_FILE"`
}

type S3Config struct {
	Region       string `env:"S3_REGION" envDefault:"us-east-1"`
	Bucket       string `env:"S3_BUCKET"`
	AccessKey    string `env:"S3_ACCESS_KEY"`
	SecretKey    string `env:"S3_SECRET_KEY"`
	BaseEndpoint string `env:"S3_BASE_ENDPOINT"`
}

// MQConfig selects the broker used for account lifecycle events.
// An empty Backend turns publishing into a no-op.
type MQConfig struct {
	Backend  string `env:"MQ_BACKEND"`
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

// RabbitMQConfig configures the RabbitMQ backend. RetryDelay is how long a
// failed delivery is held before it is requeued.
type RabbitMQConfig struct {
	URL             string        `env:"RABBITMQ_URL"`
	QueueDurable    bool          `env:"RABBITMQ_QUEUE_DURABLE" envDefault:"true"`
	QueueAutoDelete bool          `env:"RABBITMQ_QUEUE_AUTO_DELETE" envDefault:"false"`
	PrefetchCount   int           `env:"RABBITMQ_PREFETCH" envDefault:"10"`
	RetryDelay      time.Duration `env:"RABBITMQ_RETRY_DELAY" envDefault:"5s"`
}

type PubSubConfig struct {
	ProjectID          string `env:"PUBSUB_PROJECT_ID"`
	CredentialsFile    string `env:"PUBSUB_CREDENTIALS_FILE"`
	SubscriptionSuffix string `env:"PUBSUB_SUBSCRIPTION_SUFFIX" envDefault:"-sub"`
}

type SMTPConfig struct {
	Host       string `env:"SMTP_HOST"`
	Port       int    `env:"SMTP_PORT" envDefault:"587"`
	Username   string `env:"SMTP_USERNAME"`
	Password   string `env:"SMTP_PASSWORD"`
	From       string `env:"SMTP_FROM"`
	AdminEmail string `env:"ADMIN_EMAIL"`
}

// LoadConfig reads configuration from the environment, loading a .env file
// first when running in development.
func LoadConfig() Config {
	if env := os.Getenv("ENV"); env == "dev" || env == EnvDevelopment {
		_ = godotenv.Load()
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.normalize()
	return cfg
}

// IsProduction reports whether diagnostics must be withheld from clients.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate checks the settings the HTTP server cannot run without.
func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "dev" {
		c.Env = EnvDevelopment
	}
	c.Auth.JWTSecret = strings.TrimSpace(c.Auth.JWTSecret)
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.MQ.Backend = strings.ToLower(strings.TrimSpace(c.MQ.Backend))

	origins := c.CORSOrigins[:0]
	for _, origin := range c.CORSOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.CORSOrigins = origins
}
