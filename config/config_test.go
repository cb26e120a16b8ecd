package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "  secret  ")

	cfg := LoadConfig()

	assert.Equal(t, EnvProduction, cfg.Env)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3001, cfg.ServerPort)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.False(t, cfg.Auth.DefaultApproved)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Empty(t, cfg.Storage.Backend)
	assert.Empty(t, cfg.MQ.Backend)
	assert.Equal(t, 5*time.Second, cfg.MQ.RabbitMQ.RetryDelay)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TOKEN_TTL", "24h")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("STORAGE_BACKEND", " MinIO ")
	t.Setenv("MQ_BACKEND", "RabbitMQ")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, "rabbitmq", cfg.MQ.Backend)
}

func TestValidate(t *testing.T) {
	cfg := Config{Auth: AuthConfig{TokenTTL: time.Hour}}
	require.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "s"
	require.NoError(t, cfg.Validate())

	cfg.Auth.TokenTTL = 0
	require.Error(t, cfg.Validate())
}
