package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SIGNING_KEY", testKey)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddr)
	assert.Equal(t, "memory", cfg.PubSubType)
	assert.Equal(t, 256, cfg.SendBufferSize)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICESTUNURLs)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.StorageEnabled())
}

func TestLoad_RequiresSigningKey(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SIGNING_KEY", "short")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SIGNING_KEY")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SIGNING_KEY", testKey)
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("ICE_TURN_URLS", "turn:a.example:3478, turn:b.example:3478")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("SEND_BUFFER_SIZE", "64")
	t.Setenv("PUBSUB_TYPE", "nats")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, []string{"turn:a.example:3478", "turn:b.example:3478"}, cfg.ICETURNURLs)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 64, cfg.SendBufferSize)
	assert.Equal(t, "nats", cfg.PubSubType)
}

func TestLoad_BadNumber(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SIGNING_KEY", testKey)
	t.Setenv("SEND_BUFFER_SIZE", "lots")

	_, err := Load()
	assert.ErrorContains(t, err, "SEND_BUFFER_SIZE")
}

func TestLoad_PubSubValidation(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		wantErr string
	}{
		{"redis without url", "redis", "REDIS_URL"},
		{"nats without url", "nats", "NATS_URL"},
		{"unknown", "kafka", "PUBSUB_TYPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			t.Setenv("JWT_SIGNING_KEY", testKey)
			t.Setenv("PUBSUB_TYPE", tt.kind)
			t.Setenv("REDIS_URL", "")
			t.Setenv("NATS_URL", "")

			_, err := Load()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad_YAMLFileWithExpansion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatwave.yaml")
	content := `
server_addr: ":7000"
jwt_signing_key: "${TEST_CHATWAVE_KEY}"
pubsub_type: redis
redis_url: redis://cache:6379
shutdown_timeout: 30s
allowed_origins:
  - https://chat.example
storage_endpoint: http://minio:9000
storage_access_key_id: minio
storage_secret_access_key: minio123
storage_bucket: media
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TEST_CHATWAVE_KEY", testKey)
	t.Setenv("JWT_SIGNING_KEY", "")
	t.Setenv("PUBSUB_TYPE", "")
	t.Setenv("SERVER_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ServerAddr)
	assert.Equal(t, testKey, cfg.JWTSigningKey)
	assert.Equal(t, "redis", cfg.PubSubType)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"https://chat.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.StorageEnabled())
	// Untouched fields keep their defaults
	assert.Equal(t, 256, cfg.SendBufferSize)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatwave.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_addr: \":7000\"\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SIGNING_KEY", testKey)
	t.Setenv("SERVER_ADDR", ":7001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.ServerAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	t.Setenv("JWT_SIGNING_KEY", testKey)

	_, err := Load()
	assert.ErrorContains(t, err, "read config file")
}
