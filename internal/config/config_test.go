package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMergesFileDefaultsAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
LOG_LEVEL: info
DATABASE:
  TYPE: sqlite
  SQLITE_PATH: /tmp/test.db
REALTIME:
  BUS: kafka
  POST_EVENTS_SCOPE: broadcast
KAFKA:
  BROKERS: ["k1:9092", "k2:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_CHANNEL_PREFIX", "test:")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "/tmp/test.db", cfg.Database.SQLitePath)
	assert.Equal(t, BusKafka, cfg.Realtime.Bus)
	assert.Equal(t, PostScopeBroadcast, cfg.Realtime.PostEventsScope)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "test:", cfg.Redis.ChannelPrefix)

	// untouched sections keep their defaults
	assert.Equal(t, "/ws", cfg.Server.WebSocketPath)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWTExpiry)
	assert.Equal(t, 1024, cfg.Realtime.QueueSize)
	assert.Equal(t, 50, cfg.Notifications.ListLimit)
	assert.Equal(t, int64(16), cfg.Storage.MaxFileSizeMB)
}

func TestLoadConfigWithoutFileUsesDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, BusLocal, cfg.Realtime.Bus)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "8081", cfg.APIServer.Port)
}
