package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.Address)
	require.Equal(t, "https://connect.garmin.com", cfg.Garmin.BaseURL)
	require.Equal(t, 20, cfg.Sync.PageSize)
	require.Equal(t, 1500, cfg.Sync.InitialSyncLimit)
	require.Equal(t, 100, cfg.Sync.IncrementalSyncLimit)
	require.Equal(t, 100*time.Millisecond, cfg.Sync.PageDelay)
	require.Equal(t, 10*time.Minute, cfg.Sync.RunTimeout)
	require.False(t, cfg.Kafka.Enabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GARMINSYNC_SERVER_ADDRESS", ":9091")
	t.Setenv("GARMINSYNC_GARMIN_USERNAME", "alice")
	t.Setenv("GARMINSYNC_SYNC_PAGE_SIZE", "10")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":9091", cfg.Server.Address)
	require.Equal(t, "alice", cfg.Garmin.Username)
	require.Equal(t, 10, cfg.Sync.PageSize)
}

func TestKafkaEnabled(t *testing.T) {
	require.False(t, KafkaConfig{Brokers: []string{"kafka:9092"}}.Enabled())
	require.False(t, KafkaConfig{Topic: "activity_synced"}.Enabled())
	require.True(t, KafkaConfig{Brokers: []string{"kafka:9092"}, Topic: "activity_synced"}.Enabled())
}
