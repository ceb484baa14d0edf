package config_test

import (
	"testing"

	"github.com/simrailtools/backend-sub003/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := config.LoadConfig(t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, "mysql", cfg.Database.Driver)
		assert.Equal(t, "simrail", cfg.Database.Name)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "snapshots", cfg.Storage.Bucket)
		assert.Equal(t, 5, cfg.Tracker.PollIntervalSeconds)
		assert.Equal(t, ":7011", cfg.Stream.ListenAddr)
		assert.Equal(t, 256, cfg.Stream.SessionBuffer)
		assert.True(t, cfg.Archive.Enabled)
		assert.Equal(t, 24, cfg.Archive.RetentionCount)
	})

	t.Run("EnvironmentOverride", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "9001")
		t.Setenv("TRACKER_POLL_INTERVAL_SECONDS", "30")

		cfg, err := config.LoadConfig(t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, "9001", cfg.Server.Port)
		assert.Equal(t, 30, cfg.Tracker.PollIntervalSeconds)
	})
}
