package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestConfiguration tests the configuration package basic functionality
func TestConfiguration(t *testing.T) {
	t.Run("configuration_struct_exists", func(t *testing.T) {
		require.NotNil(t, &C, "Configuration should not be nil")
		require.NotNil(t, &C.App, "App configuration should exist")
		require.NotNil(t, &C.Database, "Database configuration should exist")
		require.NotNil(t, &C.Database.Psql, "PostgreSQL config should be present")
		require.NotNil(t, &C.Database.Mssql, "MSSQL config should be present")
		require.NotNil(t, &C.Database.Mongo, "MongoDB config should be present")
	})

	t.Run("publish_defaults_applied", func(t *testing.T) {
		require.Equal(t, 3, C.Publish.MaxAttempts)
		require.Equal(t, time.Second, C.Publish.BackoffBase)
		require.Equal(t, 30*time.Second, C.Publish.BackoffCap)
		require.Equal(t, 2*time.Second, C.Publish.PollInterval)
		require.Equal(t, 30, C.Publish.PollMaxAttempts)
		require.NotEmpty(t, C.Publish.Platforms)
	})
}
