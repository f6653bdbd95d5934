package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheduleFlag(t *testing.T) {
	entry, err := parseScheduleFlag("signup@0 3 * * *")
	require.NoError(t, err)
	assert.Equal(t, "signup", entry.Name)
	assert.Equal(t, "signup", entry.Operation)
	assert.Equal(t, "0 3 * * *", entry.Cron)
}

func TestParseScheduleFlag_Malformed(t *testing.T) {
	for _, raw := range []string{"signup", "@* * * * *", "signup@"} {
		_, err := parseScheduleFlag(raw)
		assert.Error(t, err, raw)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("OPERON_DB_PATH", "/tmp/test.db")
	t.Setenv("OPERON_LOG_LEVEL", "debug")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_Defaults(t *testing.T) {
	// t.Setenv registers the restore; unset to exercise the defaults.
	t.Setenv("OPERON_DB_PATH", "x")
	t.Setenv("OPERON_LOG_LEVEL", "x")
	os.Unsetenv("OPERON_DB_PATH")
	os.Unsetenv("OPERON_LOG_LEVEL")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestBuildCatalog_RegistersBuiltins(t *testing.T) {
	catalog, err := buildCatalog(nil, nil)
	require.NoError(t, err)
	_, err = catalog.Get("signup")
	assert.NoError(t, err)
}
