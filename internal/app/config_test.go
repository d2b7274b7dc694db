package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/groweasy/groweasy/internal/testing/guard"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "development", cfg.AppEnv)
	require.False(t, cfg.IsProduction())
	require.Equal(t, 5*time.Minute, cfg.AlertCacheTTL)
	require.Equal(t, int32(16), cfg.PGMaxConns)
	require.Equal(t, int32(2), cfg.PGMinConns)
	require.Equal(t, 0, cfg.RedisDB)
	require.Equal(t, 60, cfg.RateLimit)
	require.Equal(t, "0 2 * * *", cfg.AlertDigestCron)
}

func TestIsProduction(t *testing.T) {
	require.True(t, (&Config{AppEnv: "production"}).IsProduction())
	require.False(t, (&Config{AppEnv: "staging"}).IsProduction())

	var nilCfg *Config
	require.False(t, nilCfg.IsProduction())
}
