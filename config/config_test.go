package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigSQLite(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("WARMUP_TICK_SECONDS", "15")
	t.Setenv("ALERT_INTERVAL_MINUTES", "60")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")

	require.NoError(t, LoadConfig())
	assert.Equal(t, "sqlite", AppConfig.DBDriver)
	assert.Equal(t, AppConfig.EncryptionKey, AppConfig.JWTSecret)
	assert.Equal(t, 15*time.Second, AppConfig.Worker.WarmupTick)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, AppConfig.CORSOrigins)
	assert.Equal(t, time.Hour, AppConfig.Worker.AlertInterval)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	assert.Error(t, LoadConfig())

	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_PASSWORD", "")
	assert.ErrorContains(t, LoadConfig(), "DB_PASSWORD")

	t.Setenv("DB_DRIVER", "mysql")
	assert.ErrorContains(t, LoadConfig(), "DB_DRIVER")
}

func TestMaskPassword(t *testing.T) {
	assert.Equal(t, "host=x password=***** dbname=y", maskPassword("host=x password=secret dbname=y"))
	assert.Equal(t, "host=x password=*****", maskPassword("host=x password=secret"))
	assert.Equal(t, "host=x", maskPassword("host=x"))
}
