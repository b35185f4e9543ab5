package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/waterwatch/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "Savinja", cfg.Source.River)
	assert.Equal(t, []string{"Veliko Širje II"}, cfg.Source.Exclude)
	assert.Equal(t, 20*time.Second, cfg.Source.Timeout)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, config.DefaultStationOrder, cfg.Stations.Order)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "mandatory", cfg.SMTP.TLSPolicy)
	assert.Equal(t, 30*time.Second, cfg.Alerts.DispatchTimeout)
	assert.Equal(t, "*/5 * * * *", cfg.Scheduler.Spec)
	assert.Equal(t, ":2112", cfg.Metrics.Listen)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Empty(t, cfg.Telegram.Token)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
source:
  river: Sava
  exclude: []
cache:
  ttl: 30m
stations:
  order: [Litija, Kranj]
smtp:
  host: smtp.example.si
  from: alerts@example.si
  tls_policy: opportunistic
logging:
  level: debug
  format: text
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Sava", cfg.Source.River)
	assert.Empty(t, cfg.Source.Exclude)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"Litija", "Kranj"}, cfg.Stations.Order)
	assert.Equal(t, "smtp.example.si", cfg.SMTP.Host)
	assert.Equal(t, "alerts@example.si", cfg.SMTP.From)
	assert.Equal(t, "opportunistic", cfg.SMTP.TLSPolicy)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WATERWATCH_LOGGING_LEVEL", "error")
	t.Setenv("WATERWATCH_CACHE_TTL", "45m")
	t.Setenv("WATERWATCH_SMTP_PASSWORD", "s3cret")
	t.Setenv("WATERWATCH_TELEGRAM_TOKEN", "123:abc")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, 45*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "s3cret", cfg.SMTP.Password)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml")

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsDuplicateStations(t *testing.T) {
	path := writeConfig(t, `
stations:
  order: [Celje, Laško, Celje]
`)

	_, err := config.Load(path)
	assert.ErrorContains(t, err, "twice")
}

func TestValidate(t *testing.T) {
	cfg := &config.Config{}
	cfg.Cache.TTL = time.Hour
	assert.Error(t, cfg.Validate(), "empty station order")

	cfg.Stations.Order = []string{"Celje"}
	assert.NoError(t, cfg.Validate())

	cfg.Cache.TTL = 0
	assert.Error(t, cfg.Validate())
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
