package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 5*time.Second, cfg.PollInterval.Std())
	require.Equal(t, "timer-service", cfg.Redis.Stream.SinkName)
	require.Equal(t, "timersvc", cfg.Mongo.Database)
	require.Equal(t, ":8081", cfg.HealthAddr)
}

func TestLoadOverridesOnlyNamedKeys(t *testing.T) {
	path := writeConfig(t, `
poll_interval: 250ms
redis:
  addr: redis.internal:6379
  stream:
    sink_name: timer-service
    max_len: 5000
mongo:
  uri: mongodb://mongo.internal:27017
  database: timersvc
debug: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, cfg.PollInterval.Std())
	require.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	require.Equal(t, 5000, cfg.Redis.Stream.MaxLen)
	require.True(t, cfg.Debug)
	// Untouched keys keep their defaults.
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Equal(t, ":8081", cfg.HealthAddr)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "poll_interval: [not a duration\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "poll_interval: soon\n")
	_, err := Load(path)
	require.ErrorContains(t, err, "parse duration")
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	cases := map[string]func(*Config){
		"zero poll interval":    func(c *Config) { c.PollInterval = 0 },
		"negative backoff":      func(c *Config) { c.Retry.InitialBackoff = Duration(-time.Second) },
		"zero attempts":         func(c *Config) { c.Retry.MaxAttempts = 0 },
		"multiplier below one":  func(c *Config) { c.Retry.Multiplier = 0.5 },
		"jitter out of range":   func(c *Config) { c.Retry.Jitter = 1.5 },
		"missing redis addr":    func(c *Config) { c.Redis.Addr = "" },
		"missing sink name":     func(c *Config) { c.Redis.Stream.SinkName = "" },
		"negative publish rate": func(c *Config) { c.Redis.Stream.PublishRate = -1 },
		"missing mongo uri":     func(c *Config) { c.Mongo.URI = "" },
		"missing database":      func(c *Config) { c.Mongo.Database = "" },
		"missing health addr":   func(c *Config) { c.HealthAddr = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestRetryConfigConversion(t *testing.T) {
	cfg := Default()
	rc := cfg.RetryConfig()
	require.Equal(t, 3, rc.MaxAttempts)
	require.Equal(t, 100*time.Millisecond, rc.InitialBackoff)
	require.Equal(t, 10*time.Second, rc.MaxBackoff)
	require.Equal(t, 2.0, rc.BackoffMultiplier)
	require.Equal(t, 0.1, rc.Jitter)
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	d := Duration(1500 * time.Millisecond)
	out, err := d.MarshalYAML()
	require.NoError(t, err)
	require.Equal(t, "1.5s", out)
}
