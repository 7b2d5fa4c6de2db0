// Package config loads the timer service configuration from YAML with
// programmatic defaults. Every field has a working default so the service
// starts with no file at all; a file overrides only the keys it names.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/retry"
)

type (
	// Duration wraps time.Duration with YAML support for strings like "5s"
	// and "100ms".
	Duration time.Duration

	// Config is the full configuration surface of the timer service.
	Config struct {
		// PollInterval is the cadence of the due-timer polling worker.
		PollInterval Duration `yaml:"poll_interval"`
		// Retry is the backoff policy applied when handling commands.
		Retry Retry `yaml:"retry"`
		// Redis configures the broker connection and stream behavior.
		Redis Redis `yaml:"redis"`
		// Mongo configures the timer store.
		Mongo Mongo `yaml:"mongo"`
		// HealthAddr is the listen address of the health HTTP endpoint.
		HealthAddr string `yaml:"health_addr"`
		// Debug enables debug logging.
		Debug bool `yaml:"debug"`
	}

	// Retry mirrors retry.Config in YAML form.
	Retry struct {
		MaxAttempts    int      `yaml:"max_attempts"`
		InitialBackoff Duration `yaml:"initial_backoff"`
		MaxBackoff     Duration `yaml:"max_backoff"`
		Multiplier     float64  `yaml:"multiplier"`
		Jitter         float64  `yaml:"jitter"`
	}

	// Redis configures the Redis connection and the stream adapter.
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Stream   Stream `yaml:"stream"`
	}

	// Stream configures the Redis Streams bus adapter.
	Stream struct {
		// SinkName is the durable consumer group name. Replicas sharing the
		// name split the stream between them.
		SinkName string `yaml:"sink_name"`
		// MaxLen caps each stream's length; older entries are evicted.
		MaxLen int `yaml:"max_len"`
		// PublishRate and PublishBurst throttle outbound publishes.
		// Zero means unlimited.
		PublishRate  float64 `yaml:"publish_rate"`
		PublishBurst int     `yaml:"publish_burst"`
	}

	// Mongo configures the MongoDB timer store.
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	}
)

// UnmarshalYAML parses durations given as strings ("5s", "100ms") or as bare
// integers, which are taken as nanoseconds to match time.Duration's zero
// semantics.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	return fmt.Errorf("invalid duration value %q", value.Value)
}

// MarshalYAML renders the duration in the usual "5s" form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration the service runs with when no file or
// overrides are given.
func Default() Config {
	return Config{
		PollInterval: Duration(5 * time.Second),
		Retry: Retry{
			MaxAttempts:    3,
			InitialBackoff: Duration(100 * time.Millisecond),
			MaxBackoff:     Duration(10 * time.Second),
			Multiplier:     2.0,
			Jitter:         0.1,
		},
		Redis: Redis{
			Addr: "localhost:6379",
			Stream: Stream{
				SinkName: "timer-service",
				MaxLen:   1000,
			},
		},
		Mongo: Mongo{
			URI:      "mongodb://localhost:27017",
			Database: "timersvc",
		},
		HealthAddr: ":8081",
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's -config flag
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.PollInterval.Std() <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Retry.InitialBackoff.Std() < 0 || c.Retry.MaxBackoff.Std() < 0 {
		errs = append(errs, errors.New("retry backoffs must not be negative"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry.multiplier must be at least 1"))
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		errs = append(errs, errors.New("retry.jitter must be between 0 and 1"))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.Redis.Stream.SinkName == "" {
		errs = append(errs, errors.New("redis.stream.sink_name is required"))
	}
	if c.Redis.Stream.MaxLen < 0 {
		errs = append(errs, errors.New("redis.stream.max_len must not be negative"))
	}
	if c.Redis.Stream.PublishRate < 0 || c.Redis.Stream.PublishBurst < 0 {
		errs = append(errs, errors.New("redis.stream publish throttle must not be negative"))
	}
	if c.Mongo.URI == "" {
		errs = append(errs, errors.New("mongo.uri is required"))
	}
	if c.Mongo.Database == "" {
		errs = append(errs, errors.New("mongo.database is required"))
	}
	if c.HealthAddr == "" {
		errs = append(errs, errors.New("health_addr is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RetryConfig converts the YAML retry section to the runtime policy.
func (c Config) RetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:       c.Retry.MaxAttempts,
		InitialBackoff:    c.Retry.InitialBackoff.Std(),
		MaxBackoff:        c.Retry.MaxBackoff.Std(),
		BackoffMultiplier: c.Retry.Multiplier,
		Jitter:            c.Retry.Jitter,
	}
}
