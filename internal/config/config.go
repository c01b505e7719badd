// Package config loads vquery settings from defaults, an optional YAML file,
// and VQUERY_ environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides. Nested keys use
// underscores: keys.cross_run is VQUERY_KEYS_CROSS_RUN.
const EnvPrefix = "VQUERY"

// Config holds all settings.
type Config struct {
	// DB is the SQLite database path.
	DB string `mapstructure:"db"`
	// Workers bounds concurrent node processing. 0 means GOMAXPROCS.
	Workers int           `mapstructure:"workers"`
	Backend BackendConfig `mapstructure:"backend"`
	Keys    KeysConfig    `mapstructure:"keys"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// BackendConfig configures the proof backend.
type BackendConfig struct {
	// Seed makes key derivation deterministic. Empty means a random seed per
	// process.
	Seed string `mapstructure:"seed"`
}

// KeysConfig configures key reuse.
type KeysConfig struct {
	Cache    bool `mapstructure:"cache"`
	CrossRun bool `mapstructure:"cross_run"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

var defaults = map[string]any{
	"db":             "vquery.db",
	"workers":        0,
	"backend.seed":   "",
	"keys.cache":     true,
	"keys.cross_run": false,
	"log.level":      "info",
	"metrics.addr":   "",
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply. A named file that does not exist is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// AutomaticEnv only sees keys viper already knows; every key has a default.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("config: db must not be empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must be >= 0, got %d", c.Workers)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// LogLevel returns the configured slog level.
func (c Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log.level: %w", err)
	}
	return level, nil
}
