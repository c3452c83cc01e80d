package config

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats accepted by describe and run.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

var (
	formats   = []string{FormatTable, FormatJSON}
	logLevels = []string{"debug", "info", "warn", "error"}
)

// Config represents the mop CLI configuration
type Config struct {
	LogLevel string      `mapstructure:"log_level"`
	Format   string      `mapstructure:"format"`
	Color    bool        `mapstructure:"color"`
	Metrics  bool        `mapstructure:"metrics"`
	Watch    WatchConfig `mapstructure:"watch"`
}

// WatchConfig configures `mop check --watch`
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Patterns []string      `mapstructure:"patterns"`
}

// Load reads mop.yaml (or mop.yml) from the working directory, or the file at
// path when it is not empty. MOP_* environment variables override the file,
// e.g. MOP_LOG_LEVEL or MOP_WATCH_DEBOUNCE.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "warn")
	v.SetDefault("format", FormatTable)
	v.SetDefault("color", true)
	v.SetDefault("metrics", false)
	v.SetDefault("watch.debounce", "100ms")
	v.SetDefault("watch.patterns", []string{"*.yaml", "*.yml"})

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mop")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no mop.yaml: defaults and environment only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown formats and log levels.
func (c *Config) Validate() error {
	if !slices.Contains(formats, c.Format) {
		return fmt.Errorf("format must be one of %s, got: %s", strings.Join(formats, ", "), c.Format)
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("log_level must be one of %s, got: %s", strings.Join(logLevels, ", "), c.LogLevel)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got: %s", c.Watch.Debounce)
	}
	return nil
}

// NewLogger builds the CLI logger writing to w. debug selects zap's
// development encoder, every other level the production JSON encoder.
func NewLogger(level string, w io.Writer) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encoder := zapcore.NewJSONEncoder(encCfg)
	if lvl == zapcore.DebugLevel {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}
