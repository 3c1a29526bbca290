// Package config holds docma's tool settings. Values come from viper, so
// they may be set in ~/.docma.yaml (or the file named by --config), in
// DOCMA_<SECTION>_<KEY> environment variables, or by bound flags.
//
// These settings tune the tool itself: size limits, timeouts, worker counts.
// A template's own config.yaml is handled by the tmplconf package.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jin-gizmo/docma/internal/logging"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "DOCMA"

type Config struct {
	Log     LogConfig      `mapstructure:"log"`
	Import  TransferConfig `mapstructure:"import"`
	Fetch   TransferConfig `mapstructure:"fetch"`
	Embed   EmbedConfig    `mapstructure:"embed"`
	Render  RenderConfig   `mapstructure:"render"`
	PDF     PDFConfig      `mapstructure:"pdf"`
	Batch   BatchConfig    `mapstructure:"batch"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TransferConfig bounds importer and fetcher network transfers.
type TransferConfig struct {
	MaxSize int64         `mapstructure:"max_size"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// EmbedConfig controls which http(s) images are inlined as data URLs.
type EmbedConfig struct {
	MinSize     int64 `mapstructure:"min_size"`
	MaxSize     int64 `mapstructure:"max_size"`
	SkipMissing bool  `mapstructure:"skip_missing"`
}

type RenderConfig struct {
	Locale string `mapstructure:"locale"`
}

type PDFConfig struct {
	ChromePath string        `mapstructure:"chrome_path"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("import.max_size", 10<<20)
	v.SetDefault("import.timeout", 30*time.Second)
	v.SetDefault("import.retries", 2)

	v.SetDefault("fetch.max_size", 10<<20)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.retries", 2)

	v.SetDefault("embed.min_size", 0)
	v.SetDefault("embed.max_size", 2<<20)
	v.SetDefault("embed.skip_missing", false)

	v.SetDefault("render.locale", "en_AU")

	v.SetDefault("pdf.chrome_path", "")
	v.SetDefault("pdf.timeout", 2*time.Minute)

	v.SetDefault("batch.workers", 4)

	v.SetDefault("metrics.textfile", "")
}

// Setup prepares v for environment overrides and defaults.
func Setup(v *viper.Viper) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Bound flags are not seen by Unmarshal when the nested key is unset.
	if v.IsSet("log.level") {
		config.Log.Level = v.GetString("log.level")
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration with only default values applied.
func Default() *Config {
	v := viper.New()
	config, err := LoadFrom(v)
	if err != nil {
		panic(err)
	}

	return config
}

func validateConfig(config *Config) error {
	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(config.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: must be text or json, not %q", config.Log.Format)
	}

	if err := validateTransfer("import", config.Import); err != nil {
		return err
	}
	if err := validateTransfer("fetch", config.Fetch); err != nil {
		return err
	}

	if config.Embed.MinSize < 0 || config.Embed.MaxSize < 0 {
		return fmt.Errorf("embed: sizes must not be negative")
	}
	if config.Embed.MaxSize > 0 && config.Embed.MinSize > config.Embed.MaxSize {
		return fmt.Errorf("embed: min_size %d exceeds max_size %d", config.Embed.MinSize, config.Embed.MaxSize)
	}

	if config.Render.Locale == "" {
		return fmt.Errorf("render.locale: must not be empty")
	}
	if config.PDF.Timeout <= 0 {
		return fmt.Errorf("pdf.timeout: must be positive")
	}
	if config.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers: must be at least 1, not %d", config.Batch.Workers)
	}

	return nil
}

func validateTransfer(section string, tc TransferConfig) error {
	if tc.MaxSize < 0 {
		return fmt.Errorf("%s.max_size: must not be negative", section)
	}
	if tc.Timeout < 0 {
		return fmt.Errorf("%s.timeout: must not be negative", section)
	}
	if tc.Retries < 0 {
		return fmt.Errorf("%s.retries: must not be negative", section)
	}

	return nil
}
