package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// VariantFull optimizes raster images remotely and SVG files locally.
	VariantFull = "full"
	// VariantRaster only considers PNG and JPEG files.
	VariantRaster = "raster"

	DefaultEndpoint      = "https://api.tinify.com/shrink"
	DefaultTempDirectory = ".tinyimg-tmp"
	DefaultKeyFileName   = ".tinyimg"
	DefaultConcurrency   = 4
	DefaultTimeout       = 2 * time.Minute
)

// ErrMissingAPIKey is returned when no API key could be resolved.
var ErrMissingAPIKey = errors.New("no API key configured")

// Config represents the main configuration structure
type Config struct {
	APIKey        string            `mapstructure:"api_key"`
	KeyFile       string            `mapstructure:"key_file"`
	Endpoint      string            `mapstructure:"endpoint"`
	Variant       string            `mapstructure:"variant"`
	Recursive     bool              `mapstructure:"recursive"`
	TempDirectory string            `mapstructure:"temp_directory"`
	Performance   PerformanceConfig `mapstructure:"performance"`
	Logging       LoggingConfig     `mapstructure:"logging"`
}

// PerformanceConfig contains concurrency and timeout settings
type PerformanceConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		KeyFile:       defaultKeyFile(),
		Endpoint:      DefaultEndpoint,
		Variant:       VariantFull,
		TempDirectory: DefaultTempDirectory,
		Performance: PerformanceConfig{
			Concurrency:    DefaultConcurrency,
			RequestTimeout: DefaultTimeout,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			Format:     "text",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file, .env and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	// A missing .env is the common case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.tinyimg.d")
		v.AddConfigPath("/etc/tinyimg")
	}

	v.SetEnvPrefix("TINYIMG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindEnv registers every key so AutomaticEnv values reach Unmarshal
// even when no config file mentions them.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"api_key", "key_file", "endpoint", "variant", "recursive", "temp_directory",
		"performance.concurrency", "performance.request_timeout",
		"logging.level", "logging.format", "logging.file_path",
		"logging.max_size", "logging.max_backups", "logging.max_age", "logging.compress",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	c.Variant = strings.ToLower(strings.TrimSpace(c.Variant))
	if c.Variant == "" {
		c.Variant = VariantFull
	}
	if c.Variant != VariantFull && c.Variant != VariantRaster {
		return fmt.Errorf("invalid variant: %s (valid: full, raster)", c.Variant)
	}

	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("endpoint is required")
	}

	if c.TempDirectory == "" {
		c.TempDirectory = DefaultTempDirectory
	}
	if err := validateTempDirectory(c.TempDirectory); err != nil {
		return err
	}

	if c.Performance.Concurrency <= 0 {
		c.Performance.Concurrency = DefaultConcurrency
	}
	if c.Performance.RequestTimeout <= 0 {
		c.Performance.RequestTimeout = DefaultTimeout
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	c.Logging.Format = strings.ToLower(c.Logging.Format)
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	return nil
}

// SupportedExtensions returns the extensions considered by the path resolver
// for the configured variant. Matching is case-sensitive.
func (c *Config) SupportedExtensions() []string {
	if c.Variant == VariantRaster {
		return []string{".png", ".jpg", ".jpeg"}
	}
	return []string{".png", ".jpg", ".jpeg", ".gif", ".svg"}
}

// ResolveAPIKey picks the API key in order: the flag value, the key file,
// then the configured api_key. All values are trimmed.
func ResolveAPIKey(flagValue, keyFile, configured string) (string, error) {
	if key := strings.TrimSpace(flagValue); key != "" {
		return key, nil
	}

	if keyFile != "" {
		data, err := os.ReadFile(expandHome(keyFile))
		if err == nil {
			if key := strings.TrimSpace(string(data)); key != "" {
				return key, nil
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read key file %s: %w", keyFile, err)
		}
	}

	if key := strings.TrimSpace(configured); key != "" {
		return key, nil
	}

	return "", ErrMissingAPIKey
}

// Helper functions

func defaultKeyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultKeyFileName)
}

// validateTempDirectory rejects directories whose removal would take the
// working directory or the home directory with it.
func validateTempDirectory(dir string) error {
	abs, err := filepath.Abs(expandHome(dir))
	if err != nil {
		return fmt.Errorf("invalid temp_directory %s: %w", dir, err)
	}
	if cwd, err := os.Getwd(); err == nil && containsPath(abs, cwd) {
		return fmt.Errorf("temp_directory %s must not contain the working directory", dir)
	}
	if home, err := os.UserHomeDir(); err == nil && containsPath(abs, home) {
		return fmt.Errorf("temp_directory %s must not contain the home directory", dir)
	}
	return nil
}

// containsPath reports whether target is parent or one of its descendants.
func containsPath(parent, target string) bool {
	rel, err := filepath.Rel(parent, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func expandHome(path string) string {
	expanded := os.ExpandEnv(path)
	if strings.HasPrefix(expanded, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return expanded
		}
		expanded = filepath.Join(home, expanded[1:])
	}
	return expanded
}
