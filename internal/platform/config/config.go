// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	// DefaultBackend is the runtime backend used when none is configured.
	DefaultBackend = "reference"

	// DefaultDevicePlacement is the placement policy of default context options.
	DefaultDevicePlacement = "silent"

	// DefaultLogFileMaxSizeMB is the default max log file size in megabytes.
	DefaultLogFileMaxSizeMB = 100

	// DefaultLogFileMaxBackups is the default number of old log files to retain.
	DefaultLogFileMaxBackups = 3

	// DefaultLogFileMaxAgeDays is the default max days to retain old log files.
	DefaultLogFileMaxAgeDays = 28
)

// Config is the root configuration structure.
type Config struct {
	App       AppConfig       `koanf:"app"       validate:"required"`
	Log       LogConfig       `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Runtime   RuntimeConfig   `koanf:"runtime"   validate:"required"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true"`
	Insecure     bool    `koanf:"insecure"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// RuntimeConfig selects and tunes the tensor runtime backend.
type RuntimeConfig struct {
	Backend         string `koanf:"backend"          validate:"required"`
	Async           bool   `koanf:"async"`
	DevicePlacement string `koanf:"device_placement" validate:"required,oneof=explicit warn silent silent_for_int32"`
	// ConfigPath points at a serialized session configuration applied to
	// context options. Empty keeps the runtime's defaults.
	ConfigPath  string `koanf:"config_path" validate:"omitempty,file"`
	MaxContexts int    `koanf:"max_contexts" validate:"min=0"`
}

// MetricsConfig controls Prometheus metric export.
type MetricsConfig struct {
	// Textfile is where metrics are written on exit, in the node exporter
	// textfile format. Empty disables the export.
	Textfile string `koanf:"textfile"`
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "ctxprobe",
		"app.version":     "dev",
		"app.environment": "local",

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/ctxprobe.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.insecure":      false,
		"telemetry.service_name":  "ctxprobe",
		"telemetry.sampling_rate": 1.0,

		"runtime.backend":          DefaultBackend,
		"runtime.async":            false,
		"runtime.device_placement": DefaultDevicePlacement,
		"runtime.config_path":      "",
		"runtime.max_contexts":     0,

		"metrics.textfile": "",
	}
}

// Load loads configuration with the following precedence (highest to lowest):
//  1. Environment variables (APP_ prefix)
//  2. Profile config file (configs/{profile}.yaml)
//  3. Base config file (configs/base.yaml)
//  4. Default values
//
// Environment variables are matched against the known keys, so
// APP_RUNTIME__MAX_CONTEXTS and APP_RUNTIME_MAX_CONTEXTS both set
// runtime.max_contexts.
func Load(profile string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	err := k.Load(confmap.Provider(defaults(), "."), nil)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// 2. Load base config file if it exists
	err = loadFileIfExists(k, "configs/base.yaml")
	if err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	// 3. Load profile config file if it exists
	if profile != "" {
		profilePath := fmt.Sprintf("configs/%s.yaml", profile)

		err := loadFileIfExists(k, profilePath)
		if err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	// 4. Load environment variables with APP_ prefix
	err = k.Load(env.Provider("APP_", ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// knownEnvKeys indexes every configuration key by its flattened form, with
// each level joined by a single underscore.
var knownEnvKeys = func() map[string]string {
	keys := make(map[string]string)
	for k := range defaults() {
		keys[strings.ReplaceAll(k, ".", "_")] = k
	}

	return keys
}()

// envKey maps an APP_ environment variable to a configuration key.
//
// Known keys are matched whatever mix of single and double underscores
// separates their levels, so APP_LOG_FILE__MAX_SIZE, APP_LOG__FILE__MAX_SIZE
// and APP_LOG_FILE_MAX_SIZE all reach log.file.max_size. Unknown variables
// nest on double underscores when they have any, otherwise on every
// underscore.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "APP_"))

	if known, ok := knownEnvKeys[strings.ReplaceAll(key, "__", "_")]; ok {
		return known
	}

	if strings.Contains(key, "__") {
		return strings.ReplaceAll(key, "__", ".")
	}

	return strings.ReplaceAll(key, "_", ".")
}

// loadFileIfExists loads a YAML config file if it exists.
// Returns nil if the file doesn't exist, error only for parse/read failures.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}

// ReadSessionConfig returns the serialized session configuration named by
// ConfigPath, or nil when none is configured.
func (r RuntimeConfig) ReadSessionConfig() ([]byte, error) {
	if r.ConfigPath == "" {
		return nil, nil
	}

	b, err := os.ReadFile(r.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading session config: %w", err)
	}

	return b, nil
}
