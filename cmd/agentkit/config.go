package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/MatusOllah/slogcolor"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// DefaultSettingsPath is where the tool settings are read from.
const DefaultSettingsPath = "~/.agentkit/config.yaml"

// Settings holds the tool configuration. The project itself is described by
// agentkit.yaml; these are per-user settings.
type Settings struct {
	Platform  PlatformSettings `mapstructure:"platform"`
	Storage   StorageSettings  `mapstructure:"storage"`
	Docker    DockerSettings   `mapstructure:"docker"`
	Log       LogSettings      `mapstructure:"log"`
	Preflight string           `mapstructure:"preflight"`

	// Output selects the reporter: "interactive" or "log".
	Output string `mapstructure:"output"`

	// PollInterval overrides how often remote state is polled.
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	InvokeTimeout time.Duration `mapstructure:"invoke_timeout"`
}

// PlatformSettings configure the management API client.
type PlatformSettings struct {
	Endpoint  string            `mapstructure:"endpoint"`
	Region    string            `mapstructure:"region"`
	AccessKey string            `mapstructure:"access_key"`
	SecretKey string            `mapstructure:"secret_key"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	RetryMax  int               `mapstructure:"retry_max"`
	Headers   map[string]string `mapstructure:"headers"`
}

// HasCredentials reports whether remote launch types can be used.
func (p PlatformSettings) HasCredentials() bool {
	return p.AccessKey != "" && p.SecretKey != ""
}

// StorageSettings configure the object storage used by cloud builds.
type StorageSettings struct {
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// DockerSettings configure the container engine client.
type DockerSettings struct {
	Host string `mapstructure:"host"`
}

// LogSettings configure diagnostic logging.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadSettings loads the settings file, if present, and AGENTKIT_*
// environment overrides.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("platform.endpoint", "")
	v.SetDefault("platform.region", "cn-beijing")
	v.SetDefault("platform.access_key", "")
	v.SetDefault("platform.secret_key", "")
	v.SetDefault("platform.timeout", "30s")
	v.SetDefault("platform.retry_max", 3)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.path_style", false)
	v.SetDefault("docker.host", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "color")
	v.SetDefault("preflight", "prompt")
	v.SetDefault("output", "interactive")
	v.SetDefault("poll_interval", "0s")
	v.SetDefault("invoke_timeout", "5m")

	if path == "" {
		path = DefaultSettingsPath
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("resolve settings path: %w", err)
	}
	v.SetConfigFile(expanded)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		// A missing file leaves the defaults in place.
		if _, ok := err.(viper.ConfigParseError); ok {
			return nil, fmt.Errorf("failed to parse settings file: %w", err)
		}
	}

	v.SetEnvPrefix("AGENTKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &s, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
// Diagnostics go to out, which is stderr for the CLI.
func SetupLogger(cfg LogSettings, out io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning", "":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %s", cfg.Level)
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	case "color", "":
		opts := slogcolor.DefaultOptions
		opts.Level = level
		handler = slogcolor.NewHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.Format)
	}
	return slog.New(handler), nil
}
