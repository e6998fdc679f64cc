package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kass/go-aqi-viz/pkg/imaging"
	"github.com/kass/go-aqi-viz/pkg/models"
	"github.com/kass/go-aqi-viz/pkg/provider"
	"github.com/kass/go-aqi-viz/pkg/viz"
)

// Default values
const (
	DefaultPort            = 8080
	DefaultMaxUploadMB     = 10
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultAPIKeyEnv       = "MOENV_API_KEY"
	DefaultImagingSeed     = 42
	DefaultNearbyLimit     = 10
)

// DotEnvFile is read by Load when it exists
var DotEnvFile = ".env"

// Config is the full configuration tree
type Config struct {
	AppEnv   string         `yaml:"app_env"`
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Imaging  ImagingConfig  `yaml:"imaging"`
	Selector SelectorConfig `yaml:"selector"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	MaxUploadMB     int           `yaml:"max_upload_mb"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// NearbyLimit is the default result count of the nearby-stations route
	NearbyLimit int `yaml:"nearby_limit"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

// MaxUploadBytes returns the upload limit in bytes
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// ProviderConfig configures the station directory fetch
type ProviderConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Limit   int           `yaml:"limit"`

	// APIKeyEnv names the environment variable holding the provider key.
	APIKeyEnv string `yaml:"api_key_env"`

	// CacheTTL shares one fetch between requests for this long; 0 disables caching.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// APIKey resolves the provider key from the environment
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// Options converts the settings into client options
func (p ProviderConfig) Options() provider.Options {
	return provider.Options{
		BaseURL: p.BaseURL,
		APIKey:  p.APIKey(),
		Timeout: p.Timeout,
		Limit:   p.Limit,
	}
}

// ImagingConfig configures feature extraction
type ImagingConfig struct {
	Seed int64 `yaml:"seed"`
	// Workers bounds concurrent extractions; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// MaxPixels caps the width×height an image header may declare.
	MaxPixels int64 `yaml:"max_pixels"`
}

// SelectorConfig configures style selection
type SelectorConfig struct {
	// Seed for the fallback choice; 0 seeds from the clock.
	Seed    int64                  `yaml:"seed"`
	Weights map[string]viz.Weights `yaml:"weights"`
}

// Table returns the validated weight table, or the default when none is configured
func (s SelectorConfig) Table() (viz.Table, error) {
	if len(s.Weights) == 0 {
		return viz.DefaultTable(), nil
	}
	m := make(map[models.Style]viz.Weights, len(s.Weights))
	for k, w := range s.Weights {
		m[models.Style(k)] = w
	}
	return viz.NewTable(m)
}

// ArchiveConfig enables the reading history. An empty driver disables it.
type ArchiveConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Enabled reports whether readings are archived
func (a ArchiveConfig) Enabled() bool {
	return a.Driver != ""
}

// LogConfig configures the logger
type LogConfig struct {
	Level string `yaml:"level"`
	// Format is auto, text or json. auto picks text on a terminal.
	Format string `yaml:"format"`
}

// SlogLevel returns the parsed level; validate guarantees it parses
func (l LogConfig) SlogLevel() slog.Level {
	level, _ := parseLogLevel(l.Level)
	return level
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty), the .env file and the environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", DotEnvFile, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		AppEnv: "development",
		Server: ServerConfig{
			Port:            DefaultPort,
			MaxUploadMB:     DefaultMaxUploadMB,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			NearbyLimit:     DefaultNearbyLimit,
		},
		Provider: ProviderConfig{
			BaseURL:   provider.DefaultBaseURL,
			Timeout:   provider.DefaultTimeout,
			APIKeyEnv: DefaultAPIKeyEnv,
		},
		Imaging: ImagingConfig{
			Seed:      DefaultImagingSeed,
			MaxPixels: imaging.DefaultMaxPixels,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.AppEnv = v
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}
	if cfg.Server.NearbyLimit <= 0 {
		return fmt.Errorf("server.nearby_limit must be positive")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if cfg.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if cfg.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}
	if cfg.Provider.Limit < 0 {
		return fmt.Errorf("provider.limit must not be negative")
	}
	if cfg.Provider.CacheTTL < 0 {
		return fmt.Errorf("provider.cache_ttl must not be negative")
	}
	if cfg.Imaging.Workers < 0 {
		return fmt.Errorf("imaging.workers must not be negative")
	}
	if cfg.Imaging.MaxPixels <= 0 {
		return fmt.Errorf("imaging.max_pixels must be positive")
	}
	if _, err := cfg.Selector.Table(); err != nil {
		return fmt.Errorf("selector.weights: %w", err)
	}
	switch cfg.Archive.Driver {
	case "", "postgres", "sqlite3":
	default:
		return fmt.Errorf("archive.driver %q unknown: want postgres|sqlite3", cfg.Archive.Driver)
	}
	if cfg.Archive.Enabled() && cfg.Archive.DSN == "" {
		return fmt.Errorf("archive.dsn is required when archive.driver is set")
	}
	if _, err := parseLogLevel(cfg.Log.Level); err != nil {
		return err
	}
	switch cfg.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("log.format %q unknown: want auto|text|json", cfg.Log.Format)
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
