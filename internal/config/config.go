// Package config loads the relaykit runtime configuration.
//
// Values come from three layers, each overriding the previous one:
// built-in defaults, a YAML (or JSON) file and RELAYKIT_* environment
// variables. A .env file may seed the environment before overrides apply.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/relaykit/internal/logging"
)

// Default values.
const (
	DefaultPath     = "relaykit.yaml"
	DefaultAddr     = "127.0.0.1:8080"
	DefaultDevURL   = "http://localhost:5173"
	DefaultTickRate = 30
	DefaultStoreDir = ".relaykit/presets"
	MaxTickRate     = 1000
)

// UI modes.
const (
	ModeBundled = "bundled"
	ModeLive    = "live"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Environment variables read by ApplyEnv.
const (
	EnvMode      = "RELAYKIT_MODE"
	EnvDevURL    = "RELAYKIT_DEV_URL"
	EnvAddr      = "RELAYKIT_ADDR"
	EnvLogLevel  = "RELAYKIT_LOG_LEVEL"
	EnvStore     = "RELAYKIT_STORE"
	EnvRedisAddr = "RELAYKIT_REDIS_ADDR"
	EnvTickRate  = "RELAYKIT_TICK_RATE"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete runtime configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	UI         UIConfig         `yaml:"ui" json:"ui"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" json:"telemetry"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Automation AutomationConfig `yaml:"automation" json:"automation"`
	Log        LogConfig        `yaml:"log" json:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// UIConfig selects where the UI's documents come from.
type UIConfig struct {
	Mode         string `yaml:"mode" json:"mode"`
	AssetsDir    string `yaml:"assets_dir" json:"assets_dir"`
	RootDocument string `yaml:"root_document" json:"root_document"`
	DevURL       string `yaml:"dev_url" json:"dev_url"`
	// DevCommand, when set in live mode, is started alongside the server.
	DevCommand []string          `yaml:"dev_command" json:"dev_command"`
	DevDir     string            `yaml:"dev_dir" json:"dev_dir"`
	DevEnv     map[string]string `yaml:"dev_env" json:"dev_env"`
}

// TelemetryConfig controls the periodic event tick.
type TelemetryConfig struct {
	Rate int `yaml:"rate" json:"rate"`
}

// StoreConfig selects the preset backend.
type StoreConfig struct {
	Backend string      `yaml:"backend" json:"backend"`
	Dir     string      `yaml:"dir" json:"dir"`
	Redis   RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig is used when Store.Backend is "redis".
type RedisConfig struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// AutomationConfig drives the simulated host automation lane.
type AutomationConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Parameter string        `yaml:"parameter" json:"parameter"`
	Period    time.Duration `yaml:"period" json:"period"`
}

// LogConfig sets the logger threshold.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: DefaultAddr},
		UI: UIConfig{
			Mode:         ModeBundled,
			RootDocument: "index.html",
			DevURL:       DefaultDevURL,
		},
		Telemetry: TelemetryConfig{Rate: DefaultTickRate},
		Store: StoreConfig{
			Backend: StoreMemory,
			Dir:     DefaultStoreDir,
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		Automation: AutomationConfig{
			Parameter: "mix",
			Period:    4 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path on top of the defaults. An empty path or a missing file
// yields the defaults. Files ending in .json are parsed as JSON, anything
// else as YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads environment variables from path. Missing files are ignored.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overrides fields from the environment. lookup is normally
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvMode); ok && v != "" {
		c.UI.Mode = v
	}
	if v, ok := lookup(EnvDevURL); ok && v != "" {
		c.UI.DevURL = v
	}
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvStore); ok && v != "" {
		c.Store.Backend = v
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		c.Store.Redis.Addr = v
	}
	if v, ok := lookup(EnvTickRate); ok && v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTickRate, err)
		}
		c.Telemetry.Rate = rate
	}
	return nil
}

// Validate checks the configuration for values the runtime cannot use.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalid)
	}

	switch strings.ToLower(c.UI.Mode) {
	case "", ModeBundled:
	case ModeLive, "dev":
		u, err := url.Parse(c.UI.DevURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: ui.dev_url %q must be an absolute http(s) URL", ErrInvalid, c.UI.DevURL)
		}
	default:
		return fmt.Errorf("%w: ui.mode %q (want %s or %s)", ErrInvalid, c.UI.Mode, ModeBundled, ModeLive)
	}

	if c.Telemetry.Rate < 0 || c.Telemetry.Rate > MaxTickRate {
		return fmt.Errorf("%w: telemetry.rate %d out of [0, %d]", ErrInvalid, c.Telemetry.Rate, MaxTickRate)
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreFile:
		if c.Store.Dir == "" {
			return fmt.Errorf("%w: store.dir is required for the file backend", ErrInvalid)
		}
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("%w: store.redis.addr is required for the redis backend", ErrInvalid)
		}
		if c.Store.Redis.TTL < 0 {
			return fmt.Errorf("%w: store.redis.ttl is negative", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: store.backend %q", ErrInvalid, c.Store.Backend)
	}

	if c.Automation.Enabled && c.Automation.Period <= 0 {
		return fmt.Errorf("%w: automation.period must be positive", ErrInvalid)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Live reports whether the UI is served from the dev server.
func (c Config) Live() bool {
	m := strings.ToLower(c.UI.Mode)
	return m == ModeLive || m == "dev"
}
