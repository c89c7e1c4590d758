package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Gateway GatewayConfig `yaml:"gateway,omitempty"`
	Player  PlayerConfig  `yaml:"player,omitempty"`
	Store   StoreConfig   `yaml:"store,omitempty"`
	Relay   RelayConfig   `yaml:"relay,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// GatewayConfig controls how provider requests leave the client
type GatewayConfig struct {
	Mode              string        `yaml:"mode,omitempty"` // "direct", "relay"
	RelayURL          string        `yaml:"relay_url,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"`
	UserAgent         string        `yaml:"user_agent,omitempty"`
}

// PlayerConfig contains media player settings
type PlayerConfig struct {
	Type string `yaml:"type,omitempty"` // "mpv", "native"
	Path string `yaml:"path,omitempty"`
	Args string `yaml:"args,omitempty"`
}

// StoreConfig selects where credentials and favorites are persisted
type StoreConfig struct {
	Backend     string `yaml:"backend,omitempty"` // "file", "sqlite", "redis", "memory"
	Path        string `yaml:"path,omitempty"`
	RedisAddr   string `yaml:"redis_addr,omitempty"`
	RedisDB     int    `yaml:"redis_db,omitempty"`
	RedisPrefix string `yaml:"redis_prefix,omitempty"`
}

// RelayConfig contains settings for `kiri relay`
type RelayConfig struct {
	ListenAddr    string `yaml:"listen_addr,omitempty"`
	EnableMetrics bool   `yaml:"enable_metrics,omitempty"`
}

// LoggingConfig contains log related settings
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`
	FilePath   string `yaml:"file_path,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// Load builds a configuration struct from multiple sources using these steps:
// 1. Create a base config with default values
// 2. If no config file exists on disk, save the default config to that location
// 3. Apply 'dynamic' properties.  Dynamic properties are those that are determined at runtime, for example log file location which is different per OS.
// 4. Load & merge the config file, overwriting any defaults with user-specified values
// 5. Apply environment variable overrides
func Load() (*Config, error) {
	cfg := createBaseDefaultConfig()

	configPath, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("unable to determine config file path: %w", err)
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		// If there is an error saving the default config, then still let the application startup using the defaults.
		_ = save(cfg, configPath)
	}

	applyDynamicDefaults(cfg)

	fileConfig, err := loadFromDisk(configPath)
	if err != nil {
		return nil, err
	}
	if err = mergo.Merge(cfg, fileConfig, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("error merging config loaded from disk: %w", err)
	}

	if err := applyEnvVarOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the enum style fields hold something Kiri understands
func (c *Config) Validate() error {
	switch c.Gateway.Mode {
	case "direct":
	case "relay":
		if c.Gateway.RelayURL == "" {
			return errors.New("gateway.relay_url is required when gateway.mode is relay")
		}
	default:
		return fmt.Errorf("unknown gateway.mode %q, expected direct or relay", c.Gateway.Mode)
	}

	switch c.Store.Backend {
	case "file", "sqlite", "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			return errors.New("store.redis_addr is required when store.backend is redis")
		}
	default:
		return fmt.Errorf("unknown store.backend %q, expected file, sqlite, redis or memory", c.Store.Backend)
	}

	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive, got %s", c.Gateway.Timeout)
	}
	return nil
}

// applyDynamicDefaults sets runtime-determined default values for any properties that haven't been explicitly configured.
// Unlike static defaults, these values might change between runs based on the environment or system configuration.
func applyDynamicDefaults(cfg *Config) {
	cfg.Logging.FilePath = defaultLogFilePath()
	cfg.Store.Path = defaultStorePath()
}

// loadFromDisk loads the YAML config from disk and returns the unmarshalled Config
func loadFromDisk(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	return cfg, nil
}

func save(cfg *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// UpdateConfig reads the existing config, applies the update function, and saves it back to disk
func UpdateConfig(updateFn func(*Config)) error {
	configPath, err := getConfigPath()
	if err != nil {
		return fmt.Errorf("unable to determine config file path: %w", err)
	}

	cfg, err := loadFromDisk(configPath)
	if err != nil {
		return fmt.Errorf("error loading config file from disk: %w", err)
	}

	updateFn(cfg)

	return save(cfg, configPath)
}

// getConfigPath returns the path to the config file.  Uses the environment variable override if present, else tries
// to use OS config location defaults.
func getConfigPath() (string, error) {
	configPath := os.Getenv("KIRI_CONFIG_PATH")
	if configPath != "" {
		return configPath, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "kiri", "config.yaml"), nil
}

func createBaseDefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Mode:              "direct",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 5,
		},
		Player: PlayerConfig{
			Type: "mpv",
			Path: "mpv",
		},
		Store: StoreConfig{
			Backend:     "file",
			RedisPrefix: "kiri:",
		},
		Relay: RelayConfig{
			ListenAddr:    "127.0.0.1:8089",
			EnableMetrics: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// defaultLogFilePath returns the path to the log file.  Tries to use expected OS location defaults.
func defaultLogFilePath() string {
	var basePath string
	homedir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "kiri.log")
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			basePath = filepath.Join(appData, "kiri", "logs")
		} else {
			basePath = filepath.Join(homedir, "AppData", "local", "kiri", "logs")
		}
	case "darwin":
		basePath = filepath.Join(homedir, "Library", "Logs", "kiri")
	default:
		if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
			basePath = filepath.Join(xdgState, "kiri", "logs")
		} else {
			basePath = filepath.Join(homedir, ".local", "state", "kiri", "logs")
		}
	}

	if err := os.MkdirAll(basePath, 0700); err != nil {
		return filepath.Join(".", "kiri.log")
	}
	return filepath.Join(basePath, "kiri.log")
}

// defaultStorePath returns the directory holding persisted credentials and favorites.  The file backend writes one
// JSON document per key in here; the sqlite backend keeps kiri.db alongside.
func defaultStorePath() string {
	dataDir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "kiri-data")
	}
	return filepath.Join(dataDir, "kiri", "data")
}
