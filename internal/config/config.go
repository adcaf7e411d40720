package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all daemon configuration.
type Config struct {
	DeviceName string `yaml:"device_name"`
	LogLevel   string `yaml:"log_level"`

	Core     CoreConfig     `yaml:"core"`
	Button   ButtonConfig   `yaml:"button"`
	Radio    RadioConfig    `yaml:"radio"`
	Display  DisplayConfig  `yaml:"display"`
	Storage  StorageConfig  `yaml:"storage"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	WiFi     WiFiConfig     `yaml:"wifi"`
	OTA      OTAConfig      `yaml:"ota"`
	Keystore KeystoreConfig `yaml:"keystore"`
}

// CoreConfig holds coordination loop settings.
type CoreConfig struct {
	TickMs      int `yaml:"tick_ms"`
	LogCapacity int `yaml:"log_capacity"`
}

// ButtonConfig holds push-button settings. An empty value_file disables the
// button monitor.
type ButtonConfig struct {
	ValueFile   string `yaml:"value_file"` // sysfs GPIO value file, active low
	DebounceMs  int    `yaml:"debounce_ms"`
	LongPressMs int    `yaml:"long_press_ms"`
}

// RadioConfig holds BLE settings.
type RadioConfig struct {
	MaxPayload    int `yaml:"max_payload"`
	BackoffBaseMs int `yaml:"backoff_base_ms"`
	BackoffMaxMs  int `yaml:"backoff_max_ms"`
}

// DisplayConfig holds display settings.
type DisplayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StorageConfig holds removable storage settings.
type StorageConfig struct {
	Dir string `yaml:"dir"` // SD card mount point
}

// BridgeConfig holds serial bridge settings. An empty port disables the
// bridge.
type BridgeConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// WiFiConfig holds network credentials written by `config init` for the
// OTA pull path.
type WiFiConfig struct {
	SSID string `yaml:"ssid"`
	PSK  string `yaml:"psk"`
}

// OTAConfig holds the update repository identity and the paths protected
// from sync.
type OTAConfig struct {
	RepoURL string   `yaml:"repo_url"`
	Ignore  []string `yaml:"ignore"`
}

// KeystoreConfig holds the device secret the key file is sealed under.
type KeystoreConfig struct {
	Secret string `yaml:"secret"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "keymaster")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		DeviceName: "KeyMaster",
		LogLevel:   "info",
		Core: CoreConfig{
			TickMs:      50,
			LogCapacity: 4,
		},
		Button: ButtonConfig{
			DebounceMs:  30,
			LongPressMs: 1000,
		},
		Radio: RadioConfig{
			MaxPayload:    244,
			BackoffBaseMs: 500,
			BackoffMaxMs:  8000,
		},
		Display: DisplayConfig{
			Enabled: true,
		},
		Storage: StorageConfig{
			Dir: "/media/sd",
		},
		Bridge: BridgeConfig{
			Baud: 115200,
		},
		OTA: OTAConfig{
			Ignore: []string{"keys.json"},
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with
// defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Storage.Dir = expandTilde(cfg.Storage.Dir)

	return cfg, nil
}

// Save writes the config as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.DeviceName == "" {
		return fmt.Errorf("device_name must not be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.Core.TickMs <= 0 {
		return fmt.Errorf("core.tick_ms must be > 0")
	}
	if c.Core.LogCapacity <= 0 {
		return fmt.Errorf("core.log_capacity must be > 0")
	}

	if c.Button.DebounceMs <= 0 {
		return fmt.Errorf("button.debounce_ms must be > 0")
	}
	if c.Button.LongPressMs <= c.Button.DebounceMs {
		return fmt.Errorf("button.long_press_ms must be > button.debounce_ms")
	}

	if c.Radio.MaxPayload <= 0 {
		return fmt.Errorf("radio.max_payload must be > 0")
	}
	if c.Radio.BackoffBaseMs <= 0 || c.Radio.BackoffMaxMs < c.Radio.BackoffBaseMs {
		return fmt.Errorf("radio backoff must satisfy 0 < base <= max")
	}

	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir must not be empty")
	}

	if c.Bridge.Port != "" && c.Bridge.Baud <= 0 {
		return fmt.Errorf("bridge.baud must be > 0 when bridge.port is set")
	}

	if c.OTA.RepoURL != "" && !strings.Contains(c.OTA.RepoURL, "://") {
		return fmt.Errorf("ota.repo_url must be a full URL, got %q", c.OTA.RepoURL)
	}

	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
