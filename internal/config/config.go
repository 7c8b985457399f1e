// Package config loads the relay-lights daemon configuration.
//
// Values are layered: built-in defaults, then the YAML file (if a path is
// given), then RELAYLIGHTS_* environment overrides. The result is
// validated before use.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/relay-lights/internal/device"
	"github.com/sweeney/relay-lights/internal/gpio"
	"github.com/sweeney/relay-lights/internal/light"
	"github.com/sweeney/relay-lights/internal/mqtt"
	"github.com/sweeney/relay-lights/internal/serial"
	"github.com/sweeney/relay-lights/internal/storage"
)

// Environment overrides.
const (
	EnvStoragePath = "RELAYLIGHTS_STORAGE_PATH"
	EnvSerialPort  = "RELAYLIGHTS_SERIAL_PORT"
	EnvMQTTBroker  = "RELAYLIGHTS_MQTT_BROKER"
	EnvLogLevel    = "RELAYLIGHTS_LOG_LEVEL"
)

// Config is the daemon configuration.
type Config struct {
	GPIO      GPIOConfig    `yaml:"gpio"`
	Storage   StorageConfig `yaml:"storage"`
	Serial    SerialConfig  `yaml:"serial"`
	MQTT      MQTTConfig    `yaml:"mqtt"`
	Timing    TimingConfig  `yaml:"timing"`
	Light     LightConfig   `yaml:"light"`
	Logging   LoggingConfig `yaml:"logging"`
	Heartbeat int           `yaml:"heartbeat_seconds"` // 0 disables
}

// GPIOConfig selects the GPIO chip and maps board pins to line offsets.
type GPIOConfig struct {
	Chip string `yaml:"chip"`
	// Lines maps board pin names ("D2", "A0") to chip line offsets. Pins
	// not listed use their own number.
	Lines map[string]int `yaml:"lines"`
}

// StorageConfig locates the persistent store.
type StorageConfig struct {
	Path string `yaml:"path"` // empty keeps state in memory only
	Size int    `yaml:"size"`
}

// SerialConfig configures the serial command channel.
type SerialConfig struct {
	Port string `yaml:"port"` // empty disables
	Baud int    `yaml:"baud"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // empty disables
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// TimingConfig holds the cycle and button timings in milliseconds.
type TimingConfig struct {
	CycleMs            int `yaml:"cycle_ms"`
	SampleMs           int `yaml:"sample_ms"`
	ClassifyMs         int `yaml:"classify_ms"`
	DoubleClickMs      int `yaml:"double_click_ms"`
	FirstEdgeTimeoutMs int `yaml:"first_edge_timeout_ms"` // 0 waits indefinitely
}

// LightConfig tunes the adaptive timeout.
type LightConfig struct {
	CooldownSeconds   int `yaml:"cooldown_seconds"`
	MinTimeoutMinutes int `yaml:"min_timeout_minutes"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Load reads the configuration at path. An empty path uses defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	settings := light.DefaultSettings()
	return &Config{
		GPIO: GPIOConfig{Chip: gpio.DefaultChip},
		Storage: StorageConfig{
			Path: "/var/lib/relay-lights/state.db",
			Size: storage.DefaultSize,
		},
		Serial: SerialConfig{Baud: serial.DefaultBaud},
		MQTT: MQTTConfig{
			ClientID:    mqtt.DefaultClientID,
			TopicPrefix: mqtt.DefaultTopicPrefix,
		},
		Timing: TimingConfig{
			CycleMs:       10,
			SampleMs:      5,
			ClassifyMs:    300,
			DoubleClickMs: int(settings.DoubleClickWindow / time.Millisecond),
		},
		Light: LightConfig{
			CooldownSeconds:   int(settings.Cooldown / time.Second),
			MinTimeoutMinutes: settings.MinTimeoutMinutes,
		},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		Heartbeat: 900,
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvStoragePath); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv(EnvSerialPort); v != "" {
		cfg.Serial.Port = v
	}
	if v := os.Getenv(EnvMQTTBroker); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.GPIO.Chip == "" {
		errs = append(errs, "gpio.chip is required")
	}
	if _, err := c.PinTable(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Storage.Size < storage.NewLayout(device.MaxButtons, device.MaxRelays).Size() {
		errs = append(errs, "storage.size is too small for the record layout")
	}
	if c.Serial.Port != "" && c.Serial.Baud <= 0 {
		errs = append(errs, "serial.baud must be positive")
	}

	if c.Timing.CycleMs <= 0 {
		errs = append(errs, "timing.cycle_ms must be positive")
	}
	if c.Timing.SampleMs <= 0 {
		errs = append(errs, "timing.sample_ms must be positive")
	}
	if c.Timing.ClassifyMs <= 0 {
		errs = append(errs, "timing.classify_ms must be positive")
	}
	if c.Timing.DoubleClickMs <= 0 {
		errs = append(errs, "timing.double_click_ms must be positive")
	}
	if c.Timing.FirstEdgeTimeoutMs < 0 {
		errs = append(errs, "timing.first_edge_timeout_ms must not be negative")
	}

	if c.Light.CooldownSeconds < 0 || c.Light.CooldownSeconds > 0xFFFF {
		errs = append(errs, "light.cooldown_seconds must be between 0 and 65535")
	}
	if c.Light.MinTimeoutMinutes < 1 {
		errs = append(errs, "light.min_timeout_minutes must be at least 1")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "logging.level must be debug, info, warn or error")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, "logging.format must be json or console")
	}

	if c.Heartbeat < 0 {
		errs = append(errs, "heartbeat_seconds must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// PinTable returns the board pin to line offset map.
func (c *Config) PinTable() (map[device.Pin]int, error) {
	table := make(map[device.Pin]int, len(c.GPIO.Lines))
	for name, offset := range c.GPIO.Lines {
		pin, err := device.ParsePin(name)
		if err != nil {
			return nil, fmt.Errorf("gpio.lines: %w", err)
		}
		if offset < 0 {
			return nil, fmt.Errorf("gpio.lines: %s has negative offset %d", name, offset)
		}
		table[pin] = offset
	}
	return table, nil
}

// LightSettings returns the light controller settings.
func (c *Config) LightSettings() light.Settings {
	s := light.DefaultSettings()
	s.DoubleClickWindow = c.DoubleClickWindow()
	s.Cooldown = time.Duration(c.Light.CooldownSeconds) * time.Second
	s.MinTimeoutMinutes = c.Light.MinTimeoutMinutes
	return s
}

// CycleInterval returns the main cycle period.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Timing.CycleMs) * time.Millisecond
}

// SampleWindow returns the debounce window.
func (c *Config) SampleWindow() time.Duration {
	return time.Duration(c.Timing.SampleMs) * time.Millisecond
}

// ClassifyWindow returns the momentary detection window.
func (c *Config) ClassifyWindow() time.Duration {
	return time.Duration(c.Timing.ClassifyMs) * time.Millisecond
}

// DoubleClickWindow returns the double actuation window.
func (c *Config) DoubleClickWindow() time.Duration {
	return time.Duration(c.Timing.DoubleClickMs) * time.Millisecond
}

// FirstEdgeTimeout returns how long classification waits for a press.
func (c *Config) FirstEdgeTimeout() time.Duration {
	return time.Duration(c.Timing.FirstEdgeTimeoutMs) * time.Millisecond
}

// HeartbeatInterval returns the heartbeat period, 0 if disabled.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat) * time.Second
}
