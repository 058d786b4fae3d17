// Package config handles configuration loading, validation, and management for xhisper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"xhisper/internal/ipc"
	"xhisper/internal/sequencer"
	"xhisper/internal/vkbd"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete owner and client configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Channel configuration for the command socket.
	Channel ChannelConfig `toml:"channel" json:"channel" yaml:"channel"`

	// Device configuration for the virtual keyboard.
	Device DeviceConfig `toml:"device" json:"device" yaml:"device"`

	// Timing configuration for key event sequencing.
	Timing TimingConfig `toml:"timing" json:"timing" yaml:"timing"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// ChannelConfig holds command channel configuration.
type ChannelConfig struct {
	// Name is the abstract socket name, without the leading '@'.
	Name string `toml:"name" json:"name" yaml:"name"`
}

// DeviceConfig holds virtual keyboard configuration.
type DeviceConfig struct {
	// Path is the input emulation interface.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Name is the device name other processes see.
	Name string `toml:"name" json:"name" yaml:"name"`

	// Vendor and Product are the USB identifiers reported for the device.
	Vendor  int `toml:"vendor" json:"vendor" yaml:"vendor"`
	Product int `toml:"product" json:"product" yaml:"product"`

	// SettleMs is the wait after activation before the first event.
	SettleMs int `toml:"settle_ms" json:"settle_ms" yaml:"settle_ms"`
}

// TimingConfig holds the delays between key transitions, in milliseconds.
// These are the only settings applied without a restart.
type TimingConfig struct {
	ShiftSettleMs    int `toml:"shift_settle_ms" json:"shift_settle_ms" yaml:"shift_settle_ms"`
	KeyHoldMs        int `toml:"key_hold_ms" json:"key_hold_ms" yaml:"key_hold_ms"`
	ReleaseSettleMs  int `toml:"release_settle_ms" json:"release_settle_ms" yaml:"release_settle_ms"`
	ModifierSettleMs int `toml:"modifier_settle_ms" json:"modifier_settle_ms" yaml:"modifier_settle_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log destination: stdout, stderr, file, or both.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output is file or both.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum size of a log file before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is how long rotated files are kept.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns a configuration with the stock device identity,
// channel name and timing.
func DefaultConfig() *Config {
	dev := vkbd.DefaultOptions()
	timing := sequencer.DefaultTiming()

	return &Config{
		Version: Version,
		Channel: ChannelConfig{
			Name: ipc.DefaultName,
		},
		Device: DeviceConfig{
			Path:     dev.Path,
			Name:     dev.Name,
			Vendor:   int(dev.Vendor),
			Product:  int(dev.Product),
			SettleMs: int(dev.Settle / time.Millisecond),
		},
		Timing: TimingConfig{
			ShiftSettleMs:    int(timing.ShiftSettle / time.Millisecond),
			KeyHoldMs:        int(timing.KeyHold / time.Millisecond),
			ReleaseSettleMs:  int(timing.ReleaseSettle / time.Millisecond),
			ModifierSettleMs: int(timing.ModifierSettle / time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformStateDir(), "xhispertoold.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// ConfigPath returns the configuration file path: $XHISPER_CONFIG when set,
// otherwise the config file found in the platform config directory, or
// config.toml there when none exists yet.
func ConfigPath() string {
	if v := os.Getenv("XHISPER_CONFIG"); v != "" {
		return v
	}
	dir := PlatformConfigDir()
	if path := FindConfigFile(dir); path != "" {
		return path
	}
	return filepath.Join(dir, "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	// Apply environment variable overrides
	cfg.ApplyEnvOverrides()

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with XHISPER_.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("XHISPER_SOCKET_NAME"); v != "" {
		c.Channel.Name = v
	}
	if v := os.Getenv("XHISPER_UINPUT_PATH"); v != "" {
		c.Device.Path = v
	}
	if v := os.Getenv("XHISPER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("XHISPER_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Version: c.Version,
		Channel: c.Channel,
		Device:  c.Device,
		Timing:  c.Timing,
		Logging: c.Logging,
	}
}

// SequencerTiming converts the timing section to sequencer delays.
func (c *Config) SequencerTiming() sequencer.Timing {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return sequencer.Timing{
		ShiftSettle:    ms(c.Timing.ShiftSettleMs),
		KeyHold:        ms(c.Timing.KeyHoldMs),
		ReleaseSettle:  ms(c.Timing.ReleaseSettleMs),
		ModifierSettle: ms(c.Timing.ModifierSettleMs),
	}
}

// DeviceOptions converts the device section to virtual keyboard options.
func (c *Config) DeviceOptions() vkbd.Options {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return vkbd.Options{
		Path:    c.Device.Path,
		Name:    c.Device.Name,
		Vendor:  uint16(c.Device.Vendor),
		Product: uint16(c.Device.Product),
		Settle:  ms(c.Device.SettleMs),
	}
}

// ChannelName returns the command channel name.
func (c *Config) ChannelName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Channel.Name
}

// RestartRequired reports the sections whose changes only take effect after
// the owner restarts.
func RestartRequired(old, new *Config) []string {
	var changed []string
	if old.Channel != new.Channel {
		changed = append(changed, "channel")
	}
	if old.Device != new.Device {
		changed = append(changed, "device")
	}
	if old.Logging != new.Logging {
		changed = append(changed, "logging")
	}
	return changed
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	data, err := encodeToTOML(c.Clone())
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
