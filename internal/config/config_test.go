package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhisper/internal/sequencer"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"XHISPER_CONFIG", "XHISPER_SOCKET_NAME", "XHISPER_UINPUT_PATH",
		"XHISPER_LOG_LEVEL", "XHISPER_LOG_PATH",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, Version, cfg.Version)
	assert.Equal(t, "xhisper_socket", cfg.Channel.Name)
	assert.Equal(t, "/dev/uinput", cfg.Device.Path)
	assert.Equal(t, "xhisper", cfg.Device.Name)
	assert.Equal(t, 0x1234, cfg.Device.Vendor)
	assert.Equal(t, 0x5678, cfg.Device.Product)
	assert.Equal(t, 100, cfg.Device.SettleMs)
	assert.Less(t, cfg.Timing.ShiftSettleMs, cfg.Timing.KeyHoldMs)
	assert.Equal(t, sequencer.DefaultTiming(), cfg.SequencerTiming())
}

func TestConfigPath(t *testing.T) {
	clearEnv(t)

	t.Run("env override", func(t *testing.T) {
		t.Setenv("XHISPER_CONFIG", "/etc/xhisper.toml")
		assert.Equal(t, "/etc/xhisper.toml", ConfigPath())
	})

	t.Run("xdg", func(t *testing.T) {
		if runtime.GOOS != "linux" {
			t.Skip("XDG layout is linux only")
		}
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		assert.Equal(t, "/tmp/xdg/xhisper/config.toml", ConfigPath())
	})
}

func TestConfigPathDiscovery(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout is linux only")
	}
	clearEnv(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dir := filepath.Join(xdg, "xhisper")
	require.NoError(t, os.MkdirAll(dir, 0700))

	assert.Equal(t, filepath.Join(dir, "config.toml"), ConfigPath(), "falls back to toml")
	assert.Empty(t, FindConfigFile(dir))

	yamlPath := writeFile(t, dir, "config.yaml", "channel:\n  name: from_yaml\n")
	assert.Equal(t, yamlPath, ConfigPath())

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, "from_yaml", cfg.Channel.Name)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "from_yaml", cfg.Channel.Name)

	jsonPath := writeFile(t, dir, "config.json", `{"channel": {"name": "from_json"}}`)
	assert.Equal(t, jsonPath, ConfigPath(), "json is preferred over yaml")

	tomlPath := writeFile(t, dir, "config.toml", "[channel]\nname = \"from_toml\"\n")
	assert.Equal(t, tomlPath, ConfigPath(), "toml is preferred over everything")
}

func TestLoadNonexistent(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Timing, cfg.Timing)
}

func TestLoadFormats(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "config.toml", "[timing]\nkey_hold_ms = 12\n[channel]\nname = \"alt_socket\"\n"},
		{"json", "config.json", `{"timing": {"key_hold_ms": 12}, "channel": {"name": "alt_socket"}}`},
		{"yaml", "config.yaml", "timing:\n  key_hold_ms: 12\nchannel:\n  name: alt_socket\n"},
		{"yml", "config.yml", "timing:\n  key_hold_ms: 12\nchannel:\n  name: alt_socket\n"},
		{"autodetect toml", "xhisperrc", "[timing]\nkey_hold_ms = 12\n[channel]\nname = \"alt_socket\"\n"},
		{"autodetect json", "xhisper.conf", `{"timing": {"key_hold_ms": 12}, "channel": {"name": "alt_socket"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, 12, cfg.Timing.KeyHoldMs)
			assert.Equal(t, "alt_socket", cfg.Channel.Name)

			// Unset fields keep their defaults.
			assert.Equal(t, 2, cfg.Timing.ShiftSettleMs)
			assert.Equal(t, "/dev/uinput", cfg.Device.Path)
			require.NoError(t, cfg.Validate())
		})
	}
}

func TestLoadHexIdentifiers(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "config.toml", "[device]\nvendor = 0xbeef\nproduct = 0x0001\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	opts := cfg.DeviceOptions()
	assert.Equal(t, uint16(0xbeef), opts.Vendor)
	assert.Equal(t, uint16(0x0001), opts.Product)
	assert.Equal(t, 100*time.Millisecond, opts.Settle)
}

func TestLoadMalformed(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(writeFile(t, dir, "config.toml", "[timing\nkey_hold_ms = "))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "config.json", "{"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "garbage", "{ [ \"unterminated"))
	assert.Error(t, err)
}

func TestLoadExpandsHome(t *testing.T) {
	clearEnv(t)
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	path := writeFile(t, t.TempDir(), "config.toml", "[logging]\nfile_path = \"~/x.log\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x.log"), cfg.Logging.FilePath)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("XHISPER_SOCKET_NAME", "env_socket")
	t.Setenv("XHISPER_UINPUT_PATH", "/dev/null")
	t.Setenv("XHISPER_LOG_LEVEL", "debug")
	t.Setenv("XHISPER_LOG_PATH", "/tmp/x.log")

	path := writeFile(t, t.TempDir(), "config.toml", "[channel]\nname = \"file_socket\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env_socket", cfg.ChannelName())
	assert.Equal(t, "/dev/null", cfg.Device.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/x.log", cfg.Logging.FilePath)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Version = 99
	cfg.Channel.Name = "@xhisper_socket"
	cfg.Device.Name = ""
	cfg.Device.Vendor = 0x10000
	cfg.Timing.KeyHoldMs = -1
	cfg.Timing.ModifierSettleMs = 5000
	cfg.Logging.Level = "verbose"
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.ElementsMatch(t, []string{
		"version",
		"channel.name",
		"device.name",
		"device.vendor",
		"timing.key_hold_ms",
		"timing.modifier_settle_ms",
		"logging.level",
		"logging.file_path",
	}, verrs.Fields())
}

func TestValidateChannelName(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"default", "xhisper_socket", true},
		{"empty", "", false},
		{"leading at", "@x", false},
		{"too long", strings.Repeat("a", 108), false},
		{"max length", strings.Repeat("a", 107), true},
		{"nul", "a\x00b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Channel.Name = tt.value
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Timing.KeyHoldMs = 15
	cfg.Device.Vendor = 0xabcd
	cfg.Logging.Compress = false

	for _, name := range []string{"config.toml", "config.json", "config.yaml", "nested/dir/config"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, SaveConfig(cfg, path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			if runtime.GOOS != "windows" {
				assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
			}

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Timing, loaded.Timing)
			assert.Equal(t, cfg.Device, loaded.Device)
			assert.Equal(t, cfg.Logging, loaded.Logging)
		})
	}
}

func TestSaveConfigWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveConfig(DefaultConfig(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# xhisper configuration")
}

func TestRestartRequired(t *testing.T) {
	old := DefaultConfig()

	timingOnly := old.Clone()
	timingOnly.Timing.KeyHoldMs = 20
	assert.Empty(t, RestartRequired(old, timingOnly))

	both := old.Clone()
	both.Channel.Name = "other"
	both.Device.SettleMs = 0
	assert.Equal(t, []string{"channel", "device"}, RestartRequired(old, both))
}

func TestExampleConfig(t *testing.T) {
	clearEnv(t)
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	example := filepath.Join(filepath.Dir(file), "..", "..", "configs", "xhisper.example.toml")

	cfg, err := NewLoader(example).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Timing, cfg.Timing)
	assert.Equal(t, DefaultConfig().Device.Vendor, cfg.Device.Vendor)
}

func TestLoaderRejectsInvalid(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "config.toml", "[timing]\nkey_hold_ms = 99999\n")

	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoaderWatchReload(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "config.toml", "[timing]\nkey_hold_ms = 8\n")

	l := NewLoader(path)
	_, err := l.Load()
	require.NoError(t, err)

	changes := make(chan [2]int, 4)
	l.OnChange(func(old, new *Config) {
		changes <- [2]int{old.Timing.KeyHoldMs, new.Timing.KeyHoldMs}
	})
	require.NoError(t, l.Watch())
	defer l.Close()

	require.NoError(t, os.WriteFile(path, []byte("[timing]\nkey_hold_ms = 11\n"), 0o600))

	select {
	case c := <-changes:
		assert.Equal(t, [2]int{8, 11}, c)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}
	assert.Equal(t, 11, l.Config().Timing.KeyHoldMs)
}

func TestLoaderWatchKeepsConfigOnBadReload(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "config.toml", "[timing]\nkey_hold_ms = 8\n")

	l := NewLoader(path)
	_, err := l.Load()
	require.NoError(t, err)

	called := make(chan struct{}, 1)
	l.OnChange(func(_, _ *Config) { called <- struct{}{} })
	require.NoError(t, l.Watch())
	defer l.Close()

	require.NoError(t, os.WriteFile(path, []byte("[timing]\nkey_hold_ms = -4\n"), 0o600))

	select {
	case err := <-l.Errors():
		assert.ErrorIs(t, err, ErrInvalidConfig)
	case <-time.After(3 * time.Second):
		t.Fatal("no error after invalid write")
	}
	assert.Empty(t, called)
	assert.Equal(t, 8, l.Config().Timing.KeyHoldMs)
}

func TestLoaderCloseWithoutWatch(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "config.toml"))
	assert.NoError(t, l.Close())
}
