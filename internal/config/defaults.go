package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - Linux:   $XDG_CONFIG_HOME/xhisper/ or ~/.config/xhisper/
//   - macOS:   ~/Library/Application Support/xhisper/
//   - Windows: %APPDATA%\xhisper\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", "xhisper")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "xhisper")
		}
		return filepath.Join(homeDir(), "AppData", "Roaming", "xhisper")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "xhisper")
		}
		return filepath.Join(homeDir(), ".config", "xhisper")
	}
}

// PlatformStateDir returns the directory for log files and crash reports.
//
// Platform paths:
//   - Linux:   $XDG_STATE_HOME/xhisper/ or ~/.local/state/xhisper/
//   - macOS:   ~/Library/Logs/xhisper/
//   - Windows: %LOCALAPPDATA%\xhisper\
func PlatformStateDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Logs", "xhisper")
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "xhisper")
		}
		return filepath.Join(homeDir(), "AppData", "Local", "xhisper")
	default:
		if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
			return filepath.Join(xdgState, "xhisper")
		}
		return filepath.Join(homeDir(), ".local", "state", "xhisper")
	}
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	home, _ := os.UserHomeDir()
	return home
}

// configFormats lists the config file extensions in order of preference.
var configFormats = []string{"toml", "json", "yaml", "yml"}

// FindConfigFile returns the first config.<ext> present in dir, trying the
// extensions in configFormats order, or "" if there is none.
func FindConfigFile(dir string) string {
	for _, ext := range configFormats {
		path := filepath.Join(dir, "config."+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
