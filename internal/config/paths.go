package config

import (
	"os"
	"path/filepath"

	"github.com/rescale/dlxt/internal/constants"
)

// ConfigDirectory returns the per-user configuration directory.
//
// Locations:
//   - $XDG_CONFIG_HOME/dlxt when XDG_CONFIG_HOME is set
//   - os.UserConfigDir()/dlxt otherwise (%AppData%\dlxt on Windows)
//   - ~/.config/dlxt as a last resort
func ConfigDirectory() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, constants.AppName)
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), constants.AppName)
		}
		return filepath.Join(homeDir, ".config", constants.AppName)
	}
	return filepath.Join(configDir, constants.AppName)
}

// DefaultConfigPath returns the config file used when --config is not given.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDirectory(), "config.yaml")
}
