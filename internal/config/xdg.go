package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// ConfigDir returns the XDG-compliant config directory for gitvault
// Typically ~/.config/gitvault/ on Linux
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "gitvault")
}

// ConfigPath returns the full path to the config file
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json5")
}

// CacheDir returns the XDG-compliant cache directory for gitvault
// Typically ~/.cache/gitvault/ on Linux (session cache lives here)
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "gitvault")
}

// DataDir returns the XDG-compliant data directory for gitvault
// Typically ~/.local/share/gitvault/ on Linux (encrypted credential cache)
func DataDir() string {
	return filepath.Join(xdg.DataHome, "gitvault")
}
