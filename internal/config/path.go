// Package config loads typed settings from viper and resolves file paths.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// appDir is the directory name used under the user's config and data homes.
const appDir = "spice"

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}

// ConfigDir returns $HOME/.config/spice, or a relative .spice if the home directory is unknown.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + appDir
	}
	return filepath.Join(home, ".config", appDir)
}

// DefaultDatabasePath returns the database location used when database.path is unset.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("."+appDir, "spice.db")
	}
	return filepath.Join(home, ".local", "share", appDir, "spice.db")
}
