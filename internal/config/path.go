// Package config resolves settings from files, environment and flags.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading ~ and $VAR references. Paths that cannot be
// expanded are returned unchanged.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}

// DefaultConfigDir is where the config file is looked up after --config.
func DefaultConfigDir() string {
	return ExpandPath("~/.config/inspect")
}
