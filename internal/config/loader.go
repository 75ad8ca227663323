// Package config provides configuration loading and management.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/coral-mesh/perfprobe/internal/constants"
)

// ConfigEnvVar overrides the config file location.
const ConfigEnvVar = constants.EnvPrefix + "CONFIG"

// fallbackHome is used in minimal containers without a home directory.
const fallbackHome = "/tmp/perfprobe-fallback"

// HomeDir returns the user home directory, or a fallback when none exists.
func HomeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	return fallbackHome
}

// DefaultConfigPath returns ~/.perfprobe/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), constants.DefaultDir, constants.ConfigFile)
}

// ResolveConfigPath picks the config file: the flag value, then $PERFPROBE_CONFIG,
// then the default path.
func ResolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return ExpandHome(flagValue)
	}
	if env := os.Getenv(ConfigEnvVar); env != "" {
		return ExpandHome(env)
	}
	return DefaultConfigPath()
}

// ExpandHome replaces a leading "~" with the user home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(HomeDir(), path[2:])
	}
	return path
}
