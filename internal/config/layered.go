package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/perfprobe/internal/constants"
	"github.com/coral-mesh/perfprobe/internal/safe"
)

// Layer represents a configuration layer source.
type Layer string

const (
	// LayerDefaults represents default configuration values.
	LayerDefaults Layer = "defaults"

	// LayerFile represents configuration from a file.
	LayerFile Layer = "file"

	// LayerDotEnv represents variables from a .env file.
	LayerDotEnv Layer = "dotenv"

	// LayerEnv represents configuration from environment variables.
	LayerEnv Layer = "env"

	// LayerFlags represents configuration from command-line flags.
	LayerFlags Layer = "flags"
)

// FlagsFunc applies command-line overrides to a loaded config.
type FlagsFunc func(cfg *Config) error

// LayeredLoader provides layered configuration loading.
// Configuration is loaded in the following order:
// 1. Defaults - hardcoded default values
// 2. File - configuration file (YAML)
// 3. DotEnv - variables from a .env file
// 4. Environment - environment variables
// 5. Flags - command-line flags
//
// Each layer overrides values from previous layers. The .env file never
// overrides a variable that is set in the real environment.
type LayeredLoader struct {
	enabledLayers map[Layer]bool
	envFile       string
	flags         FlagsFunc
}

// NewLayeredLoader creates a new layered configuration loader.
// By default, all layers except flags are enabled.
func NewLayeredLoader() *LayeredLoader {
	return &LayeredLoader{
		enabledLayers: map[Layer]bool{
			LayerDefaults: true,
			LayerFile:     true,
			LayerDotEnv:   true,
			LayerEnv:      true,
			LayerFlags:    false,
		},
		envFile: constants.DefaultEnvFile,
	}
}

// EnableLayer enables a specific configuration layer.
func (l *LayeredLoader) EnableLayer(layer Layer) {
	l.enabledLayers[layer] = true
}

// DisableLayer disables a specific configuration layer.
func (l *LayeredLoader) DisableLayer(layer Layer) {
	l.enabledLayers[layer] = false
}

// WithEnvFile sets the .env file path read by the dotenv layer.
func (l *LayeredLoader) WithEnvFile(path string) *LayeredLoader {
	l.envFile = path
	return l
}

// WithFlags sets and enables the flags layer.
func (l *LayeredLoader) WithFlags(fn FlagsFunc) *LayeredLoader {
	l.flags = fn
	l.enabledLayers[LayerFlags] = fn != nil
	return l
}

// Load loads the configuration with layered precedence and validates it.
// A missing config file or .env file is not an error.
func (l *LayeredLoader) Load(configPath string) (*Config, error) {
	var cfg *Config

	// Layer 1: Defaults
	if l.enabledLayers[LayerDefaults] {
		cfg = DefaultConfig()
	} else {
		cfg = &Config{}
	}

	// Layer 2: File
	if l.enabledLayers[LayerFile] && configPath != "" {
		if err := l.mergeFromFile(cfg, configPath); err != nil {
			// If file doesn't exist, it's not an error - just skip this layer
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		}
	}

	// Layers 3 and 4: .env then environment.
	var sources []LookupFunc
	if l.enabledLayers[LayerEnv] {
		sources = append(sources, os.LookupEnv)
	}
	if l.enabledLayers[LayerDotEnv] && l.envFile != "" {
		vars, err := readDotEnv(l.envFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", l.envFile, err)
		}
		sources = append(sources, MapLookup(vars))
	}
	if len(sources) > 0 {
		if err := LoadFromLookup(cfg, ChainLookup(sources...)); err != nil {
			return nil, fmt.Errorf("failed to load config from environment: %w", err)
		}
	}

	// Layer 5: Flags
	if l.enabledLayers[LayerFlags] && l.flags != nil {
		if err := l.flags(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply flags: %w", err)
		}
	}

	cfg.Store.Path = ExpandHome(cfg.Store.Path)

	if err := l.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeFromFile loads configuration from a YAML file and merges it into cfg.
func (l *LayeredLoader) mergeFromFile(cfg *Config, filePath string) error {
	data, err := safe.ReadFile(ExpandHome(filePath), &safe.ReadOptions{AllowSymlinks: true})
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// readDotEnv reads a .env file. A missing file yields no variables.
func readDotEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return vars, nil
}

// ValidateConfig validates a configuration and returns detailed errors.
func (l *LayeredLoader) ValidateConfig(cfg Validator) error {
	return cfg.Validate()
}
