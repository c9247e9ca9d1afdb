package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".replywatch.yml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads configuration from a YAML file, layered over
// the defaults: keys absent from the file keep their NewConfig values,
// so a file only needs to name the settings it changes.
// If the file does not exist, it returns ErrConfigNotFound. Callers
// should handle this error based on whether the config file path was
// explicitly specified by the user.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.ConfigFilePath = path

	return cfg, nil
}

// UnmarshalYAML decodes the configuration mapping, parsing duration
// fields from Go duration strings ("90s", "5m"). yaml.v3 cannot decode
// a string scalar into time.Duration on its own, so the duration keys
// are parsed here and stripped from the node before the remaining
// fields decode normally.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain Config

	if value.Kind != yaml.MappingNode {
		return value.Decode((*plain)(c))
	}

	durations := map[string]*time.Duration{
		"watch_interval": &c.WatchInterval,
		"render_wait":    &c.RenderWait,
		"fetch_timeout":  &c.FetchTimeout,
	}

	rest := make([]*yaml.Node, 0, len(value.Content))
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		dst, ok := durations[key.Value]
		if !ok {
			rest = append(rest, key, val)
			continue
		}
		// A key with no value keeps the default.
		if val.Tag == "!!null" {
			continue
		}
		d, err := time.ParseDuration(val.Value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key.Value, err)
		}
		*dst = d
	}
	value.Content = rest

	return value.Decode((*plain)(c))
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .replywatch.yml in the current directory
// 3. Look for .replywatch.yml in the user's home directory
// 4. Look for config.yml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	// If explicit path is provided, use it
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	// Check current directory
	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	// Check home directory
	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	// Check XDG config directory
	xdgConfig := filepath.Join(XDGConfigDir(), "config.yml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}
