package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".pdnstool"

// ProviderConfig holds the settings of one provider section.
//
// Timeout and Rate are understood by every provider. All other keys
// (apikey, url, username, ...) are collected in Settings and interpreted
// by the provider itself.
type ProviderConfig struct {
	// Timeout overrides the global lookup timeout for this provider.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Rate limits requests to this provider, in requests per minute.
	// Zero means unlimited.
	Rate float64 `yaml:"rate,omitempty"`

	// Settings holds the provider specific keys, lowercased.
	Settings map[string]string `yaml:",inline"`
}

// Get returns the setting stored under key, case-insensitively.
func (p ProviderConfig) Get(key string) string {
	return p.Settings[strings.ToLower(key)]
}

// File represents the structure of the .pdnstool configuration file.
//
//	defaults:
//	  timeout: 120s
//	providers:
//	  dnsdb:
//	    apikey: "0123..."
//	    rate: 10
type File struct {
	// Defaults apply to every provider unless the section overrides them.
	Defaults ProviderConfig `yaml:"defaults,omitempty"`

	// Providers maps config section keys to provider settings.
	Providers map[string]ProviderConfig `yaml:"providers,omitempty"`
}

// NewFile returns an empty provider file.
func NewFile() *File {
	return &File{Providers: make(map[string]ProviderConfig)}
}

// Provider returns the settings for section merged over the defaults.
func (f *File) Provider(section string) ProviderConfig {
	result := ProviderConfig{
		Timeout:  f.Defaults.Timeout,
		Rate:     f.Defaults.Rate,
		Settings: make(map[string]string, len(f.Defaults.Settings)),
	}
	for k, v := range f.Defaults.Settings {
		result.Settings[k] = v
	}

	pc, ok := f.Providers[strings.ToLower(section)]
	if !ok {
		return result
	}
	if pc.Timeout > 0 {
		result.Timeout = pc.Timeout
	}
	if pc.Rate > 0 {
		result.Rate = pc.Rate
	}
	for k, v := range pc.Settings {
		result.Settings[k] = v
	}
	return result
}

// LoadConfigFile loads provider settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var raw File
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	cf := NewFile()
	cf.Defaults = lowerKeys(raw.Defaults)
	for section, pc := range raw.Providers {
		cf.Providers[strings.ToLower(section)] = lowerKeys(pc)
	}
	return cf, nil
}

func lowerKeys(pc ProviderConfig) ProviderConfig {
	settings := make(map[string]string, len(pc.Settings))
	for k, v := range pc.Settings {
		settings[strings.ToLower(k)] = v
	}
	pc.Settings = settings
	return pc
}

// FindConfigFile searches for the configuration file in the following order:
//  1. If configPath is specified, use it directly
//  2. .pdnstool in the current directory
//  3. .pdnstool in the user's home directory
//  4. config.yaml in the XDG config directory
//
// Returns the path to the configuration file, or an empty string if none exists.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
