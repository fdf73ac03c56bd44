// Package configuration implements the go-config contract on top of viper.
package configuration

import (
	"fmt"
	"strings"
	"sync"

	"github.com/MichaelAJay/go-config"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/MichaelAJay/go-login-security/errors"
)

// DefaultEnvPrefix is the environment prefix for overrides:
// LOGIN_SECURITY_SECURITY_ANALYSIS_HISTORY_DAYS overrides security_analysis.history_days.
const DefaultEnvPrefix = "LOGIN_SECURITY"

// Options configures a ViperConfig.
type Options struct {
	// File is an optional YAML, JSON or TOML settings file
	File string

	// EnvPrefix defaults to DefaultEnvPrefix
	EnvPrefix string

	Defaults map[string]any

	// Required keys are checked by Validate
	Required []string
}

// ViperConfig implements config.Config. Lookups are type-strict: a value that
// cannot be converted to the requested type reports not found.
type ViperConfig struct {
	mu       sync.RWMutex
	v        *viper.Viper
	required []string
}

// NewViperConfig loads opts.File (when set) and binds environment overrides.
func NewViperConfig(opts Options) (*ViperConfig, error) {
	v := viper.New()

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range opts.Defaults {
		v.SetDefault(key, value)
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigurationError("settings_file", fmt.Sprintf("failed to read %s: %v", opts.File, err))
		}
	}

	return &ViperConfig{v: v, required: opts.Required}, nil
}

// Get retrieves a configuration value by key
func (c *ViperConfig) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.v.IsSet(key) {
		return nil, false
	}
	return c.v.Get(key), true
}

// GetString retrieves a string configuration value
func (c *ViperConfig) GetString(key string) (string, bool) {
	value, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return "", false
	}
	return s, true
}

// GetInt retrieves an integer configuration value
func (c *ViperConfig) GetInt(key string) (int, bool) {
	value, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	i, err := cast.ToIntE(value)
	if err != nil {
		return 0, false
	}
	return i, true
}

// GetBool retrieves a boolean configuration value
func (c *ViperConfig) GetBool(key string) (bool, bool) {
	value, ok := c.Get(key)
	if !ok {
		return false, false
	}
	b, err := cast.ToBoolE(value)
	if err != nil {
		return false, false
	}
	return b, true
}

// GetFloat retrieves a float configuration value
func (c *ViperConfig) GetFloat(key string) (float64, bool) {
	value, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, false
	}
	return f, true
}

// GetStringSlice retrieves a string slice configuration value. Comma
// separated strings, as set through the environment, are split.
func (c *ViperConfig) GetStringSlice(key string) ([]string, bool) {
	value, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	if s, isString := value.(string); isString {
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, true
	}
	ss, err := cast.ToStringSliceE(value)
	if err != nil {
		return nil, false
	}
	return ss, true
}

// Set overrides a configuration value
func (c *ViperConfig) Set(key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return errors.NewConfigurationError("key", "must not be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.Set(key, value)
	return nil
}

// Load merges the values of source over the current configuration
func (c *ViperConfig) Load(source config.Source) error {
	values, err := source.Load()
	if err != nil {
		return errors.NewConfigurationError("source", err.Error())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v.MergeConfigMap(values)
}

// Validate checks that every required key is set
func (c *ViperConfig) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, key := range c.required {
		if !c.v.IsSet(key) {
			return errors.NewConfigurationError(key, "required setting is missing")
		}
	}
	return nil
}

// MapSource is a config.Source over an in-memory map.
type MapSource map[string]any

// Load returns the map.
func (s MapSource) Load() (map[string]any, error) {
	return s, nil
}
