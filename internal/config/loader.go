package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// Loader handles loading configuration from files.
type Loader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperLoader implements Loader using Viper.
type viperLoader struct {
	validator Validator
}

// NewLoader creates a Loader backed by the given validator.
func NewLoader(validator Validator) Loader {
	return &viperLoader{validator: validator}
}

// Load reads configuration from the given YAML file. Defaults fill in
// anything the file leaves out, and ${VAR} references in string values
// are interpolated from the environment.
func (l *viperLoader) Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read config file", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to unmarshal config", err)
	}

	interpolate(&cfg)

	if err := l.validator.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWithDefaults behaves like Load, but a missing file yields the
// default configuration instead of an error.
func (l *viperLoader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := l.validator.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return l.Load(path)
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("core.home_dir", defaults.Core.HomeDir)
	v.SetDefault("core.data_dir", defaults.Core.DataDir)
	v.SetDefault("core.timeout", defaults.Core.Timeout)
	v.SetDefault("core.debug", defaults.Core.Debug)
	v.SetDefault("orchestrator.max_agents", defaults.Orchestrator.MaxAgents)
	v.SetDefault("orchestrator.poll_interval", defaults.Orchestrator.PollInterval)
	v.SetDefault("engine.resource_backoff", defaults.Engine.ResourceBackoff)
	v.SetDefault("engine.idle_interval", defaults.Engine.IdleInterval)
	v.SetDefault("resources.cpu_percent", defaults.Resources.CPUPercent)
	v.SetDefault("resources.memory_mb", defaults.Resources.MemoryMB)
	v.SetDefault("resources.network_mbps", defaults.Resources.NetworkMbps)
	v.SetDefault("knowledge.path", defaults.Knowledge.Path)
	v.SetDefault("knowledge.max_connections", defaults.Knowledge.MaxConnections)
	v.SetDefault("knowledge.busy_timeout", defaults.Knowledge.BusyTimeout)
	v.SetDefault("knowledge.max_entries", defaults.Knowledge.MaxEntries)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
}

// interpolate expands ${VAR} references in the string fields that take
// paths or identifiers from the environment.
func interpolate(cfg *Config) {
	cfg.Core.HomeDir = interpolateString(cfg.Core.HomeDir)
	cfg.Core.DataDir = interpolateString(cfg.Core.DataDir)
	cfg.Knowledge.Path = interpolateString(cfg.Knowledge.Path)
	cfg.Logging.Level = interpolateString(cfg.Logging.Level)
	cfg.Logging.Format = interpolateString(cfg.Logging.Format)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateString replaces ${VAR_NAME} with environment variable
// values, leaving unknown references untouched.
func interpolateString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if value := os.Getenv(name); value != "" {
			return value
		}
		return match
	})
}
