// Package config defines the application configuration, its defaults,
// the YAML loader, and validation.
package config

import "time"

// Config is the root configuration for the workforce core.
type Config struct {
	Core         CoreConfig         `mapstructure:"core" yaml:"core" validate:"required"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator" validate:"required"`
	Engine       EngineConfig       `mapstructure:"engine" yaml:"engine"`
	Resources    ResourcesConfig    `mapstructure:"resources" yaml:"resources" validate:"required"`
	Knowledge    KnowledgeConfig    `mapstructure:"knowledge" yaml:"knowledge" validate:"required"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	HomeDir string        `mapstructure:"home_dir" yaml:"home_dir"`
	DataDir string        `mapstructure:"data_dir" yaml:"data_dir"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	Debug   bool          `mapstructure:"debug" yaml:"debug"`
}

// OrchestratorConfig bounds the agent pool and its polling cadence.
type OrchestratorConfig struct {
	MaxAgents    int           `mapstructure:"max_agents" yaml:"max_agents" validate:"min=1,max=100"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// EngineConfig tunes the per-agent execution engine.
type EngineConfig struct {
	ResourceBackoff time.Duration `mapstructure:"resource_backoff" yaml:"resource_backoff"`
	IdleInterval    time.Duration `mapstructure:"idle_interval" yaml:"idle_interval"`
}

// ResourcesConfig sets the process-wide resource limits shared by all
// agents.
type ResourcesConfig struct {
	CPUPercent  float64 `mapstructure:"cpu_percent" yaml:"cpu_percent" validate:"min=1,max=100"`
	MemoryMB    uint64  `mapstructure:"memory_mb" yaml:"memory_mb" validate:"min=64"`
	NetworkMbps float64 `mapstructure:"network_mbps" yaml:"network_mbps" validate:"min=1"`
}

// KnowledgeConfig configures the SQLite knowledge base.
type KnowledgeConfig struct {
	Path           string        `mapstructure:"path" yaml:"path"`
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections" validate:"min=1,max=100"`
	BusyTimeout    time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout" validate:"min=1s"`
	MaxEntries     int           `mapstructure:"max_entries" yaml:"max_entries" validate:"min=0"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=json text"`
}
