package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := getDefaultHomeDir()

	return &Config{
		Core: CoreConfig{
			HomeDir: homeDir,
			DataDir: filepath.Join(homeDir, "data"),
			Timeout: 5 * time.Minute,
			Debug:   false,
		},
		Orchestrator: OrchestratorConfig{
			MaxAgents:    10,
			PollInterval: 100 * time.Millisecond,
		},
		Engine: EngineConfig{
			ResourceBackoff: 1 * time.Second,
			IdleInterval:    100 * time.Millisecond,
		},
		Resources: ResourcesConfig{
			CPUPercent:  80,
			MemoryMB:    2048,
			NetworkMbps: 100,
		},
		Knowledge: KnowledgeConfig{
			Path:           filepath.Join(homeDir, "knowledge.db"),
			MaxConnections: 10,
			BusyTimeout:    5 * time.Second,
			MaxEntries:     10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// getDefaultHomeDir returns the default application home directory,
// falling back to the temp dir when the user home cannot be determined.
func getDefaultHomeDir() string {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".agiworkforce")
	}
	return filepath.Join(userHome, ".agiworkforce")
}
