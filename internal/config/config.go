package config

import "time"

// ServerConfig holds configuration for the taskpilot server.
type ServerConfig struct {
	Addr          string        // Listen address (default ":8080")
	LogLevel      string        // Log level: debug, info, warn, error
	LogFormat     string        // Log format: text, json
	DBPath        string        // SQLite database path (default ~/.taskpilot/taskpilot.db, ":memory:" for testing)
	EngineConfig  string        // Optional path to a YAML engine config file
	CycleInterval time.Duration // Interval between scheduling cycles
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:          ":8080",
		LogLevel:      "info",
		LogFormat:     "text",
		CycleInterval: 15 * time.Minute,
	}
}
