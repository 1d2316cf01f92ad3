package app

import (
	"io"

	"panelsync/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug settings
	Debug bool

	// Custom configuration path (optional)
	// When empty, the user config file is tried before built-in defaults
	ConfigPath string

	// Watch reloads throttle intervals when the config file changes
	Watch bool

	// Notify sends readiness and stopping notifications to systemd
	Notify bool

	// SimulationRate is the number of world mutations per second; zero
	// leaves the world idle
	SimulationRate float64

	// Seed makes a simulation reproducible; zero picks one from the clock
	Seed int64

	// PanelOutput receives rendered panels; nil discards them
	PanelOutput io.Writer

	// Panelsync configuration. When set, no file is loaded.
	PanelsyncConfig *config.PanelsyncConfig
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
