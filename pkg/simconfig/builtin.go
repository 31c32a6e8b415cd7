package simconfig

// DefaultConfig returns the built-in configuration merged underneath every
// user overlay (, pkg/config/builtin.go).
func DefaultConfig() *Config {
	return &Config{
		Simulator: SimulatorConfig{
			Environment: EnvironmentConfig{
				Name:     "default",
				Mode:     "round",
				MaxSteps: 0,
			},
		},
		Agent: AgentSectionConfig{
			Profile: map[string]ProfileCountConfig{},
		},
		Distribution: DistributionConfig{
			Enabled:    false,
			Mode:       DistributionSingle,
			WorkerPort: 7070,
			MasterPort: 7060,
		},
		Database: DatabaseConfig{
			Enabled: false,
			Port:    5432,
		},
		Monitor: MonitorConfig{
			Enabled:        false,
			UpdateInterval: "5s",
			MetricsPath:    "/metrics",
		},
	}
}
