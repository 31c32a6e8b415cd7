// Package simconfig loads and validates the simulator configuration
//: a top-level config merged from a built-in default and
// a user overlay
// pipeline (YAML via gopkg.in/yaml.v3, merge via dario.cat/mergo, struct-tag
// validation via go-playground/validator).
package simconfig

import "time"

// EnvironmentConfig describes the clock driving the simulation loop.
type EnvironmentConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Mode     string `yaml:"mode" validate:"required,oneof=round tick"`
	MaxSteps int    `yaml:"max_steps" validate:"omitempty,min=1"`
}

// SimulatorConfig wraps the environment section.
type SimulatorConfig struct {
	Environment EnvironmentConfig `yaml:"environment" validate:"required"`
}

// ProfileCountConfig is one entry of agent.profile: how many instances of a
// given agent type to populate from its profile data file.
type ProfileCountConfig struct {
	Count int `yaml:"count" validate:"required,min=1"`
}

// MemoryConfig selects the memory strategy and its tunables.
type MemoryConfig struct {
	Strategy string         `yaml:"strategy" validate:"omitempty"`
	Extra    map[string]any `yaml:",inline"`
}

// AgentSectionConfig is the top-level agent: block.
type AgentSectionConfig struct {
	Profile  map[string]ProfileCountConfig `yaml:"profile"`
	Planning string                        `yaml:"planning" validate:"omitempty"`
	Memory   MemoryConfig                  `yaml:"memory"`
}

// ModelEntryConfig is one entry of model.chat / model.embedding. Every entry
// must carry provider, config_name, model_name; other keys are
// provider-specific and land in Extra.
type ModelEntryConfig struct {
	Provider   string         `yaml:"provider" validate:"required"`
	ConfigName string         `yaml:"config_name" validate:"required"`
	ModelName  string         `yaml:"model_name" validate:"required"`
	Extra      map[string]any `yaml:",inline"`
}

// ModelSectionConfig is the top-level model: block.
type ModelSectionConfig struct {
	Chat      []ModelEntryConfig `yaml:"chat" validate:"omitempty,dive"`
	Embedding []ModelEntryConfig `yaml:"embedding" validate:"omitempty,dive"`
}

// DistributionMode enumerates the node roles a process can start as.
type DistributionMode string

const (
	DistributionSingle DistributionMode = "single"
	DistributionMaster DistributionMode = "master"
	DistributionWorker DistributionMode = "worker"
)

// DistributionConfig is the top-level distribution: block.
type DistributionConfig struct {
	Enabled         bool             `yaml:"enabled"`
	Mode            DistributionMode `yaml:"mode" validate:"omitempty,oneof=single master worker"`
	MasterAddress   string           `yaml:"master_address" validate:"omitempty"`
	MasterPort      int              `yaml:"master_port" validate:"omitempty,min=1,max=65535"`
	WorkerPort      int              `yaml:"worker_port" validate:"omitempty,min=1,max=65535"`
	ExpectedWorkers int              `yaml:"expected_workers" validate:"omitempty,min=0"`
}

// DatabaseConfig is the top-level database: block (pkg/sink connection info).
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" validate:"omitempty"`
	Port     int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	DBName   string `yaml:"dbname" validate:"omitempty"`
	User     string `yaml:"user" validate:"omitempty"`
	Password string `yaml:"password" validate:"omitempty"`
}

// MonitorConfig is the top-level monitor: block. The monitor surface itself
// is out of scope; this section is still parsed
// and validated so a future external monitor can consume it.
type MonitorConfig struct {
	Enabled        bool   `yaml:"enabled"`
	UpdateInterval string `yaml:"update_interval" validate:"omitempty"`
	MetricsPath    string `yaml:"metrics_path" validate:"omitempty"`
}

// Config is the complete, merged, validated simulator configuration
// returned by Initialize.
type Config struct {
	Simulator    SimulatorConfig    `yaml:"simulator" validate:"required"`
	Agent        AgentSectionConfig `yaml:"agent"`
	Model        ModelSectionConfig `yaml:"model"`
	Distribution DistributionConfig `yaml:"distribution"`
	Database     DatabaseConfig     `yaml:"database"`
	Monitor      MonitorConfig      `yaml:"monitor"`
}

// UpdateIntervalDuration parses Monitor.UpdateInterval, falling back to def
// if unset or malformed.
func (c *Config) UpdateIntervalDuration(def time.Duration) time.Duration {
	if c.Monitor.UpdateInterval == "" {
		return def
	}
	d, err := time.ParseDuration(c.Monitor.UpdateInterval)
	if err != nil {
		return def
	}
	return d
}
