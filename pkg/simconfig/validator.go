package simconfig

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/codeready-toolchain/agentsim/pkg/simerrors"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags via go-playground/validator, then the
// cross-field rules struct tags cannot express (
// Validator.ValidateAll hand-rolled pass in pkg/config/validator.go).
func Validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		return simerrors.New(simerrors.KindConfig, fmt.Errorf("%w: %v", simerrors.ErrInvalidSchema, err))
	}
	if err := validateCrossFields(cfg); err != nil {
		return simerrors.New(simerrors.KindConfig, err)
	}
	return nil
}

func validateCrossFields(cfg *Config) error {
	d := cfg.Distribution
	if d.Enabled {
		switch d.Mode {
		case DistributionMaster:
			if d.ExpectedWorkers < 0 {
				return fmt.Errorf("distribution.expected_workers must be non-negative, got %d", d.ExpectedWorkers)
			}
		case DistributionWorker:
			if d.MasterAddress == "" {
				return fmt.Errorf("distribution.master_address is required when mode=worker")
			}
			if d.MasterPort == 0 {
				return fmt.Errorf("distribution.master_port is required when mode=worker")
			}
		case DistributionSingle, "":
			// no cross-field requirements
		default:
			return fmt.Errorf("distribution.mode %q is not one of single, master, worker", d.Mode)
		}
	}

	for name, entry := range cfg.Agent.Profile {
		if entry.Count < 1 {
			return fmt.Errorf("agent.profile[%s].count must be at least 1, got %d", name, entry.Count)
		}
	}

	db := cfg.Database
	if db.Enabled && db.Host == "" {
		return fmt.Errorf("database.host is required when database.enabled is true")
	}

	return nil
}
