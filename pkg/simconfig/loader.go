package simconfig

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/agentsim/pkg/simerrors"
)

// DefaultFileName is the user overlay file Initialize looks for under
// configDir.
const DefaultFileName = "simulator.yaml"

// Initialize loads, merges and validates the simulator configuration. This
// is the single entry point callers use: missing scenes or bad schemas
// fail fast here, before any agent or environment state is constructed.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)

	overlay, err := loadOverlay(configDir)
	if err != nil {
		return nil, err
	}

	cfg, err := mergeOverlay(DefaultConfig(), overlay)
	if err != nil {
		return nil, simerrors.New(simerrors.KindConfig, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	log.Info("simulator configuration initialized",
		"environment_mode", cfg.Simulator.Environment.Mode,
		"agent_types", len(cfg.Agent.Profile),
		"distribution_mode", cfg.Distribution.Mode)

	return cfg, nil
}

func loadOverlay(configDir string) (*Config, error) {
	path := filepath.Join(configDir, DefaultFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, simerrors.New(simerrors.KindConfig, fmt.Errorf("%w: %s", simerrors.ErrConfigNotFound, path))
		}
		return nil, simerrors.New(simerrors.KindConfig, err)
	}

	data = ExpandEnv(data)

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, simerrors.New(simerrors.KindConfig, fmt.Errorf("%w: %v", simerrors.ErrInvalidSchema, err))
	}
	return &overlay, nil
}
