package simconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentsim/pkg/simerrors"
)

func writeOverlay(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte(content), 0o644))
}

func TestInitializeMergesOverlayOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	writeOverlay(t, dir, `
simulator:
  environment:
    name: riverside
    mode: tick
    max_steps: 100
agent:
  profile:
    Citizen:
      count: 5
model:
  chat:
    - provider: openai
      config_name: gpt
      model_name: gpt-4o
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "riverside", cfg.Simulator.Environment.Name)
	assert.Equal(t, "tick", cfg.Simulator.Environment.Mode)
	assert.Equal(t, 100, cfg.Simulator.Environment.MaxSteps)
	assert.Equal(t, 5, cfg.Agent.Profile["Citizen"].Count)
	assert.Equal(t, DistributionSingle, cfg.Distribution.Mode) // untouched default
	require.Len(t, cfg.Model.Chat, 1)
	assert.Equal(t, "gpt-4o", cfg.Model.Chat[0].ModelName)
}

func TestInitializeExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_DB_HOST", "db.internal")
	writeOverlay(t, dir, `
simulator:
  environment:
    name: x
    mode: round
database:
  enabled: true
  host: ${TEST_DB_HOST}
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestInitializeMissingFileReturnsConfigError(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	kind, ok := simerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, simerrors.KindConfig, kind)
}

func TestInitializeRejectsUnknownEnvironmentMode(t *testing.T) {
	dir := t.TempDir()
	writeOverlay(t, dir, `
simulator:
  environment:
    name: x
    mode: bogus
`)
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}

func TestInitializeRejectsWorkerModeWithoutMasterAddress(t *testing.T) {
	dir := t.TempDir()
	writeOverlay(t, dir, `
simulator:
  environment:
    name: x
    mode: round
distribution:
  enabled: true
  mode: worker
`)
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "master_address")
}

func TestValidateRejectsZeroProfileCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Simulator.Environment.Name = "x"
	cfg.Simulator.Environment.Mode = "round"
	cfg.Agent.Profile = map[string]ProfileCountConfig{"Citizen": {Count: 0}}

	err := Validate(cfg)
	require.Error(t, err)
}
