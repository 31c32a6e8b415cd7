// Package scene loads a scenario directory: the scene_info.json manifest,
// and per-agent-type profile schema/data files, handing
// off schema-typed construction to pkg/profile.
package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/codeready-toolchain/agentsim/pkg/profile"
	"github.com/codeready-toolchain/agentsim/pkg/simerrors"
)

// MetricSpec describes one scene-declared metric. The monitor that consumes these is out of scope
//; the manifest still carries the shape.
type MetricSpec struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

// Manifest is scene_info.json: scene name, domain, agent type roster,
// per-type avatar id, the ODD (overview/design concepts/details) protocol
// description, and declared metrics.
type Manifest struct {
	SceneName   string            `json:"scene_name" validate:"required"`
	Domain      string            `json:"domain" validate:"required"`
	AgentTypes  map[string]string `json:"agent_types" validate:"required,min=1"`
	Portrait    map[string]int    `json:"portrait" validate:"omitempty,dive,min=1,max=5"`
	ODDProtocol map[string]any    `json:"odd_protocol,omitempty"`
	Metrics     []MetricSpec      `json:"metrics,omitempty" validate:"omitempty,dive"`
}

// Scene is a fully loaded scenario: the manifest plus, per agent type, its
// field schema and raw profile-instance data.
type Scene struct {
	Manifest Manifest
	Schemas  map[string]*profile.Schema
	Data     map[string][]map[string]any
}

var manifestValidator = validator.New(validator.WithRequiredStructEnabled())

// Load reads dir/scene_info.json and, for every agent type the manifest
// declares, dir/profile/schema/<type>.json and dir/profile/data/<type>.json.
// Any missing file or schema mismatch is a configuration error: fail fast
// at initialization rather than starting a run with a broken scene.
func Load(dir string) (*Scene, error) {
	manifest, err := loadManifest(filepath.Join(dir, "scene_info.json"))
	if err != nil {
		return nil, err
	}

	s := &Scene{
		Manifest: *manifest,
		Schemas:  make(map[string]*profile.Schema, len(manifest.AgentTypes)),
		Data:     make(map[string][]map[string]any, len(manifest.AgentTypes)),
	}

	for agentType := range manifest.AgentTypes {
		schema, err := loadSchema(dir, agentType)
		if err != nil {
			return nil, err
		}
		s.Schemas[agentType] = schema

		data, err := loadData(dir, agentType)
		if err != nil {
			return nil, err
		}
		s.Data[agentType] = data
	}

	return s, nil
}

func loadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, simerrors.New(simerrors.KindConfig, fmt.Errorf("%w: %s", simerrors.ErrConfigNotFound, path))
		}
		return nil, simerrors.New(simerrors.KindConfig, err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, simerrors.New(simerrors.KindConfig, fmt.Errorf("%w: %v", simerrors.ErrInvalidSchema, err))
	}
	if err := manifestValidator.Struct(&m); err != nil {
		return nil, simerrors.New(simerrors.KindConfig, fmt.Errorf("%w: %v", simerrors.ErrInvalidSchema, err))
	}
	return &m, nil
}

func loadSchema(dir, agentType string) (*profile.Schema, error) {
	path := filepath.Join(dir, "profile", "schema", agentType+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, simerrors.WithAgent(simerrors.KindConfig, agentType, fmt.Errorf("%w: %s", simerrors.ErrConfigNotFound, path))
		}
		return nil, simerrors.WithAgent(simerrors.KindConfig, agentType, err)
	}

	var schema profile.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, simerrors.WithAgent(simerrors.KindConfig, agentType, fmt.Errorf("%w: %v", simerrors.ErrInvalidSchema, err))
	}
	if schema.AgentType == "" {
		schema.AgentType = agentType
	}
	return &schema, nil
}

func loadData(dir, agentType string) ([]map[string]any, error) {
	path := filepath.Join(dir, "profile", "data", agentType+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Absent data file means zero pre-seeded instances; the scene
			// may still populate this type entirely from simconfig's
			// agent.profile[type].count via schema sampling.
			return nil, nil
		}
		return nil, simerrors.WithAgent(simerrors.KindConfig, agentType, err)
	}

	var instances []map[string]any
	if err := json.Unmarshal(raw, &instances); err != nil {
		return nil, simerrors.WithAgent(simerrors.KindConfig, agentType, fmt.Errorf("%w: %v", simerrors.ErrInvalidSchema, err))
	}
	return instances, nil
}

// BuildProfiles constructs one profile.AgentProfile per declared instance of
// agentType, seeding from loaded data and padding with schema defaults up to
// count when data has fewer entries than the simconfig profile count asks
// for.
func (s *Scene) BuildProfiles(agentType string, count int) ([]*profile.AgentProfile, error) {
	schema, ok := s.Schemas[agentType]
	if !ok {
		return nil, simerrors.WithAgent(simerrors.KindConfig, agentType, simerrors.ErrAgentNotFound)
	}

	data := s.Data[agentType]
	out := make([]*profile.AgentProfile, 0, count)
	for i := 0; i < count; i++ {
		var initial map[string]any
		if i < len(data) {
			initial = data[i]
		}
		out = append(out, profile.New(agentType, schema, initial))
	}
	return out, nil
}
