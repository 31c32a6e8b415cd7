package simconfig

import (
	"fmt"

	"dario.cat/mergo"
)

// mergeOverlay merges a user-provided overlay on top of the built-in
// defaults, non-zero overlay values winning (
// mergo.Merge(queueConfig, tarsyConfig.Queue, mergo.WithOverride) pattern in
// pkg/config/loader.go).
func mergeOverlay(base *Config, overlay *Config) (*Config, error) {
	if overlay == nil {
		return base, nil
	}
	if err := mergo.Merge(base, overlay, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("simconfig: merge overlay: %w", err)
	}
	return base, nil
}
