// Package masking redacts secret-shaped substrings from decision prompts and
// outputs before they are logged or handed to the batch processor.
package masking

import (
	"fmt"
	"log/slog"
	"regexp"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// Pattern is the uncompiled, config-facing form of a CompiledPattern.
type Pattern struct {
	Name        string `yaml:"name" json:"name"`
	Regex       string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement" json:"replacement"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// builtinPatterns are compiled into every Service regardless of config —
// these catch the secret shapes that LLM tool calls and agent profiles most
// commonly leak into decision context.
func builtinPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "aws_access_key",
			Regex:       `AKIA[0-9A-Z]{16}`,
			Replacement: "***AWS_ACCESS_KEY***",
			Description: "AWS access key ID",
		},
		{
			Name:        "bearer_token",
			Regex:       `(?i)bearer\s+[a-z0-9._\-]{16,}`,
			Replacement: "Bearer ***TOKEN***",
			Description: "HTTP bearer token",
		},
		{
			Name:        "api_key_assignment",
			Regex:       `(?i)(api[_-]?key|secret|token|password)\s*[:=]\s*['"]?[a-z0-9._\-]{8,}['"]?`,
			Replacement: "$1=***REDACTED***",
			Description: "key=value style secret assignment",
		},
		{
			Name:        "private_key_block",
			Regex:       `-----BEGIN[ A-Z]*PRIVATE KEY-----[\s\S]*?-----END[ A-Z]*PRIVATE KEY-----`,
			Replacement: "***PRIVATE_KEY_REDACTED***",
			Description: "PEM private key block",
		},
	}
}

// compile compiles a list of Pattern into CompiledPattern, logging and
// skipping any that fail to parse (never fatal — masking degrades, it
// never blocks the run).
func compile(patterns []Pattern) map[string]*CompiledPattern {
	out := make(map[string]*CompiledPattern, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			slog.Error("failed to compile masking pattern, skipping", "pattern", p.Name, "error", err)
			continue
		}
		out[p.Name] = &CompiledPattern{
			Name:        p.Name,
			Regex:       re,
			Replacement: p.Replacement,
			Description: p.Description,
		}
	}
	return out
}

// ErrDuplicatePattern is returned by AddCustom when a pattern name collides
// with a built-in one.
type ErrDuplicatePattern struct{ Name string }

func (e *ErrDuplicatePattern) Error() string {
	return fmt.Sprintf("masking: pattern %q already registered", e.Name)
}
