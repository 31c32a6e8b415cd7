package masking

import (
	"log/slog"
	"sync"
)

// Service applies regex-based redaction to decision prompts/outputs and to
// agent profile data that crosses a privacy boundary. Created once at
// startup (singleton). Thread-safe; patterns are compiled eagerly and never
// mutated after AddCustom returns.
type Service struct {
	mu       sync.RWMutex
	patterns map[string]*CompiledPattern
}

// NewService creates a masking service with the built-in pattern set
// compiled. Invalid custom patterns are logged and skipped (fail-open on
// configuration, fail-closed is not appropriate here: a broken custom
// pattern must not stop the simulation from recording decisions).
func NewService(custom ...Pattern) *Service {
	s := &Service{patterns: compile(builtinPatterns())}
	for name, cp := range compile(custom) {
		s.patterns[name] = cp
	}
	slog.Info("masking service initialized", "patterns", len(s.patterns))
	return s
}

// AddCustom compiles and registers an additional pattern at runtime (e.g.
// one contributed by a scene manifest). Returns ErrDuplicatePattern if the
// name is already registered.
func (s *Service) AddCustom(p Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.patterns[p.Name]; exists {
		return &ErrDuplicatePattern{Name: p.Name}
	}
	compiled := compile([]Pattern{p})
	cp, ok := compiled[p.Name]
	if !ok {
		// compile() already logged the reason; nothing more to do.
		return nil
	}
	s.patterns[p.Name] = cp
	return nil
}

// Mask applies every registered pattern to text and returns the redacted
// result. Used on the prompt and output of every decision before it reaches
// the batch processor, and on any profile value copied into a cross-agent
// snapshot.
func (s *Service) Mask(text string) string {
	if text == "" {
		return text
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	masked := text
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}

// MaskValue redacts a value if it is a string (or a []string / map of
// strings); non-string values are returned unchanged since they cannot
// carry free-text secrets.
func (s *Service) MaskValue(v any) any {
	switch val := v.(type) {
	case string:
		return s.Mask(val)
	case []string:
		out := make([]string, len(val))
		for i, e := range val {
			out[i] = s.Mask(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = s.MaskValue(e)
		}
		return out
	default:
		return v
	}
}
