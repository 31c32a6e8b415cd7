package simconfig

import "os"

// ExpandEnv expands ${VAR} / $VAR references in raw YAML content before
// parsing, so secrets like database passwords or API keys never need to be
// checked in. Missing variables expand to empty string; validation catches
// required fields left empty.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
