package profile

import (
	"strconv"
	"strings"
)

// getPath walks data along a dotted path ("a.b.0.c"), descending into maps
// by key and into slices by integer index when a segment parses as one.
// It never panics on a miss; any unresolved segment returns def.
func getPath(data map[string]any, path string, def any) any {
	if path == "" {
		return def
	}
	segments := strings.Split(path, ".")
	var cur any = data
	for _, seg := range segments {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return def
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return def
			}
			cur = node[idx]
		default:
			return def
		}
	}
	if cur == nil {
		return def
	}
	return cur
}

// setPath writes v at the dotted path within data, creating intermediate
// maps as needed. List segments (integer path components) require the
// addressed slice and index to already exist; setPath does not grow slices,
// matching the "never panic, never guess structure" posture of getPath.
// Returns false if an intermediate segment exists but is not a container,
// or a list index is out of range.
func setPath(data map[string]any, path string, v any) bool {
	segments := strings.Split(path, ".")
	return setPathSegments(data, segments, v)
}

func setPathSegments(cur map[string]any, segments []string, v any) bool {
	seg := segments[0]
	if len(segments) == 1 {
		cur[seg] = v
		return true
	}

	next := segments[1:]
	child, exists := cur[seg]
	if !exists {
		// Decide container kind from the next segment: integer -> list
		// access is not creatable (we don't know the desired length), so
		// only map descent is auto-vivified.
		if _, err := strconv.Atoi(next[0]); err == nil {
			return false
		}
		m := make(map[string]any)
		cur[seg] = m
		return setPathSegments(m, next, v)
	}

	switch node := child.(type) {
	case map[string]any:
		return setPathSegments(node, next, v)
	case []any:
		idx, err := strconv.Atoi(next[0])
		if err != nil || idx < 0 || idx >= len(node) {
			return false
		}
		if len(next) == 1 {
			node[idx] = v
			return true
		}
		elem, ok := node[idx].(map[string]any)
		if !ok {
			return false
		}
		return setPathSegments(elem, next[1:], v)
	default:
		return false
	}
}
