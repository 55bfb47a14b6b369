// contextenc.go encodes arbitrary nested context data into a bounded
// textual form.

package flare

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// contextDepthLimit caps how deeply the serialized context tree may nest.
// Substructure below the limit is replaced with truncatedPlaceholder under
// its original key rather than dropped.
const contextDepthLimit = 5

// truncatedPlaceholder marks substructure removed by the depth limit or a
// per-entry encoding failure.
const truncatedPlaceholder = "[Truncated]"

// SerializeContext encodes a context value to compact JSON, clamped to
// contextDepthLimit levels. It never panics: when encoding fails for any
// reason (cyclic references, unsupported values) it falls back to a
// flattened best-effort rendering instead.
func SerializeContext(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = fallbackRender(v)
		}
	}()

	if v == nil {
		return ""
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return fallbackRender(v)
	}

	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return fallbackRender(v)
	}

	out, err := json.Marshal(clampDepth(decoded, contextDepthLimit))
	if err != nil {
		return fallbackRender(v)
	}
	return string(out)
}

// clampDepth walks a decoded JSON tree and replaces container nodes past
// the remaining depth budget with truncatedPlaceholder.
func clampDepth(v any, remaining int) any {
	switch t := v.(type) {
	case map[string]any:
		if remaining <= 1 {
			return truncatedPlaceholder
		}
		out := make(map[string]any, len(t))
		for key, child := range t {
			out[key] = clampDepth(child, remaining-1)
		}
		return out
	case []any:
		if remaining <= 1 {
			return truncatedPlaceholder
		}
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = clampDepth(child, remaining-1)
		}
		return out
	default:
		return v
	}
}

// fallbackRender flattens a context value that could not be JSON-encoded as
// a whole. Map entries are rendered key by key so one bad value does not
// take out the rest; anything else degrades to a type description.
func fallbackRender(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Sprintf("[unserializable context of type %T]", v)
	}

	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		if b, err := json.Marshal(m[key]); err == nil {
			parts = append(parts, key+"="+string(b))
		} else {
			parts = append(parts, key+"="+truncatedPlaceholder)
		}
	}
	return strings.Join(parts, " ")
}
