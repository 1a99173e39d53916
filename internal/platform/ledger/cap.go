package ledger

import (
	"encoding/json"
	"sort"
)

// Default byte budgets for entry payloads, overridable through config.
const (
	DefaultMetadataMaxBytes = 2 * 1024
	DefaultDiffMaxBytes     = 4 * 1024
)

// Keys added to a payload when capping drops fields.
const (
	truncatedKey     = "_truncated"
	originalBytesKey = "_original_bytes"
	droppedKeysKey   = "_dropped_keys"
)

// CapPayload enforces a byte budget on a payload's JSON serialization. Under
// budget the payload passes through unchanged. Over budget, top-level fields
// are dropped largest-first and replaced with a truncation marker recording
// the original size and the dropped key names; the output always serializes
// within maxBytes and is always valid JSON. maxBytes <= 0 disables the cap.
func CapPayload(v map[string]any, maxBytes int) map[string]any {
	if v == nil || maxBytes <= 0 {
		return v
	}
	size := serializedSize(v)
	if size <= maxBytes {
		return v
	}

	type field struct {
		key  string
		size int
	}
	fields := make([]field, 0, len(v))
	for k, val := range v {
		b, err := json.Marshal(val)
		fs := 0
		if err == nil {
			fs = len(b)
		}
		fields = append(fields, field{key: k, size: fs})
	}
	sort.Slice(fields, func(i, j int) bool {
		if fields[i].size != fields[j].size {
			return fields[i].size > fields[j].size
		}
		return fields[i].key < fields[j].key
	})

	out := make(map[string]any, len(v)+3)
	for k, val := range v {
		out[k] = val
	}
	out[truncatedKey] = true
	out[originalBytesKey] = size

	var dropped []string
	for _, f := range fields {
		if serializedSize(out) <= maxBytes {
			break
		}
		delete(out, f.key)
		dropped = append(dropped, f.key)
		out[droppedKeysKey] = dropped
	}

	if serializedSize(out) > maxBytes {
		// Even the marker with dropped-key names is too big (tiny budget or
		// pathological key lengths). Fall back to the minimal marker.
		out = map[string]any{
			truncatedKey:     true,
			originalBytesKey: size,
		}
		if serializedSize(out) > maxBytes {
			out = map[string]any{}
		}
	}
	return out
}

func serializedSize(v map[string]any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}
