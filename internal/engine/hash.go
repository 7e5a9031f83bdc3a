package engine

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// HashInputs computes the content hash of a resolved property bag. The bag
// is serialized to JSON, which sorts map keys, so the hash is independent of
// declaration order.
func HashInputs(props map[string]any) (string, error) {
	data, err := json.Marshal(normalizeValue(props))
	if err != nil {
		return "", fmt.Errorf("failed to hash properties: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

// normalizeValue converts map[any]any values (as produced by some decoders
// and adapters) into JSON-compatible map[string]any.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[any]any:
		newMap := make(map[string]any, len(val))
		for k, item := range val {
			newMap[fmt.Sprintf("%v", k)] = normalizeValue(item)
		}
		return newMap
	case map[string]any:
		newMap := make(map[string]any, len(val))
		for k, item := range val {
			newMap[k] = normalizeValue(item)
		}
		return newMap
	case []any:
		newSlice := make([]any, len(val))
		for i, item := range val {
			newSlice[i] = normalizeValue(item)
		}
		return newSlice
	default:
		return val
	}
}
