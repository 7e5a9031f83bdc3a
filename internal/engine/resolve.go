package engine

import (
	"strings"

	"github.com/relish-io/relish/internal/ir"
)

// OutputLookup returns the value of an output attribute of another node, or
// false if the node has not been applied or the attribute is unknown.
type OutputLookup func(nodeID, attr string) (any, bool)

// recordLookup builds an OutputLookup over stored records. Outputs take
// precedence over applied inputs, so an attribute like "cidrBlock" can be
// referenced even when the provider does not echo it back.
func recordLookup(records map[string]*ir.StateRecord) OutputLookup {
	return func(nodeID, attr string) (any, bool) {
		rec, ok := records[nodeID]
		if !ok {
			return nil, false
		}
		if v, ok := rec.Outputs[attr]; ok {
			return v, true
		}
		if v, ok := rec.Inputs[attr]; ok {
			return v, true
		}
		return nil, false
	}
}

// ResolveInputs substitutes every ref:// placeholder in the bag. Placeholders
// whose value is not yet known are left in place and returned, so the caller
// decides whether that is an error (apply) or expected (plan preview).
func ResolveInputs(props map[string]any, lookup OutputLookup) (map[string]any, []string) {
	resolved, unresolved := resolveValue(props, lookup)
	return resolved.(map[string]any), unresolved
}

func resolveValue(v any, lookup OutputLookup) (any, []string) {
	switch val := v.(type) {
	case string:
		if !strings.HasPrefix(val, ir.RefScheme) {
			return val, nil
		}
		nodeID, attr, ok := ir.ParseRef(val)
		if !ok {
			return val, []string{val}
		}
		if out, found := lookup(nodeID, attr); found {
			return out, nil
		}
		return val, []string{val}

	case map[string]any:
		newMap := make(map[string]any, len(val))
		var unresolved []string
		for k, item := range val {
			r, u := resolveValue(item, lookup)
			newMap[k] = r
			unresolved = append(unresolved, u...)
		}
		return newMap, unresolved

	case []any:
		newSlice := make([]any, len(val))
		var unresolved []string
		for i, item := range val {
			r, u := resolveValue(item, lookup)
			newSlice[i] = r
			unresolved = append(unresolved, u...)
		}
		return newSlice, unresolved

	default:
		return val, nil
	}
}
