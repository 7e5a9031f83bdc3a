package ir

import "strings"

// RefScheme prefixes a reference placeholder. A placeholder stands for an
// output attribute of another node and is resolved when that node's apply
// call has returned: "ref://<node-id>/<attribute>".
const RefScheme = "ref://"

// MakeRef builds a reference placeholder for an attribute of a node.
func MakeRef(nodeID, attr string) string {
	return RefScheme + nodeID + "/" + attr
}

// IsRef reports whether v is a reference placeholder string.
func IsRef(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, RefScheme)
}

// ParseRef splits a reference placeholder into node id and attribute name.
func ParseRef(s string) (nodeID, attr string, ok bool) {
	if !strings.HasPrefix(s, RefScheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(s, RefScheme)
	i := strings.IndexByte(rest, '/')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// ExtractRefs walks a property value and returns every reference placeholder
// found, in depth-first order.
func ExtractRefs(v any) []string {
	var refs []string
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, RefScheme) {
			refs = append(refs, val)
		}
	case map[string]any:
		for _, item := range val {
			refs = append(refs, ExtractRefs(item)...)
		}
	case []any:
		for _, item := range val {
			refs = append(refs, ExtractRefs(item)...)
		}
	}
	return refs
}
