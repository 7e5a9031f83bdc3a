package ir

import "strings"

// Document is the parsed declarative template: a set of resource nodes plus
// optional named outputs.
type Document struct {
	Resources []*Resource
	Outputs   map[string]any
}

// Resource is a single declared node in the document.
type Resource struct {
	// ID is the logical id, unique within the document.
	ID string

	// Type identifies the resource kind, e.g. "aws:ec2/vpc".
	Type string

	// Provider is the adapter name. Empty means derived from Type.
	Provider string

	// DependsOn lists explicit dependency node ids.
	DependsOn []string

	// Properties is the declared property bag. Values are literals or
	// "ref://node/attr" placeholders.
	Properties map[string]any

	// DeclIndex is the position of the resource in the document. Ordering
	// among independent nodes is broken by declaration order.
	DeclIndex int
}

// ProviderName returns the adapter responsible for this resource: the
// explicit Provider field, or the prefix of Type before the first colon.
func (r *Resource) ProviderName() string {
	if r.Provider != "" {
		return r.Provider
	}
	if i := strings.IndexByte(r.Type, ':'); i > 0 {
		return r.Type[:i]
	}
	return r.Type
}

// Resource returns the resource with the given logical id, or nil.
func (d *Document) Resource(id string) *Resource {
	for _, res := range d.Resources {
		if res.ID == id {
			return res
		}
	}
	return nil
}
