// Package template parses declarative resource documents into the IR.
//
// A document is a YAML mapping of logical resource ids to typed blocks.
// References between resources are written with the !Ref and !GetAtt
// intrinsics (or literal ref:// strings) and are normalized to placeholder
// strings here, so that every cross-resource dependency is visible as a
// graph edge before anything is applied.
package template

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/relish-io/relish/internal/ir"
)

// ParseError reports a malformed document. It is fatal: no apply is
// attempted after a parse failure.
type ParseError struct {
	File   string
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// Load reads and parses a document from disk.
func Load(path string) (*ir.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses a document from raw YAML. filename is used in errors only.
func Parse(data []byte, filename string) (*ir.Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{File: filename, Msg: err.Error()}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &ParseError{File: filename, Msg: "empty document"}
	}

	p := &parser{file: filename}
	doc, err := p.document(root.Content[0])
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type parser struct {
	file string
}

func (p *parser) errorf(n *yaml.Node, format string, args ...any) error {
	return &ParseError{
		File:   p.file,
		Line:   n.Line,
		Column: n.Column,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func (p *parser) document(n *yaml.Node) (*ir.Document, error) {
	n = deref(n)
	if n.Kind != yaml.MappingNode {
		return nil, p.errorf(n, "document must be a mapping")
	}

	doc := &ir.Document{}
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "resources":
			resources, err := p.resources(val)
			if err != nil {
				return nil, err
			}
			doc.Resources = resources
		case "outputs":
			outputs, err := p.mapping(val)
			if err != nil {
				return nil, err
			}
			doc.Outputs = outputs
		default:
			return nil, p.errorf(key, "unknown top-level key %q", key.Value)
		}
	}
	return doc, nil
}

func (p *parser) resources(n *yaml.Node) ([]*ir.Resource, error) {
	n = deref(n)
	if n.Kind != yaml.MappingNode {
		return nil, p.errorf(n, "resources must be a mapping of id to resource")
	}

	var resources []*ir.Resource
	seen := make(map[string]bool)
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		id := key.Value
		if id == "" {
			return nil, p.errorf(key, "resource id must not be empty")
		}
		if seen[id] {
			return nil, p.errorf(key, "duplicate resource id %q", id)
		}
		seen[id] = true

		res, err := p.resource(id, val)
		if err != nil {
			return nil, err
		}
		res.DeclIndex = len(resources)
		resources = append(resources, res)
	}
	return resources, nil
}

func (p *parser) resource(id string, n *yaml.Node) (*ir.Resource, error) {
	n = deref(n)
	if n.Kind != yaml.MappingNode {
		return nil, p.errorf(n, "resource %q must be a mapping", id)
	}

	res := &ir.Resource{ID: id, Properties: map[string]any{}}
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "type":
			res.Type = val.Value
		case "provider":
			res.Provider = val.Value
		case "dependsOn":
			deps, err := p.stringList(val)
			if err != nil {
				return nil, err
			}
			res.DependsOn = deps
		case "properties":
			props, err := p.mapping(val)
			if err != nil {
				return nil, err
			}
			res.Properties = props
		default:
			return nil, p.errorf(key, "resource %q: unknown key %q", id, key.Value)
		}
	}
	if res.Type == "" {
		return nil, p.errorf(n, "resource %q is missing a type", id)
	}
	return res, nil
}

// mapping decodes a YAML mapping into a property bag, normalizing
// intrinsics to ref:// placeholders and rejecting duplicate keys.
func (p *parser) mapping(n *yaml.Node) (map[string]any, error) {
	n = deref(n)
	if n.Kind != yaml.MappingNode {
		return nil, p.errorf(n, "expected a mapping")
	}

	m := make(map[string]any, len(n.Content)/2)
	for i := 0; i < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if _, dup := m[key.Value]; dup {
			return nil, p.errorf(key, "duplicate key %q", key.Value)
		}
		v, err := p.value(val)
		if err != nil {
			return nil, err
		}
		m[key.Value] = v
	}
	return m, nil
}

// value decodes a single YAML node, handling the reference intrinsics.
func (p *parser) value(n *yaml.Node) (any, error) {
	n = deref(n)

	switch n.Tag {
	case "!Ref":
		if n.Kind != yaml.ScalarNode || n.Value == "" {
			return nil, p.errorf(n, "!Ref expects a resource id")
		}
		// !Ref resolves to the provider-assigned id of the target node.
		return ir.MakeRef(n.Value, "id"), nil

	case "!GetAtt":
		return p.getAtt(n)
	}

	switch n.Kind {
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, p.errorf(n, "invalid scalar: %v", err)
		}
		return v, nil
	case yaml.SequenceNode:
		items := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := p.value(c)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case yaml.MappingNode:
		return p.mapping(n)
	default:
		return nil, p.errorf(n, "unsupported value")
	}
}

// getAtt accepts "node.attribute" as a scalar or [node, attribute] as a
// two-element sequence.
func (p *parser) getAtt(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		node, attr, ok := strings.Cut(n.Value, ".")
		if !ok || node == "" || attr == "" {
			return nil, p.errorf(n, "!GetAtt expects \"node.attribute\", got %q", n.Value)
		}
		return ir.MakeRef(node, attr), nil
	case yaml.SequenceNode:
		if len(n.Content) != 2 {
			return nil, p.errorf(n, "!GetAtt expects [node, attribute]")
		}
		node, attr := n.Content[0].Value, n.Content[1].Value
		if node == "" || attr == "" {
			return nil, p.errorf(n, "!GetAtt expects [node, attribute]")
		}
		return ir.MakeRef(node, attr), nil
	default:
		return nil, p.errorf(n, "!GetAtt expects a scalar or a sequence")
	}
}

func (p *parser) stringList(n *yaml.Node) ([]string, error) {
	n = deref(n)
	if n.Kind == yaml.ScalarNode {
		return []string{n.Value}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, p.errorf(n, "expected a string or list of strings")
	}
	var out []string
	for _, c := range n.Content {
		c = deref(c)
		if c.Kind != yaml.ScalarNode {
			return nil, p.errorf(c, "expected a string")
		}
		out = append(out, c.Value)
	}
	return out, nil
}

func deref(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
