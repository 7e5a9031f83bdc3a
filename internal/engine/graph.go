package engine

import (
	"sort"

	"github.com/relish-io/relish/internal/ir"
)

// DAG is the dependency graph of a document, with precomputed creation and
// destruction orders.
type DAG struct {
	nodes    map[string]*dagNode
	order    []string // topological order (creation order)
	revOrder []string // reverse topological order (destruction order)
}

type dagNode struct {
	id        string
	declIndex int
	edges     []string // node ids this node depends on
	revEdges  []string // node ids that depend on this node
}

// BuildDAG constructs the dependency graph from declared resources. Edges
// come from explicit dependsOn entries and from ref:// placeholders embedded
// in property bags. Every edge target must exist in the document, and the
// graph must be acyclic, or no apply will be attempted.
func BuildDAG(resources []*ir.Resource) (*DAG, error) {
	dag := &DAG{nodes: make(map[string]*dagNode, len(resources))}

	for _, res := range resources {
		dag.nodes[res.ID] = &dagNode{id: res.ID, declIndex: res.DeclIndex}
	}

	for _, res := range resources {
		node := dag.nodes[res.ID]
		seen := make(map[string]bool)

		for _, dep := range res.DependsOn {
			if _, ok := dag.nodes[dep]; !ok {
				return nil, &ReferenceError{Source: res.ID, Target: dep}
			}
			if !seen[dep] {
				seen[dep] = true
				node.edges = append(node.edges, dep)
			}
		}

		for _, ref := range ir.ExtractRefs(res.Properties) {
			dep, attr, ok := ir.ParseRef(ref)
			if !ok {
				continue
			}
			if _, exists := dag.nodes[dep]; !exists {
				return nil, &ReferenceError{Source: res.ID, Target: dep, Attribute: attr}
			}
			if !seen[dep] {
				seen[dep] = true
				node.edges = append(node.edges, dep)
			}
		}
	}

	return dag.finish()
}

// BuildStateDAG constructs a graph from stored records, using the recorded
// dependency ids. Edges to records outside the set are dropped; ordering
// among independent records falls back to the node id.
func BuildStateDAG(records map[string]*ir.StateRecord) (*DAG, error) {
	dag := &DAG{nodes: make(map[string]*dagNode, len(records))}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, id := range ids {
		dag.nodes[id] = &dagNode{id: id, declIndex: i}
	}
	for _, id := range ids {
		node := dag.nodes[id]
		for _, dep := range records[id].Dependencies {
			if _, ok := dag.nodes[dep]; ok {
				node.edges = append(node.edges, dep)
			}
		}
	}

	return dag.finish()
}

func (d *DAG) finish() (*DAG, error) {
	for _, node := range d.nodes {
		for _, dep := range node.edges {
			d.nodes[dep].revEdges = append(d.nodes[dep].revEdges, node.id)
		}
	}

	order, err := d.topoSort()
	if err != nil {
		return nil, err
	}
	d.order = order

	d.revOrder = make([]string, len(order))
	for i, id := range order {
		d.revOrder[len(order)-1-i] = id
	}
	return d, nil
}

// CreationOrder returns node ids in dependency-respecting creation order.
// Ties among independent nodes are broken by declaration order, so the
// result is deterministic for a given document.
func (d *DAG) CreationOrder() []string {
	return d.order
}

// DestructionOrder returns node ids in reverse dependency order, safe for
// deletion: every node precedes the nodes it depends on.
func (d *DAG) DestructionOrder() []string {
	return d.revOrder
}

// Dependencies returns the direct dependency ids of a node.
func (d *DAG) Dependencies(id string) []string {
	if node, ok := d.nodes[id]; ok {
		return node.edges
	}
	return nil
}

// Dependents returns the node ids that directly depend on the given node.
func (d *DAG) Dependents(id string) []string {
	if node, ok := d.nodes[id]; ok {
		return node.revEdges
	}
	return nil
}

// topoSort runs Kahn's algorithm with a ready queue ordered by declaration
// index, which keeps output stable across runs.
func (d *DAG) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for id, node := range d.nodes {
		inDegree[id] = len(node.edges)
	}

	var ready []string
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	d.sortByDecl(ready)

	sorted := make([]string, 0, len(d.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		sorted = append(sorted, id)

		released := false
		for _, dependent := range d.nodes[id].revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
				released = true
			}
		}
		if released {
			d.sortByDecl(ready)
		}
	}

	if len(sorted) != len(d.nodes) {
		return nil, &CycleError{Nodes: d.findCycle(inDegree)}
	}
	return sorted, nil
}

func (d *DAG) sortByDecl(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return d.nodes[ids[i]].declIndex < d.nodes[ids[j]].declIndex
	})
}

// findCycle walks the unfinished portion of the graph and extracts one
// minimal cycle for the error message.
func (d *DAG) findCycle(inDegree map[string]int) []string {
	remaining := make(map[string]bool)
	var start string
	for id, deg := range inDegree {
		if deg > 0 {
			remaining[id] = true
			if start == "" || d.nodes[id].declIndex < d.nodes[start].declIndex {
				start = id
			}
		}
	}

	// Follow dependency edges inside the remaining set until a node repeats.
	pos := make(map[string]int)
	var path []string
	cur := start
	for {
		if at, seen := pos[cur]; seen {
			return path[at:]
		}
		pos[cur] = len(path)
		path = append(path, cur)

		next := ""
		for _, dep := range d.nodes[cur].edges {
			if remaining[dep] {
				next = dep
				break
			}
		}
		if next == "" {
			return path
		}
		cur = next
	}
}
