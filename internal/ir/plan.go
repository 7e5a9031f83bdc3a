package ir

// Op is a planned operation for a single node.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpNoOp   Op = "noop"
)

// Plan is an ordered sequence of per-node changes. Delete changes come first,
// dependents before their dependencies; create/update changes follow in
// forward dependency order.
type Plan struct {
	CreatedAt string
	Changes   []*Change
	Summary   Summary
	Outputs   map[string]any
}

// Change is one (node, operation) pair in a plan.
type Change struct {
	NodeID   string
	Op       Op
	Type     string
	Provider string

	// Desired is the declared property bag for create/update, with
	// ref:// placeholders still in place. They are resolved at apply time.
	Desired map[string]any

	// Prior is the stored record for update/delete.
	Prior *StateRecord

	// DependsOn lists the direct dependency node ids, taken from the
	// dependency graph at plan time.
	DependsOn []string

	// Diff maps property names to their planned change, for rendering.
	Diff map[string]*PropertyDiff
}

// PropertyDiff describes the planned change of a single property.
type PropertyDiff struct {
	Before any
	After  any
	Action string // "create", "update", "delete"
}

// Summary holds per-operation counts for a plan.
type Summary struct {
	Create int
	Update int
	Delete int
	NoOp   int
}

// HasChanges reports whether the plan contains any operation besides NoOp.
func (p *Plan) HasChanges() bool {
	return p.Summary.Create+p.Summary.Update+p.Summary.Delete > 0
}
