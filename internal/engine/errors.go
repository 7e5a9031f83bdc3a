package engine

import (
	"fmt"
	"strings"
)

// CycleError reports a reference cycle in the resource graph. Cycles are
// always invalid: no resource may depend on its own output. The error names
// one minimal cycle. It is fatal and raised before any provider call.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	cycle := append([]string{}, e.Nodes...)
	if len(cycle) > 0 {
		cycle = append(cycle, cycle[0])
	}
	return fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> "))
}

// ReferenceError reports a reference to a node that does not exist in the
// document. It is fatal and raised at graph build time.
type ReferenceError struct {
	Source    string
	Target    string
	Attribute string
}

func (e *ReferenceError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("resource %q references undefined resource %q (attribute %q)",
			e.Source, e.Target, e.Attribute)
	}
	return fmt.Sprintf("resource %q depends on undefined resource %q", e.Source, e.Target)
}
