// Package provider defines the boundary between the reconciliation engine
// and concrete backends, and the registry of built-in adapters.
package provider

import (
	"context"
	"fmt"
)

// Adapter translates abstract resource operations into real API calls for a
// single backend. Every call is treated as slow and fallible; implementations
// must be safe to retry, since a timed-out call gives no guarantee about the
// remote side effect.
type Adapter interface {
	// Create provisions a new resource and returns its provider-assigned id
	// together with the computed output attributes.
	Create(ctx context.Context, resourceType string, props map[string]any) (id string, outputs map[string]any, err error)

	// Update reconfigures an existing resource in place and returns the new
	// output attributes. The provider id does not change.
	Update(ctx context.Context, resourceType, id string, props map[string]any) (outputs map[string]any, err error)

	// Delete removes a resource. Deleting a resource that is already gone
	// is not an error.
	Delete(ctx context.Context, resourceType, id string) error

	// Describe reads the current remote attributes of a resource.
	Describe(ctx context.Context, resourceType, id string) (exists bool, outputs map[string]any, err error)
}

// Error wraps a failed adapter operation with its context. A provider error
// is scoped to one node: the run continues for independent branches.
type Error struct {
	Provider     string
	ResourceType string
	Op           string
	Err          error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s %s: %v", e.Provider, e.Op, e.ResourceType, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
