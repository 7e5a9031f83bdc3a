// Package memory implements an in-process adapter that keeps resources in a
// map. It backs tests and dry runs where no real infrastructure is wanted.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Call records a single adapter invocation.
type Call struct {
	Op           string
	ResourceType string
	ID           string
}

// Adapter stores resources in memory. Provider ids are sequential across
// the adapter ("r-1", "r-2", ...), in creation order.
type Adapter struct {
	mu        sync.Mutex
	seq       int
	resources map[string]map[string]any
	calls     []Call
	failures  map[string]error
}

func New() *Adapter {
	return &Adapter{
		resources: make(map[string]map[string]any),
		failures:  make(map[string]error),
	}
}

// FailWith makes every subsequent operation on the given resource type
// return err, until cleared with a nil err.
func (a *Adapter) FailWith(resourceType string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		delete(a.failures, resourceType)
		return
	}
	a.failures[resourceType] = err
}

// Calls returns a copy of the invocation log.
func (a *Adapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, len(a.calls))
	copy(out, a.calls)
	return out
}

// Len returns the number of live resources.
func (a *Adapter) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.resources)
}

func (a *Adapter) Create(ctx context.Context, resourceType string, props map[string]any) (string, map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Op: "create", ResourceType: resourceType})

	if err := a.failures[resourceType]; err != nil {
		return "", nil, err
	}

	a.seq++
	id := fmt.Sprintf("r-%d", a.seq)

	outputs := make(map[string]any, len(props)+1)
	for k, v := range props {
		outputs[k] = v
	}
	outputs["id"] = id

	a.resources[id] = outputs
	return id, outputs, nil
}

func (a *Adapter) Update(ctx context.Context, resourceType, id string, props map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Op: "update", ResourceType: resourceType, ID: id})

	if err := a.failures[resourceType]; err != nil {
		return nil, err
	}
	if _, exists := a.resources[id]; !exists {
		return nil, fmt.Errorf("resource %s not found", id)
	}

	outputs := make(map[string]any, len(props)+1)
	for k, v := range props {
		outputs[k] = v
	}
	outputs["id"] = id

	a.resources[id] = outputs
	return outputs, nil
}

func (a *Adapter) Delete(ctx context.Context, resourceType, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Op: "delete", ResourceType: resourceType, ID: id})

	if err := a.failures[resourceType]; err != nil {
		return err
	}

	// Deleting a resource that is already gone is not an error.
	delete(a.resources, id)
	return nil
}

func (a *Adapter) Describe(ctx context.Context, resourceType, id string) (bool, map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{Op: "describe", ResourceType: resourceType, ID: id})

	outputs, exists := a.resources[id]
	if !exists {
		return false, nil, nil
	}
	return true, outputs, nil
}
