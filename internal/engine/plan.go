// Package engine builds dependency graphs from declared resources, diffs
// them against stored state, and reconciles the difference through provider
// adapters.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/relish-io/relish/internal/ir"
	"github.com/relish-io/relish/internal/logging"
	"github.com/relish-io/relish/internal/provider"
	"github.com/relish-io/relish/internal/state"
)

// Engine orchestrates the lifecycle of declared resources.
type Engine struct {
	registry *provider.Registry
	store    state.Store

	// Parallelism bounds concurrent provider calls during apply. The
	// default of 1 executes strictly in plan order.
	Parallelism int

	// Timeout is the per-operation provider call timeout.
	Timeout time.Duration

	// Retry overrides the default retry policy for transient errors.
	Retry *RetryPolicy
}

func NewEngine(registry *provider.Registry, store state.Store) *Engine {
	return &Engine{
		registry:    registry,
		store:       store,
		Parallelism: 1,
	}
}

// CreatePlan diffs the declared document against stored state and returns
// the ordered set of operations required to converge. Structural errors
// (reference to an undefined node, dependency cycle) fail the plan before
// any provider is consulted.
func (e *Engine) CreatePlan(ctx context.Context, doc *ir.Document) (*ir.Plan, error) {
	records, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return e.planAgainst(ctx, doc, records)
}

func (e *Engine) planAgainst(ctx context.Context, doc *ir.Document, records map[string]*ir.StateRecord) (*ir.Plan, error) {
	logging.Debug("creating plan", "resources", len(doc.Resources), "state_records", len(records))

	dag, err := BuildDAG(doc.Resources)
	if err != nil {
		return nil, err
	}

	plan := &ir.Plan{
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Outputs:   doc.Outputs,
	}

	byID := make(map[string]*ir.Resource, len(doc.Resources))
	for _, res := range doc.Resources {
		byID[res.ID] = res
	}

	// Records with no declared counterpart are deleted first, dependents
	// before the nodes they depend on.
	removed := make(map[string]*ir.StateRecord)
	for id, rec := range records {
		if _, declared := byID[id]; !declared {
			removed[id] = rec
		}
	}
	if len(removed) > 0 {
		stateDAG, err := BuildStateDAG(removed)
		if err != nil {
			return nil, err
		}
		for _, id := range stateDAG.DestructionOrder() {
			rec := removed[id]
			plan.Changes = append(plan.Changes, &ir.Change{
				NodeID:   id,
				Op:       ir.OpDelete,
				Type:     rec.Type,
				Provider: rec.Provider,
				Prior:    rec,
				Diff:     deleteDiff(rec.Inputs),
			})
			plan.Summary.Delete++
		}
	}

	// Declared nodes follow in forward dependency order. References are
	// resolved against stored dependency outputs where known; placeholders
	// for outputs this run will produce stay in place until apply.
	lookup := recordLookup(records)
	for _, id := range dag.CreationOrder() {
		res := byID[id]
		change := &ir.Change{
			NodeID:    id,
			Op:        ir.OpNoOp,
			Type:      res.Type,
			Provider:  res.ProviderName(),
			Desired:   res.Properties,
			DependsOn: dag.Dependencies(id),
		}

		rec, known := records[id]
		if !known {
			change.Op = ir.OpCreate
			change.Diff = createDiff(res.Properties)
			plan.Summary.Create++
			plan.Changes = append(plan.Changes, change)
			continue
		}
		change.Prior = rec

		resolved, _ := ResolveInputs(res.Properties, lookup)
		hash, err := HashInputs(resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to hash properties for %s: %w", id, err)
		}

		if hash != rec.InputsHash {
			change.Op = ir.OpUpdate
			change.Diff = updateDiff(rec.Inputs, resolved)
			plan.Summary.Update++
		} else {
			plan.Summary.NoOp++
		}
		plan.Changes = append(plan.Changes, change)
	}

	return plan, nil
}

// CreateDestroyPlan plans the deletion of every stored record, dependents
// first. The declared document is ignored.
func (e *Engine) CreateDestroyPlan(ctx context.Context) (*ir.Plan, error) {
	records, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	plan := &ir.Plan{
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if len(records) == 0 {
		return plan, nil
	}

	stateDAG, err := BuildStateDAG(records)
	if err != nil {
		return nil, err
	}
	for _, id := range stateDAG.DestructionOrder() {
		rec := records[id]
		plan.Changes = append(plan.Changes, &ir.Change{
			NodeID:   id,
			Op:       ir.OpDelete,
			Type:     rec.Type,
			Provider: rec.Provider,
			Prior:    rec,
			Diff:     deleteDiff(rec.Inputs),
		})
		plan.Summary.Delete++
	}
	return plan, nil
}

// updateDiff compares prior and desired properties and returns a diff map.
func updateDiff(prior, desired map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff)

	allKeys := make(map[string]bool)
	for k := range prior {
		allKeys[k] = true
	}
	for k := range desired {
		allKeys[k] = true
	}

	for k := range allKeys {
		priorVal, inPrior := prior[k]
		desiredVal, inDesired := desired[k]

		switch {
		case !inPrior:
			diff[k] = &ir.PropertyDiff{After: desiredVal, Action: "create"}
		case !inDesired:
			diff[k] = &ir.PropertyDiff{Before: priorVal, Action: "delete"}
		case fmt.Sprintf("%v", priorVal) != fmt.Sprintf("%v", desiredVal):
			diff[k] = &ir.PropertyDiff{Before: priorVal, After: desiredVal, Action: "update"}
		}
	}
	return diff
}

func createDiff(props map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff)
	for k, v := range props {
		diff[k] = &ir.PropertyDiff{After: v, Action: "create"}
	}
	return diff
}

func deleteDiff(props map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff)
	for k, v := range props {
		diff[k] = &ir.PropertyDiff{Before: v, Action: "delete"}
	}
	return diff
}
