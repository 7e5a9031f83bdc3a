package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relish-io/relish/internal/ir"
	"github.com/relish-io/relish/internal/logging"
	"github.com/relish-io/relish/internal/provider"
)

// ApplyEvent represents a progress event during apply.
type ApplyEvent struct {
	NodeID   string
	Op       ir.Op
	Status   string // "started", "applied", "failed", "skipped"
	Duration time.Duration
	Error    error
}

// ApplyCallback is called for each apply event if set.
type ApplyCallback func(event ApplyEvent)

// Apply executes a plan. Provider failures are scoped to their node: the
// node is marked Failed, its transitive dependents are skipped, and
// independent branches continue. Already-applied nodes are never rolled
// back; a retry re-diffs from the state store and converges.
//
// The returned error reports run-level problems (cancellation, state
// backend failures). Per-node outcomes, including failures, are in the
// RunResult.
func (e *Engine) Apply(ctx context.Context, plan *ir.Plan) (*ir.RunResult, error) {
	return e.ApplyWithCallback(ctx, plan, nil)
}

// ApplyWithCallback executes a plan with progress event callbacks.
func (e *Engine) ApplyWithCallback(ctx context.Context, plan *ir.Plan, callback ApplyCallback) (*ir.RunResult, error) {
	result := ir.NewRunResult(uuid.NewString())

	live, err := e.store.Load(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load state: %w", err)
	}

	var mu sync.Mutex // serializes store writes and the live record map

	emit := func(event ApplyEvent) {
		if callback != nil {
			callback(event)
		}
	}

	var deletes, work []*ir.Change
	for _, change := range plan.Changes {
		switch change.Op {
		case ir.OpNoOp:
			result.Record(change.NodeID, ir.OutcomeNoOp, nil)
		case ir.OpDelete:
			deletes = append(deletes, change)
		default:
			work = append(work, change)
		}
	}

	// Deletes run first, sequentially, in plan order (dependents before the
	// nodes they depend on). A failed delete skips the deletion of the
	// nodes it still depends on.
	e.applyDeletes(ctx, deletes, live, &mu, result, emit)

	if e.Parallelism > 1 && len(work) > 1 {
		e.applyParallel(ctx, work, live, &mu, result, emit)
	} else {
		e.applySequential(ctx, work, live, &mu, result, emit)
	}

	if err := e.finishRun(ctx, plan, live, &mu); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("apply cancelled: %w", err)
	}
	return result, nil
}

func (e *Engine) applyDeletes(ctx context.Context, deletes []*ir.Change, live map[string]*ir.StateRecord, mu *sync.Mutex, result *ir.RunResult, emit func(ApplyEvent)) {
	blocked := make(map[string]bool) // ids whose deletion must not proceed
	for _, change := range deletes {
		if err := ctx.Err(); err != nil {
			result.Record(change.NodeID, ir.OutcomeSkipped, nil)
			continue
		}
		if blocked[change.NodeID] {
			result.Record(change.NodeID, ir.OutcomeSkipped, nil)
			emit(ApplyEvent{NodeID: change.NodeID, Op: change.Op, Status: "skipped"})
			e.blockDeletes(change, blocked)
			continue
		}

		start := time.Now()
		emit(ApplyEvent{NodeID: change.NodeID, Op: change.Op, Status: "started"})
		if err := e.deleteChange(ctx, change, live, mu); err != nil {
			result.Record(change.NodeID, ir.OutcomeFailed, err)
			emit(ApplyEvent{NodeID: change.NodeID, Op: change.Op, Status: "failed", Duration: time.Since(start), Error: err})
			e.blockDeletes(change, blocked)
			continue
		}
		result.Record(change.NodeID, ir.OutcomeApplied, nil)
		emit(ApplyEvent{NodeID: change.NodeID, Op: change.Op, Status: "applied", Duration: time.Since(start)})
	}
}

// blockDeletes marks the dependencies of a failed or skipped delete so they
// are not deleted while a dependent may still reference them.
func (e *Engine) blockDeletes(change *ir.Change, blocked map[string]bool) {
	if change.Prior == nil {
		return
	}
	for _, dep := range change.Prior.Dependencies {
		blocked[dep] = true
	}
}

func (e *Engine) applySequential(ctx context.Context, work []*ir.Change, live map[string]*ir.StateRecord, mu *sync.Mutex, result *ir.RunResult, emit func(ApplyEvent)) {
	for _, change := range work {
		if err := ctx.Err(); err != nil {
			result.Record(change.NodeID, ir.OutcomeSkipped, nil)
			continue
		}
		if skip := e.dependencyBlocked(change, result); skip {
			result.Record(change.NodeID, ir.OutcomeSkipped, nil)
			emit(ApplyEvent{NodeID: change.NodeID, Op: change.Op, Status: "skipped"})
			continue
		}

		start := time.Now()
		emit(ApplyEvent{NodeID: change.NodeID, Op: change.Op, Status: "started"})
		if err := e.applyChange(ctx, change, live, mu); err != nil {
			result.Record(change.NodeID, ir.OutcomeFailed, err)
			emit(ApplyEvent{NodeID: change.NodeID, Op: change.Op, Status: "failed", Duration: time.Since(start), Error: err})
			continue
		}
		result.Record(change.NodeID, ir.OutcomeApplied, nil)
		emit(ApplyEvent{NodeID: change.NodeID, Op: change.Op, Status: "applied", Duration: time.Since(start)})
	}
}

// dependencyBlocked reports whether any direct dependency of the change
// ended Failed or Skipped in this run. Dependencies without an outcome were
// satisfied by stored state.
func (e *Engine) dependencyBlocked(change *ir.Change, result *ir.RunResult) bool {
	for _, dep := range change.DependsOn {
		if outcome, ok := result.Outcome(dep); ok {
			if outcome == ir.OutcomeFailed || outcome == ir.OutcomeSkipped {
				return true
			}
		}
	}
	return false
}

// applyParallel dispatches independent branches concurrently. A node is
// dispatched only once every dependency planned in this run has completed;
// a failure synchronously blocks all transitive dependents.
func (e *Engine) applyParallel(ctx context.Context, work []*ir.Change, live map[string]*ir.StateRecord, mu *sync.Mutex, result *ir.RunResult, emit func(ApplyEvent)) {
	pending := make(map[string]bool, len(work))
	for _, c := range work {
		pending[c.NodeID] = true
	}

	// deps holds, per change, the dependencies that are part of this run.
	deps := make(map[string][]string, len(work))
	for _, c := range work {
		for _, dep := range c.DependsOn {
			if pending[dep] {
				deps[c.NodeID] = append(deps[c.NodeID], dep)
			}
		}
	}

	completed := make(map[string]bool)
	failed := make(map[string]bool) // includes skipped nodes
	gateMu := sync.Mutex{}
	gate := sync.NewCond(&gateMu)
	sem := make(chan struct{}, e.Parallelism)

	var wg sync.WaitGroup
	for _, change := range work {
		wg.Add(1)
		go func(c *ir.Change) {
			defer wg.Done()

			gateMu.Lock()
			for {
				ready := true
				blocked := false
				for _, dep := range deps[c.NodeID] {
					if failed[dep] {
						blocked = true
						break
					}
					if !completed[dep] {
						ready = false
						break
					}
				}
				if blocked {
					failed[c.NodeID] = true
					gateMu.Unlock()
					result.Record(c.NodeID, ir.OutcomeSkipped, nil)
					emit(ApplyEvent{NodeID: c.NodeID, Op: c.Op, Status: "skipped"})
					gate.Broadcast()
					return
				}
				if ready {
					break
				}
				gate.Wait()
			}
			gateMu.Unlock()

			if err := ctx.Err(); err != nil {
				gateMu.Lock()
				failed[c.NodeID] = true
				gateMu.Unlock()
				result.Record(c.NodeID, ir.OutcomeSkipped, nil)
				gate.Broadcast()
				return
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			emit(ApplyEvent{NodeID: c.NodeID, Op: c.Op, Status: "started"})

			if err := e.applyChange(ctx, c, live, mu); err != nil {
				result.Record(c.NodeID, ir.OutcomeFailed, err)
				emit(ApplyEvent{NodeID: c.NodeID, Op: c.Op, Status: "failed", Duration: time.Since(start), Error: err})
				gateMu.Lock()
				failed[c.NodeID] = true
				gateMu.Unlock()
				gate.Broadcast()
				return
			}

			result.Record(c.NodeID, ir.OutcomeApplied, nil)
			emit(ApplyEvent{NodeID: c.NodeID, Op: c.Op, Status: "applied", Duration: time.Since(start)})

			gateMu.Lock()
			completed[c.NodeID] = true
			gateMu.Unlock()
			gate.Broadcast()
		}(change)
	}
	wg.Wait()
}

// applyChange resolves the node's references against already-applied
// dependency outputs, invokes the adapter, and writes the new state record
// only after the provider call succeeded.
func (e *Engine) applyChange(ctx context.Context, change *ir.Change, live map[string]*ir.StateRecord, mu *sync.Mutex) error {
	logging.Debug("applying change", "node", change.NodeID, "op", change.Op)

	ctx, cancel := WithTimeout(ctx, e.Timeout)
	defer cancel()

	mu.Lock()
	resolved, unresolved := ResolveInputs(change.Desired, recordLookup(live))
	mu.Unlock()
	if len(unresolved) > 0 {
		return fmt.Errorf("unresolved reference(s) for %s: %s",
			change.NodeID, strings.Join(unresolved, ", "))
	}

	adapter, err := e.registry.Get(change.Provider)
	if err != nil {
		return err
	}

	var providerID string
	var outputs map[string]any

	callErr := RetryWithBackoff(ctx, e.Retry, func() error {
		var opErr error
		switch change.Op {
		case ir.OpCreate:
			providerID, outputs, opErr = adapter.Create(ctx, change.Type, resolved)
		case ir.OpUpdate:
			providerID = change.Prior.ProviderID
			outputs, opErr = adapter.Update(ctx, change.Type, providerID, resolved)
		default:
			opErr = fmt.Errorf("unexpected operation %q", change.Op)
		}
		return opErr
	}, IsTransientError)
	if callErr != nil {
		return &provider.Error{
			Provider:     change.Provider,
			ResourceType: change.Type,
			Op:           string(change.Op),
			Err:          callErr,
		}
	}

	// An update may replace the underlying object (containers are
	// recreated under the same name); adapters report the canonical id in
	// the outputs.
	if v, ok := outputs["id"].(string); ok && v != "" {
		providerID = v
	}

	hash, err := HashInputs(resolved)
	if err != nil {
		return err
	}

	record := &ir.StateRecord{
		NodeID:       change.NodeID,
		Type:         change.Type,
		Provider:     change.Provider,
		ProviderID:   providerID,
		Inputs:       resolved,
		InputsHash:   hash,
		Outputs:      outputs,
		Dependencies: change.DependsOn,
		AppliedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	mu.Lock()
	defer mu.Unlock()
	if err := e.store.Save(ctx, change.NodeID, record); err != nil {
		return fmt.Errorf("applied %s but failed to record state: %w", change.NodeID, err)
	}
	live[change.NodeID] = record
	return nil
}

func (e *Engine) deleteChange(ctx context.Context, change *ir.Change, live map[string]*ir.StateRecord, mu *sync.Mutex) error {
	logging.Debug("deleting resource", "node", change.NodeID, "type", change.Type)

	ctx, cancel := WithTimeout(ctx, e.Timeout)
	defer cancel()

	adapter, err := e.registry.Get(change.Provider)
	if err != nil {
		return err
	}

	callErr := RetryWithBackoff(ctx, e.Retry, func() error {
		return adapter.Delete(ctx, change.Type, change.Prior.ProviderID)
	}, IsTransientError)
	if callErr != nil {
		return &provider.Error{
			Provider:     change.Provider,
			ResourceType: change.Type,
			Op:           string(ir.OpDelete),
			Err:          callErr,
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if err := e.store.Delete(ctx, change.NodeID); err != nil {
		return fmt.Errorf("deleted %s but failed to remove state record: %w", change.NodeID, err)
	}
	delete(live, change.NodeID)
	return nil
}

// finishRun bumps the state serial and records document outputs, resolving
// them against the records this run produced. Placeholders for outputs of
// failed nodes are left in place.
func (e *Engine) finishRun(ctx context.Context, plan *ir.Plan, live map[string]*ir.StateRecord, mu *sync.Mutex) error {
	meta, err := e.store.Meta(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state metadata: %w", err)
	}
	meta.Serial++

	if len(plan.Outputs) > 0 {
		mu.Lock()
		resolved, _ := ResolveInputs(plan.Outputs, recordLookup(live))
		mu.Unlock()
		meta.Outputs = resolved
	}

	if err := e.store.WriteMeta(ctx, meta); err != nil {
		return fmt.Errorf("failed to write state metadata: %w", err)
	}
	return nil
}
