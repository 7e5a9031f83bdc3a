package ir

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Outcome is the terminal status of one node in a run.
type Outcome string

const (
	// OutcomeApplied means the provider operation succeeded and the state
	// record was written (or deleted, for a delete operation).
	OutcomeApplied Outcome = "applied"

	// OutcomeFailed means the provider operation failed.
	OutcomeFailed Outcome = "failed"

	// OutcomeSkipped means a transitive dependency failed, so the node was
	// never dispatched.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeNoOp means the node needed no change.
	OutcomeNoOp Outcome = "noop"
)

// RunResult collects per-node outcomes for a single reconciliation run.
// A run is successful only if every node ended Applied or NoOp.
type RunResult struct {
	mu sync.Mutex

	RunID    string
	outcomes map[string]Outcome
	errs     map[string]error
}

func NewRunResult(runID string) *RunResult {
	return &RunResult{
		RunID:    runID,
		outcomes: make(map[string]Outcome),
		errs:     make(map[string]error),
	}
}

// Record sets the outcome for a node. err is kept for Failed nodes.
func (r *RunResult) Record(nodeID string, outcome Outcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[nodeID] = outcome
	if err != nil {
		r.errs[nodeID] = err
	}
}

// Outcome returns the recorded outcome for a node.
func (r *RunResult) Outcome(nodeID string) (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.outcomes[nodeID]
	return o, ok
}

// Nodes returns the node ids with a given outcome, sorted.
func (r *RunResult) Nodes(outcome Outcome) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, o := range r.outcomes {
		if o == outcome {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Counts returns the number of nodes per outcome.
func (r *RunResult) Counts() (applied, failed, skipped, noop int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.outcomes {
		switch o {
		case OutcomeApplied:
			applied++
		case OutcomeFailed:
			failed++
		case OutcomeSkipped:
			skipped++
		case OutcomeNoOp:
			noop++
		}
	}
	return
}

// Err aggregates all node failures. It returns nil only when every node
// ended Applied or NoOp.
func (r *RunResult) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failed, skipped []string
	for id, o := range r.outcomes {
		switch o {
		case OutcomeFailed:
			failed = append(failed, id)
		case OutcomeSkipped:
			skipped = append(skipped, id)
		}
	}
	if len(failed) == 0 && len(skipped) == 0 {
		return nil
	}
	sort.Strings(failed)

	if len(failed) == 0 {
		return fmt.Errorf("%d resource(s) skipped", len(skipped))
	}
	var errs []error
	for _, id := range failed {
		errs = append(errs, fmt.Errorf("%s: %w", id, r.errs[id]))
	}
	return fmt.Errorf("%d resource(s) failed, %d skipped: %w",
		len(failed), len(skipped), errors.Join(errs...))
}
