package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relish-io/relish/internal/ir"
	"github.com/relish-io/relish/internal/provider"
	"github.com/relish-io/relish/internal/state"
	"github.com/relish-io/relish/providers/memory"
)

// testEngine wires an engine over a temp-dir local store and an in-memory
// adapter registered for every provider name the tests use.
func testEngine(t *testing.T) (*Engine, *memory.Adapter, state.Store) {
	t.Helper()

	store := state.NewLocalStore(t.TempDir())
	adapter := memory.New()

	registry := provider.NewRegistry()
	registry.Register("memory", adapter)

	return NewEngine(registry, store), adapter, store
}

func testDoc() *ir.Document {
	return &ir.Document{
		Resources: []*ir.Resource{
			{
				ID:         "a",
				Type:       "memory:item",
				DeclIndex:  0,
				Properties: map[string]any{"name": "first"},
			},
			{
				ID:        "b",
				Type:      "memory:item",
				DeclIndex: 1,
				Properties: map[string]any{
					"name":   "second",
					"parent": "ref://a/id",
				},
			},
		},
		Outputs: map[string]any{
			"parentId": "ref://a/id",
		},
	}
}

func TestCreatePlan_FirstRunCreatesEverything(t *testing.T) {
	eng, _, _ := testEngine(t)

	plan, err := eng.CreatePlan(context.Background(), testDoc())
	require.NoError(t, err)

	require.Len(t, plan.Changes, 2)
	assert.Equal(t, "a", plan.Changes[0].NodeID)
	assert.Equal(t, ir.OpCreate, plan.Changes[0].Op)
	assert.Equal(t, "b", plan.Changes[1].NodeID)
	assert.Equal(t, ir.OpCreate, plan.Changes[1].Op)
	assert.Equal(t, []string{"a"}, plan.Changes[1].DependsOn)

	assert.Equal(t, 2, plan.Summary.Create)
	assert.True(t, plan.HasChanges())
}

func TestCreatePlan_UnchangedIsNoOp(t *testing.T) {
	eng, _, store := testEngine(t)
	ctx := context.Background()

	_, err := eng.Apply(ctx, mustPlan(t, eng, testDoc()))
	require.NoError(t, err)

	plan, err := eng.CreatePlan(ctx, testDoc())
	require.NoError(t, err)

	// NoOp changes are still listed so apply can expose their outputs.
	require.Len(t, plan.Changes, 2)
	for _, change := range plan.Changes {
		assert.Equal(t, ir.OpNoOp, change.Op)
	}
	assert.Equal(t, 2, plan.Summary.NoOp)
	assert.False(t, plan.HasChanges())

	records, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestCreatePlan_PropertyChangeIsUpdate(t *testing.T) {
	eng, _, _ := testEngine(t)
	ctx := context.Background()

	_, err := eng.Apply(ctx, mustPlan(t, eng, testDoc()))
	require.NoError(t, err)

	doc := testDoc()
	doc.Resources[0].Properties["name"] = "renamed"

	plan, err := eng.CreatePlan(ctx, doc)
	require.NoError(t, err)

	assert.Equal(t, 1, plan.Summary.Update)
	assert.Equal(t, 1, plan.Summary.NoOp)

	require.Equal(t, "a", plan.Changes[0].NodeID)
	assert.Equal(t, ir.OpUpdate, plan.Changes[0].Op)
	diff, ok := plan.Changes[0].Diff["name"]
	require.True(t, ok)
	assert.Equal(t, "update", diff.Action)
	assert.Equal(t, "first", diff.Before)
	assert.Equal(t, "renamed", diff.After)
}

func TestCreatePlan_RemovedResourceIsDeletedFirst(t *testing.T) {
	eng, _, _ := testEngine(t)
	ctx := context.Background()

	_, err := eng.Apply(ctx, mustPlan(t, eng, testDoc()))
	require.NoError(t, err)

	doc := testDoc()
	doc.Resources = doc.Resources[:1] // drop b

	plan, err := eng.CreatePlan(ctx, doc)
	require.NoError(t, err)

	require.NotEmpty(t, plan.Changes)
	assert.Equal(t, "b", plan.Changes[0].NodeID)
	assert.Equal(t, ir.OpDelete, plan.Changes[0].Op)
	assert.Equal(t, 1, plan.Summary.Delete)
	assert.Equal(t, 1, plan.Summary.NoOp)
}

func TestCreatePlan_CycleFailsBeforeAnyProviderCall(t *testing.T) {
	eng, adapter, _ := testEngine(t)

	doc := &ir.Document{
		Resources: []*ir.Resource{
			{ID: "a", Type: "memory:item", DeclIndex: 0,
				Properties: map[string]any{"ref": "ref://b/id"}},
			{ID: "b", Type: "memory:item", DeclIndex: 1,
				Properties: map[string]any{"ref": "ref://a/id"}},
		},
	}

	plan, err := eng.CreatePlan(context.Background(), doc)
	require.Error(t, err)
	assert.Nil(t, plan)

	var cycleErr *CycleError
	assert.ErrorAs(t, err, &cycleErr)
	assert.Empty(t, adapter.Calls(), "no adapter call may happen for an invalid document")
}

func TestCreatePlan_StaleDependencyOutputPropagates(t *testing.T) {
	eng, _, store := testEngine(t)
	ctx := context.Background()

	_, err := eng.Apply(ctx, mustPlan(t, eng, testDoc()))
	require.NoError(t, err)

	// Rewrite a's stored output behind the engine's back; b's resolved
	// inputs now differ from its stored hash.
	records, err := store.Load(ctx)
	require.NoError(t, err)
	recA := records["a"]
	recA.Outputs["id"] = "r-999"
	require.NoError(t, store.Save(ctx, "a", recA))

	plan, err := eng.CreatePlan(ctx, testDoc())
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Summary.Update)

	for _, change := range plan.Changes {
		if change.NodeID == "b" {
			assert.Equal(t, ir.OpUpdate, change.Op)
		}
	}
}

func TestCreateDestroyPlan_DependentsFirst(t *testing.T) {
	eng, _, _ := testEngine(t)
	ctx := context.Background()

	_, err := eng.Apply(ctx, mustPlan(t, eng, testDoc()))
	require.NoError(t, err)

	plan, err := eng.CreateDestroyPlan(ctx)
	require.NoError(t, err)

	require.Len(t, plan.Changes, 2)
	assert.Equal(t, "b", plan.Changes[0].NodeID, "dependent must be deleted first")
	assert.Equal(t, "a", plan.Changes[1].NodeID)
	for _, change := range plan.Changes {
		assert.Equal(t, ir.OpDelete, change.Op)
	}
}

func TestCreateDestroyPlan_EmptyState(t *testing.T) {
	eng, _, _ := testEngine(t)

	plan, err := eng.CreateDestroyPlan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, plan.Changes)
	assert.False(t, plan.HasChanges())
}

func TestPlanTimestamp(t *testing.T) {
	eng, _, _ := testEngine(t)

	plan, err := eng.CreatePlan(context.Background(), testDoc())
	require.NoError(t, err)

	ts, err := time.Parse(time.RFC3339, plan.CreatedAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}

func mustPlan(t *testing.T, eng *Engine, doc *ir.Document) *ir.Plan {
	t.Helper()
	plan, err := eng.CreatePlan(context.Background(), doc)
	require.NoError(t, err)
	return plan
}
