package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_CreateAssignsSequentialIDs(t *testing.T) {
	a := New()
	ctx := context.Background()

	id1, outputs, err := a.Create(ctx, "memory:item", map[string]any{"name": "first"})
	require.NoError(t, err)
	assert.Equal(t, "r-1", id1)
	assert.Equal(t, "first", outputs["name"])
	assert.Equal(t, "r-1", outputs["id"])

	id2, _, err := a.Create(ctx, "memory:item", nil)
	require.NoError(t, err)
	assert.Equal(t, "r-2", id2)
	assert.Equal(t, 2, a.Len())
}

func TestAdapter_UpdateReplacesOutputs(t *testing.T) {
	a := New()
	ctx := context.Background()

	id, _, err := a.Create(ctx, "memory:item", map[string]any{"name": "before"})
	require.NoError(t, err)

	outputs, err := a.Update(ctx, "memory:item", id, map[string]any{"name": "after"})
	require.NoError(t, err)
	assert.Equal(t, "after", outputs["name"])
	assert.Equal(t, id, outputs["id"], "update keeps the provider id")

	_, err = a.Update(ctx, "memory:item", "r-999", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestAdapter_DeleteAndDescribe(t *testing.T) {
	a := New()
	ctx := context.Background()

	id, _, err := a.Create(ctx, "memory:item", nil)
	require.NoError(t, err)

	exists, outputs, err := a.Describe(ctx, "memory:item", id)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, id, outputs["id"])

	require.NoError(t, a.Delete(ctx, "memory:item", id))
	assert.Equal(t, 0, a.Len())

	exists, _, err = a.Describe(ctx, "memory:item", id)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAdapter_DeleteIsIdempotent(t *testing.T) {
	a := New()
	ctx := context.Background()

	id, _, err := a.Create(ctx, "memory:item", nil)
	require.NoError(t, err)

	require.NoError(t, a.Delete(ctx, "memory:item", id))

	// A retried delete (say, after a timeout whose remote effect did land)
	// must succeed so the run can converge.
	assert.NoError(t, a.Delete(ctx, "memory:item", id))
	assert.NoError(t, a.Delete(ctx, "memory:item", "r-999"))
	assert.Equal(t, 0, a.Len())
}

func TestAdapter_FailWith(t *testing.T) {
	a := New()
	ctx := context.Background()
	boom := errors.New("simulated outage")

	a.FailWith("memory:db", boom)

	_, _, err := a.Create(ctx, "memory:db", nil)
	require.ErrorIs(t, err, boom)

	// Other types are unaffected.
	_, _, err = a.Create(ctx, "memory:item", nil)
	require.NoError(t, err)

	a.FailWith("memory:db", nil)
	_, _, err = a.Create(ctx, "memory:db", nil)
	require.NoError(t, err)
}

func TestAdapter_CallLog(t *testing.T) {
	a := New()
	ctx := context.Background()

	id, _, err := a.Create(ctx, "memory:item", nil)
	require.NoError(t, err)
	require.NoError(t, a.Delete(ctx, "memory:item", id))

	calls := a.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "create", calls[0].Op)
	assert.Equal(t, "delete", calls[1].Op)
	assert.Equal(t, id, calls[1].ID)
}

func TestAdapter_CancelledContext(t *testing.T) {
	a := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := a.Create(ctx, "memory:item", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, a.Calls(), "cancelled calls are not logged")
}
