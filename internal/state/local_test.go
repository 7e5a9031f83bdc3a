package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relish-io/relish/internal/ir"
)

func testRecord(nodeID string) *ir.StateRecord {
	return &ir.StateRecord{
		NodeID:     nodeID,
		Type:       "memory:item",
		Provider:   "memory",
		ProviderID: "r-1",
		Inputs:     map[string]any{"name": "thing"},
		InputsHash: "abcdef0123456789",
		Outputs:    map[string]any{"id": "r-1", "name": "thing"},
	}
}

func TestLocalStore_SaveLoadDelete(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	records, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, records, "first load returns an empty map")

	require.NoError(t, store.Save(ctx, "vpc", testRecord("vpc")))
	require.NoError(t, store.Save(ctx, "subnet", testRecord("subnet")))

	records, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r-1", records["vpc"].ProviderID)
	assert.Equal(t, map[string]any{"name": "thing"}, records["vpc"].Inputs)

	require.NoError(t, store.Delete(ctx, "vpc"))
	records, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records, "subnet")

	// Deleting a missing record is not an error.
	assert.NoError(t, store.Delete(ctx, "vpc"))
}

func TestLocalStore_SaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "vpc", testRecord("vpc")))

	updated := testRecord("vpc")
	updated.ProviderID = "r-2"
	require.NoError(t, store.Save(ctx, "vpc", updated))

	records, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r-2", records["vpc"].ProviderID)

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Join(dir, "resources"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStore_RecordFilenamesAreEscaped(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "web/frontend", testRecord("web/frontend")))

	records, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, records, "web/frontend")
}

func TestLocalStore_Meta(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	meta, err := store.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Version)
	assert.Equal(t, 0, meta.Serial)
	assert.NotEmpty(t, meta.Lineage, "a fresh workspace gets a lineage")

	meta.Serial = 7
	meta.Outputs = map[string]any{"url": "example.com"}
	require.NoError(t, store.WriteMeta(ctx, meta))

	loaded, err := store.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Serial)
	assert.Equal(t, meta.Lineage, loaded.Lineage)
	assert.Equal(t, "example.com", loaded.Outputs["url"])
}

func TestLocalStore_CorruptRecordFailsLoad(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "vpc", testRecord("vpc")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resources", "vpc.json"), []byte("{broken"), 0644))

	_, err := store.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt state record")
}

func TestLocalStore_Lock(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Lock())
	err := store.Lock()
	require.Error(t, err, "second lock must fail while held")
	assert.Contains(t, err.Error(), "locked")

	require.NoError(t, store.Unlock())
	assert.NoError(t, store.Lock(), "lock can be re-acquired after unlock")
	require.NoError(t, store.Unlock())

	// Unlocking an unheld lock is not an error.
	assert.NoError(t, store.Unlock())
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(Config{Type: "local", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = NewStore(Config{Type: "local"})
	require.Error(t, err)

	_, err = NewStore(Config{Type: "etcd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")

	_, err = NewStore(Config{Type: "s3"})
	require.Error(t, err, "s3 backend requires a bucket")
}
