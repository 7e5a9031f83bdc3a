package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptRecord_NoKeyIsPassthrough(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "")

	content := []byte(`{"nodeId":"vpc"}`)
	out, err := EncryptRecord(content)
	require.NoError(t, err)
	assert.Equal(t, content, out)
	assert.False(t, IsEncrypted(out))
}

func TestEncryptRecord_RoundTrip(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "test-key")

	content := []byte(`{"nodeId":"vpc","inputs":{"cidrBlock":"10.0.0.0/16"}}`)
	encrypted, err := EncryptRecord(content)
	require.NoError(t, err)

	assert.True(t, IsEncrypted(encrypted))
	assert.NotContains(t, string(encrypted), "cidrBlock")

	decrypted, err := DecryptRecord(encrypted)
	require.NoError(t, err)
	assert.Equal(t, content, decrypted)
}

func TestDecryptRecord_WrongKeyFails(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "first-key")
	encrypted, err := EncryptRecord([]byte("secret"))
	require.NoError(t, err)

	t.Setenv(EncryptionKeyEnvVar, "other-key")
	_, err = DecryptRecord(encrypted)
	require.Error(t, err)
}

func TestDecryptRecord_MissingKeyFails(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "test-key")
	encrypted, err := EncryptRecord([]byte("secret"))
	require.NoError(t, err)

	t.Setenv(EncryptionKeyEnvVar, "")
	_, err = DecryptRecord(encrypted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EncryptionKeyEnvVar)
}

func TestLocalStore_EncryptedAtRest(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "test-key")

	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "db", testRecord("db")))

	raw, err := os.ReadFile(filepath.Join(dir, "resources", "db.json"))
	require.NoError(t, err)
	assert.True(t, IsEncrypted(raw))
	assert.NotContains(t, string(raw), "r-1", "plaintext must not hit disk")

	records, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r-1", records["db"].ProviderID)
}
