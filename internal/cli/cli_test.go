package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relish-io/relish/internal/ir"
	"github.com/relish-io/relish/internal/provider"
	"github.com/relish-io/relish/internal/state"
)

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestResolveTemplate(t *testing.T) {
	path := writeTemplate(t, "resources:\n  a:\n    type: memory:item\n")

	got, err := resolveTemplate([]string{path})
	require.NoError(t, err)
	assert.Equal(t, path, got)

	// A directory argument means main.yaml inside it.
	got, err = resolveTemplate([]string{filepath.Dir(path)})
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = resolveTemplate([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestBuildStore_LocalDefaultsNextToTemplate(t *testing.T) {
	rootBackend = "local"
	rootStateDir = ""

	dir := t.TempDir()
	store, err := buildStore(filepath.Join(dir, "main.yaml"))
	require.NoError(t, err)
	require.IsType(t, &state.LocalStore{}, store)
}

func TestBuildStore_ExplicitStateDir(t *testing.T) {
	rootBackend = "local"
	rootStateDir = t.TempDir()
	defer func() { rootStateDir = "" }()

	store, err := buildStore("/elsewhere/main.yaml")
	require.NoError(t, err)
	assert.IsType(t, &state.LocalStore{}, store)
}

func TestLoadProviders(t *testing.T) {
	registry := provider.NewRegistry()

	doc := &ir.Document{
		Resources: []*ir.Resource{
			{ID: "a", Type: "memory:item"},
			{ID: "b", Type: "memory:item"},
		},
	}
	require.NoError(t, loadProviders(registry, doc, nil))

	_, err := registry.Get("memory")
	assert.NoError(t, err, "the memory adapter should be loaded for memory:* types")
}

func TestLoadProviders_UnknownProvider(t *testing.T) {
	registry := provider.NewRegistry()

	records := map[string]*ir.StateRecord{
		"x": {NodeID: "x", Provider: "carrier-pigeon"},
	}
	err := loadProviders(registry, nil, records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nil", nil, "null"},
		{"string", "hello", `"hello"`},
		{"int", 42, "42"},
		{"bool", true, "true"},
		{"list", []any{"a", "b"}, "[a b]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.input))
		})
	}
}

func TestRunValidate(t *testing.T) {
	valid := writeTemplate(t, `
resources:
  a:
    type: memory:item
  b:
    type: memory:item
    dependsOn: [a]
`)
	assert.NoError(t, runValidate(validateCmd, []string{valid}))

	cyclic := writeTemplate(t, `
resources:
  a:
    type: memory:item
    dependsOn: [b]
  b:
    type: memory:item
    dependsOn: [a]
`)
	err := runValidate(validateCmd, []string{cyclic})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	dangling := writeTemplate(t, `
resources:
  a:
    type: memory:item
    properties:
      parent: !Ref ghost
`)
	err = runValidate(validateCmd, []string{dangling})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestRunValidate_ExampleTemplates(t *testing.T) {
	assert.NoError(t, runValidate(validateCmd, []string{"../../examples/wordpress.yaml"}))
	assert.NoError(t, runValidate(validateCmd, []string{"../../examples/docker-wordpress.yaml"}))
}
