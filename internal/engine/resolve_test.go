package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relish-io/relish/internal/ir"
)

func TestResolveInputs_SubstitutesKnownRefs(t *testing.T) {
	records := map[string]*ir.StateRecord{
		"vpc": {
			NodeID:  "vpc",
			Outputs: map[string]any{"id": "vpc-123"},
			Inputs:  map[string]any{"cidrBlock": "10.0.0.0/16"},
		},
	}

	props := map[string]any{
		"vpcId": "ref://vpc/id",
		"cidr":  "ref://vpc/cidrBlock",
		"name":  "subnet-a",
		"nested": map[string]any{
			"list": []any{"ref://vpc/id", "literal"},
		},
	}

	resolved, unresolved := ResolveInputs(props, recordLookup(records))
	require.Empty(t, unresolved)

	assert.Equal(t, "vpc-123", resolved["vpcId"])
	// Outputs are missing cidrBlock, so the applied input is used.
	assert.Equal(t, "10.0.0.0/16", resolved["cidr"])
	assert.Equal(t, "subnet-a", resolved["name"])

	nested := resolved["nested"].(map[string]any)
	assert.Equal(t, []any{"vpc-123", "literal"}, nested["list"])
}

func TestResolveInputs_LeavesUnknownRefsInPlace(t *testing.T) {
	props := map[string]any{
		"vpcId": "ref://vpc/id",
		"name":  "subnet-a",
	}

	resolved, unresolved := ResolveInputs(props, recordLookup(nil))
	assert.Equal(t, []string{"ref://vpc/id"}, unresolved)
	assert.Equal(t, "ref://vpc/id", resolved["vpcId"])
	assert.Equal(t, "subnet-a", resolved["name"])
}

func TestResolveInputs_OutputsShadowInputs(t *testing.T) {
	records := map[string]*ir.StateRecord{
		"db": {
			NodeID:  "db",
			Inputs:  map[string]any{"port": 3306},
			Outputs: map[string]any{"port": 3307},
		},
	}

	resolved, unresolved := ResolveInputs(
		map[string]any{"dbPort": "ref://db/port"}, recordLookup(records))
	require.Empty(t, unresolved)
	assert.Equal(t, 3307, resolved["dbPort"])
}

func TestResolveInputs_DoesNotMutateOriginal(t *testing.T) {
	records := map[string]*ir.StateRecord{
		"vpc": {NodeID: "vpc", Outputs: map[string]any{"id": "vpc-1"}},
	}
	props := map[string]any{"vpcId": "ref://vpc/id"}

	_, _ = ResolveInputs(props, recordLookup(records))
	assert.Equal(t, "ref://vpc/id", props["vpcId"])
}
