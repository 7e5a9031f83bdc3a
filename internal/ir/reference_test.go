package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		nodeID string
		attr   string
		ok     bool
	}{
		{"simple", "ref://vpc/id", "vpc", "id", true},
		{"nested attr", "ref://db/endpoint/address", "db", "endpoint/address", true},
		{"not a ref", "10.0.0.0/16", "", "", false},
		{"missing attr", "ref://vpc", "", "", false},
		{"trailing slash", "ref://vpc/", "", "", false},
		{"empty node", "ref:///id", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodeID, attr, ok := ParseRef(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.nodeID, nodeID)
			assert.Equal(t, tt.attr, attr)
		})
	}
}

func TestMakeRef_RoundTrips(t *testing.T) {
	ref := MakeRef("alb", "dnsName")
	assert.True(t, IsRef(ref))

	nodeID, attr, ok := ParseRef(ref)
	require.True(t, ok)
	assert.Equal(t, "alb", nodeID)
	assert.Equal(t, "dnsName", attr)
}

func TestIsRef(t *testing.T) {
	assert.True(t, IsRef("ref://a/id"))
	assert.False(t, IsRef("plain string"))
	assert.False(t, IsRef(42))
	assert.False(t, IsRef(nil))
}

func TestExtractRefs(t *testing.T) {
	props := map[string]any{
		"vpcId": "ref://vpc/id",
		"rules": []any{
			map[string]any{"sourceSecurityGroupId": "ref://webSg/id"},
			"0.0.0.0/0",
		},
		"count": 2,
	}

	refs := ExtractRefs(props)
	assert.ElementsMatch(t, []string{"ref://vpc/id", "ref://webSg/id"}, refs)

	assert.Empty(t, ExtractRefs(map[string]any{"name": "plain"}))
}

func TestRunResult_Err(t *testing.T) {
	r := NewRunResult("run-1")
	r.Record("a", OutcomeApplied, nil)
	r.Record("b", OutcomeNoOp, nil)
	assert.NoError(t, r.Err())

	r.Record("c", OutcomeSkipped, nil)
	err := r.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skipped")

	r.Record("d", OutcomeFailed, assert.AnError)
	err = r.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "1 resource(s) failed, 1 skipped")

	applied, failed, skipped, noop := r.Counts()
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, noop)
	assert.Equal(t, []string{"d"}, r.Nodes(OutcomeFailed))
}
