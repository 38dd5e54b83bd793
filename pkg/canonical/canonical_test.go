package canonical_test

import (
	"encoding/json"
	"testing"

	"github.com/agentauth/agentauth-core/pkg/canonical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsKeys(t *testing.T) {
	out, err := canonical.Marshal(map[string]any{
		"zebra": 1,
		"alpha": 2,
		"mike":  3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mike":3,"zebra":1}`, string(out))
}

func TestMarshal_InsertionOrderIndependent(t *testing.T) {
	// Build two deeply-equal records from differently-ordered JSON documents.
	var a, b map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"b":{"y":2,"x":1},"a":[1,2,3]}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"a":[1,2,3],"b":{"x":1,"y":2}}`), &b))

	ca, err := canonical.Marshal(a)
	require.NoError(t, err)
	cb, err := canonical.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
}

func TestMarshal_NestedSorting(t *testing.T) {
	out, err := canonical.Marshal(map[string]any{
		"outer": map[string]any{
			"delta": map[string]any{"z": 1, "a": 2},
			"bravo": true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"outer":{"bravo":true,"delta":{"a":2,"z":1}}}`, string(out))
}

func TestMarshal_PreservesArrayOrder(t *testing.T) {
	out, err := canonical.Marshal(map[string]any{"list": []int{3, 1, 2}})
	require.NoError(t, err)
	assert.Equal(t, `{"list":[3,1,2]}`, string(out))
}

func TestMarshal_StructUsesJSONTags(t *testing.T) {
	type record struct {
		Subject string `json:"sub"`
		Issuer  string `json:"iss"`
	}

	out, err := canonical.Marshal(record{Subject: "b", Issuer: "a"})
	require.NoError(t, err)
	assert.Equal(t, `{"iss":"a","sub":"b"}`, string(out))
}

func TestMarshalWithout_StripsFields(t *testing.T) {
	type signed struct {
		ID    string         `json:"id"`
		Proof map[string]any `json:"proof,omitempty"`
	}

	withProof, err := canonical.MarshalWithout(signed{
		ID:    "urn:uuid:1234",
		Proof: map[string]any{"proofValue": "abc"},
	}, "proof")
	require.NoError(t, err)

	withoutProof, err := canonical.Marshal(signed{ID: "urn:uuid:1234"})
	require.NoError(t, err)

	assert.Equal(t, string(withoutProof), string(withProof))
}

func TestMarshal_Stability(t *testing.T) {
	v := map[string]any{"k": map[string]any{"n": 42.5, "s": "x", "b": false, "z": nil}}

	first, err := canonical.Marshal(v)
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		next, err := canonical.Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}
}
