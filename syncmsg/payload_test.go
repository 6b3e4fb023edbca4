package syncmsg

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_AddIsIdempotentPerModelPK(t *testing.T) {
	p := NewPayload()
	p.Add(Object{Model: "Widget", PK: 1, Fields: map[string]interface{}{"name": "first"}})
	p.Add(Object{Model: "Widget", PK: 1, Fields: map[string]interface{}{"name": "second"}})

	obj, ok := p.Get("Widget", 1)
	require.True(t, ok)
	assert.Equal(t, "first", obj.Fields["name"])
	assert.Len(t, p.Objects("Widget"), 1)
}

func TestPayload_JSONRoundTrip(t *testing.T) {
	p := NewPayload()
	p.Add(Object{Model: "Widget", PK: 1, Fields: map[string]interface{}{"name": "alpha"}})
	p.Add(Object{Model: "Widget", PK: 2, Fields: map[string]interface{}{"name": "beta"}})

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded Payload
	require.NoError(t, json.Unmarshal(data, &decoded))

	obj1, ok := decoded.Get("Widget", 1)
	require.True(t, ok)
	assert.Equal(t, "alpha", obj1.Fields["name"])

	obj2, ok := decoded.Get("Widget", 2)
	require.True(t, ok)
	assert.Equal(t, "beta", obj2.Fields["name"])
}

func TestPayload_Models(t *testing.T) {
	p := NewPayload()
	p.Add(Object{Model: "Widget", PK: 1, Fields: map[string]interface{}{}})
	p.Add(Object{Model: "Gadget", PK: 1, Fields: map[string]interface{}{}})

	models := p.Models()
	assert.ElementsMatch(t, []string{"Widget", "Gadget"}, models)
}

func TestPayload_UnmarshalMissingPKErrors(t *testing.T) {
	var p Payload
	err := json.Unmarshal([]byte(`{"Widget":[{"name":"nopk"}]}`), &p)
	assert.Error(t, err)
}
