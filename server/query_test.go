package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync.evalgo.org/syncmsg"
)

type fakeRowQuerier struct {
	filter map[string]interface{}
	result []syncmsg.Object
}

func (f *fakeRowQuerier) Query(contentTypeID uint32, filter map[string]interface{}) ([]syncmsg.Object, error) {
	f.filter = filter
	return f.result, nil
}

func TestQuery_FiltersOneModel(t *testing.T) {
	_, reg, _ := setup(t)

	querier := &fakeRowQuerier{result: []syncmsg.Object{
		{Model: "Widget", PK: 1, Fields: map[string]interface{}{"name": "a"}},
	}}

	msg, err := Query("Widget", map[string]interface{}{"name": "a"}, QueryDeps{Registry: reg, Rows: querier})
	require.NoError(t, err)
	assert.Equal(t, "a", querier.filter["name"])
	assert.Len(t, msg.Payload.Objects("Widget"), 1)
}

func TestQuery_RejectsUnknownModel(t *testing.T) {
	_, reg, _ := setup(t)

	_, err := Query("Nonexistent", nil, QueryDeps{Registry: reg, Rows: &fakeRowQuerier{}})
	require.Error(t, err)
}
