package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/syncmsg"
)

type fakeAllRowsFetcher struct {
	byType map[uint32][]syncmsg.Object
}

func (f *fakeAllRowsFetcher) FetchAll(contentTypeID uint32) ([]syncmsg.Object, error) {
	return f.byType[contentTypeID], nil
}

func TestRepair_ReturnsSnapshotAndLatestVersion(t *testing.T) {
	deps, reg, ctid := setup(t)
	require.NoError(t, deps.Store.AppendVersion(&oplog.Version{}))
	require.NoError(t, deps.Store.AppendVersion(&oplog.Version{}))

	fetcher := &fakeAllRowsFetcher{byType: map[uint32][]syncmsg.Object{
		ctid: {{Model: "Widget", PK: 1, Fields: map[string]interface{}{"name": "a"}}},
	}}

	msg, latest, err := Repair(RepairDeps{Store: deps.Store, Registry: reg, Fetch: fetcher})
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest)
	assert.Len(t, msg.Payload.Objects("Widget"), 1)
}
