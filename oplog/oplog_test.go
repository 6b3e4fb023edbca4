package oplog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(Models()...))
	return gdb
}

func TestStore_AppendAndUnversioned(t *testing.T) {
	store := NewStore(newTestDB(t))

	require.NoError(t, store.Append(&Operation{RowID: 1, ContentTypeID: 10, Command: Insert}))
	require.NoError(t, store.Append(&Operation{RowID: 1, ContentTypeID: 10, Command: Update}))

	ops, err := store.Unversioned()
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, Insert, ops[0].Command)
	assert.Equal(t, Update, ops[1].Command)
	assert.Nil(t, ops[0].VersionID)
}

func TestStore_VersionLifecycle(t *testing.T) {
	store := NewStore(newTestDB(t))

	latest, err := store.LatestVersionID()
	require.NoError(t, err)
	assert.Equal(t, int64(0), latest)

	require.NoError(t, store.Append(&Operation{RowID: 1, ContentTypeID: 10, Command: Insert}))
	ops, err := store.Unversioned()
	require.NoError(t, err)
	require.Len(t, ops, 1)

	v := &Version{Created: time.Now()}
	require.NoError(t, store.AppendVersion(v))
	assert.NotZero(t, v.VersionID)

	orders := []int64{ops[0].Order}
	require.NoError(t, store.RelinkToVersion(orders, v.VersionID))

	remaining, err := store.Unversioned()
	require.NoError(t, err)
	assert.Empty(t, remaining)

	versions, err := store.VersionsAfter(0)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, v.VersionID, versions[0].VersionID)

	inVersion, err := store.OperationsInVersions([]int64{v.VersionID})
	require.NoError(t, err)
	require.Len(t, inVersion, 1)
}

func TestStore_DeleteByOrders(t *testing.T) {
	store := NewStore(newTestDB(t))
	require.NoError(t, store.Append(&Operation{RowID: 1, ContentTypeID: 10, Command: Insert}))
	require.NoError(t, store.Append(&Operation{RowID: 2, ContentTypeID: 10, Command: Insert}))

	ops, err := store.Unversioned()
	require.NoError(t, err)
	require.Len(t, ops, 2)

	require.NoError(t, store.DeleteByOrders([]int64{ops[0].Order}))

	remaining, err := store.Unversioned()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(2), remaining[0].RowID)
}

func TestStore_NodesAndTrim(t *testing.T) {
	store := NewStore(newTestDB(t))

	require.NoError(t, store.CreateNode(&Node{NodeID: "n1", Registered: time.Now(), Secret: "s1"}))
	n, err := store.Node("n1")
	require.NoError(t, err)
	assert.Equal(t, "s1", n.Secret)

	nodes, err := store.AllNodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	v1 := &Version{Created: time.Now()}
	require.NoError(t, store.AppendVersion(v1))
	v2 := &Version{Created: time.Now()}
	require.NoError(t, store.AppendVersion(v2))

	require.NoError(t, store.Append(&Operation{RowID: 1, ContentTypeID: 1, Command: Insert, VersionID: &v1.VersionID}))

	require.NoError(t, store.TrimBelow(v2.VersionID))

	versions, err := store.VersionsAfter(0)
	require.NoError(t, err)
	for _, v := range versions {
		assert.NotEqual(t, v1.VersionID, v.VersionID)
	}
}

func TestStore_UpdateNodeAckOnlyMovesForward(t *testing.T) {
	store := NewStore(newTestDB(t))
	require.NoError(t, store.CreateNode(&Node{NodeID: "n1", Registered: time.Now(), Secret: "s1"}))

	require.NoError(t, store.UpdateNodeAck("n1", 5))
	n, err := store.Node("n1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.LastAckedVersionID)

	require.NoError(t, store.UpdateNodeAck("n1", 3))
	n, err = store.Node("n1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.LastAckedVersionID, "ack must not move backward")

	require.NoError(t, store.UpdateNodeAck("n1", 0))
	n, err = store.Node("n1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.LastAckedVersionID, "zero is a no-op")

	require.NoError(t, store.UpdateNodeAck("unknown-node", 99))
}

func TestStore_WriteLog(t *testing.T) {
	store := NewStore(newTestDB(t))
	require.NoError(t, store.WriteLog("repair", "dropped impossible op", nil))
}
