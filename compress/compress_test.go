package compress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync.evalgo.org/oplog"
)

func op(order int64, rowID int64, ctid uint32, cmd oplog.Command) oplog.Operation {
	return oplog.Operation{Order: order, RowID: rowID, ContentTypeID: ctid, Command: cmd}
}

func TestCompressGroup_InsertThenUpdatesCollapseToInsert(t *testing.T) {
	group := []oplog.Operation{
		op(1, 1, 1, oplog.Insert),
		op(2, 1, 1, oplog.Update),
		op(3, 1, 1, oplog.Update),
	}
	result, ok := CompressGroup(group)
	require.True(t, ok)
	assert.Equal(t, oplog.Insert, result.Command)
	assert.Equal(t, int64(1), result.Order)
}

func TestCompressGroup_InsertThenDeleteVanishes(t *testing.T) {
	group := []oplog.Operation{
		op(1, 1, 1, oplog.Insert),
		op(2, 1, 1, oplog.Update),
		op(3, 1, 1, oplog.Delete),
	}
	_, ok := CompressGroup(group)
	assert.False(t, ok)
}

func TestCompressGroup_UpdatesOnlyCollapseToFirstUpdate(t *testing.T) {
	group := []oplog.Operation{
		op(5, 2, 1, oplog.Update),
		op(6, 2, 1, oplog.Update),
	}
	result, ok := CompressGroup(group)
	require.True(t, ok)
	assert.Equal(t, oplog.Update, result.Command)
	assert.Equal(t, int64(5), result.Order)
}

func TestCompressGroup_UpdatesThenDeleteCollapseToDelete(t *testing.T) {
	group := []oplog.Operation{
		op(5, 2, 1, oplog.Update),
		op(6, 2, 1, oplog.Delete),
	}
	result, ok := CompressGroup(group)
	require.True(t, ok)
	assert.Equal(t, oplog.Delete, result.Command)
	assert.Equal(t, int64(6), result.Order)
}

func TestCompressGroup_DeleteDeleteCollapsesToFirstDelete(t *testing.T) {
	group := []oplog.Operation{
		op(9, 3, 1, oplog.Delete),
		op(10, 3, 1, oplog.Delete),
	}
	result, ok := CompressGroup(group)
	require.True(t, ok)
	assert.Equal(t, oplog.Delete, result.Command)
	assert.Equal(t, int64(9), result.Order)
}

func TestCompressGroup_DeleteThenUpdatesCollapseToLastUpdate(t *testing.T) {
	group := []oplog.Operation{
		op(9, 3, 1, oplog.Delete),
		op(10, 3, 1, oplog.Update),
		op(11, 3, 1, oplog.Update),
	}
	result, ok := CompressGroup(group)
	require.True(t, ok)
	assert.Equal(t, oplog.Update, result.Command)
	assert.Equal(t, int64(11), result.Order)
}

func TestCompressGroup_DeleteThenInsertBecomesSyntheticUpdate(t *testing.T) {
	group := []oplog.Operation{
		op(9, 3, 1, oplog.Delete),
		op(10, 3, 1, oplog.Insert),
	}
	result, ok := CompressGroup(group)
	require.True(t, ok)
	assert.Equal(t, oplog.Update, result.Command)
	assert.Equal(t, int64(10), result.Order)
}

func TestCompressGroup_SingleOpIsItself(t *testing.T) {
	for _, cmd := range []oplog.Command{oplog.Insert, oplog.Update, oplog.Delete} {
		result, ok := CompressGroup([]oplog.Operation{op(1, 1, 1, cmd)})
		require.True(t, ok)
		assert.Equal(t, cmd, result.Command)
	}
}

func TestCompress_MultipleRowsPreserveRelativeOrder(t *testing.T) {
	ops := []oplog.Operation{
		op(1, 1, 1, oplog.Insert), // row 1: insert then update -> kept as insert
		op(2, 2, 1, oplog.Insert), // row 2: insert then delete -> vanishes
		op(3, 1, 1, oplog.Update),
		op(4, 2, 1, oplog.Delete),
		op(5, 3, 1, oplog.Delete), // row 3: delete alone -> kept
	}
	result := Compress(ops)
	require.Len(t, result, 2)
	assert.Equal(t, int64(1), result[0].RowID)
	assert.Equal(t, oplog.Insert, result[0].Command)
	assert.Equal(t, int64(3), result[1].RowID)
	assert.Equal(t, oplog.Delete, result[1].Command)
}

func TestCompress_Idempotent(t *testing.T) {
	ops := []oplog.Operation{
		op(1, 1, 1, oplog.Insert),
		op(2, 1, 1, oplog.Update),
		op(3, 2, 1, oplog.Delete),
		op(4, 3, 1, oplog.Update),
		op(5, 3, 1, oplog.Delete),
	}
	once := Compress(ops)
	twice := Compress(once)
	assert.Equal(t, once, twice)
}

func TestCompress_BasicTrackingScenario(t *testing.T) {
	// Five fresh inserts, one of them later updated, another's child
	// reassigned then deleted: net effect is four surviving inserts.
	ops := []oplog.Operation{
		op(1, 1, 1, oplog.Insert),
		op(2, 2, 1, oplog.Insert),
		op(3, 3, 1, oplog.Insert),
		op(4, 4, 1, oplog.Insert),
		op(5, 5, 1, oplog.Insert),
		op(6, 1, 1, oplog.Update),
		op(7, 2, 1, oplog.Update),
		op(8, 2, 1, oplog.Delete),
	}
	result := Compress(ops)
	require.Len(t, result, 4)
	for _, r := range result {
		assert.Equal(t, oplog.Insert, r.Command)
		assert.NotEqual(t, int64(2), r.RowID)
	}
}
