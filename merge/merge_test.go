package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"sync.evalgo.org/conflict"
	"sync.evalgo.org/content"
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/syncmsg"
)

type Widget struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

func newStore(t *testing.T) *oplog.Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(oplog.Models()...))
	return oplog.NewStore(gdb)
}

func newRegistry(t *testing.T) *content.Registry {
	t.Helper()
	reg := content.NewRegistry()
	_, err := reg.Register(&Widget{}, "Widget", "widgets", content.Both)
	require.NoError(t, err)
	return reg
}

type fakeApplier struct {
	inserted, updated, deleted []int64
}

func (f *fakeApplier) Insert(contentTypeID uint32, rowID int64, obj syncmsg.Object) error {
	f.inserted = append(f.inserted, rowID)
	return nil
}
func (f *fakeApplier) Update(contentTypeID uint32, rowID int64, obj syncmsg.Object) error {
	f.updated = append(f.updated, rowID)
	return nil
}
func (f *fakeApplier) Delete(contentTypeID uint32, rowID int64) error {
	f.deleted = append(f.deleted, rowID)
	return nil
}

func widgetCTID(t *testing.T, reg *content.Registry) uint32 {
	e, ok := reg.ByModelName("Widget")
	require.True(t, ok)
	return e.ContentType.ContentTypeID
}

func TestMerge_DirectUpdateUpdate_LocalWins(t *testing.T) {
	store := newStore(t)
	reg := newRegistry(t)
	ctid := widgetCTID(t, reg)

	localOp := &oplog.Operation{ContentTypeID: ctid, RowID: 1, Command: oplog.Update}
	require.NoError(t, store.Append(localOp))

	payload := syncmsg.NewPayload()
	payload.Add(syncmsg.Object{Model: "Widget", PK: 1, Fields: map[string]interface{}{"name": "remote"}})
	msg := &syncmsg.PullMessage{
		Operations: []oplog.Operation{{ContentTypeID: ctid, RowID: 1, Command: oplog.Update}},
		Payload:    payload,
	}

	applier := &fakeApplier{}
	err := Merge(msg, Deps{Store: store, Registry: reg, Apply: applier})
	require.NoError(t, err)
	assert.Empty(t, applier.updated)
}

func TestMerge_DirectDeleteDelete_PurgesLocalAndSkipsRemote(t *testing.T) {
	store := newStore(t)
	reg := newRegistry(t)
	ctid := widgetCTID(t, reg)

	localOp := &oplog.Operation{ContentTypeID: ctid, RowID: 2, Command: oplog.Delete}
	require.NoError(t, store.Append(localOp))

	msg := &syncmsg.PullMessage{
		Operations: []oplog.Operation{{ContentTypeID: ctid, RowID: 2, Command: oplog.Delete}},
		Payload:    syncmsg.NewPayload(),
	}

	applier := &fakeApplier{}
	err := Merge(msg, Deps{Store: store, Registry: reg, Apply: applier})
	require.NoError(t, err)
	assert.Empty(t, applier.deleted)

	remaining, err := store.Unversioned()
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestMerge_NoConflict_PerformsRemoteInsert(t *testing.T) {
	store := newStore(t)
	reg := newRegistry(t)
	ctid := widgetCTID(t, reg)

	payload := syncmsg.NewPayload()
	payload.Add(syncmsg.Object{Model: "Widget", PK: 10, Fields: map[string]interface{}{"name": "new"}})
	msg := &syncmsg.PullMessage{
		Operations: []oplog.Operation{{ContentTypeID: ctid, RowID: 10, Command: oplog.Insert}},
		Payload:    payload,
	}

	applier := &fakeApplier{}
	err := Merge(msg, Deps{Store: store, Registry: reg, Apply: applier})
	require.NoError(t, err)
	require.Len(t, applier.inserted, 1)
	assert.Equal(t, int64(10), applier.inserted[0])
}

func TestMerge_AppendsNewVersions(t *testing.T) {
	store := newStore(t)
	reg := newRegistry(t)

	msg := &syncmsg.PullMessage{
		Versions: []oplog.Version{{VersionID: 1}},
		Payload:  syncmsg.NewPayload(),
	}

	applier := &fakeApplier{}
	err := Merge(msg, Deps{Store: store, Registry: reg, Apply: applier})
	require.NoError(t, err)

	latest, err := store.LatestVersionID()
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest)
}

type fakeFKs struct{}

func (fakeFKs) ParentOf(contentTypeID uint32, rowID int64) (conflict.Ref, bool, error) {
	return conflict.Ref{}, false, nil
}
func (fakeFKs) ParentFromPayload(obj syncmsg.Object) (conflict.Ref, bool) {
	return conflict.Ref{}, false
}

type fakeRenumberer struct {
	maxPK      int64
	renumbered map[int64]int64
}

func (f *fakeRenumberer) MaxPK(contentTypeID uint32) (int64, error) { return f.maxPK, nil }
func (f *fakeRenumberer) Renumber(contentTypeID uint32, oldPK, newPK int64) error {
	if f.renumbered == nil {
		f.renumbered = make(map[int64]int64)
	}
	f.renumbered[oldPK] = newPK
	return nil
}

func TestMerge_InsertConflict_RenumbersLocalRow(t *testing.T) {
	store := newStore(t)
	reg := newRegistry(t)
	ctid := widgetCTID(t, reg)

	localOp := &oplog.Operation{ContentTypeID: ctid, RowID: 5, Command: oplog.Insert}
	require.NoError(t, store.Append(localOp))

	payload := syncmsg.NewPayload()
	payload.Add(syncmsg.Object{Model: "Widget", PK: 5, Fields: map[string]interface{}{}})
	msg := &syncmsg.PullMessage{
		Operations: []oplog.Operation{{ContentTypeID: ctid, RowID: 5, Command: oplog.Insert}},
		Payload:    payload,
	}

	renumberer := &fakeRenumberer{maxPK: 5}
	applier := &fakeApplier{}
	err := Merge(msg, Deps{
		Store: store, Registry: reg, Apply: applier,
		ForeignKeys: fakeFKs{}, Renumber: renumberer,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), renumberer.renumbered[5])

	remaining, err := store.Unversioned()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(6), remaining[0].RowID)
}

func TestMerge_InsertConflict_RenumbersPastTrueRemoteMax(t *testing.T) {
	store := newStore(t)
	reg := newRegistry(t)
	ctid := widgetCTID(t, reg)

	localOp := &oplog.Operation{ContentTypeID: ctid, RowID: 7, Command: oplog.Insert}
	require.NoError(t, store.Append(localOp))

	payload := syncmsg.NewPayload()
	payload.Add(syncmsg.Object{Model: "Widget", PK: 7, Fields: map[string]interface{}{}})
	payload.Add(syncmsg.Object{Model: "Widget", PK: 11, Fields: map[string]interface{}{}})
	msg := &syncmsg.PullMessage{
		Operations: []oplog.Operation{
			{ContentTypeID: ctid, RowID: 7, Command: oplog.Insert},
			{ContentTypeID: ctid, RowID: 11, Command: oplog.Insert},
		},
		Payload: payload,
	}

	// Remote's true max insert pk (11) exceeds both the conflicting row's
	// own pk (7) and the local max (9) - the renumbered id must clear 11,
	// not just 7.
	renumberer := &fakeRenumberer{maxPK: 9}
	applier := &fakeApplier{}
	err := Merge(msg, Deps{
		Store: store, Registry: reg, Apply: applier,
		ForeignKeys: fakeFKs{}, Renumber: renumberer,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), renumberer.renumbered[7])
}
