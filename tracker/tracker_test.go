package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"sync.evalgo.org/content"
	"sync.evalgo.org/engine"
	"sync.evalgo.org/oplog"
)

type Widget struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

func setup(t *testing.T) (*gorm.DB, *engine.Engine) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&Widget{}))
	require.NoError(t, gdb.AutoMigrate(oplog.Models()...))

	reg := content.NewRegistry()
	_, err = reg.Register(&Widget{}, "Widget", "widgets", content.Both)
	require.NoError(t, err)

	eng := engine.SetEngine(gdb, engine.WithRegistry(reg))
	require.NoError(t, Register(gdb, reg, eng))
	return gdb, eng
}

func TestTracker_RecordsCreateUpdateDelete(t *testing.T) {
	gdb, eng := setup(t)
	defer engine.DropAll()

	session := NewSession(false)
	ctx := WithSession(context.Background(), session)
	db := gdb.WithContext(ctx)

	w := &Widget{Name: "first"}
	require.NoError(t, db.Create(w).Error)

	require.NoError(t, db.Model(w).Update("name", "second").Error)
	require.NoError(t, db.Delete(w).Error)

	assert.Equal(t, 3, session.Pending())

	store := oplog.NewStore(gdb)
	require.NoError(t, session.Drain(store))

	ops, err := store.Unversioned()
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, oplog.Insert, ops[0].Command)
	assert.Equal(t, oplog.Update, ops[1].Command)
	assert.Equal(t, oplog.Delete, ops[2].Command)
	for _, op := range ops {
		assert.Equal(t, w.ID, op.RowID)
	}

	_ = eng
}

func TestTracker_SkipsNoOpUpdate(t *testing.T) {
	gdb, _ := setup(t)
	defer engine.DropAll()

	session := NewSession(false)
	ctx := WithSession(context.Background(), session)
	db := gdb.WithContext(ctx)

	w := &Widget{Name: "first"}
	require.NoError(t, db.Create(w).Error)

	result := db.Model(&Widget{}).Where("id = ?", 999999).Update("name", "nope")
	require.NoError(t, result.Error)
	assert.Equal(t, int64(0), result.RowsAffected)

	assert.Equal(t, 1, session.Pending()) // only the create
}

func TestTracker_SkipsWhenListeningDisabled(t *testing.T) {
	gdb, eng := setup(t)
	defer engine.DropAll()

	session := NewSession(false)
	ctx := WithSession(context.Background(), session)
	db := gdb.WithContext(ctx)

	err := eng.WithListeningDisabled(func() error {
		return db.Create(&Widget{Name: "ghost"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, 0, session.Pending())
}

func TestTracker_SkipsInternalSession(t *testing.T) {
	gdb, _ := setup(t)
	defer engine.DropAll()

	session := NewSession(true)
	ctx := WithSession(context.Background(), session)
	db := gdb.WithContext(ctx)

	require.NoError(t, db.Create(&Widget{Name: "internal"}).Error)
	assert.Equal(t, 0, session.Pending())
}

func TestTracker_SkipsUntrackedModel(t *testing.T) {
	gdb, _ := setup(t)
	defer engine.DropAll()

	type Untracked struct {
		ID int64 `gorm:"primaryKey"`
	}
	require.NoError(t, gdb.AutoMigrate(&Untracked{}))

	session := NewSession(false)
	ctx := WithSession(context.Background(), session)
	db := gdb.WithContext(ctx)

	require.NoError(t, db.Create(&Untracked{}).Error)
	assert.Equal(t, 0, session.Pending())
}

func TestSession_DiscardEmptiesQueueWithoutPersisting(t *testing.T) {
	gdb, _ := setup(t)
	defer engine.DropAll()

	session := NewSession(false)
	ctx := WithSession(context.Background(), session)
	db := gdb.WithContext(ctx)

	require.NoError(t, db.Create(&Widget{Name: "rolled-back"}).Error)
	require.Equal(t, 1, session.Pending())

	session.Discard()
	assert.Equal(t, 0, session.Pending())

	store := oplog.NewStore(gdb)
	ops, err := store.Unversioned()
	require.NoError(t, err)
	assert.Empty(t, ops)
}
