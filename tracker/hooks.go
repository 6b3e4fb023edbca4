package tracker

import (
	"reflect"

	"gorm.io/gorm"
	"sync.evalgo.org/content"
	"sync.evalgo.org/engine"
	"sync.evalgo.org/oplog"
)

// Register installs the after-create/after-update/after-delete GORM
// callbacks that feed the tracker session carried by each call's
// context. Call once per *gorm.DB (the engine's handle), typically from
// SetEngine's caller right after content registration.
func Register(db *gorm.DB, reg *content.Registry, eng *engine.Engine) error {
	if err := db.Callback().Create().After("gorm:create").Register("sync:track_create", trackFixedCommand(reg, eng, oplog.Insert)); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("sync:track_update", trackUpdate(reg, eng)); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("sync:track_delete", trackFixedCommand(reg, eng, oplog.Delete)); err != nil {
		return err
	}
	return nil
}

func trackFixedCommand(reg *content.Registry, eng *engine.Engine, cmd oplog.Command) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		track(tx, reg, eng, cmd)
	}
}

// trackUpdate records an 'u' operation, but only when the update
// actually touched a row — GORM still runs the UPDATE statement for a
// no-op Save, and RowsAffected is the cheapest signal that a row's
// content genuinely changed.
func trackUpdate(reg *content.Registry, eng *engine.Engine) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if tx.RowsAffected == 0 {
			return
		}
		track(tx, reg, eng, oplog.Update)
	}
}

func track(tx *gorm.DB, reg *content.Registry, eng *engine.Engine, cmd oplog.Command) {
	if tx.Error != nil {
		return
	}
	if eng != nil && !eng.Listening() {
		return
	}

	session, ok := SessionFromContext(tx.Statement.Context)
	if !ok || session.Internal {
		return
	}

	entry, ok := reg.ByType(tx.Statement.ReflectValue.Type())
	if !ok {
		return // model not tracked
	}

	rowID, ok := primaryKeyInt64(tx.Statement)
	if !ok {
		return
	}

	session.enqueue(pendingOp{
		ContentTypeID: entry.ContentType.ContentTypeID,
		RowID:         rowID,
		Command:       cmd,
	})
}

// primaryKeyInt64 extracts the int64 primary key of the row GORM just
// acted on, from the statement's schema and reflected destination value.
func primaryKeyInt64(stmt *gorm.Statement) (int64, bool) {
	if stmt.Schema == nil || stmt.Schema.PrioritizedPrimaryField == nil {
		return 0, false
	}
	v := stmt.ReflectValue
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		if v.Len() == 0 {
			return 0, false
		}
		v = v.Index(0)
	}
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return 0, false
		}
		v = v.Elem()
	}

	field := stmt.Schema.PrioritizedPrimaryField.ReflectValueOf(stmt.Context, v)
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return field.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(field.Uint()), true
	default:
		return 0, false
	}
}
