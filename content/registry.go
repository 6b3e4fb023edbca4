// Package content maintains the registry of tracked models: the tables
// participating in synchronization, their stable content-type ids, and
// their push/pull direction flags.
package content

import (
	"fmt"
	"hash/crc32"
	"reflect"
	"sync"
)

// Direction is a bitmask of whether a tracked model participates in
// push, pull, or both.
type Direction uint8

const (
	Push Direction = 1 << iota
	Pull
)

// Both is shorthand for Push|Pull.
const Both = Push | Pull

func (d Direction) HasPush() bool { return d&Push != 0 }
func (d Direction) HasPull() bool { return d&Pull != 0 }

// ContentType identifies a tracked table. ContentTypeID is derived from
// ModelName and TableName via CRC32 and is stable across processes.
type ContentType struct {
	ContentTypeID uint32 `gorm:"primaryKey;column:content_type_id" json:"content_type_id"`
	TableName     string `gorm:"column:table_name;not null" json:"table_name"`
	ModelName     string `gorm:"column:model_name;not null" json:"model_name"`
}

func (ContentType) TableName() string { return "sync_content_types" }

// DeriveContentTypeID computes the stable content-type id for a
// (modelName, tableName) pair: CRC32("<model_name>/<table_name>") with
// the standard IEEE polynomial and a zero initial seed.
func DeriveContentTypeID(modelName, tableName string) uint32 {
	return crc32.ChecksumIEEE([]byte(modelName + "/" + tableName))
}

// Entry is one registered model: its content type plus the registration
// metadata the tracker and codec need.
type Entry struct {
	ContentType ContentType
	Direction   Direction
	ModelType   reflect.Type // the Go struct type registered, for tracker hook matching
}

// Registry indexes registered models by model identity (reflect.Type),
// model name, table name, and content-type id. Registration is
// idempotent: registering the same model type again under the same
// (modelName, tableName) returns the existing entry, with the new
// direction flags OR-ed into it; registering a model type under other
// names, or a (modelName, tableName) with a conflicting model type, is
// an error.
type Registry struct {
	mu       sync.RWMutex
	byType   map[reflect.Type]*Entry
	byName   map[string]*Entry
	byTable  map[string]*Entry
	byCTID   map[uint32]*Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType:  make(map[reflect.Type]*Entry),
		byName:  make(map[string]*Entry),
		byTable: make(map[string]*Entry),
		byCTID:  make(map[uint32]*Entry),
	}
}

// Register adds a tracked model. model is a pointer to (or zero value
// of) the struct mapped to tableName; its reflect.Type is used as the
// hook-matching key. Pull-only models (Direction without Push) do not
// need tracker hooks installed by the caller, but Register itself does
// not install hooks — see package tracker.
func (r *Registry) Register(model interface{}, modelName, tableName string, dir Direction) (*Entry, error) {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byType[t]; ok {
		if existing.ContentType.ModelName != modelName || existing.ContentType.TableName != tableName {
			return nil, fmt.Errorf("content: %s already registered as %s/%s", t, existing.ContentType.ModelName, existing.ContentType.TableName)
		}
		existing.Direction |= dir
		return existing, nil
	}

	ctid := DeriveContentTypeID(modelName, tableName)
	if existing, ok := r.byCTID[ctid]; ok && existing.ModelType != t {
		return nil, fmt.Errorf("content: content_type_id %d collision between %s and %s", ctid, existing.ModelType, t)
	}

	entry := &Entry{
		ContentType: ContentType{
			ContentTypeID: ctid,
			TableName:     tableName,
			ModelName:     modelName,
		},
		Direction: dir,
		ModelType: t,
	}

	r.byType[t] = entry
	r.byName[modelName] = entry
	r.byTable[tableName] = entry
	r.byCTID[ctid] = entry

	return entry, nil
}

// ByType looks up a registration by the tracked model's reflect.Type.
func (r *Registry) ByType(t reflect.Type) (*Entry, bool) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byType[t]
	return e, ok
}

// ByModelName looks up a registration by model name.
func (r *Registry) ByModelName(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// ByTableName looks up a registration by table name.
func (r *Registry) ByTableName(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byTable[name]
	return e, ok
}

// ByContentTypeID looks up a registration by content-type id.
func (r *Registry) ByContentTypeID(id uint32) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byCTID[id]
	return e, ok
}

// All returns every registered entry, for AutoMigrate and snapshotting.
func (r *Registry) All() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.byCTID))
	for _, e := range r.byCTID {
		out = append(out, e)
	}
	return out
}

// PullEnabled returns every registered entry whose Direction includes Pull.
func (r *Registry) PullEnabled() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0)
	for _, e := range r.byCTID {
		if e.Direction.HasPull() {
			out = append(out, e)
		}
	}
	return out
}
