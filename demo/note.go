// Package demo provides a minimal tracked model, Note, and a GORM-backed
// implementation of the server package's consumer contracts
// (RowFetcher, AllRowsFetcher, RowQuerier) plus merge.Applier and
// merge.Wiper for it.
// cmd/syncctl's serve command uses this so the CLI can stand up a
// working sync server without requiring a host application's own
// schema; a real deployment supplies its own backend the same way.
package demo

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"sync.evalgo.org/content"
	"sync.evalgo.org/syncmsg"
)

// Note is the demo's one tracked table: a title/body pair.
type Note struct {
	ID    int64  `gorm:"primaryKey;column:id" json:"id"`
	Title string `gorm:"column:title" json:"title"`
	Body  string `gorm:"column:body" json:"body"`
}

func (Note) TableName() string { return "notes" }

// columns whitelists the fields Query will accept a filter on, so an
// arbitrary query-string key never reaches a raw SQL fragment.
var columns = map[string]bool{"id": true, "title": true, "body": true}

// Backend implements merge.Applier, server.RowFetcher,
// server.AllRowsFetcher, and server.RowQuerier against the notes table.
type Backend struct {
	DB *gorm.DB
}

// NewBackend wraps gdb for Note CRUD.
func NewBackend(gdb *gorm.DB) *Backend {
	return &Backend{DB: gdb}
}

func toObject(n Note) syncmsg.Object {
	return syncmsg.Object{
		Model: "Note",
		PK:    n.ID,
		Fields: map[string]interface{}{
			"title": n.Title,
			"body":  n.Body,
		},
	}
}

func fromObject(rowID int64, obj syncmsg.Object) Note {
	n := Note{ID: rowID}
	if v, ok := obj.Fields["title"].(string); ok {
		n.Title = v
	}
	if v, ok := obj.Fields["body"].(string); ok {
		n.Body = v
	}
	return n
}

// Insert implements merge.Applier.
func (b *Backend) Insert(contentTypeID uint32, rowID int64, obj syncmsg.Object) error {
	n := fromObject(rowID, obj)
	return b.DB.Create(&n).Error
}

// Update implements merge.Applier.
func (b *Backend) Update(contentTypeID uint32, rowID int64, obj syncmsg.Object) error {
	n := fromObject(rowID, obj)
	return b.DB.Model(&Note{}).Where("id = ?", rowID).Updates(map[string]interface{}{
		"title": n.Title,
		"body":  n.Body,
	}).Error
}

// Delete implements merge.Applier.
func (b *Backend) Delete(contentTypeID uint32, rowID int64) error {
	return b.DB.Where("id = ?", rowID).Delete(&Note{}).Error
}

// WipeAll implements merge.Wiper: deletes every row of every entry's
// table. The demo only ever registers Note, but this walks entries
// rather than assuming a fixed table, the way a host application with
// more than one tracked model would need to.
func (b *Backend) WipeAll(entries []*content.Entry) error {
	for _, entry := range entries {
		if err := b.DB.Exec(fmt.Sprintf("DELETE FROM %s", entry.ContentType.TableName)).Error; err != nil {
			return fmt.Errorf("demo: wipe %s: %w", entry.ContentType.TableName, err)
		}
	}
	return nil
}

// Fetch implements server.RowFetcher.
func (b *Backend) Fetch(contentTypeID uint32, rowID int64) (syncmsg.Object, bool, error) {
	var n Note
	err := b.DB.Where("id = ?", rowID).Take(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return syncmsg.Object{}, false, nil
	}
	if err != nil {
		return syncmsg.Object{}, false, err
	}
	return toObject(n), true, nil
}

// FetchAll implements server.AllRowsFetcher.
func (b *Backend) FetchAll(contentTypeID uint32) ([]syncmsg.Object, error) {
	var notes []Note
	if err := b.DB.Find(&notes).Error; err != nil {
		return nil, err
	}
	out := make([]syncmsg.Object, 0, len(notes))
	for _, n := range notes {
		out = append(out, toObject(n))
	}
	return out, nil
}

// Query implements server.RowQuerier. Filter keys outside the notes
// column whitelist are rejected rather than silently dropped or
// interpolated into SQL.
func (b *Backend) Query(contentTypeID uint32, filter map[string]interface{}) ([]syncmsg.Object, error) {
	tx := b.DB.Model(&Note{})
	for col, val := range filter {
		if !columns[col] {
			return nil, fmt.Errorf("demo: query: unknown column %q", col)
		}
		tx = tx.Where(fmt.Sprintf("%s = ?", col), val)
	}

	var notes []Note
	if err := tx.Find(&notes).Error; err != nil {
		return nil, err
	}
	out := make([]syncmsg.Object, 0, len(notes))
	for _, n := range notes {
		out = append(out, toObject(n))
	}
	return out, nil
}
