// Package conflict implements the five-way conflict taxonomy that merge
// and push apply use to reconcile a remote operation list against the
// local unversioned log: Direct, Dependency, Reversed-dependency,
// Insert, and Unique conflicts.
package conflict

import (
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/syncmsg"
)

// Kind names one of the five conflict classes.
type Kind string

const (
	Direct             Kind = "direct"
	Dependency         Kind = "dependency"
	ReversedDependency Kind = "reversed_dependency"
	Insert             Kind = "insert"
	Unique             Kind = "unique"
)

// Ref names a tracked row.
type Ref struct {
	ContentTypeID uint32
	RowID         int64
}

// Conflict is one detected conflict between a remote operation and the
// local state it collides with.
type Conflict struct {
	Kind   Kind
	Remote oplog.Operation

	// Local is set for Direct and Insert conflicts (the colliding local
	// operation) and for Dependency conflicts (the local i/u whose
	// parent the remote delete targets).
	Local *oplog.Operation

	// Parent/Child describe Dependency and ReversedDependency
	// conflicts: the referencing (child) and referenced (parent) row.
	Parent Ref
	Child  Ref
}

// ForeignKeys resolves parent/child relationships needed to detect
// Dependency and Reversed-dependency conflicts. Implementations read
// from the live schema (e.g. via GORM reflection over struct tags); this
// package only consumes the contract.
type ForeignKeys interface {
	// ParentOf returns the parent row that the given (already-applied,
	// locally-visible) child row references, if any. Used for
	// Dependency conflicts: scans local DB state.
	ParentOf(contentTypeID uint32, rowID int64) (Ref, bool, error)

	// ParentFromPayload extracts the parent row reference embedded in a
	// remote payload object's foreign-key column, if the object's model
	// has one. Used for Reversed-dependency conflicts: scans the remote
	// payload, never the local DB, per spec.
	ParentFromPayload(obj syncmsg.Object) (Ref, bool)
}

func groupKeyOf(op oplog.Operation) Ref {
	return Ref{ContentTypeID: op.ContentTypeID, RowID: op.RowID}
}

// DetectDirect pairs remote and local operations that target the same
// row and are both in {u, d}.
func DetectDirect(remote, local []oplog.Operation) []Conflict {
	localByKey := indexByKey(local)
	var out []Conflict
	for _, r := range remote {
		if r.Command != oplog.Update && r.Command != oplog.Delete {
			continue
		}
		l, ok := localByKey[groupKeyOf(r)]
		if !ok || (l.Command != oplog.Update && l.Command != oplog.Delete) {
			continue
		}
		local := l
		out = append(out, Conflict{Kind: Direct, Remote: r, Local: &local})
	}
	return out
}

// DetectInsert pairs remote and local inserts that collide on the same
// (content_type_id, row_id).
func DetectInsert(remote, local []oplog.Operation) []Conflict {
	localByKey := indexByKey(local)
	var out []Conflict
	for _, r := range remote {
		if r.Command != oplog.Insert {
			continue
		}
		l, ok := localByKey[groupKeyOf(r)]
		if !ok || l.Command != oplog.Insert {
			continue
		}
		local := l
		out = append(out, Conflict{Kind: Insert, Remote: r, Local: &local})
	}
	return out
}

// DetectDependency finds remote deletes whose row is referenced, via
// foreign key, by a local insert or update.
func DetectDependency(remote, local []oplog.Operation, fks ForeignKeys) ([]Conflict, error) {
	var out []Conflict
	for _, r := range remote {
		if r.Command != oplog.Delete {
			continue
		}
		parent := groupKeyOf(r)
		for _, l := range local {
			if l.Command != oplog.Insert && l.Command != oplog.Update {
				continue
			}
			ref, ok, err := fks.ParentOf(l.ContentTypeID, l.RowID)
			if err != nil {
				return nil, err
			}
			if !ok || ref != parent {
				continue
			}
			local := l
			out = append(out, Conflict{
				Kind:   Dependency,
				Remote: r,
				Local:  &local,
				Parent: parent,
				Child:  groupKeyOf(l),
			})
		}
	}
	return out, nil
}

// DetectReversedDependency finds local deletes whose row is referenced,
// via foreign key, by a remote insert or update — scanning the remote
// payload rather than local database state.
func DetectReversedDependency(remote []oplog.Operation, local []oplog.Operation, payload *syncmsg.Payload, fks ForeignKeys) []Conflict {
	if payload == nil {
		return nil
	}
	var out []Conflict
	for _, l := range local {
		if l.Command != oplog.Delete {
			continue
		}
		parent := groupKeyOf(l)
		for _, r := range remote {
			if r.Command != oplog.Insert && r.Command != oplog.Update {
				continue
			}
			obj, ok := payloadObjectFor(payload, r)
			if !ok {
				continue
			}
			ref, ok := fks.ParentFromPayload(obj)
			if !ok || ref != parent {
				continue
			}
			remote := r
			out = append(out, Conflict{
				Kind:   ReversedDependency,
				Remote: remote,
				Parent: parent,
				Child:  groupKeyOf(r),
			})
		}
	}
	return out
}

// payloadObjectFor looks up the payload object backing op, trying every
// model name registered in the payload (the operation carries only a
// content_type_id; the caller's content registry maps that to a model
// name, but DetectReversedDependency only needs to find *an* object
// whose declared pk matches — payload lookups are always by
// (model, pk), so callers that know the model name should use
// payload.Get directly; this helper degrades gracefully when it cannot
// find a match in a multi-model payload).
func payloadObjectFor(payload *syncmsg.Payload, op oplog.Operation) (syncmsg.Object, bool) {
	for _, model := range payload.Models() {
		for _, obj := range payload.Objects(model) {
			if obj.PK == op.RowID {
				return obj, true
			}
		}
	}
	return syncmsg.Object{}, false
}

func indexByKey(ops []oplog.Operation) map[Ref]oplog.Operation {
	m := make(map[Ref]oplog.Operation, len(ops))
	for _, op := range ops {
		m[groupKeyOf(op)] = op
	}
	return m
}
