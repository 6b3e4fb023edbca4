// Package merge implements the client-side pull-apply engine: applying
// an incoming PullMessage against the local unversioned operation log,
// resolving the five-way conflict taxonomy along the way.
package merge

import (
	"fmt"

	"sync.evalgo.org/common"
	"sync.evalgo.org/compress"
	"sync.evalgo.org/conflict"
	"sync.evalgo.org/content"
	"sync.evalgo.org/ext"
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/syncmsg"
)

// Applier performs the actual row mutations a merge decides on, backed
// by the live *gorm.DB. Insert/Update take the wire object directly;
// Delete only needs the row id.
type Applier interface {
	Insert(contentTypeID uint32, rowID int64, obj syncmsg.Object) error
	Update(contentTypeID uint32, rowID int64, obj syncmsg.Object) error
	Delete(contentTypeID uint32, rowID int64) error
}

// UniqueResolver implements spec.md §4.9 kind E: for each remote
// non-delete op, checking whether its unique-constraint values collide
// with a different local row, and either fixing the local row up to its
// new values or reporting a human-error unique conflict.
type UniqueResolver interface {
	// Resolve runs before conflict detection, mutating local rows as
	// needed (delete-and-reinsert to avoid transient duplicates) and
	// returning an error if any conflict cannot be resolved
	// automatically (spec: "abort with a unique-constraint error").
	Resolve(remote []oplog.Operation, payload *syncmsg.Payload) error
}

// RowRenumberer implements the Insert-conflict resolution: computing the
// next free primary key for a content type and rewriting a local row
// (and everything that foreign-keys to it) onto that new key.
type RowRenumberer interface {
	MaxPK(contentTypeID uint32) (int64, error)
	Renumber(contentTypeID uint32, oldPK, newPK int64) error
}

// Deps bundles everything Merge needs beyond the pure operation lists:
// storage, schema-aware resolvers, and the row applier.
type Deps struct {
	Store       *oplog.Store
	Registry    *content.Registry
	ForeignKeys conflict.ForeignKeys
	Apply       Applier
	Unique      UniqueResolver
	Renumber    RowRenumberer
	Extensions  *ext.Registry
}

type rowKey struct {
	ContentTypeID uint32
	RowID         int64
}

// Merge applies msg against the local unversioned log per spec.md §4.8
// steps 1-7. Callers are expected to invoke it inside one transaction
// with tracker listening disabled and foreign keys relaxed (see
// package engine).
func Merge(msg *syncmsg.PullMessage, deps Deps) error {
	// Step 1: compress the local unversioned operation log.
	local, err := compress.InDatabase(deps.Store)
	if err != nil {
		return fmt.Errorf("merge: compress local log: %w", err)
	}

	// Step 2: compress the incoming operation list (in memory).
	remote := compress.Compress(msg.Operations)

	// Step 3: unique-constraint conflicts.
	if deps.Unique != nil {
		if err := deps.Unique.Resolve(remote, msg.Payload); err != nil {
			return fmt.Errorf("merge: unique-constraint conflict: %w", err)
		}
	}

	// Step 4: detect the remaining conflict sets.
	direct := conflict.DetectDirect(remote, local)
	insertConflicts := conflict.DetectInsert(remote, local)
	var dependency []conflict.Conflict
	if deps.ForeignKeys != nil {
		dependency, err = conflict.DetectDependency(remote, local, deps.ForeignKeys)
		if err != nil {
			return fmt.Errorf("merge: detect dependency conflicts: %w", err)
		}
	}
	var reversed []conflict.Conflict
	if deps.ForeignKeys != nil {
		reversed = conflict.DetectReversedDependency(remote, local, msg.Payload, deps.ForeignKeys)
	}

	decisions := newDispatch(remote)

	// Step 5: decide whether to perform each incoming op, and how.
	if err := decisions.applyDirect(direct, deps); err != nil {
		return err
	}
	if err := decisions.applyDependency(dependency, deps); err != nil {
		return err
	}
	if err := decisions.applyReversedDependency(reversed, msg.Payload, deps); err != nil {
		return err
	}
	if err := decisions.applyInsertConflicts(insertConflicts, deps); err != nil {
		return err
	}

	// Step 6: perform the remote ops still allowed, strictly ascending
	// by order, no inter-operation yielding.
	for _, op := range decisions.finalOps() {
		if err := performOp(op, msg.Payload, deps); err != nil {
			return fmt.Errorf("merge: perform op (row %d content_type %d command %s): %w", op.RowID, op.ContentTypeID, op.Command, err)
		}
	}

	// Step 7: append the new Versions from the message.
	for _, v := range msg.Versions {
		v := v
		if err := deps.Store.AppendVersion(&v); err != nil {
			return fmt.Errorf("merge: append version %d: %w", v.VersionID, err)
		}
	}

	return nil
}

func performOp(op oplog.Operation, payload *syncmsg.Payload, deps Deps) error {
	entry, ok := deps.Registry.ByContentTypeID(op.ContentTypeID)
	if !ok {
		return fmt.Errorf("unknown content type %d", op.ContentTypeID)
	}

	switch op.Command {
	case oplog.Insert:
		obj, ok := payload.Get(entry.ContentType.ModelName, op.RowID)
		if !ok {
			return fmt.Errorf("missing payload object for insert of %s/%d", entry.ContentType.ModelName, op.RowID)
		}
		if err := deps.Apply.Insert(op.ContentTypeID, op.RowID, obj); err != nil {
			return err
		}
		if deps.Extensions != nil {
			deps.Extensions.AfterSave(entry.ContentType.ModelName, obj, obj.Fields)
		}
		return nil
	case oplog.Update:
		obj, ok := payload.Get(entry.ContentType.ModelName, op.RowID)
		if !ok {
			return fmt.Errorf("missing payload object for update of %s/%d", entry.ContentType.ModelName, op.RowID)
		}
		if err := deps.Apply.Update(op.ContentTypeID, op.RowID, obj); err != nil {
			return err
		}
		if deps.Extensions != nil {
			deps.Extensions.AfterSave(entry.ContentType.ModelName, obj, obj.Fields)
		}
		return nil
	case oplog.Delete:
		// Extension delete hooks need the prior object's content, which
		// Applier.Delete does not return; callers whose models carry
		// delete-side extensions should resolve it themselves inside
		// their Applier.Delete before removing the row.
		if err := deps.Apply.Delete(op.ContentTypeID, op.RowID); err != nil {
			common.Logger.WithFields(map[string]interface{}{
				"content_type_id": op.ContentTypeID,
				"row_id":          op.RowID,
			}).WithError(err).Warn("merge: delete target missing locally, skipping")
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", op.Command)
	}
}
