// Package server implements the engine's HTTP-facing operations: push,
// pull, repair, query, register, and trim. httpapi binds these to Echo
// routes; this package holds the business logic so it can be tested
// without standing up a server.
package server

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"sync.evalgo.org/common"
	"sync.evalgo.org/content"
	"sync.evalgo.org/engine"
	"sync.evalgo.org/merge"
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/syncmsg"
)

// RejectKind distinguishes a push rejection that suggests the client
// pull first from an outright rejection.
type RejectKind string

const (
	RejectPullSuggested RejectKind = "pull_suggested"
	RejectOutright      RejectKind = "outright"
)

// Rejection is returned when a push fails admission or apply.
type Rejection struct {
	Kind    RejectKind
	Reasons []string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("push rejected (%s): %v", r.Kind, r.Reasons)
}

func reject(kind RejectKind, reason string) *Rejection {
	return &Rejection{Kind: kind, Reasons: []string{reason}}
}

// Deps bundles what Push needs beyond the message itself.
type Deps struct {
	DB         *gorm.DB
	Engine     *engine.Engine
	Store      *oplog.Store
	Registry   *content.Registry
	Apply      merge.Applier
	Unique     merge.UniqueResolver
	NodeSecret func(nodeID string) (string, error)
}

// Push runs admission then apply for msg, returning the new version id
// on success. Any rejection is returned as a *Rejection.
func Push(msg *syncmsg.PushMessage, deps Deps) (int64, error) {
	if err := admit(msg, deps); err != nil {
		return 0, err
	}

	var newVersionID int64
	err := deps.DB.Transaction(func(tx *gorm.DB) error {
		return deps.Engine.WithListeningDisabled(func() error {
			return engine.WithForeignKeysRelaxed(tx, func(tx *gorm.DB) error {
				store := oplog.NewStore(tx)
				id, err := apply(msg, store, deps)
				if err != nil {
					return err
				}
				newVersionID = id
				return nil
			})
		})
	})
	if err != nil {
		return 0, err
	}
	return newVersionID, nil
}

func admit(msg *syncmsg.PushMessage, deps Deps) error {
	latest, err := deps.Store.LatestVersionID()
	if err != nil {
		return fmt.Errorf("server: push admission: read latest version: %w", err)
	}

	clientLatest := int64(0)
	if msg.LatestVersionID != nil {
		clientLatest = *msg.LatestVersionID
	}
	if clientLatest != latest {
		if clientLatest < latest {
			return reject(RejectPullSuggested, "client is behind the server's latest version; pull before pushing")
		}
		return reject(RejectOutright, "client's latest_version_id does not match server state")
	}

	if len(msg.Operations) == 0 {
		return reject(RejectOutright, "operations list is empty")
	}

	secret, err := deps.NodeSecret(msg.NodeID)
	if err != nil {
		return reject(RejectOutright, "unknown node")
	}
	if !syncmsg.Verify(secret, msg.Operations, msg.Key) {
		return reject(RejectOutright, "signature verification failed")
	}

	return nil
}

func apply(msg *syncmsg.PushMessage, store *oplog.Store, deps Deps) (int64, error) {
	if deps.Unique != nil {
		if err := deps.Unique.Resolve(msg.Operations, msg.Payload); err != nil {
			return 0, reject(RejectOutright, err.Error())
		}
	}

	// Server-side operations get fresh `order` values: the client's own
	// order is never reused (spec.md §4.6 step 3).
	newOrders := make([]int64, 0, len(msg.Operations))

	for _, op := range msg.Operations {
		entry, ok := deps.Registry.ByContentTypeID(op.ContentTypeID)
		if !ok {
			return 0, reject(RejectOutright, fmt.Sprintf("unknown content type %d", op.ContentTypeID))
		}

		switch op.Command {
		case oplog.Insert:
			obj, ok := msg.Payload.Get(entry.ContentType.ModelName, op.RowID)
			if !ok {
				return 0, reject(RejectOutright, fmt.Sprintf("missing payload object for insert of %s/%d", entry.ContentType.ModelName, op.RowID))
			}
			if err := deps.Apply.Insert(op.ContentTypeID, op.RowID, obj); err != nil {
				return 0, err
			}
		case oplog.Update:
			obj, ok := msg.Payload.Get(entry.ContentType.ModelName, op.RowID)
			if !ok {
				return 0, reject(RejectOutright, fmt.Sprintf("missing payload object for update of %s/%d", entry.ContentType.ModelName, op.RowID))
			}
			if err := deps.Apply.Update(op.ContentTypeID, op.RowID, obj); err != nil {
				common.Logger.WithFields(map[string]interface{}{
					"content_type_id": op.ContentTypeID,
					"row_id":          op.RowID,
				}).WithError(err).Warn("server: update target missing locally, skipping")
				continue
			}
		case oplog.Delete:
			if err := deps.Apply.Delete(op.ContentTypeID, op.RowID); err != nil {
				common.Logger.WithFields(map[string]interface{}{
					"content_type_id": op.ContentTypeID,
					"row_id":          op.RowID,
				}).WithError(err).Warn("server: delete target missing locally, skipping")
				continue
			}
		default:
			return 0, reject(RejectOutright, fmt.Sprintf("unknown command %q", op.Command))
		}

		serverOp := &oplog.Operation{
			ContentTypeID: op.ContentTypeID,
			RowID:         op.RowID,
			Command:       op.Command,
		}
		if err := store.Append(serverOp); err != nil {
			return 0, fmt.Errorf("server: append operation: %w", err)
		}
		newOrders = append(newOrders, serverOp.Order)
	}

	version := &oplog.Version{Created: time.Now(), NodeID: &msg.NodeID}
	if err := store.AppendVersion(version); err != nil {
		return 0, fmt.Errorf("server: append version: %w", err)
	}
	if err := store.RelinkToVersion(newOrders, version.VersionID); err != nil {
		return 0, fmt.Errorf("server: relink operations to version %d: %w", version.VersionID, err)
	}

	return version.VersionID, nil
}
