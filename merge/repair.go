package merge

import (
	"fmt"

	"sync.evalgo.org/content"
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/syncmsg"
)

// Wiper deletes every row of every tracked model, used by client Repair
// before reloading from a server snapshot.
type Wiper interface {
	WipeAll(entries []*content.Entry) error
}

// Repair implements the client-side repair operation (spec.md §4.11):
// delete all rows of all tracked models, delete all local operations and
// versions, then insert every object from the server's snapshot payload
// and record the snapshot's latest_version_id.
func Repair(payload *syncmsg.Payload, latestVersionID int64, reg *content.Registry, wipe Wiper, apply Applier, store *oplog.Store) error {
	entries := reg.All()

	if err := wipe.WipeAll(entries); err != nil {
		return fmt.Errorf("merge: repair: wipe local tables: %w", err)
	}
	if err := store.DeleteAllOperationsAndVersions(); err != nil {
		return fmt.Errorf("merge: repair: clear local log: %w", err)
	}

	for _, entry := range entries {
		modelName := entry.ContentType.ModelName
		for _, obj := range payload.Objects(modelName) {
			if err := apply.Insert(entry.ContentType.ContentTypeID, obj.PK, obj); err != nil {
				return fmt.Errorf("merge: repair: insert %s/%d: %w", modelName, obj.PK, err)
			}
		}
	}

	return store.AppendVersion(&oplog.Version{VersionID: latestVersionID})
}
