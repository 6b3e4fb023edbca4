package server

import (
	"fmt"
	"time"

	"sync.evalgo.org/conflict"
	"sync.evalgo.org/content"
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/syncmsg"
)

// RowFetcher reads back a tracked row as a wire Object, used to fill in
// the backing objects and parent-object hints a PullMessage carries.
type RowFetcher interface {
	Fetch(contentTypeID uint32, rowID int64) (syncmsg.Object, bool, error)
}

// PullDeps bundles what Pull needs beyond the request itself.
type PullDeps struct {
	Store       *oplog.Store
	Registry    *content.Registry
	Fetch       RowFetcher
	ForeignKeys conflict.ForeignKeys
}

// Pull implements the server pull handler (spec.md §4.7): every Version
// after req.LatestVersionID, their Operations, the backing objects for
// non-delete operations on pull-enabled models, and the reversed-
// dependency parent-object hints for the client's own pending deletions.
func Pull(req *syncmsg.PullRequestMessage, deps PullDeps) (*syncmsg.PullMessage, error) {
	latest := int64(0)
	if req.LatestVersionID != nil {
		latest = *req.LatestVersionID
	}

	versions, err := deps.Store.VersionsAfter(latest)
	if err != nil {
		return nil, fmt.Errorf("server: pull: read versions: %w", err)
	}

	versionIDs := make([]int64, 0, len(versions))
	for _, v := range versions {
		versionIDs = append(versionIDs, v.VersionID)
	}
	ops, err := deps.Store.OperationsInVersions(versionIDs)
	if err != nil {
		return nil, fmt.Errorf("server: pull: read operations: %w", err)
	}

	payload := syncmsg.NewPayload()

	for _, op := range ops {
		if op.Command == oplog.Delete {
			continue
		}
		entry, ok := deps.Registry.ByContentTypeID(op.ContentTypeID)
		if !ok || !entry.Direction.HasPull() {
			continue
		}
		obj, found, err := deps.Fetch.Fetch(op.ContentTypeID, op.RowID)
		if err != nil {
			return nil, fmt.Errorf("server: pull: fetch %s/%d: %w", entry.ContentType.ModelName, op.RowID, err)
		}
		if found {
			payload.Add(obj)
		}
	}

	if deps.ForeignKeys != nil {
		for _, op := range req.Operations {
			if op.Command != oplog.Delete {
				continue
			}
			parent, ok, err := deps.ForeignKeys.ParentOf(op.ContentTypeID, op.RowID)
			if err != nil || !ok {
				continue
			}
			entry, ok := deps.Registry.ByContentTypeID(parent.ContentTypeID)
			if !ok || !entry.Direction.HasPull() {
				continue
			}
			obj, found, err := deps.Fetch.Fetch(parent.ContentTypeID, parent.RowID)
			if err != nil {
				return nil, fmt.Errorf("server: pull: fetch parent %s/%d: %w", entry.ContentType.ModelName, parent.RowID, err)
			}
			if found {
				payload.Add(obj)
			}
		}
	}

	if req.NodeID != "" {
		acked := latest
		if len(versions) > 0 {
			acked = versions[len(versions)-1].VersionID
		}
		if err := deps.Store.UpdateNodeAck(req.NodeID, acked); err != nil {
			return nil, fmt.Errorf("server: pull: update node ack: %w", err)
		}
	}

	return &syncmsg.PullMessage{
		Created:    time.Now(),
		Versions:   versions,
		Operations: ops,
		Payload:    payload,
	}, nil
}
