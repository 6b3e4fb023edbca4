package server

import (
	"fmt"

	"sync.evalgo.org/content"
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/syncmsg"
)

// RepairDeps bundles what Repair needs beyond the request itself.
type RepairDeps struct {
	Store    *oplog.Store
	Registry *content.Registry
	Fetch    AllRowsFetcher
}

// AllRowsFetcher reads back every row of a tracked model, used to build a
// full-snapshot repair response.
type AllRowsFetcher interface {
	FetchAll(contentTypeID uint32) ([]syncmsg.Object, error)
}

// Repair implements the server repair handler (spec.md §4.7): a full
// snapshot of every row of every pull-enabled model, plus the server's
// current latest version id. Used when a client's state is beyond
// reconciliation by ordinary pull/merge.
func Repair(deps RepairDeps) (*syncmsg.BaseMessage, int64, error) {
	latest, err := deps.Store.LatestVersionID()
	if err != nil {
		return nil, 0, fmt.Errorf("server: repair: read latest version: %w", err)
	}

	payload := syncmsg.NewPayload()
	for _, entry := range deps.Registry.PullEnabled() {
		objs, err := deps.Fetch.FetchAll(entry.ContentType.ContentTypeID)
		if err != nil {
			return nil, 0, fmt.Errorf("server: repair: fetch %s: %w", entry.ContentType.ModelName, err)
		}
		for _, obj := range objs {
			payload.Add(obj)
		}
	}

	return &syncmsg.BaseMessage{Payload: payload}, latest, nil
}
