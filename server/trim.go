package server

import (
	"fmt"

	"sync.evalgo.org/oplog"
)

// TrimDeps bundles what Trim needs beyond the store itself.
type TrimDeps struct {
	Store *oplog.Store
	// Acked returns the highest version id the given node has
	// acknowledged (via a successful pull), or 0 if it has never pulled.
	Acked func(nodeID string) (int64, error)
}

// Trim implements the periodic log-trim (spec.md §4.11): delete
// operations and versions once every known node has acknowledged at
// least one version. It is a no-op if any registered node has not yet
// acknowledged anything, or if there are no registered nodes.
func Trim(deps TrimDeps) error {
	nodes, err := deps.Store.AllNodes()
	if err != nil {
		return fmt.Errorf("server: trim: list nodes: %w", err)
	}
	if len(nodes) == 0 {
		return nil
	}

	minAcked := int64(-1)
	for _, n := range nodes {
		acked, err := deps.Acked(n.NodeID)
		if err != nil {
			return fmt.Errorf("server: trim: read ack for %s: %w", n.NodeID, err)
		}
		if acked == 0 {
			return nil // not every node has acknowledged yet
		}
		if minAcked == -1 || acked < minAcked {
			minAcked = acked
		}
	}

	return deps.Store.TrimBelow(minAcked)
}
