// Package compress implements operation-log compression: reducing the
// unversioned operation log to the smallest sequence with an equivalent
// net effect per (content_type_id, row_id), plus the repair pass that
// drops structurally impossible operations.
package compress

import (
	"sort"

	"sync.evalgo.org/oplog"
)

type groupKey struct {
	ContentTypeID uint32
	RowID         int64
}

// Compress reduces ops to the smallest equivalent sequence, one
// operation per (content_type_id, row_id) group at most, preserving the
// relative order of kept rows among the original list. It is a pure
// function operating on an in-memory operation list (the "in-memory
// compression" mode); callers working against the database use it
// together with oplog.Store to read/write the reduced set (the
// "in-database compression" mode — same algorithm, persisted).
//
// Compress is idempotent: Compress(Compress(ops)) == Compress(ops).
func Compress(ops []oplog.Operation) []oplog.Operation {
	order := make([]groupKey, 0)
	groups := make(map[groupKey][]oplog.Operation)

	for _, op := range ops {
		k := groupKey{op.ContentTypeID, op.RowID}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], op)
	}

	out := make([]oplog.Operation, 0, len(order))
	for _, k := range order {
		reduced, ok := CompressGroup(groups[k])
		if ok {
			out = append(out, reduced)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// CompressGroup reduces a single (content_type_id, row_id) group of
// operations, ordered oldest-to-newest (ascending Order), to at most one
// operation, per the table in the specification. ok is false when the
// group's net effect is "never existed" (an insert fully cancelled by a
// later delete).
func CompressGroup(ops []oplog.Operation) (oplog.Operation, bool) {
	if len(ops) == 0 {
		return oplog.Operation{}, false
	}
	if len(ops) == 1 {
		return ops[0], true
	}

	first := ops[0]
	last := ops[len(ops)-1]

	switch {
	case first.Command == oplog.Insert && last.Command == oplog.Delete:
		// i + ... + d -> never existed.
		return oplog.Operation{}, false

	case first.Command == oplog.Insert && last.Command == oplog.Update:
		// i + only u -> i.
		result := first
		return result, true

	case first.Command == oplog.Update && last.Command == oplog.Update:
		// u + only u -> first u.
		return first, true

	case first.Command == oplog.Update && last.Command == oplog.Delete:
		// u + ... + d -> d at the delete's own order.
		result := last
		result.Command = oplog.Delete
		return result, true

	case first.Command == oplog.Delete && last.Command == oplog.Delete:
		// d + ... + d -> first d (order of the first delete is kept, not
		// the last one's — the row is gone as of the earliest delete).
		result := first
		result.Command = oplog.Delete
		return result, true

	case first.Command == oplog.Delete && last.Command == oplog.Update:
		// d + ... + u -> last u.
		return last, true

	case first.Command == oplog.Delete && last.Command == oplog.Insert:
		// d + ... + i -> synthetic u at last op's order: the row
		// existed before this group, was deleted, then recreated with
		// the same pk, so the net effect as seen from outside this
		// group is an update.
		result := last
		result.Command = oplog.Update
		return result, true

	default:
		// Falls back to "itself" for any other combination (e.g. a
		// single-command run not covered above); newest content wins.
		return last, true
	}
}
