package compress

import "sync.evalgo.org/oplog"

// Exists reports whether the row named by (contentTypeID, rowID) still
// exists in its backing table. Repair only ever reads primary keys
// through this callback — never full row content.
type Exists func(contentTypeID uint32, rowID int64) (bool, error)

// Repair drops operations that are structurally impossible given the
// current state of the backing tables: an insert or update whose row no
// longer exists, a duplicate command repeated on the same row, and an
// update that precedes a later insert on the same row with no
// intervening delete between them (an ordering that cannot arise from a
// correctly tracked session). It returns the surviving operations and,
// separately, the ones it dropped (for logging).
func Repair(ops []oplog.Operation, exists Exists) (kept []oplog.Operation, dropped []oplog.Operation, err error) {
	alive := make([]oplog.Operation, 0, len(ops))
	for _, op := range ops {
		if op.Command == oplog.Insert || op.Command == oplog.Update {
			ok, err := exists(op.ContentTypeID, op.RowID)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				dropped = append(dropped, op)
				continue
			}
		}
		alive = append(alive, op)
	}

	groupOrder := make([]groupKey, 0)
	groups := make(map[groupKey][]oplog.Operation)
	for _, op := range alive {
		k := groupKey{op.ContentTypeID, op.RowID}
		if _, seen := groups[k]; !seen {
			groupOrder = append(groupOrder, k)
		}
		groups[k] = append(groups[k], op)
	}

	surviving := make(map[int64]bool, len(alive))
	for _, k := range groupOrder {
		for _, op := range repairGroup(groups[k]) {
			surviving[op.Order] = true
		}
	}

	for _, op := range alive {
		if surviving[op.Order] {
			kept = append(kept, op)
		} else {
			dropped = append(dropped, op)
		}
	}
	return kept, dropped, nil
}

// repairGroup drops structurally impossible operations within one
// (content_type_id, row_id) group: a duplicate occurrence of a command
// already seen, and an update that precedes a later insert without an
// intervening delete.
func repairGroup(ops []oplog.Operation) []oplog.Operation {
	out := make([]oplog.Operation, 0, len(ops))
	seenCommand := make(map[oplog.Command]bool, 3)

	for i, op := range ops {
		if seenCommand[op.Command] {
			continue // duplicate command on the same row
		}

		if op.Command == oplog.Update {
			if precedesInsertWithoutDelete(ops[i+1:]) {
				continue
			}
		}

		seenCommand[op.Command] = true
		out = append(out, op)
	}
	return out
}

func precedesInsertWithoutDelete(rest []oplog.Operation) bool {
	for _, op := range rest {
		switch op.Command {
		case oplog.Delete:
			return false
		case oplog.Insert:
			return true
		}
	}
	return false
}
