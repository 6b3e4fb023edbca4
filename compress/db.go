package compress

import "sync.evalgo.org/oplog"

// InDatabase compresses the store's unversioned operation log in place:
// it reads every unversioned Operation, reduces each
// (content_type_id, row_id) group with CompressGroup, deletes every
// operation that did not survive reduction, and leaves exactly the
// reduced set behind. It returns the reduced operations, in their
// original relative order.
func InDatabase(store *oplog.Store) ([]oplog.Operation, error) {
	ops, err := store.Unversioned()
	if err != nil {
		return nil, err
	}

	reduced := Compress(ops)
	keep := make(map[int64]oplog.Operation, len(reduced))
	for _, op := range reduced {
		keep[op.Order] = op
	}

	var drop []int64
	for _, op := range ops {
		if _, ok := keep[op.Order]; !ok {
			drop = append(drop, op.Order)
		}
	}
	if err := store.DeleteByOrders(drop); err != nil {
		return nil, err
	}

	// A surviving operation may have had its command rewritten by
	// reduction (e.g. the synthetic update from a delete-then-insert
	// pair); persist that rewrite.
	for _, op := range ops {
		want, ok := keep[op.Order]
		if !ok || want.Command == op.Command {
			continue
		}
		if err := store.UpdateCommand(op.Order, want.Command); err != nil {
			return nil, err
		}
	}

	return reduced, nil
}
