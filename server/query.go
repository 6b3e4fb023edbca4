package server

import (
	"fmt"

	"sync.evalgo.org/content"
	"sync.evalgo.org/syncmsg"
)

// RowQuerier filters one model's rows by equality on known columns,
// joined by logical AND.
type RowQuerier interface {
	Query(contentTypeID uint32, filter map[string]interface{}) ([]syncmsg.Object, error)
}

// QueryDeps bundles what Query needs beyond the request itself.
type QueryDeps struct {
	Registry *content.Registry
	Rows     RowQuerier
}

// Query implements the base query handler (spec.md §4.7): given a model
// name and a set of `<col>=value` filters, return the matching rows of
// that one model. Unknown models are rejected.
func Query(model string, filter map[string]interface{}, deps QueryDeps) (*syncmsg.BaseMessage, error) {
	entry, ok := deps.Registry.ByModelName(model)
	if !ok {
		return nil, fmt.Errorf("server: query: unknown model %q", model)
	}

	objs, err := deps.Rows.Query(entry.ContentType.ContentTypeID, filter)
	if err != nil {
		return nil, fmt.Errorf("server: query: %s: %w", model, err)
	}

	payload := syncmsg.NewPayload()
	for _, obj := range objs {
		payload.Add(obj)
	}
	return &syncmsg.BaseMessage{Payload: payload}, nil
}
