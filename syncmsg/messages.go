package syncmsg

import (
	"time"

	"sync.evalgo.org/oplog"
)

// BaseMessage carries just a payload; used for repair and query
// responses.
type BaseMessage struct {
	Payload *Payload `json:"payload"`
}

// PullRequestMessage is what a client sends to request a pull: the
// latest version it has applied (nil if none yet), plus its own current
// unversioned operations (without backing objects) so the server can
// derive reversed-dependency hints. NodeID identifies the requester for
// acknowledgement tracking (see server.Pull); it is optional, matching
// push's node identification, but a pull without it is never counted
// towards log trim eligibility.
type PullRequestMessage struct {
	NodeID          string            `json:"node_id,omitempty"`
	LatestVersionID *int64            `json:"latest_version_id"`
	Operations      []oplog.Operation `json:"operations"`
	ExtraData       map[string]string `json:"extra_data,omitempty"`
}

// PullMessage is the server's response to a pull request.
type PullMessage struct {
	Created    time.Time         `json:"created"`
	Versions   []oplog.Version   `json:"versions"`
	Operations []oplog.Operation `json:"operations"`
	Payload    *Payload          `json:"payload"`
}

// PushMessage is what a client sends to push local changes. Key is the
// HMAC-style signature computed by Sign.
type PushMessage struct {
	Created         time.Time         `json:"created"`
	NodeID          string            `json:"node_id"`
	LatestVersionID *int64            `json:"latest_version_id"`
	Operations      []oplog.Operation `json:"operations"`
	Payload         *Payload          `json:"payload"`
	Key             string            `json:"key"`
	ExtraData       map[string]string `json:"extra_data,omitempty"`
}

// RegisterMessage wraps a single newly created Node.
type RegisterMessage struct {
	Node oplog.Node `json:"node"`
}

// PushResponse is the successful response to a push.
type PushResponse struct {
	NewVersionID int64 `json:"new_version_id"`
}

// ErrorResponse is the rejection response for a push or other request.
type ErrorResponse struct {
	Error []string `json:"error"`
}
