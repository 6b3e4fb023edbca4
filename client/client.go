// Package client implements the sync engine's HTTP client SDK: Register,
// Pull, Push, Repair, and Query against a server built from package
// httpapi. It is built directly on package http's Execute/NewRequest
// retry-and-backoff machinery rather than reimplementing transport.
package client

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"

	"sync.evalgo.org/common"
	eveHTTP "sync.evalgo.org/http"
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/syncmsg"
)

// ProgressFunc is called after each request/response round trip, named
// by request label and the response body size — used by long-running
// pulls/pushes to report progress without the client owning a UI.
type ProgressFunc func(label string, bodySize uint64)

// Client is a configured handle to one sync server.
type Client struct {
	BaseURL string
	NodeID  string
	Secret  string

	// BearerToken, when set, is attached as an Authorization header to
	// /query requests, for servers configured with the optional JWT
	// guard (see package httpapi).
	BearerToken string

	RetryCount   int
	RetryBackoff string
	UserAgent    string
	OnProgress   ProgressFunc
	InsecureTLS  bool
}

// New returns a Client with the teacher's default retry/backoff posture
// (no retries, exponential backoff if ever enabled).
func New(baseURL, nodeID, secret string) *Client {
	return &Client{
		BaseURL:      baseURL,
		NodeID:       nodeID,
		Secret:       secret,
		RetryCount:   0,
		RetryBackoff: "exponential",
		UserAgent:    "sync-client/1.0",
	}
}

func (c *Client) newRequest(method, path string) *eveHTTP.Request {
	req := eveHTTP.NewRequest(method, c.BaseURL+path)
	req.RetryCount = c.RetryCount
	req.RetryBackoff = c.RetryBackoff
	req.InsecureSkipVerify = c.InsecureTLS
	if c.UserAgent != "" {
		req.UserAgent = c.UserAgent
	}
	return req
}

func (c *Client) do(label string, req *eveHTTP.Request) (*eveHTTP.Response, error) {
	resp, err := eveHTTP.Execute(req)
	if err != nil {
		return resp, fmt.Errorf("client: %s: %w", label, err)
	}
	size := uint64(len(resp.Body))
	common.Logger.WithFields(map[string]interface{}{
		"request": label,
		"size":    humanSize(size),
	}).Debug("client: request completed")
	if c.OnProgress != nil {
		c.OnProgress(label, size)
	}
	return resp, nil
}

// Ping checks server reachability via HEAD /ping.
func (c *Client) Ping() error {
	req := c.newRequest("HEAD", "/ping")
	_, err := c.do("ping", req)
	return err
}

// Register creates a Node on the server and returns it, secret included.
func (c *Client) Register(registryUserID string) (*oplog.Node, error) {
	body, err := json.Marshal(struct {
		NodeID         string `json:"node_id"`
		RegistryUserID string `json:"registry_user_id"`
	}{NodeID: c.NodeID, RegistryUserID: registryUserID})
	if err != nil {
		return nil, fmt.Errorf("client: register: marshal request: %w", err)
	}

	req := c.newRequest("POST", "/register")
	req.JSONBody = string(body)
	resp, err := c.do("register", req)
	if err != nil {
		return nil, err
	}

	var out syncmsg.RegisterMessage
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("client: register: decode response: %w", err)
	}
	return &out.Node, nil
}

// Pull requests every Version after latestVersionID (nil for a first
// pull), along with the client's own pending operations as reversed-
// dependency hints, and returns the server's PullMessage.
func (c *Client) Pull(latestVersionID *int64, pending []oplog.Operation) (*syncmsg.PullMessage, error) {
	body, err := json.Marshal(syncmsg.PullRequestMessage{
		NodeID:          c.NodeID,
		LatestVersionID: latestVersionID,
		Operations:      pending,
	})
	if err != nil {
		return nil, fmt.Errorf("client: pull: marshal request: %w", err)
	}

	req := c.newRequest("POST", "/pull")
	req.JSONBody = string(body)
	resp, err := c.do("pull", req)
	if err != nil {
		return nil, err
	}

	var out syncmsg.PullMessage
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("client: pull: decode response: %w", err)
	}
	return &out, nil
}

// RejectionError mirrors the server's `{ error: [...] }` envelope for a
// rejected push.
type RejectionError struct {
	StatusCode int
	Reasons    []string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("push rejected (HTTP %d): %v", e.StatusCode, e.Reasons)
}

// PullSuggested reports whether the server rejected a push because this
// client is behind — the caller should Pull and retry.
func (e *RejectionError) PullSuggested() bool {
	return e.StatusCode == 409
}

// Push signs and sends ops/payload as a PushMessage, returning the new
// version id on success or a *RejectionError on a 4xx rejection.
func (c *Client) Push(latestVersionID *int64, ops []oplog.Operation, payload *syncmsg.Payload, extraData map[string]string) (int64, error) {
	msg := syncmsg.PushMessage{
		NodeID:          c.NodeID,
		LatestVersionID: latestVersionID,
		Operations:      ops,
		Payload:         payload,
		Key:             syncmsg.Sign(c.Secret, ops),
		ExtraData:       extraData,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("client: push: marshal request: %w", err)
	}

	req := c.newRequest("POST", "/push")
	req.JSONBody = string(body)
	resp, err := eveHTTP.Execute(req)
	if resp != nil && resp.IsClientError() {
		var errResp syncmsg.ErrorResponse
		if jsonErr := json.Unmarshal(resp.Body, &errResp); jsonErr == nil {
			return 0, &RejectionError{StatusCode: resp.StatusCode, Reasons: errResp.Error}
		}
	}
	if err != nil {
		return 0, fmt.Errorf("client: push: %w", err)
	}
	size := uint64(len(resp.Body))
	common.Logger.WithFields(map[string]interface{}{
		"request": "push",
		"size":    humanSize(size),
	}).Debug("client: request completed")
	if c.OnProgress != nil {
		c.OnProgress("push", size)
	}

	var out syncmsg.PushResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return 0, fmt.Errorf("client: push: decode response: %w", err)
	}
	return out.NewVersionID, nil
}

// Repair fetches a full snapshot plus the server's latest version id.
func (c *Client) Repair() (*syncmsg.Payload, int64, error) {
	req := c.newRequest("GET", "/repair")
	resp, err := c.do("repair", req)
	if err != nil {
		return nil, 0, err
	}

	var out struct {
		Payload         *syncmsg.Payload `json:"payload"`
		LatestVersionID int64            `json:"latest_version_id"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, 0, fmt.Errorf("client: repair: decode response: %w", err)
	}
	return out.Payload, out.LatestVersionID, nil
}

// Query filters one model's rows by equality, returning the matching
// payload. filter keys are bare column names; the model-name prefix the
// wire protocol expects is added here.
func (c *Client) Query(model string, filter map[string]string) (*syncmsg.Payload, error) {
	req := c.newRequest("GET", "/query")
	req.URL += "?model=" + model
	for col, val := range filter {
		req.URL += "&" + model + "_" + col + "=" + val
	}
	if c.BearerToken != "" {
		req.Headers["Authorization"] = "Bearer " + c.BearerToken
	}

	resp, err := c.do("query", req)
	if err != nil {
		return nil, err
	}

	var out struct {
		Payload *syncmsg.Payload `json:"payload"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("client: query: decode response: %w", err)
	}
	return out.Payload, nil
}

// humanSize renders a byte count the way progress callbacks typically
// want it reported (e.g. "1.2 MB"); used for the client's debug log line
// of each response size.
func humanSize(n uint64) string {
	return humanize.Bytes(n)
}
