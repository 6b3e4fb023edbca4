package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sync.evalgo.org/oplog"
	"sync.evalgo.org/syncmsg"
)

func TestPing_Succeeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "/ping", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL, "node-1", "secret")
	require.NoError(t, c.Ping())
}

func TestRegister_ReturnsNode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/register", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(syncmsg.RegisterMessage{
			Node: oplog.Node{NodeID: "node-1", RegistryUserID: "user-1", Secret: "fresh-secret"},
		})
	}))
	defer server.Close()

	c := New(server.URL, "node-1", "secret")
	node, err := c.Register("user-1")
	require.NoError(t, err)
	assert.Equal(t, "node-1", node.NodeID)
	assert.Equal(t, "fresh-secret", node.Secret)
}

func TestPull_ReturnsMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req syncmsg.PullRequestMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(syncmsg.PullMessage{
			Versions: []oplog.Version{{VersionID: 1}},
		})
	}))
	defer server.Close()

	c := New(server.URL, "node-1", "secret")
	zero := int64(0)
	msg, err := c.Pull(&zero, nil)
	require.NoError(t, err)
	require.Len(t, msg.Versions, 1)
	assert.Equal(t, int64(1), msg.Versions[0].VersionID)
}

func TestPush_ReturnsNewVersionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg syncmsg.PushMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "node-1", msg.NodeID)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(syncmsg.PushResponse{NewVersionID: 7})
	}))
	defer server.Close()

	c := New(server.URL, "node-1", "secret")
	ops := []oplog.Operation{{ContentTypeID: 1, RowID: 1, Command: oplog.Insert}}
	versionID, err := c.Push(nil, ops, syncmsg.NewPayload(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), versionID)
}

func TestPush_RejectionSurfacesReasons(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(syncmsg.ErrorResponse{Error: []string{"pull before pushing"}})
	}))
	defer server.Close()

	c := New(server.URL, "node-1", "secret")
	ops := []oplog.Operation{{ContentTypeID: 1, RowID: 1, Command: oplog.Insert}}
	_, err := c.Push(nil, ops, syncmsg.NewPayload(), nil)
	require.Error(t, err)
	rej, ok := err.(*RejectionError)
	require.True(t, ok)
	assert.True(t, rej.PullSuggested())
	assert.Contains(t, rej.Reasons, "pull before pushing")
}

func TestRepair_ReturnsSnapshotAndLatestVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repair", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payload":{"Widget":[{"pk":1,"name":"a"}]},"latest_version_id":3}`))
	}))
	defer server.Close()

	c := New(server.URL, "node-1", "secret")
	payload, latest, err := c.Repair()
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest)
	assert.Len(t, payload.Objects("Widget"), 1)
}

func TestQuery_AppliesModelPrefixedFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Widget", r.URL.Query().Get("model"))
		assert.Equal(t, "a", r.URL.Query().Get("Widget_name"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payload":{"Widget":[{"pk":1,"name":"a"}]}}`))
	}))
	defer server.Close()

	c := New(server.URL, "node-1", "secret")
	payload, err := c.Query("Widget", map[string]string{"name": "a"})
	require.NoError(t, err)
	assert.Len(t, payload.Objects("Widget"), 1)
}
