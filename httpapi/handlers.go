package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"sync.evalgo.org/server"
	"sync.evalgo.org/syncmsg"
)

// errorResponse mirrors spec.md §6: rejections return `{ error: [...] }`.
type errorResponse struct {
	Error []string `json:"error"`
}

// writeRejection maps a *server.Rejection onto the HTTP status spec.md
// §4.6 implies: a pull-suggested rejection is a conflict the client can
// resolve by pulling first (409); every other rejection is a plain bad
// request (400).
func writeRejection(c echo.Context, rej *server.Rejection) error {
	status := http.StatusBadRequest
	if rej.Kind == server.RejectPullSuggested {
		status = http.StatusConflict
	}
	return c.JSON(status, errorResponse{Error: rej.Reasons})
}

// PushHandler implements POST /push.
func (a *API) PushHandler(c echo.Context) error {
	var msg syncmsg.PushMessage
	if err := c.Bind(&msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if msg.Payload == nil {
		msg.Payload = syncmsg.NewPayload()
	}

	versionID, err := server.Push(&msg, a.Push)
	if err != nil {
		if rej, ok := err.(*server.Rejection); ok {
			return writeRejection(c, rej)
		}
		return err
	}

	return c.JSON(http.StatusOK, syncmsg.PushResponse{NewVersionID: versionID})
}

// PullHandler implements GET/POST /pull.
func (a *API) PullHandler(c echo.Context) error {
	var req syncmsg.PullRequestMessage
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp, err := server.Pull(&req, a.Pull)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// RepairHandler implements GET /repair.
func (a *API) RepairHandler(c echo.Context) error {
	msg, latest, err := server.Repair(a.Repair)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, struct {
		Payload         *syncmsg.Payload `json:"payload"`
		LatestVersionID int64            `json:"latest_version_id"`
	}{Payload: msg.Payload, LatestVersionID: latest})
}

// QueryHandler implements GET /query?model=<Name>&<Name>_<col>=<value>&....
func (a *API) QueryHandler(c echo.Context) error {
	model := c.QueryParam("model")
	if model == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing model parameter")
	}

	prefix := model + "_"
	filter := make(map[string]interface{})
	for key, values := range c.QueryParams() {
		if key == "model" || len(values) == 0 {
			continue
		}
		if col, ok := strings.CutPrefix(key, prefix); ok {
			filter[col] = values[0]
		}
	}

	msg, err := server.Query(model, filter, a.Query)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, msg)
}

// registerRequest is the inbound body for POST /register.
type registerRequest struct {
	NodeID         string `json:"node_id"`
	RegistryUserID string `json:"registry_user_id"`
}

// RegisterHandler implements POST /register.
func (a *API) RegisterHandler(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	node, err := server.Register(req.NodeID, req.RegistryUserID, a.Register)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, syncmsg.RegisterMessage{Node: *node})
}
