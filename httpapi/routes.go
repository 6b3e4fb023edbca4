// Package httpapi binds package server's business logic to Echo routes,
// following the teacher's http.NewEchoServer middleware stack and
// CustomHTTPErrorHandler conventions.
package httpapi

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/golang-jwt/jwt/v5"

	"sync.evalgo.org/auth"
	eveHTTP "sync.evalgo.org/http"
	"sync.evalgo.org/server"
)

// API bundles the server-package deps plus whatever httpapi itself needs
// (the query-guard JWT secret) to wire up routes.
type API struct {
	Push     server.Deps
	Pull     server.PullDeps
	Repair   server.RepairDeps
	Query    server.QueryDeps
	Register server.RegisterDeps

	// QueryJWTSecret guards GET /query with echo-jwt when non-empty, per
	// the optional operator-facing authentication callback.
	QueryJWTSecret string

	ServiceName    string
	ServiceVersion string
}

// Register wires every route in the wire-protocol route table onto e.
func (a *API) Register(e *echo.Echo) {
	e.POST("/register", a.RegisterHandler)
	e.GET("/pull", a.PullHandler)
	e.POST("/pull", a.PullHandler)
	e.POST("/push", a.PushHandler)
	e.GET("/repair", a.RepairHandler)
	e.HEAD("/ping", a.PingHandler)

	queryRoute := e.GET("/query", a.QueryHandler)
	if a.QueryJWTSecret != "" {
		queryRoute.Use(echojwt.WithConfig(echojwt.Config{
			SigningKey: []byte(a.QueryJWTSecret),
			NewClaimsFunc: func(c echo.Context) jwt.Claims {
				return &auth.Claims{}
			},
		}))
	}

	e.GET("/docs", eveHTTP.DocumentationHandler(a.docConfig()))
}

// docConfig describes the wire protocol for the /docs page.
func (a *API) docConfig() eveHTTP.ServiceDocConfig {
	return eveHTTP.ServiceDocConfig{
		ServiceName: a.ServiceName,
		Description: "centralized sync engine: push/pull/repair/query against a tracked operation log",
		Version:     a.ServiceVersion,
		Endpoints: []eveHTTP.EndpointDoc{
			{Method: "POST", Path: "/register", Description: "register a node, receiving its push-signing secret"},
			{Method: "GET", Path: "/pull", Description: "fetch versions after a node's last known version id"},
			{Method: "POST", Path: "/pull", Description: "fetch versions, reporting pending local operations for conflict detection"},
			{Method: "POST", Path: "/push", Description: "submit signed operations to append as a new version"},
			{Method: "GET", Path: "/repair", Description: "fetch a full snapshot payload to rebuild a node's local log"},
			{Method: "GET", Path: "/query", Description: "filtered read of a tracked model's current rows"},
			{Method: "HEAD", Path: "/ping", Description: "reachability check"},
		},
	}
}

// PingHandler answers HEAD /ping for reachability/readiness checks.
func (a *API) PingHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
