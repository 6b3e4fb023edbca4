package httpapi

import (
	"github.com/labstack/echo/v4"

	eveHTTP "sync.evalgo.org/http"
)

// NewServer builds an Echo server wired with the teacher's standard
// middleware stack (logger, recover, body limit, CORS, request id, rate
// limit) plus every route in a.Register, and the shared
// CustomHTTPErrorHandler, which renders any error a handler returns as
// an http.ErrorResponse (`{error, message}`). A *server.Rejection never
// reaches it: the handlers render rejections themselves as the
// `{ error: [...] }` envelope.
func NewServer(config eveHTTP.ServerConfig, a *API) *echo.Echo {
	e := eveHTTP.NewEchoServer(config)
	e.HTTPErrorHandler = eveHTTP.CustomHTTPErrorHandler
	e.GET("/healthz", eveHTTP.HealthCheckHandler(a.ServiceName, a.ServiceVersion))
	a.Register(e)
	return e
}
