// Package corsfiber adapts a CORS middleware to the Fiber web framework.
package corsfiber

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/jub0bs/corsguard"
)

// names of the request headers that take part in CORS
var (
	origin = []byte("Origin")
	acrm   = []byte("Access-Control-Request-Method")
	acrh   = []byte("Access-Control-Request-Headers")
)

// New returns a Fiber handler that applies m to each request.
//
// Allowed actual requests are passed on to the next handler
// (see [fiber.Ctx.Next]). Allowed preflight requests are answered with
// the configured preflight-success status and no body.
// Denied requests result in a [*fiber.Error] carrying the middleware's
// denial status, which Fiber's error handler renders.
//
// Any reconfiguration of m takes effect on subsequent requests.
func New(m *corsguard.Middleware) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc := corsguard.NewRequestContext(requestOf(c))
		resHdrs := make(http.Header)
		v, err := m.Evaluate(rc, resHdrs)
		writeHeaders(c, resHdrs)
		if err != nil {
			return toFiberError(v, err)
		}
		if v.Terminal() {
			c.Status(v.Status())
			return nil
		}
		return c.Next()
	}
}

// requestOf extracts the CORS-relevant parts of c's request.
func requestOf(c *fiber.Ctx) *http.Request {
	hdrs := make(http.Header)
	c.Request().Header.VisitAll(func(k, v []byte) {
		var name string
		switch {
		case bytes.EqualFold(k, origin):
			name = "Origin"
		case bytes.EqualFold(k, acrm):
			name = "Access-Control-Request-Method"
		case bytes.EqualFold(k, acrh):
			name = "Access-Control-Request-Headers"
		default:
			return
		}
		hdrs[name] = append(hdrs[name], string(v))
	})
	return &http.Request{
		Method: c.Method(),
		Header: hdrs,
	}
}

func writeHeaders(c *fiber.Ctx, hdrs http.Header) {
	resHdrs := &c.Response().Header
	for name, values := range hdrs {
		if name != "Vary" {
			resHdrs.Del(name)
		}
		for _, v := range values {
			resHdrs.Add(name, v)
		}
	}
}

// toFiberError converts a denial reported by [corsguard.Middleware.Evaluate]
// into a Fiber error. The status comes from the error itself if it carries
// one, and from v otherwise.
func toFiberError(v corsguard.Verdict, err error) error {
	status := v.Status()
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}
	return fiber.NewError(status, http.StatusText(status))
}
