package corsguard

import (
	"net/http"

	"github.com/jub0bs/corsguard/internal/headers"
)

// A RequestContext holds the parts of an HTTP request that are relevant to
// CORS. Adapters for HTTP frameworks other than net/http populate one and
// pass it to [*Middleware.Evaluate].
type RequestContext struct {
	// Origin is the value of the request's Origin header (if any).
	Origin string
	// HasOrigin reports whether the request carries an Origin header.
	HasOrigin bool
	// Method is the request's method.
	Method string
	// RequestedMethod is the value of the request's
	// Access-Control-Request-Method header (if any).
	RequestedMethod string
	// HasRequestedMethod reports whether the request carries an
	// Access-Control-Request-Method header.
	HasRequestedMethod bool
	// RequestedHeaders holds the request's Access-Control-Request-Headers
	// field lines (if any).
	RequestedHeaders []string

	originSgl []string
}

// NewRequestContext returns the RequestContext of r.
func NewRequestContext(r *http.Request) *RequestContext {
	rc := newRequestContext(r)
	return &rc
}

func newRequestContext(r *http.Request) RequestContext {
	rc := RequestContext{Method: r.Method}
	// Fetch-compliant browsers send at most one Origin header;
	// see https://fetch.spec.whatwg.org/#http-network-or-cache-fetch
	// (step 12).
	rc.Origin, rc.originSgl, rc.HasOrigin = headers.First(r.Header, headers.Origin)
	// Fetch-compliant browsers send at most one ACRM header;
	// see https://fetch.spec.whatwg.org/#cors-preflight-fetch (step 3).
	rc.RequestedMethod, _, rc.HasRequestedMethod = headers.First(r.Header, headers.ACRM)
	rc.RequestedHeaders = r.Header[headers.ACRH]
	return rc
}

// IsPreflight reports whether rc is that of a [CORS-preflight request].
//
// [CORS-preflight request]: https://fetch.spec.whatwg.org/#cors-preflight-request
func (rc *RequestContext) IsPreflight() bool {
	return rc.HasOrigin &&
		rc.Method == http.MethodOptions &&
		rc.HasRequestedMethod
}

// A Verdict tells the host of a CORS middleware how to proceed with a
// request once [*Middleware.Evaluate] has populated the response headers.
type Verdict struct {
	status int // 0 <=> continue
}

// Continue is the Verdict that instructs the host to forward the request
// to the application.
var Continue Verdict

// Respond returns the Verdict that instructs the host to respond
// with the specified status and no body, without forwarding the request
// to the application.
func Respond(status int) Verdict {
	return Verdict{status: status}
}

// Terminal reports whether v instructs the host to respond immediately.
func (v Verdict) Terminal() bool {
	return v.status != 0
}

// Status returns the status with which to respond if v is terminal,
// or 0 otherwise.
func (v Verdict) Status() int {
	return v.status
}

// A RequestKind distinguishes preflight requests from actual requests.
type RequestKind uint8

const (
	Actual    RequestKind = iota // non-preflight CORS request
	Preflight                    // CORS-preflight request
)

func (k RequestKind) String() string {
	if k == Preflight {
		return "preflight"
	}
	return "actual"
}

func requestKind(preflight bool) RequestKind {
	if preflight {
		return Preflight
	}
	return Actual
}
