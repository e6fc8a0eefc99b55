package corsguard

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrOriginDenied is matched (via [errors.Is]) by the errors that a
	// CORS middleware reports when a CORS request's origin is not allowed.
	ErrOriginDenied = errors.New("corsguard: origin not allowed")
	// ErrRequestHeadersDenied is matched (via [errors.Is]) by the errors
	// that a CORS middleware reports when it denies a preflight request
	// because of its Access-Control-Request-Headers header;
	// see [Config.ValidateRequestHeaders].
	ErrRequestHeadersDenied = errors.New("corsguard: request headers not allowed")
)

// An OriginDeniedError indicates that a CORS request was denied because its
// origin is not allowed.
type OriginDeniedError struct {
	Origin    string // the value of the request's Origin header
	Preflight bool   // whether the request was a preflight request
	Status    int    // the configured denial status
}

func (err *OriginDeniedError) Error() string {
	const tmpl = "corsguard: origin %q not allowed (%s request)"
	return fmt.Sprintf(tmpl, err.Origin, requestKind(err.Preflight))
}

func (err *OriginDeniedError) Is(target error) bool {
	return target == ErrOriginDenied
}

// StatusCode returns the status code of the response to the denied request.
func (err *OriginDeniedError) StatusCode() int {
	return err.Status
}

// A RequestHeadersDeniedError indicates that a preflight request from an
// allowed origin was denied because it requested some header name that
// the middleware does not allow.
type RequestHeadersDeniedError struct {
	Origin         string   // the value of the request's Origin header
	RequestHeaders []string // the request's Access-Control-Request-Headers field lines
	Status         int      // the configured denial status
}

func (err *RequestHeadersDeniedError) Error() string {
	const tmpl = "corsguard: request headers %q not allowed for origin %q"
	return fmt.Sprintf(tmpl, err.RequestHeaders, err.Origin)
}

func (err *RequestHeadersDeniedError) Is(target error) bool {
	return target == ErrRequestHeadersDenied
}

// StatusCode returns the status code of the response to the denied request.
func (err *RequestHeadersDeniedError) StatusCode() int {
	return err.Status
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status := defaultDenialStatus
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}
	http.Error(w, http.StatusText(status), status)
}
