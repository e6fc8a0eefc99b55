package corsguard_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jub0bs/corsguard"
)

const (
	// common request headers
	headerOrigin = "Origin"

	// preflight-only request headers
	headerACRM = "Access-Control-Request-Method"
	headerACRH = "Access-Control-Request-Headers"

	// common response headers
	headerACAO = "Access-Control-Allow-Origin"
	headerACAC = "Access-Control-Allow-Credentials"

	// preflight-only response headers
	headerACAM = "Access-Control-Allow-Methods"
	headerACAH = "Access-Control-Allow-Headers"
	headerACMA = "Access-Control-Max-Age"

	// actual-only response headers
	headerACEH = "Access-Control-Expose-Headers"

	headerVary = "Vary"

	// set by http.Error
	headerContentType = "Content-Type"
	headerNoSniff     = "X-Content-Type-Options"
)

// outcome is the expected fate of a request.
type outcome uint8

const (
	forwarded outcome = iota // the wrapped handler runs
	answered                 // preflight answered by the middleware
	denied                   // the error handler runs
)

type MiddlewareTestCase struct {
	desc       string
	outerMw    *middleware
	newHandler func() http.Handler
	cfg        *corsguard.Config
	debug      bool
	cases      []ReqTestCase
}

type ReqTestCase struct {
	desc string
	// request
	reqMethod  string
	reqHeaders http.Header
	// expectations
	outcome     outcome
	respHeaders http.Header
}

func newRequest(method string, headers http.Header) *http.Request {
	const dummyEndpoint = "https://example.com/whatever"
	req := httptest.NewRequest(method, dummyEndpoint, nil)
	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	return req
}

type spyHandler struct {
	called      atomic.Bool
	statusCode  int
	respHeaders http.Header
	body        string
	handler     http.Handler
}

func newSpyHandler(statusCode int, respHeaders http.Header, body string) func() http.Handler {
	f := func() http.Handler {
		h := func(w http.ResponseWriter, r *http.Request) {
			for k, vs := range respHeaders {
				for _, v := range vs {
					w.Header().Add(k, v)
				}
			}
			w.WriteHeader(statusCode)
			if len(body) > 0 {
				io.WriteString(w, body)
			}
		}
		return &spyHandler{
			statusCode:  statusCode,
			respHeaders: respHeaders,
			body:        body,
			handler:     http.HandlerFunc(h),
		}
	}
	return f
}

func (s *spyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.called.Store(true)
	s.handler.ServeHTTP(w, r)
}

var varyMiddleware = middleware{
	hdrs: http.Header{headerVary: {"before"}},
}

type middleware struct {
	hdrs http.Header
}

func (m middleware) Wrap(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		for k, vs := range m.hdrs {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(f)
}

func assertStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		const tmpl = "got status code %d; want %d"
		t.Errorf(tmpl, got, want)
	}
}

// note: this function mutates got (to ease subsequent assertions)
func assertResponseHeaders(t *testing.T, got http.Header, want http.Header) {
	t.Helper()
	for k, vs := range want {
		for _, v := range vs {
			if !deleteHeaderValue(got, k, v) {
				t.Errorf(`missing header value "%s: %s"`, k, v)
			}
		}
		// clean up: remove headers whose values are empty but non-nil
		if vs, found := got[k]; found && len(vs) == 0 {
			delete(got, k)
		}
	}
}

func assertNoMoreResponseHeaders(t *testing.T, left http.Header) {
	t.Helper()
	for k, v := range left {
		t.Errorf("unexpected header value(s) %q: %q", k, v)
	}
}

func assertBody(t *testing.T, body io.ReadCloser, want string) {
	t.Helper()
	var buf bytes.Buffer
	_, err := io.Copy(&buf, body)
	if got := buf.String(); err != nil || got != want {
		t.Errorf("got body %q; want body %q", got, want)
	}
}

// deleteHeaderValue reports whether h contains a header named key
// that contains value.
// If that's the case, the key-value pair in question is removed from h.
func deleteHeaderValue(h http.Header, key, value string) bool {
	vs, ok := h[key]
	if !ok {
		return false
	}
	i := slices.Index(vs, value)
	if i == -1 {
		return false
	}
	h[key] = slices.Delete(vs, i, i+1)
	return true
}

func newMutatingHandler() http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		resHdrs := w.Header()
		keys := []string{
			headerACAO,
			headerACAC,
			headerACEH,
			headerVary,
		}
		for _, k := range keys {
			if v, ok := resHdrs[k]; ok && len(v) > 0 {
				v[0] = "mutated!"
			}
		}
	}
	return http.HandlerFunc(f)
}

type observation struct {
	kind    corsguard.RequestKind
	allowed bool
	origin  string
}

// spyObserver records the decisions it is notified of.
type spyObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (o *spyObserver) ObserveDecision(kind corsguard.RequestKind, d corsguard.Decision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, observation{kind, d.IsAllowed(), d.Origin()})
}

func (o *spyObserver) observations() []observation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.seen)
}

// checkRequest sends a request described by tc through mw (and through
// mwtc's outer middleware, if any) and checks the response.
func checkRequest(t *testing.T, mw *corsguard.Middleware, mwtc *MiddlewareTestCase, tc *ReqTestCase) {
	t.Helper()
	// --- arrange ---
	innerHandler := mwtc.newHandler()
	handler := mw.Wrap(innerHandler)
	if outerMiddleware := mwtc.outerMw; outerMiddleware != nil {
		handler = outerMiddleware.Wrap(handler)
	}
	req := newRequest(tc.reqMethod, tc.reqHeaders)
	rec := httptest.NewRecorder()

	// --- act ---
	handler.ServeHTTP(rec, req)
	res := rec.Result()

	// --- assert ---
	spy, ok := innerHandler.(*spyHandler)
	if !ok {
		t.Fatalf("handler is not a *spyHandler")
	}
	switch tc.outcome {
	case answered:
		if spy.called.Load() {
			t.Error("wrapped handler was called, but it should not have been")
		}
		want := http.StatusNoContent
		if mwtc.cfg.PreflightSuccessStatus != 0 {
			want = mwtc.cfg.PreflightSuccessStatus
		}
		assertStatus(t, res.StatusCode, want)
		assertResponseHeaders(t, res.Header, tc.respHeaders)
		if mwtc.outerMw != nil {
			assertResponseHeaders(t, res.Header, mwtc.outerMw.hdrs)
		}
		assertNoMoreResponseHeaders(t, res.Header)
		assertBody(t, res.Body, "")
	case denied:
		if spy.called.Load() {
			t.Error("wrapped handler was called, but it should not have been")
		}
		want := http.StatusForbidden
		if mwtc.cfg.DenialStatus != 0 {
			want = mwtc.cfg.DenialStatus
		}
		assertStatus(t, res.StatusCode, want)
		assertResponseHeaders(t, res.Header, tc.respHeaders)
		if mwtc.outerMw != nil {
			assertResponseHeaders(t, res.Header, mwtc.outerMw.hdrs)
		}
		errorHeaders := http.Header{
			headerContentType: {"text/plain; charset=utf-8"},
			headerNoSniff:     {"nosniff"},
		}
		assertResponseHeaders(t, res.Header, errorHeaders)
		assertNoMoreResponseHeaders(t, res.Header)
		assertBody(t, res.Body, http.StatusText(want)+"\n")
	default:
		if !spy.called.Load() {
			t.Error("wrapped handler wasn't called, but it should have been")
		}
		assertStatus(t, res.StatusCode, spy.statusCode)
		assertResponseHeaders(t, res.Header, spy.respHeaders)
		assertResponseHeaders(t, res.Header, tc.respHeaders)
		if mwtc.outerMw != nil {
			assertResponseHeaders(t, res.Header, mwtc.outerMw.hdrs)
		}
		assertNoMoreResponseHeaders(t, res.Header)
		assertBody(t, res.Body, spy.body)
	}
}
