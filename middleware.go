package corsguard

import (
	"io"
	"net/http"
	"sync/atomic"

	"github.com/jub0bs/corsguard/internal/headers"
	"github.com/sirupsen/logrus"
)

// A Middleware is a CORS middleware.
// Call its [*Middleware.Wrap] method to apply it to a [http.Handler],
// or its [*Middleware.Evaluate] method to drive it from some other HTTP
// framework.
//
// The zero value is ready to use but is a mere "passthrough" middleware,
// i.e. a middleware that simply delegates to the handler(s) it wraps.
// To obtain a proper CORS middleware, you should call [NewMiddleware]
// and pass it a valid [Config].
//
// Middleware log every denial at warning level through their logger
// (see [*Middleware.SetLogger]), which by default discards its output.
// Middleware also have a debug mode, which can be toggled by calling their
// [*Middleware.SetDebug] method; when debug mode is on, they also log
// every allowed CORS request at debug level.
//
// A Middleware must not be copied after first use.
//
// Middleware are safe for concurrent use by multiple goroutines.
// Therefore, you are free to expose some or all of their methods
// so you can exercise them without having to restart your server;
// however, if you do expose those methods, you should only do so on some
// internal or authorized endpoints, for security reasons.
type Middleware struct {
	icfg     atomic.Pointer[internalConfig]
	debug    atomic.Bool
	logger   atomic.Pointer[loggerHolder]
	observer atomic.Pointer[observerHolder]
}

// An Observer is notified of the outcome of every CORS request that a
// [Middleware] processes. Requests without an Origin header are not CORS
// requests and are therefore not reported.
//
// ObserveDecision is called synchronously on the request path;
// implementations must be safe for concurrent use and should return
// promptly.
type Observer interface {
	ObserveDecision(kind RequestKind, d Decision)
}

// atomic.Pointer requires a concrete type.
type (
	loggerHolder   struct{ logrus.FieldLogger }
	observerHolder struct{ Observer }
)

var discardLogger = &loggerHolder{
	FieldLogger: &logrus.Logger{
		Out:       io.Discard,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.PanicLevel,
	},
}

// NewMiddleware creates a CORS middleware that behaves in accordance with cfg.
// If cfg is invalid, it returns a nil [*Middleware] and some non-nil error.
// Otherwise, it returns a pointer to a CORS [Middleware] and a nil error.
//
// The debug mode of the resulting middleware is off,
// its logger discards its output, and it has no [Observer].
//
// Mutating the fields of cfg after NewMiddleware has returned a functioning
// middleware does not alter the latter's behavior.
// However, you can reconfigure a [Middleware] via its
// [*Middleware.Reconfigure] method.
//
// If you need to programmatically handle the configuration errors constitutive
// of the resulting error, rely on package [github.com/jub0bs/corsguard/cfgerrors].
func NewMiddleware(cfg Config) (*Middleware, error) {
	icfg, err := newInternalConfig(&cfg)
	if err != nil {
		return nil, err
	}
	var m Middleware
	m.icfg.Store(icfg)
	return &m, nil
}

// Reconfigure reconfigures m in accordance with cfg,
// leaving m's debug mode, logger, and observer unchanged.
// If cfg is nil, it turns m into a passthrough middleware.
// If *cfg is invalid, it leaves m unchanged and returns some non-nil error.
// Otherwise, it successfully reconfigures m and returns a nil error.
// The following statement is guaranteed to be a no-op
// (albeit a relatively expensive one):
//
//	m.Reconfigure(m.Config())
//
// You can safely reconfigure a middleware
// even as it's concurrently processing requests.
//
// Mutating the fields of cfg after Reconfigure has returned does not alter
// m's behavior.
func (m *Middleware) Reconfigure(cfg *Config) error {
	icfg, err := newInternalConfig(cfg)
	if err != nil {
		return err
	}
	m.icfg.Store(icfg)
	return nil
}

// Wrap applies the CORS middleware to the specified handler.
//
// When the middleware denies a request, h is not called;
// instead, the configured [Config.ErrorHandler] writes the response.
func (m *Middleware) Wrap(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		icfg := m.icfg.Load()
		if icfg == nil { // passthrough middleware
			h.ServeHTTP(w, r)
			return
		}
		rc := newRequestContext(r)
		v, err := m.evaluate(icfg, &rc, w.Header())
		if err != nil {
			icfg.errorHandler(w, r, err)
			return
		}
		if v.Terminal() {
			w.WriteHeader(v.Status())
			return
		}
		h.ServeHTTP(w, r)
	})
}

// Evaluate applies m to the request described by rc: it sets or adds the
// relevant CORS headers to resHdrs (the response's header map) and tells
// the caller how to proceed.
//
// If the request is to be denied, Evaluate returns a non-nil error
// (a [*OriginDeniedError] or a [*RequestHeadersDeniedError]) that carries
// the denial status, along with a terminal Verdict for that same status;
// the caller must then neither forward the request to the application nor
// add any CORS header to the response.
// Otherwise, the caller must follow the resulting [Verdict].
//
// A passthrough middleware always returns [Continue] and a nil error.
func (m *Middleware) Evaluate(rc *RequestContext, resHdrs http.Header) (Verdict, error) {
	icfg := m.icfg.Load()
	if icfg == nil {
		return Continue, nil
	}
	return m.evaluate(icfg, rc, resHdrs)
}

func (m *Middleware) evaluate(
	icfg *internalConfig,
	rc *RequestContext,
	resHdrs http.Header,
) (Verdict, error) {
	isOPTIONS := rc.Method == http.MethodOptions
	if !rc.HasOrigin {
		// r is NOT a CORS request;
		// see https://fetch.spec.whatwg.org/#cors-request.
		icfg.handleNonCORS(resHdrs, isOPTIONS)
		return Continue, nil
	}
	originSgl := rc.originSgl
	if originSgl == nil {
		originSgl = []string{rc.Origin}
	}
	if isOPTIONS && rc.HasRequestedMethod {
		// r is a CORS-preflight request;
		// see https://fetch.spec.whatwg.org/#cors-preflight-request.
		return m.handleCORSPreflight(icfg, rc, originSgl, resHdrs)
	}
	// r is an "actual" (i.e. non-preflight) CORS request.
	return m.handleCORSActual(icfg, rc, originSgl, resHdrs, isOPTIONS)
}

func (icfg *internalConfig) handleNonCORS(resHdrs http.Header, isOPTIONS bool) {
	if !isOPTIONS {
		// See https://fetch.spec.whatwg.org/#cors-protocol-and-http-caches.
		//
		// Note that we must add rather than set a Vary header here,
		// because outer middleware may have already added/set a Vary
		// header, which we wouldn't want to clobber.
		resHdrs.Add(headers.Vary, headers.Origin)
	}
}

func (m *Middleware) handleCORSPreflight(
	icfg *internalConfig,
	rc *RequestContext,
	originSgl []string,
	resHdrs http.Header,
) (Verdict, error) {
	// Responses to preflight requests carry no Vary header: its presence
	// has no bearing on browsers' CORS-preflight cache;
	// see https://fetch.spec.whatwg.org/#concept-cache.
	d := icfg.allowList.Decide(rc.Origin)
	if !d.IsAllowed() {
		return m.deny(rc, Preflight, icfg.denialStatus, &OriginDeniedError{
			Origin:    rc.Origin,
			Preflight: true,
			Status:    icfg.denialStatus,
		})
	}
	if icfg.validateReqHdrs &&
		len(rc.RequestedHeaders) > 0 &&
		!headers.AllAllowed(icfg.allowedReqHdrs, rc.RequestedHeaders) {
		return m.deny(rc, Preflight, icfg.denialStatus, &RequestHeadersDeniedError{
			Origin:         rc.Origin,
			RequestHeaders: rc.RequestedHeaders,
			Status:         icfg.denialStatus,
		})
	}
	// Note that, because the application handler is not called for
	// preflight requests, we can safely rely, for performance, on some
	// precomputed slices for setting headers.
	resHdrs[headers.ACAO] = originSgl
	if icfg.credentialed {
		// We make no attempt to infer whether the request is credentialed,
		// simply because preflight requests don't carry credentials;
		// see https://fetch.spec.whatwg.org/#example-xhr-credentials.
		resHdrs[headers.ACAC] = headers.TrueSgl
	}
	if icfg.acam != nil {
		resHdrs[headers.ACAM] = icfg.acam
	}
	if icfg.acah != nil {
		resHdrs[headers.ACAH] = icfg.acah
	}
	if icfg.acma != nil {
		resHdrs[headers.ACMA] = icfg.acma
	}
	m.allow(rc, Preflight, d)
	return Respond(icfg.preflightStatus), nil
}

// Note: only for _non-preflight_ CORS requests
func (m *Middleware) handleCORSActual(
	icfg *internalConfig,
	rc *RequestContext,
	originSgl []string,
	resHdrs http.Header,
	isOPTIONS bool,
) (Verdict, error) {
	// It's tempting to rely (for performance) on some precomputed slices for
	// the response headers we add/set here, as we do in handleCORSPreflight.
	// However, doing so here is fraught with peril, because it would provide
	// the wrapped handler an undesirable affordance: mutation of those slices.
	// See https://github.com/rs/cors/issues/198.
	if !isOPTIONS {
		// See https://fetch.spec.whatwg.org/#cors-protocol-and-http-caches.
		resHdrs.Add(headers.Vary, headers.Origin)
	}
	d := icfg.allowList.Decide(rc.Origin)
	if !d.IsAllowed() {
		return m.deny(rc, Actual, icfg.denialStatus, &OriginDeniedError{
			Origin: rc.Origin,
			Status: icfg.denialStatus,
		})
	}
	resHdrs[headers.ACAO] = originSgl
	if icfg.credentialed {
		// We systematically include "ACAC: true" if credentialed access is
		// enabled and request's origin is allowed, because a request's
		// credentials mode is not necessarily observable on the server.
		// See https://fetch.spec.whatwg.org/#example-xhr-credentials.
		resHdrs.Set(headers.ACAC, headers.ValueTrue)
	}
	if icfg.aceh != "" {
		resHdrs.Set(headers.ACEH, icfg.aceh)
	}
	m.allow(rc, Actual, d)
	return Continue, nil
}

// deny reports err along with a terminal Verdict, so that a host that
// consults the Verdict first still refrains from forwarding the request.
func (m *Middleware) deny(rc *RequestContext, kind RequestKind, status int, err error) (Verdict, error) {
	m.loggerFor(rc, kind).Warn(err.Error())
	if o := m.observer.Load(); o != nil {
		o.ObserveDecision(kind, Decision{})
	}
	return Respond(status), err
}

func (m *Middleware) allow(rc *RequestContext, kind RequestKind, d Decision) {
	if m.debug.Load() {
		m.loggerFor(rc, kind).Debug("corsguard: origin allowed")
	}
	if o := m.observer.Load(); o != nil {
		o.ObserveDecision(kind, d)
	}
}

func (m *Middleware) loggerFor(rc *RequestContext, kind RequestKind) logrus.FieldLogger {
	return m.currentLogger().WithFields(logrus.Fields{
		"origin":    rc.Origin,
		"method":    rc.Method,
		"preflight": kind == Preflight,
	})
}

func (m *Middleware) currentLogger() logrus.FieldLogger {
	if l := m.logger.Load(); l != nil {
		return l.FieldLogger
	}
	return discardLogger.FieldLogger
}

// SetDebug turns debug mode on (if b is true) or off (otherwise).
func (m *Middleware) SetDebug(b bool) {
	m.debug.Store(b)
}

// Debug reports whether m's debug mode is on.
func (m *Middleware) Debug() bool {
	return m.debug.Load()
}

// SetLogger sets the logger through which m reports denials and,
// in debug mode, allowed requests. A nil logger restores the default
// logger, which discards its output.
func (m *Middleware) SetLogger(l logrus.FieldLogger) {
	if l == nil {
		m.logger.Store(nil)
		return
	}
	m.logger.Store(&loggerHolder{l})
}

// SetObserver sets the [Observer] that m notifies of the outcome of every
// CORS request; a nil Observer disables notifications.
func (m *Middleware) SetObserver(o Observer) {
	if o == nil {
		m.observer.Store(nil)
		return
	}
	m.observer.Store(&observerHolder{o})
}

// Config returns a pointer to a deep copy of m's current configuration;
// if m is a passthrough middleware, it simply returns nil.
// The result may differ from the [Config] with which m was created or last
// reconfigured, but the following statement is guaranteed to be a no-op
// (albeit a relatively expensive one):
//
//	m.Reconfigure(m.Config())
//
// Mutating the fields of the result does not alter m's behavior.
// However, you can reconfigure a [Middleware] via its
// [*Middleware.Reconfigure] method.
func (m *Middleware) Config() *Config {
	return newConfig(m.icfg.Load())
}
