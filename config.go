package corsguard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jub0bs/corsguard/cfgerrors"
	"github.com/jub0bs/corsguard/internal/headers"
	"github.com/jub0bs/corsguard/internal/methods"
	"github.com/jub0bs/corsguard/internal/util"
)

// A Config configures a Middleware. The mechanics of and interplay between
// this type's various fields are explained below.
// Attempts to use settings described as "prohibited" result in a failure
// to build the desired middleware.
//
// # Origins
//
// Origins configures a CORS middleware to allow access from any of the
// specified [Web origins], and from no other origin:
//
//	Origins: []string{
//	  "https://subdomain.example.com",
//	  "https://www.example.com",
//	},
//
// The resulting [AllowList] is matched by exact, case-sensitive string
// equality against the value of requests' Origin header.
// In particular, no wildcard or subdomain matching takes place:
// allowing "https://www.example.com" does not allow "https://example.com".
//
// Security considerations: Bear in mind that, by allowing Web origins
// in your server's CORS configuration, you engage in a trust relationship
// with those origins.
// Malicious actors may be able to exploit some Web vulnerabilities (including
// [cross-site scripting] and [subdomain takeover]) on those origins and mount
// [cross-origin attacks] against your users from there.
// In particular, if you enable [credentialed access],
// you should only allow Web origins that you absolutely trust.
//
// Omitting to specify at least one origin is prohibited;
// so is specifying one or more invalid or prohibited origin(s).
//
// All valid schemes (no longer than 64 bytes) other than file are permitted:
//
//	http://example.com    // permitted
//	https://example.com   // permitted
//	connector://localhost // permitted
//	file:///somepath      // prohibited
//
// Origins must be specified in [ASCII serialized form]; Unicode is prohibited:
//
//	https://example.com            // permitted
//	https://www.xn--xample-9ua.com // permitted (Punycode)
//	https://www.résumé.com         // prohibited (Unicode)
//
// Because the [null origin] is [fundamentally unsafe], it is prohibited.
// So are wildcards of any kind:
//
//	*                      // prohibited
//	https://*.example.com  // prohibited
//	http://localhost:*     // prohibited
//
// Hosts that are IPv4 addresses must be specified in [dotted-quad notation];
// hosts that are IPv6 addresses must be specified in their [compressed form]:
//
//	http://255.0.0.0       // permitted
//	http://0xFF000000      // prohibited
//	http://[::1]:9090      // permitted
//	http://[0:0:0:0:0:0:0:0001]:9090 // prohibited
//
// Valid port values range from 1 to 65,535 (inclusive).
// Default ports (80 for http, 443 for https) must be elided.
//
// Origins whose host is itself a [public suffix] (e.g. https://github.io)
// are by default prohibited, since anyone can typically register
// subdomains of such hosts and such hosts rarely serve Web content of their
// own. If you deliberately wish to allow such origins, you must also set the
// [Config.DangerouslyTolerateEffectiveTLDs] field.
//
// Origins whose scheme is not https and whose host is neither localhost
// nor a [loopback IP address] are deemed insecure;
// as such, they are by default prohibited when credentialed access is enabled.
// If, even in such cases, you deliberately wish to allow some insecure
// origins, you must also set the [Config.DangerouslyTolerateInsecureOrigins]
// field.
//
// # Credentialed
//
// Credentialed, when set, configures a CORS middleware to allow
// [credentialed access] (e.g. with [cookies])
// in addition to anonymous access.
//
// Note that credentialed access is required only by requests that carry
// browser-managed credentials
// (as opposed to client-managed credentials, such as [Bearer tokens]).
// If you merely wish to allow clients to send a header of the form
//
//	Authorization: Bearer xyz
//
// you can leave Credentialed unset and simply allow request-header name
// "Authorization" via the [Config.RequestHeaders] field.
//
// # Methods
//
// Methods lists the HTTP methods that a CORS middleware advertises in the
// Access-Control-Allow-Methods header of its responses to successful
// preflight requests. Method names are case-sensitive; they are listed in
// the specified order and with the specified casing,
// exact duplicates being dropped.
//
//	Methods: []string{
//	  http.MethodGet,
//	  http.MethodHead,
//	  http.MethodPut,
//	  http.MethodPatch,
//	  http.MethodPost,
//	  http.MethodDelete,
//	}
//
// Specifying [forbidden method names] (CONNECT, TRACE, TRACK) is prohibited;
// so is specifying a wildcard.
// If Methods is empty, no Access-Control-Allow-Methods header is emitted.
//
// # RequestHeaders
//
// RequestHeaders lists the request-header names that a CORS middleware
// advertises in the Access-Control-Allow-Headers header of its responses to
// successful preflight requests. They are listed in the specified order and
// with the specified casing; because header names are case-insensitive,
// names that differ from a previously specified one only by case are
// dropped.
//
//	RequestHeaders: []string{"Content-Type", "Authorization"},
//
// Specifying one or more [forbidden request-header names] is prohibited,
// as is specifying a wildcard.
// Finally, some header names that have no place in a request are prohibited:
//
//   - Access-Control-Allow-Credentials
//   - Access-Control-Allow-Headers
//   - Access-Control-Allow-Methods
//   - Access-Control-Allow-Origin
//   - Access-Control-Expose-Headers
//   - Access-Control-Max-Age
//
// By default, a CORS middleware does not inspect the
// Access-Control-Request-Headers header of preflight requests;
// see [Config.ValidateRequestHeaders].
//
// # ValidateRequestHeaders
//
// ValidateRequestHeaders, when set, configures a CORS middleware to deny
// preflight requests whose Access-Control-Request-Headers header lists
// some name absent from [Config.RequestHeaders]. Such preflight requests
// are then treated like preflight requests from a disallowed origin,
// except that the error passed to [Config.ErrorHandler] is a
// [*RequestHeadersDeniedError].
//
// # MaxAgeInSeconds
//
// MaxAgeInSeconds configures a CORS middleware to instruct browsers
// to cache preflight responses for a duration no longer than
// the specified number of seconds.
//
// The zero value results in no Access-Control-Max-Age header, which
// browsers interpret as a [default max-age value] of five seconds.
// To instruct browsers to eschew caching of preflight responses altogether,
// specify a value of -1. No other negative value is permitted.
//
// Because modern browsers [cap the max-age value],
// this field is subject to an upper bound:
// specifying a value larger than 86400 is prohibited.
//
// # ResponseHeaders
//
// ResponseHeaders configures a CORS middleware to expose the specified
// response headers to clients. Header names are case-insensitive.
//
//	ResponseHeaders: []string{"X-Response-Time"},
//
// When credentialed access is disabled, a single asterisk denotes all
// response-header names:
//
//	ResponseHeaders: []string{"*"},
//
// However, for [technical reasons], this is only permitted if the
// [Config.Credentialed] field is unset.
//
// Explicitly specifying [CORS-safelisted response-header names] is
// permitted but never actually necessary; they are silently dropped.
// Specifying one or more [forbidden response-header names] is prohibited.
// Finally, some header names that have no place in a response are prohibited:
//
//   - Access-Control-Request-Headers
//   - Access-Control-Request-Method
//   - Origin
//
// # PreflightSuccessStatus
//
// PreflightSuccessStatus is the status code of responses to successful
// preflight requests. The zero value stands for 204 (No Content).
// Only 2xx status codes are permitted; some rare non-compliant user agents
// fail preflight unless the status is 200.
//
// # DenialStatus
//
// DenialStatus is the status code of responses to CORS requests from
// disallowed origins, whether preflight or actual.
// The zero value stands for 403 (Forbidden).
// Only 4xx and 5xx status codes are permitted. Specify 500 if your clients
// expect denials to surface as a generic server error.
//
// # ErrorHandler
//
// ErrorHandler, if non-nil, is called instead of the wrapped handler
// whenever a CORS middleware denies a request; the error it receives
// matches [ErrOriginDenied] (or [ErrRequestHeadersDenied]) and carries the
// denial status. The default handler replies with the denial status and its
// status text, as [http.Error] does.
// An ErrorHandler must not add any Access-Control-Allow-* header to the
// response.
//
// # DangerouslyTolerateInsecureOrigins
//
// DangerouslyTolerateInsecureOrigins enables you to allow insecure origins
// (i.e. origins whose scheme is not https and whose host is neither localhost
// nor a [loopback IP address]),
// which are by default prohibited when credentialed access is enabled.
//
// Be aware that allowing insecure origins exposes your clients to
// some [active network attacks].
//
// # DangerouslyTolerateEffectiveTLDs
//
// DangerouslyTolerateEffectiveTLDs enables you to allow origins whose host
// is a [public suffix] (also known as "effective top-level domain"),
// which is by default prohibited.
//
// [ASCII serialized form]: https://html.spec.whatwg.org/multipage/browsers.html#ascii-serialisation-of-an-origin
// [Bearer tokens]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Authentication#bearer
// [CORS-safelisted response-header names]: https://fetch.spec.whatwg.org/#cors-safelisted-response-header-name
// [Web origins]: https://developer.mozilla.org/en-US/docs/Glossary/Origin
// [active network attacks]: https://en.wikipedia.org/wiki/Man-in-the-middle_attack
// [cap the max-age value]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Access-Control-Max-Age#delta-seconds
// [compressed form]: https://datatracker.ietf.org/doc/html/rfc5952
// [cookies]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Cookies
// [credentialed access]: https://fetch.spec.whatwg.org/#concept-request-credentials-mode
// [cross-origin attacks]: https://portswigger.net/research/exploiting-cors-misconfigurations-for-bitcoins-and-bounties
// [cross-site scripting]: https://owasp.org/www-community/attacks/xss/
// [default max-age value]: https://fetch.spec.whatwg.org/#http-access-control-max-age
// [dotted-quad notation]: https://en.wikipedia.org/wiki/Dot-decimal_notation
// [forbidden method names]: https://fetch.spec.whatwg.org/#forbidden-method
// [forbidden request-header names]: https://fetch.spec.whatwg.org/#forbidden-request-header
// [forbidden response-header names]: https://fetch.spec.whatwg.org/#forbidden-response-header-name
// [fundamentally unsafe]: https://portswigger.net/research/exploiting-cors-misconfigurations-for-bitcoins-and-bounties
// [loopback IP address]: https://www.rfc-editor.org/rfc/rfc5735#section-3
// [null origin]: https://fetch.spec.whatwg.org/#append-a-request-origin-header
// [public suffix]: https://publicsuffix.org/
// [subdomain takeover]: https://labs.detectify.com/writeups/hostile-subdomain-takeover-using-heroku-github-desk-more/
// [technical reasons]: https://github.com/rs/cors/issues/79#issuecomment-1694622148
type Config struct {
	// Precludes comparability, unkeyed struct literals, and conversion to and
	// from third-party types.
	_ [0]func()

	Origins                            []string
	Credentialed                       bool
	Methods                            []string
	RequestHeaders                     []string
	ValidateRequestHeaders             bool
	MaxAgeInSeconds                    int
	ResponseHeaders                    []string
	PreflightSuccessStatus             int
	DenialStatus                       int
	ErrorHandler                       func(http.ResponseWriter, *http.Request, error) `json:"-"`
	DangerouslyTolerateInsecureOrigins bool
	DangerouslyTolerateEffectiveTLDs   bool
}

type internalConfig struct {
	allowList               AllowList
	methods                 []string       // as configured, deduplicated
	reqHdrs                 []string       // as configured, deduplicated
	allowedReqHdrs          util.SortedSet // byte-lowercase reqHdrs
	acam                    []string       // nil <=> len(methods) == 0
	acah                    []string       // nil <=> len(reqHdrs) == 0
	acma                    []string
	aceh                    string
	preflightStatus         int
	denialStatus            int
	errorHandler            func(http.ResponseWriter, *http.Request, error)
	customErrorHandler      bool
	credentialed            bool
	validateReqHdrs         bool
	tolerateInsecureOrigins bool
	tolerateEffectiveTLDs   bool
}

func newInternalConfig(cfg *Config) (*internalConfig, error) {
	if cfg == nil {
		return nil, nil
	}
	icfg := internalConfig{
		credentialed:            cfg.Credentialed,
		validateReqHdrs:         cfg.ValidateRequestHeaders,
		tolerateInsecureOrigins: cfg.DangerouslyTolerateInsecureOrigins,
		tolerateEffectiveTLDs:   cfg.DangerouslyTolerateEffectiveTLDs,
		errorHandler:            cfg.ErrorHandler,
		customErrorHandler:      cfg.ErrorHandler != nil,
	}
	if icfg.errorHandler == nil {
		icfg.errorHandler = defaultErrorHandler
	}

	// Accumulate errors in a slice so as to call errors.Join at most once,
	// for better performance.
	errs := icfg.validateOrigins(cfg.Origins)
	errs = icfg.validateMethods(errs, cfg.Methods)
	errs = icfg.validateRequestHeaders(errs, cfg.RequestHeaders)
	errs = icfg.validateMaxAge(errs, cfg.MaxAgeInSeconds)
	errs = icfg.validateResponseHeaders(errs, cfg.ResponseHeaders)
	errs = icfg.validatePreflightSuccessStatus(errs, cfg.PreflightSuccessStatus)
	errs = icfg.validateDenialStatus(errs, cfg.DenialStatus)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &icfg, nil
}

func (icfg *internalConfig) validateOrigins(raws []string) []error {
	al, parsed, errs := newAllowList(raws)
	elems := al.Origins()
	for i := range parsed {
		o := &parsed[i]
		if !icfg.tolerateInsecureOrigins &&
			icfg.credentialed &&
			o.IsDeemedInsecure() {
			err := &cfgerrors.IncompatibleOriginError{
				Value:  elems[i],
				Reason: "credentialed",
			}
			errs = append(errs, err)
			continue
		}
		if !icfg.tolerateEffectiveTLDs && o.HostIsEffectiveTLD() {
			err := &cfgerrors.IncompatibleOriginError{
				Value:  elems[i],
				Reason: "psl",
			}
			errs = append(errs, err)
		}
	}
	icfg.allowList = al
	return errs
}

func (icfg *internalConfig) validateMethods(errs []error, names []string) []error {
	var allowed util.OrderedSet // methods are case-sensitive
	for _, name := range names {
		if name == headers.ValueWildcard {
			err := &cfgerrors.UnacceptableMethodError{
				Value:  name,
				Reason: "prohibited",
			}
			errs = append(errs, err)
			continue
		}
		if !methods.IsValid(name) {
			err := &cfgerrors.UnacceptableMethodError{
				Value:  name,
				Reason: "invalid",
			}
			errs = append(errs, err)
			continue
		}
		if methods.IsForbidden(name) {
			err := &cfgerrors.UnacceptableMethodError{
				Value:  name,
				Reason: "forbidden",
			}
			errs = append(errs, err)
			continue
		}
		allowed.Add(name)
	}
	if allowed.Size() > 0 {
		icfg.methods = allowed.ToSlice()
		icfg.acam = []string{headers.Join(icfg.methods)}
	}
	return errs
}

func (icfg *internalConfig) validateRequestHeaders(errs []error, names []string) []error {
	var (
		allowed  = util.NewOrderedSet(util.ByteLowercase)
		nbErrors = len(errs)
	)
	for _, name := range names {
		var normalized, reason string
		switch {
		case name == headers.ValueWildcard:
			reason = "prohibited"
		case !headers.IsValid(name):
			reason = "invalid"
		default:
			normalized = util.ByteLowercase(name)
			reason = headers.ClassifyRequestHeaderName(normalized).Reason()
		}
		if reason != "" {
			err := &cfgerrors.UnacceptableHeaderNameError{
				Value:  name,
				Type:   "request",
				Reason: reason,
			}
			errs = append(errs, err)
			continue
		}
		if allowed.Add(name) {
			// Fetch-compliant browsers byte-lowercase header names
			// before writing them to the ACRH header; see
			// https://fetch.spec.whatwg.org/#cors-unsafe-request-header-names,
			// step 6.
			icfg.allowedReqHdrs.Add(normalized)
		}
	}
	if len(errs) > nbErrors || allowed.Size() == 0 {
		return errs
	}
	icfg.reqHdrs = allowed.ToSlice()
	icfg.acah = []string{headers.Join(icfg.reqHdrs)}
	return errs
}

const (
	// see https://fetch.spec.whatwg.org/#cors-preflight-fetch-0, step 7.9
	defaultMaxAge = 5
	// Current upper bounds:
	//  - Firefox: 86400 (24h)
	//  - Chromium: 7200 (2h)
	//  - WebKit/Safari: 600 (10m)
	//
	// See https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Access-Control-Max-Age#delta-seconds.
	maxAgeUpperBound = 86400
	// sentinel value for disabling preflight caching
	disableCaching = -1
)

func (icfg *internalConfig) validateMaxAge(errs []error, delta int) []error {
	switch {
	case delta < disableCaching || maxAgeUpperBound < delta:
		err := &cfgerrors.MaxAgeOutOfBoundsError{
			Value:   delta,
			Default: defaultMaxAge,
			Max:     maxAgeUpperBound,
			Disable: disableCaching,
		}
		return append(errs, err)
	case delta == disableCaching:
		icfg.acma = []string{"0"}
		return errs
	case delta == 0:
		return errs
	default:
		icfg.acma = []string{strconv.Itoa(delta)}
		return errs
	}
}

func (icfg *internalConfig) validateResponseHeaders(errs []error, names []string) []error {
	var (
		exposed          = util.NewOrderedSet(util.ByteLowercase)
		exposeAllResHdrs bool
		nbErrors         = len(errs)
	)
	for _, name := range names {
		if name == headers.ValueWildcard {
			if icfg.credentialed {
				// Exposing response headers while also allowing credentialed
				// access requires listing all those response headers' names in
				// the ACEH header, including the ones added by the wrapped
				// handler; collecting them would require wrapping
				// http.ResponseWriter and masking its optional interfaces.
				err := new(cfgerrors.IncompatibleWildcardResponseHeaderNameError)
				errs = append(errs, err)
				continue
			}
			exposeAllResHdrs = true
			continue
		}
		if !headers.IsValid(name) {
			err := &cfgerrors.UnacceptableHeaderNameError{
				Value:  name,
				Type:   "response",
				Reason: "invalid",
			}
			errs = append(errs, err)
			continue
		}
		class := headers.ClassifyResponseHeaderName(util.ByteLowercase(name))
		if class == headers.Safelisted {
			// silently tolerate safelisted response-header names
			continue
		}
		if reason := class.Reason(); reason != "" {
			err := &cfgerrors.UnacceptableHeaderNameError{
				Value:  name,
				Type:   "response",
				Reason: reason,
			}
			errs = append(errs, err)
			continue
		}
		exposed.Add(name)
	}
	if len(errs) > nbErrors {
		return errs
	}
	switch {
	case exposeAllResHdrs:
		icfg.aceh = headers.ValueWildcard
	case exposed.Size() > 0:
		icfg.aceh = headers.Join(exposed.ToSlice())
	}
	return errs
}

const (
	// According to the Fetch standard, any 2xx status code is acceptable
	// to mark a preflight response as successful.
	defaultPreflightSuccessStatus = http.StatusNoContent
	defaultDenialStatus           = http.StatusForbidden
)

func (icfg *internalConfig) validatePreflightSuccessStatus(errs []error, status int) []error {
	const (
		minStatus = 200
		maxStatus = 299
	)
	switch {
	case status == 0:
		icfg.preflightStatus = defaultPreflightSuccessStatus
	case status < minStatus || maxStatus < status:
		err := &cfgerrors.PreflightSuccessStatusOutOfBoundsError{
			Value:   status,
			Default: defaultPreflightSuccessStatus,
			Min:     minStatus,
			Max:     maxStatus,
		}
		errs = append(errs, err)
	default:
		icfg.preflightStatus = status
	}
	return errs
}

func (icfg *internalConfig) validateDenialStatus(errs []error, status int) []error {
	const (
		minStatus = 400
		maxStatus = 599
	)
	switch {
	case status == 0:
		icfg.denialStatus = defaultDenialStatus
	case status < minStatus || maxStatus < status:
		err := &cfgerrors.DenialStatusOutOfBoundsError{
			Value:   status,
			Default: defaultDenialStatus,
			Min:     minStatus,
			Max:     maxStatus,
		}
		errs = append(errs, err)
	default:
		icfg.denialStatus = status
	}
	return errs
}

// newConfig returns a Config on the basis of icfg.
// The soundness of the result is guaranteed only if icfg is the result of a
// previous call to newInternalConfig.
func newConfig(icfg *internalConfig) *Config {
	if icfg == nil {
		return nil
	}

	// Note: do not hold (in cfg) any references to mutable fields of icfg;
	// use defensive copying if required.
	cfg := Config{
		Origins:                            icfg.allowList.Origins(),
		Credentialed:                       icfg.credentialed,
		ValidateRequestHeaders:             icfg.validateReqHdrs,
		DangerouslyTolerateInsecureOrigins: icfg.tolerateInsecureOrigins,
		DangerouslyTolerateEffectiveTLDs:   icfg.tolerateEffectiveTLDs,
	}
	if len(icfg.methods) > 0 {
		cfg.Methods = append([]string(nil), icfg.methods...)
	}
	if len(icfg.reqHdrs) > 0 {
		cfg.RequestHeaders = append([]string(nil), icfg.reqHdrs...)
	}
	if icfg.aceh != "" {
		cfg.ResponseHeaders = headers.SplitList(icfg.aceh)
	}
	if len(icfg.acma) > 0 {
		maxAge, _ := strconv.Atoi(icfg.acma[0]) // safe, by construction
		if maxAge != 0 {
			cfg.MaxAgeInSeconds = maxAge
		} else {
			cfg.MaxAgeInSeconds = disableCaching
		}
	}
	if icfg.preflightStatus != defaultPreflightSuccessStatus {
		cfg.PreflightSuccessStatus = icfg.preflightStatus
	}
	if icfg.denialStatus != defaultDenialStatus {
		cfg.DenialStatus = icfg.denialStatus
	}
	if icfg.customErrorHandler {
		cfg.ErrorHandler = icfg.errorHandler
	}
	return &cfg
}
