/*
Package cfgerrors provides functionalities for programmatically handling
configuration errors produced by package [github.com/jub0bs/corsguard].

Most users of package [github.com/jub0bs/corsguard] have no use for this
package. However, services that let operators or tenants edit their CORS
policy (e.g. via some admin endpoint or a policy file checked at deploy time)
may find this package useful: it allows them to report CORS-configuration
mistakes via custom, human-friendly error messages.
*/
package cfgerrors

import (
	"fmt"
	"iter"
)

// An UnacceptableOriginError indicates an unacceptable allow-list entry.
// The Reason field may take one of three values:
//   - "missing": no origin was specified;
//   - "invalid": the value is not a valid ASCII-serialized Web origin;
//   - "prohibited": the value is prohibited by this library
//     (e.g. "null", or a wildcard pattern such as "https://*.example.com").
//
// For more details, see [github.com/jub0bs/corsguard.Config.Origins].
type UnacceptableOriginError struct {
	Value  string // the unacceptable value that was specified
	Reason string // missing | invalid | prohibited
}

func (err *UnacceptableOriginError) Error() string {
	if err.Reason == "missing" {
		return "corsguard: at least one origin must be allowed"
	}
	const tmpl = "corsguard: %s origin %q"
	return fmt.Sprintf(tmpl, err.Reason, err.Value)
}

// An UnacceptableMethodError indicates an unacceptable method.
// The Reason field may take one of three values:
//   - "invalid": the method is invalid;
//   - "prohibited": the method is prohibited by this library (e.g. "*");
//   - "forbidden": the method is forbidden by [the Fetch standard].
//
// For more details, see [github.com/jub0bs/corsguard.Config.Methods].
//
// [the Fetch standard]: https://fetch.spec.whatwg.org
type UnacceptableMethodError struct {
	Value  string // the unacceptable value that was specified
	Reason string // invalid | prohibited | forbidden
}

func (err *UnacceptableMethodError) Error() string {
	const tmpl = "corsguard: %s method %q"
	return fmt.Sprintf(tmpl, err.Reason, err.Value)
}

// An UnacceptableHeaderNameError indicates an unacceptable header name.
// The Type field may take one of two values:
//   - "request";
//   - "response".
//
// The Reason field may take one of three values:
//   - "invalid": the header name is invalid;
//   - "prohibited": the header name is prohibited by this library;
//   - "forbidden": the header name is forbidden by [the Fetch standard].
//
// For more details, see [github.com/jub0bs/corsguard.Config.RequestHeaders] and
// [github.com/jub0bs/corsguard.Config.ResponseHeaders].
//
// [the Fetch standard]: https://fetch.spec.whatwg.org
type UnacceptableHeaderNameError struct {
	Value  string // the unacceptable value that was specified
	Type   string // request | response
	Reason string // invalid | prohibited | forbidden
}

func (err *UnacceptableHeaderNameError) Error() string {
	const tmpl = "corsguard: %s %s-header name %q"
	return fmt.Sprintf(tmpl, err.Reason, err.Type, err.Value)
}

// A MaxAgeOutOfBoundsError indicates a max-age value that's either too low
// or too high.
//
// For more details, see [github.com/jub0bs/corsguard.Config.MaxAgeInSeconds].
type MaxAgeOutOfBoundsError struct {
	Value   int // the unacceptable value that was specified
	Default int // max-age value used by browsers if MaxAgeInSeconds is 0
	Max     int // maximum max-age value permitted by this library
	Disable int // sentinel value for disabling preflight caching
}

func (err *MaxAgeOutOfBoundsError) Error() string {
	const tmpl = "corsguard: out-of-bounds max-age value %d (default: %d; max: %d; disable caching: %d)"
	return fmt.Sprintf(tmpl, err.Value, err.Default, err.Max, err.Disable)
}

// A PreflightSuccessStatusOutOfBoundsError indicates a preflight-success
// status code outside the 2xx range.
//
// For more details, see
// [github.com/jub0bs/corsguard.Config.PreflightSuccessStatus].
type PreflightSuccessStatusOutOfBoundsError struct {
	Value   int // the unacceptable value that was specified
	Default int // status used if PreflightSuccessStatus is 0
	Min     int // minimum value permitted by this library
	Max     int // maximum value permitted by this library
}

func (err *PreflightSuccessStatusOutOfBoundsError) Error() string {
	const tmpl = "corsguard: out-of-bounds preflight-success status %d (default: %d; min: %d; max: %d)"
	return fmt.Sprintf(tmpl, err.Value, err.Default, err.Min, err.Max)
}

// A DenialStatusOutOfBoundsError indicates a denial status code
// outside the 4xx and 5xx ranges.
//
// For more details, see [github.com/jub0bs/corsguard.Config.DenialStatus].
type DenialStatusOutOfBoundsError struct {
	Value   int // the unacceptable value that was specified
	Default int // status used if DenialStatus is 0
	Min     int // minimum value permitted by this library
	Max     int // maximum value permitted by this library
}

func (err *DenialStatusOutOfBoundsError) Error() string {
	const tmpl = "corsguard: out-of-bounds denial status %d (default: %d; min: %d; max: %d)"
	return fmt.Sprintf(tmpl, err.Value, err.Default, err.Min, err.Max)
}

// An IncompatibleOriginError indicates an origin that conflicts
// with other elements of the configuration. Two cases are possible:
//   - Reason == "credentialed": an insecure origin was specified and
//     credentialed access was enabled without also setting
//     [github.com/jub0bs/corsguard.Config.DangerouslyTolerateInsecureOrigins].
//   - Reason == "psl": an origin whose host is a public suffix was specified
//     without also setting
//     [github.com/jub0bs/corsguard.Config.DangerouslyTolerateEffectiveTLDs].
//
// For more details, see [github.com/jub0bs/corsguard.Config.Origins].
type IncompatibleOriginError struct {
	Value  string // the offending origin
	Reason string // credentialed | psl
}

func (err *IncompatibleOriginError) Error() string {
	switch err.Reason {
	case "credentialed":
		const tmpl = "corsguard: for security reasons, insecure origins like %q are by default prohibited when credentialed access is enabled"
		return fmt.Sprintf(tmpl, err.Value)
	case "psl":
		const tmpl = "corsguard: for security reasons, origins like %q whose host is a public suffix are by default prohibited"
		return fmt.Sprintf(tmpl, err.Value)
	default:
		// We never produce such errors; this case only exists to make the
		// compiler happy.
		return "corsguard: unknown issue"
	}
}

// An IncompatibleWildcardResponseHeaderNameError indicates an attempt
// to both expose all response headers and enable credentialed access.
// For more details, see [github.com/jub0bs/corsguard.Config.ResponseHeaders].
type IncompatibleWildcardResponseHeaderNameError struct{}

func (*IncompatibleWildcardResponseHeaderNameError) Error() string {
	return "corsguard: you cannot both expose all response headers and enable credentialed access"
}

// All returns an iterator over the CORS-configuration errors contained in
// err's error tree. The order is unspecified and may change from one release
// to the next. All only supports error values returned by
// [github.com/jub0bs/corsguard.NewMiddleware],
// [github.com/jub0bs/corsguard.Middleware.Reconfigure], and
// [github.com/jub0bs/corsguard.NewAllowList];
// it should not be called on any other error value.
func All(err error) iter.Seq[error] {
	return func(yield func(error) bool) {
		every(err, yield)
	}
}

func every(err error, f func(error) bool) bool {
	switch err := err.(type) {
	// Note that there's no need for any "interface { Unwrap() error }" case
	// because nowhere do we "wrap" errors; we only ever "join" them.
	case interface{ Unwrap() []error }:
		for _, err := range err.Unwrap() {
			if !every(err, f) {
				return false
			}
		}
		return true
	default:
		return f(err)
	}
}
