package corsguard

import (
	"errors"

	"github.com/jub0bs/corsguard/cfgerrors"
	"github.com/jub0bs/corsguard/internal/origins"
	"github.com/jub0bs/corsguard/internal/util"
)

// An AllowList is an ordered set of exact [Web origins]
// (e.g. "https://www.example.com") allowed to access a server's resources.
//
// Membership is decided by exact, case-sensitive string equality:
// no wildcard or subdomain matching ever takes place.
// For instance, an AllowList containing "https://subdomain.example.com"
// does not contain "https://example.com", and vice versa.
//
// An AllowList is immutable and safe for concurrent use.
// The zero value is an empty AllowList, which contains no origin.
//
// [Web origins]: https://developer.mozilla.org/en-US/docs/Glossary/Origin
type AllowList struct {
	set util.OrderedSet
}

// NewAllowList returns an AllowList that contains exactly the specified
// origins, in the specified order; duplicates are dropped.
// Each origin must be specified in its [ASCII serialized form]
// (lowercase scheme and host, no trailing slash, no default port);
// wildcards and the null origin are prohibited.
// If one or more origins are unacceptable, NewAllowList returns an empty
// AllowList and a non-nil error; see package
// [github.com/jub0bs/corsguard/cfgerrors].
//
// [ASCII serialized form]: https://html.spec.whatwg.org/multipage/browsers.html#ascii-serialisation-of-an-origin
func NewAllowList(origins ...string) (AllowList, error) {
	al, _, errs := newAllowList(origins)
	if len(errs) > 0 {
		return AllowList{}, errors.Join(errs...)
	}
	return al, nil
}

func newAllowList(raws []string) (AllowList, []origins.Origin, []error) {
	if len(raws) == 0 {
		err := &cfgerrors.UnacceptableOriginError{
			Reason: "missing",
		}
		return AllowList{}, nil, []error{err}
	}
	var (
		al     AllowList
		parsed []origins.Origin
		errs   []error
	)
	for _, raw := range raws {
		o, err := origins.Parse(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if al.set.Add(raw) {
			parsed = append(parsed, o)
		}
	}
	return al, parsed, errs
}

// Decide applies al to the value of a request's Origin header.
// It returns an allowed [Decision] echoing origin if origin is an element
// of al, and a denied Decision otherwise.
//
// Decide is only meant to be called for requests that do carry an Origin
// header; requests that don't are not cross-origin requests.
// Decide is a pure function: it has no side effects and,
// for a given AllowList and origin, always returns the same Decision.
func (al AllowList) Decide(origin string) Decision {
	if !al.set.Contains(origin) {
		return Decision{}
	}
	return Decision{
		origin:  origin,
		allowed: true,
	}
}

// Contains reports whether origin is an element of al.
func (al AllowList) Contains(origin string) bool {
	return al.set.Contains(origin)
}

// Len returns the number of origins in al.
func (al AllowList) Len() int {
	return al.set.Size()
}

// Origins returns the elements of al, in the order in which they were
// specified. Mutating the result does not alter al.
func (al AllowList) Origins() []string {
	return al.set.ToSlice()
}

// A Decision is the verdict of an [AllowList] about a request's origin:
// either allowed (along with the origin to echo in the
// Access-Control-Allow-Origin response header) or denied.
// The zero value is a denied Decision.
type Decision struct {
	origin  string
	allowed bool
}

// IsAllowed reports whether d allows the origin.
func (d Decision) IsAllowed() bool {
	return d.allowed
}

// Origin returns the origin to echo in the Access-Control-Allow-Origin
// response header if d is allowed, or the empty string otherwise.
func (d Decision) Origin() string {
	return d.origin
}

func (d Decision) String() string {
	if !d.allowed {
		return "denied"
	}
	return "allowed(" + d.origin + ")"
}
