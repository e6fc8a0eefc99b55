package headers

import "strings"

// A NameClass tells how a CORS policy must treat a header name.
type NameClass uint8

const (
	Ordinary NameClass = iota
	// Forbidden names are those that browsers never let scripts
	// set (on requests) or read (on responses);
	// see https://fetch.spec.whatwg.org/#forbidden-header-name and
	// https://fetch.spec.whatwg.org/#forbidden-response-header-name.
	Forbidden
	// Prohibited names are those whose listing in a policy almost always
	// stems from some misunderstanding of CORS.
	Prohibited
	// Safelisted names are those of response headers that scripts can
	// always read; see
	// https://fetch.spec.whatwg.org/#cors-safelisted-response-header-name.
	Safelisted
)

// Reason returns the reason reported in configuration errors about names
// of class c, or the empty string if such names are acceptable.
func (c NameClass) Reason() string {
	switch c {
	case Forbidden:
		return "forbidden"
	case Prohibited:
		return "prohibited"
	default:
		return ""
	}
}

// ClassifyRequestHeaderName classifies name as a request-header name.
// It never returns Safelisted.
//
// Precondition: name is a valid and [byte-lowercase] header name.
//
// [byte-lowercase]: https://infra.spec.whatwg.org/#byte-lowercase
func ClassifyRequestHeaderName(name string) NameClass {
	switch name {
	case "accept-charset",
		"accept-encoding",
		"access-control-request-headers",
		"access-control-request-method",
		"connection",
		"content-length",
		"cookie",
		"cookie2",
		"date",
		"dnt",
		"expect",
		"host",
		"keep-alive",
		"origin",
		"referer",
		"set-cookie",
		"te",
		"trailer",
		"transfer-encoding",
		"upgrade",
		"via":
		return Forbidden
	case "access-control-allow-origin",
		"access-control-allow-credentials",
		"access-control-allow-methods",
		"access-control-allow-headers",
		"access-control-max-age",
		"access-control-expose-headers":
		return Prohibited
	}
	if strings.HasPrefix(name, "proxy-") || strings.HasPrefix(name, "sec-") {
		return Forbidden
	}
	return Ordinary
}

// ClassifyResponseHeaderName classifies name as a response-header name.
//
// Precondition: name is a valid and [byte-lowercase] header name.
//
// [byte-lowercase]: https://infra.spec.whatwg.org/#byte-lowercase
func ClassifyResponseHeaderName(name string) NameClass {
	switch name {
	case "set-cookie", "set-cookie2":
		return Forbidden
	case "origin",
		"access-control-request-method",
		"access-control-request-headers",
		"access-control-allow-methods",
		"access-control-allow-headers",
		"access-control-max-age":
		return Prohibited
	case "cache-control",
		"content-language",
		"content-length",
		"content-type",
		"expires",
		"last-modified",
		"pragma":
		return Safelisted
	default:
		return Ordinary
	}
}
