/*
Package corsguard provides [net/http] middleware for
[Cross-Origin Resource Sharing (CORS)] whose origin check is an
allow-list of exact [Web origins].

For every request that carries an Origin header, a [Middleware] asks its
[AllowList] whether that origin is allowed; the answer is a [Decision].
Allowed actual requests are forwarded to the application with an
Access-Control-Allow-Origin header that echoes their origin.
Allowed [CORS-preflight requests] are answered directly (with 204 by
default) and advertise the configured methods and request headers.
Requests from any other origin are denied: the application handler never
runs and the response carries no Access-Control-Allow-* header.

This package performs extensive configuration validation
in order to prevent you from inadvertently creating
[dysfunctional or insecure CORS middleware].
Package [github.com/jub0bs/corsguard/policyfile] loads a [Config] from a
policy file; package [github.com/jub0bs/corsguard/corsfiber] adapts a
[Middleware] to [Fiber]; package [github.com/jub0bs/corsguard/corsmetrics]
counts decisions with Prometheus.

Even so, care is required for CORS middleware to work as intended.
Follow the rules listed below:

  - Because [CORS-preflight requests] use [OPTIONS] as their method,
    you [SHOULD NOT] prevent OPTIONS requests from reaching your CORS
    middleware.
  - Because [CORS-preflight requests are not authenticated], authentication
    [SHOULD NOT] take place "ahead of" a CORS middleware.
    However, a CORS middleware [MAY] wrap an authentication middleware.
  - Intermediaries [SHOULD NOT] alter or augment the [CORS response headers]
    that are set by this library's middleware.
  - Intermediaries [MAY] alter the value of the [Vary] header that is set by
    this library's middleware, but they [MUST] preserve all of its elements.
  - Multiple CORS middleware [MUST NOT] be stacked.

[CORS response headers]: https://developer.mozilla.org/en-US/docs/Web/HTTP/CORS#the_http_response_headers
[CORS-preflight requests are not authenticated]: https://fetch.spec.whatwg.org/#cors-protocol-and-credentials
[CORS-preflight requests]: https://developer.mozilla.org/en-US/docs/Glossary/Preflight_request
[Cross-Origin Resource Sharing (CORS)]: https://developer.mozilla.org/en-US/docs/Web/HTTP/CORS
[Fiber]: https://gofiber.io
[MAY]: https://www.ietf.org/rfc/rfc2119.txt
[MUST NOT]: https://www.ietf.org/rfc/rfc2119.txt
[MUST]: https://www.ietf.org/rfc/rfc2119.txt
[OPTIONS]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Methods/OPTIONS
[SHOULD NOT]: https://www.ietf.org/rfc/rfc2119.txt
[Vary]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Vary
[Web origins]: https://developer.mozilla.org/en-US/docs/Glossary/Origin
[dysfunctional or insecure CORS middleware]: https://jub0bs.com/posts/2023-02-08-fearless-cors/
*/
package corsguard
