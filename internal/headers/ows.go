package headers

// TrimOWS trims the [optional whitespace (OWS)] that surrounds s.
// If s starts with more than n bytes of OWS or ends with more than n bytes
// of OWS, TrimOWS returns s unchanged and false.
//
// [optional whitespace (OWS)]: https://httpwg.org/specs/rfc9110.html#whitespace
func TrimOWS(s string, n int) (trimmed string, ok bool) {
	end := len(s)
	for end > 0 && isOWS(s[end-1]) {
		if len(s)-end == n {
			return s, false
		}
		end--
	}
	var start int
	for start < end && isOWS(s[start]) {
		if start == n {
			return s, false
		}
		start++
	}
	return s[start:end], true
}

func isOWS(b byte) bool {
	return b == ' ' || b == '\t'
}
