package util

// ByteLowercase returns a [byte-lowercase] version of s.
// Bytes other than ASCII uppercase letters are left untouched,
// and s itself is returned if it contains no such letter.
//
// [byte-lowercase]: https://infra.spec.whatwg.org/#byte-lowercase
func ByteLowercase(s string) string {
	i := 0
	for i < len(s) && !isUpper(s[i]) {
		i++
	}
	if i == len(s) {
		return s
	}
	b := []byte(s)
	for ; i < len(b); i++ {
		if isUpper(b[i]) {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

func isUpper(b byte) bool {
	return 'A' <= b && b <= 'Z'
}
