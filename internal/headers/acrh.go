package headers

import "github.com/jub0bs/corsguard/internal/util"

// AllAllowed reports whether the Access-Control-Request-Headers field lines
// in acrhs list only members of allowed, in lexicographical order and
// without duplicates. Browsers byte-lowercase, sort, and deduplicate the
// names they write in that field, so allowed must contain byte-lowercase
// names.
//
// acrhs is a slice rather than a single string because some intermediaries
// split that field across several field lines; see
// https://github.com/rs/cors/issues/184. RFC 9110 (section 5.3) forbids them
// from reordering field lines of the same name, so the overall sequence of
// names is still expected to be sorted.
//
// To bound the work done on adversarial preflight requests, AllAllowed
// tolerates at most [MaxOWSBytes] bytes of optional whitespace around each
// name and at most [MaxEmptyElements] empty list elements.
func AllAllowed(allowed util.SortedSet, acrhs []string) bool {
	// effectively constant
	maxLen := MaxOWSBytes + allowed.MaxLen() + MaxOWSBytes + 1 // +1 for comma
	var (
		posOfLastNameSeen = -1
		name              string
		commaFound        bool
		emptyElements     int
		ok                bool
	)
	for _, acrh := range acrhs {
		for {
			// Only look at a bounded number of leading bytes per iteration.
			name, acrh, commaFound = cutAtComma(acrh, uint(maxLen))
			name, ok = TrimOWS(name, MaxOWSBytes)
			if !ok {
				return false
			}
			if name == "" {
				// RFC 9110 requires recipients to tolerate
				// "a reasonable number of empty list elements"; see
				// https://httpwg.org/specs/rfc9110.html#abnf.extension.recipient.
				emptyElements++
				if emptyElements > MaxEmptyElements {
					return false
				}
				if !commaFound {
					break
				}
				continue
			}
			// Positions in allowed of successive names must strictly increase.
			i := allowed.IndexAfter(posOfLastNameSeen, name)
			if i < 0 {
				return false
			}
			posOfLastNameSeen = i
			if !commaFound {
				break
			}
		}
	}
	return true
}

const (
	MaxOWSBytes      = 1  // number of leading/trailing OWS bytes tolerated
	MaxEmptyElements = 16 // number of empty list elements tolerated
)

// cutAtComma slices str around the first comma that appears among (up to) the
// first n bytes of str, returning the parts of str before and after the comma.
// The found result reports whether a comma appears in that portion of str.
// If no comma appears in that portion of str, cutAtComma returns str, "", false.
func cutAtComma(str string, n uint) (before, after string, found bool) {
	for i := range min(uint(len(str)), n) {
		if str[i] == ',' {
			return str[:i], str[i+1:], true
		}
	}
	return str, "", false
}
