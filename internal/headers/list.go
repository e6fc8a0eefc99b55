package headers

import "strings"

// SplitList splits a comma-separated list of tokens
// (e.g. "GET, HEAD,PUT") into its elements.
// Leading and trailing whitespace is trimmed from each element,
// and empty elements are dropped.
// Unlike [AllAllowed], SplitList is meant for trusted input (configuration values)
// and places no bound on the amount of whitespace.
func SplitList(s string) []string {
	var elems []string
	for elem := range strings.SplitSeq(s, ValueSep) {
		elem = strings.Trim(elem, " \t")
		if elem == "" {
			continue
		}
		elems = append(elems, elem)
	}
	return elems
}
