package util

import "strings"

// NaturalSortLess orders strings the way people read them: runs of digits
// compare by numeric value, everything else compares case-insensitively.
// A digit run sorts before a non-digit run at the same position.
func NaturalSortLess(a, b string) bool {
	for a != "" && b != "" {
		ca, restA := nextChunk(a)
		cb, restB := nextChunk(b)
		numA, numB := isDigit(ca[0]), isDigit(cb[0])

		switch {
		case numA && !numB:
			return true
		case !numA && numB:
			return false
		case numA:
			if c := compareDigits(ca, cb); c != 0 {
				return c < 0
			}
		default:
			la, lb := strings.ToLower(ca), strings.ToLower(cb)
			if la != lb {
				return la < lb
			}
		}
		a, b = restA, restB
	}
	return a == "" && b != ""
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// nextChunk splits off the leading run of digits or non-digits.
func nextChunk(s string) (string, string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

// compareDigits compares two digit runs numerically without parsing them,
// so arbitrarily long runs never overflow.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
