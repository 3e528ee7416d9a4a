package entity

import "strings"

// NormalizeISBN keeps only ASCII letters and digits, so "978-2-07-040850-4"
// and "978 2 07 040850 4" compare equal. A parenthesised qualifier such as
// "(pbk.)" is not part of the number.
func NormalizeISBN(s string) string {
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			b.WriteByte(c)
		}
	}
	return b.String()
}
