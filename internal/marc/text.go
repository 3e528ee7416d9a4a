package marc

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeText turns field bytes into a string. UTF-8 is kept byte for byte;
// servers that do not send UTF-8 are read as ISO-8859-1 so no byte is lost.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
