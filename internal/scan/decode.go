package scan

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	utf16leBOMDecoder = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	cp850Decoder      = charmap.CodePage850
	latin1Decoder     = charmap.ISO8859_1
)

// DecodeBytes turns one raw output line into a string, trying the encodings
// accesschk actually emits: UTF-16 LE when it writes to a pipe with a BOM,
// the OEM codepage (CP850) for console output, then UTF-8. Latin-1 is the
// terminal fallback: it maps every byte, so this never fails.
func DecodeBytes(b []byte) string {
	if len(b) >= 2 && b[0] == 0xff && b[1] == 0xfe {
		if s, err := utf16leBOMDecoder.NewDecoder().Bytes(b); err == nil {
			return string(s)
		}
	}
	if s, err := cp850Decoder.NewDecoder().Bytes(b); err == nil {
		return string(s)
	}
	if utf8.Valid(b) {
		return string(b)
	}
	s, _ := latin1Decoder.NewDecoder().Bytes(b)
	return string(s)
}
