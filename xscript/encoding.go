package xscript

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// URLEncode/URLDecode back the xscript:urlencode/urldecode extension
// functions (spec.md §4.8) and the Parser's query-string handling
// (spec.md §4.1). net/url's QueryEscape is exactly the percent-encoding
// contract those functions promise, so stdlib is the grounded choice.
func URLEncode(s string) string { return url.QueryEscape(s) }

func URLDecode(s string) (string, error) { return url.QueryUnescape(s) }

// RepairUTF8 validates s as UTF-8 and, on failure, re-encodes it from a
// legacy single-byte charset (default cp1251, spec.md §4.1 "re-encode
// from cp1251 if invalid"), escaping any byte that still fails to map as
// `&#N;` (spec.md "escape-fallback"). Grounded on golang.org/x/text's
// charmap package, the ecosystem's standard legacy-encoding table set —
// already part of the dependency surface.
func RepairUTF8(s string, legacy *charmap.Charmap) string {
	if utf8.ValidString(s) {
		return s
	}
	if legacy == nil {
		legacy = charmap.Windows1251
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		r := legacy.DecodeByte(c)
		if r == utf8.RuneError {
			b.WriteString("&#")
			b.WriteString(itoa(int(c)))
			b.WriteString(";")
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
