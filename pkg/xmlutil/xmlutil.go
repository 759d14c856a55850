// Package xmlutil escapes arbitrary text for embedding in XML element content
// and attribute values.
package xmlutil

import (
	"io"
	"strconv"
	"strings"
)

// Options selects which reserved characters are replaced beyond & < >.
type Options struct {
	// Quotes also escapes " and ' so the result is safe inside an attribute
	// value delimited by either quote character.
	Quotes bool
}

// Replacers built from single-byte keys scan the input once and never revisit
// their own output, so "<" can not turn into "&amp;lt;".
var (
	textReplacer = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	attrReplacer = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
)

// Escape replaces &, < and > with their entity references. All other bytes,
// including control characters and invalid UTF-8, are copied unchanged.
func Escape(s string) string {
	return textReplacer.Replace(s)
}

// EscapeAttr is Escape plus quote escaping, for attribute values.
func EscapeAttr(s string) string {
	return attrReplacer.Replace(s)
}

// EscapeWith escapes s according to opts.
func EscapeWith(s string, opts Options) string {
	return replacer(opts).Replace(s)
}

// WriteEscaped writes the escaped form of s to w.
func WriteEscaped(w io.Writer, s string, opts Options) (int, error) {
	return replacer(opts).WriteString(w, s)
}

var predefinedEntities = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"quot": `"`,
	"apos": "'",
}

// maxReferenceLen bounds the search for the ';' that closes a reference.
const maxReferenceLen = 32

// Unescape decodes the five predefined XML entities and decimal or
// hexadecimal character references. Anything else, such as HTML-only entities,
// references missing their ';' or references to characters XML forbids, is
// copied unchanged. It reverses Escape and EscapeAttr exactly.
func Unescape(s string) string {
	i := strings.IndexByte(s, '&')
	if i < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i >= 0 {
		b.WriteString(s[:i])
		s = s[i:]
		if dec, n, ok := decodeReference(s); ok {
			b.WriteString(dec)
			s = s[n:]
		} else {
			b.WriteByte('&')
			s = s[1:]
		}
		i = strings.IndexByte(s, '&')
	}
	b.WriteString(s)
	return b.String()
}

// decodeReference decodes the reference at the start of s, which begins
// with '&', and reports how many bytes it used.
func decodeReference(s string) (string, int, bool) {
	window := s[:min(len(s), maxReferenceLen)]
	end := strings.IndexByte(window, ';')
	if end < 2 {
		return "", 0, false
	}
	name := s[1:end]
	if v, ok := predefinedEntities[name]; ok {
		return v, end + 1, true
	}
	if name[0] != '#' {
		return "", 0, false
	}
	digits, base := name[1:], 10
	if strings.HasPrefix(digits, "x") {
		digits, base = digits[1:], 16
	}
	if digits == "" {
		return "", 0, false
	}
	code, err := strconv.ParseUint(digits, base, 32)
	if err != nil || !isXMLChar(rune(code)) {
		return "", 0, false
	}
	return string(rune(code)), end + 1, true
}

// isXMLChar reports whether r is in the XML 1.0 Char production.
func isXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	default:
		return r >= 0x10000 && r <= 0x10FFFF
	}
}

func replacer(opts Options) *strings.Replacer {
	if opts.Quotes {
		return attrReplacer
	}
	return textReplacer
}
