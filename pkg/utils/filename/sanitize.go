// Package filename provides utilities for turning media titles into safe
// download filenames and Content-Disposition values.
package filename

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a title sanitizes to nothing.
const Fallback = "download"

// TimestampLayout renders the YYYYMMDD_HHMMSS prefix.
const TimestampLayout = "20060102_150405"

// maxTitleBytes leaves room for the timestamp prefix and extension under the
// common 255-byte filename limit.
const maxTitleBytes = 180

// invalidCharsRe matches characters not safe for filenames across all major OSes.
var invalidCharsRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\x7f]`)

// multiSpace collapses whitespace runs.
var multiSpace = regexp.MustCompile(`[\s\p{Z}]+`)

// Sanitize converts a title into a filename-safe string.
// Forbidden characters become spaces, whitespace runs collapse to one space,
// and leading/trailing spaces and dots are stripped. The result is truncated
// to a rune boundary and never empty.
func Sanitize(title string) string {
	s := invalidCharsRe.ReplaceAllString(title, " ")
	s = multiSpace.ReplaceAllString(s, " ")

	// Strip leading/trailing dots too (avoid hidden files / trailing dots on Windows).
	s = strings.Trim(s, " .")

	if len(s) > maxTitleBytes {
		cut := maxTitleBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = strings.TrimRight(s[:cut], " .")
	}

	if s == "" {
		return Fallback
	}
	return s
}

// Derive builds the download filename (without extension) for a title.
// When includeTimestamp is set the name is prefixed with ts in UTC, to the second.
func Derive(title string, ts time.Time, includeTimestamp bool) string {
	name := Sanitize(title)
	if !includeTimestamp {
		return name
	}
	return ts.UTC().Format(TimestampLayout) + "_" + name
}

// ASCIIFallback returns a printable-ASCII rendition of name for clients that
// only read the plain filename parameter. Diacritics are folded away; other
// non-ASCII runes become underscores.
func ASCIIFallback(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('_')
		case r >= 0x20 && r < 0x7f:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.Trim(b.String(), " ")
	if strings.Trim(out, "_. ") == "" {
		return Fallback
	}
	return out
}

// ContentDisposition returns an attachment disposition carrying both an ASCII
// filename and the lossless UTF-8 filename* parameter (RFC 6266 / RFC 5987).
func ContentDisposition(name string) string {
	return `attachment; filename="` + ASCIIFallback(name) + `"; filename*=UTF-8''` + EncodeRFC5987(name)
}

// EncodeRFC5987 percent-encodes s as an RFC 5987 ext-value payload.
func EncodeRFC5987(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '&', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}
