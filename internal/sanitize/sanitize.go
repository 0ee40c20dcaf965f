// Package sanitize cleans scraped text before it reaches a prompt.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// allowed lists every code point that survives sanitization besides
// whitespace: printable ASCII, Latin-1 and Latin Extended letters, general
// punctuation, currency symbols, CJK punctuation, kana, Hangul and the
// unified ideograph blocks. Combining marks are excluded so NFC output
// stays stable across passes.
var allowed = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0021, Hi: 0x007E, Stride: 1},
		{Lo: 0x00A1, Hi: 0x00AC, Stride: 1},
		{Lo: 0x00AE, Hi: 0x024F, Stride: 1},
		{Lo: 0x1E00, Hi: 0x1EFF, Stride: 1},
		{Lo: 0x2010, Hi: 0x2027, Stride: 1},
		{Lo: 0x2030, Hi: 0x205E, Stride: 1},
		{Lo: 0x20A0, Hi: 0x20BF, Stride: 1},
		{Lo: 0x3001, Hi: 0x3029, Stride: 1},
		{Lo: 0x3030, Hi: 0x303F, Stride: 1},
		{Lo: 0x3041, Hi: 0x3096, Stride: 1},
		{Lo: 0x309B, Hi: 0x30FF, Stride: 1},
		{Lo: 0x3400, Hi: 0x4DBF, Stride: 1},
		{Lo: 0x4E00, Hi: 0x9FFF, Stride: 1},
		{Lo: 0xAC00, Hi: 0xD7A3, Stride: 1},
		{Lo: 0xFF01, Hi: 0xFFEF, Stride: 1},
	},
	LatinOffset: 2,
}

// Text normalizes s to NFC, drops characters outside the allow-list,
// collapses whitespace runs to a single space and trims the ends.
// Text is pure and idempotent.
func Text(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.Is(allowed, r):
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
