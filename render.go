package batchgen

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FormatResult renders a single result as
//
//	Prompt: '<prompt>', Generated text: '<first completion>'
//
// Both strings are quoted with Quote.
func FormatResult(r Result) string {
	return "Prompt: " + Quote(r.Prompt) + ", Generated text: " + Quote(r.Text())
}

// Render writes one line per result, in order, using FormatResult.
// The first write error is returned as is.
func Render(w io.Writer, results []Result) error {
	for _, r := range results {
		if _, err := fmt.Fprintln(w, FormatResult(r)); err != nil {
			return err
		}
	}
	return nil
}

// Quote returns s as a Python string literal, the form the reference
// output uses: single-quoted unless s contains a single quote and no
// double quote, with backslash, the quote character and non-printable
// runes escaped. Bytes that are not valid UTF-8 are written as \xNN.
func Quote(s string) string {
	quote := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		quote = '"'
	}

	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(quote)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&b, `\x%02x`, s[i])
			i++
			continue
		}
		i += size

		switch {
		case r == '\\' || r == rune(quote):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case unicode.IsPrint(r):
			b.WriteRune(r)
		case r <= 0xff:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r <= 0xffff:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			fmt.Fprintf(&b, `\U%08x`, r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}
