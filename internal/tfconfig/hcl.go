package tfconfig

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// QuoteHCL returns s as an HCL quoted string literal. Template sequences are
// doubled so the value is taken literally, and control characters use \u
// escapes because HCL has no \x, \a or \v.
func QuoteHCL(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i, r := range s {
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case (r == '$' || r == '%') && strings.HasPrefix(s[i+1:], "{"):
			b.WriteRune(r)
			b.WriteRune(r)
		case unicode.IsControl(r):
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			// Invalid UTF-8 bytes decode as utf8.RuneError and are written as U+FFFD.
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

var errTemplate = errors.New("template sequences are not supported")

// UnquoteHCL parses an HCL quoted string literal as written by QuoteHCL.
// Escaped template sequences ($${ and %%{) decode to their literal form;
// unescaped interpolations are rejected.
func UnquoteHCL(raw string) (string, error) {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return "", fmt.Errorf("invalid string %s", raw)
	}
	body := raw[1 : len(raw)-1]
	var b strings.Builder
	for i := 0; i < len(body); {
		c := body[i]
		switch {
		case c == '"':
			return "", fmt.Errorf("invalid string %s: unescaped quote", raw)
		case (c == '$' || c == '%') && strings.HasPrefix(body[i+1:], string(c)+"{"):
			b.WriteByte(c)
			b.WriteByte('{')
			i += 3
		case (c == '$' || c == '%') && strings.HasPrefix(body[i+1:], "{"):
			return "", fmt.Errorf("invalid string %s: %w", raw, errTemplate)
		case c == '\\':
			n, err := unescape(&b, body[i:])
			if err != nil {
				return "", fmt.Errorf("invalid string %s: %w", raw, err)
			}
			i += n
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// unescape decodes the escape sequence at the start of s and returns its length.
func unescape(b *strings.Builder, s string) (int, error) {
	if len(s) < 2 {
		return 0, errors.New("trailing backslash")
	}
	switch s[1] {
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case '"':
		b.WriteByte('"')
	case '\\':
		b.WriteByte('\\')
	case 'u', 'U':
		width := 4
		if s[1] == 'U' {
			width = 8
		}
		if len(s) < 2+width {
			return 0, fmt.Errorf("short \\%c escape", s[1])
		}
		n, err := strconv.ParseUint(s[2:2+width], 16, 32)
		if err != nil || !utf8.ValidRune(rune(n)) {
			return 0, fmt.Errorf("bad \\%c escape %q", s[1], s[:2+width])
		}
		b.WriteRune(rune(n))
		return 2 + width, nil
	default:
		return 0, fmt.Errorf("unknown escape \\%c", s[1])
	}
	return 2, nil
}
