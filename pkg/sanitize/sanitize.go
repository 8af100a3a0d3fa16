// Package sanitize makes untrusted strings safe to print on a terminal or
// to embed in a log line.
package sanitize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const DefaultMaxDisplayLength = 256

// String strips terminal control sequences from s and truncates the result
// to maxLen runes, marking the cut with "...". maxLen <= 0 disables
// truncation.
func String(s string, maxLen int) string {
	return truncate(ForTerminal(s), maxLen)
}

// ForTerminal replaces escape sequences and control bytes with visible
// placeholders so a value can never move the cursor or recolor the screen.
func ForTerminal(s string) string {
	if s == "" {
		return s
	}

	needsSanitization := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7F {
			needsSanitization = true
			break
		}
	}
	if !needsSanitization {
		return s
	}

	var result strings.Builder
	result.Grow(len(s))

	i := 0
	for i < len(s) {
		c := s[i]

		if c == 0x1B {
			i++
			if i < len(s) && s[i] == '[' {
				i++
				for i < len(s) && !isCSITerminator(s[i]) {
					i++
				}
				if i < len(s) {
					i++
				}
			}
			result.WriteString("[ESC]")
			continue
		}

		switch {
		case c == '\t', c == '\n':
			result.WriteByte(' ')
		case c == '\r':
			result.WriteString("[CR]")
		case c < 0x20:
			result.WriteString("[CTRL]")
		case c == 0x7F:
			result.WriteString("[DEL]")
		default:
			result.WriteByte(c)
		}
		i++
	}

	return result.String()
}

func isCSITerminator(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '@' || c == '`'
}

// Value renders a decoded JSON value (a feature cell) for display.
// Integral floats print without a fraction; nil prints as "-".
func Value(v any, maxLen int) string {
	var s string
	switch x := v.(type) {
	case nil:
		s = "-"
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		s = strconv.FormatInt(x, 10)
	case int:
		s = strconv.Itoa(x)
	case bool:
		s = strconv.FormatBool(x)
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}
	return String(s, maxLen)
}

// Token reduces client-supplied identifiers (attack modes, request IDs) to
// letters, digits, '-', '_' and '.', so they log as a single word.
func Token(s string, maxLen int) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			result.WriteRune(r)
		}
	}
	out := truncate(result.String(), maxLen)
	if out == "" && s != "" {
		return "[INVALID]"
	}
	return out
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen > 3 {
		return string(runes[:maxLen-3]) + "..."
	}
	return string(runes[:maxLen])
}
