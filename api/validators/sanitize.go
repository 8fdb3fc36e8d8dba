package validators

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SanitizeLine prepares a single-line field such as a name or city: NFC form,
// control characters dropped, whitespace runs collapsed, cut to maxRunes.
func SanitizeLine(input string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, norm.NFC.String(input))
	return truncateRunes(strings.Join(strings.Fields(cleaned), " "), maxRunes)
}

// SanitizeText is SanitizeLine for free text: line breaks survive, blank
// lines at the edges do not.
func SanitizeText(input string, maxRunes int) string {
	normalized := strings.ReplaceAll(norm.NFC.String(input), "\r\n", "\n")
	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		lines[i] = SanitizeLine(line, 0)
	}
	return truncateRunes(strings.TrimSpace(strings.Join(lines, "\n")), maxRunes)
}

func truncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == maxRunes {
			return strings.TrimRightFunc(s[:i], unicode.IsSpace)
		}
		count++
	}
	return s
}
