package analyzer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	hyphenBreakRe = regexp.MustCompile(`(\p{L})-\s*\n\s*(\p{L})`)
	multiSpaceRe  = regexp.MustCompile(`[ \t]+`)
	multiBlankRe  = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText bereinigt aus PDFs extrahierten Text: Unicode-NFC,
// Steuerzeichen raus, Silbentrennung am Zeilenende zusammenziehen,
// Whitespace kollabieren.
func NormalizeText(s string) string {
	t := transform.Chain(
		norm.NFC,
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.IsControl(r) && r != '\n' && r != '\t'
		})),
	)
	normalized, _, err := transform.String(t, s)
	if err != nil {
		normalized = s
	}

	normalized = hyphenBreakRe.ReplaceAllString(normalized, "$1$2")
	normalized = multiSpaceRe.ReplaceAllString(normalized, " ")
	normalized = multiBlankRe.ReplaceAllString(normalized, "\n\n")

	var lines []string
	for _, line := range strings.Split(normalized, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
