package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizer folds converted document text to NFC and strips Unicode format
// controls (RLM/LRM and friends). PDF-to-text output of Hebrew documents is
// littered with directional marks that silently break anchored patterns.
var normalizer = transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.Cf)))

// NormalizeText prepares raw converted document text for pattern matching.
// Line structure is preserved; only in-line noise is removed.
func NormalizeText(s string) string {
	out, _, err := transform.String(normalizer, s)
	if err != nil {
		return s
	}
	return out
}

// SplitLines splits normalized document text into trimmed lines for the
// section scanner.
func SplitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}
