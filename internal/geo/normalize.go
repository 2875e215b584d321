package geo

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, trims and strips diacritics from a municipality
// name so lookups match regardless of accents ("São Paulo" == "sao paulo").
func Normalize(name string) string {
	s, _, err := transform.String(deaccent, name)
	if err != nil {
		s = name
	}
	return strings.ToLower(strings.TrimSpace(s))
}
