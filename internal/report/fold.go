package report

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// The PDF core fonts cover cp1252, which lacks these Turkish letters.
var nonLatin1 = strings.NewReplacer(
	"ş", "s", "Ş", "S",
	"ğ", "g", "Ğ", "G",
	"ı", "i", "İ", "I",
)

// foldLatin1 replaces the Turkish letters cp1252 cannot encode with their base letters.
func foldLatin1(s string) string {
	return nonLatin1.Replace(s)
}

// foldASCII strips diacritics so text renders with the bitmap chart font.
// Runes that do not decompose to ASCII are replaced with '?'.
func foldASCII(s string) string {
	s = foldLatin1(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '?'
		}
		return r
	}, out)
}
