// Package normalize turns raw spreadsheet field values into canonical forms.
// Every function is total: unusable input yields an absent value, never an
// error, so a bad cell degrades to a warning instead of killing its row.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Name produces the comparison form of a person name: lowercased, accents
// stripped, whitespace collapsed, everything outside [a-z0-9 ] removed. It
// is used for matching and duplicate keys only, never for display.
func Name(raw string) string {
	folded, _, err := transform.String(stripAccents, strings.ToLower(raw))
	if err != nil {
		folded = strings.ToLower(raw)
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// NationalID keeps only the digits of a national identifier.
func NationalID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var truthyTokens = map[string]struct{}{
	"true": {},
	"1":    {},
	"yes":  {},
	"sim":  {},
	"s":    {},
}

// Boolean is true only for the known truthy tokens; anything else, absent
// input included, is false.
func Boolean(raw string) bool {
	_, ok := truthyTokens[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// Sex maps free-text sex values onto M, F or Outro. Absent input stays
// absent.
func Sex(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch s {
	case "":
		return ""
	case "M", "MASCULINO":
		return "M"
	case "F", "FEMININO":
		return "F"
	default:
		return "Outro"
	}
}

// TitleCase capitalizes the first letter of each word, the fallback rule for
// categorical values missing from the synonym tables.
func TitleCase(raw string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
