// Package fold implements the case and diacritic folding used for term lookup.
package fold

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// table maps diacritic letters to their ASCII base. Applied after lowercasing.
var table = map[rune]rune{
	'ă': 'a',
	'â': 'a',
	'ç': 'c',
	'ş': 's',
	'ș': 's',
	'ţ': 't',
	'ț': 't',
	'ğ': 'g',
	'ö': 'o',
	'ü': 'u',
	'ı': 'i',
	'î': 'i',
	'é': 'e',
	'è': 'e',
}

// Lower lowercases s. Turkish dotted capital İ becomes plain i
// (strings.ToLower would emit i + U+0307). Dotless ı is left alone here.
func Lower(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == 'İ' {
			b.WriteRune('i')
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Fold lowercases s and replaces diacritics per the folding table.
func Fold(s string) string {
	lowered := Lower(s)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if base, ok := table[r]; ok {
			r = base
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Title upper-cases the first letter of every word.
func Title(s string) string {
	return cases.Title(language.Und).String(s)
}

// Tokens splits s into words made of Unicode letters and digits.
func Tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Clean trims s and collapses internal whitespace runs to a single space.
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
