package languageutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var LowerCaser = cases.Lower(language.Und)
var TitleCaser = cases.Title(language.Und)

// Normalize folds user-typed keywords into the form used by the lookup
// tables: trimmed, full-width characters narrowed, composed Hangul (NFC)
// and lower case. iOS keyboards send decomposed jamo, so the NFC step is
// required for Korean keys to match.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = width.Narrow.String(s)
	s = norm.NFC.String(s)
	s = LowerCaser.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Title renders an enum-like label ("commute") in its canonical form ("Commute").
func Title(s string) string {
	return TitleCaser.String(Normalize(s))
}
