// Package textnorm canonicalizes human-authored calendar text.
//
// Clean and Line produce display text (case preserved). Key produces the
// comparison form used by grouping keys and signatures.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	blankRunRE = regexp.MustCompile(`[\t\p{Zs}]+`)
	spaceRunRE = regexp.MustCompile(`[\s\p{Zs}]+`)

	// Quote marks used in Hebrew abbreviations (geresh, gershayim) and
	// their ASCII stand-ins vanish entirely: ט"ו and ט״ו compare equal.
	quoteStripper = strings.NewReplacer(`"`, "", `'`, "", "׳", "", "״", "", "“", "", "”", "", "’", "")

	// Separating punctuation becomes a space.
	punctSpacer = strings.NewReplacer(
		"–", " ", "—", " ", ":", " ", ".", " ", ",", " ", "!", " ", "?", " ",
		"(", " ", ")", " ", "[", " ", "]", " ", "{", " ", "}", " ", "-", " ",
	)
)

// Clean folds to NFC, collapses runs of horizontal whitespace (tabs and
// non-breaking spaces included) to one space and trims. Newlines survive.
func Clean(s string) string {
	s = norm.NFC.String(s)
	s = blankRunRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Line is Clean with every whitespace run, newlines included, collapsed to
// one space.
func Line(s string) string {
	s = norm.NFC.String(s)
	s = spaceRunRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Key is the comparison form: lowercase, quote marks dropped, separating
// punctuation and whitespace runs reduced to single spaces.
// Key(Key(s)) == Key(s).
func Key(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	s = quoteStripper.Replace(s)
	s = punctSpacer.Replace(s)
	s = spaceRunRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// FirstNonEmpty returns the first argument that is not blank, trimmed.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
