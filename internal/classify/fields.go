package classify

import (
	"regexp"
	"unicode/utf8"

	"github.com/yanivmizrachiy/luztedi/internal/textnorm"
)

// Unspecified fills a required field that could not be extracted.
const Unspecified = "לא צוין"

const (
	maxSubjectRunes = 60
	maxReasonRunes  = 120
)

var (
	subjectColonRE  = regexp.MustCompile(`(?i)(?:מבחן|בוחן|מתכונת|quiz|exam)\s*[:：]\s*(.+?)(?:$|\(|-|–)`)
	subjectPrefixRE = regexp.MustCompile(`(?i)(?:מבחן|בוחן|מתכונת|quiz|exam)\s*(?:ב־|ב |ב)?(.+?)(?:$|\(|-|–)`)
	reasonRE        = regexp.MustCompile(`(?:חופשה|חופש|חג|אין לימודים)(?:\s*[:：-]\s*|\s+)(.+)$`)
)

// ExtractSubject finds the subject of an exam: "מבחן: מתמטיקה",
// "מבחן במתמטיקה (כיתה ח)". It returns "" when nothing plausible follows the
// keyword.
func ExtractSubject(text string) string {
	s := textnorm.Line(text)
	for _, re := range []*regexp.Regexp{subjectColonRE, subjectPrefixRE} {
		if m := re.FindStringSubmatch(s); m != nil {
			if v := textnorm.Line(m[1]); v != "" && utf8.RuneCountInString(v) <= maxSubjectRunes {
				return v
			}
		}
	}
	return ""
}

// ExtractReason returns the text following a holiday keyword, or "".
func ExtractReason(text string) string {
	s := textnorm.Line(text)
	m := reasonRE.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	v := textnorm.Line(m[1])
	if v == "" || utf8.RuneCountInString(v) > maxReasonRunes {
		return ""
	}
	return v
}
