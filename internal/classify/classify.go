// Package classify decides what kind of calendar entry a piece of text
// describes and pulls the kind-specific fields (exam subject, holiday
// reason) out of it.
//
// Decisions are driven by ordered rule tables: the first rule whose pattern
// matches wins, so precedence is the table order.
package classify

import (
	"regexp"
	"strings"

	"github.com/yanivmizrachiy/luztedi/internal/model"
)

// KindRule maps a keyword pattern to a record kind.
type KindRule struct {
	Name    string
	Pattern *regexp.Regexp
	Kind    model.Kind
}

// TypeRule maps a keyword pattern to a schedule type.
type TypeRule struct {
	Name    string
	Pattern *regexp.Regexp
	Type    model.ScheduleType
}

// KindRules is consulted in order; exam wording outranks holiday wording.
// Text matching neither is a schedule entry.
var KindRules = []KindRule{
	{
		Name:    "exam",
		Pattern: regexp.MustCompile(`מבחן|בוחן|מתכונת|quiz|exam`),
		Kind:    model.KindExam,
	},
	{
		Name:    "holiday",
		Pattern: regexp.MustCompile(`חופשה|חופש|חג|אין\s+לימודים|שביתה|יום\s+חופשי|holiday|vacation|no school`),
		Kind:    model.KindHoliday,
	},
	{
		Name:    "named-holiday",
		Pattern: regexp.MustCompile(`ט"ו\s*בשבט|ט״ו\s*בשבט|בשבט|פורים|פסח|שבועות|סוכות|חנוכה|ראש\s*השנה|יום\s*כיפור`),
		Kind:    model.KindHoliday,
	},
}

// TypeRules is consulted in order for schedule entries.
var TypeRules = []TypeRule{
	{
		Name:    "trip",
		Pattern: regexp.MustCompile(`טיול|סיור|מחנה|שדה|מסע|גיחה|trip|tour`),
		Type:    model.TypeTrip,
	},
	{
		Name:    "meeting",
		Pattern: regexp.MustCompile(`ישיב[הת]|אסיפ[הת]|השתלמות|כנס|פגיש[הת]|הרצא[הת]|מפגש|meeting|conference`),
		Type:    model.TypeMeeting,
	},
}

// Kind classifies free text.
func Kind(text string) model.Kind {
	t := strings.ToLower(text)
	for _, r := range KindRules {
		if r.Pattern.MatchString(t) {
			return r.Kind
		}
	}
	return model.KindSchedule
}

// Type picks the schedule type for free text. When no rule matches the
// result is meeting and uncertain is true; the default is never trip.
func Type(text string) (typ model.ScheduleType, uncertain bool) {
	t := strings.ToLower(text)
	for _, r := range TypeRules {
		if r.Pattern.MatchString(t) {
			return r.Type, false
		}
	}
	return model.TypeMeeting, true
}

// KindFromLabel reads an explicit kind column value. Unknown labels yield "".
func KindFromLabel(label string) model.Kind {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "schedule", "לוז", "אירוע":
		return model.KindSchedule
	case "exam", "מבחן", "מבחנים":
		return model.KindExam
	case "holiday", "חופשה", "חגים", "יום מיוחד":
		return model.KindHoliday
	}
	return ""
}

// TypeFromLabel reads an explicit schedule type column value. Unknown labels
// yield "".
func TypeFromLabel(label string) model.ScheduleType {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "meeting", "ישיבה":
		return model.TypeMeeting
	case "trip", "טיול":
		return model.TypeTrip
	}
	return ""
}
