package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yanivmizrachiy/luztedi/internal/model"
)

func TestKind(t *testing.T) {
	cases := map[string]model.Kind{
		"מבחן במתמטיקה":            model.KindExam,
		"Math EXAM":                 model.KindExam,
		"בוחן בהיסטוריה":           model.KindExam,
		"חופשת פסח":                model.KindHoliday,
		"אין לימודים":              model.KindHoliday,
		`ט"ו בשבט`:                 model.KindHoliday,
		"ט״ו בשבט":                 model.KindHoliday,
		"ראש השנה":                 model.KindHoliday,
		"מבחן מתכונת לפני חופשה":   model.KindExam,
		"ישיבת צוות":               model.KindSchedule,
		"":                          model.KindSchedule,
	}
	for text, want := range cases {
		assert.Equal(t, want, Kind(text), text)
	}
}

func TestType(t *testing.T) {
	typ, uncertain := Type("טיול שנתי לגליל")
	assert.Equal(t, model.TypeTrip, typ)
	assert.False(t, uncertain)

	typ, uncertain = Type("ישיבת הורים")
	assert.Equal(t, model.TypeMeeting, typ)
	assert.False(t, uncertain)

	typ, uncertain = Type("סיור ואחריו ישיבה")
	assert.Equal(t, model.TypeTrip, typ)
	assert.False(t, uncertain)

	typ, uncertain = Type("טקס סיום")
	assert.Equal(t, model.TypeMeeting, typ)
	assert.True(t, uncertain)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, model.KindSchedule, KindFromLabel(" לוז "))
	assert.Equal(t, model.KindExam, KindFromLabel("Exam"))
	assert.Equal(t, model.KindHoliday, KindFromLabel("יום מיוחד"))
	assert.Equal(t, model.Kind(""), KindFromLabel("משהו"))

	assert.Equal(t, model.TypeTrip, TypeFromLabel("טיול"))
	assert.Equal(t, model.TypeMeeting, TypeFromLabel("MEETING"))
	assert.Equal(t, model.ScheduleType(""), TypeFromLabel("כנס"))
}

func TestExtractSubject(t *testing.T) {
	assert.Equal(t, "מתמטיקה", ExtractSubject("מבחן: מתמטיקה"))
	assert.Equal(t, "מתמטיקה", ExtractSubject("מבחן במתמטיקה (כיתה ח)"))
	assert.Equal(t, "אנגלית", ExtractSubject("בוחן  אנגלית - שכבה ט"))
	assert.Equal(t, "", ExtractSubject("מבחן"))
	assert.Equal(t, "", ExtractSubject("ישיבת צוות"))
}

func TestExtractReason(t *testing.T) {
	assert.Equal(t, "פסח", ExtractReason("חופשה: פסח"))
	assert.Equal(t, "בגלל הבחירות", ExtractReason("אין לימודים בגלל הבחירות"))
	assert.Equal(t, "", ExtractReason("חופשה"))
	assert.Equal(t, "", ExtractReason("פורים"))
}
