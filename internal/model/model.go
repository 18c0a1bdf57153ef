package model

// Kind discriminates the three record collections of a Dataset.
type Kind string

const (
	KindSchedule Kind = "schedule"
	KindExam     Kind = "exam"
	KindHoliday  Kind = "holiday"
)

// Kinds lists every record kind in collection order.
var Kinds = []Kind{KindSchedule, KindExam, KindHoliday}

// ScheduleType is the sub-type of a schedule record.
type ScheduleType string

const (
	TypeMeeting ScheduleType = "meeting"
	TypeTrip    ScheduleType = "trip"
)

// DocumentVersion is the only version tag the persisted document may carry.
const DocumentVersion = 1

// Record is one committed calendar entry. Which optional fields are
// meaningful depends on Kind:
//
//   - schedule: Type, StartTime, EndTime, Description
//   - exam:     Subject, ClassName, StartTime, EndTime
//   - holiday:  Reason
type Record struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	Date     string `json:"date"`
	Title    string `json:"title"`
	Notes    string `json:"notes,omitempty"`
	Group    string `json:"group,omitempty"`
	Location string `json:"location,omitempty"`

	Type        ScheduleType `json:"type,omitempty"`
	StartTime   string       `json:"startTime,omitempty"`
	EndTime     string       `json:"endTime,omitempty"`
	Description string       `json:"description,omitempty"`

	Subject   string `json:"subject,omitempty"`
	ClassName string `json:"className,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// Dataset is the whole persisted calendar document.
type Dataset struct {
	Version  int      `json:"version"`
	Schedule []Record `json:"schedule"`
	Exams    []Record `json:"exams"`
	Holidays []Record `json:"holidays"`
}

// NewDataset returns an empty version-1 dataset with non-nil collections.
func NewDataset() Dataset {
	return Dataset{
		Version:  DocumentVersion,
		Schedule: []Record{},
		Exams:    []Record{},
		Holidays: []Record{},
	}
}

// Collection returns a pointer to the slice that holds records of kind k,
// or nil for an unknown kind.
func (d *Dataset) Collection(k Kind) *[]Record {
	switch k {
	case KindSchedule:
		return &d.Schedule
	case KindExam:
		return &d.Exams
	case KindHoliday:
		return &d.Holidays
	default:
		return nil
	}
}

// CollectionName is the JSON field that stores records of kind k.
func CollectionName(k Kind) string {
	switch k {
	case KindSchedule:
		return "schedule"
	case KindExam:
		return "exams"
	case KindHoliday:
		return "holidays"
	default:
		return string(k)
	}
}

// Clone returns a deep copy whose collections can be modified freely.
func (d Dataset) Clone() Dataset {
	out := Dataset{Version: d.Version}
	out.Schedule = append(make([]Record, 0, len(d.Schedule)), d.Schedule...)
	out.Exams = append(make([]Record, 0, len(d.Exams)), d.Exams...)
	out.Holidays = append(make([]Record, 0, len(d.Holidays)), d.Holidays...)
	return out
}

// Normalize forces the version tag and replaces nil collections with empty
// ones so the document always serializes arrays.
func (d *Dataset) Normalize() {
	d.Version = DocumentVersion
	if d.Schedule == nil {
		d.Schedule = []Record{}
	}
	if d.Exams == nil {
		d.Exams = []Record{}
	}
	if d.Holidays == nil {
		d.Holidays = []Record{}
	}
}

// Find looks a record up by id across all collections.
func (d *Dataset) Find(id string) (Record, bool) {
	for _, k := range Kinds {
		for _, r := range *d.Collection(k) {
			if r.ID == id {
				return r, true
			}
		}
	}
	return Record{}, false
}

// Remove deletes the record with the given id from whichever collection
// holds it and reports whether anything was removed.
func (d *Dataset) Remove(id string) bool {
	removed := false
	for _, k := range Kinds {
		col := d.Collection(k)
		kept := (*col)[:0]
		for _, r := range *col {
			if r.ID == id {
				removed = true
				continue
			}
			kept = append(kept, r)
		}
		*col = kept
	}
	return removed
}

// CountsByKind holds one counter per collection, shaped like the run summary.
type CountsByKind struct {
	Schedule int `json:"schedule"`
	Exams    int `json:"exams"`
	Holidays int `json:"holidays"`
}

// Inc bumps the counter for kind k.
func (c *CountsByKind) Inc(k Kind) {
	switch k {
	case KindSchedule:
		c.Schedule++
	case KindExam:
		c.Exams++
	case KindHoliday:
		c.Holidays++
	}
}

// Total is the sum over all kinds.
func (c CountsByKind) Total() int {
	return c.Schedule + c.Exams + c.Holidays
}

// Sizes counts the records held in each collection.
func (d Dataset) Sizes() CountsByKind {
	return CountsByKind{
		Schedule: len(d.Schedule),
		Exams:    len(d.Exams),
		Holidays: len(d.Holidays),
	}
}

// AuditEntry is one line of the uncertain-audit log: a value that was
// guessed, or a row that looked like data but could not be used.
type AuditEntry struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
	Text   string `json:"text"`
	Date   string `json:"date,omitempty"`
	Sheet  string `json:"sheet,omitempty"`
}
