package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yanivmizrachiy/luztedi/internal/datetime"
)

// ValidationError reports the first part of a document that failed the
// shape check. The whole document is rejected when one is returned.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "invalid document: " + e.Reason
	}
	return fmt.Sprintf("invalid document: %s: %s", e.Path, e.Reason)
}

// Validate decodes raw as a calendar document and checks every record.
// Nothing is returned but the error when any check fails.
func Validate(raw []byte) (Dataset, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return Dataset{}, &ValidationError{Reason: "not a JSON object"}
	}

	if v, ok := doc["version"]; !ok || strings.TrimSpace(string(v)) != "1" {
		return Dataset{}, &ValidationError{Path: "version", Reason: "must be 1"}
	}

	out := NewDataset()
	for _, k := range Kinds {
		name := CollectionName(k)
		records, err := decodeCollection(name, doc[name], k)
		if err != nil {
			return Dataset{}, err
		}
		*out.Collection(k) = records
	}
	return out, nil
}

func decodeCollection(name string, raw json.RawMessage, kind Kind) ([]Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &ValidationError{Path: name, Reason: "must be an array"}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, &ValidationError{Path: name, Reason: "must be an array"}
	}

	records := make([]Record, 0, len(elems))
	ids := make(map[string]struct{}, len(elems))
	for i, elem := range elems {
		path := fmt.Sprintf("%s[%d]", name, i)
		e := bytes.TrimSpace(elem)
		if len(e) == 0 || e[0] != '{' {
			return nil, &ValidationError{Path: path, Reason: "must be an object"}
		}
		var r Record
		if err := json.Unmarshal(e, &r); err != nil {
			return nil, &ValidationError{Path: path, Reason: "malformed record"}
		}
		if err := ValidateRecord(r, kind); err != nil {
			err.Path = path + "." + err.Path
			return nil, err
		}
		if _, dup := ids[r.ID]; dup {
			return nil, &ValidationError{Path: path + ".id", Reason: "duplicate id " + r.ID}
		}
		ids[r.ID] = struct{}{}
		records = append(records, r)
	}
	return records, nil
}

// ValidateRecord checks one record against the rules for kind. The
// returned error's Path is the offending field name.
func ValidateRecord(r Record, kind Kind) *ValidationError {
	if strings.TrimSpace(r.ID) == "" {
		return &ValidationError{Path: "id", Reason: "required"}
	}
	if r.Kind != kind {
		return &ValidationError{Path: "kind", Reason: fmt.Sprintf("must be %q", kind)}
	}
	if !datetime.ValidDate(r.Date) {
		return &ValidationError{Path: "date", Reason: "must be a calendar date YYYY-MM-DD"}
	}
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Path: "title", Reason: "required"}
	}

	switch kind {
	case KindSchedule:
		if r.Type != TypeMeeting && r.Type != TypeTrip {
			return &ValidationError{Path: "type", Reason: "must be meeting or trip"}
		}
		return validateTimes(r)
	case KindExam:
		if strings.TrimSpace(r.Subject) == "" {
			return &ValidationError{Path: "subject", Reason: "required"}
		}
		return validateTimes(r)
	case KindHoliday:
		if strings.TrimSpace(r.Reason) == "" {
			return &ValidationError{Path: "reason", Reason: "required"}
		}
	}
	return nil
}

func validateTimes(r Record) *ValidationError {
	if r.StartTime != "" && !datetime.ValidTime(r.StartTime) {
		return &ValidationError{Path: "startTime", Reason: "must be HH:MM"}
	}
	if r.EndTime != "" && !datetime.ValidTime(r.EndTime) {
		return &ValidationError{Path: "endTime", Reason: "must be HH:MM"}
	}
	if r.StartTime != "" && r.EndTime != "" && datetime.Minutes(r.EndTime) < datetime.Minutes(r.StartTime) {
		return &ValidationError{Path: "endTime", Reason: "must not be before startTime"}
	}
	return nil
}
