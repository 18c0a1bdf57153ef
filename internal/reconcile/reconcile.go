// Package reconcile folds imported candidate records into an existing
// dataset without duplicating entries or dropping fields that were curated
// by hand.
package reconcile

import (
	"fmt"

	"github.com/yanivmizrachiy/luztedi/internal/datetime"
	"github.com/yanivmizrachiy/luztedi/internal/identity"
	"github.com/yanivmizrachiy/luztedi/internal/model"
)

// KeyMode selects how a candidate finds the record it should update.
type KeyMode int

const (
	// ByID matches on the record id only. Used by importers whose ids are
	// derived from exact text.
	ByID KeyMode = iota
	// BySignature matches on id first, then on the normalized signature.
	BySignature
)

func (m KeyMode) String() string {
	if m == BySignature {
		return "signature"
	}
	return "id"
}

// Outcome of a single upsert.
type Outcome int

const (
	Added Outcome = iota
	Merged
	// Rejected means the record, or the result of merging it, failed
	// validation. The dataset is left as it was.
	Rejected
)

// Candidate is one record produced by an ingestion path, still carrying
// the extraction metadata that never reaches the document.
type Candidate struct {
	Record    model.Record
	Signature string   // computed from Record when empty
	Uncertain []string // audit reasons, one entry each
	AuditText string   // original text shown in the audit log
	Sheet     string
}

// Index tracks record positions by id and by signature for one dataset.
// The signature side table lives here and is never persisted.
type Index struct {
	byID  map[model.Kind]map[string]int
	bySig map[model.Kind]map[string]int
	sigOf map[model.Kind]map[string]string
}

// NewIndex indexes every record currently in ds.
func NewIndex(ds model.Dataset) *Index {
	idx := &Index{
		byID:  make(map[model.Kind]map[string]int, len(model.Kinds)),
		bySig: make(map[model.Kind]map[string]int, len(model.Kinds)),
		sigOf: identity.Signatures(ds),
	}
	for _, k := range model.Kinds {
		idx.byID[k] = map[string]int{}
		idx.bySig[k] = map[string]int{}
		for i, r := range *ds.Collection(k) {
			idx.byID[k][r.ID] = i
			sig := idx.sigOf[k][r.ID]
			if _, taken := idx.bySig[k][sig]; !taken {
				idx.bySig[k][sig] = i
			}
		}
	}
	return idx
}

func (idx *Index) lookup(kind model.Kind, id, sig string, mode KeyMode) (int, bool) {
	if pos, ok := idx.byID[kind][id]; ok {
		return pos, true
	}
	if mode == BySignature && sig != "" {
		pos, ok := idx.bySig[kind][sig]
		return pos, ok
	}
	return 0, false
}

func (idx *Index) put(kind model.Kind, pos int, id, sig string) {
	if old, ok := idx.sigOf[kind][id]; ok && old != sig {
		if p, ok := idx.bySig[kind][old]; ok && p == pos {
			delete(idx.bySig[kind], old)
		}
	}
	idx.byID[kind][id] = pos
	idx.bySig[kind][sig] = pos
	idx.sigOf[kind][id] = sig
}

// Upsert places c into the collection for its kind. A matched record takes
// every field of the candidate, keeps its own id and gets the union of
// both notes. Unmatched candidates are appended. A candidate of unknown
// kind, or a merge result that fails model.ValidateRecord, is Rejected
// with the validation error.
func Upsert(ds *model.Dataset, idx *Index, c Candidate, mode KeyMode) (Outcome, *model.ValidationError) {
	r := c.Record
	col := ds.Collection(r.Kind)
	if col == nil {
		return Rejected, &model.ValidationError{Path: "kind", Reason: fmt.Sprintf("unknown kind %q", r.Kind)}
	}
	sig := c.Signature
	if sig == "" {
		sig = identity.Signature(r)
	}

	if pos, ok := idx.lookup(r.Kind, r.ID, sig, mode); ok {
		merged := overlay((*col)[pos], r)
		if verr := model.ValidateRecord(merged, r.Kind); verr != nil {
			return Rejected, verr
		}
		(*col)[pos] = merged
		idx.put(r.Kind, pos, merged.ID, sig)
		return Merged, nil
	}

	*col = append(*col, r)
	idx.put(r.Kind, len(*col)-1, r.ID, sig)
	return Added, nil
}

// overlay replaces existing with incoming. Fields the candidate leaves
// empty are cleared; only the id of existing survives and notes are
// unioned.
func overlay(existing, incoming model.Record) model.Record {
	out := incoming
	out.ID = existing.ID
	out.Notes = model.MergeNotes(existing.Notes, incoming.Notes)
	return out
}

// Options configures one Apply run.
type Options struct {
	Source      string // summary name, e.g. sheet-xlsx
	Input       string // path or URL that was imported
	Today       string // YYYY-MM-DD; earlier candidates are dropped
	Mode        KeyMode
	SampleLimit int                // audit entries kept in the summary; <= 0 keeps all
	Audit       []model.AuditEntry // entries already raised during extraction
}

// Summary is the per-run report written next to the document.
type Summary struct {
	Source         string             `json:"source"`
	Input          string             `json:"input,omitempty"`
	Today          string             `json:"today"`
	Mode           string             `json:"mode"`
	Added          model.CountsByKind `json:"added"`
	Merged         model.CountsByKind `json:"merged"`
	Skipped        int                `json:"skipped"`
	UncertainCount int                `json:"uncertainCount"`
	Uncertain      []model.AuditEntry `json:"uncertain"`
}

// Apply folds candidates into a copy of ds in order. ds itself is not
// modified.
func Apply(ds model.Dataset, candidates []Candidate, opts Options) (model.Dataset, Summary) {
	next := ds.Clone()
	next.Normalize()
	idx := NewIndex(next)

	sum := Summary{
		Source: opts.Source,
		Input:  opts.Input,
		Today:  opts.Today,
		Mode:   opts.Mode.String(),
	}
	audit := append([]model.AuditEntry(nil), opts.Audit...)
	note := func(reason, text, date, sheet string) {
		audit = append(audit, model.AuditEntry{
			Source: opts.Source,
			Reason: reason,
			Text:   text,
			Date:   date,
			Sheet:  sheet,
		})
	}

	for _, c := range candidates {
		r := c.Record
		text := c.AuditText
		if text == "" {
			text = r.Title
		}

		if !datetime.ValidDate(r.Date) {
			note("invalid-date", text, r.Date, c.Sheet)
			sum.Skipped++
			continue
		}
		if opts.Today != "" && r.Date < opts.Today {
			sum.Skipped++
			continue
		}
		verr := model.ValidateRecord(r, r.Kind)
		outcome := Rejected
		if verr == nil {
			outcome, verr = Upsert(&next, idx, c, opts.Mode)
		}

		switch outcome {
		case Added:
			sum.Added.Inc(r.Kind)
		case Merged:
			sum.Merged.Inc(r.Kind)
		case Rejected:
			note("invalid-record", text+" ("+verr.Path+": "+verr.Reason+")", r.Date, c.Sheet)
			sum.Skipped++
			continue
		}
		for _, reason := range c.Uncertain {
			note(reason, text, r.Date, c.Sheet)
		}
	}

	sum.UncertainCount = len(audit)
	if opts.SampleLimit > 0 && len(audit) > opts.SampleLimit {
		audit = audit[:opts.SampleLimit]
	}
	if audit == nil {
		audit = []model.AuditEntry{}
	}
	sum.Uncertain = audit
	return next, sum
}
