// Package ingest turns external sources (CSV sheets, workbooks, Word or
// HTML documents, iCalendar feeds) into calendar records and folds them
// into the persisted document.
//
// Each format has an Extractor. Run drives one extractor end to end: read
// the source, load the document, reconcile, sort, write the document and
// the run summary. A source that cannot be read aborts the run before
// anything is written.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/yanivmizrachiy/luztedi/internal/datetime"
	appLog "github.com/yanivmizrachiy/luztedi/internal/log"
	"github.com/yanivmizrachiy/luztedi/internal/model"
	"github.com/yanivmizrachiy/luztedi/internal/reconcile"
	"github.com/yanivmizrachiy/luztedi/internal/store"
)

// Extraction is everything an extractor produced from one source.
type Extraction struct {
	Candidates []reconcile.Candidate
	// Audit holds rows that looked like data but could not be used.
	Audit []model.AuditEntry
}

func (e *Extraction) audit(source, reason, text, sheet string) {
	e.Audit = append(e.Audit, model.AuditEntry{Source: source, Reason: reason, Text: text, Sheet: sheet})
}

// Extractor reads one kind of source.
type Extractor interface {
	// Source names the run summary, e.g. "sheet-csv".
	Source() string
	// Mode is how candidates find existing records.
	Mode() reconcile.KeyMode
	// Extract reads input and returns candidates. It never touches the
	// document.
	Extract(ctx context.Context, input string) (*Extraction, error)
}

// Target is where a run reads and writes.
type Target struct {
	DataPath   string
	SummaryDir string
}

// RunOptions tunes one Run.
type RunOptions struct {
	Today       time.Time
	SampleLimit int
	DryRun      bool
}

// Run imports input through ex into the document at t.DataPath.
func Run(ctx context.Context, ex Extractor, input string, t Target, opts RunOptions) (reconcile.Summary, error) {
	appLog.Info("import start", "source", ex.Source(), "input", input)

	extracted, err := ex.Extract(ctx, input)
	if err != nil {
		return reconcile.Summary{}, fmt.Errorf("%s: %w", ex.Source(), err)
	}

	current, err := store.Load(t.DataPath)
	if err != nil {
		return reconcile.Summary{}, err
	}

	next, summary := reconcile.Apply(current, extracted.Candidates, reconcile.Options{
		Source:      ex.Source(),
		Input:       input,
		Today:       datetime.ISO(opts.Today),
		Mode:        ex.Mode(),
		SampleLimit: opts.SampleLimit,
		Audit:       extracted.Audit,
	})
	model.SortForDisplay(&next)

	if opts.DryRun {
		appLog.Info("import dry run, nothing written", "source", ex.Source())
		return summary, nil
	}

	if err := store.Save(t.DataPath, next); err != nil {
		return summary, err
	}
	if t.SummaryDir != "" {
		if err := store.WriteJSON(store.SummaryPath(t.SummaryDir, ex.Source()), summary); err != nil {
			return summary, err
		}
	}

	appLog.Info("import complete",
		"source", ex.Source(),
		"candidates", len(extracted.Candidates),
		"added", summary.Added.Total(),
		"merged", summary.Merged.Total(),
		"skipped", summary.Skipped,
		"uncertain", summary.UncertainCount,
	)
	return summary, nil
}
