package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/yanivmizrachiy/luztedi/internal/classify"
	"github.com/yanivmizrachiy/luztedi/internal/datetime"
	"github.com/yanivmizrachiy/luztedi/internal/ics"
	"github.com/yanivmizrachiy/luztedi/internal/identity"
	appLog "github.com/yanivmizrachiy/luztedi/internal/log"
	"github.com/yanivmizrachiy/luztedi/internal/model"
	"github.com/yanivmizrachiy/luztedi/internal/reconcile"
	"github.com/yanivmizrachiy/luztedi/internal/textnorm"
)

// DefaultHorizonDays is how far ahead feeds are expanded when not configured.
const DefaultHorizonDays = 180

// ICSExtractor imports an iCalendar feed, either a local file or a
// subscribed URL fetched through Fetcher.
type ICSExtractor struct {
	Feed    ics.Source
	Fetcher *ics.Fetcher

	Today       time.Time
	HorizonDays int
	Location    *time.Location
}

// Source is "ics-<feed id>", or "ics-file" for an unnamed local file.
func (x ICSExtractor) Source() string {
	return "ics-" + textnorm.FirstNonEmpty(x.Feed.ID, "file")
}

func (ICSExtractor) Mode() reconcile.KeyMode { return reconcile.BySignature }

// Extract reads input as a file path, or fetches Feed.URL when input is
// empty.
func (x ICSExtractor) Extract(ctx context.Context, input string) (*Extraction, error) {
	var body []byte
	if input != "" {
		b, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		body = b
	} else {
		if x.Fetcher == nil {
			return nil, fmt.Errorf("feed %q: no fetcher configured", x.Feed.ID)
		}
		res, err := x.Fetcher.Fetch(ctx, x.Feed)
		if err != nil {
			return nil, err
		}
		body = res.Body
	}

	events, err := ics.Parse(x.Feed, body)
	if err != nil {
		return nil, err
	}
	return x.FromEvents(events)
}

// FromEvents expands events over [Today, Today+HorizonDays] and converts
// every covered day into a candidate.
func (x ICSExtractor) FromEvents(events []ics.Event) (*Extraction, error) {
	loc := x.Location
	if loc == nil {
		loc = time.Local
	}
	horizon := x.HorizonDays
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}
	today := x.Today.In(loc)
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

	exp, err := ics.Expand(events, ics.Window{
		From:     from,
		To:       from.AddDate(0, 0, horizon),
		Location: loc,
	})
	if err != nil {
		return nil, err
	}
	for _, uid := range exp.Truncated {
		appLog.Info("ics series truncated", "source", x.Source(), "uid", uid)
	}

	out := &Extraction{}
	for _, occ := range exp.Occurrences {
		for _, day := range occ.Days() {
			out.Candidates = append(out.Candidates, x.candidate(occ, day))
		}
	}
	return out, nil
}

func (x ICSExtractor) candidate(occ ics.Occurrence, day string) reconcile.Candidate {
	summary := textnorm.Line(occ.Summary)
	r := model.Record{
		Date:     day,
		Title:    summary,
		Location: textnorm.Line(occ.Location),
		Notes:    fmt.Sprintf("מקור: ICS (%s)\nטקסט מקורי: %s", textnorm.FirstNonEmpty(x.Feed.ID, "file"), summary),
	}
	if !occ.AllDay {
		r.StartTime = occ.Start.Format("15:04")
		if datetime.ISO(occ.End) == day && occ.End.After(occ.Start) {
			r.EndTime = occ.End.Format("15:04")
		}
	}

	// Categories written by our own export name the kind and type directly.
	var kind model.Kind
	var typ model.ScheduleType
	for _, c := range occ.Categories {
		if k := classify.KindFromLabel(c); k != "" && kind == "" {
			kind = k
		}
		if t := classify.TypeFromLabel(c); t != "" && typ == "" {
			typ = t
		}
	}
	text := textnorm.Line(occ.Summary + " " + occ.Description)
	if kind == "" {
		kind = classify.Kind(summary)
	}
	r.Kind = kind

	var flags []string
	switch kind {
	case model.KindHoliday:
		r.StartTime, r.EndTime = "", ""
		r.Reason = textnorm.FirstNonEmpty(classify.ExtractReason(summary), summary, classify.Unspecified)
		if r.Reason == classify.Unspecified {
			flags = append(flags, "holiday-missing-reason")
		}
		r.Title = textnorm.FirstNonEmpty(r.Title, r.Reason)
	case model.KindExam:
		r.Subject = textnorm.FirstNonEmpty(classify.ExtractSubject(text), classify.Unspecified)
		if r.Subject == classify.Unspecified {
			flags = append(flags, "exam-missing-subject")
		}
		r.Title = textnorm.FirstNonEmpty(r.Title, r.Subject)
	default:
		r.Description = textnorm.Clean(occ.Description)
		if typ == "" {
			var guessed bool
			typ, guessed = classify.Type(text)
			if guessed {
				flags = append(flags, "schedule-uncertain-type")
			}
		}
		r.Type = typ
		r.Title = textnorm.FirstNonEmpty(r.Title, defaultEventTitle)
	}

	sig := identity.Signature(r)
	r.ID = identity.IDFromSignature(identity.PrefixICS, sig)
	return reconcile.Candidate{
		Record:    r,
		Signature: sig,
		Uncertain: flags,
		AuditText: summary,
	}
}
