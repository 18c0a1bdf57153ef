// Package identity derives deterministic ids and content signatures for
// calendar records.
//
// An id is persisted and never changes once assigned. A signature is a
// normalized fingerprint used only while reconciling an import; it is kept
// in a side table and never written to the document.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/yanivmizrachiy/luztedi/internal/model"
	"github.com/yanivmizrachiy/luztedi/internal/textnorm"
)

// Id prefixes per ingestion path.
const (
	PrefixCSV  = "sheet"
	PrefixXLSX = "ev"
	PrefixDOCX = "doc"
	PrefixICS  = "ics"
)

const idHexLen = 20

// StableID hashes the pipe-joined parts: prefix-<first 20 hex of sha256>.
func StableID(prefix string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return prefix + "-" + hex.EncodeToString(sum[:])[:idHexLen]
}

// RecordID builds an id from the record's exact field text. Any change to
// those fields produces a different id.
func RecordID(prefix string, r model.Record) string {
	return StableID(prefix, idTuple(r)...)
}

// IDFromSignature builds an id from an already computed signature, so
// cosmetically different inputs that reconcile together also share an id.
func IDFromSignature(prefix, sig string) string {
	return StableID(prefix, sig)
}

func idTuple(r model.Record) []string {
	switch r.Kind {
	case model.KindSchedule:
		return []string{string(r.Kind), string(r.Type), r.Date, r.StartTime, r.EndTime, r.Title}
	case model.KindExam:
		return []string{string(r.Kind), r.Date, r.StartTime, r.EndTime, r.Subject, r.Title}
	case model.KindHoliday:
		return []string{string(r.Kind), r.Date, r.Reason, r.Title}
	default:
		return []string{string(r.Kind), r.Date, r.Title}
	}
}

// Signature fingerprints what a record is about, ignoring case,
// punctuation, quote marks and spacing in its free-text fields.
func Signature(r model.Record) string {
	var parts []string
	switch r.Kind {
	case model.KindSchedule:
		parts = []string{string(r.Kind), r.Date, textnorm.Key(r.Title), r.StartTime, r.EndTime, string(r.Type)}
	case model.KindExam:
		parts = []string{string(r.Kind), r.Date, textnorm.Key(r.Title), r.StartTime, r.EndTime, textnorm.Key(r.Subject)}
	case model.KindHoliday:
		parts = []string{string(r.Kind), r.Date, textnorm.Key(r.Title), textnorm.Key(r.Reason)}
	default:
		parts = []string{string(r.Kind), r.Date, textnorm.Key(r.Title)}
	}
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, "|")
}

// Signatures computes the side table kind → id → signature for every
// record in ds. Ids are unique within a collection only.
func Signatures(ds model.Dataset) map[model.Kind]map[string]string {
	out := make(map[model.Kind]map[string]string, len(model.Kinds))
	for _, k := range model.Kinds {
		col := *ds.Collection(k)
		sigs := make(map[string]string, len(col))
		for _, r := range col {
			sigs[r.ID] = Signature(r)
		}
		out[k] = sigs
	}
	return out
}
