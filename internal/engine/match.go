package engine

import (
	"github.com/rocjay1/spend-audit/internal/models"
)

// SourceLedger is one source's normalized transactions, in declaration order.
type SourceLedger struct {
	Label        string
	Transactions []models.Transaction
}

// MatchResult is the verdict for one audit record.
type MatchResult struct {
	Index   int
	Matched bool
	// Source is the first source, in declaration order, holding an equal record.
	Source string
}

// MatchReport is the outcome of a cross-source verification pass.
type MatchReport struct {
	Results   []MatchResult
	Unmatched []models.Transaction
	Summary   models.MatchSummary
}

// matchKey returns the exact-equality key of t. Records without a date or a
// valid amount have no key and never match.
func matchKey(t *models.Transaction) (string, bool) {
	if !t.HasDate() || !t.AmountValid {
		return "", false
	}
	return t.Date.Format("2006-01-02") + "|" + t.Amount.String(), true
}

func matchable(a, b *models.Transaction) bool {
	return a.HasDate() && a.AmountValid && b.HasDate() && b.AmountValid &&
		a.Date.Equal(b.Date) && a.Amount.Equal(b.Amount)
}

func newReport(audit []models.Transaction, sources []SourceLedger) MatchReport {
	r := MatchReport{
		Results: make([]MatchResult, len(audit)),
		Summary: models.MatchSummary{
			Total:             len(audit),
			MatchedBySource:   make(map[string]int, len(sources)),
			UnmatchedBySource: make(map[string]int, len(sources)),
		},
	}
	for _, s := range sources {
		r.Summary.MatchedBySource[s.Label] = 0
		r.Summary.UnmatchedBySource[s.Label] = 0
	}
	return r
}

func (r *MatchReport) record(i int, t models.Transaction, source string, ok bool) {
	r.Results[i] = MatchResult{Index: i, Matched: ok, Source: source}
	if ok {
		r.Summary.Matched++
		r.Summary.MatchedBySource[source]++
		return
	}
	r.Summary.UnmatchedAudit++
	r.Unmatched = append(r.Unmatched, t)
}

// Match checks every audit record against the sources on (date, amount) equality
// using hash indexes. Its result is identical to MatchScan.
func Match(audit []models.Transaction, sources []SourceLedger) MatchReport {
	report := newReport(audit, sources)

	indexes := make([]map[string]struct{}, len(sources))
	for i, s := range sources {
		idx := make(map[string]struct{}, len(s.Transactions))
		for j := range s.Transactions {
			if k, ok := matchKey(&s.Transactions[j]); ok {
				idx[k] = struct{}{}
			}
		}
		indexes[i] = idx
	}

	auditKeys := make(map[string]struct{}, len(audit))
	for i := range audit {
		k, ok := matchKey(&audit[i])
		if ok {
			auditKeys[k] = struct{}{}
		}
		source, found := "", false
		if ok {
			for si, idx := range indexes {
				if _, hit := idx[k]; hit {
					source, found = sources[si].Label, true
					break
				}
			}
		}
		report.record(i, audit[i], source, found)
	}

	for _, s := range sources {
		for j := range s.Transactions {
			k, ok := matchKey(&s.Transactions[j])
			if _, hit := auditKeys[k]; !ok || !hit {
				report.Summary.UnmatchedBySource[s.Label]++
			}
		}
	}
	return report
}

// MatchScan is the quadratic reference implementation of Match.
func MatchScan(audit []models.Transaction, sources []SourceLedger) MatchReport {
	report := newReport(audit, sources)

	for i := range audit {
		source, found := "", false
	scan:
		for _, s := range sources {
			for j := range s.Transactions {
				if matchable(&audit[i], &s.Transactions[j]) {
					source, found = s.Label, true
					break scan
				}
			}
		}
		report.record(i, audit[i], source, found)
	}

	for _, s := range sources {
		for j := range s.Transactions {
			hit := false
			for i := range audit {
				if matchable(&audit[i], &s.Transactions[j]) {
					hit = true
					break
				}
			}
			if !hit {
				report.Summary.UnmatchedBySource[s.Label]++
			}
		}
	}
	return report
}
