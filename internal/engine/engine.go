// Package engine reconciles and classifies transactions from several payment
// exports. Every pass is a pure function over in-memory slices driven by an
// explicit Config; the service layer handles I/O.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rocjay1/spend-audit/internal/csvparse"
	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/rocjay1/spend-audit/internal/rules"
)

var (
	// ErrNoSources is returned when no configured source produced any row.
	ErrNoSources = errors.New("no source data available")
	// ErrAuditLedgerMissing is returned when the canonical audit ledger could not be loaded.
	ErrAuditLedgerMissing = errors.New("audit ledger is missing")
)

// Window bounds the transaction dates a run considers. A zero bound is open.
type Window struct {
	After  time.Time
	Before time.Time
}

// IsZero reports whether neither bound is set.
func (w Window) IsZero() bool {
	return w.After.IsZero() && w.Before.IsZero()
}

// Contains reports whether d is strictly after After and strictly before Before.
// The null date is only contained by an open window.
func (w Window) Contains(d time.Time) bool {
	if w.IsZero() {
		return true
	}
	if d.IsZero() {
		return false
	}
	if !w.After.IsZero() && !d.After(w.After) {
		return false
	}
	if !w.Before.IsZero() && !d.Before(w.Before) {
		return false
	}
	return true
}

// ParseWindow builds a window from two optional YYYY-MM-DD bounds.
func ParseWindow(after, before string) (Window, error) {
	var w Window
	var err error
	if after != "" {
		if w.After, err = time.Parse(time.DateOnly, after); err != nil {
			return w, fmt.Errorf("invalid window start %q: %w", after, err)
		}
	}
	if before != "" {
		if w.Before, err = time.Parse(time.DateOnly, before); err != nil {
			return w, fmt.Errorf("invalid window end %q: %w", before, err)
		}
	}
	if !w.After.IsZero() && !w.Before.IsZero() && !w.Before.After(w.After) {
		return w, fmt.Errorf("window end %s is not after start %s", before, after)
	}
	return w, nil
}

// Config is the explicit input of every pipeline entry point.
type Config struct {
	Rules *rules.RuleSet
	// Sources restricts a run to these schemas. Empty means every schema in Rules.
	Sources []rules.SourceSchema
	Window  Window
}

func (c Config) sources() []rules.SourceSchema {
	if len(c.Sources) > 0 {
		return c.Sources
	}
	return c.Rules.Sources
}

// SourceData is the raw content of one configured source.
type SourceData struct {
	Label   string
	Records []csvparse.Record
	// Rejected counts rows the CSV reader could not turn into records.
	Rejected int
	// Missing marks a source whose file could not be found.
	Missing bool
}

// Result is the outcome of a classification run.
type Result struct {
	// Ledger is sorted by date, most recent first. Null dates come last.
	Ledger []models.Transaction
	// Removed holds the records dropped by deduplication.
	Removed []models.Transaction
	// Sources holds every available source after normalization and windowing.
	Sources    []SourceLedger
	Statistics models.Statistics
}

// Run normalizes, filters and classifies every configured source into one ledger.
// Unavailable sources are reported in the statistics; ErrNoSources is returned when
// none is available.
func Run(cfg Config, data []SourceData) (*Result, error) {
	if cfg.Rules == nil {
		return nil, fmt.Errorf("rule set is required")
	}

	byLabel := make(map[string]SourceData, len(data))
	for _, d := range data {
		if _, ok := cfg.schema(d.Label); !ok {
			return nil, fmt.Errorf("no schema configured for source %q", d.Label)
		}
		key := strings.ToLower(d.Label)
		prev := byLabel[key]
		prev.Label = d.Label
		prev.Records = append(prev.Records, d.Records...)
		prev.Rejected += d.Rejected
		prev.Missing = prev.Missing || d.Missing
		if len(prev.Records) > 0 {
			prev.Missing = false
		}
		byLabel[key] = prev
	}

	var (
		pooled      []models.Transaction
		ledgers     []SourceLedger
		unavailable []models.UnavailableSource
		quality     models.QualityReport
		outOfWindow int
	)

	for _, schema := range cfg.sources() {
		d, ok := byLabel[strings.ToLower(schema.Label)]
		quality.RejectedRows += d.Rejected
		if reason := unavailableReason(d, ok); reason != "" {
			unavailable = append(unavailable, models.UnavailableSource{
				Label:    schema.Label,
				Required: schema.Required,
				Reason:   reason,
			})
			slog.Warn("source unavailable", "source", schema.Label, "required", schema.Required, "reason", reason)
			continue
		}

		txns := NormalizeAll(schema, d.Records)
		countQuality(&quality, txns)

		inWindow := make([]models.Transaction, 0, len(txns))
		for _, t := range txns {
			if cfg.Window.Contains(t.Date) {
				inWindow = append(inWindow, t)
			} else {
				outOfWindow++
			}
		}

		ledgers = append(ledgers, SourceLedger{Label: schema.Label, Transactions: inWindow})
		classified := Detect(cfg.Rules, Filter(cfg.Rules, inWindow))
		pooled = append(pooled, classified...)
		slog.Info("normalized source", "source", schema.Label, "rows", len(txns), "in_window", len(inWindow))
	}

	if len(ledgers) == 0 {
		return nil, ErrNoSources
	}

	kept, removed := Dedupe(cfg.Rules, pooled)
	ledger := Categorize(cfg.Rules, kept)
	sortLedger(ledger)

	if err := Check(cfg.Rules, ledger); err != nil {
		return nil, err
	}

	stats := Summarize(cfg.Rules, ledger)
	stats.DuplicatesRemoved = len(removed)
	stats.OutOfWindow = outOfWindow
	stats.UnavailableSources = unavailable
	stats.Quality = quality

	slog.Info("classified ledger",
		"rules_version", cfg.Rules.Version,
		"total", stats.Total,
		"included", stats.Included,
		"excluded", stats.Excluded,
		"duplicates_removed", stats.DuplicatesRemoved,
		"true_spend", stats.TrueSpend.StringFixed(2),
		"degraded", stats.Degraded())

	return &Result{Ledger: ledger, Removed: removed, Sources: ledgers, Statistics: stats}, nil
}

func (c Config) schema(label string) (rules.SourceSchema, bool) {
	for _, s := range c.sources() {
		if strings.EqualFold(s.Label, label) {
			return s, true
		}
	}
	return rules.SourceSchema{}, false
}

func unavailableReason(d SourceData, ok bool) string {
	switch {
	case !ok:
		return "not provided"
	case d.Missing:
		return "not found"
	case len(d.Records) == 0:
		return "empty"
	}
	return ""
}

func countQuality(q *models.QualityReport, txns []models.Transaction) {
	for i := range txns {
		if !txns[i].HasDate() {
			q.InvalidDates++
		}
		if !txns[i].AmountValid {
			q.InvalidAmounts++
		}
		if txns[i].Name == "" {
			q.EmptyNames++
		}
	}
}

func sortLedger(ledger []models.Transaction) {
	sort.SliceStable(ledger, func(i, j int) bool {
		a, b := ledger[i].Date, ledger[j].Date
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})
}

// Check verifies the status, reason and category invariants of a classified ledger.
func Check(rs *rules.RuleSet, ledger []models.Transaction) error {
	known := make(map[models.Category]bool)
	for _, c := range rs.Taxonomy() {
		known[c] = true
	}
	for i := range ledger {
		if err := ledger[i].Validate(); err != nil {
			return fmt.Errorf("invalid ledger row %d: %w", i, err)
		}
		if !known[ledger[i].Category] {
			return fmt.Errorf("invalid ledger row %d: category %q is not in rule set %s", i, ledger[i].Category, rs.Version)
		}
	}
	return nil
}

// Verify matches a canonical audit ledger against the source ledgers.
// An absent or empty audit ledger is missing.
func Verify(audit []models.Transaction, sources []SourceLedger) (MatchReport, error) {
	if len(audit) == 0 {
		return MatchReport{}, ErrAuditLedgerMissing
	}
	report := Match(audit, sources)
	slog.Info("verified audit ledger",
		"total", report.Summary.Total,
		"matched", report.Summary.Matched,
		"unmatched", report.Summary.UnmatchedAudit)
	return report, nil
}

// Reclassify re-applies transfer detection and categorization to a previously
// classified ledger. Existing exclusions are kept. An absent or empty ledger
// is missing.
func Reclassify(cfg Config, ledger []models.Transaction) (*Result, error) {
	if cfg.Rules == nil {
		return nil, fmt.Errorf("rule set is required")
	}
	if len(ledger) == 0 {
		return nil, ErrAuditLedgerMissing
	}

	out := Categorize(cfg.Rules, Detect(cfg.Rules, ledger))
	sortLedger(out)
	if err := Check(cfg.Rules, out); err != nil {
		return nil, err
	}

	stats := Summarize(cfg.Rules, out)
	slog.Info("reclassified ledger",
		"rules_version", cfg.Rules.Version,
		"total", stats.Total,
		"included", stats.Included,
		"true_spend", stats.TrueSpend.StringFixed(2))
	return &Result{Ledger: out, Statistics: stats}, nil
}
