package models

import (
	"github.com/shopspring/decimal"
)

// CategorySummary aggregates included spend for one category.
type CategorySummary struct {
	Category       Category        `json:"category"`
	Count          int             `json:"count"`
	Total          decimal.Decimal `json:"total"`
	Average        decimal.Decimal `json:"average"`
	PercentOfSpend float64         `json:"percentOfSpend"`
}

// ExclusionSummary aggregates excluded transactions sharing a reason text.
type ExclusionSummary struct {
	Reason string          `json:"reason"`
	Kind   ExclusionKind   `json:"kind"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthlySpend is included spend for one calendar month (YYYY-MM).
type MonthlySpend struct {
	Month string          `json:"month"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// MerchantSummary is used to surface uncategorized merchants for rule refinement.
type MerchantSummary struct {
	Name  string          `json:"name"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// UnavailableSource records a configured source that produced no rows.
type UnavailableSource struct {
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Reason   string `json:"reason"`
}

// QualityReport counts rows recovered with sentinel values.
type QualityReport struct {
	InvalidDates   int `json:"invalidDates"`
	InvalidAmounts int `json:"invalidAmounts"`
	EmptyNames     int `json:"emptyNames"`
	RejectedRows   int `json:"rejectedRows"`
}

// Statistics summarizes one classified ledger.
type Statistics struct {
	SchemaVersion string `json:"schemaVersion"`
	RulesVersion  string `json:"rulesVersion"`

	Total           int     `json:"total"`
	Included        int     `json:"included"`
	Excluded        int     `json:"excluded"`
	IncludedPercent float64 `json:"includedPercent"`

	TrueSpend      decimal.Decimal `json:"trueSpend"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	ExcludedAmount decimal.Decimal `json:"excludedAmount"`

	BySource   map[string]int     `json:"bySource"`
	Categories []CategorySummary  `json:"categories"`
	Exclusions []ExclusionSummary `json:"exclusions"`
	Monthly    []MonthlySpend     `json:"monthly"`

	Uncategorized    int               `json:"uncategorized"`
	Coverage         float64           `json:"coverage"`
	TopUncategorized []MerchantSummary `json:"topUncategorized"`

	DuplicatesRemoved  int                 `json:"duplicatesRemoved"`
	OutOfWindow        int                 `json:"outOfWindow"`
	UnavailableSources []UnavailableSource `json:"unavailableSources"`
	Quality            QualityReport       `json:"quality"`
}

// ExclusionCount returns how many excluded transactions carry the given kind.
func (s *Statistics) ExclusionCount(kind ExclusionKind) int {
	n := 0
	for _, e := range s.Exclusions {
		if e.Kind == kind {
			n += e.Count
		}
	}
	return n
}

// CategoryCount returns the included count for a category.
func (s *Statistics) CategoryCount(c Category) int {
	for _, cs := range s.Categories {
		if cs.Category == c {
			return cs.Count
		}
	}
	return 0
}

// Degraded reports whether any configured source was unavailable.
func (s *Statistics) Degraded() bool {
	return len(s.UnavailableSources) > 0
}

// MatchSummary holds the counts of a cross-source verification pass.
type MatchSummary struct {
	Total             int            `json:"total"`
	Matched           int            `json:"matched"`
	MatchedBySource   map[string]int `json:"matchedBySource"`
	UnmatchedAudit    int            `json:"unmatchedAudit"`
	UnmatchedBySource map[string]int `json:"unmatchedBySource"`
}

// MatchedPercent returns the share of audit records found in some source.
func (m *MatchSummary) MatchedPercent() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Matched) / float64(m.Total) * 100
}
