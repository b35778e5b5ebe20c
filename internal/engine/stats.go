package engine

import (
	"sort"

	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/rocjay1/spend-audit/internal/rules"
	"github.com/shopspring/decimal"
)

// TopUncategorizedLimit bounds the merchant list used for rule refinement.
const TopUncategorizedLimit = 15

var hundred = decimal.NewFromInt(100)

// Summarize computes statistics over a classified ledger.
// Run-level fields (duplicates, window, unavailable sources, quality) are left zero.
func Summarize(rs *rules.RuleSet, ledger []models.Transaction) models.Statistics {
	stats := models.Statistics{
		SchemaVersion:  models.LedgerSchemaVersion,
		RulesVersion:   rs.Version,
		Total:          len(ledger),
		TrueSpend:      decimal.Zero,
		TotalAmount:    decimal.Zero,
		ExcludedAmount: decimal.Zero,
		BySource:       make(map[string]int),
	}

	categories := make(map[models.Category]*models.CategorySummary)
	exclusions := make(map[string]*models.ExclusionSummary)
	months := make(map[string]*models.MonthlySpend)
	merchants := make(map[string]*models.MerchantSummary)

	for i := range ledger {
		t := &ledger[i]
		stats.BySource[t.Source]++
		stats.TotalAmount = stats.TotalAmount.Add(t.Amount)

		if !t.IsIncluded() {
			stats.Excluded++
			stats.ExcludedAmount = stats.ExcludedAmount.Add(t.Amount)
			text := t.Exclusion.String()
			e, ok := exclusions[text]
			if !ok {
				e = &models.ExclusionSummary{Reason: text, Kind: t.Exclusion.Kind, Amount: decimal.Zero}
				exclusions[text] = e
			}
			e.Count++
			e.Amount = e.Amount.Add(t.Amount)
			continue
		}

		stats.Included++
		stats.TrueSpend = stats.TrueSpend.Add(t.Amount)

		c, ok := categories[t.Category]
		if !ok {
			c = &models.CategorySummary{Category: t.Category, Total: decimal.Zero}
			categories[t.Category] = c
		}
		c.Count++
		c.Total = c.Total.Add(t.Amount)

		if t.HasDate() {
			key := t.Date.Format("2006-01")
			m, ok := months[key]
			if !ok {
				m = &models.MonthlySpend{Month: key, Total: decimal.Zero}
				months[key] = m
			}
			m.Count++
			m.Total = m.Total.Add(t.Amount)
		}

		if t.Category == models.CategoryUncategorized {
			stats.Uncategorized++
			ms, ok := merchants[t.Name]
			if !ok {
				ms = &models.MerchantSummary{Name: t.Name, Total: decimal.Zero}
				merchants[t.Name] = ms
			}
			ms.Count++
			ms.Total = ms.Total.Add(t.Amount)
		}
	}

	if stats.Total > 0 {
		stats.IncludedPercent = float64(stats.Included) / float64(stats.Total) * 100
	}
	if stats.Included > 0 {
		stats.Coverage = float64(stats.Included-stats.Uncategorized) / float64(stats.Included) * 100
	}

	stats.Categories = orderCategories(rs, categories, stats.TrueSpend)
	stats.Exclusions = orderExclusions(exclusions)

	for _, m := range months {
		stats.Monthly = append(stats.Monthly, *m)
	}
	sort.Slice(stats.Monthly, func(i, j int) bool { return stats.Monthly[i].Month < stats.Monthly[j].Month })

	for _, m := range merchants {
		stats.TopUncategorized = append(stats.TopUncategorized, *m)
	}
	sort.Slice(stats.TopUncategorized, func(i, j int) bool {
		a, b := stats.TopUncategorized[i], stats.TopUncategorized[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Name < b.Name
	})
	if len(stats.TopUncategorized) > TopUncategorizedLimit {
		stats.TopUncategorized = stats.TopUncategorized[:TopUncategorizedLimit]
	}
	return stats
}

// orderCategories lists categories in taxonomy order, followed by any label the
// rule set does not declare.
func orderCategories(rs *rules.RuleSet, byCat map[models.Category]*models.CategorySummary, spend decimal.Decimal) []models.CategorySummary {
	out := make([]models.CategorySummary, 0, len(byCat))
	done := make(map[models.Category]bool, len(byCat))
	emit := func(c *models.CategorySummary) {
		c.Average = c.Total.Div(decimal.NewFromInt(int64(c.Count))).Round(2)
		if !spend.IsZero() {
			c.PercentOfSpend = c.Total.Div(spend).Mul(hundred).InexactFloat64()
		}
		out = append(out, *c)
		done[c.Category] = true
	}
	for _, label := range rs.Taxonomy() {
		if c, ok := byCat[label]; ok {
			emit(c)
		}
	}
	var rest []models.Category
	for label := range byCat {
		if !done[label] {
			rest = append(rest, label)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, label := range rest {
		emit(byCat[label])
	}
	return out
}

func orderExclusions(byReason map[string]*models.ExclusionSummary) []models.ExclusionSummary {
	out := make([]models.ExclusionSummary, 0, len(byReason))
	for _, e := range byReason {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// Comparison is the delta between two classifications of the same data,
// for example before and after a rule set correction.
type Comparison struct {
	IncludedBefore int             `json:"includedBefore"`
	IncludedAfter  int             `json:"includedAfter"`
	IncludedDelta  int             `json:"includedDelta"`
	SpendBefore    decimal.Decimal `json:"spendBefore"`
	SpendAfter     decimal.Decimal `json:"spendAfter"`
	SpendDelta     decimal.Decimal `json:"spendDelta"`
	CoverageBefore float64         `json:"coverageBefore"`
	CoverageAfter  float64         `json:"coverageAfter"`
	Categories     []CategoryDelta `json:"categories"`
}

// CategoryDelta is the change of one category between two classifications.
type CategoryDelta struct {
	Category    models.Category `json:"category"`
	CountBefore int             `json:"countBefore"`
	CountAfter  int             `json:"countAfter"`
	TotalBefore decimal.Decimal `json:"totalBefore"`
	TotalAfter  decimal.Decimal `json:"totalAfter"`
}

// Compare reports how included count, spend and categories moved between two runs.
func Compare(before, after models.Statistics) Comparison {
	cmp := Comparison{
		IncludedBefore: before.Included,
		IncludedAfter:  after.Included,
		IncludedDelta:  after.Included - before.Included,
		SpendBefore:    before.TrueSpend,
		SpendAfter:     after.TrueSpend,
		SpendDelta:     after.TrueSpend.Sub(before.TrueSpend),
		CoverageBefore: before.Coverage,
		CoverageAfter:  after.Coverage,
	}

	index := make(map[models.Category]int)
	add := func(cs models.CategorySummary, isAfter bool) {
		i, ok := index[cs.Category]
		if !ok {
			i = len(cmp.Categories)
			index[cs.Category] = i
			cmp.Categories = append(cmp.Categories, CategoryDelta{
				Category:    cs.Category,
				TotalBefore: decimal.Zero,
				TotalAfter:  decimal.Zero,
			})
		}
		d := &cmp.Categories[i]
		if isAfter {
			d.CountAfter, d.TotalAfter = cs.Count, cs.Total
		} else {
			d.CountBefore, d.TotalBefore = cs.Count, cs.Total
		}
	}
	for _, cs := range before.Categories {
		add(cs, false)
	}
	for _, cs := range after.Categories {
		add(cs, true)
	}
	return cmp
}
