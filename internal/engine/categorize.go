package engine

import (
	"log/slog"

	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/rocjay1/spend-audit/internal/rules"
)

// Categorize labels included transactions with the first matching category rule
// and excluded ones with the Excluded sentinel.
func Categorize(rs *rules.RuleSet, txns []models.Transaction) []models.Transaction {
	out := clone(txns)
	uncategorized := 0
	for i := range out {
		t := &out[i]
		if !t.IsIncluded() {
			t.Category = models.CategoryExcluded
			continue
		}
		t.Category = rs.Categorize(t.Name)
		if t.Category == models.CategoryUncategorized {
			uncategorized++
		}
	}
	slog.Debug("categorized transactions", "count", len(out), "uncategorized", uncategorized)
	return out
}
