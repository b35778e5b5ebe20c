package engine

import (
	"log/slog"
	"sort"

	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/rocjay1/spend-audit/internal/rules"
)

type groupKey struct {
	date   int64
	amount string
	name   string
}

func keyOf(t *models.Transaction) groupKey {
	return groupKey{date: t.Date.Unix(), amount: t.Amount.String(), name: t.Name}
}

// Dedupe removes exact duplicates on (date, amount, name, type), then removes
// authorization records from every (date, amount, name) group that also holds a
// settlement record. Removed records are tagged as duplicates and returned
// separately; kept records come back sorted by date, amount and name.
func Dedupe(rs *rules.RuleSet, txns []models.Transaction) (kept, removed []models.Transaction) {
	sorted := clone(txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := &sorted[i], &sorted[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c < 0
		}
		return a.Name < b.Name
	})

	type exactKey struct {
		groupKey
		txType string
	}
	seen := make(map[exactKey]bool, len(sorted))
	unique := make([]models.Transaction, 0, len(sorted))
	for _, t := range sorted {
		k := exactKey{keyOf(&t), t.Type}
		if seen[k] {
			removed = append(removed, t)
			continue
		}
		seen[k] = true
		unique = append(unique, t)
	}

	size := make(map[groupKey]int)
	settled := make(map[groupKey]bool)
	for i := range unique {
		k := keyOf(&unique[i])
		size[k]++
		if rs.IsSettlement(unique[i].Type) {
			settled[k] = true
		}
	}

	kept = make([]models.Transaction, 0, len(unique))
	for _, t := range unique {
		k := keyOf(&t)
		if size[k] > 1 && settled[k] && rs.IsAuthorization(t.Type) {
			removed = append(removed, t)
			continue
		}
		kept = append(kept, t)
	}

	for i := range removed {
		removed[i].Exclude(models.ReasonDuplicate)
	}
	slog.Debug("deduplicated transactions", "count", len(txns), "kept", len(kept), "removed", len(removed))
	return kept, removed
}
