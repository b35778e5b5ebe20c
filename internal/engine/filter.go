package engine

import (
	"log/slog"

	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/rocjay1/spend-audit/internal/rules"
)

// Filter excludes transactions whose lifecycle status is not final, then
// transactions that bring money in. Only the first matching reason is recorded.
func Filter(rs *rules.RuleSet, txns []models.Transaction) []models.Transaction {
	out := clone(txns)
	var pending, moneyIn int
	for i := range out {
		t := &out[i]
		if !t.IsIncluded() {
			continue
		}
		if rs.IsNonFinalized(rs.FamilyOf(t.Source), t.Status) {
			t.Exclude(models.NonFinalized(t.Status))
			pending++
			continue
		}
		if t.Amount.IsPositive() {
			t.Exclude(models.ReasonMoneyIn)
			moneyIn++
		}
	}
	slog.Debug("filtered transactions", "count", len(out), "non_finalized", pending, "money_in", moneyIn)
	return out
}

func clone(txns []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, len(txns))
	copy(out, txns)
	return out
}
