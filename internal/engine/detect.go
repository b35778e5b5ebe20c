package engine

import (
	"log/slog"

	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/rocjay1/spend-audit/internal/rules"
)

// Detect excludes included transactions that match any transfer/noise rule.
func Detect(rs *rules.RuleSet, txns []models.Transaction) []models.Transaction {
	out := clone(txns)
	n := 0
	for i := range out {
		t := &out[i]
		if !t.IsIncluded() {
			continue
		}
		rule, ok := rs.MatchTransfer(t)
		if !ok {
			continue
		}
		t.Exclude(models.ReasonTransfer)
		n++
		slog.Debug("transfer detected", "name", t.Name, "source", t.Source, "rule", rule.String())
	}
	slog.Debug("detected transfers", "count", len(out), "transfers", n)
	return out
}
