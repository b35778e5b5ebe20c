package engine

import (
	"testing"
	"time"

	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/rocjay1/spend-audit/internal/rules"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func defaultRules(t *testing.T) *rules.RuleSet {
	t.Helper()
	rs, err := rules.Default()
	require.NoError(t, err)
	return rs
}

func day(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

// txn builds an included, completed Personal transaction.
func txn(date, amount, name, txType string) models.Transaction {
	return models.Transaction{
		Date:           day(date),
		Amount:         decimal.RequireFromString(amount),
		AmountValid:    true,
		Name:           name,
		Type:           txType,
		Status:         "Completed",
		Source:         "Personal",
		AnalysisStatus: models.StatusIncluded,
	}
}

func sumIncluded(txns []models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txns {
		if t.IsIncluded() {
			total = total.Add(t.Amount)
		}
	}
	return total
}
