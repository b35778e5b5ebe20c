package engine

import (
	"testing"

	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	rs := defaultRules(t)

	apple := txn("2025-07-01", "-100.00", "Apple Cash Sent Money", "General Payment")
	rent := txn("2025-07-01", "-1500.00", "REB NYC LLC", "Bill Payment")
	p2p := txn("2025-07-01", "-20.00", "Friend", "P2P")
	p2p.Source = "Cash App"
	deposit := txn("2025-07-01", "-5.00", "", "Deposits")
	deposit.Source = "Cash App"
	lunch := txn("2025-07-01", "-12.00", "Lunch", "Express Checkout Payment")
	pending := txn("2025-07-01", "-30.00", "Xoom transfer", "")
	pending.Exclude(models.NonFinalized("Pending"))

	out := Detect(rs, []models.Transaction{apple, rent, p2p, deposit, lunch, pending})

	for i := 0; i < 4; i++ {
		assert.Equal(t, models.ReasonTransfer, out[i].Exclusion, out[i].Name)
		assert.Equal(t, models.CategoryExcluded, out[i].Category)
	}
	assert.True(t, out[4].IsIncluded())
	assert.Equal(t, models.NonFinalized("Pending"), out[5].Exclusion)
}
