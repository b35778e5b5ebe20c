package engine

import (
	"errors"
	"testing"

	"github.com/rocjay1/spend-audit/internal/csvparse"
	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/rocjay1/spend-audit/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paypalRow(date, name, txType, status, net string) csvparse.Record {
	return csvparse.Record{"Date": date, "Name": name, "Type": txType, "Status": status, "Net": net}
}

func sampleSources() []SourceData {
	return []SourceData{
		{Label: "Personal", Records: []csvparse.Record{
			paypalRow("07/01/2025", "Merchant X", "General Authorization", "Completed", "-50.00"),
			paypalRow("07/01/2025", "Merchant X", "PreApproved Payment", "Completed", "-50.00"),
			paypalRow("07/02/2025", "Chime Netflix Sub", "Express Checkout Payment", "Completed", "-9.99"),
			paypalRow("07/03/2025", "Refund Co", "Payment Refund", "Completed", "25.00"),
			paypalRow("07/04/2025", "Pending Shop", "Express Checkout Payment", "Pending", "-4.00"),
			paypalRow("06/15/2025", "Old Lunch", "Express Checkout Payment", "Completed", "-8.00"),
		}},
		{Label: "Business/Main", Records: []csvparse.Record{
			paypalRow("07/05/2025", "Apple Cash Inst Xfer", "General Payment", "Completed", "-200.00"),
			paypalRow("07/06/2025", "Mystery Vendor", "General Payment", "Completed", "-3.00"),
		}},
		{Label: "Cash App", Records: []csvparse.Record{
			{"Date": "2025-07-07 10:00:00 EDT", "Net Amount": "-$20.00", "Notes": "rent share", "Transaction Type": "P2P", "Status": "COMPLETE"},
			{"Date": "2025-07-08 12:30:00 EDT", "Net Amount": "-$6.50", "Notes": "DoorDash", "Transaction Type": "Cash Card Debit", "Status": "COMPLETE"},
		}},
	}
}

func TestRun(t *testing.T) {
	cfg := Config{Rules: defaultRules(t)}

	res, err := Run(cfg, sampleSources())
	require.NoError(t, err)

	stats := res.Statistics
	assert.Equal(t, 9, stats.Total)
	assert.Equal(t, 1, stats.DuplicatesRemoved)
	require.Len(t, res.Removed, 1)
	assert.Equal(t, "General Authorization", res.Removed[0].Type)

	assert.Equal(t, 5, stats.Included)
	assert.Equal(t, "-77.49", stats.TrueSpend.StringFixed(2))
	assert.True(t, stats.TrueSpend.Equal(sumIncluded(res.Ledger)))
	assert.Equal(t, 1, stats.ExclusionCount(models.ExclusionNonFinalized))
	assert.Equal(t, 1, stats.ExclusionCount(models.ExclusionMoneyIn))
	assert.Equal(t, 2, stats.ExclusionCount(models.ExclusionTransfer))
	assert.False(t, stats.Degraded())

	for i := range res.Ledger {
		assert.NoError(t, res.Ledger[i].Validate())
		if i > 0 {
			assert.False(t, res.Ledger[i].Date.After(res.Ledger[i-1].Date), "ledger must be sorted newest first")
		}
	}
	assert.Len(t, res.Sources, 3)
}

func TestRun_Window(t *testing.T) {
	w, err := ParseWindow("2025-06-30", "")
	require.NoError(t, err)
	data := sampleSources()
	data[0].Records = append(data[0].Records, paypalRow("bad", "No Date", "General Payment", "Completed", "-1.00"))

	res, err := Run(Config{Rules: defaultRules(t), Window: w}, data)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Statistics.OutOfWindow)
	assert.Equal(t, 1, res.Statistics.Quality.InvalidDates)
	for _, tx := range res.Ledger {
		assert.True(t, tx.Date.After(w.After))
	}
}

func TestRun_DegradedSource(t *testing.T) {
	data := sampleSources()
	data[1] = SourceData{Label: "Business/Main", Missing: true, Rejected: 2}
	data = data[:2]

	res, err := Run(Config{Rules: defaultRules(t)}, data)
	require.NoError(t, err)

	stats := res.Statistics
	assert.True(t, stats.Degraded())
	require.Len(t, stats.UnavailableSources, 2)
	assert.Equal(t, models.UnavailableSource{Label: "Business/Main", Required: true, Reason: "not found"}, stats.UnavailableSources[0])
	assert.Equal(t, models.UnavailableSource{Label: "Cash App", Required: false, Reason: "not provided"}, stats.UnavailableSources[1])
	assert.Equal(t, 2, stats.Quality.RejectedRows)
}

func TestRun_NoSources(t *testing.T) {
	_, err := Run(Config{Rules: defaultRules(t)}, []SourceData{{Label: "Personal"}})
	assert.True(t, errors.Is(err, ErrNoSources))
}

func TestRun_UnknownSource(t *testing.T) {
	_, err := Run(Config{Rules: defaultRules(t)}, []SourceData{{Label: "Venmo"}})
	assert.Error(t, err)
}

func TestRun_RestrictedSources(t *testing.T) {
	rs := defaultRules(t)
	personal, _ := rs.Source("Personal")

	res, err := Run(Config{Rules: rs, Sources: []rules.SourceSchema{personal}}, sampleSources()[:1])
	require.NoError(t, err)
	assert.Empty(t, res.Statistics.UnavailableSources)
}

func TestVerify(t *testing.T) {
	_, err := Verify(nil, nil)
	assert.True(t, errors.Is(err, ErrAuditLedgerMissing))
	_, err = Verify([]models.Transaction{}, nil)
	assert.True(t, errors.Is(err, ErrAuditLedgerMissing), "an empty audit ledger is missing")

	res, err := Run(Config{Rules: defaultRules(t)}, sampleSources())
	require.NoError(t, err)

	report, err := Verify(res.Ledger, res.Sources)
	require.NoError(t, err)
	assert.Equal(t, report.Summary.Total, report.Summary.Matched)
}

func TestReclassify(t *testing.T) {
	rs := defaultRules(t)

	_, err := Reclassify(Config{Rules: rs}, nil)
	assert.True(t, errors.Is(err, ErrAuditLedgerMissing))
	_, err = Reclassify(Config{Rules: rs}, []models.Transaction{})
	assert.True(t, errors.Is(err, ErrAuditLedgerMissing), "an empty ledger is missing")

	stale := txn("2025-07-01", "-9.99", "Chime Netflix Sub", "")
	stale.Category = models.CategorySubscriptions
	transfer := txn("2025-07-02", "-40.00", "George Kimson", "")
	transfer.Category = models.CategoryUncategorized
	refund := txn("2025-07-03", "5.00", "Refund", "")
	refund.Exclude(models.ReasonMoneyIn)

	res, err := Reclassify(Config{Rules: rs}, []models.Transaction{stale, transfer, refund})
	require.NoError(t, err)

	byName := make(map[string]models.Transaction)
	for _, tx := range res.Ledger {
		byName[tx.Name] = tx
	}
	assert.Equal(t, models.CategoryFinancial, byName["Chime Netflix Sub"].Category)
	assert.Equal(t, models.ReasonTransfer, byName["George Kimson"].Exclusion)
	assert.Equal(t, models.ReasonMoneyIn, byName["Refund"].Exclusion)
	assert.Equal(t, 1, res.Statistics.Included)
}

func TestCheck(t *testing.T) {
	rs := defaultRules(t)

	bad := txn("2025-07-01", "-1.00", "A", "")
	bad.Category = "Made Up"
	assert.Error(t, Check(rs, []models.Transaction{bad}))

	broken := txn("2025-07-01", "-1.00", "A", "")
	broken.AnalysisStatus = models.StatusExcluded
	broken.Category = models.CategoryExcluded
	assert.Error(t, Check(rs, []models.Transaction{broken}))
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("2025-06-30", "2025-12-31")
	require.NoError(t, err)
	assert.False(t, w.Contains(day("2025-06-30")))
	assert.True(t, w.Contains(day("2025-07-01")))
	assert.False(t, w.Contains(day("2025-12-31")))

	_, err = ParseWindow("2025-12-31", "2025-06-30")
	assert.Error(t, err)
	_, err = ParseWindow("yesterday", "")
	assert.Error(t, err)

	open := Window{}
	assert.True(t, open.Contains(models.Transaction{}.Date))
}
