package services

import (
	"strings"
	"testing"

	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRenderErrorSection(t *testing.T) {
	assert.Empty(t, RenderErrorSection("Errors", nil))

	out := RenderErrorSection("Errors", []string{"Row 3: <bad>"})
	assert.Contains(t, out, "<li>Row 3: &lt;bad&gt;</li>")
}

func TestRenderSummaryBody(t *testing.T) {
	run := &models.AuditRun{
		RunID: "run-1",
		Statistics: models.Statistics{
			SchemaVersion: models.LedgerSchemaVersion,
			RulesVersion:  "v1",
			Total:         10,
			Included:      6,
			TrueSpend:     decimal.RequireFromString("-120.5"),
			Categories: []models.CategorySummary{
				{Category: models.CategoryDining, Count: 2, Total: decimal.RequireFromString("-30"), PercentOfSpend: 24.9},
			},
			UnavailableSources: []models.UnavailableSource{{Label: "Cash App", Reason: "not found"}},
		},
		Match: &models.MatchSummary{Total: 4, Matched: 2},
	}

	out := RenderSummaryBody(run, []string{"Row 2: Not enough fields"})

	assert.Contains(t, out, "$120.50")
	assert.Contains(t, out, "Dining/Restaurants")
	assert.Contains(t, out, "Source Cash App was unavailable (not found)")
	assert.Contains(t, out, "Row 2: Not enough fields")
	assert.Contains(t, out, "2 of 4 matched")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "</html>"))
}

func TestRenderReminderBody(t *testing.T) {
	out := RenderReminderBody(&models.AuditRun{RunID: "run-9"}, []string{"coverage is 40.0%"})

	assert.Contains(t, out, "run-9")
	assert.Contains(t, out, "coverage is 40.0%")
}

func TestSummarySubject(t *testing.T) {
	run := &models.AuditRun{Statistics: models.Statistics{TrueSpend: decimal.RequireFromString("-12.5")}}
	assert.Equal(t, "Spend Audit - $12.50 true spend", SummarySubject(run))
}
