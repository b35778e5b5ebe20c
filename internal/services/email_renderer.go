package services

import (
	"fmt"
	"html"
	"strings"

	"github.com/rocjay1/spend-audit/internal/models"
)

const pageStart = `
		<html>
		<body style="font-family: 'Segoe UI', sans-serif; color: #333; line-height: 1.6; background-color: #f4f4f4; margin: 0; padding: 20px;">
			<div style="max-width: 600px; margin: 0 auto; background: white; border-radius: 8px; overflow: hidden; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">`

const pageEnd = `
			</div>
		</body>
		</html>`

const (
	subjectFailed   = "Spend Audit - Run Failed"
	subjectReminder = "Spend Audit - Data Quality Reminder"
)

// SummarySubject names the run's true spend as a positive amount and flags degraded runs.
func SummarySubject(run *models.AuditRun) string {
	subject := fmt.Sprintf("Spend Audit - $%s true spend", run.Statistics.TrueSpend.Neg().StringFixed(2))
	if run.Statistics.Degraded() {
		subject += " (degraded)"
	}
	return subject
}

func banner(color, title string) string {
	return fmt.Sprintf(`
				<div style="background-color: %s; padding: 20px; text-align: center; color: white;">
					<h2 style="margin: 0;">%s</h2>
				</div>`, color, html.EscapeString(title))
}

// RenderErrorSection renders a list of messages as a warning box.
func RenderErrorSection(title string, errors []string) string {
	if len(errors) == 0 {
		return ""
	}

	var items strings.Builder
	for _, e := range errors {
		fmt.Fprintf(&items, "<li>%s</li>", html.EscapeString(e))
	}

	return fmt.Sprintf(`
		<div style="background-color: #fff4f4; border-left: 5px solid #d13438; padding: 15px; margin-bottom: 20px;">
			<h3 style="color: #d13438; margin-top: 0; font-size: 18px;">%s</h3>
			<ul style="margin-bottom: 0; padding-left: 20px;">
				%s
			</ul>
		</div>
	`, html.EscapeString(title), items.String())
}

// RenderErrorBody renders the full HTML body for a failed run.
func RenderErrorBody(errors []string) string {
	return pageStart + banner("#d13438", "Audit Failed") + `
				<div style="padding: 20px;">
					<p>The audit run could not be completed:</p>
					` + RenderErrorSection("Errors", errors) + `
				</div>` + pageEnd
}

// RenderCategoryTable renders included spend per category.
func RenderCategoryTable(categories []models.CategorySummary) string {
	var rows strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&rows, `
					<tr>
						<td style="padding: 6px; border-bottom: 1px solid #eee;">%s</td>
						<td style="padding: 6px; border-bottom: 1px solid #eee; text-align: right;">%d</td>
						<td style="padding: 6px; border-bottom: 1px solid #eee; text-align: right;">$%s</td>
						<td style="padding: 6px; border-bottom: 1px solid #eee; text-align: right;">%.1f%%</td>
					</tr>`,
			html.EscapeString(string(c.Category)), c.Count, c.Total.Neg().StringFixed(2), c.PercentOfSpend)
	}
	return `
				<table style="width: 100%; border-collapse: collapse;">
					<tr><th style="text-align: left;">Category</th><th>Count</th><th>Spend</th><th>Share</th></tr>` +
		rows.String() + `
				</table>`
}

// RenderSummaryBody renders the full HTML body for a completed run.
func RenderSummaryBody(run *models.AuditRun, warnings []string) string {
	st := run.Statistics
	var b strings.Builder
	b.WriteString(pageStart)
	b.WriteString(banner("#0078d4", "Spend Audit Complete"))
	b.WriteString(`
				<div style="padding: 20px;">`)

	var notes []string
	for _, u := range st.UnavailableSources {
		notes = append(notes, fmt.Sprintf("Source %s was unavailable (%s)", u.Label, u.Reason))
	}
	notes = append(notes, warnings...)
	b.WriteString(RenderErrorSection("Warning: this run is incomplete", notes))

	fmt.Fprintf(&b, `
					<p><strong>True spend:</strong> $%s across %d of %d transactions (%.1f%%).</p>
					<p><strong>Excluded:</strong> %d transactions, %d duplicates removed.</p>
					<p><strong>Categorized:</strong> %.1f%% (%d uncategorized).</p>`,
		st.TrueSpend.Neg().StringFixed(2), st.Included, st.Total, st.IncludedPercent,
		st.Excluded, st.DuplicatesRemoved, st.Coverage, st.Uncategorized)

	if run.Match != nil {
		fmt.Fprintf(&b, `
					<p><strong>Verified against audit ledger:</strong> %d of %d matched (%.1f%%).</p>`,
			run.Match.Matched, run.Match.Total, run.Match.MatchedPercent())
	}

	b.WriteString(RenderCategoryTable(st.Categories))
	fmt.Fprintf(&b, `
					<p style="color: #888; font-size: 12px;">Run %s, rules %s, ledger schema %s.</p>
				</div>`,
		html.EscapeString(run.RunID), html.EscapeString(st.RulesVersion), html.EscapeString(st.SchemaVersion))
	b.WriteString(pageEnd)
	return b.String()
}

// RenderReminderBody renders the data-quality reminder for the latest run.
func RenderReminderBody(run *models.AuditRun, problems []string) string {
	return pageStart + banner("#ca5010", "Data Quality Reminder") + `
				<div style="padding: 20px;">
					<p>The latest audit run (` + html.EscapeString(run.RunID) + `) needs attention:</p>
					` + RenderErrorSection("Problems", problems) + `
					<p>Upload the missing exports or extend the rule set, then start a new audit.</p>
				</div>` + pageEnd
}
