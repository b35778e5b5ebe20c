package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rocjay1/spend-audit/internal/models"
)

// minCoverage is the categorization coverage below which the rule set needs attention.
const minCoverage = 80.0

// HandleNightlyTrigger checks the latest run for data-quality problems and sends a reminder.
func (d *Dependencies) HandleNightlyTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slog.Info("starting nightly trigger processing")

	to := d.recipients()
	if to == nil {
		slog.Warn("USER_EMAIL environment variable is not set; skipping email notifications")
		w.WriteHeader(http.StatusOK)
		return
	}

	run, err := d.Database.GetLatestRun(ctx)
	if err != nil {
		slog.Error("failed to fetch latest run", "error", err)
		http.Error(w, "Failed to fetch latest run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		slog.Info("no audit runs yet")
		w.WriteHeader(http.StatusOK)
		return
	}

	problems := qualityProblems(run)
	if len(problems) == 0 {
		slog.Info("latest run is healthy", "run_id", run.RunID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := d.Email.SendReminderEmail(ctx, to, run, problems); err != nil {
		slog.Error("failed to send data quality reminder", "run_id", run.RunID, "error", err)
	} else {
		slog.Info("data quality reminder sent", "run_id", run.RunID, "problems", len(problems))
	}

	slog.Info("nightly trigger processing complete")
	w.WriteHeader(http.StatusOK)
}

func qualityProblems(run *models.AuditRun) []string {
	st := run.Statistics
	var problems []string
	for _, u := range st.UnavailableSources {
		if u.Required {
			problems = append(problems, fmt.Sprintf("required source %s was unavailable (%s)", u.Label, u.Reason))
		}
	}
	if st.Included > 0 && st.Coverage < minCoverage {
		problems = append(problems, fmt.Sprintf("categorization coverage is %.1f%%, %d transactions uncategorized", st.Coverage, st.Uncategorized))
	}
	q := st.Quality
	if q.InvalidDates > 0 || q.InvalidAmounts > 0 || q.RejectedRows > 0 {
		problems = append(problems, fmt.Sprintf("%d unparsable dates, %d unparsable amounts, %d rejected rows", q.InvalidDates, q.InvalidAmounts, q.RejectedRows))
	}
	if run.Match != nil && run.Match.UnmatchedAudit > 0 {
		problems = append(problems, fmt.Sprintf("%d audit ledger records have no source record", run.Match.UnmatchedAudit))
	}
	return problems
}
