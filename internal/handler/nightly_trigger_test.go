package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleNightlyTrigger_SendsReminder(t *testing.T) {
	t.Setenv("USER_EMAIL", "test@example.com")

	run := storedRun()
	run.Statistics.Uncategorized = 2
	run.Statistics.Coverage = 0
	run.Statistics.UnavailableSources = []models.UnavailableSource{{Label: "Business/Main", Required: true, Reason: "not found"}}

	mockDB := &MockDatabaseClient{
		GetLatestRunFunc: func(ctx context.Context) (*models.AuditRun, error) {
			return run, nil
		},
	}
	mockEmail := &MockEmailClient{}
	deps := &Dependencies{Database: mockDB, Email: mockEmail}

	var sent []string
	mockEmail.SendReminderEmailFunc = func(ctx context.Context, recipients []string, r *models.AuditRun, problems []string) error {
		assert.Equal(t, []string{"test@example.com"}, recipients)
		assert.Equal(t, "run-1", r.RunID)
		sent = problems
		return nil
	}

	w := httptest.NewRecorder()
	deps.HandleNightlyTrigger(w, httptest.NewRequest(http.MethodPost, "/NightlyTrigger", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0], "Business/Main")
	assert.Contains(t, sent[1], "coverage")
}

func TestHandleNightlyTrigger_HealthyRun(t *testing.T) {
	t.Setenv("USER_EMAIL", "test@example.com")

	run := storedRun()
	run.Statistics.Coverage = 100
	mockDB := &MockDatabaseClient{
		GetLatestRunFunc: func(ctx context.Context) (*models.AuditRun, error) {
			return run, nil
		},
	}
	mockEmail := &MockEmailClient{
		SendReminderEmailFunc: func(ctx context.Context, recipients []string, r *models.AuditRun, problems []string) error {
			t.Error("no reminder expected for a healthy run")
			return nil
		},
	}
	deps := &Dependencies{Database: mockDB, Email: mockEmail}

	w := httptest.NewRecorder()
	deps.HandleNightlyTrigger(w, httptest.NewRequest(http.MethodPost, "/NightlyTrigger", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleNightlyTrigger_NoUserEmail(t *testing.T) {
	t.Setenv("USER_EMAIL", "")

	mockDB := &MockDatabaseClient{
		GetLatestRunFunc: func(ctx context.Context) (*models.AuditRun, error) {
			t.Error("database should not be queried without recipients")
			return nil, nil
		},
	}
	deps := &Dependencies{Database: mockDB, Email: &MockEmailClient{}}

	w := httptest.NewRecorder()
	deps.HandleNightlyTrigger(w, httptest.NewRequest(http.MethodPost, "/NightlyTrigger", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleNightlyTrigger_NoRuns(t *testing.T) {
	t.Setenv("USER_EMAIL", "test@example.com")

	deps := &Dependencies{Database: &MockDatabaseClient{}, Email: &MockEmailClient{}}

	w := httptest.NewRecorder()
	deps.HandleNightlyTrigger(w, httptest.NewRequest(http.MethodPost, "/NightlyTrigger", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleNightlyTrigger_DatabaseError(t *testing.T) {
	t.Setenv("USER_EMAIL", "test@example.com")

	mockDB := &MockDatabaseClient{
		GetLatestRunFunc: func(ctx context.Context) (*models.AuditRun, error) {
			return nil, errors.New("db error")
		},
	}
	deps := &Dependencies{Database: mockDB, Email: &MockEmailClient{}}

	w := httptest.NewRecorder()
	deps.HandleNightlyTrigger(w, httptest.NewRequest(http.MethodPost, "/NightlyTrigger", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestQualityProblems(t *testing.T) {
	run := storedRun()
	run.Statistics.Coverage = 95
	run.Statistics.UnavailableSources = []models.UnavailableSource{{Label: "Cash App", Reason: "not provided"}}
	assert.Empty(t, qualityProblems(run), "optional sources and good coverage are healthy")

	run.Statistics.Quality.InvalidAmounts = 1
	run.Match = &models.MatchSummary{Total: 3, Matched: 1, UnmatchedAudit: 2}
	problems := qualityProblems(run)
	require.Len(t, problems, 2)
	assert.Contains(t, problems[0], "1 unparsable amounts")
	assert.Contains(t, problems[1], "2 audit ledger records")
}
