package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rocjay1/spend-audit/internal/csvparse"
	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personalCSV = `Date,Name,Type,Status,Net
07/02/2025,Chime Netflix Sub,Express Checkout Payment,Completed,-9.99
07/03/2025,Refund Co,Payment Refund,Completed,25.00
07/04/2025,Short Row
`

func queueRequest(t *testing.T, job models.AuditJob) *http.Request {
	t.Helper()
	item, err := json.Marshal(job)
	require.NoError(t, err)
	body, err := json.Marshal(invokeRequest{Data: map[string]any{"queueItem": string(item)}})
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/ProcessQueue", bytes.NewReader(body))
}

func sourceBlobs(blobs map[string]string) *MockBlobClient {
	return &MockBlobClient{
		DownloadSourceFunc: func(ctx context.Context, blobName string) ([]byte, bool, error) {
			content, ok := blobs[blobName]
			return []byte(content), ok, nil
		},
	}
}

func TestProcessQueue_Success(t *testing.T) {
	t.Setenv("USER_EMAIL", "test@example.com")

	mockBlob := sourceBlobs(map[string]string{"uploads/personal/a.csv": personalCSV})
	mockDB := &MockDatabaseClient{}
	mockEmail := &MockEmailClient{}
	deps := &Dependencies{Blob: mockBlob, Database: mockDB, Email: mockEmail, Config: testConfig(t)}

	var ledgerText, ledgerBlob string
	mockBlob.UploadLedgerFunc = func(ctx context.Context, blobName, text, rulesVersion string) error {
		ledgerBlob, ledgerText = blobName, text
		assert.Equal(t, deps.Config.Rules.Version, rulesVersion)
		return nil
	}
	var savedRows int
	mockDB.SaveLedgerFunc = func(ctx context.Context, runID string, ledger []models.Transaction) error {
		assert.Equal(t, "run-1", runID)
		savedRows = len(ledger)
		return nil
	}
	var saved models.AuditRun
	mockDB.SaveRunFunc = func(ctx context.Context, run models.AuditRun) error {
		saved = run
		return nil
	}
	var mailed *models.AuditRun
	var mailedWarnings []string
	mockEmail.SendSummaryEmailFunc = func(ctx context.Context, recipients []string, run *models.AuditRun, warnings []string) error {
		assert.Equal(t, []string{"test@example.com"}, recipients)
		mailed, mailedWarnings = run, warnings
		return nil
	}

	job := models.AuditJob{RunID: "run-1", Sources: []models.SourceRef{
		{Label: "Personal", BlobName: "uploads/personal/a.csv"},
		{Label: "Business/Main", BlobName: "uploads/business-main/missing.csv"},
	}}
	w := httptest.NewRecorder()

	deps.ProcessQueue(w, queueRequest(t, job))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ledgers/run-1.csv", ledgerBlob)
	assert.Equal(t, 2, savedRows)

	ledger, err := csvparse.ReadLedger(ledgerText)
	require.NoError(t, err)
	assert.Len(t, ledger, 2)

	assert.Equal(t, "run-1", saved.RunID)
	assert.Equal(t, 1, saved.Statistics.Included)
	assert.Equal(t, "-9.99", saved.Statistics.TrueSpend.StringFixed(2))
	assert.Equal(t, 1, saved.Statistics.Quality.RejectedRows)
	assert.True(t, saved.Statistics.Degraded())
	assert.Nil(t, saved.Match)

	require.NotNil(t, mailed)
	assert.Equal(t, saved.RunID, mailed.RunID)
	require.Len(t, mailedWarnings, 1)
	assert.True(t, strings.HasPrefix(mailedWarnings[0], "Personal: Row"))
}

func TestProcessQueue_WithAuditLedger(t *testing.T) {
	var audit bytes.Buffer
	require.NoError(t, csvparse.WriteLedger(&audit, []models.Transaction{
		{Date: time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("-9.99"), AmountValid: true, Name: "Chime Netflix Sub", Source: "Personal"},
		{Date: time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("-1.00"), AmountValid: true, Name: "Ghost", Source: "Personal"},
	}))

	mockBlob := sourceBlobs(map[string]string{"a.csv": personalCSV})
	mockBlob.DownloadLedgerFunc = func(ctx context.Context, blobName string) (string, bool, error) {
		assert.Equal(t, "canonical.csv", blobName)
		return audit.String(), true, nil
	}
	mockDB := &MockDatabaseClient{}
	deps := &Dependencies{Blob: mockBlob, Database: mockDB, Config: testConfig(t)}

	var saved models.AuditRun
	mockDB.SaveRunFunc = func(ctx context.Context, run models.AuditRun) error {
		saved = run
		return nil
	}

	job := models.AuditJob{RunID: "run-2", AuditBlob: "canonical.csv", Sources: []models.SourceRef{{Label: "Personal", BlobName: "a.csv"}}}
	w := httptest.NewRecorder()

	deps.ProcessQueue(w, queueRequest(t, job))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, saved.Match)
	assert.Equal(t, 2, saved.Match.Total)
	assert.Equal(t, 1, saved.Match.Matched)
	assert.Equal(t, 1, saved.Match.UnmatchedAudit)
	assert.Equal(t, 1, saved.Match.MatchedBySource["Personal"])
}

func TestProcessQueue_AuditLedgerMissing(t *testing.T) {
	t.Setenv("USER_EMAIL", "test@example.com")

	mockBlob := sourceBlobs(map[string]string{"a.csv": personalCSV})
	mockEmail := &MockEmailClient{}
	mockDB := &MockDatabaseClient{
		SaveRunFunc: func(ctx context.Context, run models.AuditRun) error {
			t.Error("run must not be saved")
			return nil
		},
	}
	deps := &Dependencies{Blob: mockBlob, Database: mockDB, Email: mockEmail, Config: testConfig(t)}

	var errs []string
	mockEmail.SendErrorEmailFunc = func(ctx context.Context, recipients []string, errors []string) error {
		errs = errors
		return nil
	}

	job := models.AuditJob{RunID: "run-3", AuditBlob: "gone.csv", Sources: []models.SourceRef{{Label: "Personal", BlobName: "a.csv"}}}
	w := httptest.NewRecorder()

	deps.ProcessQueue(w, queueRequest(t, job))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "audit ledger")
}

func TestProcessQueue_EmptyAuditLedger(t *testing.T) {
	t.Setenv("USER_EMAIL", "test@example.com")

	var header bytes.Buffer
	require.NoError(t, csvparse.WriteLedger(&header, nil))

	mockBlob := sourceBlobs(map[string]string{"a.csv": personalCSV})
	mockBlob.DownloadLedgerFunc = func(ctx context.Context, blobName string) (string, bool, error) {
		return header.String(), true, nil
	}
	mockEmail := &MockEmailClient{}
	mockDB := &MockDatabaseClient{
		SaveRunFunc: func(ctx context.Context, run models.AuditRun) error {
			t.Error("run must not be saved")
			return nil
		},
	}
	deps := &Dependencies{Blob: mockBlob, Database: mockDB, Email: mockEmail, Config: testConfig(t)}

	var errs []string
	mockEmail.SendErrorEmailFunc = func(ctx context.Context, recipients []string, messages []string) error {
		errs = messages
		return nil
	}

	job := models.AuditJob{RunID: "run-6", AuditBlob: "canonical.csv", Sources: []models.SourceRef{{Label: "Personal", BlobName: "a.csv"}}}
	w := httptest.NewRecorder()

	deps.ProcessQueue(w, queueRequest(t, job))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "audit ledger is missing")
}

func TestProcessQueue_NoSources(t *testing.T) {
	t.Setenv("USER_EMAIL", "test@example.com")

	mockEmail := &MockEmailClient{}
	deps := &Dependencies{Blob: sourceBlobs(nil), Database: &MockDatabaseClient{}, Email: mockEmail, Config: testConfig(t)}

	sent := false
	mockEmail.SendErrorEmailFunc = func(ctx context.Context, recipients []string, errors []string) error {
		sent = true
		return nil
	}

	job := models.AuditJob{RunID: "run-4", Sources: []models.SourceRef{{Label: "Personal", BlobName: "missing.csv"}}}
	w := httptest.NewRecorder()

	deps.ProcessQueue(w, queueRequest(t, job))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, sent)
}

func TestProcessQueue_DownloadError(t *testing.T) {
	mockBlob := &MockBlobClient{
		DownloadSourceFunc: func(ctx context.Context, blobName string) ([]byte, bool, error) {
			return nil, false, errors.New("download failed")
		},
	}
	deps := &Dependencies{Blob: mockBlob, Config: testConfig(t)}

	job := models.AuditJob{RunID: "run-5", Sources: []models.SourceRef{{Label: "Personal", BlobName: "a.csv"}}}
	w := httptest.NewRecorder()

	deps.ProcessQueue(w, queueRequest(t, job))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to download CSV")
}

func TestProcessQueue_ParallelDownloads(t *testing.T) {
	var mu sync.Mutex
	fetched := map[string]int{}
	mockBlob := &MockBlobClient{
		DownloadSourceFunc: func(ctx context.Context, blobName string) ([]byte, bool, error) {
			mu.Lock()
			fetched[blobName]++
			mu.Unlock()
			return []byte(personalCSV), true, nil
		},
	}
	deps := &Dependencies{Blob: mockBlob, Database: &MockDatabaseClient{}, Config: testConfig(t)}

	data, warnings, err := deps.downloadSources(context.Background(), []models.SourceRef{
		{Label: "Personal", BlobName: "a.csv"},
		{Label: "Business/Main", BlobName: "b.csv"},
	})
	require.NoError(t, err)
	assert.Len(t, data, 2)
	assert.Equal(t, "Personal", data[0].Label)
	assert.Equal(t, "Business/Main", data[1].Label)
	assert.Len(t, data[1].Records, 2)
	assert.Len(t, warnings, 2)
	assert.Equal(t, map[string]int{"a.csv": 1, "b.csv": 1}, fetched)
}

func TestProcessQueue_BadMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing queue item", `{"Data":{}}`},
		{"queue item not a string", `{"Data":{"queueItem":42}}`},
		{"invalid item", `{"Data":{"queueItem":"{"}}`},
		{"missing run id", `{"Data":{"queueitem":"{\"sources\":[{\"label\":\"Personal\",\"blob_name\":\"a\"}]}"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := &Dependencies{Config: testConfig(t)}
			req := httptest.NewRequest(http.MethodPost, "/ProcessQueue", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			deps.ProcessQueue(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
