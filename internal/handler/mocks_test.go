package handler

import (
	"context"

	"github.com/rocjay1/spend-audit/internal/models"
)

// MockDatabaseClient is a mock implementation of DatabaseClient
type MockDatabaseClient struct {
	SaveLedgerFunc   func(ctx context.Context, runID string, ledger []models.Transaction) error
	SaveRunFunc      func(ctx context.Context, run models.AuditRun) error
	GetRunFunc       func(ctx context.Context, runID string) (*models.AuditRun, error)
	GetLatestRunFunc func(ctx context.Context) (*models.AuditRun, error)
}

func (m *MockDatabaseClient) SaveLedger(ctx context.Context, runID string, ledger []models.Transaction) error {
	if m.SaveLedgerFunc != nil {
		return m.SaveLedgerFunc(ctx, runID, ledger)
	}
	return nil
}

func (m *MockDatabaseClient) SaveRun(ctx context.Context, run models.AuditRun) error {
	if m.SaveRunFunc != nil {
		return m.SaveRunFunc(ctx, run)
	}
	return nil
}

func (m *MockDatabaseClient) GetRun(ctx context.Context, runID string) (*models.AuditRun, error) {
	if m.GetRunFunc != nil {
		return m.GetRunFunc(ctx, runID)
	}
	return nil, nil
}

func (m *MockDatabaseClient) GetLatestRun(ctx context.Context) (*models.AuditRun, error) {
	if m.GetLatestRunFunc != nil {
		return m.GetLatestRunFunc(ctx)
	}
	return nil, nil
}

// MockBlobClient is a mock implementation of BlobClient
type MockBlobClient struct {
	UploadSourceFunc   func(ctx context.Context, blobName string, content []byte, label string) error
	DownloadSourceFunc func(ctx context.Context, blobName string) ([]byte, bool, error)
	UploadLedgerFunc   func(ctx context.Context, blobName, text, rulesVersion string) error
	DownloadLedgerFunc func(ctx context.Context, blobName string) (string, bool, error)
}

func (m *MockBlobClient) UploadSource(ctx context.Context, blobName string, content []byte, label string) error {
	if m.UploadSourceFunc != nil {
		return m.UploadSourceFunc(ctx, blobName, content, label)
	}
	return nil
}

func (m *MockBlobClient) DownloadSource(ctx context.Context, blobName string) ([]byte, bool, error) {
	if m.DownloadSourceFunc != nil {
		return m.DownloadSourceFunc(ctx, blobName)
	}
	return nil, false, nil
}

func (m *MockBlobClient) UploadLedger(ctx context.Context, blobName, text, rulesVersion string) error {
	if m.UploadLedgerFunc != nil {
		return m.UploadLedgerFunc(ctx, blobName, text, rulesVersion)
	}
	return nil
}

func (m *MockBlobClient) DownloadLedger(ctx context.Context, blobName string) (string, bool, error) {
	if m.DownloadLedgerFunc != nil {
		return m.DownloadLedgerFunc(ctx, blobName)
	}
	return "", false, nil
}

// MockQueueClient is a mock implementation of QueueClient
type MockQueueClient struct {
	EnqueueAuditJobFunc func(ctx context.Context, job models.AuditJob) error
}

func (m *MockQueueClient) EnqueueAuditJob(ctx context.Context, job models.AuditJob) error {
	if m.EnqueueAuditJobFunc != nil {
		return m.EnqueueAuditJobFunc(ctx, job)
	}
	return nil
}

// MockEmailClient is a mock implementation of EmailClient
type MockEmailClient struct {
	SendSummaryEmailFunc  func(ctx context.Context, recipients []string, run *models.AuditRun, warnings []string) error
	SendErrorEmailFunc    func(ctx context.Context, recipients []string, errors []string) error
	SendReminderEmailFunc func(ctx context.Context, recipients []string, run *models.AuditRun, problems []string) error
}

func (m *MockEmailClient) SendSummaryEmail(ctx context.Context, recipients []string, run *models.AuditRun, warnings []string) error {
	if m.SendSummaryEmailFunc != nil {
		return m.SendSummaryEmailFunc(ctx, recipients, run, warnings)
	}
	return nil
}

func (m *MockEmailClient) SendErrorEmail(ctx context.Context, recipients []string, errors []string) error {
	if m.SendErrorEmailFunc != nil {
		return m.SendErrorEmailFunc(ctx, recipients, errors)
	}
	return nil
}

func (m *MockEmailClient) SendReminderEmail(ctx context.Context, recipients []string, run *models.AuditRun, problems []string) error {
	if m.SendReminderEmailFunc != nil {
		return m.SendReminderEmailFunc(ctx, recipients, run, problems)
	}
	return nil
}
