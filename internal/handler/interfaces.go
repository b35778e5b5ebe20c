package handler

import (
	"context"

	"github.com/rocjay1/spend-audit/internal/models"
)

// DatabaseClient defines the table storage operations used by handlers.
type DatabaseClient interface {
	SaveLedger(ctx context.Context, runID string, ledger []models.Transaction) error
	SaveRun(ctx context.Context, run models.AuditRun) error
	GetRun(ctx context.Context, runID string) (*models.AuditRun, error)
	GetLatestRun(ctx context.Context) (*models.AuditRun, error)
}

// BlobClient defines the blob storage operations used by handlers.
// Downloads report found=false instead of an error when the blob does not exist.
type BlobClient interface {
	UploadSource(ctx context.Context, blobName string, content []byte, label string) error
	DownloadSource(ctx context.Context, blobName string) ([]byte, bool, error)
	UploadLedger(ctx context.Context, blobName, text, rulesVersion string) error
	DownloadLedger(ctx context.Context, blobName string) (string, bool, error)
}

// QueueClient defines the queue operations used by handlers.
type QueueClient interface {
	EnqueueAuditJob(ctx context.Context, job models.AuditJob) error
}

// EmailClient defines the notification operations used by handlers.
type EmailClient interface {
	SendSummaryEmail(ctx context.Context, recipients []string, run *models.AuditRun, warnings []string) error
	SendErrorEmail(ctx context.Context, recipients []string, errors []string) error
	SendReminderEmail(ctx context.Context, recipients []string, run *models.AuditRun, problems []string) error
}
