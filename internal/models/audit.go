package models

import "time"

// SourceRef points a configured source schema at an uploaded file.
type SourceRef struct {
	Label    string `json:"label"`
	BlobName string `json:"blob_name"`
}

// AuditJob is the queue message that requests one reconciliation run.
type AuditJob struct {
	RunID     string      `json:"run_id"`
	Sources   []SourceRef `json:"sources"`
	AuditBlob string      `json:"audit_blob,omitempty"`
}

// AuditRun is the stored outcome of one reconciliation run.
type AuditRun struct {
	RunID      string        `json:"runId"`
	CreatedAt  time.Time     `json:"createdAt"`
	LedgerBlob string        `json:"ledgerBlob"`
	Statistics Statistics    `json:"statistics"`
	Match      *MatchSummary `json:"match,omitempty"`
}
