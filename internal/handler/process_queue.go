package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rocjay1/spend-audit/internal/csvparse"
	"github.com/rocjay1/spend-audit/internal/engine"
	"github.com/rocjay1/spend-audit/internal/models"
	"golang.org/x/sync/errgroup"
)

// invokeRequest represents the payload from Azure Functions Custom Handler.
type invokeRequest struct {
	Data     map[string]any `json:"Data"`
	Metadata map[string]any `json:"Metadata"`
}

// maxParallelDownloads bounds concurrent source downloads per job.
const maxParallelDownloads = 4

// ProcessQueue handles the queue trigger that runs one audit job.
func (d *Dependencies) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	var invokeReq invokeRequest
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("failed to read queue request body", "error", err)
		WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := json.Unmarshal(bodyBytes, &invokeReq); err != nil {
		slog.Error("failed to unmarshal queue request", "error", err)
		WriteError(w, http.StatusBadRequest, "Failed to unmarshal request")
		return
	}

	queueItemVal, ok := invokeReq.Data["queueItem"]
	if !ok {
		queueItemVal, ok = invokeReq.Data["queueitem"]
		if !ok {
			WriteError(w, http.StatusBadRequest, "Missing queueItem in Data")
			return
		}
	}

	queueItemStr, ok := queueItemVal.(string)
	if !ok {
		WriteError(w, http.StatusBadRequest, "queueItem is not a string")
		return
	}

	var job models.AuditJob
	if err := json.Unmarshal([]byte(queueItemStr), &job); err != nil {
		slog.Error("failed to unmarshal queueItem", "error", err)
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid queueItem JSON: %v", err))
		return
	}
	if job.RunID == "" || len(job.Sources) == 0 {
		slog.Warn("queue message missing run_id or sources", "run_id", job.RunID)
		WriteError(w, http.StatusBadRequest, "Missing run_id or sources")
		return
	}

	ctx := r.Context()
	slog.Info("processing audit job", "run_id", job.RunID, "sources", len(job.Sources), "audit_blob", job.AuditBlob)

	data, warnings, err := d.downloadSources(ctx, job.Sources)
	if err != nil {
		slog.Error("failed to download sources", "run_id", job.RunID, "error", err)
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to download CSV: %v", err))
		return
	}

	result, err := engine.Run(d.Config, data)
	if err != nil {
		d.failRun(ctx, job.RunID, err)
		if errors.Is(err, engine.ErrNoSources) {
			// Consume the message so it doesn't retry forever.
			w.WriteHeader(http.StatusOK)
			return
		}
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to classify: %v", err))
		return
	}

	run := models.AuditRun{
		RunID:      job.RunID,
		CreatedAt:  time.Now().UTC(),
		LedgerBlob: fmt.Sprintf("ledgers/%s.csv", job.RunID),
		Statistics: result.Statistics,
	}

	if job.AuditBlob != "" {
		match, err := d.verify(ctx, job.AuditBlob, result.Sources)
		if err != nil {
			d.failRun(ctx, job.RunID, err)
			if errors.Is(err, engine.ErrAuditLedgerMissing) {
				w.WriteHeader(http.StatusOK)
				return
			}
			WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to verify: %v", err))
			return
		}
		run.Match = &match.Summary
	}

	var buf bytes.Buffer
	if err := csvparse.WriteLedger(&buf, result.Ledger); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to render ledger: %v", err))
		return
	}
	if err := d.Blob.UploadLedger(ctx, run.LedgerBlob, buf.String(), d.Config.Rules.Version); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to upload ledger: %v", err))
		return
	}

	if err := d.Database.SaveLedger(ctx, run.RunID, result.Ledger); err != nil {
		slog.Error("failed to save ledger rows", "run_id", run.RunID, "error", err)
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save ledger: %v", err))
		return
	}

	if d.Export != nil {
		if err := d.Export.Write(ctx, run.RunID, result.Ledger); err != nil {
			slog.Error("failed to export ledger", "run_id", run.RunID, "error", err)
		}
	}

	if err := d.Database.SaveRun(ctx, run); err != nil {
		slog.Error("failed to save run", "run_id", run.RunID, "error", err)
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save run: %v", err))
		return
	}

	if to := d.recipients(); to != nil {
		if err := d.Email.SendSummaryEmail(ctx, to, &run, warnings); err != nil {
			slog.Error("failed to send summary email", "run_id", run.RunID, "error", err)
		}
	}

	slog.Info("audit job complete",
		"run_id", run.RunID,
		"included", run.Statistics.Included,
		"true_spend", run.Statistics.TrueSpend.StringFixed(2),
		"degraded", run.Statistics.Degraded())
	w.WriteHeader(http.StatusOK)
}

// downloadSources fetches and parses every referenced source concurrently.
// A missing blob is not an error; the source is marked missing instead.
func (d *Dependencies) downloadSources(ctx context.Context, refs []models.SourceRef) ([]engine.SourceData, []string, error) {
	data := make([]engine.SourceData, len(refs))
	rowErrors := make([][]string, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDownloads)
	for i, ref := range refs {
		g.Go(func() error {
			raw, found, err := d.Blob.DownloadSource(gctx, ref.BlobName)
			if err != nil {
				return fmt.Errorf("source %s: %w", ref.Label, err)
			}
			data[i] = engine.SourceData{Label: ref.Label, Missing: !found}
			if !found {
				return nil
			}

			content, err := csvparse.Decode(raw)
			if err != nil {
				return fmt.Errorf("source %s: %w", ref.Label, err)
			}
			records, errs := csvparse.ParseRecords(content)
			data[i].Records = records
			data[i].Rejected = len(errs)
			for _, e := range errs {
				rowErrors[i] = append(rowErrors[i], ref.Label+": "+e)
			}
			slog.Info("parsed source", "source", ref.Label, "blob_name", ref.BlobName, "records", len(records), "errors_count", len(errs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var warnings []string
	for _, errs := range rowErrors {
		warnings = append(warnings, errs...)
	}
	return data, warnings, nil
}

// verify matches the canonical audit ledger stored at blobName against the run's sources.
func (d *Dependencies) verify(ctx context.Context, blobName string, sources []engine.SourceLedger) (engine.MatchReport, error) {
	content, found, err := d.Blob.DownloadLedger(ctx, blobName)
	if err != nil {
		return engine.MatchReport{}, err
	}
	var audit []models.Transaction
	if found {
		if audit, err = csvparse.ReadLedger(content); err != nil {
			return engine.MatchReport{}, fmt.Errorf("failed to read audit ledger: %w", err)
		}
	}
	return engine.Verify(audit, sources)
}

func (d *Dependencies) failRun(ctx context.Context, runID string, err error) {
	slog.Error("audit job failed", "run_id", runID, "error", err)
	if to := d.recipients(); to != nil {
		if mailErr := d.Email.SendErrorEmail(ctx, to, []string{err.Error()}); mailErr != nil {
			slog.Error("failed to send error email", "run_id", runID, "error", mailErr)
		}
	}
}
