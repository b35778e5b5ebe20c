package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/rocjay1/spend-audit/internal/models"
)

type auditRequest struct {
	Sources   []models.SourceRef `json:"sources"`
	AuditBlob string             `json:"audit_blob"`
}

// HandleAudit validates an audit request and enqueues it as a job.
func (d *Dependencies) HandleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req auditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("failed to decode audit request", "error", err)
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.Sources) == 0 {
		WriteError(w, http.StatusBadRequest, "At least one source is required")
		return
	}
	for i, ref := range req.Sources {
		schema, ok := d.Config.Rules.Source(ref.Label)
		if !ok {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown source %q", ref.Label))
			return
		}
		if ref.BlobName == "" {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("Source %q has no blob_name", ref.Label))
			return
		}
		req.Sources[i].Label = schema.Label
	}

	job := models.AuditJob{
		RunID:     uuid.NewString(),
		Sources:   req.Sources,
		AuditBlob: req.AuditBlob,
	}
	if err := d.Queue.EnqueueAuditJob(r.Context(), job); err != nil {
		slog.Error("failed to enqueue audit job", "run_id", job.RunID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to enqueue message: "+err.Error())
		return
	}
	slog.Info("enqueued audit job", "run_id", job.RunID, "sources", len(job.Sources))

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued",
		"runId":  job.RunID,
	})
}
