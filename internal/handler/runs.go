package handler

import (
	"log/slog"
	"net/http"

	"github.com/rocjay1/spend-audit/internal/csvparse"
	"github.com/rocjay1/spend-audit/internal/engine"
	"github.com/rocjay1/spend-audit/internal/models"
)

// HandleRuns returns the run named by ?id=, or the latest run.
func (d *Dependencies) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	run, ok := d.lookupRun(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// HandleReclassify re-applies the current rule set to a stored run's ledger and
// reports how the result moved. The stored run is left unchanged.
func (d *Dependencies) HandleReclassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	run, ok := d.lookupRun(w, r)
	if !ok {
		return
	}

	content, found, err := d.Blob.DownloadLedger(r.Context(), run.LedgerBlob)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to download ledger: "+err.Error())
		return
	}
	var ledger []models.Transaction
	if found {
		if ledger, err = csvparse.ReadLedger(content); err != nil {
			WriteError(w, http.StatusUnprocessableEntity, "Stored ledger is unreadable: "+err.Error())
			return
		}
	}

	result, err := engine.Reclassify(d.Config, ledger)
	if err != nil {
		slog.Error("failed to reclassify run", "run_id", run.RunID, "error", err)
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"runId":        run.RunID,
		"rulesVersion": d.Config.Rules.Version,
		"comparison":   engine.Compare(run.Statistics, result.Statistics),
	})
}

func (d *Dependencies) lookupRun(w http.ResponseWriter, r *http.Request) (*models.AuditRun, bool) {
	id := r.URL.Query().Get("id")

	var (
		run *models.AuditRun
		err error
	)
	if id == "" {
		run, err = d.Database.GetLatestRun(r.Context())
	} else {
		run, err = d.Database.GetRun(r.Context(), id)
	}
	if err != nil {
		slog.Error("failed to fetch run", "run_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to fetch run")
		return nil, false
	}
	if run == nil {
		WriteError(w, http.StatusNotFound, "Run not found")
		return nil, false
	}
	return run, true
}
