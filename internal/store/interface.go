// Package store exports classified ledgers to secondary sinks for analysis.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rocjay1/spend-audit/internal/models"
)

// Store receives the classified ledger of one run.
type Store interface {
	Write(ctx context.Context, runID string, ledger []models.Transaction) error
}

// Document is the exported form of one ledger row.
type Document struct {
	RunID          string `json:"runId"`
	SchemaVersion  string `json:"schemaVersion"`
	Date           string `json:"date,omitempty"`
	Month          string `json:"month,omitempty"`
	Name           string `json:"name"`
	Amount         string `json:"amount"`
	AnalysisStatus string `json:"analysisStatus"`
	Exclusion      string `json:"exclusionReason,omitempty"`
	Category       string `json:"category"`
	Source         string `json:"source"`
	Type           string `json:"type,omitempty"`
	Status         string `json:"status,omitempty"`
}

// NewDocument flattens a ledger row for export.
func NewDocument(runID string, t models.Transaction) Document {
	d := Document{
		RunID:          runID,
		SchemaVersion:  models.LedgerSchemaVersion,
		Name:           t.Name,
		Amount:         t.Amount.StringFixed(2),
		AnalysisStatus: t.AnalysisStatus.String(),
		Exclusion:      t.Exclusion.String(),
		Category:       string(t.Category),
		Source:         t.Source,
		Type:           t.Type,
		Status:         t.Status,
	}
	if t.HasDate() {
		d.Date = t.Date.Format("2006-01-02")
		d.Month = t.Date.Format("2006-01")
	}
	return d
}

// Open returns the store named by a "kind:target" string, for example
// "jsonfile:/tmp/ledger.json" or "es8:http://localhost:9200".
func Open(dsn string) (Store, error) {
	kind, target, _ := strings.Cut(dsn, ":")
	switch kind {
	case "jsonfile":
		if target == "" {
			return nil, fmt.Errorf("jsonfile store requires a path")
		}
		return NewJSONFile(target), nil
	case "es8":
		var urls []string
		if target != "" {
			urls = strings.Split(target, ",")
		}
		return NewElasticsearchV8(urls...), nil
	}
	return nil, fmt.Errorf("unknown store %q", kind)
}
