package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rocjay1/spend-audit/internal/models"
)

type JSONFile struct {
	filename string
}

func NewJSONFile(filename string) Store {
	return &JSONFile{filename: filename}
}

func (f *JSONFile) Write(_ context.Context, runID string, ledger []models.Transaction) error {
	docs := make([]Document, 0, len(ledger))
	for _, t := range ledger {
		docs = append(docs, NewDocument(runID, t))
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}
	if err := os.WriteFile(f.filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.filename, err)
	}
	return nil
}
