package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/rocjay1/spend-audit/internal/csvparse"
	"github.com/rocjay1/spend-audit/internal/engine"
	"github.com/rocjay1/spend-audit/internal/models"
)

// sourceFlag splits a "label=path" argument.
func sourceFlag(arg string) (label, path string, err error) {
	label, path, ok := strings.Cut(arg, "=")
	label, path = strings.TrimSpace(label), strings.TrimSpace(path)
	if !ok || label == "" || path == "" {
		return "", "", fmt.Errorf("source %q must look like label=path", arg)
	}
	return label, path, nil
}

// loadSources reads every source export named on the command line. A file that
// does not exist marks its source missing rather than failing the run.
func loadSources(args []string) ([]engine.SourceData, error) {
	data := make([]engine.SourceData, 0, len(args))
	for _, arg := range args {
		label, path, err := sourceFlag(arg)
		if err != nil {
			return nil, err
		}

		raw, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("source file not found", "source", label, "path", path)
			data = append(data, engine.SourceData{Label: label, Missing: true})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read source %s: %w", label, err)
		}

		content, err := csvparse.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode source %s: %w", label, err)
		}
		records, rowErrors := csvparse.ParseRecords(content)
		for _, e := range rowErrors {
			slog.Warn("rejected row", "source", label, "error", e)
		}
		slog.Debug("parsed source", "source", label, "path", path, "records", len(records), "errors_count", len(rowErrors))
		data = append(data, engine.SourceData{Label: label, Records: records, Rejected: len(rowErrors)})
	}
	return data, nil
}

// readLedger loads a classified ledger CSV. A missing file yields a nil ledger.
func readLedger(path string) ([]models.Transaction, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	content, err := csvparse.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ledger: %w", err)
	}
	return csvparse.ReadLedger(content)
}

func writeLedger(path string, ledger []models.Transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create ledger file: %w", err)
	}
	if err := csvparse.WriteLedger(f, ledger); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
