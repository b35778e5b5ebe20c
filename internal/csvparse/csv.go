package csvparse

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Record is one CSV row keyed by trimmed header name.
type Record map[string]string

// Decode converts raw export bytes to a string, trying UTF-8, then UTF-8 with a
// byte order mark, then Latin-1. Latin-1 accepts every byte sequence, so Decode
// only fails on a decoder error.
func Decode(b []byte) (string, error) {
	if utf8.Valid(b) {
		out, err := unicode.UTF8BOM.NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("failed to decode utf-8: %w", err)
		}
		return string(out), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("failed to decode latin-1: %w", err)
	}
	return string(out), nil
}

// ParseRecords parses CSV content into header-keyed records.
// It returns the records and a list of error messages for rows it had to reject.
func ParseRecords(content string) ([]Record, []string) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, []string{fmt.Sprintf("Failed to read CSV: %v", err)}
	}

	if len(records) < 2 {
		return []Record{}, nil // Empty or header-only
	}

	headers := parseHeaders(records[0])
	var out []Record
	var errors []string

	for i, record := range records[1:] {
		rowNum := i + 2
		if len(record) < len(headers) {
			errors = append(errors, fmt.Sprintf("Row %d: Not enough fields", rowNum))
			continue
		}

		row := make(Record, len(headers))
		for j, header := range headers {
			row[header] = strings.TrimSpace(record[j])
		}
		out = append(out, row)
	}

	return out, errors
}

func parseHeaders(row []string) []string {
	headers := make([]string, len(row))
	for i, h := range row {
		headers[i] = strings.TrimSpace(h)
	}
	return headers
}

// WriteLedger writes classified transactions in the fixed ledger schema.
func WriteLedger(w io.Writer, txns []models.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.LedgerColumns); err != nil {
		return fmt.Errorf("failed to write ledger header: %w", err)
	}
	for i := range txns {
		t := &txns[i]
		row := []string{
			t.FormatDate(),
			t.Name,
			t.Amount.StringFixed(2),
			t.AnalysisStatus.String(),
			t.Exclusion.String(),
			string(t.Category),
			t.Source,
			t.Type,
			t.Status,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write ledger row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush ledger: %w", err)
	}
	return nil
}

// ReadLedger parses a ledger previously produced by WriteLedger.
func ReadLedger(content string) ([]models.Transaction, error) {
	records, errs := ParseRecords(content)
	if len(errs) > 0 {
		return nil, fmt.Errorf("malformed ledger: %s", strings.Join(errs, "; "))
	}
	if len(records) > 0 {
		for _, col := range models.LedgerColumns {
			if _, ok := records[0][col]; !ok {
				return nil, fmt.Errorf("ledger is missing column %q", col)
			}
		}
	}

	txns := make([]models.Transaction, 0, len(records))
	for i, rec := range records {
		t, err := ledgerRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

func ledgerRow(rec Record) (models.Transaction, error) {
	t := models.Transaction{
		Name:     rec["Name"],
		Source:   rec["Source"],
		Type:     rec["Type"],
		Status:   rec["Status"],
		Category: models.Category(rec["Category"]),
	}

	if d := rec["Date"]; d != "" {
		date, err := time.Parse(models.LedgerDateLayout, d)
		if err != nil {
			return t, fmt.Errorf("invalid Date: %s", d)
		}
		t.Date = date
	}

	amount, err := decimal.NewFromString(rec["Amount"])
	if err != nil {
		return t, fmt.Errorf("invalid Amount: %s", rec["Amount"])
	}
	t.Amount = amount
	t.AmountValid = true

	if t.AnalysisStatus, err = models.ParseAnalysisStatus(rec["Analysis_Status"]); err != nil {
		return t, err
	}
	if t.Exclusion, err = models.ParseExclusionReason(rec["Exclusion_Reason"]); err != nil {
		return t, err
	}
	return t, nil
}
