package engine

import (
	"strings"
	"time"

	"github.com/rocjay1/spend-audit/internal/csvparse"
	"github.com/rocjay1/spend-audit/internal/models"
	"github.com/rocjay1/spend-audit/internal/rules"
	"github.com/shopspring/decimal"
)

// Normalize maps one raw source row onto a canonical transaction.
// Unparsable dates become the zero date and unparsable amounts become zero
// with AmountValid unset; the row is never rejected.
func Normalize(schema rules.SourceSchema, rec csvparse.Record) models.Transaction {
	t := models.Transaction{
		Name:           field(rec, schema.NameColumn),
		Type:           field(rec, schema.TypeColumn),
		Status:         field(rec, schema.StatusColumn),
		TransactionID:  field(rec, schema.IDColumn),
		Source:         schema.Label,
		AnalysisStatus: models.StatusIncluded,
	}
	t.Date = parseDate(field(rec, schema.DateColumn), schema.DateLayouts)

	for _, col := range schema.AmountColumns {
		raw, ok := rec[col]
		if !ok {
			continue
		}
		t.Amount, t.AmountValid = parseAmount(raw)
		break
	}
	return t
}

// NormalizeAll normalizes every record of one source.
func NormalizeAll(schema rules.SourceSchema, recs []csvparse.Record) []models.Transaction {
	out := make([]models.Transaction, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Normalize(schema, rec))
	}
	return out
}

func field(rec csvparse.Record, col string) string {
	if col == "" {
		return ""
	}
	return strings.TrimSpace(rec[col])
}

// parseDate returns the calendar date of raw at UTC midnight. Time of day is dropped.
func parseDate(raw string, layouts []string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range layouts {
		ts, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		y, m, d := ts.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}

var amountCleaner = strings.NewReplacer("$", "", ",", "", " ", "", " ", "")

func parseAmount(raw string) (decimal.Decimal, bool) {
	s := amountCleaner.Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, false
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.TrimPrefix(s, "+")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}
