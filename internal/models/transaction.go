package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerSchemaVersion identifies the column layout and meaning of the classified ledger.
// Bump it whenever columns, status texts or the default taxonomy change.
const LedgerSchemaVersion = "3"

// LedgerColumns is the fixed output schema of the classified ledger.
var LedgerColumns = []string{
	"Date", "Name", "Amount", "Analysis_Status", "Exclusion_Reason", "Category", "Source", "Type", "Status",
}

// LedgerDateLayout is the calendar format used for the Date column.
const LedgerDateLayout = "01/02/2006"

// AnalysisStatus is the inclusion decision for a transaction.
type AnalysisStatus int

const (
	StatusIncluded AnalysisStatus = iota
	StatusExcluded
)

// String returns the ledger text for the status.
func (s AnalysisStatus) String() string {
	switch s {
	case StatusIncluded:
		return "Included (True Spend)"
	case StatusExcluded:
		return "Excluded"
	default:
		return fmt.Sprintf("AnalysisStatus(%d)", int(s))
	}
}

// ParseAnalysisStatus parses the ledger text of a status.
func ParseAnalysisStatus(s string) (AnalysisStatus, error) {
	switch s {
	case "Included (True Spend)", "Included":
		return StatusIncluded, nil
	case "Excluded":
		return StatusExcluded, nil
	}
	return StatusIncluded, fmt.Errorf("unknown analysis status: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s AnalysisStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *AnalysisStatus) UnmarshalText(b []byte) error {
	v, err := ParseAnalysisStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Transaction is one canonical record, normalized from a single source row.
type Transaction struct {
	// Date is a calendar date at UTC midnight. The zero value means the raw date was unparsable.
	Date time.Time `json:"date"`
	// Amount is negative for money out. AmountValid is false when the raw value could not be parsed.
	Amount      decimal.Decimal `json:"amount"`
	AmountValid bool            `json:"-"`

	Name          string `json:"name"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Source        string `json:"source"`
	TransactionID string `json:"transactionId,omitempty"`

	AnalysisStatus AnalysisStatus  `json:"analysisStatus"`
	Exclusion      ExclusionReason `json:"exclusionReason"`
	Category       Category        `json:"category"`
}

// HasDate reports whether the transaction carries a parsed date.
func (t *Transaction) HasDate() bool {
	return !t.Date.IsZero()
}

// IsIncluded reports whether the transaction counts toward true spend.
func (t *Transaction) IsIncluded() bool {
	return t.AnalysisStatus == StatusIncluded
}

// Exclude moves an included transaction to Excluded with the given reason.
// A transaction that is already excluded keeps its first reason.
func (t *Transaction) Exclude(reason ExclusionReason) bool {
	if t.AnalysisStatus == StatusExcluded {
		return false
	}
	t.AnalysisStatus = StatusExcluded
	t.Exclusion = reason
	t.Category = CategoryExcluded
	return true
}

// FormatDate renders Date in the ledger layout, or "" for the null date.
func (t *Transaction) FormatDate() string {
	if !t.HasDate() {
		return ""
	}
	return t.Date.Format(LedgerDateLayout)
}

// Validate checks the status, reason and category invariants.
func (t *Transaction) Validate() error {
	switch t.AnalysisStatus {
	case StatusIncluded:
		if !t.Exclusion.IsZero() {
			return fmt.Errorf("included transaction %q carries exclusion reason %q", t.Name, t.Exclusion)
		}
		if t.Category == CategoryExcluded {
			return fmt.Errorf("included transaction %q has category %q", t.Name, t.Category)
		}
	case StatusExcluded:
		if t.Exclusion.IsZero() {
			return fmt.Errorf("excluded transaction %q has no exclusion reason", t.Name)
		}
		if t.Category != CategoryExcluded {
			return fmt.Errorf("excluded transaction %q has category %q", t.Name, t.Category)
		}
	default:
		return fmt.Errorf("transaction %q has unknown analysis status %d", t.Name, int(t.AnalysisStatus))
	}
	return nil
}
