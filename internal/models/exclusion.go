package models

import (
	"fmt"
	"strings"
)

// ExclusionKind enumerates why a transaction is not counted as spend.
type ExclusionKind int

const (
	ExclusionNone ExclusionKind = iota
	ExclusionNonFinalized
	ExclusionMoneyIn
	ExclusionTransfer
	ExclusionDuplicate
)

// ExclusionKinds lists every non-empty kind in evaluation order.
var ExclusionKinds = []ExclusionKind{
	ExclusionNonFinalized,
	ExclusionMoneyIn,
	ExclusionTransfer,
	ExclusionDuplicate,
}

// String returns a stable short name for the kind.
func (k ExclusionKind) String() string {
	switch k {
	case ExclusionNone:
		return "none"
	case ExclusionNonFinalized:
		return "non_finalized"
	case ExclusionMoneyIn:
		return "money_in"
	case ExclusionTransfer:
		return "transfer"
	case ExclusionDuplicate:
		return "duplicate"
	default:
		return fmt.Sprintf("ExclusionKind(%d)", int(k))
	}
}

// ParseExclusionKind parses the short name of a kind.
func ParseExclusionKind(s string) (ExclusionKind, error) {
	for _, k := range append([]ExclusionKind{ExclusionNone}, ExclusionKinds...) {
		if k.String() == s {
			return k, nil
		}
	}
	return ExclusionNone, fmt.Errorf("unknown exclusion kind: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k ExclusionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ExclusionKind) UnmarshalText(b []byte) error {
	v, err := ParseExclusionKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ExclusionReason is the recorded reason of an Excluded transaction.
// Status is only set for ExclusionNonFinalized and holds the raw source status.
type ExclusionReason struct {
	Kind   ExclusionKind
	Status string
}

const nonFinalizedPrefix = "Non-Finalized (Status: "

var (
	ReasonMoneyIn   = ExclusionReason{Kind: ExclusionMoneyIn}
	ReasonTransfer  = ExclusionReason{Kind: ExclusionTransfer}
	ReasonDuplicate = ExclusionReason{Kind: ExclusionDuplicate}
)

// NonFinalized returns the reason for a transaction whose lifecycle status is not final.
func NonFinalized(status string) ExclusionReason {
	return ExclusionReason{Kind: ExclusionNonFinalized, Status: status}
}

// IsZero reports whether no reason is set.
func (r ExclusionReason) IsZero() bool {
	return r.Kind == ExclusionNone
}

// String returns the ledger text of the reason.
func (r ExclusionReason) String() string {
	switch r.Kind {
	case ExclusionNone:
		return ""
	case ExclusionNonFinalized:
		return nonFinalizedPrefix + r.Status + ")"
	case ExclusionMoneyIn:
		return "Money In / Refund"
	case ExclusionTransfer:
		return "Transfer / Noise"
	case ExclusionDuplicate:
		return "Duplicate"
	default:
		return r.Kind.String()
	}
}

// ParseExclusionReason parses the ledger text of a reason.
func ParseExclusionReason(s string) (ExclusionReason, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ExclusionReason{}, nil
	case strings.HasPrefix(s, nonFinalizedPrefix) && strings.HasSuffix(s, ")"):
		return NonFinalized(strings.TrimSuffix(strings.TrimPrefix(s, nonFinalizedPrefix), ")")), nil
	case s == ReasonMoneyIn.String():
		return ReasonMoneyIn, nil
	case s == ReasonTransfer.String():
		return ReasonTransfer, nil
	case s == ReasonDuplicate.String():
		return ReasonDuplicate, nil
	}
	return ExclusionReason{}, fmt.Errorf("unknown exclusion reason: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r ExclusionReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ExclusionReason) UnmarshalText(b []byte) error {
	v, err := ParseExclusionReason(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
