// Package tax implements the Indian GST rule engine: party registration
// status, rate slabs, state codes, GSTIN validation and the per-line
// CGST/SGST/IGST split.
package tax

import (
	"fmt"
	"strings"
)

// Status is a party's GST registration status.
// It is a closed set; every switch over it must list all three values.
type Status string

const (
	StatusGST      Status = "GST"
	StatusNonGST   Status = "Non-GST"
	StatusExempted Status = "Exempted"
)

// ParseStatus accepts the canonical spelling case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gst", "registered":
		return StatusGST, nil
	case "non-gst", "nongst", "unregistered":
		return StatusNonGST, nil
	case "exempted", "exempt":
		return StatusExempted, nil
	}
	return "", fmt.Errorf("unknown GST status %q", s)
}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusGST, StatusNonGST, StatusExempted:
		return true
	}
	return false
}

// RequiresGSTIN reports whether a party with this status must carry a GSTIN.
func (s Status) RequiresGSTIN() bool {
	switch s {
	case StatusGST:
		return true
	case StatusNonGST, StatusExempted:
		return false
	}
	panic(fmt.Sprintf("tax: unhandled status %q", s))
}

// TaxableCounterparty reports whether supplies to this counterparty carry GST.
// An unregistered buyer is still taxed; only exempted parties are not.
func (s Status) TaxableCounterparty() bool {
	switch s {
	case StatusGST, StatusNonGST:
		return true
	case StatusExempted:
		return false
	}
	panic(fmt.Sprintf("tax: unhandled status %q", s))
}

// ChargesTax reports whether a seller with this status may levy GST at all.
// Only registered sellers collect tax; unregistered and exempted sellers
// issue bills of supply with no GST.
func (s Status) ChargesTax() bool {
	switch s {
	case StatusGST:
		return true
	case StatusNonGST, StatusExempted:
		return false
	}
	panic(fmt.Sprintf("tax: unhandled status %q", s))
}

// IsB2B reports whether supplies to this status are reported as B2B in GSTR-1.
func (s Status) IsB2B() bool {
	switch s {
	case StatusGST:
		return true
	case StatusNonGST, StatusExempted:
		return false
	}
	panic(fmt.Sprintf("tax: unhandled status %q", s))
}
