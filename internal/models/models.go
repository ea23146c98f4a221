package models

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// ProcessingStatus represents where an invoice is in the decision lifecycle
type ProcessingStatus string

const (
	// StatusPending is the state while the invoice is being evaluated
	StatusPending ProcessingStatus = "pending"
	// StatusStored marks an invoice admitted without an alert
	StatusStored ProcessingStatus = "stored"
	// StatusFlagged marks an invoice that raised a fraud alert
	StatusFlagged ProcessingStatus = "flagged"
)

// String returns the string representation of ProcessingStatus
func (s ProcessingStatus) String() string {
	return string(s)
}

// IsValid checks if the status is one of the known values
func (s ProcessingStatus) IsValid() bool {
	return s == StatusPending || s == StatusStored || s == StatusFlagged
}

// IsTerminal reports whether no further transition is possible
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusStored || s == StatusFlagged
}

// InvoiceFingerprint is the structured, deterministic summary of an invoice's
// text. It is computed once and never modified afterwards.
type InvoiceFingerprint struct {
	ContentHash       string            `json:"content_hash"`
	VendorName        string            `json:"vendor_name"`
	LineItems         []string          `json:"line_items"`
	Amounts           []decimal.Decimal `json:"amounts"`
	POReference       string            `json:"po_reference"`
	DeliveryAddress   string            `json:"delivery_address"`
	NormalizedContent string            `json:"normalized_content"`
	Keywords          []string          `json:"keywords"`
}

// Equals compares two fingerprints field by field
func (f *InvoiceFingerprint) Equals(other *InvoiceFingerprint) bool {
	if f == nil || other == nil {
		return f == other
	}

	if f.ContentHash != other.ContentHash ||
		f.VendorName != other.VendorName ||
		f.POReference != other.POReference ||
		f.DeliveryAddress != other.DeliveryAddress ||
		f.NormalizedContent != other.NormalizedContent {
		return false
	}

	if !equalStrings(f.LineItems, other.LineItems) || !equalStrings(f.Keywords, other.Keywords) {
		return false
	}

	if len(f.Amounts) != len(other.Amounts) {
		return false
	}
	for i := range f.Amounts {
		if !f.Amounts[i].Equal(other.Amounts[i]) {
			return false
		}
	}

	return true
}

// LargestAmount returns the largest extracted amount, or zero when none were found
func (f *InvoiceFingerprint) LargestAmount() decimal.Decimal {
	largest := decimal.Zero
	if f == nil {
		return largest
	}
	for _, amount := range f.Amounts {
		if amount.GreaterThan(largest) {
			largest = amount
		}
	}
	return largest
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// InvoiceSubmission is the raw input handed to the detection engine. Any
// field may be empty; the engine fills gaps with defaults.
type InvoiceSubmission struct {
	InvoiceID   string          `json:"invoice_id"`
	Region      string          `json:"region"`
	Currency    string          `json:"currency"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	SubmittedAt time.Time       `json:"submitted_at"`
	Text        string          `json:"invoice_text"`
}

// RegionalInvoice is one invoice submitted to one regional office
type RegionalInvoice struct {
	InvoiceID   string              `json:"invoice_id"`
	Region      string              `json:"region"`
	Currency    string              `json:"currency"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	SubmittedAt time.Time           `json:"submitted_at"`
	Fingerprint *InvoiceFingerprint `json:"fingerprint"`
	Status      ProcessingStatus    `json:"status"`
}

// NewRegionalInvoice creates a pending RegionalInvoice
func NewRegionalInvoice(id, region, currency string, amount decimal.Decimal, submittedAt time.Time, fp *InvoiceFingerprint) *RegionalInvoice {
	return &RegionalInvoice{
		InvoiceID:   id,
		Region:      region,
		Currency:    strings.ToUpper(strings.TrimSpace(currency)),
		TotalAmount: amount,
		SubmittedAt: submittedAt,
		Fingerprint: fp,
		Status:      StatusPending,
	}
}

// Validate performs basic validation on the RegionalInvoice
func (r *RegionalInvoice) Validate() error {
	if strings.TrimSpace(r.InvoiceID) == "" {
		return fmt.Errorf("invoice ID cannot be empty")
	}

	if strings.TrimSpace(r.Region) == "" {
		return fmt.Errorf("invoice region cannot be empty")
	}

	if r.TotalAmount.IsNegative() {
		return fmt.Errorf("invoice amount cannot be negative")
	}

	if r.SubmittedAt.IsZero() {
		return fmt.Errorf("submission time cannot be zero")
	}

	if !r.Status.IsValid() {
		return fmt.Errorf("invalid processing status: %s", r.Status)
	}

	return nil
}

// WithStatus returns a copy of the invoice carrying the given status
func (r *RegionalInvoice) WithStatus(status ProcessingStatus) *RegionalInvoice {
	clone := *r
	clone.Status = status
	return &clone
}

// Clone returns a shallow copy. The fingerprint is shared since it is immutable.
func (r *RegionalInvoice) Clone() *RegionalInvoice {
	clone := *r
	return &clone
}

// HoursApart returns the absolute time between two submissions in hours
func (r *RegionalInvoice) HoursApart(other *RegionalInvoice) float64 {
	gap := r.SubmittedAt.Sub(other.SubmittedAt)
	if gap < 0 {
		gap = -gap
	}
	return gap.Hours()
}

// String returns a string representation of the RegionalInvoice
func (r *RegionalInvoice) String() string {
	return fmt.Sprintf("RegionalInvoice{ID: %s, Region: %s, Amount: %s %s, Submitted: %s, Status: %s}",
		r.InvoiceID, r.Region, r.TotalAmount.String(), r.Currency, r.SubmittedAt.Format(time.RFC3339), r.Status)
}

// MarshalJSON implements custom JSON marshaling for RegionalInvoice
func (r *RegionalInvoice) MarshalJSON() ([]byte, error) {
	type Alias RegionalInvoice
	return json.Marshal(&struct {
		TotalAmount string `json:"total_amount"`
		SubmittedAt string `json:"submitted_at"`
		*Alias
	}{
		TotalAmount: r.TotalAmount.String(),
		SubmittedAt: r.SubmittedAt.Format(time.RFC3339),
		Alias:       (*Alias)(r),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for RegionalInvoice
func (r *RegionalInvoice) UnmarshalJSON(data []byte) error {
	type Alias RegionalInvoice
	aux := &struct {
		TotalAmount string `json:"total_amount"`
		SubmittedAt string `json:"submitted_at"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	r.TotalAmount, err = ParseDecimalFromString(aux.TotalAmount)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}

	r.SubmittedAt, err = ParseTimeWithFormats(aux.SubmittedAt)
	if err != nil {
		return fmt.Errorf("invalid submission time format: %w", err)
	}

	return nil
}

// Utility functions for type conversion and validation

var currencyStripper = strings.NewReplacer(
	"$", "", "€", "", "£", "", "₹", "", "¥", "", ",", "",
	"USD", "", "EUR", "", "GBP", "", "INR", "", "JPY", "", "CAD", "",
)

// ParseDecimalFromString parses a decimal value from string, removing currency
// markers and thousand separators
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.TrimSpace(currencyStripper.Replace(strings.ToUpper(s)))

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseTimeWithFormats attempts to parse time from string using multiple common formats
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"01/02/2006 15:04:05",
		"01/02/2006",
		"2006/01/02",
		"Jan 2, 2006",
		"January 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}
