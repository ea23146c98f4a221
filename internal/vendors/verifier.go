// Package vendors checks extracted vendor names against a list of known
// vendors and common misspellings of them. It annotates batch results and is
// never consulted by the duplicate detection decision.
package vendors

import (
	"regexp"
	"strings"

	"invoice-fraud-detector/internal/matcher"
	"invoice-fraud-detector/pkg/logger"
)

// Status is the legitimacy verdict for a vendor name
type Status string

const (
	StatusLegitimate Status = "LEGITIMATE"
	StatusFraudulent Status = "FRAUDULENT"
	StatusUnknown    Status = "UNKNOWN"
)

// RiskLevel grades the vendor risk
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskCritical RiskLevel = "CRITICAL"
)

// NotDetected is reported as the vendor name when the invoice names none
const NotDetected = "Not detected"

// DefaultMatchThreshold is the ratio above which a name matches a known variation
const DefaultMatchThreshold = 0.85

// KnownVendor is a legitimate vendor and the names it invoices under
type KnownVendor struct {
	Name       string    `json:"name" yaml:"name"`
	Variations []string  `json:"variations" yaml:"variations"`
	Risk       RiskLevel `json:"risk_level" yaml:"risk_level"`
}

// Verification is the outcome of checking one vendor name
type Verification struct {
	VendorName      string    `json:"vendor_name"`
	Status          Status    `json:"legitimacy_status"`
	Confidence      float64   `json:"confidence"`
	Risk            RiskLevel `json:"risk_level"`
	MatchedVendor   string    `json:"matched_vendor,omitempty"`
	FraudIndicators []string  `json:"fraud_indicators,omitempty"`
}

// DefaultKnownVendors returns the built-in vendor list
func DefaultKnownVendors() []KnownVendor {
	return []KnownVendor{
		{
			Name:       "Microsoft",
			Variations: []string{"Microsoft Corporation", "Microsoft India", "Microsoft Deutschland", "Microsoft UK"},
			Risk:       RiskLow,
		},
		{
			Name:       "SAP",
			Variations: []string{"SAP SE", "SAP America", "SAP Labs India", "SAP Deutschland"},
			Risk:       RiskLow,
		},
		{
			Name:       "Amazon",
			Variations: []string{"Amazon.com Inc", "Amazon Web Services", "Amazon India", "Amazon EU"},
			Risk:       RiskLow,
		},
	}
}

var misspellingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Mircosoft|Mcirosoft|Microsooft`),
	regexp.MustCompile(`(?i)Gogle|Googel|Gooogle`),
	regexp.MustCompile(`(?i)Amazone|Amazoon|Amzon`),
}

// Verifier checks vendor names
type Verifier struct {
	known     []KnownVendor
	threshold float64
	logger    logger.Logger
}

// NewVerifier creates a verifier over known. An empty list uses DefaultKnownVendors.
func NewVerifier(known []KnownVendor) *Verifier {
	if len(known) == 0 {
		known = DefaultKnownVendors()
	}
	return &Verifier{
		known:     known,
		threshold: DefaultMatchThreshold,
		logger:    logger.GetGlobalLogger().WithComponent("vendors"),
	}
}

// Verify grades a vendor name. A misspelling of a well-known vendor overrides
// any match against the known list.
func (v *Verifier) Verify(vendorName string) Verification {
	name := strings.TrimSpace(vendorName)
	if name == "" {
		return Verification{
			VendorName: NotDetected,
			Status:     StatusUnknown,
			Confidence: 0.5,
			Risk:       RiskMedium,
		}
	}

	result := Verification{
		VendorName: name,
		Status:     StatusUnknown,
		Confidence: 0.5,
		Risk:       RiskMedium,
	}

	best := 0.0
	for _, vendor := range v.known {
		for _, variation := range vendor.Variations {
			ratio := matcher.FoldRatio(name, variation)
			if ratio > v.threshold && ratio > best {
				best = ratio
				result.Status = StatusLegitimate
				result.Confidence = ratio
				result.Risk = vendor.Risk
				result.MatchedVendor = vendor.Name
			}
		}
	}

	for _, pattern := range misspellingPatterns {
		if pattern.MatchString(name) {
			result.Status = StatusFraudulent
			result.Confidence = 0.95
			result.Risk = RiskCritical
			result.MatchedVendor = ""
			result.FraudIndicators = append(result.FraudIndicators, "Misspelled legitimate vendor name")
			v.logger.WithField("vendor", name).Warn("Misspelled vendor name")
			break
		}
	}

	return result
}
