package matcher

import (
	"strings"

	"invoice-fraud-detector/internal/models"
	"invoice-fraud-detector/pkg/logger"
)

// Scorer compares fingerprinted invoices
type Scorer struct {
	config   *DetectionConfig
	currency *CurrencyReconciler
	logger   logger.Logger
}

// NewScorer creates a Scorer. A nil config uses DefaultDetectionConfig.
func NewScorer(config *DetectionConfig) (*Scorer, error) {
	if config == nil {
		config = DefaultDetectionConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	config = config.Clone()
	return &Scorer{
		config:   config,
		currency: NewCurrencyReconciler(config.Rates, config.VendorVarianceThreshold),
		logger:   logger.GetGlobalLogger().WithComponent("scorer"),
	}, nil
}

// Config returns a copy of the scorer's configuration
func (s *Scorer) Config() *DetectionConfig {
	return s.config.Clone()
}

// Currency returns the scorer's currency reconciler
func (s *Scorer) Currency() *CurrencyReconciler {
	return s.currency
}

// IsCandidate is the cheap pre-filter. It passes when the PO references match,
// the vendor names are close, or one delivery address contains the other.
func (s *Scorer) IsCandidate(a, b *models.RegionalInvoice) bool {
	fa, fb := fingerprintOf(a), fingerprintOf(b)

	if sameReference(fa.POReference, fb.POReference) {
		return true
	}

	if fa.VendorName != "" && fb.VendorName != "" &&
		FoldRatio(fa.VendorName, fb.VendorName) > s.config.VendorNameThreshold {
		return true
	}

	addrA := strings.ToLower(strings.TrimSpace(fa.DeliveryAddress))
	addrB := strings.ToLower(strings.TrimSpace(fb.DeliveryAddress))
	if addrA != "" && addrB != "" && (strings.Contains(addrB, addrA) || strings.Contains(addrA, addrB)) {
		return true
	}

	return false
}

// Compare computes the weighted field similarity of two invoices
func (s *Scorer) Compare(a, b *models.RegionalInvoice) models.SimilarityBreakdown {
	fa, fb := fingerprintOf(a), fingerprintOf(b)
	w := s.config.Weights

	var result models.SimilarityBreakdown

	switch {
	case fa.ContentHash != "" && fa.ContentHash == fb.ContentHash:
		result.Content = 1.0
	case fa.NormalizedContent == "" || fb.NormalizedContent == "":
		result.Content = 0.0
	default:
		result.Content = Ratio(fa.NormalizedContent, fb.NormalizedContent)
	}

	if sameReference(fa.POReference, fb.POReference) {
		result.PO = 1.0
	}

	result.Address = fieldSimilarity(fa.DeliveryAddress, fb.DeliveryAddress)
	result.LineItems = lineItemSimilarity(fa.LineItems, fb.LineItems)

	result.Overall = result.Content*w.Content +
		result.PO*w.PO +
		result.Address*w.Address +
		result.LineItems*w.LineItems

	return result
}

// AnalyzeTiming describes the gap between two submissions
func (s *Scorer) AnalyzeTiming(a, b *models.RegionalInvoice) models.TimingAnalysis {
	hours := a.HoursApart(b)

	pattern := models.TimingSpread
	if hours < s.config.SequentialHours {
		pattern = models.TimingSequential
	}

	return models.TimingAnalysis{
		HoursApart: hours,
		Pattern:    pattern,
		Suspicious: hours <= s.config.TimeWindowHours,
	}
}

// Evaluate runs the detailed comparison together with the currency and timing
// analyses. current is the newly submitted invoice.
func (s *Scorer) Evaluate(current, prior *models.RegionalInvoice) models.MatchEvidence {
	evidence := models.MatchEvidence{
		InvoiceID:  prior.InvoiceID,
		Region:     prior.Region,
		Similarity: s.Compare(current, prior),
		Currency:   s.currency.Reconcile(current, prior),
		Timing:     s.AnalyzeTiming(current, prior),
	}

	s.logger.WithFields(logger.Fields{
		"invoice_id": current.InvoiceID,
		"prior_id":   prior.InvoiceID,
		"overall":    evidence.Similarity.Overall,
		"variance":   evidence.Currency.VariancePercent,
		"hours":      evidence.Timing.HoursApart,
	}).Debug("Detailed comparison")

	return evidence
}

// IsMatch reports whether a comparison clears the similarity threshold
func (s *Scorer) IsMatch(evidence models.MatchEvidence) bool {
	return evidence.Similarity.Overall > s.config.SimilarityThreshold
}

var emptyFingerprint = &models.InvoiceFingerprint{}

func fingerprintOf(inv *models.RegionalInvoice) *models.InvoiceFingerprint {
	if inv == nil || inv.Fingerprint == nil {
		return emptyFingerprint
	}
	return inv.Fingerprint
}
