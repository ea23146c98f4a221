package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FraudTypeMultiRegional is the fraud type reported for cross-regional duplicates
const FraudTypeMultiRegional = "Multi-Regional Duplicate Attack"

// ActionTier ranks the urgency of the recommended response
type ActionTier string

const (
	TierImmediate ActionTier = "immediate"
	TierHigh      ActionTier = "high"
	TierEnhanced  ActionTier = "enhanced"
	TierMonitor   ActionTier = "monitor"
)

var actionText = map[ActionTier]string{
	TierImmediate: "IMMEDIATE ACTION: Block all invoices, freeze vendor payments, initiate fraud investigation across all affected regions",
	TierHigh:      "HIGH PRIORITY: Hold all payments, require manager approval, coordinate cross-regional verification",
	TierEnhanced:  "ENHANCED REVIEW: Flag for detailed manual review, verify with vendor directly, confirm legitimacy",
	TierMonitor:   "MONITOR: Continue monitoring, document patterns, increase verification requirements",
}

// RecommendedAction is the tiered response attached to an alert
type RecommendedAction struct {
	Tier ActionTier `json:"tier"`
	Text string     `json:"text"`
}

// ActionForConfidence maps a confidence score onto its action tier
func ActionForConfidence(confidence float64) RecommendedAction {
	var tier ActionTier
	switch {
	case confidence > 0.90:
		tier = TierImmediate
	case confidence > 0.85:
		tier = TierHigh
	case confidence > 0.75:
		tier = TierEnhanced
	default:
		tier = TierMonitor
	}
	return RecommendedAction{Tier: tier, Text: actionText[tier]}
}

// String returns the action text
func (a RecommendedAction) String() string {
	return a.Text
}

// SimilarityBreakdown holds the per-field scores of a detailed comparison
type SimilarityBreakdown struct {
	Content   float64 `json:"content"`
	PO        float64 `json:"po"`
	Address   float64 `json:"address"`
	LineItems float64 `json:"line_items"`
	Overall   float64 `json:"overall"`
}

// CurrencyAnalysis is the result of reconciling two invoices' amounts
type CurrencyAnalysis struct {
	CurrencyPair     string          `json:"currency_pair"`
	AmountA          decimal.Decimal `json:"amount_a_usd"`
	AmountB          decimal.Decimal `json:"amount_b_usd"`
	VarianceFraction float64         `json:"variance_fraction"`
	VariancePercent  float64         `json:"variance_percent"`
	Suspicious       bool            `json:"suspicious"`
}

// Timing patterns
const (
	TimingSequential = "sequential"
	TimingSpread     = "spread"
)

// TimingAnalysis describes the gap between two submissions
type TimingAnalysis struct {
	HoursApart float64 `json:"hours_apart"`
	Pattern    string  `json:"pattern"`
	Suspicious bool    `json:"suspicious"`
}

// MatchEvidence is the full comparison between the submitted invoice and one prior invoice
type MatchEvidence struct {
	InvoiceID  string              `json:"invoice_id"`
	Region     string              `json:"region"`
	Similarity SimilarityBreakdown `json:"similarity"`
	Currency   CurrencyAnalysis    `json:"currency"`
	Timing     TimingAnalysis      `json:"timing"`
}

// BusinessImpact summarizes the consequences of an alert for humans
type BusinessImpact struct {
	Financial        string `json:"financial"`
	Operational      string `json:"operational"`
	Reputational     string `json:"reputational"`
	Compliance       string `json:"compliance"`
	DetectionBenefit string `json:"detection_benefit"`
	ConfidenceLevel  string `json:"confidence_level"`
}

// FraudAlert is produced when the aggregated confidence crosses the alert
// threshold. It references, but does not own, the matched invoices.
type FraudAlert struct {
	AlertID           string             `json:"alert_id"`
	FraudType         string             `json:"fraud_type"`
	ConfidenceScore   float64            `json:"confidence_score"`
	AffectedRegions   []string           `json:"affected_regions"`
	MatchedInvoices   []*RegionalInvoice `json:"matched_invoices"`
	PotentialLoss     decimal.Decimal    `json:"potential_loss_usd"`
	Evidence          []MatchEvidence    `json:"evidence"`
	RecommendedAction RecommendedAction  `json:"recommended_action"`
	BusinessImpact    BusinessImpact     `json:"business_impact"`
	CreatedAt         time.Time          `json:"created_at"`
}

// AlertID derives the alert identifier from the submission time and region
func AlertID(submittedAt time.Time, region string) string {
	return fmt.Sprintf("FRAUD-%s-%s", submittedAt.UTC().Format("20060102-150405"), region)
}

// InvoiceIDs returns the IDs of all invoices referenced by the alert
func (a *FraudAlert) InvoiceIDs() []string {
	ids := make([]string, 0, len(a.MatchedInvoices))
	for _, inv := range a.MatchedInvoices {
		ids = append(ids, inv.InvoiceID)
	}
	return ids
}

// String returns a string representation of the FraudAlert
func (a *FraudAlert) String() string {
	return fmt.Sprintf("FraudAlert{ID: %s, Confidence: %.3f, Regions: %v, Loss: %s USD}",
		a.AlertID, a.ConfidenceScore, a.AffectedRegions, a.PotentialLoss.StringFixed(2))
}
