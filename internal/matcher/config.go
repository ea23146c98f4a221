// Package matcher scores a submitted invoice against prior invoices from other
// regions and folds the results into a single fraud confidence.
//
// Scoring is two-staged to bound cost:
//  1. Scorer.IsCandidate is a cheap, high-recall pre-filter (PO reference,
//     vendor name, delivery address).
//  2. Scorer.Compare computes a weighted sum of four field similarities
//     (normalized content, PO reference, delivery address, line items).
//
// Each detailed comparison is paired with a currency reconciliation
// (CurrencyReconciler) and a timing analysis. Aggregate then combines every
// match above the similarity threshold into a confidence in [0, 0.99].
//
// All string similarity is the Ratcliff/Obershelp ratio from go-difflib.
//
// Example usage:
//
//	config := matcher.DefaultDetectionConfig()
//	config.TimeWindowHours = 48
//
//	scorer, err := matcher.NewScorer(config)
//	if scorer.IsCandidate(current, prior) {
//		evidence := scorer.Evaluate(current, prior)
//	}
package matcher

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DetectionConfig holds every tunable of the detection pipeline.
//
// SimilarityThreshold decides which pairwise comparisons count as matches;
// AlertThreshold decides whether the aggregated confidence raises an alert.
// With AlertThreshold at or below 0.75 the "monitor" action tier can fire.
type DetectionConfig struct {
	// TimeWindowHours is the maximum gap between two submissions for them to be compared
	TimeWindowHours float64 `json:"time_window_hours" mapstructure:"time_window_hours"`

	// SimilarityThreshold is the minimum overall similarity for a pair to count as a match
	SimilarityThreshold float64 `json:"similarity_threshold" mapstructure:"similarity_threshold"`

	// AlertThreshold is the aggregated confidence above which an alert is raised
	AlertThreshold float64 `json:"alert_threshold" mapstructure:"alert_threshold"`

	// VendorVarianceThreshold marks converted amounts closer than this fraction as suspicious
	VendorVarianceThreshold float64 `json:"vendor_variance_threshold" mapstructure:"vendor_variance_threshold"`

	// VendorNameThreshold is the vendor ratio above which the pre-filter passes
	VendorNameThreshold float64 `json:"vendor_name_threshold" mapstructure:"vendor_name_threshold"`

	// SequentialHours separates "sequential" from "spread" submission patterns
	SequentialHours float64 `json:"sequential_hours" mapstructure:"sequential_hours"`

	Weights    SimilarityWeights `json:"weights" mapstructure:"weights"`
	Confidence ConfidenceConfig  `json:"confidence" mapstructure:"confidence"`

	// Rates converts one unit of a currency into the common unit (USD)
	Rates RateTable `json:"rates" mapstructure:"rates"`
}

// SimilarityWeights defines the contribution of each field to the overall
// similarity. The weights are not required to sum to 1.0: the defaults sum
// to 1.30, so a perfect match scores 1.30.
type SimilarityWeights struct {
	Content   float64 `json:"content" mapstructure:"content"`
	PO        float64 `json:"po" mapstructure:"po"`
	Address   float64 `json:"address" mapstructure:"address"`
	LineItems float64 `json:"line_items" mapstructure:"line_items"`
}

// ConfidenceConfig holds the aggregation constants
type ConfidenceConfig struct {
	// RegionBoostStep is added to the multiplier for every match beyond the first
	RegionBoostStep float64 `json:"region_boost_step" mapstructure:"region_boost_step"`
	// MaxRegionBoost caps the multiplier
	MaxRegionBoost float64 `json:"max_region_boost" mapstructure:"max_region_boost"`
	// CurrencyBoost is added per match with suspicious currency variance
	CurrencyBoost float64 `json:"currency_boost" mapstructure:"currency_boost"`
	// TimingBoost is added per match submitted inside the time window
	TimingBoost float64 `json:"timing_boost" mapstructure:"timing_boost"`
	// MaxConfidence is the ceiling; certainty is never reported
	MaxConfidence float64 `json:"max_confidence" mapstructure:"max_confidence"`
}

// RateTable maps ISO currency codes to their value in the common unit
type RateTable map[string]float64

// DefaultRates returns the static conversion table
func DefaultRates() RateTable {
	return RateTable{
		"USD": 1.0,
		"EUR": 1.18,
		"GBP": 1.28,
		"INR": 0.012,
		"CAD": 0.74,
		"JPY": 0.0067,
	}
}

// Rate returns the rate for a currency. Unknown currencies are treated as
// already being in the common unit.
func (rt RateTable) Rate(currency string) float64 {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if rate, ok := rt[currency]; ok {
		return rate
	}
	// viper lower-cases map keys read from config files
	for code, rate := range rt {
		if strings.EqualFold(code, currency) {
			return rate
		}
	}
	return 1.0
}

// Currencies returns the configured currency codes, upper-cased and sorted
func (rt RateTable) Currencies() []string {
	codes := make([]string, 0, len(rt))
	for code := range rt {
		codes = append(codes, strings.ToUpper(code))
	}
	sort.Strings(codes)
	return codes
}

// DefaultWeights returns the field weights, summing to 1.30
func DefaultWeights() SimilarityWeights {
	return SimilarityWeights{
		Content:   0.30,
		PO:        0.30,
		Address:   0.25,
		LineItems: 0.45,
	}
}

// DefaultConfidenceConfig returns the aggregation constants
func DefaultConfidenceConfig() ConfidenceConfig {
	return ConfidenceConfig{
		RegionBoostStep: 0.2,
		MaxRegionBoost:  1.5,
		CurrencyBoost:   0.10,
		TimingBoost:     0.05,
		MaxConfidence:   0.99,
	}
}

// DefaultDetectionConfig returns the balanced configuration
func DefaultDetectionConfig() *DetectionConfig {
	return &DetectionConfig{
		TimeWindowHours:         72,
		SimilarityThreshold:     0.85,
		AlertThreshold:          0.75,
		VendorVarianceThreshold: 0.10,
		VendorNameThreshold:     0.8,
		SequentialHours:         24,
		Weights:                 DefaultWeights(),
		Confidence:              DefaultConfidenceConfig(),
		Rates:                   DefaultRates(),
	}
}

// StrictDetectionConfig raises the thresholds and narrows the window to cut
// false positives
func StrictDetectionConfig() *DetectionConfig {
	config := DefaultDetectionConfig()
	config.TimeWindowHours = 48
	config.SimilarityThreshold = 0.90
	config.AlertThreshold = 0.85
	config.VendorVarianceThreshold = 0.05
	config.VendorNameThreshold = 0.85
	return config
}

// RelaxedDetectionConfig widens the window and lowers thresholds for
// exploratory sweeps over historical data
func RelaxedDetectionConfig() *DetectionConfig {
	config := DefaultDetectionConfig()
	config.TimeWindowHours = 168
	config.SimilarityThreshold = 0.75
	config.AlertThreshold = 0.65
	config.VendorVarianceThreshold = 0.15
	config.VendorNameThreshold = 0.7
	return config
}

// TimeWindow returns the window as a duration
func (dc *DetectionConfig) TimeWindow() time.Duration {
	return time.Duration(dc.TimeWindowHours * float64(time.Hour))
}

// Validate checks if the detection configuration is valid
func (dc *DetectionConfig) Validate() error {
	if dc.TimeWindowHours <= 0 {
		return fmt.Errorf("time window hours must be positive: %f", dc.TimeWindowHours)
	}

	if err := dc.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}

	// Overall similarity tops out at the weight total, not at 1.0
	if dc.SimilarityThreshold < 0.0 || dc.SimilarityThreshold > dc.Weights.Total() {
		return fmt.Errorf("similarity threshold must be between 0.0 and the weight total %.2f: %f",
			dc.Weights.Total(), dc.SimilarityThreshold)
	}

	if dc.AlertThreshold < 0.0 || dc.AlertThreshold > 1.0 {
		return fmt.Errorf("alert threshold must be between 0.0 and 1.0: %f", dc.AlertThreshold)
	}

	if dc.VendorVarianceThreshold < 0.0 || dc.VendorVarianceThreshold > 1.0 {
		return fmt.Errorf("vendor variance threshold must be between 0.0 and 1.0: %f", dc.VendorVarianceThreshold)
	}

	if dc.VendorNameThreshold < 0.0 || dc.VendorNameThreshold > 1.0 {
		return fmt.Errorf("vendor name threshold must be between 0.0 and 1.0: %f", dc.VendorNameThreshold)
	}

	if dc.SequentialHours < 0 {
		return fmt.Errorf("sequential hours cannot be negative: %f", dc.SequentialHours)
	}

	if err := dc.Confidence.Validate(); err != nil {
		return fmt.Errorf("invalid confidence settings: %w", err)
	}

	for code, rate := range dc.Rates {
		if rate <= 0 {
			return fmt.Errorf("conversion rate for %s must be positive: %f", code, rate)
		}
	}

	return nil
}

// Validate checks the weights. Each must lie in [0, 1] and at least one must
// be positive; they need not sum to 1.0.
func (sw *SimilarityWeights) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"content", sw.Content},
		{"po", sw.PO},
		{"address", sw.Address},
		{"line items", sw.LineItems},
	}

	for _, f := range fields {
		if f.value < 0.0 || f.value > 1.0 {
			return fmt.Errorf("%s weight must be between 0.0 and 1.0: %f", f.name, f.value)
		}
	}

	if sw.Total() <= 0 {
		return fmt.Errorf("at least one weight must be positive")
	}

	return nil
}

// Total returns the sum of all weights, which is the highest attainable overall similarity
func (sw *SimilarityWeights) Total() float64 {
	return sw.Content + sw.PO + sw.Address + sw.LineItems
}

// Validate checks the aggregation constants
func (cc *ConfidenceConfig) Validate() error {
	if cc.RegionBoostStep < 0 {
		return fmt.Errorf("region boost step cannot be negative: %f", cc.RegionBoostStep)
	}
	if cc.MaxRegionBoost < 1.0 {
		return fmt.Errorf("max region boost must be at least 1.0: %f", cc.MaxRegionBoost)
	}
	if cc.CurrencyBoost < 0 || cc.TimingBoost < 0 {
		return fmt.Errorf("confidence boosts cannot be negative")
	}
	if cc.MaxConfidence <= 0 || cc.MaxConfidence >= 1.0 {
		return fmt.Errorf("max confidence must be in (0.0, 1.0): %f", cc.MaxConfidence)
	}
	return nil
}

// Clone creates a deep copy of the detection configuration
func (dc *DetectionConfig) Clone() *DetectionConfig {
	if dc == nil {
		return nil
	}

	clone := *dc
	if dc.Rates != nil {
		clone.Rates = make(RateTable, len(dc.Rates))
		for code, rate := range dc.Rates {
			clone.Rates[code] = rate
		}
	}
	return &clone
}

// String returns a human-readable description of the configuration
func (dc *DetectionConfig) String() string {
	return fmt.Sprintf("DetectionConfig{Window: %.0fh, Similarity: %.2f, Alert: %.2f, Variance: %.2f, WeightTotal: %.2f}",
		dc.TimeWindowHours, dc.SimilarityThreshold, dc.AlertThreshold, dc.VendorVarianceThreshold, dc.Weights.Total())
}
