package matcher

import (
	"math"

	"invoice-fraud-detector/internal/models"
)

// RegionBoost returns the corroboration multiplier for n matches
func RegionBoost(n int, cc ConfidenceConfig) float64 {
	if n <= 1 {
		return 1.0
	}
	return math.Min(cc.MaxRegionBoost, 1.0+cc.RegionBoostStep*float64(n-1))
}

// Aggregate folds the matches that passed the similarity threshold into one
// confidence score:
//
//	max(overall) * RegionBoost(len) + CurrencyBoost*suspiciousCurrency + TimingBoost*suspiciousTiming
//
// clamped to [0, MaxConfidence]. An empty set scores 0.
func Aggregate(matches []models.MatchEvidence, cc ConfidenceConfig) float64 {
	if len(matches) == 0 {
		return 0.0
	}

	best := math.Inf(-1)
	for _, m := range matches {
		best = math.Max(best, m.Similarity.Overall)
	}

	confidence := best * RegionBoost(len(matches), cc)

	for _, m := range matches {
		if m.Currency.Suspicious {
			confidence += cc.CurrencyBoost
		}
		if m.Timing.Suspicious {
			confidence += cc.TimingBoost
		}
	}

	if math.IsNaN(confidence) {
		return 0.0
	}
	return math.Max(0.0, math.Min(cc.MaxConfidence, confidence))
}
