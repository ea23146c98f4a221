package matcher

import (
	"strings"
	"testing"
)

func TestDefaultDetectionConfig(t *testing.T) {
	config := DefaultDetectionConfig()

	if err := config.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if config.TimeWindow().Hours() != 72 {
		t.Errorf("expected a 72h window, got %v", config.TimeWindow())
	}
	if config.SimilarityThreshold != 0.85 || config.AlertThreshold != 0.75 {
		t.Errorf("unexpected thresholds: %s", config)
	}
}

// The four field weights intentionally sum to 1.30 rather than 1.0
func TestDefaultWeightTotal(t *testing.T) {
	weights := DefaultWeights()
	if !approxEqual(weights.Total(), 1.30) {
		t.Errorf("weight total = %v, want 1.30", weights.Total())
	}
	if err := weights.Validate(); err != nil {
		t.Errorf("default weights should validate: %v", err)
	}
}

func TestPresetsValidate(t *testing.T) {
	presets := map[string]*DetectionConfig{
		"default": DefaultDetectionConfig(),
		"strict":  StrictDetectionConfig(),
		"relaxed": RelaxedDetectionConfig(),
	}

	for name, config := range presets {
		if err := config.Validate(); err != nil {
			t.Errorf("%s preset invalid: %v", name, err)
		}
	}

	if StrictDetectionConfig().AlertThreshold <= DefaultDetectionConfig().AlertThreshold {
		t.Error("strict preset should raise the alert threshold")
	}
	if RelaxedDetectionConfig().TimeWindowHours <= DefaultDetectionConfig().TimeWindowHours {
		t.Error("relaxed preset should widen the window")
	}
}

func TestDetectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *DetectionConfig)
		errMsg string
	}{
		{"zero window", func(c *DetectionConfig) { c.TimeWindowHours = 0 }, "time window"},
		{"alert above one", func(c *DetectionConfig) { c.AlertThreshold = 1.2 }, "alert threshold"},
		{"similarity above weight total", func(c *DetectionConfig) { c.SimilarityThreshold = 1.31 }, "similarity threshold"},
		{"negative variance", func(c *DetectionConfig) { c.VendorVarianceThreshold = -0.1 }, "variance"},
		{"weight out of range", func(c *DetectionConfig) { c.Weights.LineItems = 1.5 }, "line items weight"},
		{"all weights zero", func(c *DetectionConfig) { c.Weights = SimilarityWeights{} }, "at least one weight"},
		{"region boost below one", func(c *DetectionConfig) { c.Confidence.MaxRegionBoost = 0.5 }, "max region boost"},
		{"above certainty", func(c *DetectionConfig) { c.Confidence.MaxConfidence = 1.5 }, "max confidence"},
		{"exact certainty", func(c *DetectionConfig) { c.Confidence.MaxConfidence = 1.0 }, "max confidence"},
		{"bad rate", func(c *DetectionConfig) { c.Rates["EUR"] = 0 }, "conversion rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultDetectionConfig()
			tt.mutate(config)
			err := config.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not mention %q", err, tt.errMsg)
			}
		})
	}

	config := DefaultDetectionConfig()
	config.AlertThreshold = 0.5
	if err := config.Validate(); err != nil {
		t.Errorf("alert threshold below the action tiers should be allowed: %v", err)
	}
}

func TestDetectionConfig_Clone(t *testing.T) {
	original := DefaultDetectionConfig()
	clone := original.Clone()

	clone.Rates["EUR"] = 2.0
	clone.Weights.PO = 0.1

	if original.Rates["EUR"] != 1.18 {
		t.Error("rate table was shared between clones")
	}
	if original.Weights.PO != 0.30 {
		t.Error("weights were shared between clones")
	}

	var nilConfig *DetectionConfig
	if nilConfig.Clone() != nil {
		t.Error("cloning nil should return nil")
	}
}

func TestNewScorerRejectsInvalidConfig(t *testing.T) {
	config := DefaultDetectionConfig()
	config.TimeWindowHours = -1

	if _, err := NewScorer(config); err == nil {
		t.Error("expected NewScorer to validate its configuration")
	}
}
