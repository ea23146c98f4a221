package vendors

import (
	"math"
	"reflect"
	"testing"
)

func TestVerify(t *testing.T) {
	verifier := NewVerifier(nil)

	tests := []struct {
		name       string
		vendor     string
		wantStatus Status
		wantRisk   RiskLevel
		wantMatch  string
	}{
		{"regional subsidiary", "Microsoft Deutschland GmbH", StatusLegitimate, RiskLow, "Microsoft"},
		{"case differences", "SAP SE", StatusLegitimate, RiskLow, "SAP"},
		{"unrelated vendor", "Acme Widgets Ltd", StatusUnknown, RiskMedium, ""},
		{"misspelling", "Mircosoft Corporation", StatusFraudulent, RiskCritical, ""},
		{"misspelling in lower case", "amazoon web services", StatusFraudulent, RiskCritical, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := verifier.Verify(tt.vendor)
			if result.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", result.Status, tt.wantStatus)
			}
			if result.Risk != tt.wantRisk {
				t.Errorf("Risk = %s, want %s", result.Risk, tt.wantRisk)
			}
			if result.MatchedVendor != tt.wantMatch {
				t.Errorf("MatchedVendor = %q, want %q", result.MatchedVendor, tt.wantMatch)
			}
		})
	}
}

func TestVerifyConfidence(t *testing.T) {
	verifier := NewVerifier(nil)

	// "microsoft deutschland" is a 21 character prefix of the 26 character name
	result := verifier.Verify("Microsoft Deutschland GmbH")
	if math.Abs(result.Confidence-42.0/47.0) > 1e-9 {
		t.Errorf("Confidence = %f, want %f", result.Confidence, 42.0/47.0)
	}

	fraud := verifier.Verify("Microsooft Corp")
	if fraud.Confidence != 0.95 {
		t.Errorf("fraud Confidence = %f, want 0.95", fraud.Confidence)
	}
	if want := []string{"Misspelled legitimate vendor name"}; !reflect.DeepEqual(fraud.FraudIndicators, want) {
		t.Errorf("FraudIndicators = %v, want %v", fraud.FraudIndicators, want)
	}
}

func TestVerifyEmptyName(t *testing.T) {
	result := NewVerifier(nil).Verify("   ")

	if result.VendorName != NotDetected {
		t.Errorf("VendorName = %q, want %q", result.VendorName, NotDetected)
	}
	if result.Status != StatusUnknown || result.Risk != RiskMedium {
		t.Errorf("Status/Risk = %s/%s, want %s/%s", result.Status, result.Risk, StatusUnknown, RiskMedium)
	}
	if result.Confidence != 0.5 {
		t.Errorf("Confidence = %f, want 0.5", result.Confidence)
	}
}

func TestCustomVendorList(t *testing.T) {
	verifier := NewVerifier([]KnownVendor{
		{Name: "Globex", Variations: []string{"Globex Corporation"}, Risk: RiskMedium},
	})

	if got := verifier.Verify("Globex Corporation").Status; got != StatusLegitimate {
		t.Errorf("Globex Corporation status = %s, want %s", got, StatusLegitimate)
	}
	if got := verifier.Verify("Microsoft Corporation").Status; got != StatusUnknown {
		t.Errorf("Microsoft Corporation status = %s, want %s", got, StatusUnknown)
	}
}
