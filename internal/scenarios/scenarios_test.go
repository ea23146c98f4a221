package scenarios

import (
	"testing"
	"time"

	"invoice-fraud-detector/internal/fingerprint"
)

func TestScenariosAreWellFormed(t *testing.T) {
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	for _, s := range All(base) {
		t.Run(s.Name, func(t *testing.T) {
			if len(s.Submissions) == 0 {
				t.Fatal("scenario has no submissions")
			}
			if err := s.Config.Validate(); err != nil {
				t.Fatalf("Config.Validate() error = %v", err)
			}

			ids := make(map[string]bool)
			for i, sub := range s.Submissions {
				if sub.InvoiceID == "" {
					t.Errorf("submission %d has no invoice id", i)
				}
				if ids[sub.InvoiceID] {
					t.Errorf("duplicate id %s", sub.InvoiceID)
				}
				ids[sub.InvoiceID] = true
				if i > 0 && sub.SubmittedAt.Before(s.Submissions[i-1].SubmittedAt) {
					t.Errorf("submission %s is out of time order", sub.InvoiceID)
				}
			}
			for _, id := range s.ExpectFlagged {
				if !ids[id] {
					t.Errorf("expected flag on unknown invoice %s", id)
				}
			}
		})
	}
}

func TestDemoInvoicesShareReference(t *testing.T) {
	extractor := fingerprint.NewExtractor(nil)
	demo := MultiRegionalAttack()

	refs := make(map[string]string)
	for _, sub := range demo.Submissions {
		refs[sub.InvoiceID] = extractor.Extract(sub.Text).POReference
	}

	if refs["DE-2024-1001"] != "PO-APT-2024-SFT-789" {
		t.Errorf("DE reference = %q, want PO-APT-2024-SFT-789", refs["DE-2024-1001"])
	}
	for _, id := range []string{"US-2024-2156", "UK-2024-3310"} {
		if refs[id] != refs["DE-2024-1001"] {
			t.Errorf("%s reference = %q, want %q", id, refs[id], refs["DE-2024-1001"])
		}
	}
	if refs["IN-2024-0420"] == refs["DE-2024-1001"] {
		t.Errorf("India invoice shares reference %q", refs["IN-2024-0420"])
	}
}

func TestByName(t *testing.T) {
	base := time.Now()
	if ByName("outside-window", base) == nil {
		t.Error("ByName(outside-window) = nil")
	}
	if ByName("missing", base) != nil {
		t.Error("ByName(missing) should be nil")
	}
}
