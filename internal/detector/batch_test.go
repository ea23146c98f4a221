package detector

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"

	"invoice-fraud-detector/internal/scenarios"
	"invoice-fraud-detector/internal/vendors"
	"invoice-fraud-detector/pkg/errors"
)

func TestRunnerDemo(t *testing.T) {
	s := scenarios.MultiRegionalAttack()
	engine, _ := newTestEngine(t, s.Config)

	runner, err := NewRunner(engine, &RunnerConfig{VerifyVendors: true, ShowProgress: true})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), s.Submissions)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(result.Rows))
	}
	if len(result.Alerts) != 2 {
		t.Errorf("got %d alerts, want 2", len(result.Alerts))
	}
	if len(result.Flagged()) != 2 {
		t.Errorf("got %d flagged rows, want 2", len(result.Flagged()))
	}
	if result.RunID == "" {
		t.Error("RunID should be set")
	}
	if result.CompletedAt.Before(result.StartedAt) {
		t.Errorf("CompletedAt %v is before StartedAt %v", result.CompletedAt, result.StartedAt)
	}

	for i, row := range result.Rows {
		if row.Index != i {
			t.Errorf("row %d has index %d", i, row.Index)
		}
		if row.Vendor == nil {
			t.Fatalf("row %d has no vendor verification", i)
		}
	}
	if got := result.Rows[0].Vendor; got.Status != vendors.StatusLegitimate || got.MatchedVendor != "Microsoft" {
		t.Errorf("row 0 vendor = %s/%s, want legitimate/Microsoft", got.Status, got.MatchedVendor)
	}
	if got := result.Rows[1].Vendor.Status; got != vendors.StatusUnknown {
		t.Errorf("row 1 vendor status = %s, want %s", got, vendors.StatusUnknown)
	}

	summary := result.Summary
	if summary.TotalProcessed != 4 || summary.FraudsDetected != 2 || summary.RegistrySize != 4 {
		t.Errorf("processed/frauds/registry = %d/%d/%d, want 4/2/4",
			summary.TotalProcessed, summary.FraudsDetected, summary.RegistrySize)
	}
	if got := summary.TotalSavings.StringFixed(2); got != "165040.00" {
		t.Errorf("TotalSavings = %s, want 165040.00", got)
	}
}

func TestRunnerWithoutVendorVerification(t *testing.T) {
	s := scenarios.UnrelatedInvoices(base)
	engine, _ := newTestEngine(t, s.Config)

	runner, err := NewRunner(engine, nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	result, err := runner.Run(context.Background(), s.Submissions)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Alerts) != 0 {
		t.Errorf("got %d alerts, want none", len(result.Alerts))
	}
	for i, row := range result.Rows {
		if row.Vendor != nil {
			t.Errorf("row %d has a vendor verification", i)
		}
	}
	if result.Summary.DetectionRate != 0 {
		t.Errorf("DetectionRate = %f, want 0", result.Summary.DetectionRate)
	}
}

func TestRunnerCancelled(t *testing.T) {
	s := scenarios.MultiRegionalAttack()
	engine, reg := newTestEngine(t, s.Config)

	runner, err := NewRunner(engine, nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := runner.Run(ctx, s.Submissions)
	if err == nil {
		t.Fatal("Run() with a cancelled context should fail")
	}
	if result == nil {
		t.Fatal("Run() should return the partial result")
	}
	if len(result.Rows) != 0 {
		t.Errorf("got %d rows, want none", len(result.Rows))
	}

	detectorErr, ok := errors.AsDetectorError(err)
	if !ok {
		t.Fatalf("error %v is not a DetectorError", err)
	}
	if detectorErr.Code != errors.CodeCancelled {
		t.Errorf("Code = %s, want %s", detectorErr.Code, errors.CodeCancelled)
	}

	if n := registrySize(t, reg); n != 0 {
		t.Errorf("registry size = %d, want 0", n)
	}
}

func TestNewRunnerRequiresEngine(t *testing.T) {
	if _, err := NewRunner(nil, nil); err == nil {
		t.Error("NewRunner(nil) should fail")
	}
}

func TestRunRowJSON(t *testing.T) {
	verification := vendors.NewVerifier(nil).Verify("SAP SE")

	tests := []struct {
		name       string
		row        RunRow
		wantVendor bool
	}{
		{"without vendor check", RunRow{Index: 3}, false},
		{"with vendor check", RunRow{Index: 3, Vendor: &verification}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.row)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			var fields map[string]interface{}
			if err := json.Unmarshal(data, &fields); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if fields["index"] != float64(3) {
				t.Errorf("index = %v, want 3", fields["index"])
			}
			if _, ok := fields["decision"]; !ok {
				t.Errorf("decision key missing from %s", data)
			}
			if _, ok := fields["vendor"]; ok != tt.wantVendor {
				t.Errorf("vendor key present = %v, want %v in %s", ok, tt.wantVendor, data)
			}
		})
	}
}
