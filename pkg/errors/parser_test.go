package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestEnhancedParseErrorWithoutCause(t *testing.T) {
	err := InvalidAmountError("invoices.csv", 4, "total_amount", "fifty")

	if err.Category != CategoryParse {
		t.Errorf("expected parse category, got %s", err.Category)
	}
	if err.Code != CodeInvalidAmount {
		t.Errorf("expected invalid amount code, got %s", err.Code)
	}
	if !err.Recoverable {
		t.Error("expected invalid amount to be recoverable")
	}
	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}

	msg := err.Error()
	if !strings.Contains(msg, "at invoices.csv:4 column 'total_amount'") {
		t.Errorf("expected location in message, got %q", msg)
	}
}

func TestGetDetailedError(t *testing.T) {
	err := InvalidTimestampError("/tmp/in.csv", 7, "submitted_at", "yesterday")
	detail := err.GetDetailedError()

	for _, want := range []string{
		"ERROR: invalid submission timestamp",
		"-> Line: 7",
		"-> Value: 'yesterday'",
		"2024-03-01T09:00:00Z",
	} {
		if !strings.Contains(detail, want) {
			t.Errorf("expected %q in detail:\n%s", want, detail)
		}
	}
}

func TestMissingColumnError(t *testing.T) {
	err := MissingColumnError("in.csv", []string{"invoice_id", "region", "invoice_text"}, []string{"Invoice_ID", " region "})

	if err.Recoverable {
		t.Error("missing columns should not be recoverable")
	}
	if err.Message != "missing required columns: invoice_text" {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func TestParseErrorCollector(t *testing.T) {
	collector := NewParseErrorCollector(3)

	if !collector.Add(EmptyValueError("a.csv", 2, "region")) {
		t.Error("expected to continue after recoverable error")
	}
	if collector.Add(EncodingError("a.csv", 3, errors.New("bad byte"))) {
		t.Error("expected to stop after unrecoverable error")
	}
	if collector.Add(EmptyValueError("a.csv", 4, "region")) {
		t.Error("expected to stop once the limit is reached")
	}

	summary := collector.GetSummary()
	if summary.Total != 3 {
		t.Errorf("expected 3 errors, got %d", summary.Total)
	}
	if !summary.HasCode(CodeEncodingError) {
		t.Error("expected encoding error code in summary")
	}
}

func TestFormatParseErrorsForUser(t *testing.T) {
	if got := FormatParseErrorsForUser(nil); got != "No parse errors" {
		t.Errorf("unexpected output %q", got)
	}

	var errs []*EnhancedParseError
	for i := 0; i < 5; i++ {
		errs = append(errs, EmptyValueError("b.csv", i+2, "region"))
	}
	errs = append(errs, EmptyValueError("a.csv", 2, "region"))

	out := FormatParseErrorsForUser(errs)
	if !strings.Contains(out, "Found 6 parse errors:") {
		t.Errorf("expected header, got:\n%s", out)
	}
	if strings.Index(out, "File: a.csv") > strings.Index(out, "File: b.csv") {
		t.Error("expected files to be listed in name order")
	}
	if !strings.Contains(out, "... and 2 more errors in this file") {
		t.Errorf("expected truncation line, got:\n%s", out)
	}
}
