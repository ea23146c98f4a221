package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"invoice-fraud-detector/pkg/errors"
)

const attackFile = "../../../testdata/invoices/multi_regional_attack.csv"

// setDetectDefaults mirrors the flag defaults after viper.Reset drops the bindings
func setDetectDefaults(input ...string) {
	viper.Set("input", input)
	viper.Set("input-format", "auto")
	viper.Set("output-format", "console")
	viper.Set("profile", "default")
}

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "valid.csv")
	if err := os.WriteFile(validFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name        string
		filePath    string
		expectError bool
	}{
		{"valid file", validFile, false},
		{"empty path", "", true},
		{"non-existent file", "/non/existent/file.csv", true},
		{"directory instead of file", tmpDir, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, "test file")

			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateDetectFlags(t *testing.T) {
	tmpDir := t.TempDir()
	inputFile := filepath.Join(tmpDir, "invoices.csv")
	if err := os.WriteFile(inputFile, []byte("region,invoice_text\nGermany,Office 365\n"), 0644); err != nil {
		t.Fatalf("failed to create input file: %v", err)
	}

	tests := []struct {
		name          string
		setupFlags    func()
		expectError   bool
		errorContains string
	}{
		{
			name:        "valid flags",
			setupFlags:  func() { setDetectDefaults(inputFile) },
			expectError: false,
		},
		{
			name: "missing input",
			setupFlags: func() {
				setDetectDefaults()
			},
			expectError:   true,
			errorContains: "at least one input file is required",
		},
		{
			name: "input files that do not exist",
			setupFlags: func() {
				setDetectDefaults(inputFile, "/missing/a.csv", "/missing/b.csv")
			},
			expectError:   true,
			errorContains: "Found 2 validation errors",
		},
		{
			name: "invalid input format",
			setupFlags: func() {
				setDetectDefaults(inputFile)
				viper.Set("input-format", "xml")
			},
			expectError:   true,
			errorContains: "unsupported input format",
		},
		{
			name: "invalid output format",
			setupFlags: func() {
				setDetectDefaults(inputFile)
				viper.Set("output-format", "pdf")
			},
			expectError:   true,
			errorContains: "invalid output format",
		},
		{
			name: "xlsx without output file",
			setupFlags: func() {
				setDetectDefaults(inputFile)
				viper.Set("output-format", "xlsx")
			},
			expectError:   true,
			errorContains: "requires --output-file",
		},
		{
			name: "unknown profile",
			setupFlags: func() {
				setDetectDefaults(inputFile)
				viper.Set("profile", "paranoid")
			},
			expectError:   true,
			errorContains: "unknown detection profile",
		},
		{
			name: "negative window",
			setupFlags: func() {
				setDetectDefaults(inputFile)
				viper.Set("window-hours", -1)
			},
			expectError:   true,
			errorContains: "window hours cannot be negative",
		},
		{
			name: "alert threshold out of range",
			setupFlags: func() {
				setDetectDefaults(inputFile)
				viper.Set("alert-threshold", 1.5)
			},
			expectError:   true,
			errorContains: "alert threshold must be between",
		},
		{
			name: "sqlite without path",
			setupFlags: func() {
				setDetectDefaults(inputFile)
				viper.Set("registry", "sqlite")
			},
			expectError:   true,
			errorContains: "registry path is required",
		},
		{
			name: "missing rates file",
			setupFlags: func() {
				setDetectDefaults(inputFile)
				viper.Set("rates-file", filepath.Join(tmpDir, "rates.yaml"))
			},
			expectError:   true,
			errorContains: "rates-file does not exist",
		},
		{
			name: "missing output directory",
			setupFlags: func() {
				setDetectDefaults(inputFile)
				viper.Set("output-file", filepath.Join(tmpDir, "nope", "report.json"))
			},
			expectError:   true,
			errorContains: "output directory does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			tt.setupFlags()

			cmd := &cobra.Command{}
			err := validateDetectFlags(cmd, []string{})

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				} else if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("expected error to contain '%s', got: %v", tt.errorContains, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRunDetectJSONReport(t *testing.T) {
	viper.Reset()
	setDetectDefaults(attackFile)
	viper.Set("output-format", "json")
	viper.Set("verify-vendors", true)

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := validateDetectFlags(cmd, nil); err != nil {
		t.Fatalf("flag validation failed: %v", err)
	}
	if err := runDetect(cmd, nil); err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	var report map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v\n%s", err, out.String())
	}

	alerts, ok := report["alerts"].([]interface{})
	if !ok {
		t.Fatalf("expected alerts array, got %T", report["alerts"])
	}
	if len(alerts) != 2 {
		t.Errorf("expected 2 alerts, got %d", len(alerts))
	}

	rows, _ := report["rows"].([]interface{})
	if len(rows) != 4 {
		t.Errorf("expected 4 rows, got %d", len(rows))
	}

	for _, id := range []string{"FRAUD-20240311-113000-USA", "FRAUD-20240311-153000-UK"} {
		if !strings.Contains(out.String(), id) {
			t.Errorf("expected alert %s in report", id)
		}
	}
}

func TestRunDetectPersistsRegistry(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "registry.db")
	reportPath := filepath.Join(tmpDir, "report.csv")

	viper.Reset()
	setDetectDefaults(attackFile)
	viper.Set("output-format", "csv")
	viper.Set("output-file", reportPath)
	viper.Set("registry-path", dbPath)

	cmd := &cobra.Command{}
	if err := validateDetectFlags(cmd, nil); err != nil {
		t.Fatalf("flag validation failed: %v", err)
	}
	if err := runDetect(cmd, nil); err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	report, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if lines := strings.Count(strings.TrimSpace(string(report)), "\n"); lines < 4 {
		t.Errorf("expected header and 4 invoice rows, got %d line breaks", lines)
	}

	statsRegistryPath = dbPath
	statsJSON = false

	var out bytes.Buffer
	statsCmd := &cobra.Command{}
	statsCmd.SetOut(&out)

	if err := runStats(statsCmd, nil); err != nil {
		t.Fatalf("stats failed: %v", err)
	}

	output := out.String()
	for _, want := range []string{"Invoices: 4", "Germany", "flagged", "stored", "Supported currencies:"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected stats output to contain %q\n%s", want, output)
		}
	}
}

func TestRunDemo(t *testing.T) {
	tests := []struct {
		name        string
		scenario    string
		format      string
		contains    []string
		expectError bool
	}{
		{
			name:     "multi-regional attack",
			scenario: "multi-regional-attack",
			format:   "console",
			contains: []string{"MULTI-REGIONAL FRAUD DETECTION REPORT", "FRAUD-20240311-153000-UK", "VENDOR VERIFICATION"},
		},
		{
			name:     "outside window",
			scenario: "outside-window",
			format:   "console",
			contains: []string{"No multi-regional duplicates detected."},
		},
		{
			name:     "json",
			scenario: "cross-region-duplicate",
			format:   "json",
			contains: []string{`"alerts"`, `"summary"`},
		},
		{
			name:        "unknown scenario",
			scenario:    "nothing",
			format:      "console",
			expectError: true,
		},
		{
			name:        "xlsx to stdout",
			scenario:    "multi-regional-attack",
			format:      "xlsx",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			demoScenario = tt.scenario
			demoOutputFormat = tt.format
			demoOutputFile = ""
			demoVerifyVendors = true

			cmd := &cobra.Command{}
			var out bytes.Buffer
			cmd.SetOut(&out)

			err := runDemo(cmd, nil)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("demo failed: %v", err)
			}

			for _, want := range tt.contains {
				if !strings.Contains(out.String(), want) {
					t.Errorf("expected output to contain %q", want)
				}
			}
		})
	}
}

func TestCLIErrorHandler(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		contains     string
	}{
		{"nil error", nil, 0, ""},
		{"file error", errors.FileError(errors.CodeFileNotFound, "/tmp/x.csv", os.ErrNotExist), 2, "File error help"},
		{"configuration error", errors.ConfigurationError(errors.CodeInvalidConfig, "profile", "x", nil), 4, "Configuration error help"},
		{"storage error", errors.StorageError(errors.CodeStorageUnavailable, "open", fmt.Errorf("locked")), 6, "Storage error help"},
		{"wrapped not-exist", fmt.Errorf("open: %w", os.ErrNotExist), 2, "File not found"},
		{"plain error", fmt.Errorf("boom"), 1, "Error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			handler := NewCLIErrorHandler()
			handler.out = &out

			code := handler.HandleError(tt.err)
			if code != tt.expectedCode {
				t.Errorf("expected exit code %d, got %d", tt.expectedCode, code)
			}
			if tt.contains != "" && !strings.Contains(out.String(), tt.contains) {
				t.Errorf("expected output to contain %q, got:\n%s", tt.contains, out.String())
			}
		})
	}
}

func TestFormatValidationErrors(t *testing.T) {
	if got := FormatValidationErrors(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}

	single := FormatValidationErrors([]error{fmt.Errorf("bad")})
	if single != "Validation error: bad" {
		t.Errorf("unexpected single error format: %q", single)
	}

	var many []error
	for i := 0; i < 12; i++ {
		many = append(many, fmt.Errorf("error %d", i))
	}
	formatted := FormatValidationErrors(many)
	if !strings.Contains(formatted, "Found 12 validation errors") {
		t.Errorf("expected count header, got %q", formatted)
	}
	if !strings.Contains(formatted, "... and 2 more errors") {
		t.Errorf("expected truncation line, got %q", formatted)
	}
}

func TestFlagBinding(t *testing.T) {
	for _, name := range []string{
		"input", "input-format", "layout", "output-format", "output-file",
		"profile", "window-hours", "similarity-threshold", "alert-threshold",
		"registry", "registry-path", "rates-file", "verify-vendors", "vendors-file", "progress",
	} {
		t.Run(name, func(t *testing.T) {
			if detectCmd.Flags().Lookup(name) == nil {
				t.Errorf("flag '%s' not found", name)
			}
		})
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{"detect": false, "demo": false, "stats": false, "generate": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}

func TestGenerateThenDetect(t *testing.T) {
	output := filepath.Join(t.TempDir(), "generated.csv")

	genCount = 40
	genDuplicateRate = 0.25
	genSeed = 99
	genStart = "2024-03-01"
	genSpanDays = 10
	genOutput = output

	cmd := &cobra.Command{}
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)

	if err := validateGenerateFlags(cmd, nil); err != nil {
		t.Fatalf("flag validation failed: %v", err)
	}
	if err := runGenerate(cmd, nil); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.Contains(stderr.String(), "Generated") {
		t.Errorf("expected generation summary, got %q", stderr.String())
	}

	viper.Reset()
	setDetectDefaults(output)
	viper.Set("output-format", "csv")

	var out bytes.Buffer
	detect := &cobra.Command{}
	detect.SetOut(&out)

	if err := validateDetectFlags(detect, nil); err != nil {
		t.Fatalf("flag validation failed: %v", err)
	}
	if err := runDetect(detect, nil); err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if !strings.Contains(out.String(), "flagged") {
		t.Errorf("expected flagged rows in the CSV report")
	}
}

func TestValidateGenerateFlags(t *testing.T) {
	genCount, genDuplicateRate, genSpanDays, genStart, genOutput = 10, 0.1, 5, "2024-01-01", ""
	if err := validateGenerateFlags(&cobra.Command{}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	genDuplicateRate = 1.5
	if err := validateGenerateFlags(&cobra.Command{}, nil); err == nil {
		t.Error("expected error for duplicate rate above 1")
	}

	genDuplicateRate, genStart = 0.1, "01/01/2024"
	if err := validateGenerateFlags(&cobra.Command{}, nil); err == nil {
		t.Error("expected error for malformed start date")
	}
	genStart = "2024-01-01"
}
