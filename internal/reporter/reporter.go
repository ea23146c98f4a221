// Package reporter renders detection runs for people and for other tools.
//
// The detection engine only returns values; everything a human reads about a
// run is produced here.
//
// Supported output formats:
//   - Console: styled terminal report with alerts, evidence and run statistics
//   - JSON: the full run result for programmatic consumption
//   - CSV: one row per processed invoice for spreadsheet review
//   - XLSX: an Excel workbook with invoice, alert and summary sheets
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"invoice-fraud-detector/internal/detector"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format should not be written to a terminal
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	// Detail level options
	IncludeStoredInvoices  bool `json:"include_stored_invoices" mapstructure:"include_stored_invoices"`
	IncludeEvidence        bool `json:"include_evidence" mapstructure:"include_evidence"`
	IncludeBusinessImpact  bool `json:"include_business_impact" mapstructure:"include_business_impact"`
	IncludeVendorChecks    bool `json:"include_vendor_checks" mapstructure:"include_vendor_checks"`
	IncludeProcessingStats bool `json:"include_processing_stats" mapstructure:"include_processing_stats"`

	// Console formatting options
	UseColors     bool `json:"use_colors" mapstructure:"use_colors"`
	TableMaxWidth int  `json:"table_max_width" mapstructure:"table_max_width"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers" mapstructure:"csv_headers"`

	// SortByConfidence orders alerts by descending confidence instead of detection order
	SortByConfidence bool `json:"sort_by_confidence" mapstructure:"sort_by_confidence"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                 FormatConsole,
		IncludeStoredInvoices:  true,
		IncludeEvidence:        true,
		IncludeBusinessImpact:  true,
		IncludeVendorChecks:    true,
		IncludeProcessingStats: true,
		UseColors:              true,
		TableMaxWidth:          120,
		CSVDelimiter:           ',',
		CSVHeaders:             true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}

	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}

	return nil
}

// ReportGenerator generates detection reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport renders a run result and writes it to the provided writer
func (rg *ReportGenerator) GenerateReport(result *detector.RunResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("run result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *detector.RunResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(rg.filterResultForOutput(result))
}

var csvHeaders = []string{
	"Run_ID",
	"Row",
	"Invoice_ID",
	"Region",
	"Currency",
	"Amount",
	"Submitted_At",
	"Status",
	"Candidates",
	"Matches",
	"Confidence_Score",
	"Alert_ID",
	"Affected_Regions",
	"Potential_Loss_USD",
	"Action_Tier",
	"Vendor_Status",
	"Vendor_Risk",
}

// generateCSVReport writes one record per processed invoice
func (rg *ReportGenerator) generateCSVReport(result *detector.RunResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(csvHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, row := range rg.selectRows(result) {
		if err := csvWriter.Write(rowRecord(result.RunID, row)); err != nil {
			return fmt.Errorf("failed to write invoice record: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// rowRecord flattens one run row into the csvHeaders column order
func rowRecord(runID string, row detector.RunRow) []string {
	d := row.Decision
	record := []string{
		runID,
		fmt.Sprintf("%d", row.Index+1),
		d.Invoice.InvoiceID,
		d.Invoice.Region,
		d.Invoice.Currency,
		d.Invoice.TotalAmount.StringFixed(2),
		d.Invoice.SubmittedAt.UTC().Format(time.RFC3339),
		d.Invoice.Status.String(),
		fmt.Sprintf("%d", d.Candidates),
		fmt.Sprintf("%d", d.Matches),
		fmt.Sprintf("%.3f", d.Confidence),
		"", "", "", "",
		"", "",
	}

	if alert := d.Alert; alert != nil {
		record[11] = alert.AlertID
		record[12] = strings.Join(alert.AffectedRegions, ";")
		record[13] = alert.PotentialLoss.StringFixed(2)
		record[14] = string(alert.RecommendedAction.Tier)
	}

	if row.Vendor != nil {
		record[15] = string(row.Vendor.Status)
		record[16] = string(row.Vendor.Risk)
	}

	return record
}

// selectRows returns the rows the configuration asks for, in input order
func (rg *ReportGenerator) selectRows(result *detector.RunResult) []detector.RunRow {
	if rg.config.IncludeStoredInvoices {
		return result.Rows
	}
	return result.Flagged()
}

// flaggedRows returns the rows that raised an alert, sorted if configured
func (rg *ReportGenerator) flaggedRows(result *detector.RunResult) []detector.RunRow {
	rows := result.Flagged()

	if rg.config.SortByConfidence {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Decision.Alert.ConfidenceScore > rows[j].Decision.Alert.ConfidenceScore
		})
	}
	return rows
}

func (rg *ReportGenerator) filterResultForOutput(result *detector.RunResult) map[string]interface{} {
	output := map[string]interface{}{
		"run_id":       result.RunID,
		"started_at":   result.StartedAt,
		"completed_at": result.CompletedAt,
		"alerts":       result.Alerts,
	}

	if result.Alerts == nil {
		output["alerts"] = []interface{}{}
	}

	output["rows"] = rg.selectRows(result)

	if rg.config.IncludeProcessingStats {
		output["summary"] = result.Summary
	}

	return output
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
