package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"invoice-fraud-detector/internal/detector"
)

// Workbook sheet names
const (
	SheetInvoices = "Invoices"
	SheetAlerts   = "Alerts"
	SheetEvidence = "Evidence"
	SheetSummary  = "Summary"
)

var (
	alertHeaders = []string{
		"Alert ID",
		"Fraud Type",
		"Confidence",
		"Affected Regions",
		"Invoices",
		"Potential Loss (USD)",
		"Action Tier",
		"Recommended Action",
		"Financial Impact",
		"Created At",
	}

	evidenceHeaders = []string{
		"Alert ID",
		"Matched Invoice",
		"Region",
		"Content",
		"PO",
		"Address",
		"Line Items",
		"Overall",
		"Currency Pair",
		"Variance %",
		"Currency Suspicious",
		"Hours Apart",
		"Timing Pattern",
		"Timing Suspicious",
	}
)

// generateXLSXReport writes a workbook with one sheet per view of the run
func (rg *ReportGenerator) generateXLSXReport(result *detector.RunResult, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetInvoices); err != nil {
		return fmt.Errorf("xlsx rename sheet: %w", err)
	}
	for _, sheet := range []string{SheetAlerts, SheetEvidence, SheetSummary} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("xlsx new sheet %s: %w", sheet, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx header style: %w", err)
	}

	invoiceRows := make([][]interface{}, 0, len(result.Rows))
	for _, row := range rg.selectRows(result) {
		record := rowRecord(result.RunID, row)
		values := make([]interface{}, len(record))
		for i, v := range record {
			values[i] = v
		}
		values[1] = row.Index + 1
		values[5] = row.Decision.Invoice.TotalAmount.InexactFloat64()
		values[10] = row.Decision.Confidence
		invoiceRows = append(invoiceRows, values)
	}
	if err := writeSheet(f, SheetInvoices, csvHeaders, invoiceRows, headerStyle); err != nil {
		return err
	}

	var alertRows, evidenceRows [][]interface{}
	for _, row := range rg.flaggedRows(result) {
		alert := row.Decision.Alert
		alertRows = append(alertRows, []interface{}{
			alert.AlertID,
			alert.FraudType,
			alert.ConfidenceScore,
			strings.Join(alert.AffectedRegions, ", "),
			strings.Join(alert.InvoiceIDs(), ", "),
			alert.PotentialLoss.InexactFloat64(),
			string(alert.RecommendedAction.Tier),
			alert.RecommendedAction.Text,
			alert.BusinessImpact.Financial,
			alert.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})

		for _, ev := range alert.Evidence {
			evidenceRows = append(evidenceRows, []interface{}{
				alert.AlertID,
				ev.InvoiceID,
				ev.Region,
				ev.Similarity.Content,
				ev.Similarity.PO,
				ev.Similarity.Address,
				ev.Similarity.LineItems,
				ev.Similarity.Overall,
				ev.Currency.CurrencyPair,
				ev.Currency.VariancePercent,
				ev.Currency.Suspicious,
				ev.Timing.HoursApart,
				ev.Timing.Pattern,
				ev.Timing.Suspicious,
			})
		}
	}
	if err := writeSheet(f, SheetAlerts, alertHeaders, alertRows, headerStyle); err != nil {
		return err
	}
	if err := writeSheet(f, SheetEvidence, evidenceHeaders, evidenceRows, headerStyle); err != nil {
		return err
	}

	stats := result.Summary
	summaryRows := [][]interface{}{
		{"Run ID", result.RunID},
		{"Invoices Processed", stats.TotalProcessed},
		{"Frauds Detected", stats.FraudsDetected},
		{"Duplicates Prevented", stats.DuplicatesPrevented},
		{"Total Savings (USD)", stats.TotalSavings.InexactFloat64()},
		{"Detection Rate %", stats.DetectionRate},
		{"Registry Size", stats.RegistrySize},
		{"Regions Seen", strings.Join(stats.RegionsSeen, ", ")},
		{"Duration", stats.Duration.String()},
	}
	if err := writeSheet(f, SheetSummary, []string{"Metric", "Value"}, summaryRows, headerStyle); err != nil {
		return err
	}

	_ = f.SetColWidth(SheetInvoices, "C", "C", 18)
	_ = f.SetColWidth(SheetInvoices, "G", "G", 22)
	_ = f.SetColWidth(SheetAlerts, "A", "A", 32)
	_ = f.SetColWidth(SheetAlerts, "H", "I", 60)
	_ = f.SetColWidth(SheetSummary, "A", "A", 24)

	f.SetActiveSheet(0)

	if err := f.Write(writer); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}, headerStyle int) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("xlsx %s header: %w", sheet, err)
		}
	}

	if len(headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheet, "A1", last, headerStyle)
	}

	for r, values := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		row := values
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx %s row %d: %w", sheet, r+2, err)
		}
	}

	return nil
}
