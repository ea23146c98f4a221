package reporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"invoice-fraud-detector/internal/detector"
	"invoice-fraud-detector/internal/models"
	"invoice-fraud-detector/internal/vendors"
)

var (
	accent  = lipgloss.Color("#D97706")
	fg      = lipgloss.Color("#E8E6E3")
	dim     = lipgloss.Color("#6B7280")
	success = lipgloss.Color("#22C55E")
	danger  = lipgloss.Color("#EF4444")
	warning = lipgloss.Color("#F59E0B")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent)

	alertBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(danger).
			Padding(0, 1)

	plainBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(fg)
	dimStyle   = lipgloss.NewStyle().Foreground(dim)
	passStyle  = lipgloss.NewStyle().Foreground(success)
	failStyle  = lipgloss.NewStyle().Foreground(danger).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(warning)
	plainStyle = lipgloss.NewStyle()

	tierStyles = map[models.ActionTier]lipgloss.Style{
		models.TierImmediate: failStyle,
		models.TierHigh:      failStyle,
		models.TierEnhanced:  warnStyle,
		models.TierMonitor:   dimStyle,
	}
)

// consoleWriter renders with or without colors
type consoleWriter struct {
	b      *strings.Builder
	colors bool
	width  int
}

func (cw *consoleWriter) paint(style lipgloss.Style, text string) string {
	if !cw.colors {
		return text
	}
	return style.Render(text)
}

func (cw *consoleWriter) line(format string, args ...interface{}) {
	fmt.Fprintf(cw.b, format+"\n", args...)
}

func (cw *consoleWriter) section(title string) {
	cw.b.WriteString("\n")
	cw.line("%s", cw.paint(headerStyle, "=== "+title+" ==="))
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *detector.RunResult, writer io.Writer) error {
	cw := &consoleWriter{b: &strings.Builder{}, colors: rg.config.UseColors, width: rg.config.TableMaxWidth}

	cw.line("%s", cw.paint(titleStyle, "MULTI-REGIONAL FRAUD DETECTION REPORT"))
	cw.line("Run ID:    %s", result.RunID)
	cw.line("Generated: %s", result.CompletedAt.UTC().Format(time.RFC3339))
	cw.line("Duration:  %v", result.Summary.Duration)

	if rg.config.IncludeStoredInvoices {
		cw.section("PROCESSED INVOICES")
		rg.printInvoiceRows(cw, result.Rows)
	}

	flagged := rg.flaggedRows(result)
	cw.section("FRAUD ALERTS")
	if len(flagged) == 0 {
		cw.line("%s", cw.paint(passStyle, "No multi-regional duplicates detected."))
	}
	for _, row := range flagged {
		rg.printAlert(cw, row.Decision.Alert)
	}

	if rg.config.IncludeVendorChecks {
		rg.printVendorChecks(cw, result.Rows)
	}

	if rg.config.IncludeProcessingStats {
		cw.section("RUN STATISTICS")
		rg.printStats(cw, result.Summary)
	}

	_, err := io.WriteString(writer, cw.b.String())
	return err
}

func (rg *ReportGenerator) printInvoiceRows(cw *consoleWriter, rows []detector.RunRow) {
	cw.line("%-4s %-16s %-10s %-4s %16s  %-20s  %s", "#", "INVOICE", "REGION", "CUR", "AMOUNT", "SUBMITTED", "STATUS")

	for i, row := range rows {
		inv := row.Decision.Invoice
		status := cw.paint(passStyle, "stored")
		if row.Decision.Flagged() {
			status = cw.paint(failStyle, "FLAGGED")
		}

		cw.line("%-4d %-16s %-10s %-4s %16s  %-20s  %s",
			row.Index+1,
			truncate(inv.InvoiceID, 16),
			truncate(inv.Region, 10),
			inv.Currency,
			inv.TotalAmount.StringFixed(2),
			inv.SubmittedAt.UTC().Format("2006-01-02 15:04:05"),
			status)

		// Limit output for very long lists
		if i >= 49 && len(rows) > 50 {
			cw.line("  ... and %d more", len(rows)-50)
			break
		}
	}
}

func (rg *ReportGenerator) printAlert(cw *consoleWriter, alert *models.FraudAlert) {
	var body strings.Builder

	tierStyle, ok := tierStyles[alert.RecommendedAction.Tier]
	if !ok {
		tierStyle = plainStyle
	}

	fmt.Fprintf(&body, "%s\n", cw.paint(failStyle, "FRAUD ALERT "+alert.AlertID))
	fmt.Fprintf(&body, "Type:            %s\n", alert.FraudType)
	fmt.Fprintf(&body, "Confidence:      %.1f%%\n", alert.ConfidenceScore*100)
	fmt.Fprintf(&body, "Regions:         %s\n", strings.Join(alert.AffectedRegions, ", "))
	fmt.Fprintf(&body, "Invoices:        %s\n", strings.Join(alert.InvoiceIDs(), ", "))
	fmt.Fprintf(&body, "Potential loss:  %s\n", detector.FormatUSD(alert.PotentialLoss))
	fmt.Fprintf(&body, "Action:          %s", cw.paint(tierStyle, wrap(alert.RecommendedAction.Text, cw.width-24, 17)))

	if rg.config.IncludeEvidence && len(alert.Evidence) > 0 {
		body.WriteString("\n\nEvidence:")
		for _, ev := range alert.Evidence {
			fmt.Fprintf(&body, "\n  %s (%s)", ev.InvoiceID, ev.Region)
			fmt.Fprintf(&body, "\n    similarity  content %.2f  po %.2f  address %.2f  items %.2f  overall %.3f",
				ev.Similarity.Content, ev.Similarity.PO, ev.Similarity.Address, ev.Similarity.LineItems, ev.Similarity.Overall)
			fmt.Fprintf(&body, "\n    currency    %s  variance %.2f%%  %s vs %s USD%s",
				ev.Currency.CurrencyPair, ev.Currency.VariancePercent,
				ev.Currency.AmountA.StringFixed(2), ev.Currency.AmountB.StringFixed(2),
				suspiciousMarker(ev.Currency.Suspicious))
			fmt.Fprintf(&body, "\n    timing      %.1fh apart  %s%s",
				ev.Timing.HoursApart, ev.Timing.Pattern, suspiciousMarker(ev.Timing.Suspicious))
		}
	}

	if rg.config.IncludeBusinessImpact {
		impact := alert.BusinessImpact
		body.WriteString("\n\nBusiness impact:")
		fmt.Fprintf(&body, "\n  Financial:    %s", impact.Financial)
		fmt.Fprintf(&body, "\n  Operational:  %s", impact.Operational)
		fmt.Fprintf(&body, "\n  Reputational: %s", impact.Reputational)
		fmt.Fprintf(&body, "\n  Compliance:   %s", impact.Compliance)
		fmt.Fprintf(&body, "\n  Detection:    %s", impact.DetectionBenefit)
		fmt.Fprintf(&body, "\n  Confidence:   %s", impact.ConfidenceLevel)
	}

	box := plainBoxStyle
	if cw.colors {
		box = alertBoxStyle
	}
	cw.line("%s", box.Render(body.String()))
}

func (rg *ReportGenerator) printVendorChecks(cw *consoleWriter, rows []detector.RunRow) {
	var checked []detector.RunRow
	for _, row := range rows {
		if row.Vendor != nil {
			checked = append(checked, row)
		}
	}
	if len(checked) == 0 {
		return
	}

	cw.section("VENDOR VERIFICATION")
	for _, row := range checked {
		v := row.Vendor
		style := dimStyle
		switch v.Status {
		case vendors.StatusLegitimate:
			style = passStyle
		case vendors.StatusFraudulent:
			style = failStyle
		}

		name := v.VendorName
		if name == "" {
			name = "(no vendor line)"
		}

		cw.line("%-16s %-36s %s  risk %s  confidence %.2f",
			truncate(row.Decision.Invoice.InvoiceID, 16),
			truncate(name, 36),
			cw.paint(style, string(v.Status)),
			v.Risk,
			v.Confidence)
		for _, indicator := range v.FraudIndicators {
			cw.line("    - %s", indicator)
		}
	}
}

func (rg *ReportGenerator) printStats(cw *consoleWriter, stats detector.RunStats) {
	cw.line("Invoices processed:    %d", stats.TotalProcessed)
	cw.line("Frauds detected:       %d (%.1f%%)", stats.FraudsDetected, stats.DetectionRate)
	cw.line("Duplicates prevented:  %d", stats.DuplicatesPrevented)
	cw.line("Total savings:         %s", detector.FormatUSD(stats.TotalSavings))
	cw.line("Registry size:         %d", stats.RegistrySize)
	if len(stats.RegionsSeen) > 0 {
		cw.line("Regions seen:          %s", strings.Join(stats.RegionsSeen, ", "))
	}
	cw.line("Supported regions:     %s", strings.Join(stats.SupportedRegions, ", "))
	cw.line("Supported currencies:  %s", strings.Join(stats.SupportedCurrencies, ", "))
}

func suspiciousMarker(suspicious bool) string {
	if suspicious {
		return "  [suspicious]"
	}
	return ""
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// wrap breaks text at spaces so no line exceeds width, indenting continuation lines
func wrap(text string, width, indent int) string {
	if width < 20 || len(text) <= width {
		return text
	}

	var b strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		if i > 0 {
			if lineLen+1+len(word) > width {
				b.WriteString("\n" + strings.Repeat(" ", indent))
				lineLen = 0
			} else {
				b.WriteString(" ")
				lineLen++
			}
		}
		b.WriteString(word)
		lineLen += len(word)
	}
	return b.String()
}
