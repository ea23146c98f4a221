package parsers

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies the on-disk encoding of an invoice file
type Format string

const (
	FormatAuto  Format = "auto"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// DetectFormat picks a format from the file extension. Unknown extensions are
// treated as CSV.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".jsonl", ".ndjson":
		return FormatJSONL
	default:
		return FormatCSV
	}
}

// ParseFormat validates a user-supplied format name
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatCSV, FormatJSON, FormatJSONL:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported input format '%s' (expected auto, csv, json or jsonl)", name)
	}
}

// Standard column names used by InvoiceParserConfig.GetColumnName
const (
	ColumnInvoiceID   = "invoice_id"
	ColumnRegion      = "region"
	ColumnCurrency    = "currency"
	ColumnAmount      = "total_amount"
	ColumnSubmittedAt = "submitted_at"
	ColumnText        = "invoice_text"
)

// InvoiceParserConfig describes how an invoice export lays out its columns
type InvoiceParserConfig struct {
	Name              string            `json:"name" yaml:"name"`
	Format            Format            `json:"format" yaml:"format"`
	InvoiceIDColumn   string            `json:"invoice_id_column" yaml:"invoice_id_column"`
	RegionColumn      string            `json:"region_column" yaml:"region_column"`
	CurrencyColumn    string            `json:"currency_column" yaml:"currency_column"`
	AmountColumn      string            `json:"amount_column" yaml:"amount_column"`
	SubmittedAtColumn string            `json:"submitted_at_column" yaml:"submitted_at_column"`
	TextColumn        string            `json:"text_column" yaml:"text_column"`
	DateFormat        string            `json:"date_format,omitempty" yaml:"date_format,omitempty"`
	HasHeader         bool              `json:"has_header" yaml:"has_header"`
	Delimiter         rune              `json:"delimiter" yaml:"delimiter"`
	ColumnAliases     map[string]string `json:"column_aliases,omitempty" yaml:"column_aliases,omitempty"`
	Description       string            `json:"description,omitempty" yaml:"description,omitempty"`
}

// Validate checks if the invoice parser configuration is valid
func (c *InvoiceParserConfig) Validate() error {
	if _, err := ParseFormat(string(c.Format)); err != nil {
		return err
	}

	if strings.TrimSpace(c.RegionColumn) == "" {
		return fmt.Errorf("region column cannot be empty")
	}

	if strings.TrimSpace(c.TextColumn) == "" {
		return fmt.Errorf("invoice text column cannot be empty")
	}

	if c.Delimiter == 0 || c.Delimiter == '\n' || c.Delimiter == '"' {
		return fmt.Errorf("invalid delimiter %q", c.Delimiter)
	}

	return nil
}

// GetColumnName returns the actual column name, checking aliases first
func (c *InvoiceParserConfig) GetColumnName(standardName string) string {
	if alias, exists := c.ColumnAliases[standardName]; exists {
		return alias
	}

	switch standardName {
	case ColumnInvoiceID:
		return c.InvoiceIDColumn
	case ColumnRegion:
		return c.RegionColumn
	case ColumnCurrency:
		return c.CurrencyColumn
	case ColumnAmount:
		return c.AmountColumn
	case ColumnSubmittedAt:
		return c.SubmittedAtColumn
	case ColumnText:
		return c.TextColumn
	default:
		return standardName
	}
}

// RequiredColumns returns the header names a CSV file must carry
func (c *InvoiceParserConfig) RequiredColumns() []string {
	return []string{c.GetColumnName(ColumnRegion), c.GetColumnName(ColumnText)}
}

// Clone returns a deep copy of the configuration
func (c *InvoiceParserConfig) Clone() *InvoiceParserConfig {
	clone := *c
	clone.ColumnAliases = make(map[string]string, len(c.ColumnAliases))
	for k, v := range c.ColumnAliases {
		clone.ColumnAliases[k] = v
	}
	return &clone
}

// DefaultInvoiceParserConfig returns a configuration with standard defaults
func DefaultInvoiceParserConfig() *InvoiceParserConfig {
	return StandardLayout.Clone()
}

// Predefined layouts for common invoice exports
var (
	// StandardLayout matches the field names of the submission record
	StandardLayout = &InvoiceParserConfig{
		Name:              "Standard",
		Format:            FormatAuto,
		InvoiceIDColumn:   ColumnInvoiceID,
		RegionColumn:      ColumnRegion,
		CurrencyColumn:    ColumnCurrency,
		AmountColumn:      ColumnAmount,
		SubmittedAtColumn: ColumnSubmittedAt,
		TextColumn:        ColumnText,
		HasHeader:         true,
		Delimiter:         ',',
		ColumnAliases:     map[string]string{},
		Description:       "Standard invoice submission export",
	}

	// ERPExportLayout matches the accounts-payable export used by the regional ERP systems
	ERPExportLayout = &InvoiceParserConfig{
		Name:              "ERPExport",
		Format:            FormatCSV,
		InvoiceIDColumn:   "document_number",
		RegionColumn:      "office",
		CurrencyColumn:    "doc_currency",
		AmountColumn:      "gross_amount",
		SubmittedAtColumn: "received_at",
		TextColumn:        "ocr_text",
		DateFormat:        "02.01.2006 15:04",
		HasHeader:         true,
		Delimiter:         ';',
		ColumnAliases:     map[string]string{},
		Description:       "ERP accounts payable export with semicolon delimiter and DD.MM.YYYY dates",
	}
)

// GetLayout returns a predefined layout by name
func GetLayout(name string) *InvoiceParserConfig {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "standard":
		return StandardLayout
	case "erpexport", "erp-export", "erp":
		return ERPExportLayout
	default:
		return nil
	}
}

// ListAvailableLayouts returns all predefined layouts
func ListAvailableLayouts() []*InvoiceParserConfig {
	return []*InvoiceParserConfig{
		StandardLayout,
		ERPExportLayout,
	}
}

// AutoDetectLayout picks the predefined layout whose required columns all
// appear in headers, falling back to StandardLayout
func AutoDetectLayout(headers []string) *InvoiceParserConfig {
	headerMap := make(map[string]bool)
	for _, header := range headers {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = true
	}

	for _, layout := range ListAvailableLayouts() {
		matched := true
		for _, column := range layout.RequiredColumns() {
			if !headerMap[strings.ToLower(column)] {
				matched = false
				break
			}
		}
		if matched {
			return layout
		}
	}

	return StandardLayout
}

// LoaderConfig holds configuration for loading several files at once
type LoaderConfig struct {
	MaxConcurrency  int  `json:"max_concurrency"`
	ContinueOnError bool `json:"continue_on_error"`
	MaxErrors       int  `json:"max_errors"`
}

// DefaultLoaderConfig returns a configuration with sensible defaults for multi-file loading
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		MaxConcurrency:  4,
		ContinueOnError: true,
		MaxErrors:       100,
	}
}

// Validate checks if the loader configuration is valid
func (lc *LoaderConfig) Validate() error {
	if lc.MaxConcurrency <= 0 {
		return fmt.Errorf("max concurrency must be positive, got %d", lc.MaxConcurrency)
	}

	if lc.MaxErrors < 0 {
		return fmt.Errorf("max errors cannot be negative, got %d", lc.MaxErrors)
	}

	return nil
}
