// Package parsers loads invoice submissions from CSV, JSON and JSONL files.
//
// Loading is lenient in the same way the detection engine is: a row with a
// malformed amount or timestamp is still returned, with the bad value left
// empty, and the problem is recorded in ParseStats. Only unreadable files and
// missing required columns stop a file.
//
// Parser Types:
//   - BaseParser: CSV plumbing shared by the invoice loaders (encoding check,
//     header resolution, record reading)
//   - InvoiceParser: turns one file into []*models.InvoiceSubmission
//   - ConcurrentParser: loads several files at once, keeping input order
//
// Example usage:
//
//	parser, err := parsers.NewInvoiceParser(nil)
//	submissions, stats, err := parser.ParseFile(ctx, "invoices.csv")
//	if stats.HasErrors() {
//		fmt.Println(errors.FormatParseErrorsForUser(stats.Errors))
//	}
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"invoice-fraud-detector/pkg/errors"
	"invoice-fraud-detector/pkg/logger"
)

// ParseConfig holds configuration for CSV parsing
type ParseConfig struct {
	HasHeader        bool
	Delimiter        rune
	Comment          rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
	MaxFieldSize     int
	ValidateEncoding bool
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		HasHeader:        true,
		Delimiter:        ',',
		Comment:          0,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFieldSize:     1000000, // invoice bodies can be long; 1MB per field
		ValidateEncoding: true,
	}
}

// BaseParser provides common CSV parsing functionality
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}

	log := logger.GetGlobalLogger().WithComponent("base_parser")
	log.WithFields(logger.Fields{
		"has_header":        config.HasHeader,
		"delimiter":         string(config.Delimiter),
		"validate_encoding": config.ValidateEncoding,
		"max_field_size":    config.MaxFieldSize,
	}).Debug("Created base parser")

	return &BaseParser{
		config: config,
		logger: log,
	}
}

// ParseContext holds state during parsing operations
type ParseContext struct {
	File       string
	LineNumber int
	Headers    []string
	HeaderMap  map[string]int
	ctx        context.Context
}

// NewParseContext creates a new parsing context
func NewParseContext(ctx context.Context, file string) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{
		File:      file,
		Headers:   make([]string, 0),
		HeaderMap: make(map[string]int),
		ctx:       ctx,
	}
}

// IsCancelled checks if the parsing context has been cancelled
func (pc *ParseContext) IsCancelled() bool {
	select {
	case <-pc.ctx.Done():
		return true
	default:
		return false
	}
}

// GetColumnIndex returns the index of a column by name, or -1 if not found.
// Lookup is case-insensitive.
func (pc *ParseContext) GetColumnIndex(name string) int {
	if index, exists := pc.HeaderMap[name]; exists {
		return index
	}

	for header, index := range pc.HeaderMap {
		if strings.EqualFold(header, name) {
			return index
		}
	}

	return -1
}

// OpenFile opens a file, optionally checking that it is valid UTF-8
func (bp *BaseParser) OpenFile(filePath string) (*os.File, error) {
	bp.logger.WithField("file_path", filePath).Debug("Opening input file")

	file, err := os.Open(filePath)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open input file")

		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return nil, errors.FileError(errors.CodeDirectoryError, filePath, err)
	}

	if bp.config.ValidateEncoding {
		if err := bp.validateEncoding(file, filePath); err != nil {
			file.Close()
			bp.logger.WithError(err).WithField("file_path", filePath).Error("File encoding validation failed")
			return nil, err
		}

		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
		}
	}

	return file, nil
}

// NewCSVReader wraps r in a csv.Reader configured from the parse config
func (bp *BaseParser) NewCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = bp.config.Delimiter
	reader.Comment = bp.config.Comment
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1 // Variable number of fields
	reader.LazyQuotes = true
	return reader
}

// validateEncoding checks the first lines of the file for valid UTF-8
func (bp *BaseParser) validateEncoding(file *os.File, filePath string) error {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), bp.maxLineSize())
	lineNum := 0

	for scanner.Scan() && lineNum < 100 {
		lineNum++
		if !utf8.Valid(scanner.Bytes()) {
			return errors.EncodingError(filePath, lineNum, fmt.Errorf("invalid UTF-8 encoding detected"))
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}

	return nil
}

func (bp *BaseParser) maxLineSize() int {
	if bp.config.MaxFieldSize > 0 {
		return bp.config.MaxFieldSize * 8
	}
	return 8 * 1024 * 1024
}

// ReadHeaders reads the header row and validates that every required column is present
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, parseCtx *ParseContext, requiredHeaders []string) error {
	if !bp.config.HasHeader {
		parseCtx.Headers = make([]string, len(requiredHeaders))
		copy(parseCtx.Headers, requiredHeaders)
		bp.buildHeaderMap(parseCtx)
		return nil
	}

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return errors.ValidationError(
				errors.CodeMissingField,
				"file_content",
				"empty",
				nil,
			).WithSuggestion("Ensure the file contains header and data rows")
		}

		return errors.ParseError(
			errors.CodeInvalidFormat,
			parseCtx.File,
			1,
			"headers",
			"",
			err,
		).WithSuggestion("Check the file format and ensure it's a valid CSV")
	}

	parseCtx.LineNumber++
	parseCtx.Headers = cleanHeaders(headers)
	bp.buildHeaderMap(parseCtx)

	bp.logger.WithField("headers", parseCtx.Headers).Debug("Read headers")

	var missing []string
	for _, header := range requiredHeaders {
		if parseCtx.GetColumnIndex(header) == -1 {
			missing = append(missing, header)
		}
	}
	if len(missing) > 0 {
		bp.logger.WithFields(logger.Fields{
			"missing_headers":   missing,
			"available_headers": parseCtx.Headers,
		}).Error("Required headers are missing")
		return errors.MissingColumnError(parseCtx.File, requiredHeaders, parseCtx.Headers)
	}

	return nil
}

// cleanHeaders trims whitespace and a UTF-8 byte order mark from header names
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		cleaned[i] = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	}
	return cleaned
}

func (bp *BaseParser) buildHeaderMap(parseCtx *ParseContext) {
	parseCtx.HeaderMap = make(map[string]int)
	for i, header := range parseCtx.Headers {
		parseCtx.HeaderMap[header] = i
	}
}

// ReadRecord reads the next non-empty record. It returns io.EOF at the end of input.
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		if parseCtx.IsCancelled() {
			return nil, errors.InternalError(errors.CodeCancelled, "csv_parsing", parseCtx.ctx.Err())
		}

		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, err
			}
			if csvErr, ok := err.(*csv.ParseError); ok {
				parseCtx.LineNumber = csvErr.StartLine
			} else {
				parseCtx.LineNumber++
			}
			return nil, err
		}

		line, _ := reader.FieldPos(0)
		parseCtx.LineNumber = line

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}

		if bp.config.MaxFieldSize > 0 {
			for i, field := range record {
				if len(field) > bp.config.MaxFieldSize {
					column := fmt.Sprintf("field_%d", i)
					if i < len(parseCtx.Headers) {
						column = parseCtx.Headers[i]
					}
					return nil, errors.NewEnhancedParseError(
						errors.CodeInvalidData,
						&errors.ParseContext{File: parseCtx.File, Line: line, Column: column, Value: truncate(field, 50)},
						fmt.Sprintf("field exceeds maximum size of %d bytes", bp.config.MaxFieldSize),
						nil,
					)
				}
			}
		}

		return record, nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// GetFieldValue returns the trimmed value of a named column. A column that is
// absent from the header or from a short record yields "".
func (bp *BaseParser) GetFieldValue(record []string, parseCtx *ParseContext, fieldName string) string {
	index := parseCtx.GetColumnIndex(fieldName)
	if index == -1 || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	File          string                       `json:"file"`
	Format        Format                       `json:"format"`
	TotalLines    int                          `json:"total_lines"`
	RecordsParsed int                          `json:"records_parsed"`
	RecordsValid  int                          `json:"records_valid"`
	ErrorCount    int                          `json:"error_count"`
	Errors        []*errors.EnhancedParseError `json:"errors,omitempty"`
}

// NewParseStats creates a new ParseStats instance
func NewParseStats(file string, format Format) *ParseStats {
	return &ParseStats{
		File:   file,
		Format: format,
		Errors: make([]*errors.EnhancedParseError, 0),
	}
}

// AddError adds an error to the parsing statistics
func (ps *ParseStats) AddError(err *errors.EnhancedParseError) {
	if err == nil {
		return
	}
	ps.Errors = append(ps.Errors, err)
	ps.ErrorCount++
}

// HasErrors returns true if there were any parsing errors
func (ps *ParseStats) HasErrors() bool {
	return ps.ErrorCount > 0
}

// Merge folds other into ps
func (ps *ParseStats) Merge(other *ParseStats) {
	if other == nil {
		return
	}
	ps.TotalLines += other.TotalLines
	ps.RecordsParsed += other.RecordsParsed
	ps.RecordsValid += other.RecordsValid
	ps.ErrorCount += other.ErrorCount
	ps.Errors = append(ps.Errors, other.Errors...)
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d records (%d valid), %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RecordsValid, ps.ErrorCount)
}

// GetSampleErrors returns a sample of the parsing errors for logging/debugging
func (ps *ParseStats) GetSampleErrors(maxSamples int) []string {
	if len(ps.Errors) == 0 {
		return nil
	}

	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}

	samples := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		samples = append(samples, ps.Errors[i].Error())
	}
	return samples
}
