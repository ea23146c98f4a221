package parsers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"

	"invoice-fraud-detector/internal/models"
	"invoice-fraud-detector/pkg/errors"
	"invoice-fraud-detector/pkg/logger"
)

// InvoiceParser reads invoice submissions from a single file
type InvoiceParser struct {
	*BaseParser
	config    *InvoiceParserConfig
	maxErrors int
	logger    logger.Logger
}

// NewInvoiceParser creates a parser for the given layout. A nil config uses
// DefaultInvoiceParserConfig.
func NewInvoiceParser(config *InvoiceParserConfig) (*InvoiceParser, error) {
	if config == nil {
		config = DefaultInvoiceParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "parser", config.Name, err)
	}

	parseConfig := DefaultParseConfig()
	parseConfig.HasHeader = config.HasHeader
	parseConfig.Delimiter = config.Delimiter

	return &InvoiceParser{
		BaseParser: NewBaseParser(parseConfig),
		config:     config,
		maxErrors:  DefaultLoaderConfig().MaxErrors,
		logger:     logger.GetGlobalLogger().WithComponent("invoice_parser"),
	}, nil
}

// WithMaxErrors caps the row errors collected per file; 0 means unlimited
func (p *InvoiceParser) WithMaxErrors(maxErrors int) *InvoiceParser {
	p.maxErrors = maxErrors
	return p
}

// Config returns the layout the parser reads
func (p *InvoiceParser) Config() *InvoiceParserConfig {
	return p.config
}

// ParseFile loads every submission in path. Rows with malformed amounts or
// timestamps are kept with the bad value zeroed and reported in the stats.
func (p *InvoiceParser) ParseFile(ctx context.Context, path string) ([]*models.InvoiceSubmission, *ParseStats, error) {
	format := p.config.Format
	if format == "" || format == FormatAuto {
		format = DetectFormat(path)
	}

	opLogger := logger.NewOperationLogger("parse_invoices", p.logger).
		WithField("file", path).
		WithField("format", string(format))
	opLogger.Step("opening file")

	file, err := p.OpenFile(path)
	if err != nil {
		opLogger.Error(err, "Failed to open invoice file")
		return nil, NewParseStats(path, format), err
	}
	defer file.Close()

	submissions, stats, err := p.ParseReader(ctx, file, path, format)
	if err != nil {
		opLogger.Error(err, "Failed to parse invoice file")
		return submissions, stats, err
	}

	opLogger.WithField("records", stats.RecordsParsed).
		WithField("errors", stats.ErrorCount).
		Success("Parsed invoice file")
	return submissions, stats, nil
}

// ParseReader loads submissions from r. name is used in error locations.
func (p *InvoiceParser) ParseReader(ctx context.Context, r io.Reader, name string, format Format) ([]*models.InvoiceSubmission, *ParseStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	switch format {
	case FormatJSON:
		return p.parseJSON(ctx, r, name)
	case FormatJSONL:
		return p.parseJSONL(ctx, r, name)
	case FormatCSV, FormatAuto, "":
		return p.parseCSV(ctx, r, name)
	default:
		return nil, NewParseStats(name, format), errors.ValidationError(errors.CodeInvalidFormat, "format", format, nil)
	}
}

// fieldGetter returns the raw value of a standard column for one record
type fieldGetter func(standardName string) string

func (p *InvoiceParser) parseCSV(ctx context.Context, r io.Reader, name string) ([]*models.InvoiceSubmission, *ParseStats, error) {
	stats := NewParseStats(name, FormatCSV)
	parseCtx := NewParseContext(ctx, name)
	reader := p.NewCSVReader(r)

	if err := p.ReadHeaders(reader, parseCtx, p.config.RequiredColumns()); err != nil {
		if parseErr, ok := err.(*errors.EnhancedParseError); ok {
			stats.AddError(parseErr)
		}
		return nil, stats, err
	}
	stats.TotalLines = parseCtx.LineNumber

	collector := errors.NewParseErrorCollector(p.maxErrors)
	submissions := make([]*models.InvoiceSubmission, 0)

	for {
		record, err := p.ReadRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if detectorErr, ok := errors.AsDetectorError(err); ok && detectorErr.Code == errors.CodeCancelled {
				return submissions, stats, err
			}

			parseErr, ok := err.(*errors.EnhancedParseError)
			if !ok {
				parseErr = errors.NewEnhancedParseError(
					errors.CodeInvalidFormat,
					&errors.ParseContext{File: name, Line: parseCtx.LineNumber},
					"malformed CSV record",
					err,
				)
			}
			stats.AddError(parseErr)
			if !collector.Add(parseErr) {
				return submissions, stats, collector.GetSummary()
			}
			continue
		}

		stats.TotalLines = parseCtx.LineNumber
		get := func(standardName string) string {
			return p.GetFieldValue(record, parseCtx, p.config.GetColumnName(standardName))
		}

		sub, rowErrs := p.buildSubmission(get, name, parseCtx.LineNumber)
		submissions = append(submissions, sub)
		if !p.recordRow(stats, collector, rowErrs) {
			return submissions, stats, collector.GetSummary()
		}
	}

	p.logger.WithFields(logger.Fields{
		"file":    name,
		"records": stats.RecordsParsed,
		"errors":  stats.ErrorCount,
	}).Debug("Parsed CSV invoices")

	return submissions, stats, nil
}

func (p *InvoiceParser) parseJSON(ctx context.Context, r io.Reader, name string) ([]*models.InvoiceSubmission, *ParseStats, error) {
	stats := NewParseStats(name, FormatJSON)

	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var records []map[string]interface{}
	if err := decoder.Decode(&records); err != nil {
		parseErr := errors.NewEnhancedParseError(
			errors.CodeInvalidFormat,
			&errors.ParseContext{File: name, Expected: "JSON array of invoice objects"},
			"invalid JSON document",
			err,
		)
		parseErr.Recoverable = false
		stats.AddError(parseErr)
		return nil, stats, parseErr
	}

	collector := errors.NewParseErrorCollector(p.maxErrors)
	submissions := make([]*models.InvoiceSubmission, 0, len(records))

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return submissions, stats, errors.InternalError(errors.CodeCancelled, "json_parsing", err)
		}

		stats.TotalLines++
		sub, rowErrs := p.buildSubmission(p.objectGetter(record), name, i+1)
		submissions = append(submissions, sub)
		if !p.recordRow(stats, collector, rowErrs) {
			return submissions, stats, collector.GetSummary()
		}
	}

	return submissions, stats, nil
}

func (p *InvoiceParser) parseJSONL(ctx context.Context, r io.Reader, name string) ([]*models.InvoiceSubmission, *ParseStats, error) {
	stats := NewParseStats(name, FormatJSONL)
	collector := errors.NewParseErrorCollector(p.maxErrors)
	submissions := make([]*models.InvoiceSubmission, 0)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), p.maxLineSize())

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return submissions, stats, errors.InternalError(errors.CodeCancelled, "jsonl_parsing", err)
		}

		line++
		stats.TotalLines = line

		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		decoder := json.NewDecoder(strings.NewReader(raw))
		decoder.UseNumber()

		var record map[string]interface{}
		if err := decoder.Decode(&record); err != nil {
			parseErr := errors.NewEnhancedParseError(
				errors.CodeInvalidFormat,
				&errors.ParseContext{File: name, Line: line, Value: truncate(raw, 50), Expected: "one JSON object per line"},
				"invalid JSON line",
				err,
			)
			stats.AddError(parseErr)
			if !collector.Add(parseErr) {
				return submissions, stats, collector.GetSummary()
			}
			continue
		}

		sub, rowErrs := p.buildSubmission(p.objectGetter(record), name, line)
		submissions = append(submissions, sub)
		if !p.recordRow(stats, collector, rowErrs) {
			return submissions, stats, collector.GetSummary()
		}
	}

	if err := scanner.Err(); err != nil {
		return submissions, stats, errors.FileError(errors.CodeFileCorrupted, name, err)
	}

	return submissions, stats, nil
}

// objectGetter resolves standard columns against a decoded JSON object,
// ignoring key case
func (p *InvoiceParser) objectGetter(record map[string]interface{}) fieldGetter {
	return func(standardName string) string {
		key := p.config.GetColumnName(standardName)
		value, ok := record[key]
		if !ok {
			for k, v := range record {
				if strings.EqualFold(k, key) {
					value, ok = v, true
					break
				}
			}
		}
		if !ok || value == nil {
			return ""
		}

		switch v := value.(type) {
		case string:
			return strings.TrimSpace(v)
		case json.Number:
			return v.String()
		default:
			return strings.TrimSpace(fmt.Sprint(v))
		}
	}
}

// buildSubmission converts one record. Problems are returned alongside a
// submission that still carries every value that could be read.
func (p *InvoiceParser) buildSubmission(get fieldGetter, file string, line int) (*models.InvoiceSubmission, []*errors.EnhancedParseError) {
	var rowErrs []*errors.EnhancedParseError

	sub := &models.InvoiceSubmission{
		InvoiceID: get(ColumnInvoiceID),
		Region:    get(ColumnRegion),
		Currency:  strings.ToUpper(get(ColumnCurrency)),
		Text:      get(ColumnText),
	}

	if raw := get(ColumnAmount); raw != "" {
		amount, err := models.ParseDecimalFromString(raw)
		if err != nil {
			rowErrs = append(rowErrs, errors.InvalidAmountError(file, line, p.config.GetColumnName(ColumnAmount), raw))
			amount = decimal.Zero
		}
		sub.TotalAmount = amount
	}

	if raw := get(ColumnSubmittedAt); raw != "" {
		submittedAt, err := p.parseTime(raw)
		if err != nil {
			rowErrs = append(rowErrs, errors.InvalidTimestampError(file, line, p.config.GetColumnName(ColumnSubmittedAt), raw))
		}
		sub.SubmittedAt = submittedAt
	}

	if sub.Text == "" {
		rowErrs = append(rowErrs, errors.EmptyValueError(file, line, p.config.GetColumnName(ColumnText)))
	}

	return sub, rowErrs
}

func (p *InvoiceParser) parseTime(raw string) (time.Time, error) {
	if p.config.DateFormat != "" {
		if t, err := time.Parse(p.config.DateFormat, raw); err == nil {
			return t, nil
		}
	}
	return models.ParseTimeWithFormats(raw)
}

// recordRow updates stats for one returned row and reports whether parsing may continue
func (p *InvoiceParser) recordRow(stats *ParseStats, collector *errors.ParseErrorCollector, rowErrs []*errors.EnhancedParseError) bool {
	stats.RecordsParsed++
	if len(rowErrs) == 0 {
		stats.RecordsValid++
		return true
	}

	for _, rowErr := range rowErrs {
		stats.AddError(rowErr)
		if !collector.Add(rowErr) {
			return false
		}
	}
	return true
}

// ConcurrentParser loads several invoice files in parallel
type ConcurrentParser struct {
	config *LoaderConfig
	parser *InvoiceParser
	logger logger.Logger
}

// NewConcurrentParser creates a loader that parses every file with parser
func NewConcurrentParser(parser *InvoiceParser, config *LoaderConfig) (*ConcurrentParser, error) {
	if parser == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "parser", nil, nil)
	}
	if config == nil {
		config = DefaultLoaderConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "loader", config, err)
	}

	return &ConcurrentParser{
		config: config,
		parser: parser,
		logger: logger.GetGlobalLogger().WithComponent("concurrent_parser"),
	}, nil
}

// ConcurrentParseResult holds the outcome for one file
type ConcurrentParseResult struct {
	FilePath    string
	Submissions []*models.InvoiceSubmission
	Stats       *ParseStats
	Error       error
}

// ParseFiles parses every path and returns one result per path, in input order
func (cp *ConcurrentParser) ParseFiles(ctx context.Context, paths []string) []*ConcurrentParseResult {
	mapper := iter.Mapper[string, *ConcurrentParseResult]{MaxGoroutines: cp.config.MaxConcurrency}

	return mapper.Map(paths, func(path *string) *ConcurrentParseResult {
		result := &ConcurrentParseResult{FilePath: *path}
		result.Submissions, result.Stats, result.Error = cp.parser.ParseFile(ctx, *path)
		return result
	})
}

// LoadAll parses every path and concatenates the submissions in input order.
// With ContinueOnError set, failed files are logged and skipped; otherwise the
// first failure is returned.
func (cp *ConcurrentParser) LoadAll(ctx context.Context, paths []string) ([]*models.InvoiceSubmission, *ParseStats, error) {
	combined := NewParseStats(strings.Join(paths, ","), FormatAuto)
	submissions := make([]*models.InvoiceSubmission, 0)

	for _, result := range cp.ParseFiles(ctx, paths) {
		combined.Merge(result.Stats)

		if result.Error != nil {
			if !cp.config.ContinueOnError {
				return nil, combined, result.Error
			}
			cp.logger.WithError(result.Error).WithField("file", result.FilePath).Warn("Skipping invoice file")
			continue
		}

		submissions = append(submissions, result.Submissions...)
	}

	cp.logger.WithFields(logger.Fields{
		"files":       len(paths),
		"submissions": len(submissions),
		"errors":      combined.ErrorCount,
	}).Info("Loaded invoice files")

	return submissions, combined, nil
}
