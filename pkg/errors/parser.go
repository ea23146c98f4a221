package errors

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ParseContext locates a problem inside an invoice input file
type ParseContext struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   string `json:"column"`
	Value    string `json:"value"`
	Expected string `json:"expected,omitempty"`
}

// EnhancedParseError is a row-level input error with location and examples.
// Recoverable errors skip the row; the rest abort the file.
type EnhancedParseError struct {
	*DetectorError
	Location    *ParseContext `json:"location"`
	Recoverable bool          `json:"recoverable"`
	Examples    []string      `json:"examples,omitempty"`
}

func (e *EnhancedParseError) Error() string {
	parts := []string{e.DetectorError.Error()}

	if e.Location != nil {
		location := fmt.Sprintf("at %s", filepath.Base(e.Location.File))
		if e.Location.Line > 0 {
			location += fmt.Sprintf(":%d", e.Location.Line)
		}
		if e.Location.Column != "" {
			location += fmt.Sprintf(" column '%s'", e.Location.Column)
		}
		parts = append(parts, location)
	}

	return strings.Join(parts, " ")
}

// GetDetailedError returns a multi-line description suitable for terminals
func (e *EnhancedParseError) GetDetailedError() string {
	lines := []string{fmt.Sprintf("ERROR: %s", e.Message)}

	if e.Location != nil {
		lines = append(lines, fmt.Sprintf("  -> File: %s", e.Location.File))
		if e.Location.Line > 0 {
			lines = append(lines, fmt.Sprintf("  -> Line: %d", e.Location.Line))
		}
		if e.Location.Column != "" {
			lines = append(lines, fmt.Sprintf("  -> Column: %s", e.Location.Column))
		}
		if e.Location.Value != "" {
			lines = append(lines, fmt.Sprintf("  -> Value: '%s'", e.Location.Value))
		}
		if e.Location.Expected != "" {
			lines = append(lines, fmt.Sprintf("  -> Expected: %s", e.Location.Expected))
		}
	}

	if e.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("  -> Suggestion: %s", e.Suggestion))
	}

	if len(e.Examples) > 0 {
		lines = append(lines, "  -> Examples:")
		for _, example := range e.Examples {
			lines = append(lines, fmt.Sprintf("     - %s", example))
		}
	}

	return strings.Join(lines, "\n")
}

// NewEnhancedParseError creates a new enhanced parse error. cause may be nil.
func NewEnhancedParseError(code ErrorCode, location *ParseContext, message string, cause error) *EnhancedParseError {
	base := build(CategoryParse, code, message, "", cause)

	if location != nil {
		base.WithContext("file", location.File).
			WithContext("line", location.Line).
			WithContext("column", location.Column).
			WithContext("value", location.Value)
	}

	return &EnhancedParseError{
		DetectorError: base,
		Location:      location,
		Recoverable:   true,
	}
}

// WithExamples adds example values to help fix the error
func (e *EnhancedParseError) WithExamples(examples ...string) *EnhancedParseError {
	e.Examples = examples
	return e
}

// WithSuggestion adds a suggestion and returns the EnhancedParseError
func (e *EnhancedParseError) WithSuggestion(suggestion string) *EnhancedParseError {
	e.DetectorError.WithSuggestion(suggestion)
	return e
}

// InvalidAmountError reports a total_amount cell that is not a decimal number
func InvalidAmountError(file string, line int, column string, value string) *EnhancedParseError {
	location := &ParseContext{
		File:     file,
		Line:     line,
		Column:   column,
		Value:    value,
		Expected: "decimal number",
	}

	return NewEnhancedParseError(CodeInvalidAmount, location, "invalid amount format", nil).
		WithExamples("50000.00", "55,000.00", "1250.5").
		WithSuggestion("Remove currency symbols; the currency belongs in its own column")
}

// InvalidTimestampError reports a submitted_at cell that could not be parsed.
// The row is still processed with the current time.
func InvalidTimestampError(file string, line int, column string, value string) *EnhancedParseError {
	location := &ParseContext{
		File:     file,
		Line:     line,
		Column:   column,
		Value:    value,
		Expected: "RFC3339 or YYYY-MM-DD HH:MM:SS",
	}

	return NewEnhancedParseError(CodeInvalidTimestamp, location, "invalid submission timestamp", nil).
		WithExamples("2024-03-01T09:00:00Z", "2024-03-01 09:00:00").
		WithSuggestion("Use RFC3339 timestamps; unparsable values fall back to the processing time")
}

// MissingColumnError reports required header columns absent from the file
func MissingColumnError(file string, expectedColumns []string, actualColumns []string) *EnhancedParseError {
	missing := findMissingColumns(expectedColumns, actualColumns)

	location := &ParseContext{
		File:     file,
		Line:     1,
		Expected: fmt.Sprintf("columns: %s", strings.Join(expectedColumns, ", ")),
	}

	message := fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))
	err := NewEnhancedParseError(CodeMissingColumn, location, message, nil).
		WithSuggestion("Add the missing columns to the header row")
	err.Recoverable = false
	return err
}

// EmptyValueError reports an empty cell in a required column
func EmptyValueError(file string, line int, column string) *EnhancedParseError {
	location := &ParseContext{
		File:     file,
		Line:     line,
		Column:   column,
		Expected: "non-empty value",
	}

	return NewEnhancedParseError(CodeMissingField, location, "required field is empty", nil).
		WithSuggestion("Provide a value for this required field")
}

// EncodingError reports a file that is not valid UTF-8
func EncodingError(file string, line int, cause error) *EnhancedParseError {
	location := &ParseContext{
		File: file,
		Line: line,
	}

	err := NewEnhancedParseError(CodeEncodingError, location, "file encoding error", cause).
		WithSuggestion("Save the file in UTF-8 encoding")
	err.Recoverable = false
	return err
}

// ParseErrorCollector collects row errors up to a limit
type ParseErrorCollector struct {
	errors    []*EnhancedParseError
	maxErrors int
}

// NewParseErrorCollector creates a new error collector. maxErrors <= 0 means unlimited.
func NewParseErrorCollector(maxErrors int) *ParseErrorCollector {
	return &ParseErrorCollector{
		errors:    make([]*EnhancedParseError, 0),
		maxErrors: maxErrors,
	}
}

// Add records err and reports whether parsing may continue
func (c *ParseErrorCollector) Add(err *EnhancedParseError) bool {
	if err == nil {
		return true
	}

	c.errors = append(c.errors, err)

	if c.maxErrors > 0 && len(c.errors) >= c.maxErrors {
		return false
	}

	return err.Recoverable
}

// HasErrors returns true if any errors have been collected
func (c *ParseErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// GetErrors returns all collected errors
func (c *ParseErrorCollector) GetErrors() []*EnhancedParseError {
	return c.errors
}

// GetSummary returns an error summary for all collected errors
func (c *ParseErrorCollector) GetSummary() *ErrorSummary {
	base := make([]*DetectorError, len(c.errors))
	for i, err := range c.errors {
		base[i] = err.DetectorError
	}
	return NewErrorSummary(base)
}

func findMissingColumns(expected, actual []string) []string {
	actualSet := make(map[string]bool)
	for _, col := range actual {
		actualSet[strings.ToLower(strings.TrimSpace(col))] = true
	}

	var missing []string
	for _, col := range expected {
		if !actualSet[strings.ToLower(strings.TrimSpace(col))] {
			missing = append(missing, col)
		}
	}

	return missing
}

// FormatParseErrorsForUser formats parse errors grouped by file
func FormatParseErrorsForUser(errs []*EnhancedParseError) string {
	if len(errs) == 0 {
		return "No parse errors"
	}

	if len(errs) == 1 {
		return errs[0].GetDetailedError()
	}

	lines := []string{fmt.Sprintf("Found %d parse errors:", len(errs)), ""}

	errorsByFile := make(map[string][]*EnhancedParseError)
	for _, err := range errs {
		file := "unknown"
		if err.Location != nil {
			file = filepath.Base(err.Location.File)
		}
		errorsByFile[file] = append(errorsByFile[file], err)
	}

	files := make([]string, 0, len(errorsByFile))
	for file := range errorsByFile {
		files = append(files, file)
	}
	sort.Strings(files)

	const maxDetailedErrors = 3
	for _, file := range files {
		fileErrors := errorsByFile[file]
		lines = append(lines, fmt.Sprintf("File: %s (%d errors)", file, len(fileErrors)))

		for i, err := range fileErrors {
			if i == maxDetailedErrors {
				lines = append(lines, "", fmt.Sprintf("... and %d more errors in this file", len(fileErrors)-maxDetailedErrors))
				break
			}
			lines = append(lines, "", err.GetDetailedError())
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}
