package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryStorage       ErrorCategory = "storage"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileCorrupted  ErrorCode = "file_corrupted"
	CodeDirectoryError ErrorCode = "directory_error"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"
	CodeEncodingError ErrorCode = "encoding_error"

	// Validation errors
	CodeInvalidAmount    ErrorCode = "invalid_amount"
	CodeInvalidTimestamp ErrorCode = "invalid_timestamp"
	CodeMissingField     ErrorCode = "missing_field"
	CodeOutOfRange       ErrorCode = "out_of_range"

	// Configuration errors
	CodeInvalidConfig  ErrorCode = "invalid_config"
	CodeMissingConfig  ErrorCode = "missing_config"
	CodeConfigConflict ErrorCode = "config_conflict"

	// Storage errors
	CodeStorageUnavailable ErrorCode = "storage_unavailable"
	CodeQueryFailed        ErrorCode = "query_failed"
	CodeWriteFailed        ErrorCode = "write_failed"

	// Internal errors
	CodeUnexpectedError   ErrorCode = "unexpected_error"
	CodeResourceExhausted ErrorCode = "resource_exhausted"
	CodeCancelled         ErrorCode = "cancelled"
)

// DetectorError is the base error type for all application errors
type DetectorError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *DetectorError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *DetectorError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *DetectorError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryInternal:
		return 5
	case CategoryStorage:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *DetectorError) WithContext(key string, value interface{}) *DetectorError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *DetectorError) WithSuggestion(suggestion string) *DetectorError {
	e.Suggestion = suggestion
	return e
}

// New creates a new DetectorError
func New(category ErrorCategory, code ErrorCode, message string) *DetectorError {
	return &DetectorError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with DetectorError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *DetectorError {
	if err == nil {
		return nil
	}

	return &DetectorError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message, suggestion string, err error) *DetectorError {
	var result *DetectorError
	if err != nil {
		result = Wrap(err, category, code, message)
	} else {
		result = New(category, code, message)
	}
	return result.WithSuggestion(suggestion)
}

// template is the message format and remedy attached to an error code
type template struct {
	format     string
	suggestion string
}

var fileTemplates = map[ErrorCode]template{
	CodeFileNotFound:   {"file not found: %s", "check the path passed to --input and that the export was written"},
	CodeFilePermission: {"permission denied accessing file: %s", "make the invoice export readable by the current user"},
	CodeFileCorrupted:  {"file appears to be corrupted: %s", "re-export the invoices from the regional system"},
	CodeDirectoryError: {"directory error: %s", "create the directory or pick another output location"},
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *DetectorError {
	t, ok := fileTemplates[code]
	if !ok {
		t = template{"file error: %s", "check the file and try again"}
	}

	return build(CategoryFile, code, fmt.Sprintf(t.format, path), t.suggestion, err).
		WithContext("file_path", path)
}

var parseTemplates = map[ErrorCode]template{
	CodeInvalidFormat: {"%s:%d: column '%s' has an unexpected format: '%s'", "compare the row against the selected --layout"},
	CodeInvalidData:   {"%s:%d: column '%s' holds invalid data: '%s'", "fix or drop the row; use --stop-on-error to halt on the first bad row"},
}

// ParseError creates a parsing-related error
func ParseError(code ErrorCode, file string, line int, column string, value string, err error) *DetectorError {
	var message, suggestion string

	switch t, ok := parseTemplates[code]; {
	case ok:
		message, suggestion = fmt.Sprintf(t.format, file, line, column, value), t.suggestion
	case code == CodeMissingColumn:
		message = fmt.Sprintf("%s has no '%s' column", file, column)
		suggestion = "check the header row or choose a layout that maps this column"
	case code == CodeEncodingError:
		message = fmt.Sprintf("%s:%d: text is not valid UTF-8", file, line)
		suggestion = "re-export the file as UTF-8"
	default:
		message = fmt.Sprintf("%s:%d: row could not be parsed", file, line)
		suggestion = "check the file format and data integrity"
	}

	return build(CategoryParse, code, message, suggestion, err).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column).
		WithContext("value", value)
}

var validationTemplates = map[ErrorCode]template{
	CodeInvalidAmount:    {"field '%s' is not a valid amount: %v", "write amounts as plain decimals such as 50000.00"},
	CodeInvalidTimestamp: {"field '%s' is not a valid timestamp: %v", "use RFC3339 or YYYY-MM-DD HH:MM:SS"},
	CodeOutOfRange:       {"field '%s' is out of range: %v", "see 'detector detect --help' for accepted ranges"},
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *DetectorError {
	var message, suggestion string

	if t, ok := validationTemplates[code]; ok {
		message, suggestion = fmt.Sprintf(t.format, field, value), t.suggestion
	} else if code == CodeMissingField {
		message, suggestion = fmt.Sprintf("required field '%s' is missing or empty", field), "provide a value for this field"
	} else {
		message, suggestion = fmt.Sprintf("field '%s' failed validation: %v", field, value), "check the field value and format"
	}

	return build(CategoryValidation, code, message, suggestion, err).
		WithContext("field", field).
		WithContext("value", value)
}

var configTemplates = map[ErrorCode]template{
	CodeInvalidConfig:  {"setting '%s' has an invalid value: %v", "run with --help for the accepted values"},
	CodeMissingConfig:  {"setting '%s' is required (got %v)", "pass it as a flag, a DETECTOR_ environment variable or in the config file"},
	CodeConfigConflict: {"setting '%s' conflicts with another option: %v", "drop one of the conflicting options"},
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *DetectorError {
	t, ok := configTemplates[code]
	if !ok {
		t = template{"configuration error in '%s': %v", "check your configuration and try again"}
	}

	return build(CategoryConfiguration, code, fmt.Sprintf(t.format, setting, value), t.suggestion, err).
		WithContext("setting", setting).
		WithContext("value", value)
}

var storageTemplates = map[ErrorCode]template{
	CodeStorageUnavailable: {"registry storage unavailable during %s", "check the registry path and that the database file is writable"},
	CodeQueryFailed:        {"registry query failed during %s", "verify the registry schema or recreate the database"},
	CodeWriteFailed:        {"registry write failed during %s", "check free disk space and file permissions"},
}

// StorageError creates a registry storage error
func StorageError(code ErrorCode, operation string, err error) *DetectorError {
	t, ok := storageTemplates[code]
	if !ok {
		t = template{"storage error during %s", "check the registry backend and try again"}
	}

	return build(CategoryStorage, code, fmt.Sprintf(t.format, operation), t.suggestion, err).
		WithContext("operation", operation)
}

var internalTemplates = map[ErrorCode]template{
	CodeUnexpectedError:   {"unexpected failure in %s", "rerun with --verbose and report the output"},
	CodeResourceExhausted: {"ran out of resources in %s", "split the input into smaller files"},
	CodeCancelled:         {"%s was cancelled", "rerun the command; processed invoices remain in the registry"},
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *DetectorError {
	t, ok := internalTemplates[code]
	if !ok {
		t = template{"internal error in %s", "rerun with --verbose for details"}
	}

	return build(CategoryInternal, code, fmt.Sprintf(t.format, operation), t.suggestion, err).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*DetectorError      `json:"errors"`
	SampleErrors []*DetectorError      `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*DetectorError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if len(errs) == 0 {
		summary.Errors = []*DetectorError{}
		return summary
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	sort.Strings(categories)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// IsDetectorError checks if an error is a DetectorError
func IsDetectorError(err error) bool {
	_, ok := err.(*DetectorError)
	return ok
}

// AsDetectorError extracts a DetectorError from an error chain
func AsDetectorError(err error) (*DetectorError, bool) {
	var detectorErr *DetectorError
	if errors.As(err, &detectorErr) {
		return detectorErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already a DetectorError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *DetectorError {
	if err == nil {
		return nil
	}

	if detectorErr, ok := AsDetectorError(err); ok {
		return detectorErr
	}

	return Wrap(err, category, code, message)
}
