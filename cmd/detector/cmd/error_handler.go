package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"invoice-fraud-detector/pkg/errors"
	"invoice-fraud-detector/pkg/logger"
)

// CLIErrorHandler turns command errors into messages and exit codes
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     os.Stderr,
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if detectorErr, ok := errors.AsDetectorError(err); ok {
		return h.handleDetectorError(detectorErr)
	}

	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleDetectorError(err *errors.DetectorError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case isFileNotFoundError(err):
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	case isPermissionError(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	case isDiskFullError(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "Run with --verbose for more detail\n")
	}
	return 1
}

func getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have permission to read inputs and write the report`

	case errors.CategoryParse:
		return `Parse error help:
• CSV files need a header row with at least region and invoice_text
• JSON input must be an array of objects; JSONL one object per line
• Ensure the file uses UTF-8 encoding
• Use --layout erp for semicolon-delimited ERP exports`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that every invoice has a region and invoice text
• Timestamps should be RFC 3339 (2024-03-11T09:30:00Z)
• Amounts are decimal numbers without currency symbols`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Thresholds: similarity 0.0-1.3, alert 0.0-1.0
• Use 'detector detect --help' to see all available options`

	case errors.CategoryStorage:
		return `Storage error help:
• Check that the registry file is a database written by this tool
• Make sure no other process holds a lock on the registry
• Remove --registry-path to run against an in-memory registry`

	default:
		return `For more help:
• Use 'detector --help' for general help
• Use 'detector detect --help' for command-specific help
• Use 'detector demo' to see a complete example run`
	}
}

func isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || stderrors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return os.IsPermission(err) || stderrors.Is(err, os.ErrPermission) ||
		strings.Contains(err.Error(), "permission denied")
}

func isDiskFullError(err error) bool {
	if stderrors.Is(err, syscall.ENOSPC) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full")
}

// FormatValidationErrors formats validation errors in a user-friendly way
func FormatValidationErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	if len(errs) == 1 {
		return fmt.Sprintf("Validation error: %v", errs[0])
	}

	lines := []string{fmt.Sprintf("Found %d validation errors:", len(errs))}
	for i, err := range errs {
		lines = append(lines, fmt.Sprintf("  %d. %v", i+1, err))
		if i >= 9 && len(errs) > 10 {
			lines = append(lines, fmt.Sprintf("  ... and %d more errors", len(errs)-10))
			break
		}
	}

	return strings.Join(lines, "\n")
}
