package reporter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"invoice-fraud-detector/internal/detector"
	"invoice-fraud-detector/pkg/errors"
	"invoice-fraud-detector/pkg/logger"
)

// SafeReportGenerator renders into memory first so a failed render never
// leaves a half-written report behind, then falls back to the console format
// or to a backup file when the requested format or destination fails.
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("Check the report configuration values")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely renders result and writes it to writer
func (srg *SafeReportGenerator) GenerateReportSafely(result *detector.RunResult, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Info("Starting report generation")

	if writer == nil {
		return errors.ValidationError(errors.CodeMissingField, "writer", nil, nil).
			WithSuggestion("Provide a valid output writer")
	}

	if err := srg.ValidateResult(result); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	rendered, err := srg.render(result)
	if err != nil {
		srg.logger.WithError(err).Error("Report generation failed")
		return err
	}

	if _, err := writer.Write(rendered); err != nil {
		if file, ok := writer.(*os.File); ok && isFileError(err) {
			return srg.writeBackup(file.Name(), rendered, err)
		}
		return srg.wrapGenerationError(err)
	}

	srg.logger.WithFields(logger.Fields{
		"run_id": result.RunID,
		"alerts": len(result.Alerts),
		"bytes":  len(rendered),
	}).Info("Report generation completed successfully")
	return nil
}

// GenerateToFile renders result and writes it to path. The file is only
// created once the report has rendered.
func (srg *SafeReportGenerator) GenerateToFile(result *detector.RunResult, path string) error {
	if err := srg.ValidateResult(result); err != nil {
		return err
	}

	rendered, err := srg.render(result)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, rendered, 0o644); err != nil {
		if isFileError(err) {
			return srg.writeBackup(path, rendered, err)
		}
		return errors.FileError(errors.CodeDirectoryError, path, err)
	}

	srg.logger.WithFields(logger.Fields{
		"file":   path,
		"format": srg.config.Format,
		"alerts": len(result.Alerts),
	}).Info("Report written")
	return nil
}

// render produces the report bytes, retrying in console format when a
// structured format fails
func (srg *SafeReportGenerator) render(result *detector.RunResult) ([]byte, error) {
	var buf bytes.Buffer
	err := srg.GenerateReport(result, &buf)
	if err == nil {
		return buf.Bytes(), nil
	}

	if srg.config.Format == FormatConsole {
		return nil, srg.wrapGenerationError(err)
	}

	srg.logger.WithError(err).
		WithField("fallback_format", FormatConsole).
		Warn("Primary report generation failed, attempting format fallback")

	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole
	fallbackConfig.UseColors = false

	fallback, fallbackErr := NewReportGenerator(&fallbackConfig)
	if fallbackErr != nil {
		return nil, srg.wrapGenerationError(err)
	}

	buf.Reset()
	fmt.Fprintf(&buf, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(&buf, "Original error: %v\n\n", err)

	if fallbackErr := fallback.GenerateReport(result, &buf); fallbackErr != nil {
		return nil, errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", err, fallbackErr),
		)
	}

	srg.logger.Info("Report generated successfully using format fallback")
	return buf.Bytes(), nil
}

// writeBackup stores rendered next to originalPath after the original write failed
func (srg *SafeReportGenerator) writeBackup(originalPath string, rendered []byte, originalErr error) error {
	backupPath := backupPathFor(originalPath)

	srg.logger.WithFields(logger.Fields{
		"original_file": originalPath,
		"backup_file":   backupPath,
	}).WithError(originalErr).Warn("Attempting output fallback")

	if err := os.WriteFile(backupPath, rendered, 0o644); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_output_fallback",
			fmt.Errorf("both primary and backup output failed: primary=%v, backup=%v", originalErr, err),
		)
	}

	srg.logger.WithField("backup_file", backupPath).Info("Report generated successfully using output fallback")
	fmt.Fprintf(os.Stderr, "Warning: Could not write to %s, report saved to %s\n", originalPath, backupPath)
	return nil
}

// wrapGenerationError wraps generation errors with context
func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if detectorErr, ok := errors.AsDetectorError(err); ok {
		return detectorErr
	}

	return errors.InternalError(
		errors.CodeUnexpectedError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

// ValidateResult checks that a run result can be rendered
func (srg *SafeReportGenerator) ValidateResult(result *detector.RunResult) error {
	if result == nil {
		return errors.ValidationError(errors.CodeMissingField, "result", nil, nil).
			WithSuggestion("Provide the result of a detection run")
	}

	for _, row := range result.Rows {
		if row.Decision == nil || row.Decision.Invoice == nil {
			return errors.ValidationError(
				errors.CodeMissingField,
				fmt.Sprintf("rows[%d].decision", row.Index),
				nil,
				nil,
			).WithSuggestion("Render only results returned by detector.Runner")
		}
	}

	if len(result.Rows) == 0 && srg.config.Format != FormatConsole {
		srg.logger.Warn("No processed invoices available for report output")
	}

	return nil
}

func backupPathFor(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", name, ext))
}

func isFileError(err error) bool {
	return os.IsPermission(err) ||
		os.IsNotExist(err) ||
		os.IsExist(err) ||
		isSpaceError(err)
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case nil:
		return "none"
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}

func isSpaceError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
