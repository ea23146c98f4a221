package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"invoice-fraud-detector/cmd/detector/config"
	"invoice-fraud-detector/internal/detector"
	"invoice-fraud-detector/internal/matcher"
	"invoice-fraud-detector/internal/models"
	"invoice-fraud-detector/internal/parsers"
	"invoice-fraud-detector/internal/registry"
	"invoice-fraud-detector/internal/reporter"
	"invoice-fraud-detector/internal/vendors"
	"invoice-fraud-detector/pkg/errors"
	"invoice-fraud-detector/pkg/logger"
)

// Flags for the detect command
var (
	inputFiles          []string
	inputFormat         string
	inputLayout         string
	outputFormat        string
	outputFile          string
	profile             string
	windowHours         float64
	similarityThreshold float64
	alertThreshold      float64
	registryBackend     string
	registryPath        string
	ratesFile           string
	vendorsFile         string
	verifyVendors       bool
	stopOnError         bool
	showProgress        bool
)

var validOutputFormats = []string{"console", "json", "csv", "xlsx"}

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Screen invoice files for cross-regional duplicates",
	Long: `Detect feeds every invoice in the input files, in order, through the
detection engine. Invoices that match submissions from other regions inside
the time window raise a fraud alert; all invoices are recorded in the registry.

Input files may be CSV, JSON (an array of objects) or JSONL. Columns:
  invoice_id, region, currency, total_amount, submitted_at, invoice_text

Examples:
  # Screen one export
  detector detect --input invoices.csv

  # Several offices at once, strict thresholds, JSON report
  detector detect --input germany.csv,usa.jsonl --profile strict --output-format json

  # Keep the registry between runs so later batches are compared with earlier ones
  detector detect --input week12.csv --registry-path registry.db

  # Excel workbook with vendor verification
  detector detect --input invoices.csv --verify-vendors --output-format xlsx --output-file report.xlsx`,

	PreRunE: validateDetectFlags,
	RunE:    runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	// Input flags
	detectCmd.Flags().StringSliceVarP(&inputFiles, "input", "i", []string{}, "comma-separated invoice files (required)")
	detectCmd.Flags().StringVar(&inputFormat, "input-format", "auto", "input format: auto, csv, json, jsonl")
	detectCmd.Flags().StringVar(&inputLayout, "layout", "", "column layout: standard, erp (default: standard)")
	detectCmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "abort when an input file cannot be read")

	// Output flags
	detectCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv, xlsx")
	detectCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Detection flags
	detectCmd.Flags().StringVarP(&profile, "profile", "p", config.ProfileDefault, "detection profile: default, strict, relaxed")
	detectCmd.Flags().Float64Var(&windowHours, "window-hours", 0, "time window in hours (default: from profile)")
	detectCmd.Flags().Float64Var(&similarityThreshold, "similarity-threshold", 0, "minimum overall similarity for a match (default: from profile)")
	detectCmd.Flags().Float64Var(&alertThreshold, "alert-threshold", 0, "confidence above which an alert is raised (default: from profile)")
	detectCmd.Flags().StringVar(&ratesFile, "rates-file", "", "YAML currency conversion table")

	// Registry flags
	detectCmd.Flags().StringVar(&registryBackend, "registry", "", "registry backend: memory, sqlite")
	detectCmd.Flags().StringVar(&registryPath, "registry-path", "", "SQLite registry file (implies --registry sqlite)")

	// Collaborators
	detectCmd.Flags().BoolVar(&verifyVendors, "verify-vendors", false, "check vendor names against the known-vendor list")
	detectCmd.Flags().StringVar(&vendorsFile, "vendors-file", "", "YAML known-vendor list (implies --verify-vendors)")

	// UI flags
	detectCmd.Flags().BoolVar(&showProgress, "progress", false, "log progress while processing")

	detectCmd.MarkFlagRequired("input")

	for _, name := range []string{
		"input", "input-format", "layout", "stop-on-error",
		"output-format", "output-file",
		"profile", "window-hours", "similarity-threshold", "alert-threshold", "rates-file",
		"registry", "registry-path",
		"verify-vendors", "vendors-file",
		"progress",
	} {
		viper.BindPFlag(name, detectCmd.Flags().Lookup(name))
	}
}

func validateDetectFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	inputFiles = viper.GetStringSlice("input")
	inputFormat = viper.GetString("input-format")
	inputLayout = viper.GetString("layout")
	stopOnError = viper.GetBool("stop-on-error")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	profile = viper.GetString("profile")
	windowHours = viper.GetFloat64("window-hours")
	similarityThreshold = viper.GetFloat64("similarity-threshold")
	alertThreshold = viper.GetFloat64("alert-threshold")
	ratesFile = viper.GetString("rates-file")
	registryBackend = viper.GetString("registry")
	registryPath = viper.GetString("registry-path")
	verifyVendors = viper.GetBool("verify-vendors")
	vendorsFile = viper.GetString("vendors-file")
	showProgress = viper.GetBool("progress")

	if len(inputFiles) == 0 {
		return fmt.Errorf("at least one input file is required")
	}
	var fileErrs []error
	for i, path := range inputFiles {
		if err := validateFileExists(path, fmt.Sprintf("input file %d", i+1)); err != nil {
			fileErrs = append(fileErrs, err)
		}
	}
	if len(fileErrs) > 0 {
		return errors.New(errors.CategoryFile, errors.CodeFileNotFound, FormatValidationErrors(fileErrs))
	}

	if _, err := parsers.ParseFormat(inputFormat); err != nil {
		return err
	}

	if !isValidOutputFormat(outputFormat) {
		return fmt.Errorf("invalid output format '%s'. Valid formats: %s", outputFormat, strings.Join(validOutputFormats, ", "))
	}
	if reporter.OutputFormat(outputFormat).IsBinary() && outputFile == "" {
		return fmt.Errorf("output format '%s' requires --output-file", outputFormat)
	}

	if _, err := config.DetectionProfile(profile); err != nil {
		return err
	}

	if windowHours < 0 {
		return fmt.Errorf("window hours cannot be negative")
	}
	if similarityThreshold < 0 || similarityThreshold > 1.3 {
		return fmt.Errorf("similarity threshold must be between 0.0 and 1.3")
	}
	if alertThreshold < 0 || alertThreshold > 1.0 {
		return fmt.Errorf("alert threshold must be between 0.0 and 1.0")
	}

	for flag, path := range map[string]string{"rates-file": ratesFile, "vendors-file": vendorsFile} {
		if path == "" {
			continue
		}
		if err := validateFileExists(path, flag); err != nil {
			return err
		}
	}

	if _, err := config.CreateRegistryConfig(registryBackend, registryPath); err != nil {
		return err
	}

	if outputFile != "" {
		if err := validateOutputDir(outputFile); err != nil {
			return err
		}
	}

	return nil
}

func isValidOutputFormat(format string) bool {
	for _, f := range validOutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

func validateOutputDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("output directory does not exist: %s", dir)
	}
	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	log := logger.GetGlobalLogger().WithComponent("cli")

	log.WithFields(logger.Fields{
		"inputs":  strings.Join(inputFiles, ", "),
		"profile": profile,
		"format":  outputFormat,
	}).Info("Starting detection")

	detectionConfig, err := config.CreateDetectionConfig(profile, config.DetectionOverrides{
		WindowHours:         windowHours,
		SimilarityThreshold: similarityThreshold,
		AlertThreshold:      alertThreshold,
		RatesFile:           ratesFile,
	})
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "detection", profile, err)
	}

	parserConfig, err := config.CreateParserConfig(inputLayout)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "layout", inputLayout, err)
	}
	if format, _ := parsers.ParseFormat(inputFormat); format != parsers.FormatAuto {
		parserConfig.Format = format
	}

	reportConfig := config.CreateReportConfig(outputFormat)
	if err := config.ValidateConfig(detectionConfig, parserConfig, reportConfig); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "detect", nil, err)
	}

	submissions, err := loadSubmissions(ctx, parserConfig)
	if err != nil {
		return err
	}

	registryConfig, err := config.CreateRegistryConfig(registryBackend, registryPath)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "registry", registryBackend, err)
	}
	reg, err := registry.New(ctx, registryConfig)
	if err != nil {
		return err
	}
	defer reg.Close()

	runner, err := newRunner(reg, detectionConfig)
	if err != nil {
		return err
	}

	result, runErr := runner.Run(ctx, submissions)
	if runErr != nil && (result == nil || len(result.Rows) == 0) {
		return runErr
	}

	generator, err := reporter.NewSafeReportGenerator(reportConfig, nil)
	if err != nil {
		return err
	}

	if outputFile != "" {
		err = generator.GenerateToFile(result, outputFile)
	} else {
		err = generator.GenerateReportSafely(result, cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}

	log.WithFields(logger.Fields{
		"processed": result.Summary.TotalProcessed,
		"alerts":    len(result.Alerts),
		"savings":   detector.FormatUSD(result.Summary.TotalSavings),
		"duration":  result.Summary.Duration,
	}).Info("Detection completed")

	// A partial report was written; still fail the command
	return runErr
}

// loadSubmissions reads every input file concurrently, keeping input order
func loadSubmissions(ctx context.Context, parserConfig *parsers.InvoiceParserConfig) ([]*models.InvoiceSubmission, error) {
	parser, err := parsers.NewInvoiceParser(parserConfig)
	if err != nil {
		return nil, err
	}

	loader, err := parsers.NewConcurrentParser(parser, config.CreateLoaderConfig(stopOnError))
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "loader", nil, err)
	}

	submissions, stats, err := loader.LoadAll(ctx, inputFiles)
	if err != nil {
		return nil, err
	}

	if stats.HasErrors() {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", stats.String())
		if viper.GetBool("verbose") {
			for _, sample := range stats.GetSampleErrors(10) {
				fmt.Fprintf(os.Stderr, "  %s\n", sample)
			}
		}
	}

	if len(submissions) == 0 {
		return nil, errors.ValidationError(errors.CodeMissingField, "input", strings.Join(inputFiles, ","), nil).
			WithSuggestion("Check that the input files contain invoice rows")
	}
	return submissions, nil
}

// newRunner wires the engine and the batch runner for one invocation
func newRunner(reg registry.Registry, detectionConfig *matcher.DetectionConfig) (*detector.Runner, error) {
	engine, err := detector.NewEngine(reg, detectionConfig)
	if err != nil {
		return nil, err
	}

	runner, err := detector.NewRunner(engine, config.CreateRunnerConfig(showProgress, verifyVendors || vendorsFile != ""))
	if err != nil {
		return nil, err
	}

	if vendorsFile != "" {
		known, err := config.LoadKnownVendors(vendorsFile)
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "vendors-file", vendorsFile, err)
		}
		runner.WithVerifier(vendors.NewVerifier(known))
	}

	return runner, nil
}
