package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"invoice-fraud-detector/internal/detector"
	"invoice-fraud-detector/internal/matcher"
	"invoice-fraud-detector/internal/parsers"
	"invoice-fraud-detector/internal/registry"
	"invoice-fraud-detector/internal/reporter"
	"invoice-fraud-detector/internal/vendors"
)

// Detection profile names
const (
	ProfileDefault = "default"
	ProfileStrict  = "strict"
	ProfileRelaxed = "relaxed"
)

// DetectionKey is the config file section decoded onto the selected profile
const DetectionKey = "detection"

// ListProfiles returns the available detection profiles
func ListProfiles() []string {
	return []string{ProfileDefault, ProfileStrict, ProfileRelaxed}
}

// DetectionProfile returns a fresh configuration for a named profile
func DetectionProfile(name string) (*matcher.DetectionConfig, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProfileDefault:
		return matcher.DefaultDetectionConfig(), nil
	case ProfileStrict:
		return matcher.StrictDetectionConfig(), nil
	case ProfileRelaxed:
		return matcher.RelaxedDetectionConfig(), nil
	default:
		return nil, fmt.Errorf("unknown detection profile '%s'. Valid profiles: %s", name, strings.Join(ListProfiles(), ", "))
	}
}

// DetectionOverrides carries command-line values that win over the profile
// and the config file. Zero values leave the setting untouched.
type DetectionOverrides struct {
	WindowHours         float64
	SimilarityThreshold float64
	AlertThreshold      float64
	RatesFile           string
}

// CreateDetectionConfig builds the detection configuration in three layers:
// the named profile, the "detection" section of the config file, then the
// command-line overrides.
func CreateDetectionConfig(profile string, overrides DetectionOverrides) (*matcher.DetectionConfig, error) {
	config, err := DetectionProfile(profile)
	if err != nil {
		return nil, err
	}

	if viper.IsSet(DetectionKey) {
		// A rates section replaces the table instead of merging into it
		if viper.IsSet(DetectionKey + ".rates") {
			config.Rates = nil
		}
		if err := viper.UnmarshalKey(DetectionKey, config); err != nil {
			return nil, fmt.Errorf("failed to decode %s section: %w", DetectionKey, err)
		}
		config.Rates = upperRates(config.Rates)
	}

	if overrides.WindowHours > 0 {
		config.TimeWindowHours = overrides.WindowHours
	}
	if overrides.SimilarityThreshold > 0 {
		config.SimilarityThreshold = overrides.SimilarityThreshold
	}
	if overrides.AlertThreshold > 0 {
		config.AlertThreshold = overrides.AlertThreshold
	}

	if overrides.RatesFile != "" {
		rates, err := LoadRateTable(overrides.RatesFile)
		if err != nil {
			return nil, err
		}
		config.Rates = rates
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection config: %w", err)
	}
	return config, nil
}

// upperRates re-keys a table by upper-case currency code
func upperRates(rates matcher.RateTable) matcher.RateTable {
	if rates == nil {
		return matcher.DefaultRates()
	}
	out := make(matcher.RateTable, len(rates))
	for code, rate := range rates {
		out[strings.ToUpper(code)] = rate
	}
	return out
}

// rateFile is the on-disk shape of a conversion table:
//
//	base: USD
//	rates:
//	  EUR: 1.18
//	  GBP: 1.28
type rateFile struct {
	Base  string             `yaml:"base"`
	Rates map[string]float64 `yaml:"rates"`
}

// LoadRateTable reads a YAML conversion table. Rates convert one unit of each
// currency into USD; the USD entry is added when missing.
func LoadRateTable(path string) (matcher.RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rates file: %w", err)
	}

	var file rateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rates file %s: %w", path, err)
	}

	if file.Base != "" && !strings.EqualFold(file.Base, "USD") {
		return nil, fmt.Errorf("rates file %s: base currency must be USD, got %s", path, file.Base)
	}
	if len(file.Rates) == 0 {
		return nil, fmt.Errorf("rates file %s contains no rates", path)
	}

	table := make(matcher.RateTable, len(file.Rates)+1)
	for code, rate := range file.Rates {
		code = strings.ToUpper(strings.TrimSpace(code))
		if rate <= 0 {
			return nil, fmt.Errorf("rates file %s: rate for %s must be positive, got %f", path, code, rate)
		}
		table[code] = rate
	}
	if _, ok := table["USD"]; !ok {
		table["USD"] = 1.0
	}

	return table, nil
}

// LoadKnownVendors reads a YAML list of legitimate vendors
func LoadKnownVendors(path string) ([]vendors.KnownVendor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendors file: %w", err)
	}

	var known []vendors.KnownVendor
	if err := yaml.Unmarshal(data, &known); err != nil {
		return nil, fmt.Errorf("failed to parse vendors file %s: %w", path, err)
	}

	for i, v := range known {
		if strings.TrimSpace(v.Name) == "" {
			return nil, fmt.Errorf("vendors file %s: entry %d has no name", path, i+1)
		}
		if v.Risk == "" {
			known[i].Risk = vendors.RiskLow
		}
	}
	return known, nil
}

// CreateRegistryConfig selects the registry backend
func CreateRegistryConfig(backend, path string) (*registry.Config, error) {
	config := registry.DefaultConfig()
	if backend != "" {
		config.Backend = registry.Backend(strings.ToLower(backend))
	}
	config.Path = path

	// A path on its own implies persistence
	if backend == "" && path != "" {
		config.Backend = registry.BackendSQLite
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateParserConfig returns the invoice column layout by name
func CreateParserConfig(layout string) (*parsers.InvoiceParserConfig, error) {
	if layout == "" {
		return parsers.DefaultInvoiceParserConfig(), nil
	}

	config := parsers.GetLayout(layout)
	if config == nil {
		var names []string
		for _, l := range parsers.ListAvailableLayouts() {
			names = append(names, l.Name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown input layout '%s'. Valid layouts: %s", layout, strings.Join(names, ", "))
	}
	return config.Clone(), nil
}

// CreateLoaderConfig returns the multi-file loader settings
func CreateLoaderConfig(stopOnError bool) *parsers.LoaderConfig {
	config := parsers.DefaultLoaderConfig()
	config.ContinueOnError = !stopOnError
	return config
}

// CreateRunnerConfig creates the batch runner configuration
func CreateRunnerConfig(showProgress, verifyVendors bool) *detector.RunnerConfig {
	config := detector.DefaultRunnerConfig()

	config.ShowProgress = showProgress
	config.VerifyVendors = verifyVendors

	return config
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	switch format {
	case "console":
		config.Format = reporter.FormatConsole
		config.UseColors = true
	case "json":
		config.Format = reporter.FormatJSON
		config.IncludeStoredInvoices = true
		config.IncludeProcessingStats = true
	case "csv":
		config.Format = reporter.FormatCSV
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	case "xlsx":
		config.Format = reporter.FormatXLSX
		config.SortByConfidence = true
	default:
		config.Format = reporter.OutputFormat(format)
	}

	return config
}

// ValidateConfig validates that all required configurations are valid
func ValidateConfig(detection *matcher.DetectionConfig, parser *parsers.InvoiceParserConfig, report *reporter.ReportConfig) error {
	if err := detection.Validate(); err != nil {
		return fmt.Errorf("invalid detection config: %w", err)
	}

	if err := parser.Validate(); err != nil {
		return fmt.Errorf("invalid parser config: %w", err)
	}

	if err := report.Validate(); err != nil {
		return fmt.Errorf("invalid report config: %w", err)
	}

	return nil
}
