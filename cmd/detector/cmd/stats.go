package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"invoice-fraud-detector/internal/matcher"
	"invoice-fraud-detector/internal/models"
	"invoice-fraud-detector/internal/registry"
)

var (
	statsRegistryPath string
	statsJSON         bool
)

// statsCmd reports on a persisted registry
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the contents of a persisted registry",
	Long: `Stats opens a SQLite registry written by 'detector detect --registry-path'
and prints how many invoices it holds per region and per status, together with
the regional offices and currencies the detector knows about.

Examples:
  detector stats --registry-path registry.db
  detector stats --registry-path registry.db --json`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFileExists(statsRegistryPath, "registry file")
	},
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&statsRegistryPath, "registry-path", "", "SQLite registry file (required)")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print the summary as JSON")

	statsCmd.MarkFlagRequired("registry-path")
}

// registryStats is the stats command output
type registryStats struct {
	Path                string                  `json:"path"`
	Summary             *registry.Summary       `json:"summary"`
	RegionalCenters     []models.RegionalCenter `json:"regional_centers"`
	SupportedCurrencies []string                `json:"supported_currencies"`
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	reg, err := registry.OpenSQLite(ctx, statsRegistryPath)
	if err != nil {
		return err
	}
	defer reg.Close()

	summary, err := reg.Summarize(ctx)
	if err != nil {
		return err
	}

	stats := registryStats{
		Path:                statsRegistryPath,
		Summary:             summary,
		RegionalCenters:     models.RegionalCenters(),
		SupportedCurrencies: matcher.DefaultRates().Currencies(),
	}

	if statsJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	printStats(cmd.OutOrStdout(), stats)
	return nil
}

func printStats(w io.Writer, stats registryStats) {
	s := stats.Summary

	fmt.Fprintf(w, "Registry: %s\n", stats.Path)
	fmt.Fprintf(w, "Invoices: %d\n", s.Total)
	if s.Total > 0 {
		fmt.Fprintf(w, "Span:     %s .. %s\n", s.Earliest.UTC().Format(time.RFC3339), s.Latest.UTC().Format(time.RFC3339))
	}

	fmt.Fprintf(w, "\nBy region:\n")
	for _, key := range sortedKeys(s.ByRegion) {
		fmt.Fprintf(w, "  %-12s %6d\n", key, s.ByRegion[key])
	}

	fmt.Fprintf(w, "\nBy status:\n")
	for _, key := range sortedKeys(s.ByStatus) {
		fmt.Fprintf(w, "  %-12s %6d\n", key, s.ByStatus[key])
	}

	fmt.Fprintf(w, "\nRegional centers:\n")
	for _, c := range stats.RegionalCenters {
		fmt.Fprintf(w, "  %-12s %s\n", c.Region, c.Currency)
	}

	fmt.Fprintf(w, "\nSupported currencies: %s\n", strings.Join(stats.SupportedCurrencies, ", "))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
