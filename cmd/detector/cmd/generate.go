package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"invoice-fraud-detector/internal/scenarios"
)

var (
	genCount         int
	genDuplicateRate float64
	genSeed          int64
	genStart         string
	genSpanDays      int
	genOutput        string
)

// generateCmd writes a synthetic invoice stream for load and recall testing
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic invoice file with injected duplicates",
	Long: `Generate writes a reproducible CSV of synthetic invoices from the known
regional offices. A share of the purchases is re-submitted to a second office
within 48 hours; the IDs of those re-submissions are printed to stderr so a
later 'detector detect' run can be checked against them.

Examples:
  detector generate --count 1000 --output invoices.csv
  detector generate --count 200 --duplicate-rate 0.2 --seed 42 --output sample.csv`,
	PreRunE: validateGenerateFlags,
	RunE:    runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntVarP(&genCount, "count", "n", 1000, "number of purchases to generate")
	generateCmd.Flags().Float64Var(&genDuplicateRate, "duplicate-rate", 0.1, "share of purchases re-submitted to a second region (0.0-1.0)")
	generateCmd.Flags().Int64Var(&genSeed, "seed", time.Now().UnixNano(), "random seed for reproducible generation")
	generateCmd.Flags().StringVar(&genStart, "start-date", "2024-01-01", "first submission date (YYYY-MM-DD)")
	generateCmd.Flags().IntVar(&genSpanDays, "span-days", 30, "days over which submissions are spread")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "output CSV file (default: stdout)")
}

func validateGenerateFlags(cmd *cobra.Command, args []string) error {
	if genCount <= 0 {
		return fmt.Errorf("count must be positive")
	}
	if genDuplicateRate < 0 || genDuplicateRate > 1 {
		return fmt.Errorf("duplicate rate must be between 0.0 and 1.0")
	}
	if genSpanDays <= 0 {
		return fmt.Errorf("span days must be positive")
	}
	if _, err := time.Parse("2006-01-02", genStart); err != nil {
		return fmt.Errorf("invalid start date format. Use YYYY-MM-DD: %w", err)
	}
	if genOutput != "" {
		return validateOutputDir(genOutput)
	}
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	start, _ := time.Parse("2006-01-02", genStart)

	generator := scenarios.NewGenerator(genCount, start, genSeed)
	generator.DuplicateRate = genDuplicateRate
	generator.Span = time.Duration(genSpanDays) * 24 * time.Hour

	generated := generator.Generate()

	out := cmd.OutOrStdout()
	if genOutput != "" {
		file, err := os.Create(genOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	if err := scenarios.WriteCSV(out, generated.Submissions); err != nil {
		return fmt.Errorf("failed to write invoices: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Generated %d invoices (%d injected duplicates), seed %d\n",
		len(generated.Submissions), len(generated.Duplicates), genSeed)
	if len(generated.Duplicates) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Duplicates: %s\n", strings.Join(generated.Duplicates, ","))
	}
	return nil
}
