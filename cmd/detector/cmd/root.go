package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"invoice-fraud-detector/pkg/logger"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "detector",
	Short: "Cross-regional duplicate invoice detector",
	Long: `Detector flags invoices that were submitted to several regional offices
but describe the same purchase. Each invoice is fingerprinted, compared with
recent submissions from other regions, and either stored or flagged with a
fraud alert and supporting evidence.

Examples:
  detector detect --input invoices.csv
  detector detect --input germany.csv,usa.jsonl --output-format json --profile strict
  detector detect --input invoices.csv --registry-path registry.db
  detector demo
  detector stats --registry-path registry.db
  detector generate --count 500 --output sample.csv`,
	Version:       getVersionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Interrupts cancel the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	viper.SetEnvPrefix("DETECTOR")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(4)
		}
	}

	if err := setupLogger(viper.GetBool("verbose"), viper.GetString("log-format")); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %s\n", err)
		os.Exit(4)
	}

	if cfgFile != "" {
		logger.WithField("file", viper.ConfigFileUsed()).Info("Using config file")
	}
}

// setupLogger installs the global logger. Logs always go to stderr so stdout
// carries only the report.
func setupLogger(verbose bool, format string) error {
	config := logger.DefaultConfig()
	if verbose {
		config = logger.VerboseConfig()
	}
	if format != "" {
		config.Format = logger.Format(format)
	}

	log, err := logger.NewLogger(config)
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)
	return nil
}

// commandContext returns the command context, or a background context when
// the command runs outside Execute
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
