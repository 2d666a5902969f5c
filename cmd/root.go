// =============================================================================
// Billing Inquiry - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (billing)
//   ├── serveCmd    (billing serve)
//   ├── importCmd   (billing import --file bills.xlsx)
//   ├── searchCmd   (billing search "dela cruz")
//   ├── templateCmd (billing template --out template.xlsx)
//   ├── exportCmd   (billing export --out bills.xlsx)
//   └── versionCmd  (billing version)
//
// The root command owns the global flags (--config, --verbose); the wiring
// shared by the subcommands lives in app.go.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/ginjaninja78/billing-inquiry/internal/config"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "billing",
	Short: "Billing Inquiry - water bill lookup for Buenavista Water District",
	Long: `Billing Inquiry lets customers look up their current water bill by account
number or name, and lets an administrator replace the whole billing dataset by
uploading a spreadsheet (.xlsx, .xls or .csv).

Key Features:
  - Header keyword detection with positional fallback
  - Currency, thousands separator and date serial cleaning
  - Punctuation-insensitive, word-order-free matching
  - SQLite, MongoDB or in-memory storage

Example Usage:
  billing serve                          # Run the HTTP API
  billing import --file november.xlsx    # Replace the dataset from a file
  billing search "juan dela cruz"        # Look up a bill
  billing template --out template.xlsx   # Write the upload template`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.DefaultConfigPath,
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}
