// =============================================================================
// Billing Inquiry - Main Entry Point
// =============================================================================
//
// This is the main entry point for the Billing Inquiry application. It hands
// control to the Cobra CLI in the cmd package.
//
// USAGE:
//   billing serve       - Run the HTTP API
//   billing import      - Replace the billing dataset from a spreadsheet
//   billing search      - Look up bills from the terminal
//   billing template    - Write the upload template
//   billing export      - Write the stored dataset as a workbook
//   billing version     - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core business logic (not for external import)
//   - pkg/           : Shared utilities
//   - config.yaml    : Main configuration
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/billing-inquiry/cmd"
)

func main() {
	cmd.Execute()
}
