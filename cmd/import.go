// =============================================================================
// Billing Inquiry - Import Command
// =============================================================================
//
// This command replaces the stored billing dataset from a spreadsheet on
// disk, exactly as an admin upload through the API would.
//
// COMMAND USAGE:
//   billing import --file november.xlsx [flags]
//
// FLAGS:
//   --file     : The spreadsheet to import (.xlsx, .xls, .csv)
//   --dry-run  : Parse and check the file without storing it
//   --archive  : Move the file into the archive directory after import
//   --report   : Write an import summary (and findings log) to this directory
//
// IMPORT PIPELINE:
//   1. Read the file (size-capped)
//   2. Validate, parse and check it
//   3. Replace the stored dataset
//   4. Archive the file and prune old archives
//   5. Write the summary report
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/billing-inquiry/internal/service"
	"github.com/ginjaninja78/billing-inquiry/internal/validation"
	"github.com/ginjaninja78/billing-inquiry/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	importFile      string
	importDryRun    bool
	importArchive   bool
	importReportDir string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace the billing dataset from a spreadsheet",
	Long: `The import command reads a billing spreadsheet, cleans and checks every row,
and replaces the entire stored dataset with the result.

On success:
  - The stored dataset is replaced
  - The file is moved to the archive directory (with --archive)
  - A summary report is written (with --report)

On error:
  - The stored dataset is left untouched
  - The file stays where it is`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Spreadsheet to import")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse and check the file without storing it")
	importCmd.Flags().BoolVar(&importArchive, "archive", false, "Move the file to the archive directory after a successful import")
	importCmd.Flags().StringVar(&importReportDir, "report", "", "Directory for the import summary and findings log")
	importCmd.MarkFlagRequired("file")
}

// =============================================================================
// IMPORT EXECUTION
// =============================================================================

func runImport(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	summary := utils.ImportSummary{
		StartTime: time.Now(),
		InputFile: importFile,
		Store:     a.cfg.Storage.Driver,
	}

	result, err := importOnce(ctx, a)
	summary.EndTime = time.Now()
	if err != nil {
		summary.Failed = true
		summary.ErrorMessage = err.Error()
		writeReport(a, summary, nil)
		return err
	}

	summary.Format = result.Format.String()
	summary.Mapping = string(result.Mapping)
	summary.RowsRead = result.Stats.RowsRead
	summary.SkippedEmpty = result.Stats.SkippedEmpty
	summary.Dropped = result.Stats.Dropped
	summary.DuplicateIDs = result.Stats.DuplicateIDs
	summary.NegativeClamped = result.Stats.NegativeClamped
	summary.Records = result.Records
	summary.Warnings = len(result.Findings)

	if importArchive && !importDryRun {
		archivePath, err := archiveImported(a)
		if err != nil {
			// The dataset is already replaced; a failed archive is reported only.
			a.log.Warn("Archiving %s failed: %v", importFile, err)
		}
		summary.ArchivePath = archivePath
	}

	writeReport(a, summary, result.Findings)

	verb := "Imported"
	if importDryRun {
		verb = "Checked (dry run)"
	}
	fmt.Println("=== Billing Import ===")
	fmt.Printf("%s:        %s\n", verb, importFile)
	fmt.Printf("Format:         %s (%s mapping)\n", summary.Format, summary.Mapping)
	fmt.Printf("Rows read:      %d\n", summary.RowsRead)
	fmt.Printf("Blank rows:     %d\n", summary.SkippedEmpty)
	fmt.Printf("Dropped rows:   %d\n", summary.Dropped)
	fmt.Printf("Re-keyed ids:   %d\n", summary.DuplicateIDs)
	fmt.Printf("Clamped:        %d\n", summary.NegativeClamped)
	fmt.Printf("Records:        %d\n", summary.Records)
	fmt.Printf("Warnings:       %d\n", summary.Warnings)
	if summary.ArchivePath != "" {
		fmt.Printf("Archived to:    %s\n", summary.ArchivePath)
	}
	fmt.Printf("Time elapsed:   %s\n", summary.EndTime.Sub(summary.StartTime))
	return nil
}

// importOnce reads the file and hands it to the billing service.
func importOnce(ctx context.Context, a *app) (*service.UploadResult, error) {
	data, err := utils.ReadUpload(importFile, a.cfg.Server.MaxUploadBytes())
	if err != nil {
		return nil, err
	}

	name := filepath.Base(importFile)
	if importDryRun {
		result, _, err := a.billing.Preview(name, data)
		return result, err
	}
	return a.billing.Upload(ctx, name, data)
}

// archiveImported moves the imported file to the archive and applies the
// retention policy.
func archiveImported(a *app) (string, error) {
	archive := utils.NewArchiveManager(a.cfg.Ingestion.ArchiveDir)
	archivePath, err := archive.ArchiveFile(importFile)
	if err != nil {
		return "", err
	}

	pruneArchive(a, archive)
	return archivePath, nil
}

// pruneArchive applies the configured archive retention.
func pruneArchive(a *app, archive *utils.ArchiveManager) {
	retention := time.Duration(a.cfg.Ingestion.ArchiveRetentionDays) * 24 * time.Hour
	if removed, err := archive.CleanOlderThan(retention); err != nil {
		a.log.Warn("Cleaning old archives failed: %v", err)
	} else if removed > 0 {
		a.log.Info("Removed %d archived uploads older than %d days", removed, a.cfg.Ingestion.ArchiveRetentionDays)
	}
}

// writeReport writes the summary and findings log when --report is set.
func writeReport(a *app, summary utils.ImportSummary, findings []*validation.ValidationError) {
	if importReportDir == "" {
		return
	}

	path, err := utils.WriteSummaryLog(summary, importReportDir)
	if err != nil {
		a.log.Warn("Writing import summary failed: %v", err)
		return
	}
	a.log.Info("Import summary written to %s", path)

	if len(findings) == 0 {
		return
	}
	logPath := filepath.Join(importReportDir,
		fmt.Sprintf("import_findings_%s.log", summary.StartTime.Format("20060102_150405")))
	if err := validation.WriteErrorLog(findings, logPath); err != nil {
		a.log.Warn("Writing findings log failed: %v", err)
	}
}
