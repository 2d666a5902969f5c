package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ginjaninja78/billing-inquiry/internal/workbook"
	"github.com/spf13/cobra"
)

var (
	templateOut string
	exportOut   string
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write the blank upload template workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := workbook.Template()
		if err != nil {
			return err
		}
		return writeOutput(templateOut, data)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored billing dataset as a workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		stats, err := a.billing.Load(ctx)
		if err != nil {
			return err
		}

		data, err := workbook.Export(a.billing.Records())
		if err != nil {
			return err
		}
		if err := writeOutput(exportOut, data); err != nil {
			return err
		}
		a.log.Info("Exported %d records (source: %s)", stats.Count, stats.Source)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(exportCmd)

	templateCmd.Flags().StringVarP(&templateOut, "out", "o", workbook.TemplateFilename, "Output file")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", workbook.ExportFilename, "Output file")
}

func writeOutput(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", path, len(data))
	return nil
}
