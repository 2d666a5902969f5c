// =============================================================================
// Billing Inquiry - Workbook Writer
// =============================================================================
//
// This module generates the workbooks the administrator downloads: the blank
// upload template and an export of the collection currently served. Both use
// the canonical header row, so an exported workbook can be uploaded again
// unchanged.
//
// LAYOUT:
//
//   | ID | Account Number | Account Name | Address | Amount | Due Date | Amount After Due Date |
//   |----|----------------|--------------|---------|--------|----------|-----------------------|
//   | 1  | 100-001-000    | Juan ...     | ...     | 520.50 | 2023-... | 572.55                |
//
//   - Account numbers and ids are written as text, never as numbers
//   - Amounts are written as numbers rounded to centavos
//   - Due dates are written as YYYY-MM-DD text
//
// =============================================================================

package workbook

import (
	"bytes"
	"fmt"

	"github.com/ginjaninja78/billing-inquiry/internal/types"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// TemplateFilename is the name the upload template is served under.
const TemplateFilename = "bwd_database_template.xlsx"

// ExportFilename is the default name for exported collections.
const ExportFilename = "bwd_billing_export.xlsx"

// templateSample is the single example row of the upload template.
var templateSample = types.BillingRecord{
	ID:                 "1",
	AccountNumber:      "100-001-000",
	AccountName:        "Juan Dela Cruz",
	Address:            "Poblacion, Buenavista",
	Amount:             520.50,
	DueDate:            "2023-11-15",
	AmountAfterDueDate: 572.55,
}

// =============================================================================
// GENERATION OPTIONS
// =============================================================================

// Options contains options for workbook generation.
type Options struct {
	// SheetName is the name of the single worksheet.
	SheetName string

	// AmountPlaces is the number of decimal places amounts are rounded to.
	// Default: 2
	AmountPlaces int32

	// AmountFormat is the display number format applied to amount columns.
	// Default: "#,##0.00"
	AmountFormat string

	// ColumnWidth is the width of every column.
	// Default: 22
	ColumnWidth float64
}

// DefaultTemplateOptions returns the options used for the upload template.
func DefaultTemplateOptions() Options {
	return Options{
		SheetName:    "Data Template",
		AmountPlaces: 2,
		AmountFormat: "#,##0.00",
		ColumnWidth:  22,
	}
}

// DefaultExportOptions returns the options used for collection exports.
func DefaultExportOptions() Options {
	opts := DefaultTemplateOptions()
	opts.SheetName = "Billing Data"
	return opts
}

// =============================================================================
// GENERATION FUNCTIONS
// =============================================================================

// Template returns the upload template: header row plus one sample row.
func Template() ([]byte, error) {
	return Generate([]types.BillingRecord{templateSample}, DefaultTemplateOptions())
}

// Export returns records as a workbook in the upload layout.
func Export(records []types.BillingRecord) ([]byte, error) {
	return Generate(records, DefaultExportOptions())
}

// Generate writes records below the canonical header row.
//
// PARAMETERS:
//   - records: The rows to write, in order.
//   - options: Sheet naming and formatting.
//
// RETURNS:
//   - The .xlsx file contents.
//   - An error if the workbook could not be built.
func Generate(records []types.BillingRecord, options Options) ([]byte, error) {
	options = withDefaults(options)

	f := excelize.NewFile()
	defer f.Close()

	// The new file starts with "Sheet1"; rename it rather than adding a second sheet.
	if err := f.SetSheetName(f.GetSheetName(0), options.SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	sheet := options.SheetName

	header := make([]interface{}, len(types.CanonicalHeaders))
	for i, h := range types.CanonicalHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range records {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := recordRow(r, options.AmountPlaces)
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			return nil, fmt.Errorf("failed to write record %s: %w", r.ID, err)
		}
	}

	if err := styleSheet(f, sheet, len(records), options); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// recordRow lays out one record in canonical column order.
func recordRow(r types.BillingRecord, places int32) []interface{} {
	return []interface{}{
		r.ID,
		r.AccountNumber,
		r.AccountName,
		r.Address,
		Amount(r.Amount, places),
		r.DueDate,
		Amount(r.AmountAfterDueDate, places),
	}
}

// Amount rounds v half away from zero to the given number of places.
// Float artifacts such as 572.5500000001 do not survive into the sheet.
func Amount(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// FormatAmount renders v with exactly places decimals, for text output.
func FormatAmount(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// styleSheet bolds the header, sets column widths, and applies the amount
// format to both amount columns.
func styleSheet(f *excelize.File, sheet string, rows int, options Options) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(types.CanonicalHeaders))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, options.ColumnWidth); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if rows == 0 {
		return nil
	}

	amountStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &options.AmountFormat})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}
	for _, field := range []types.Field{types.FieldAmount, types.FieldAmountAfterDueDate} {
		col, err := excelize.ColumnNumberToName(int(field) + 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, col+"2", fmt.Sprintf("%s%d", col, rows+1), amountStyle); err != nil {
			return fmt.Errorf("failed to style amounts: %w", err)
		}
	}
	return nil
}

func withDefaults(options Options) Options {
	defaults := DefaultTemplateOptions()
	if options.SheetName == "" {
		options.SheetName = defaults.SheetName
	}
	if options.AmountPlaces <= 0 {
		options.AmountPlaces = defaults.AmountPlaces
	}
	if options.AmountFormat == "" {
		options.AmountFormat = defaults.AmountFormat
	}
	if options.ColumnWidth <= 0 {
		options.ColumnWidth = defaults.ColumnWidth
	}
	return options
}
