// =============================================================================
// Billing Inquiry - Workbook Decoder
// =============================================================================
//
// This module is responsible for turning uploaded workbook bytes into a
// typed, row-ordered view of the FIRST worksheet. It does not know anything
// about billing records; the ingest package maps the decoded cells to fields.
//
// SUPPORTED CONTAINERS:
//   - Office Open XML workbooks (.xlsx)        : Decode        (excelize)
//   - Legacy BIFF8 workbooks (.xls)            : DecodeLegacy  (mscfb + BIFF records)
//
// CELL TYPING:
//   Cells keep the kind the workbook stored them as. This matters downstream:
//   a numeric cell in a date column is a date serial, while a text cell in the
//   same column is passed through untouched.
//
//   | Stored as                  | Decoded kind |
//   |----------------------------|--------------|
//   | shared / inline string     | CellText     |
//   | formula with string result | CellText     |
//   | number (incl. date serial) | CellNumber   |
//   | boolean                    | CellBool     |
//   | ISO 8601 date ("d" type)   | CellDate     |
//
// =============================================================================

package xlsxparser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/ginjaninja78/billing-inquiry/internal/types"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// MODERN WORKBOOKS
// =============================================================================

// Decode reads an .xlsx workbook held in memory and returns its first sheet.
//
// PARAMETERS:
//   - data: The complete workbook file contents.
//
// RETURNS:
//   - The decoded first sheet, header row at index 0.
//   - An error if the bytes are not a readable workbook.
//
// Other sheets in the workbook are ignored. The sheet is trimmed to its used
// range: leading blank rows and columns are dropped.
func Decode(data []byte) (*types.Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	// Raw values: numbers come back unformatted so date serials and amounts
	// survive without the cell's display format applied.
	rawRows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	sheet := &types.Sheet{
		Name: sheetName,
		Rows: make([]types.Row, len(rawRows)),
	}

	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		sheet.Date1904 = *props.Date1904
	}

	for r, raw := range rawRows {
		row := make(types.Row, len(raw))
		for c, value := range raw {
			if value == "" {
				continue
			}

			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, fmt.Errorf("invalid cell position row %d column %d: %w", r+1, c+1, err)
			}

			cellType, err := f.GetCellType(sheetName, axis)
			if err != nil {
				return nil, fmt.Errorf("failed to read cell %s: %w", axis, err)
			}

			row[c] = typedCell(cellType, value)
		}
		sheet.Rows[r] = row
	}

	sheet.TrimToUsedRange()
	return sheet, nil
}

// typedCell converts a raw excelize value into a typed cell.
func typedCell(cellType excelize.CellType, value string) types.Cell {
	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeError:
		return types.TextCell(value)

	case excelize.CellTypeBool:
		return types.BoolCell(value == "1" || strings.EqualFold(value, "true"))

	case excelize.CellTypeDate:
		return types.Cell{Kind: types.CellDate, Text: value}

	default:
		// Unset and "n" both mean a plain number in the sheet XML.
		if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return types.NumberCell(v)
		}
		return types.TextCell(value)
	}
}
