// =============================================================================
// Billing Inquiry - Cell Cleaning
// =============================================================================
//
// Field-specific coercion of decoded cells. Cleaning is lenient: a cell that
// cannot be coerced falls back to a default ("" or 0) and the run continues.
// The fallback is reported to the caller only as a counter.
//
// TRUTHINESS:
//   Spreadsheet values are "falsy" when empty, numeric zero, or boolean false.
//   Falsy values clean to "" in text fields and trigger a synthesized id.
//
// NUMERIC TEXT:
//   Currency symbols and thousands separators are removed before parsing, so
//   "₱1,234.50" reads as 1234.5. Parsing goes through decimal to avoid the
//   float rounding of strconv on values like "572.55".
//
// =============================================================================

package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/billing-inquiry/internal/types"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// dateLayout is the output format for converted date serials.
const dateLayout = "2006-01-02"

// DefaultCurrencySymbols are stripped from numeric text.
var DefaultCurrencySymbols = []string{"₱"}

// DefaultThousandsSeparators are stripped from numeric text.
var DefaultThousandsSeparators = []string{","}

// =============================================================================
// CLEANER
// =============================================================================

// Cleaner coerces cells into record field values.
type Cleaner struct {
	strip    *strings.Replacer
	date1904 bool
}

// NewCleaner builds a Cleaner that removes the given symbols and separators
// from numeric text. Empty strings in either list are ignored.
func NewCleaner(currencySymbols, thousandsSeparators []string) *Cleaner {
	var pairs []string
	for _, s := range append(append([]string{}, currencySymbols...), thousandsSeparators...) {
		if s != "" {
			pairs = append(pairs, s, "")
		}
	}
	return &Cleaner{strip: strings.NewReplacer(pairs...)}
}

// ForSheet returns a copy of the cleaner bound to a sheet's date system.
func (c *Cleaner) ForSheet(sheet *types.Sheet) *Cleaner {
	bound := *c
	bound.date1904 = sheet != nil && sheet.Date1904
	return &bound
}

// Text returns the trimmed textual value of a cell, "" for falsy cells.
func (c *Cleaner) Text(cell types.Cell) string {
	if isFalsy(cell) {
		return ""
	}
	return strings.TrimSpace(cell.Text)
}

// ID returns the cell's text, or "row-<rowIndex>" when the cell is falsy
// or blank after trimming.
func (c *Cleaner) ID(cell types.Cell, rowIndex int) string {
	if id := c.Text(cell); id != "" {
		return id
	}
	return PlaceholderID(rowIndex)
}

// PlaceholderID is the synthesized id of the data row at rowIndex (1-based).
func PlaceholderID(rowIndex int) string {
	return "row-" + strconv.Itoa(rowIndex)
}

// Number coerces a cell to a number.
//
// RETURNS:
//   - The value, 0 when the cell is absent or cannot be coerced.
//   - false when a non-empty cell had to fall back to 0.
func (c *Cleaner) Number(cell types.Cell) (float64, bool) {
	switch cell.Kind {
	case types.CellEmpty:
		return 0, true

	case types.CellNumber, types.CellBool:
		return cell.Number, true

	case types.CellText:
		cleaned := strings.TrimSpace(c.strip.Replace(cell.Text))
		if cleaned == "" {
			// Whitespace or symbols only.
			return 0, strings.TrimSpace(cell.Text) == ""
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true

	default:
		// Date-typed cells carry no amount.
		return 0, false
	}
}

// Date coerces a cell to a due date string.
//
// Numeric cells are spreadsheet date serials and become YYYY-MM-DD. Cells the
// container typed as dates keep their calendar day. Text is trimmed and kept
// verbatim, without checking that it is a real date.
//
// RETURNS:
//   - The due date, "" for falsy cells.
//   - false when a serial could not be converted and its text was kept.
func (c *Cleaner) Date(cell types.Cell) (string, bool) {
	if isFalsy(cell) {
		return "", true
	}

	switch cell.Kind {
	case types.CellNumber:
		t, err := excelize.ExcelDateToTime(cell.Number, c.date1904)
		if err != nil {
			return strings.TrimSpace(cell.Text), false
		}
		return t.Format(dateLayout), true

	case types.CellDate:
		return isoDate(cell.Text), true

	default:
		return strings.TrimSpace(cell.Text), true
	}
}

// isoDate extracts the calendar day from an ISO 8601 timestamp.
func isoDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout)
		}
	}
	return s
}

// isFalsy reports whether a cell holds an empty, zero or false value.
func isFalsy(cell types.Cell) bool {
	switch cell.Kind {
	case types.CellEmpty:
		return true
	case types.CellNumber, types.CellBool:
		return cell.Number == 0
	default:
		return cell.Text == ""
	}
}
