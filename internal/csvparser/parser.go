// =============================================================================
// Billing Inquiry - CSV Decoder
// =============================================================================
//
// This module decodes delimited-text uploads into the same row/cell view the
// workbook decoder produces, so billing exports saved as CSV can go through
// the ingestion pipeline unchanged.
//
// FEATURES:
//   - Configurable delimiter (comma, pipe, tab, semicolon)
//   - Variable field counts per row
//   - Lazy quoting for hand-edited exports
//   - UTF-8 byte order mark stripping
//
// CSV has no native cell types: every non-empty value is a CellText. Numbers
// are still coerced by the pipeline's text cleaning, and date columns are
// passed through as written.
//
// =============================================================================

package csvparser

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/ginjaninja78/billing-inquiry/internal/types"
)

// utf8BOM is stripped from the start of the input when present.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings contains settings for parsing CSV uploads.
type Settings struct {
	// Delimiter is the character used to separate fields.
	// Common values: "," (comma), "|" (pipe), "\t" or "tab", ";"
	// Default: ","
	Delimiter string
}

// DefaultSettings returns comma-separated settings.
func DefaultSettings() Settings {
	return Settings{Delimiter: ","}
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Decode reads CSV bytes and returns them as a single sheet.
//
// PARAMETERS:
//   - data: The complete file contents.
//   - settings: The delimiter configuration.
//
// RETURNS:
//   - The decoded sheet, header row at index 0.
//   - An error if the text is not valid CSV.
func Decode(data []byte, settings Settings) (*types.Sheet, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	configureReader(reader, settings)

	allRows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	sheet := &types.Sheet{Rows: make([]types.Row, len(allRows))}
	for i, record := range allRows {
		row := make(types.Row, len(record))
		for j, value := range record {
			row[j] = types.TextCell(value)
		}
		sheet.Rows[i] = row
	}

	sheet.TrimToUsedRange()
	return sheet, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings Settings) {
	// Set the delimiter.
	// Handle special cases for common delimiters.
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Allow variable number of fields per row.
	reader.FieldsPerRecord = -1

	// Allow lazy quotes (quotes that don't follow strict CSV rules).
	reader.LazyQuotes = true

	// Trim leading space from fields.
	reader.TrimLeadingSpace = true

	// encoding/csv skips blank lines, so row indexes count non-blank lines only.
}
