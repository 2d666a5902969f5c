package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/billing-inquiry/internal/csvparser"
	"github.com/ginjaninja78/billing-inquiry/internal/types"
	"github.com/ginjaninja78/billing-inquiry/internal/xlsxparser"
)

// Format is a supported upload container.
type Format int

const (
	FormatUnknown Format = iota
	// FormatXLSX is an Office Open XML workbook.
	FormatXLSX
	// FormatXLS is a legacy BIFF8 workbook.
	FormatXLS
	// FormatCSV is delimited text.
	FormatCSV
)

func (f Format) String() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	case FormatXLS:
		return "xls"
	case FormatCSV:
		return "csv"
	default:
		return "unknown"
	}
}

var (
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// SniffFormat identifies a workbook container from its leading bytes.
// CSV has no signature, so text content reports FormatUnknown.
func SniffFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS
	default:
		return FormatUnknown
	}
}

// FormatFromExtension maps a file name's extension to a format.
func FormatFromExtension(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	case ".csv":
		return FormatCSV
	default:
		return FormatUnknown
	}
}

// DetectFormat decides how an upload should be decoded.
//
// RULES:
//   - No file name: the content signature decides; CSV cannot be detected.
//   - .xlsx / .xls: the content must carry the matching signature.
//   - .csv: accepted unless the content is actually a workbook.
//   - Anything else is ErrUnsupportedFileType.
func DetectFormat(filename string, data []byte) (Format, error) {
	sniffed := SniffFormat(data)

	if filename == "" {
		if sniffed == FormatUnknown {
			return FormatUnknown, fmt.Errorf("%w: content is not a spreadsheet workbook", ErrUnsupportedFileType)
		}
		return sniffed, nil
	}

	declared := FormatFromExtension(filename)
	switch declared {
	case FormatUnknown:
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(filename))

	case FormatCSV:
		if sniffed != FormatUnknown {
			return FormatUnknown, fmt.Errorf("%w: %s content in a .csv file", ErrUnsupportedFileType, sniffed)
		}
		return FormatCSV, nil

	default:
		if len(data) > 0 && sniffed != declared {
			return FormatUnknown, fmt.Errorf("%w: content does not match extension %s", ErrUnsupportedFileType, filepath.Ext(filename))
		}
		return declared, nil
	}
}

// decode turns the upload into a sheet using the decoder for its format.
func decode(format Format, data []byte, csvSettings csvparser.Settings) (*types.Sheet, error) {
	switch format {
	case FormatXLSX:
		return xlsxparser.Decode(data)
	case FormatXLS:
		return xlsxparser.DecodeLegacy(data)
	case FormatCSV:
		return csvparser.Decode(data, csvSettings)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, format)
	}
}
