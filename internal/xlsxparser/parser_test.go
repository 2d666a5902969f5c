package xlsxparser

import (
	"os"
	"testing"

	"github.com/ginjaninja78/billing-inquiry/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDecode_FirstSheetTypedCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Account Number", "Amount", "Due Date", "Paid"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"00123", 520.5, 45245, true}))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Other", "A1", "ignored"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	sheet, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", sheet.Name)
	require.Len(t, sheet.Rows, 2)

	row := sheet.Rows[1]
	assert.Equal(t, types.CellText, row.At(0).Kind)
	assert.Equal(t, "00123", row.At(0).Text)
	assert.Equal(t, types.CellNumber, row.At(1).Kind)
	assert.InDelta(t, 520.5, row.At(1).Number, 1e-9)
	assert.Equal(t, types.CellNumber, row.At(2).Kind)
	assert.Equal(t, types.CellBool, row.At(3).Kind)
	assert.False(t, sheet.Date1904)
}

func TestDecode_TrimsToUsedRange(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "B3", &[]interface{}{"Account Number", "Account Name"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "B4", &[]interface{}{"100-001-000", "Juan Dela Cruz"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	sheet, err := Decode(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Account Number", sheet.Rows[0].At(0).Text)
	assert.Equal(t, "Juan Dela Cruz", sheet.Rows[1].At(1).Text)
}

func TestDecode_NotAWorkbook(t *testing.T) {
	_, err := Decode([]byte("not a zip"))
	assert.Error(t, err)
}

func TestDecodeLegacy_CellRecords(t *testing.T) {
	data, err := os.ReadFile("testdata/cells.xls")
	require.NoError(t, err)

	sheet, err := DecodeLegacy(data)
	require.NoError(t, err)
	assert.Equal(t, "Cells", sheet.Name)
	assert.True(t, sheet.Date1904)
	require.Len(t, sheet.Rows, 14)

	value := func(row int) types.Cell { return sheet.Rows[row].At(1) }

	assert.Equal(t, "Kind", sheet.Rows[0].At(0).Text, "embedded chart records are skipped")
	assert.Equal(t, types.TextCell("shared text"), value(1))
	assert.Equal(t, types.TextCell("Juan Dela Cruz"), value(2), "shared string split across CONTINUE")
	assert.Equal(t, types.TextCell("Niño Peña"), value(3))
	assert.Equal(t, types.NumberCell(1200.5), value(4), "currency-formatted number")
	assert.Equal(t, types.NumberCell(42), value(5))
	assert.Equal(t, types.NumberCell(520.5), value(6))
	assert.Equal(t, types.NumberCell(45245), value(7), "date-formatted number stays a serial")
	assert.Equal(t, types.NumberCell(7), sheet.Rows[7].At(2))
	assert.Equal(t, types.BoolCell(true), value(8))
	assert.Equal(t, types.TextCell("#N/A"), value(9))
	assert.Equal(t, types.NumberCell(1320.55), value(10), "cached formula result")
	assert.Equal(t, types.TextCell("Lorna Reyes"), value(11), "string formula result")
	assert.Equal(t, types.BoolCell(true), value(12))
	assert.True(t, value(13).IsEmpty(), "empty string formula result")
}

func TestDecodeLegacy_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"signature only", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00}},
		{"not a compound file", []byte("ID,Name\n1,Juan\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLegacy(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestDecodeLegacy_TruncatedStream(t *testing.T) {
	_, err := readGlobals([]byte{0x09, 0x08, 0x10, 0x00, 0x00, 0x06})
	assert.Error(t, err)

	_, err = readGlobals([]byte{0x09, 0x08, 0x02, 0x00, 0x00, 0x05})
	assert.ErrorIs(t, err, errUnsupportedBIFF)
}

func TestDecodeRK(t *testing.T) {
	tests := []struct {
		name string
		rk   uint32
		want float64
	}{
		{"integer", 42<<2 | 0x02, 42},
		{"negative integer", uint32(0xFFFFFFFF&(-3<<2)) | 0x02, -3},
		{"integer x100", 52050<<2 | 0x03, 520.5},
		// 1.0 keeps only the top 30 bits of its IEEE 754 form.
		{"float", 0x3FF00000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, decodeRK(tt.rk), 1e-9)
		})
	}
}
