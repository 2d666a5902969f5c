package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var canonicalHeader = []interface{}{
	"ID", "Account Number", "Account Name", "Address", "Amount", "Due Date", "Amount After Due Date",
}

// buildWorkbook writes rows into the first sheet of a new workbook and
// returns the file bytes.
func buildWorkbook(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	return buildWorkbookAt(t, 1, 1, rows...)
}

// buildWorkbookAt is buildWorkbook with the first row written at the given
// 1-based column and row.
func buildWorkbookAt(t *testing.T, col, row int, rows ...[]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, values := range rows {
		axis, err := excelize.CoordinatesToCellName(col, row+i)
		require.NoError(t, err)
		values := values
		require.NoError(t, f.SetSheetRow("Sheet1", axis, &values))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}
