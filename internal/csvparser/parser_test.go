package csvparser

import (
	"testing"

	"github.com/ginjaninja78/billing-inquiry/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_TextCells(t *testing.T) {
	data := []byte("\xEF\xBB\xBFID,Account Name,Amount\n1,\"Reyes, Lorna\",\"₱1,200.00\"\n2,,\n")

	sheet, err := Decode(data, DefaultSettings())
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "ID", sheet.Rows[0].At(0).Text, "byte order mark is stripped")
	assert.Equal(t, types.CellText, sheet.Rows[1].At(2).Kind)
	assert.Equal(t, "Reyes, Lorna", sheet.Rows[1].At(1).Text)
	assert.Equal(t, "₱1,200.00", sheet.Rows[1].At(2).Text)
	assert.True(t, sheet.Rows[2].At(1).IsEmpty())
	assert.Empty(t, sheet.Name)
}

func TestDecode_Delimiters(t *testing.T) {
	tests := []struct {
		delimiter string
		input     string
	}{
		{"tab", "a\tb\n1\t2\n"},
		{"\\t", "a\tb\n1\t2\n"},
		{"pipe", "a|b\n1|2\n"},
		{"semicolon", "a;b\n1;2\n"},
		{"", "a,b\n1,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.delimiter, func(t *testing.T) {
			sheet, err := Decode([]byte(tt.input), Settings{Delimiter: tt.delimiter})
			require.NoError(t, err)
			require.Len(t, sheet.Rows, 2)
			assert.Equal(t, "2", sheet.Rows[1].At(1).Text)
		})
	}
}

func TestDecode_VariableFieldCounts(t *testing.T) {
	sheet, err := Decode([]byte("a,b,c\n1\n1,2,3,4\n"), DefaultSettings())
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 3)
	assert.Len(t, sheet.Rows[1], 1)
	assert.Len(t, sheet.Rows[2], 4)
}
