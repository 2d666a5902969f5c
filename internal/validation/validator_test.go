package validation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/billing-inquiry/internal/ingest"
	"github.com/ginjaninja78/billing-inquiry/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var xlsxBytes = []byte("PK\x03\x04payload")

func TestValidateUpload(t *testing.T) {
	v := NewValidator(Options{MaxUploadBytes: 32})

	tests := []struct {
		name     string
		filename string
		data     []byte
		check    func(t *testing.T, err error)
	}{
		{"accepted xlsx", "bills.xlsx", xlsxBytes, func(t *testing.T, err error) {
			assert.NoError(t, err)
		}},
		{"accepted csv", "Bills.CSV", []byte("a,b\n1,2\n"), func(t *testing.T, err error) {
			assert.NoError(t, err)
		}},
		{"disallowed extension", "bills.pdf", []byte("%PDF"), func(t *testing.T, err error) {
			assert.True(t, errors.Is(err, ingest.ErrUnsupportedFileType))
			assert.Contains(t, err.Error(), ".pdf")
		}},
		{"no extension", "bills", xlsxBytes, func(t *testing.T, err error) {
			assert.True(t, errors.Is(err, ingest.ErrUnsupportedFileType))
		}},
		{"content mismatch", "bills.xls", xlsxBytes, func(t *testing.T, err error) {
			assert.True(t, errors.Is(err, ingest.ErrUnsupportedFileType))
		}},
		{"empty", "bills.xlsx", nil, func(t *testing.T, err error) {
			assert.True(t, ingest.IsParseError(err))
		}},
		{"too large", "bills.xlsx", append(append([]byte{}, xlsxBytes...), make([]byte, 64)...), func(t *testing.T, err error) {
			assert.True(t, errors.Is(err, ErrFileTooLarge))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, v.ValidateUpload(tt.filename, tt.data))
		})
	}
}

func TestValidateUpload_RestrictedExtensions(t *testing.T) {
	v := NewValidator(Options{AllowedExtensions: []string{".xlsx", ".xls"}})

	err := v.ValidateUpload("bills.csv", []byte("a,b\n"))
	assert.True(t, errors.Is(err, ingest.ErrUnsupportedFileType))
	assert.Contains(t, err.Error(), "allowed: .xlsx, .xls")
}

func TestValidateRecords_Clean(t *testing.T) {
	result := ValidateRecords([]types.BillingRecord{
		{ID: "1", AccountNumber: "100-001-234", AccountName: "Juan Dela Cruz", Amount: 520.5, DueDate: "2023-11-15", AmountAfterDueDate: 572.55},
	})

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.RecordsValidated)
	assert.Equal(t, "No validation errors.", FormatErrors(result.Errors))
}

func TestValidateRecords_Findings(t *testing.T) {
	records := []types.BillingRecord{
		{ID: "1", AccountNumber: "100-001-234", AccountName: "Juan", Amount: 100, DueDate: "Nov 15", AmountAfterDueDate: 90},
		{ID: "1", AccountName: "Maria", Amount: -1, DueDate: "2023-11-15"},
		{ID: "3"},
	}

	result := ValidateRecords(records)
	assert.False(t, result.IsValid)

	rules := map[string]int{}
	for _, f := range result.Errors {
		rules[f.Rule]++
	}

	assert.Equal(t, map[string]int{
		"due_date_format":   1,
		"penalty_not_lower": 1,
		"unique_id":         1,
		"non_negative":      1,
		"account_number":    1,
		"identity":          1,
		"due_date":          1,
	}, rules)
	assert.Equal(t, 3, result.ErrorCount)
	assert.Equal(t, 4, result.WarningCount)

	dup := result.Errors[2]
	assert.Equal(t, "unique_id", dup.Rule)
	assert.Equal(t, 2, dup.RowNumber)
	assert.Equal(t, "[ERROR] Record 2 (id 1), Field 'id': Id already used by record 1 (value: '1')", dup.Error())
}

func TestValidateRecords_StrictMode(t *testing.T) {
	records := []types.BillingRecord{{ID: "1", AccountName: "Juan", DueDate: "2023-11-15"}}

	lenient := NewValidator(DefaultOptions()).ValidateRecords(records)
	assert.True(t, lenient.IsValid)
	assert.Equal(t, 1, lenient.WarningCount)

	strict := NewValidator(Options{TreatWarningsAsErrors: true}).ValidateRecords(records)
	assert.False(t, strict.IsValid)
}

func TestWriteErrorLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	findings := ValidateRecords([]types.BillingRecord{{ID: "1", AccountName: "Juan"}}).Errors

	require.NoError(t, WriteErrorLog(findings, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Validation completed with 2 finding(s)")
	assert.Contains(t, string(content), "Due date is missing")
}
