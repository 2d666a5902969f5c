package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ginjaninja78/billing-inquiry/internal/ingest"
	"github.com/ginjaninja78/billing-inquiry/internal/store"
	"github.com/ginjaninja78/billing-inquiry/internal/types"
	"github.com/ginjaninja78/billing-inquiry/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const billsCSV = "ID,Account Number,Account Name,Address,Amount,Due Date,Amount After Due Date\n" +
	"A1,200-001-001,Pedro Penduko,Purok 3,\"₱1,200.00\",2024-01-10,1320\n" +
	"A2,200-001-002,Lorna Reyes,Centro,450.25,2024-01-10,495.28\n"

// brokenRepository fails every call.
type brokenRepository struct {
	err error
}

func (b *brokenRepository) ReplaceAll(context.Context, []types.BillingRecord) error { return b.err }

func (b *brokenRepository) LoadAll(context.Context) ([]types.BillingRecord, error) {
	return nil, b.err
}

// replaceFailingRepository loads fine but cannot be written.
type replaceFailingRepository struct {
	*store.MemoryRepository
}

func (replaceFailingRepository) ReplaceAll(context.Context, []types.BillingRecord) error {
	return errors.New("disk full")
}

func newTestService(repo store.Repository, mutate ...func(*Options)) *Billing {
	opts := Options{
		StoreName:       "memory",
		DemoFallback:    true,
		SuggestLimit:    5,
		SuggestMinChars: 2,
		Validation:      validation.DefaultOptions(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	return New(repo, opts)
}

func TestLoad_EmptyStoreServesDemo(t *testing.T) {
	svc := newTestService(store.NewMemoryRepository())

	stats, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, store.SourceDemo, stats.Source)
	assert.Len(t, svc.Search("juan"), 1)
}

func TestLoad_StoreFailureFallsBackToDemo(t *testing.T) {
	svc := newTestService(&brokenRepository{err: errors.New("connection refused")})

	stats, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.SourceDemo, stats.Source)
}

func TestLoad_StoreFailureWithoutFallback(t *testing.T) {
	svc := newTestService(&brokenRepository{err: errors.New("connection refused")}, func(o *Options) {
		o.DemoFallback = false
	})

	_, err := svc.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Equal(t, store.SourceEmpty, svc.Stats().Source)
	assert.Empty(t, svc.Records())
}

func TestLoad_StoredRecords(t *testing.T) {
	stored := []types.BillingRecord{
		{ID: "9", AccountNumber: "300-000-009", AccountName: "Sari-Sari Store", Amount: 99},
	}
	svc := newTestService(store.NewMemoryRepository(stored...))

	stats, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, store.Source("memory"), stats.Source)
	assert.Equal(t, stored, svc.Records())
}

func TestLoad_ReportsLastReplacement(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()

	first := newTestService(repo)
	result, err := first.Upload(ctx, "bills.csv", []byte(billsCSV))
	require.NoError(t, err)
	assert.False(t, result.ReplacedAt.IsZero())
	assert.Equal(t, result.ReplacedAt, first.Stats().ReplacedAt)

	// A restarted service learns the replacement time from the store.
	stored, err := repo.ReplacedAt(ctx)
	require.NoError(t, err)
	second := newTestService(repo)
	stats, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Source("memory"), stats.Source)
	assert.Equal(t, stored, stats.ReplacedAt)
	assert.False(t, stats.ReplacedAt.IsZero())
}

func TestLoad_DemoHasNoReplacementTime(t *testing.T) {
	svc := newTestService(store.NewMemoryRepository())

	stats, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.ReplacedAt.IsZero())
}

func TestUpload_ReplacesCollection(t *testing.T) {
	repo := store.NewMemoryRepository()
	svc := newTestService(repo)
	_, err := svc.Load(context.Background())
	require.NoError(t, err)

	result, err := svc.Upload(context.Background(), "bills.csv", []byte(billsCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Records)
	assert.Equal(t, ingest.FormatCSV, result.Format)
	assert.Equal(t, ingest.MappingKeyword, result.Mapping)

	assert.Equal(t, store.SourceUpload, svc.Stats().Source)
	assert.Empty(t, svc.Search("juan"), "demo data must be gone")

	hits := svc.Search("penduko")
	require.Len(t, hits, 1)
	assert.Equal(t, 1200.0, hits[0].Amount)

	persisted, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestUpload_Workbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Account Number", "Name", "Amount", "Due Date"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"400-1", "Rosa Lim", 75.5, 45245}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	svc := newTestService(store.NewMemoryRepository())
	result, err := svc.Upload(context.Background(), "Bills.XLSX", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, ingest.FormatXLSX, result.Format)

	records := svc.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "row-1", records[0].ID)
	assert.Equal(t, "2023-11-15", records[0].DueDate)
}

func TestUpload_RejectionsKeepCurrentCollection(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		check    func(t *testing.T, err error)
	}{
		{
			name:     "unsupported extension",
			filename: "bills.pdf",
			data:     []byte("%PDF-1.4"),
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ingest.ErrUnsupportedFileType))
			},
		},
		{
			name:     "header only",
			filename: "bills.csv",
			data:     []byte("ID,Account Number,Account Name\n"),
			check: func(t *testing.T, err error) {
				assert.True(t, ingest.IsParseError(err))
			},
		},
		{
			name:     "no qualifying rows",
			filename: "bills.csv",
			data:     []byte("ID,Account Number,Account Name,Amount\n1,,,100\n2,,,200\n"),
			check: func(t *testing.T, err error) {
				require.True(t, ingest.IsParseError(err))
				assert.Contains(t, err.Error(), NoValidRowsMessage)
			},
		},
		{
			name:     "empty file",
			filename: "bills.xlsx",
			data:     nil,
			check: func(t *testing.T, err error) {
				assert.True(t, ingest.IsParseError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(store.NewMemoryRepository())
			_, err := svc.Load(context.Background())
			require.NoError(t, err)

			result, err := svc.Upload(context.Background(), tt.filename, tt.data)
			require.Error(t, err)
			assert.Nil(t, result)
			tt.check(t, err)

			assert.Equal(t, store.SourceDemo, svc.Stats().Source)
			assert.Len(t, svc.Records(), 4)
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	svc := newTestService(store.NewMemoryRepository(), func(o *Options) {
		o.Validation.MaxUploadBytes = 16
	})

	_, err := svc.Upload(context.Background(), "bills.csv", []byte(billsCSV))
	require.Error(t, err)
	assert.True(t, errors.Is(err, validation.ErrFileTooLarge))
}

func TestUpload_StoreFailure(t *testing.T) {
	repo := replaceFailingRepository{store.NewMemoryRepository()}
	svc := newTestService(repo)
	_, err := svc.Load(context.Background())
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), "bills.csv", []byte(billsCSV))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Equal(t, store.SourceDemo, svc.Stats().Source)
}

func TestUpload_StrictValidationRejectsWarnings(t *testing.T) {
	svc := newTestService(store.NewMemoryRepository(), func(o *Options) {
		o.Validation.TreatWarningsAsErrors = true
	})

	// Missing due date is a warning.
	data := "Account Number,Account Name,Amount\n500-1,Nena Cruz,100\n"
	_, err := svc.Upload(context.Background(), "bills.csv", []byte(data))
	require.Error(t, err)
	require.True(t, ingest.IsParseError(err))
	assert.Contains(t, err.Error(), "Due date is missing")

	svc = newTestService(store.NewMemoryRepository())
	result, err := svc.Upload(context.Background(), "bills.csv", []byte(data))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Findings)
}

func TestSuggest(t *testing.T) {
	svc := newTestService(store.NewMemoryRepository(), func(o *Options) {
		o.SuggestLimit = 2
	})
	_, err := svc.Load(context.Background())
	require.NoError(t, err)

	assert.Empty(t, svc.Suggest("a"), "below the minimum length")
	assert.Len(t, svc.Suggest("100"), 2)
	assert.Len(t, svc.Search("100"), 4)
}

func TestPreview_DoesNotReplace(t *testing.T) {
	repo := store.NewMemoryRepository()
	svc := newTestService(repo)
	_, err := svc.Load(context.Background())
	require.NoError(t, err)

	result, records, err := svc.Preview("bills.csv", []byte(billsCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Records)
	assert.Len(t, records, 2)
	assert.True(t, result.ReplacedAt.IsZero())

	assert.Equal(t, store.SourceDemo, svc.Stats().Source)
	stored, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}
