package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/billing-inquiry/internal/store"
	"github.com/ginjaninja78/billing-inquiry/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepository opens a repository in a temporary directory.
func setupTestRepository(t *testing.T, batchSize int) *Repository {
	t.Helper()

	repo, err := Open(filepath.Join(t.TempDir(), "data", "billing.db"), batchSize)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, repo.Close(context.Background()))
	})
	return repo
}

func TestRepository_EmptyOnOpen(t *testing.T) {
	repo := setupTestRepository(t, 0)

	records, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	at, err := repo.ReplacedAt(context.Background())
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestRepository_ReplaceAllRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, 0)

	require.NoError(t, repo.ReplaceAll(ctx, store.DemoRecords()))

	loaded, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.DemoRecords(), loaded)

	at, err := repo.ReplacedAt(ctx)
	require.NoError(t, err)
	assert.False(t, at.IsZero())

	// A second upload replaces, never appends.
	require.NoError(t, repo.ReplaceAll(ctx, store.DemoRecords()[2:]))
	loaded, err = repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.DemoRecords()[2:], loaded)
}

func TestRepository_BatchedInsertKeepsOrder(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, 7)

	records := make([]types.BillingRecord, 0, 50)
	for i := 0; i < 50; i++ {
		records = append(records, types.BillingRecord{
			ID:            fmt.Sprintf("row-%d", 50-i),
			AccountNumber: fmt.Sprintf("100-%03d", i),
			Amount:        float64(i) + 0.25,
		})
	}

	require.NoError(t, repo.ReplaceAll(ctx, records))

	loaded, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
}

func TestRepository_OversizedBatchIsClamped(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, 5000)
	assert.Equal(t, MaxBatchSize, repo.batchSize)

	records := make([]types.BillingRecord, 0, 6000)
	for i := 0; i < 6000; i++ {
		records = append(records, types.BillingRecord{
			ID:          fmt.Sprintf("row-%d", i+1),
			AccountName: fmt.Sprintf("Account %d", i),
		})
	}

	require.NoError(t, repo.ReplaceAll(ctx, records))

	loaded, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 6000)
	assert.Equal(t, records[5999], loaded[5999])
}

func TestRepository_FailedReplaceKeepsPreviousData(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t, 2)

	require.NoError(t, repo.ReplaceAll(ctx, store.DemoRecords()))

	// Duplicate ids violate the UNIQUE constraint in the second batch.
	bad := []types.BillingRecord{
		{ID: "a", AccountName: "A"},
		{ID: "b", AccountName: "B"},
		{ID: "a", AccountName: "C"},
	}
	require.Error(t, repo.ReplaceAll(ctx, bad))

	loaded, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.DemoRecords(), loaded)
}

func TestRepository_ReopenKeepsDataAndSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "billing.db")

	first, err := Open(path, 0)
	require.NoError(t, err)
	require.NoError(t, first.ReplaceAll(ctx, store.DemoRecords()))
	require.NoError(t, first.Close(ctx))

	second, err := Open(path, 0)
	require.NoError(t, err)
	defer second.Close(ctx)

	var version int
	require.NoError(t, second.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 2, version)

	loaded, err := second.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 4)
}

func TestRepository_CancelledContext(t *testing.T) {
	repo := setupTestRepository(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, repo.ReplaceAll(ctx, store.DemoRecords()))
	_, err := repo.LoadAll(ctx)
	assert.Error(t, err)
}
