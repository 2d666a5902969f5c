// =============================================================================
// Billing Inquiry - Record Store
// =============================================================================
//
// The authoritative billing collection lives behind the Repository port. The
// application only ever replaces it wholesale or reads it back wholesale;
// records are never patched one at a time.
//
// IMPLEMENTATIONS:
//   - store.MemoryRepository   : process memory (tests, demos)
//   - store/sqlite.Repository  : embedded database file
//   - store/mongo.Repository   : MongoDB collection
//
// The Catalog is the read side: an immutable snapshot of the current
// collection that searches read without locking.
//
// =============================================================================

package store

import (
	"context"
	"sync"
	"time"

	"github.com/ginjaninja78/billing-inquiry/internal/types"
)

// Repository persists the billing collection.
type Repository interface {
	// ReplaceAll swaps the stored collection for records. On error the
	// previous collection must still be intact.
	ReplaceAll(ctx context.Context, records []types.BillingRecord) error

	// LoadAll returns the stored collection in insertion order.
	LoadAll(ctx context.Context) ([]types.BillingRecord, error)
}

// ReplacementTracker is implemented by repositories that remember when the
// collection was last replaced. The zero time means never.
type ReplacementTracker interface {
	ReplacedAt(ctx context.Context) (time.Time, error)
}

// Closer is implemented by repositories that hold connections.
type Closer interface {
	Close(ctx context.Context) error
}

// =============================================================================
// MEMORY REPOSITORY
// =============================================================================

// MemoryRepository keeps the collection in process memory.
type MemoryRepository struct {
	mu         sync.RWMutex
	records    []types.BillingRecord
	replacedAt time.Time
}

var (
	_ Repository         = (*MemoryRepository)(nil)
	_ ReplacementTracker = (*MemoryRepository)(nil)
)

// NewMemoryRepository creates a repository seeded with a copy of records.
func NewMemoryRepository(records ...types.BillingRecord) *MemoryRepository {
	return &MemoryRepository{records: Clone(records)}
}

// ReplaceAll stores a copy of records.
func (m *MemoryRepository) ReplaceAll(ctx context.Context, records []types.BillingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	copied := Clone(records)

	m.mu.Lock()
	m.records = copied
	m.replacedAt = time.Now()
	m.mu.Unlock()
	return nil
}

// ReplacedAt returns when ReplaceAll last succeeded.
func (m *MemoryRepository) ReplacedAt(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.replacedAt, nil
}

// LoadAll returns a copy of the stored records.
func (m *MemoryRepository) LoadAll(ctx context.Context) ([]types.BillingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return Clone(m.records), nil
}

// Clone returns an independent copy of records. A nil input yields an empty,
// non-nil slice.
func Clone(records []types.BillingRecord) []types.BillingRecord {
	out := make([]types.BillingRecord, len(records))
	copy(out, records)
	return out
}

// Batches splits records into consecutive chunks of at most size records.
func Batches(records []types.BillingRecord, size int) [][]types.BillingRecord {
	if size < 1 {
		size = 1
	}
	var out [][]types.BillingRecord
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}

// UnavailableRepository stands in for a store that could not be reached.
// Every call fails with Err.
type UnavailableRepository struct {
	Err error
}

func (u UnavailableRepository) ReplaceAll(context.Context, []types.BillingRecord) error {
	return u.Err
}

func (u UnavailableRepository) LoadAll(context.Context) ([]types.BillingRecord, error) {
	return nil, u.Err
}
