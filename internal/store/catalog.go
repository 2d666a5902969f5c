package store

import (
	"sync/atomic"
	"time"

	"github.com/ginjaninja78/billing-inquiry/internal/types"
)

// Source names where the current snapshot came from.
type Source string

const (
	SourceEmpty  Source = "empty"
	SourceDemo   Source = "demo"
	SourceUpload Source = "upload"
)

// Snapshot is one immutable version of the billing collection.
type Snapshot struct {
	Records  []types.BillingRecord
	Source   Source
	LoadedAt time.Time

	// ReplacedAt is when the stored collection was last replaced, zero when
	// unknown or when the snapshot does not come from the store.
	ReplacedAt time.Time
}

// Catalog holds the snapshot searches read from. Readers never observe a
// partially replaced collection: Swap publishes a whole new snapshot.
type Catalog struct {
	current atomic.Pointer[Snapshot]
}

// NewCatalog returns a catalog holding an empty snapshot.
func NewCatalog() *Catalog {
	c := &Catalog{}
	c.current.Store(&Snapshot{Records: []types.BillingRecord{}, Source: SourceEmpty})
	return c
}

// Snapshot returns the current snapshot. Callers must not modify its records.
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// Records returns the current records. Callers must not modify them.
func (c *Catalog) Records() []types.BillingRecord {
	return c.current.Load().Records
}

// Swap publishes records as the new snapshot. The slice is copied.
func (c *Catalog) Swap(records []types.BillingRecord, source Source) *Snapshot {
	return c.SwapReplaced(records, source, time.Time{})
}

// SwapReplaced is Swap for a stored collection last replaced at replacedAt.
func (c *Catalog) SwapReplaced(records []types.BillingRecord, source Source, replacedAt time.Time) *Snapshot {
	next := &Snapshot{
		Records:    Clone(records),
		Source:     source,
		LoadedAt:   time.Now(),
		ReplacedAt: replacedAt,
	}
	c.current.Store(next)
	return next
}
