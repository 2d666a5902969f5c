// =============================================================================
// Billing Inquiry - Billing Service
// =============================================================================
//
// The service ties the pure core (ingestion, matching) to the record store.
//
// UPLOAD FLOW:
//   1. Validate the upload (type, size, content signature)
//   2. Parse it into records
//   3. Reject an upload with no qualifying rows
//   4. Check the records; strict mode rejects on warnings
//   5. Replace the stored collection
//   6. Publish the new collection to searches
//
// Any failure before step 6 leaves the current collection in place. Uploads
// are serialized; searches never wait for them.
//
// =============================================================================

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ginjaninja78/billing-inquiry/internal/ingest"
	"github.com/ginjaninja78/billing-inquiry/internal/logger"
	"github.com/ginjaninja78/billing-inquiry/internal/search"
	"github.com/ginjaninja78/billing-inquiry/internal/store"
	"github.com/ginjaninja78/billing-inquiry/internal/types"
	"github.com/ginjaninja78/billing-inquiry/internal/validation"
)

// ErrStoreUnavailable wraps repository failures.
var ErrStoreUnavailable = errors.New("record store unavailable")

// NoValidRowsMessage is reported for uploads without a single usable row.
const NoValidRowsMessage = "No valid data rows found."

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Billing service.
type Options struct {
	// StoreName labels snapshots loaded from the repository ("sqlite", ...).
	StoreName string

	// LoadTimeout bounds Load. 0 means no timeout.
	LoadTimeout time.Duration

	// DemoFallback serves demo records when the store is empty or fails.
	DemoFallback bool

	// SuggestLimit and SuggestMinChars gate Suggest.
	SuggestLimit    int
	SuggestMinChars int

	// Validation configures upload and record checks.
	Validation validation.Options

	// Ingestion configures the pipeline. Its Logger defaults to Logger.
	Ingestion ingest.Options

	Logger logger.Logger
}

// =============================================================================
// SERVICE
// =============================================================================

// Billing serves searches from an in-memory catalog and replaces the dataset
// on upload.
type Billing struct {
	repo      store.Repository
	catalog   *store.Catalog
	pipeline  *ingest.Pipeline
	validator *validation.Validator
	opts      Options
	logger    logger.Logger

	uploadMu sync.Mutex
}

// New creates a Billing service over repo.
func New(repo store.Repository, opts Options) *Billing {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Ingestion.Logger == nil {
		opts.Ingestion.Logger = opts.Logger
	}
	if opts.StoreName == "" {
		opts.StoreName = "store"
	}

	return &Billing{
		repo:      repo,
		catalog:   store.NewCatalog(),
		pipeline:  ingest.New(opts.Ingestion),
		validator: validation.NewValidator(opts.Validation),
		opts:      opts,
		logger:    opts.Logger,
	}
}

// UploadResult summarizes a successful upload.
type UploadResult struct {
	Records    int
	Format     ingest.Format
	Stats      ingest.Stats
	Mapping    ingest.MappingMode
	Findings   []*validation.ValidationError
	ReplacedAt time.Time
}

// Stats describes the collection currently served.
type Stats struct {
	Count    int
	Source   store.Source
	LoadedAt time.Time

	// ReplacedAt is when the stored collection was last replaced by an
	// upload, if the store records it.
	ReplacedAt time.Time
}

// Load reads the stored collection into the catalog.
//
// When the store fails or is empty and demo fallback is enabled, the demo
// records are served instead and no error is returned. Without fallback a
// store failure is returned wrapped in ErrStoreUnavailable and the catalog
// is left as it was.
func (b *Billing) Load(ctx context.Context) (Stats, error) {
	if b.opts.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.LoadTimeout)
		defer cancel()
	}

	records, err := b.repo.LoadAll(ctx)
	switch {
	case err != nil && b.opts.DemoFallback:
		b.logger.Warn("Loading records from %s failed, serving demo data: %v", b.opts.StoreName, err)
		return b.publish(store.DemoRecords(), store.SourceDemo), nil

	case err != nil:
		return b.Stats(), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)

	case len(records) == 0 && b.opts.DemoFallback:
		b.logger.Info("Store %s is empty, serving demo data", b.opts.StoreName)
		return b.publish(store.DemoRecords(), store.SourceDemo), nil
	}

	result := b.validator.ValidateRecords(records)
	if result.ErrorCount > 0 {
		b.logger.Warn("Stored collection has %d validation errors", result.ErrorCount)
	}

	b.logger.Info("Loaded %d records from %s", len(records), b.opts.StoreName)
	snap := b.catalog.SwapReplaced(records, store.Source(b.opts.StoreName), b.replacedAt(ctx))
	return statsOf(snap), nil
}

// replacedAt asks the store when the collection was last replaced. Stores
// that do not track it, or fail to answer, report the zero time.
func (b *Billing) replacedAt(ctx context.Context) time.Time {
	tracker, ok := b.repo.(store.ReplacementTracker)
	if !ok {
		return time.Time{}
	}
	at, err := tracker.ReplacedAt(ctx)
	if err != nil {
		b.logger.Warn("Reading last replacement time from %s failed: %v", b.opts.StoreName, err)
		return time.Time{}
	}
	return at
}

// Upload replaces the collection with the contents of an uploaded file.
//
// RETURNS:
//   - A summary of the upload.
//   - An error wrapping ingest.ErrUnsupportedFileType, validation.ErrFileTooLarge,
//     an *ingest.ParseError (including zero qualifying rows), or
//     ErrStoreUnavailable. The served collection is unchanged on error.
func (b *Billing) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	b.uploadMu.Lock()
	defer b.uploadMu.Unlock()

	result, records, err := b.prepare(filename, data)
	if err != nil {
		return nil, err
	}

	if err := b.repo.ReplaceAll(ctx, records); err != nil {
		b.logger.Error("Saving %d records to %s failed: %v", len(records), b.opts.StoreName, err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	snapshot := b.catalog.SwapReplaced(records, store.SourceUpload, time.Now())
	result.ReplacedAt = snapshot.ReplacedAt

	b.logger.Info("Replaced billing data from %s: %d records (%d rows read, %d dropped, %s mapping)",
		filename, result.Records, result.Stats.RowsRead, result.Stats.Dropped, result.Mapping)
	return result, nil
}

// Preview runs every Upload check without storing or publishing anything.
func (b *Billing) Preview(filename string, data []byte) (*UploadResult, []types.BillingRecord, error) {
	return b.prepare(filename, data)
}

// prepare validates and parses an upload.
func (b *Billing) prepare(filename string, data []byte) (*UploadResult, []types.BillingRecord, error) {
	if err := b.validator.ValidateUpload(filename, data); err != nil {
		return nil, nil, err
	}

	parsed, err := b.pipeline.ParseFile(filename, data)
	if err != nil {
		return nil, nil, err
	}
	if len(parsed.Records) == 0 {
		return nil, nil, ingest.NewParseError(NoValidRowsMessage, nil)
	}

	checks := b.validator.ValidateRecords(parsed.Records)
	if !checks.IsValid {
		return nil, nil, ingest.NewParseError(
			fmt.Sprintf("upload failed validation with %d error(s) and %d warning(s)", checks.ErrorCount, checks.WarningCount),
			errors.New(validation.FormatErrors(checks.Errors)))
	}
	for _, finding := range checks.Errors {
		b.logger.Debug("Upload %s: %s", filename, finding.Error())
	}

	return &UploadResult{
		Records:  len(parsed.Records),
		Format:   parsed.Format,
		Stats:    parsed.Stats,
		Mapping:  parsed.Mapping.Mode,
		Findings: checks.Errors,
	}, parsed.Records, nil
}

// Search returns every record matching query.
func (b *Billing) Search(query string) []types.BillingRecord {
	return search.Match(b.catalog.Records(), query)
}

// Suggest returns the first few matches for type-ahead.
func (b *Billing) Suggest(query string) []types.BillingRecord {
	return search.Suggest(b.catalog.Records(), query, b.opts.SuggestLimit, b.opts.SuggestMinChars)
}

// Records returns the collection currently served. Callers must not modify it.
func (b *Billing) Records() []types.BillingRecord {
	return b.catalog.Records()
}

// Stats describes the collection currently served.
func (b *Billing) Stats() Stats {
	return statsOf(b.catalog.Snapshot())
}

func (b *Billing) publish(records []types.BillingRecord, source store.Source) Stats {
	return statsOf(b.catalog.Swap(records, source))
}

func statsOf(snap *store.Snapshot) Stats {
	return Stats{
		Count:      len(snap.Records),
		Source:     snap.Source,
		LoadedAt:   snap.LoadedAt,
		ReplacedAt: snap.ReplacedAt,
	}
}
