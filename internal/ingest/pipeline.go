// =============================================================================
// Billing Inquiry - Ingestion Pipeline
// =============================================================================
//
// This module turns an uploaded spreadsheet into a complete replacement set
// of billing records. It is a pure transformation: bytes in, records out, no
// storage and no network.
//
// INGESTION PIPELINE:
//   1. Detect the container (xlsx, xls, csv) and decode the first sheet
//   2. Reject input with fewer than two rows (no header, or header only)
//   3. Resolve the column mapping from the header row
//   4. Skip blank data rows
//   5. Clean every mapped cell into its record field
//   6. Drop records with neither an account number nor an account name
//   7. Keep ids unique within the run
//
// An empty record list is a valid result here. Callers that need at least
// one record decide how to report that.
//
// =============================================================================

package ingest

import (
	"fmt"
	"time"

	"github.com/ginjaninja78/billing-inquiry/internal/csvparser"
	"github.com/ginjaninja78/billing-inquiry/internal/logger"
	"github.com/ginjaninja78/billing-inquiry/internal/types"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result is the outcome of one ingestion run.
type Result struct {
	// Records holds the emitted records in source order.
	Records []types.BillingRecord

	// Format is the container the upload was decoded as.
	Format Format

	// Mapping is the column mapping used for this run.
	Mapping ColumnMapping

	// Stats contains processing statistics.
	Stats Stats
}

// Stats contains counters about one ingestion run.
type Stats struct {
	// RowsRead is the number of data rows in the sheet, blank ones included.
	RowsRead int

	// SkippedEmpty is the number of wholly blank data rows.
	SkippedEmpty int

	// Dropped is the number of rows without account number and name.
	Dropped int

	// Emitted is the number of records returned.
	Emitted int

	// DuplicateIDs is the number of records re-keyed because their id was
	// already taken earlier in the run.
	DuplicateIDs int

	// NegativeClamped is the number of amounts raised from below zero to 0.
	NegativeClamped int

	// CoercionFallbacks is the number of non-empty cells that could not be
	// coerced and fell back to a default value.
	CoercionFallbacks int

	// ProcessingTime is the time taken by the run.
	ProcessingTime time.Duration
}

// =============================================================================
// PIPELINE STRUCTURE
// =============================================================================

// Options configures a Pipeline. The zero value uses the defaults.
type Options struct {
	// CurrencySymbols are removed from numeric text. Default: ₱
	CurrencySymbols []string

	// ThousandsSeparators are removed from numeric text. Default: ,
	ThousandsSeparators []string

	// CSV configures the delimited-text decoder.
	CSV csvparser.Settings

	// Logger receives debug output. Default: discard.
	Logger logger.Logger
}

// Pipeline converts uploads into billing records. It holds no per-run
// state and is safe for concurrent use.
type Pipeline struct {
	cleaner *Cleaner
	csv     csvparser.Settings
	logger  logger.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	symbols := opts.CurrencySymbols
	if len(symbols) == 0 {
		symbols = DefaultCurrencySymbols
	}
	separators := opts.ThousandsSeparators
	if len(separators) == 0 {
		separators = DefaultThousandsSeparators
	}
	csvSettings := opts.CSV
	if csvSettings.Delimiter == "" {
		csvSettings = csvparser.DefaultSettings()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Pipeline{
		cleaner: NewCleaner(symbols, separators),
		csv:     csvSettings,
		logger:  log,
	}
}

// Parse converts workbook bytes into records using the default pipeline.
// The container is identified from the content, so only xlsx and xls input
// is accepted here.
func Parse(data []byte) ([]types.BillingRecord, error) {
	result, err := New(Options{}).Parse(data)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

// =============================================================================
// MAIN PROCESSING FUNCTIONS
// =============================================================================

// Parse converts workbook bytes into records, identifying the container from
// its content.
func (p *Pipeline) Parse(data []byte) (*Result, error) {
	return p.ParseFile("", data)
}

// ParseFile converts an uploaded file into records.
//
// PARAMETERS:
//   - filename: The upload's name, used to pick the decoder. May be empty.
//   - data: The complete file contents.
//
// RETURNS:
//   - The run result. Records may be empty.
//   - ErrUnsupportedFileType (wrapped) for unrecognized file names, or a
//     *ParseError when the content cannot be decoded or has no data rows.
//     Without a file name, unrecognized content is a *ParseError that
//     wraps ErrUnsupportedFileType.
func (p *Pipeline) ParseFile(filename string, data []byte) (*Result, error) {
	startTime := time.Now()

	if len(data) == 0 {
		return nil, NewParseError("file is empty", nil)
	}

	format, err := DetectFormat(filename, data)
	if err != nil {
		if filename == "" {
			// Raw bytes with no recognizable signature cannot be decoded.
			return nil, NewParseError("file is not a spreadsheet", err)
		}
		return nil, err
	}

	sheet, err := decode(format, data, p.csv)
	if err != nil {
		return nil, NewParseError(fmt.Sprintf("could not read %s file", format), err)
	}

	p.logger.Debug("Decoded %s sheet %q with %d rows", format, sheet.Name, len(sheet.Rows))

	result, err := p.ParseSheet(sheet)
	if err != nil {
		return nil, err
	}

	result.Format = format
	result.Stats.ProcessingTime = time.Since(startTime)
	return result, nil
}

// ParseSheet converts an already decoded sheet into records.
func (p *Pipeline) ParseSheet(sheet *types.Sheet) (*Result, error) {
	startTime := time.Now()

	if sheet == nil || len(sheet.Rows) < 2 {
		return nil, NewParseError("file has no data rows", nil)
	}

	mapping := ResolveMapping(sheet.Rows[0])
	p.logger.Debug("Using %s column mapping", mapping.Mode)

	cleaner := p.cleaner.ForSheet(sheet)
	result := &Result{
		Mapping: mapping,
		Records: make([]types.BillingRecord, 0, len(sheet.Rows)-1),
	}
	seen := make(map[string]struct{}, len(sheet.Rows))

	for i := 1; i < len(sheet.Rows); i++ {
		row := sheet.Rows[i]
		result.Stats.RowsRead++

		if row.IsEmpty() {
			result.Stats.SkippedEmpty++
			continue
		}

		record := p.buildRecord(cleaner, mapping, row, i, &result.Stats)
		if !record.HasIdentity() {
			result.Stats.Dropped++
			p.logger.Debug("Dropped row %d: no account number or name", i)
			continue
		}

		if _, taken := seen[record.ID]; taken {
			record.ID = uniqueID(seen, i)
			result.Stats.DuplicateIDs++
			p.logger.Debug("Row %d: duplicate id re-keyed to %s", i, record.ID)
		}
		seen[record.ID] = struct{}{}

		result.Records = append(result.Records, record)
	}

	result.Stats.Emitted = len(result.Records)
	result.Stats.ProcessingTime = time.Since(startTime)

	p.logger.Debug("Ingested %d records from %d data rows (%d blank, %d dropped)",
		result.Stats.Emitted, result.Stats.RowsRead, result.Stats.SkippedEmpty, result.Stats.Dropped)

	return result, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// buildRecord cleans the mapped cells of one data row.
func (p *Pipeline) buildRecord(c *Cleaner, m ColumnMapping, row types.Row, rowIndex int, stats *Stats) types.BillingRecord {
	cell := func(f types.Field) types.Cell {
		col := m.Column(f)
		if col == NotFound {
			return types.Cell{Kind: types.CellEmpty}
		}
		return row.At(col)
	}

	amount := func(f types.Field) float64 {
		v, ok := c.Number(cell(f))
		if !ok {
			stats.CoercionFallbacks++
		}
		if v < 0 {
			stats.NegativeClamped++
			return 0
		}
		return v
	}

	dueDate, ok := c.Date(cell(types.FieldDueDate))
	if !ok {
		stats.CoercionFallbacks++
	}

	return types.BillingRecord{
		ID:                 c.ID(cell(types.FieldID), rowIndex),
		AccountNumber:      c.Text(cell(types.FieldAccountNumber)),
		AccountName:        c.Text(cell(types.FieldAccountName)),
		Address:            c.Text(cell(types.FieldAddress)),
		Amount:             amount(types.FieldAmount),
		DueDate:            dueDate,
		AmountAfterDueDate: amount(types.FieldAmountAfterDueDate),
	}
}

// uniqueID returns the row placeholder, suffixed until it is unused.
func uniqueID(seen map[string]struct{}, rowIndex int) string {
	id := PlaceholderID(rowIndex)
	for n := 2; ; n++ {
		if _, taken := seen[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s-%d", PlaceholderID(rowIndex), n)
	}
}
