package ingest

import (
	"strings"

	"github.com/ginjaninja78/billing-inquiry/internal/types"
)

// =============================================================================
// COLUMN MAPPING
// =============================================================================

// NotFound marks a logical field with no source column.
const NotFound = -1

// MappingMode records how a ColumnMapping was produced.
type MappingMode string

const (
	// MappingKeyword means the header row was matched against field keywords.
	MappingKeyword MappingMode = "keyword"
	// MappingPositional means columns 0..6 were assigned in field order.
	MappingPositional MappingMode = "positional"
)

// ColumnMapping associates each logical field with a source column index.
// It lives for one ingestion run only.
type ColumnMapping struct {
	Mode    MappingMode
	columns [types.NumFields]int
}

// Column returns the source column of a field, or NotFound.
func (m ColumnMapping) Column(f types.Field) int {
	if int(f) < 0 || int(f) >= len(m.columns) {
		return NotFound
	}
	return m.columns[f]
}

// Resolved reports whether a field has a source column.
func (m ColumnMapping) Resolved(f types.Field) bool {
	return m.Column(f) != NotFound
}

// HeaderKeywords lists, per field, the lower-case fragments that identify its
// column. A header matches when it contains any fragment.
var HeaderKeywords = map[types.Field][]string{
	types.FieldID:                 {"id", "seq"},
	types.FieldAccountNumber:      {"account number", "acct no", "acc no", "account no"},
	types.FieldAccountName:        {"account name", "name", "customer"},
	types.FieldAddress:            {"address", "location", "brgy", "barangay"},
	types.FieldAmount:             {"amount", "bill amount", "current bill", "total amount"},
	types.FieldDueDate:            {"due date", "deadline"},
	types.FieldAmountAfterDueDate: {"amount after", "late", "penalty", "after due"},
}

// ResolveMapping builds the column mapping for a header row.
//
// Each field independently takes the first column whose normalized header
// contains one of its keywords, so two fields may claim the same column.
// When either account field is left unresolved the keyword result is thrown
// away entirely and the positional mapping is used instead.
func ResolveMapping(header types.Row) ColumnMapping {
	normalized := make([]string, len(header))
	for i, cell := range header {
		normalized[i] = normalizeHeader(cell)
	}

	m := ColumnMapping{Mode: MappingKeyword}
	for _, f := range types.AllFields {
		m.columns[f] = findColumn(normalized, HeaderKeywords[f])
	}

	if !m.Resolved(types.FieldAccountNumber) || !m.Resolved(types.FieldAccountName) {
		return PositionalMapping()
	}

	return m
}

// PositionalMapping maps columns 0..6 to the fields in declaration order.
func PositionalMapping() ColumnMapping {
	m := ColumnMapping{Mode: MappingPositional}
	for i, f := range types.AllFields {
		m.columns[f] = i
	}
	return m
}

func findColumn(headers []string, keywords []string) int {
	for i, h := range headers {
		if h == "" {
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(h, kw) {
				return i
			}
		}
	}
	return NotFound
}

// normalizeHeader lower-cases and trims a header cell.
func normalizeHeader(c types.Cell) string {
	if c.Kind == types.CellEmpty {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(c.Text))
}
