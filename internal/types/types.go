// =============================================================================
// Billing Inquiry - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - xlsxparser / csvparser (decoded cells)
//   - ingest (records produced from cells)
//   - search, store, service, server, workbook (records consumed)
//
// =============================================================================

package types

import (
	"strconv"
	"strings"
)

// =============================================================================
// BILLING RECORD
// =============================================================================

// BillingRecord is the canonical unit of the billing dataset: one account's
// current bill.
type BillingRecord struct {
	// ID is unique within a collection. When the source has no usable value
	// it is synthesized as "row-<n>" from the row position.
	ID string `json:"id" bson:"_id"`

	// AccountNumber may be empty, but never together with AccountName.
	AccountNumber string `json:"accountNumber" bson:"account_number"`

	// AccountName is the customer or establishment name.
	AccountName string `json:"accountName" bson:"name"`

	// Address is optional.
	Address string `json:"address" bson:"address"`

	// Amount is the current bill. Non-negative, 0 when unparseable.
	Amount float64 `json:"amount" bson:"bill_amount"`

	// DueDate is YYYY-MM-DD when derivable, otherwise the cleaned source text.
	DueDate string `json:"dueDate" bson:"due_date"`

	// AmountAfterDueDate is the amount owed after the due date.
	AmountAfterDueDate float64 `json:"amountAfterDueDate" bson:"amount_after_due_date"`
}

// HasIdentity reports whether the record can be looked up at all.
func (r BillingRecord) HasIdentity() bool {
	return r.AccountNumber != "" || r.AccountName != ""
}

// =============================================================================
// LOGICAL FIELDS
// =============================================================================

// Field identifies one of the seven logical columns of a billing record.
type Field int

// The declaration order is the positional fallback order and the order in
// which header keywords are resolved.
const (
	FieldID Field = iota
	FieldAccountNumber
	FieldAccountName
	FieldAddress
	FieldAmount
	FieldDueDate
	FieldAmountAfterDueDate
)

// NumFields is the number of logical fields.
const NumFields = int(FieldAmountAfterDueDate) + 1

// AllFields lists every logical field in resolution order. Header keywords
// are resolved in this order and positional columns follow it.
var AllFields = []Field{
	FieldID,
	FieldAccountNumber,
	FieldAccountName,
	FieldAddress,
	FieldAmount,
	FieldDueDate,
	FieldAmountAfterDueDate,
}

// CanonicalHeaders are the column titles used by the downloadable template.
var CanonicalHeaders = []string{
	"ID",
	"Account Number",
	"Account Name",
	"Address",
	"Amount",
	"Due Date",
	"Amount After Due Date",
}

// String returns the JSON name of the field.
func (f Field) String() string {
	switch f {
	case FieldID:
		return "id"
	case FieldAccountNumber:
		return "accountNumber"
	case FieldAccountName:
		return "accountName"
	case FieldAddress:
		return "address"
	case FieldAmount:
		return "amount"
	case FieldDueDate:
		return "dueDate"
	case FieldAmountAfterDueDate:
		return "amountAfterDueDate"
	default:
		return "field(" + strconv.Itoa(int(f)) + ")"
	}
}

// =============================================================================
// DECODED CELLS
// =============================================================================

// CellKind describes how a spreadsheet stored a cell value.
type CellKind int

const (
	// CellEmpty is an absent or blank cell.
	CellEmpty CellKind = iota
	// CellText is a string cell (shared, inline, or formula string result).
	CellText
	// CellNumber is a native numeric cell. Dates stored as serials are numbers too.
	CellNumber
	// CellBool is a native boolean cell.
	CellBool
	// CellDate is a cell the container already typed as a date (ISO 8601 text).
	CellDate
)

// Cell is one decoded spreadsheet value together with its native kind.
type Cell struct {
	Kind CellKind

	// Text is the raw textual form of the value. For numbers it is the
	// shortest decimal representation.
	Text string

	// Number is set for CellNumber (and 1/0 for CellBool).
	Number float64
}

// TextCell builds a textual cell; an empty string yields an empty cell.
func TextCell(s string) Cell {
	if s == "" {
		return Cell{Kind: CellEmpty}
	}
	return Cell{Kind: CellText, Text: s}
}

// NumberCell builds a numeric cell.
func NumberCell(v float64) Cell {
	return Cell{Kind: CellNumber, Number: v, Text: strconv.FormatFloat(v, 'f', -1, 64)}
}

// BoolCell builds a boolean cell.
func BoolCell(v bool) Cell {
	c := Cell{Kind: CellBool, Text: strconv.FormatBool(v)}
	if v {
		c.Number = 1
	}
	return c
}

// IsEmpty reports whether the cell carries no value. Whitespace-only text
// counts as empty.
func (c Cell) IsEmpty() bool {
	if c.Kind == CellEmpty {
		return true
	}
	if c.Kind == CellText {
		return strings.TrimSpace(c.Text) == ""
	}
	return false
}

// Row is an ordered sequence of decoded cells. Trailing cells may be missing.
type Row []Cell

// At returns the cell at index i, or an empty cell when i is out of range.
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Cell{Kind: CellEmpty}
	}
	return r[i]
}

// IsEmpty reports whether every cell of the row is empty.
func (r Row) IsEmpty() bool {
	for _, c := range r {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// Sheet is the decoded first worksheet of an upload.
type Sheet struct {
	// Name is the worksheet name, empty for CSV input.
	Name string

	// Rows holds every row in source order, header at index 0. Blank rows
	// inside the data range are kept as empty rows so indexes match the file.
	Rows []Row

	// Date1904 is true when the workbook uses the 1904 date system.
	Date1904 bool
}

// TrimToUsedRange drops leading blank rows and leading blank columns, so a
// sheet whose data starts below row 1 or right of column A reads with its
// first non-empty row as the header. Blank rows inside the data are kept.
func (s *Sheet) TrimToUsedRange() {
	first := 0
	for first < len(s.Rows) && s.Rows[first].IsEmpty() {
		first++
	}
	s.Rows = s.Rows[first:]

	col := -1
	for _, row := range s.Rows {
		for i, c := range row {
			if !c.IsEmpty() {
				if col < 0 || i < col {
					col = i
				}
				break
			}
		}
	}
	if col <= 0 {
		return
	}

	for i, row := range s.Rows {
		if len(row) > col {
			s.Rows[i] = row[col:]
		} else {
			s.Rows[i] = nil
		}
	}
}
