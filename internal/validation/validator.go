// =============================================================================
// Billing Inquiry - Validation Engine
// =============================================================================
//
// This module guards both ends of an upload:
//
//   1. Upload-level: before parsing, the file must be a supported spreadsheet
//      of acceptable size whose content matches its extension.
//   2. Record-level: after parsing, the record collection is checked for
//      problems worth reporting to the administrator.
//
// ERROR HANDLING:
//   - Upload checks return an error immediately (nothing is parsed).
//   - Record checks are collected, not returned one by one.
//   - Each finding carries the record id, field, value and source row.
//   - Findings are warnings (reported, upload proceeds) or errors (the
//     collection must not replace the current one).
//
// =============================================================================

package validation

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/billing-inquiry/internal/ingest"
	"github.com/ginjaninja78/billing-inquiry/internal/types"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ErrFileTooLarge is returned when an upload exceeds the size limit.
var ErrFileTooLarge = errors.New("file too large")

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single finding about a record.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Field is the JSON name of the field that failed validation.
	Field string

	// Value is the offending value.
	Value string

	// Rule is the name of the check that was violated.
	Rule string

	// Message is a human-readable description.
	Message string

	// RecordID is the id of the record.
	RecordID string

	// RowNumber is the 1-based position of the record in the collection.
	RowNumber int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] Record %d (id %s), Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.RowNumber,
		e.RecordID,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validating a record collection.
type ValidationResult struct {
	// IsValid is true if there are no errors (and, in strict mode, no
	// warnings).
	IsValid bool

	// Errors contains every finding, warnings included.
	Errors []*ValidationError

	// ErrorCount is the number of errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// RecordsValidated is the number of records checked.
	RecordsValidated int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options contains options for validation.
type Options struct {
	// AllowedExtensions lists accepted upload extensions, with the dot.
	// Default: .xlsx, .xls, .csv
	AllowedExtensions []string

	// MaxUploadBytes caps the upload size. 0 disables the check.
	MaxUploadBytes int64

	// TreatWarningsAsErrors makes any warning invalidate the collection.
	// Default: false
	TreatWarningsAsErrors bool
}

// DefaultOptions returns the default validation options.
func DefaultOptions() Options {
	return Options{
		AllowedExtensions: []string{".xlsx", ".xls", ".csv"},
	}
}

// Validator performs upload and record validation.
type Validator struct {
	options Options
}

// NewValidator creates a new Validator.
func NewValidator(options Options) *Validator {
	if len(options.AllowedExtensions) == 0 {
		options.AllowedExtensions = DefaultOptions().AllowedExtensions
	}
	return &Validator{options: options}
}

// =============================================================================
// UPLOAD VALIDATION
// =============================================================================

// ValidateUpload checks an upload before it is parsed.
//
// PARAMETERS:
//   - filename: The name the file was uploaded with.
//   - data: The complete file contents.
//
// RETURNS:
//   - nil when the file may be parsed.
//   - An error wrapping ingest.ErrUnsupportedFileType for a disallowed
//     extension or content that does not match it.
//   - An error wrapping ErrFileTooLarge above the size limit.
//   - An *ingest.ParseError for an empty file.
func (v *Validator) ValidateUpload(filename string, data []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !v.extensionAllowed(ext) {
		if ext == "" {
			return fmt.Errorf("%w: file has no extension", ingest.ErrUnsupportedFileType)
		}
		return fmt.Errorf("%w: %s files are not accepted (allowed: %s)",
			ingest.ErrUnsupportedFileType, ext, strings.Join(v.options.AllowedExtensions, ", "))
	}

	if len(data) == 0 {
		return ingest.NewParseError("file is empty", nil)
	}

	if v.options.MaxUploadBytes > 0 && int64(len(data)) > v.options.MaxUploadBytes {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, len(data), v.options.MaxUploadBytes)
	}

	if _, err := ingest.DetectFormat(filename, data); err != nil {
		return err
	}

	return nil
}

func (v *Validator) extensionAllowed(ext string) bool {
	if ext == "" {
		return false
	}
	for _, allowed := range v.options.AllowedExtensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// =============================================================================
// RECORD VALIDATION
// =============================================================================

// ValidateRecords checks a record collection.
//
// CHECKS:
//   | Rule               | Severity | Condition                                |
//   |--------------------|----------|------------------------------------------|
//   | identity           | error    | no account number and no account name    |
//   | unique_id          | error    | id empty or used by an earlier record    |
//   | non_negative       | error    | amount or amount after due date below 0  |
//   | account_number     | warning  | account number missing                   |
//   | due_date           | warning  | due date missing                         |
//   | due_date_format    | warning  | due date not in YYYY-MM-DD form          |
//   | penalty_not_lower  | warning  | amount after due date below the amount   |
func (v *Validator) ValidateRecords(records []types.BillingRecord) *ValidationResult {
	result := &ValidationResult{
		IsValid:          true,
		Errors:           make([]*ValidationError, 0),
		RecordsValidated: len(records),
	}

	seen := make(map[string]int, len(records))
	for i := range records {
		for _, finding := range v.validateRecord(&records[i], i+1, seen) {
			result.Errors = append(result.Errors, finding)

			if finding.Severity == SeverityError {
				result.ErrorCount++
				result.IsValid = false
			} else {
				result.WarningCount++
				if v.options.TreatWarningsAsErrors {
					result.IsValid = false
				}
			}
		}
	}

	return result
}

// ValidateRecords checks a record collection with the default options.
func ValidateRecords(records []types.BillingRecord) *ValidationResult {
	return NewValidator(DefaultOptions()).ValidateRecords(records)
}

// validateRecord runs every check against one record.
func (v *Validator) validateRecord(r *types.BillingRecord, row int, seen map[string]int) []*ValidationError {
	var findings []*ValidationError
	add := func(severity string, field types.Field, value, rule, message string) {
		findings = append(findings, &ValidationError{
			Severity:  severity,
			Field:     field.String(),
			Value:     value,
			Rule:      rule,
			Message:   message,
			RecordID:  r.ID,
			RowNumber: row,
		})
	}

	if !r.HasIdentity() {
		add(SeverityError, types.FieldAccountName, "", "identity", "Record has neither an account number nor an account name")
	}

	if strings.TrimSpace(r.ID) == "" {
		add(SeverityError, types.FieldID, r.ID, "unique_id", "Record has no id")
	} else if first, dup := seen[r.ID]; dup {
		add(SeverityError, types.FieldID, r.ID, "unique_id", fmt.Sprintf("Id already used by record %d", first))
	} else {
		seen[r.ID] = row
	}

	if r.Amount < 0 {
		add(SeverityError, types.FieldAmount, formatAmount(r.Amount), "non_negative", "Amount is negative")
	}
	if r.AmountAfterDueDate < 0 {
		add(SeverityError, types.FieldAmountAfterDueDate, formatAmount(r.AmountAfterDueDate), "non_negative", "Amount after due date is negative")
	}

	if r.AccountNumber == "" && r.AccountName != "" {
		add(SeverityWarning, types.FieldAccountNumber, "", "account_number", "Account number is missing; the record can only be found by name")
	}

	if r.DueDate == "" {
		add(SeverityWarning, types.FieldDueDate, "", "due_date", "Due date is missing")
	} else if msg := validateDate(r.DueDate); msg != "" {
		add(SeverityWarning, types.FieldDueDate, r.DueDate, "due_date_format", msg)
	}

	if r.AmountAfterDueDate > 0 && r.AmountAfterDueDate < r.Amount {
		add(SeverityWarning, types.FieldAmountAfterDueDate, formatAmount(r.AmountAfterDueDate), "penalty_not_lower",
			fmt.Sprintf("Amount after due date is lower than the amount (%s)", formatAmount(r.Amount)))
	}

	return findings
}

// =============================================================================
// FIELD VALIDATORS
// =============================================================================

// validateDate reports a due date that is not a calendar date in
// YYYY-MM-DD form. Such dates are kept as written by the pipeline.
func validateDate(value string) string {
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(value)); err != nil {
		return fmt.Sprintf("Value '%s' is not a YYYY-MM-DD date and will be shown as written", value)
	}
	return ""
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation findings for display or logging.
//
// PARAMETERS:
//   - errors: The findings to format.
//
// RETURNS:
//   - A formatted string containing all findings.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}

// WriteErrorLog writes validation findings to a report file.
//
// PARAMETERS:
//   - errors: The findings to write.
//   - filePath: The path to the output file.
//
// RETURNS:
//   - An error if writing fails.
func WriteErrorLog(errors []*ValidationError, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Validation report generated %s\n\n", time.Now().Format(time.RFC3339))
	writer.WriteString(FormatErrors(errors))

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
