package ingest

import (
	"errors"
)

// ErrUnsupportedFileType is returned when an upload is not a recognized
// spreadsheet container. It is raised before any parsing is attempted.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// ParseError describes an upload that could not be turned into records:
// undecodable content, no data rows, or (at the caller) zero qualifying rows.
type ParseError struct {
	// Reason is the human-readable description shown to the uploader.
	Reason string

	// Err is the underlying decoder error, if any.
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError builds a ParseError.
func NewParseError(reason string, err error) *ParseError {
	return &ParseError{Reason: reason, Err: err}
}

// IsParseError reports whether err is, or wraps, a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
