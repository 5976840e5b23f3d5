package template

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncorrectData is matched by every DataFormatError.
	ErrIncorrectData = errors.New("template: incorrect data")

	// Line errors
	ErrMissingSeparator = errors.New("expected format is key=value")
	ErrEmptyKey         = errors.New("empty key")

	// ErrTemplateRequired is returned by Validate for a blank template.
	ErrTemplateRequired = errors.New("template: parameters required")
)

// LineError describes one malformed key=value record.
type LineError struct {
	Number int    // 1-based line number
	Text   string // offending line
	Reason error  // ErrMissingSeparator or ErrEmptyKey
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d [%s]: %v", e.Number, e.Text, e.Reason)
}

func (e *LineError) Unwrap() error {
	return e.Reason
}

// DataFormatError is returned by ResolveJSON when at least one record is not a
// valid key=value pair. It lists every failing line.
type DataFormatError struct {
	Lines []LineError
}

func (e *DataFormatError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for i := range e.Lines {
		parts = append(parts, e.Lines[i].Error())
	}
	return fmt.Sprintf("%v: %s", ErrIncorrectData, strings.Join(parts, "; "))
}

func (e *DataFormatError) Unwrap() error {
	return ErrIncorrectData
}
