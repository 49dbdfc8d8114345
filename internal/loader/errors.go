package loader

import (
	"errors"
	"fmt"
)

// ErrFileNotFound is returned when the readings table does not exist.
var ErrFileNotFound = errors.New("readings file not found")

// ParseError reports a value that could not be turned into a reading.
// Row is the 1-based data row; row 0 means the header or the file as a whole.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.Row == 0 && e.Column != "":
		return fmt.Sprintf("parse readings: column %q: %v", e.Column, e.Err)
	case e.Row == 0:
		return fmt.Sprintf("parse readings: %v", e.Err)
	default:
		return fmt.Sprintf("parse readings: row %d, column %q, value %q: %v", e.Row, e.Column, e.Value, e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
