package document

import "fmt"

// ParseError pinpoints malformed delimiter structure in a source file.
type ParseError struct {
	Row     int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at row %d, column %d: %s", e.Row, e.Column, e.Message)
}
