// Package schema enforces the table contracts on pipeline inputs. A violation
// is fatal for the stage that detects it: no partial processing happens on a
// table that fails validation.
package schema

import (
	"fmt"
)

// Error identifies the first contract violation found in an input table. It
// names the column and row so the upstream data producer can be fixed.
type Error struct {
	Table  string
	Column string
	Row    int
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("schema violation in %s row %d, column %q: %s", e.Table, e.Row, e.Column, e.Reason)
}

func violation(table, column string, row int, reason string) *Error {
	return &Error{Table: table, Column: column, Row: row, Reason: reason}
}
