package schema

import "fmt"

// IntrospectionError reports a table that could not be introspected, usually
// because it was dropped concurrently while a snapshot was being captured.
type IntrospectionError struct {
	Table string
	Err   error
}

func (e *IntrospectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to introspect table %s: table no longer exists", e.Table)
	}
	return fmt.Sprintf("failed to introspect table %s: %v", e.Table, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// ColumnNotFoundError reports a column missing from a table's CREATE TABLE statement.
type ColumnNotFoundError struct {
	Table  string
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %s not found in CREATE TABLE statement of %s", e.Column, e.Table)
}
