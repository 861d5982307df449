package schema

import "sort"

// TableInfo is the per-table part of a Snapshot.
type TableInfo struct {
	IsEmpty bool     `json:"is_empty"`
	Columns []string `json:"columns"` // catalog (ordinal) order
}

// Snapshot is a point-in-time view of a database's tables and columns.
// It is never refreshed; capture a new one after any DDL.
type Snapshot struct {
	Order  []string             `json:"order"` // tables as listed by the server
	Tables map[string]TableInfo `json:"tables"`
}

// ColumnSignature is the verbatim column definition taken from a CREATE TABLE
// statement, e.g. "`name` varchar(64) DEFAULT NULL".
type ColumnSignature string

func (s Snapshot) Has(table string) bool {
	_, ok := s.Tables[table]
	return ok
}

// Names returns the table names in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
