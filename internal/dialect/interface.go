package dialect

// Dialect abstracts database-specific query text and error classification.
type Dialect interface {
	// Metadata Queries (Schema Introspection)
	CurrentDatabaseQuery() string
	VersionQuery() string
	ListTablesQuery() string
	HasRowsQuery(table string) string
	ColumnsQuery() string
	ShowCreateTableQuery(table string) string
	ForeignKeysQuery() string

	// Session Hooks
	UseDatabaseQuery(database string) string
	DisableForeignKeyChecks() string
	EnableForeignKeyChecks() string

	// DDL Generation
	AddColumnQuery(table, signature string) string
	ModifyColumnQuery(table, signature string) string
	DropColumnQuery(table, column string) string
	DropTableQuery(table string) string

	// Data
	CountRowsQuery(table string) string
	InsertQuery(table string, cols []string) string
	Placeholder(index int) string

	// Helpers
	QuoteIdent(name string) string
	IsDependencyError(err error) bool
	DropBlockedError(table, referrer string) error
	IsMissingTableError(err error) bool
}
