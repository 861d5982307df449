package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"schema-sync/internal/dialect"
)

// Querier is the subset of *sql.DB / *sql.Conn / *sql.Tx the inspector needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Inspector reads schema metadata from one database session.
type Inspector struct {
	q Querier
	d dialect.Dialect
}

func NewInspector(q Querier, d dialect.Dialect) *Inspector {
	return &Inspector{q: q, d: d}
}

// ListTables returns the table names in the order the server lists them.
// An empty database yields an empty slice.
func (i *Inspector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := i.q.QueryContext(ctx, i.d.ListTablesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

// CaptureSnapshot records emptiness and column names for every given table.
// A table that disappeared since it was listed fails with *IntrospectionError.
func (i *Inspector) CaptureSnapshot(ctx context.Context, tables []string) (Snapshot, error) {
	snap := Snapshot{
		Order:  make([]string, 0, len(tables)),
		Tables: make(map[string]TableInfo, len(tables)),
	}

	for _, table := range tables {
		var hasRows bool
		if err := i.q.QueryRowContext(ctx, i.d.HasRowsQuery(table)).Scan(&hasRows); err != nil {
			if i.d.IsMissingTableError(err) {
				return Snapshot{}, &IntrospectionError{Table: table, Err: err}
			}
			return Snapshot{}, fmt.Errorf("failed to check rows of %s: %w", table, err)
		}

		columns, err := i.columns(ctx, table)
		if err != nil {
			return Snapshot{}, err
		}
		if len(columns) == 0 {
			// Every table has at least one column; none means it was dropped in between.
			return Snapshot{}, &IntrospectionError{Table: table}
		}

		snap.Order = append(snap.Order, table)
		snap.Tables[table] = TableInfo{IsEmpty: !hasRows, Columns: columns}
	}
	return snap, nil
}

func (i *Inspector) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := i.q.QueryContext(ctx, i.d.ColumnsQuery(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column (table: %s): %w", table, err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	return columns, nil
}

// RowCount counts the rows of table.
func (i *Inspector) RowCount(ctx context.Context, table string) (int, error) {
	var n int
	if err := i.q.QueryRowContext(ctx, i.d.CountRowsQuery(table)).Scan(&n); err != nil {
		if i.d.IsMissingTableError(err) {
			return 0, &IntrospectionError{Table: table, Err: err}
		}
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	return n, nil
}

// CreateStatement returns the server's CREATE TABLE statement for table.
func (i *Inspector) CreateStatement(ctx context.Context, table string) (string, error) {
	var name, stmt string
	if err := i.q.QueryRowContext(ctx, i.d.ShowCreateTableQuery(table)).Scan(&name, &stmt); err != nil {
		if i.d.IsMissingTableError(err) {
			return "", &IntrospectionError{Table: table, Err: err}
		}
		return "", fmt.Errorf("failed to show create table %s: %w", table, err)
	}
	return stmt, nil
}

// ColumnSignature returns the definition of one column as the server prints it.
func (i *Inspector) ColumnSignature(ctx context.Context, table, column string) (ColumnSignature, error) {
	stmt, err := i.CreateStatement(ctx, table)
	if err != nil {
		return "", err
	}
	return ExtractColumnSignature(i.d, stmt, table, column)
}

// ExtractColumnSignature finds the line of stmt that defines column. The quoted
// name must be followed by whitespace, so `name` never matches `name_2`.
func ExtractColumnSignature(d dialect.Dialect, stmt, table, column string) (ColumnSignature, error) {
	quoted := d.QuoteIdent(column)
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, quoted)
		if !ok {
			continue
		}
		if rest == "" || rest == "," || rest[0] == ' ' || rest[0] == '\t' {
			return ColumnSignature(dialect.TrimStatement(line)), nil
		}
	}
	return "", &ColumnNotFoundError{Table: table, Column: column}
}

// Dependencies returns, per table, the tables it references through foreign keys.
// Self references are ignored.
func (i *Inspector) Dependencies(ctx context.Context) (map[string][]string, error) {
	rows, err := i.q.QueryContext(ctx, i.d.ForeignKeysQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer rows.Close()

	deps := make(map[string][]string)
	seen := make(map[[2]string]bool)
	for rows.Next() {
		var table, ref sql.NullString
		if err := rows.Scan(&table, &ref); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if !table.Valid || !ref.Valid || table.String == ref.String {
			continue
		}
		key := [2]string{table.String, ref.String}
		if seen[key] {
			continue // composite keys yield one row per column
		}
		seen[key] = true
		deps[table.String] = append(deps[table.String], ref.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign keys: %w", err)
	}
	return deps, nil
}
