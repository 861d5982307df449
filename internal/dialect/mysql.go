package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers used for classification.
const (
	ErrDropReferencedTable = 3730 // ER_FK_CANNOT_DROP_PARENT (MySQL 8)
	ErrRowIsReferenced2    = 1451 // ER_ROW_IS_REFERENCED_2 (MariaDB DROP TABLE)
	ErrRowIsReferenced     = 1217 // ER_ROW_IS_REFERENCED (older servers)
	ErrNoSuchTable         = 1146 // ER_NO_SUCH_TABLE
)

type MysqlDialect struct{}

func (d *MysqlDialect) CurrentDatabaseQuery() string {
	return `SELECT DATABASE()`
}

func (d *MysqlDialect) VersionQuery() string {
	return `SELECT VERSION()`
}

func (d *MysqlDialect) ListTablesQuery() string {
	return `SHOW TABLES`
}

func (d *MysqlDialect) HasRowsQuery(table string) string {
	// EXISTS stops at the first row instead of counting the whole table.
	return fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s LIMIT 1)", d.QuoteIdent(table))
}

func (d *MysqlDialect) ColumnsQuery() string {
	return `SELECT COLUMN_NAME FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`
}

func (d *MysqlDialect) ShowCreateTableQuery(table string) string {
	return fmt.Sprintf("SHOW CREATE TABLE %s", d.QuoteIdent(table))
}

func (d *MysqlDialect) ForeignKeysQuery() string {
	return `SELECT TABLE_NAME, REFERENCED_TABLE_NAME FROM information_schema.KEY_COLUMN_USAGE WHERE TABLE_SCHEMA = DATABASE() AND REFERENCED_TABLE_NAME IS NOT NULL`
}

func (d *MysqlDialect) UseDatabaseQuery(database string) string {
	return fmt.Sprintf("USE %s", d.QuoteIdent(database))
}

func (d *MysqlDialect) DisableForeignKeyChecks() string {
	return "SET FOREIGN_KEY_CHECKS = 0"
}

func (d *MysqlDialect) EnableForeignKeyChecks() string {
	return "SET FOREIGN_KEY_CHECKS = 1"
}

func (d *MysqlDialect) AddColumnQuery(table, signature string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), signature)
}

func (d *MysqlDialect) ModifyColumnQuery(table, signature string) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", d.QuoteIdent(table), signature)
}

func (d *MysqlDialect) DropColumnQuery(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(column))
}

func (d *MysqlDialect) DropTableQuery(table string) string {
	return fmt.Sprintf("DROP TABLE %s", d.QuoteIdent(table))
}

func (d *MysqlDialect) CountRowsQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

func (d *MysqlDialect) InsertQuery(table string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdent(table), strings.Join(quoted, ", "), vals)
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) QuoteIdent(name string) string {
	return QuoteWith(name, "`")
}

// IsDependencyError reports whether err means a table cannot be dropped yet
// because another table still references it through a foreign key.
func (d *MysqlDialect) IsDependencyError(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	switch me.Number {
	case ErrDropReferencedTable, ErrRowIsReferenced2, ErrRowIsReferenced:
		return true
	}
	return false
}

// DropBlockedError is the error the server returns when table cannot be dropped
// because referrer still references it. Dry runs use it to refuse the same drops.
func (d *MysqlDialect) DropBlockedError(table, referrer string) error {
	return &mysql.MySQLError{
		Number:   ErrDropReferencedTable,
		SQLState: [5]byte{'H', 'Y', '0', '0', '0'},
		Message:  fmt.Sprintf("Cannot drop table '%s' referenced by a foreign key constraint on table '%s'.", table, referrer),
	}
}

func (d *MysqlDialect) IsMissingTableError(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == ErrNoSuchTable
}
