package dialect

import "fmt"

// GetDialect returns the Dialect implementation for the given name.
// Only the MySQL family is supported: the reconciler relies on SHOW CREATE TABLE.
func GetDialect(name string) (Dialect, error) {
	switch name {
	case "", "mysql", "mariadb":
		return &MysqlDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q (supported: mysql, mariadb)", name)
	}
}

// Ensure interface implementation
var _ Dialect = (*MysqlDialect)(nil)
