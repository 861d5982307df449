// Package fakedb is an in-memory database/sql driver that understands the
// MySQL statements issued by the reconciler. It keeps CREATE TABLE text in the
// same layout MySQL prints, and reports failures as *mysql.MySQLError.
package fakedb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
)

const DriverName = "fakemysql"

var (
	registryMu sync.Mutex
	registry   = map[string]*Server{}
	seq        int
)

func init() {
	sql.Register(DriverName, &fakeDriver{})
}

// Server is one fake database.
type Server struct {
	mu         sync.Mutex
	name       string
	dsn        string
	tables     map[string]*table
	failures   map[string]error
	statements []string
}

type column struct {
	name string
	sig  string
}

type table struct {
	name        string
	columns     []column
	constraints []string
	refs        []string
	options     string
	rows        int
}

// New registers an empty database called name and returns it.
func New(name string) *Server {
	registryMu.Lock()
	defer registryMu.Unlock()
	seq++
	s := &Server{
		name:     name,
		dsn:      fmt.Sprintf("%s#%d", name, seq),
		tables:   map[string]*table{},
		failures: map[string]error{},
	}
	registry[s.dsn] = s
	return s
}

func (s *Server) Name() string { return s.name }

// DSN is the data source name to pass to sql.Open(DriverName, ...).
func (s *Server) DSN() string { return s.dsn }

// Exec runs a statement on a fresh session with foreign key checks enabled.
func (s *Server) Exec(query string) error {
	return s.exec(&session{srv: s, fkChecks: true}, query, nil)
}

// MustExec is Exec for fixtures; it panics on error.
func (s *Server) MustExec(queries ...string) {
	for _, q := range queries {
		if err := s.Exec(q); err != nil {
			panic(fmt.Sprintf("fakedb: %s: %v", q, err))
		}
	}
}

// MustExecUnchecked is MustExec with foreign key checks disabled, for fixtures
// with circular references.
func (s *Server) MustExecUnchecked(queries ...string) {
	sess := &session{srv: s}
	for _, q := range queries {
		if err := s.exec(sess, q, nil); err != nil {
			panic(fmt.Sprintf("fakedb: %s: %v", q, err))
		}
	}
}

// FailOn makes the exact statement query fail with err.
func (s *Server) FailOn(query string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[query] = err
}

// SetRows sets the number of rows a table reports.
func (s *Server) SetRows(name string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[name]; ok {
		t.rows = n
	}
}

// Tables returns the table names in sorted order.
func (s *Server) Tables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedNames()
}

// Columns returns a table's column names in definition order.
func (s *Server) Columns(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.name
	}
	return out
}

// Signature returns a column definition as SHOW CREATE TABLE would print it.
func (s *Server) Signature(tableName, col string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[tableName]; ok {
		for _, c := range t.columns {
			if c.name == col {
				return c.sig
			}
		}
	}
	return ""
}

// Statements returns every successfully executed statement other than reads.
func (s *Server) Statements() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statements...)
}

// ResetStatements clears the statement log.
func (s *Server) ResetStatements() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statements = nil
}

func (s *Server) sortedNames() []string {
	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (t *table) render() string {
	lines := make([]string, 0, len(t.columns)+len(t.constraints))
	for _, c := range t.columns {
		lines = append(lines, "  "+c.sig)
	}
	for _, c := range t.constraints {
		lines = append(lines, "  "+c)
	}
	return "CREATE TABLE " + quote(t.name) + " (\n" + strings.Join(lines, ",\n") + "\n" + t.options
}

// ---------------------------------------------------------------------
// Statement Handling
// ---------------------------------------------------------------------

const ident = "(`(?:[^`]|``)+`|[A-Za-z0-9_$]+)"

var (
	reHasRows    = regexp.MustCompile(`^SELECT EXISTS\(SELECT 1 FROM ` + ident + ` LIMIT 1\)$`)
	reCountRows  = regexp.MustCompile(`^SELECT COUNT\(\*\) FROM ` + ident + `$`)
	reShowCreate = regexp.MustCompile(`^SHOW CREATE TABLE ` + ident + `$`)
	reUse        = regexp.MustCompile(`^USE ` + ident + `$`)
	reFKChecks   = regexp.MustCompile(`^SET FOREIGN_KEY_CHECKS = ([01])$`)
	reCreate     = regexp.MustCompile(`^CREATE TABLE (?:IF NOT EXISTS )?` + ident + ` \($`)
	reAdd        = regexp.MustCompile(`(?s)^ALTER TABLE ` + ident + ` ADD COLUMN (.+)$`)
	reModify     = regexp.MustCompile(`(?s)^ALTER TABLE ` + ident + ` MODIFY COLUMN (.+)$`)
	reDropCol    = regexp.MustCompile(`^ALTER TABLE ` + ident + ` DROP COLUMN ` + ident + `$`)
	reDropTable  = regexp.MustCompile(`^DROP TABLE ` + ident + `$`)
	reInsert     = regexp.MustCompile(`^INSERT INTO ` + ident + `[ (]`)
	reLeading    = regexp.MustCompile(`^` + ident)
	reReferences = regexp.MustCompile(`REFERENCES ` + ident)
)

func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func unquote(s string) string {
	if strings.HasPrefix(s, "`") && strings.HasSuffix(s, "`") && len(s) >= 2 {
		return strings.ReplaceAll(s[1:len(s)-1], "``", "`")
	}
	return s
}

func myErr(num uint16, format string, args ...any) error {
	return &mysql.MySQLError{Number: num, Message: fmt.Sprintf(format, args...)}
}

type session struct {
	srv      *Server
	fkChecks bool
}

type result struct {
	cols []string
	data [][]driver.Value
}

func (s *Server) query(sess *session, q string, args []driver.NamedValue) (*result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[q]; ok {
		return nil, err
	}

	switch {
	case q == "SELECT DATABASE()":
		return &result{cols: []string{"DATABASE()"}, data: [][]driver.Value{{s.name}}}, nil

	case q == "SELECT VERSION()":
		return &result{cols: []string{"VERSION()"}, data: [][]driver.Value{{"8.0.36-fake"}}}, nil

	case q == "SHOW TABLES":
		res := &result{cols: []string{"Tables_in_" + s.name}}
		for _, n := range s.sortedNames() {
			res.data = append(res.data, []driver.Value{n})
		}
		return res, nil

	case strings.HasPrefix(q, "SELECT COLUMN_NAME FROM information_schema.COLUMNS"):
		if len(args) != 1 {
			return nil, myErr(1064, "expected one argument, got %d", len(args))
		}
		name, _ := args[0].Value.(string)
		res := &result{cols: []string{"COLUMN_NAME"}}
		if t, ok := s.tables[name]; ok {
			for _, c := range t.columns {
				res.data = append(res.data, []driver.Value{c.name})
			}
		}
		return res, nil

	case strings.HasPrefix(q, "SELECT TABLE_NAME, REFERENCED_TABLE_NAME"):
		res := &result{cols: []string{"TABLE_NAME", "REFERENCED_TABLE_NAME"}}
		for _, n := range s.sortedNames() {
			for _, ref := range s.tables[n].refs {
				res.data = append(res.data, []driver.Value{n, ref})
			}
		}
		return res, nil
	}

	if m := reHasRows.FindStringSubmatch(q); m != nil {
		t, err := s.lookup(unquote(m[1]))
		if err != nil {
			return nil, err
		}
		v := int64(0)
		if t.rows > 0 {
			v = 1
		}
		return &result{cols: []string{"EXISTS"}, data: [][]driver.Value{{v}}}, nil
	}
	if m := reCountRows.FindStringSubmatch(q); m != nil {
		t, err := s.lookup(unquote(m[1]))
		if err != nil {
			return nil, err
		}
		return &result{cols: []string{"COUNT(*)"}, data: [][]driver.Value{{int64(t.rows)}}}, nil
	}
	if m := reShowCreate.FindStringSubmatch(q); m != nil {
		t, err := s.lookup(unquote(m[1]))
		if err != nil {
			return nil, err
		}
		return &result{cols: []string{"Table", "Create Table"}, data: [][]driver.Value{{t.name, t.render()}}}, nil
	}
	return nil, myErr(1064, "You have an error in your SQL syntax near '%s'", q)
}

func (s *Server) lookup(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, myErr(1146, "Table '%s.%s' doesn't exist", s.name, name)
	}
	return t, nil
}

func (s *Server) exec(sess *session, q string, args []driver.NamedValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[q]; ok {
		return err
	}
	if err := s.apply(sess, q); err != nil {
		return err
	}
	if !strings.HasPrefix(q, "INSERT") && !strings.HasPrefix(q, "SET") && !strings.HasPrefix(q, "USE") {
		s.statements = append(s.statements, q)
	}
	return nil
}

func (s *Server) apply(sess *session, q string) error {
	if m := reUse.FindStringSubmatch(q); m != nil {
		if unquote(m[1]) != s.name {
			return myErr(1049, "Unknown database '%s'", unquote(m[1]))
		}
		return nil
	}
	if m := reFKChecks.FindStringSubmatch(q); m != nil {
		sess.fkChecks = m[1] == "1"
		return nil
	}
	if m := reInsert.FindStringSubmatch(q); m != nil {
		t, err := s.lookup(unquote(m[1]))
		if err != nil {
			return err
		}
		t.rows++
		return nil
	}
	if m := reAdd.FindStringSubmatch(q); m != nil {
		t, err := s.lookup(unquote(m[1]))
		if err != nil {
			return err
		}
		name, err := leadingName(m[2])
		if err != nil {
			return err
		}
		for _, c := range t.columns {
			if c.name == name {
				return myErr(1060, "Duplicate column name '%s'", name)
			}
		}
		t.columns = append(t.columns, column{name: name, sig: normalizeSig(m[2])})
		return nil
	}
	if m := reModify.FindStringSubmatch(q); m != nil {
		t, err := s.lookup(unquote(m[1]))
		if err != nil {
			return err
		}
		name, err := leadingName(m[2])
		if err != nil {
			return err
		}
		for i, c := range t.columns {
			if c.name == name {
				t.columns[i].sig = normalizeSig(m[2])
				return nil
			}
		}
		return myErr(1054, "Unknown column '%s' in '%s'", name, t.name)
	}
	if m := reDropCol.FindStringSubmatch(q); m != nil {
		t, err := s.lookup(unquote(m[1]))
		if err != nil {
			return err
		}
		name := unquote(m[2])
		for i, c := range t.columns {
			if c.name != name {
				continue
			}
			if len(t.columns) == 1 {
				return myErr(1090, "You can't delete all columns with ALTER TABLE; use DROP TABLE instead")
			}
			t.columns = append(t.columns[:i], t.columns[i+1:]...)
			return nil
		}
		return myErr(1091, "Can't DROP '%s'; check that column/key exists", name)
	}
	if m := reDropTable.FindStringSubmatch(q); m != nil {
		name := unquote(m[1])
		if _, ok := s.tables[name]; !ok {
			return myErr(1051, "Unknown table '%s.%s'", s.name, name)
		}
		if sess.fkChecks {
			for _, other := range s.sortedNames() {
				if other == name {
					continue
				}
				for _, ref := range s.tables[other].refs {
					if ref == name {
						return myErr(3730, "Cannot drop table '%s' referenced by a foreign key constraint on table '%s'.", name, other)
					}
				}
			}
		}
		delete(s.tables, name)
		return nil
	}
	if strings.HasPrefix(q, "CREATE TABLE") {
		t, err := parseCreate(q)
		if err != nil {
			return err
		}
		if _, exists := s.tables[t.name]; exists {
			return myErr(1050, "Table '%s' already exists", t.name)
		}
		if sess.fkChecks {
			for _, ref := range t.refs {
				if _, ok := s.tables[ref]; !ok && ref != t.name {
					return myErr(1824, "Failed to open the referenced table '%s'", ref)
				}
			}
		}
		s.tables[t.name] = t
		return nil
	}
	return myErr(1064, "You have an error in your SQL syntax near '%s'", q)
}

func leadingName(sig string) (string, error) {
	m := reLeading.FindStringSubmatch(strings.TrimSpace(sig))
	if m == nil {
		return "", myErr(1064, "missing column name in '%s'", sig)
	}
	return unquote(m[1]), nil
}

// normalizeSig quotes the leading column name the way SHOW CREATE TABLE does.
func normalizeSig(sig string) string {
	sig = strings.TrimSpace(sig)
	m := reLeading.FindStringSubmatch(sig)
	if m == nil {
		return sig
	}
	return quote(unquote(m[1])) + sig[len(m[1]):]
}

func parseCreate(q string) (*table, error) {
	lines := strings.Split(q, "\n")
	m := reCreate.FindStringSubmatch(strings.TrimSpace(lines[0]))
	if m == nil {
		return nil, myErr(1064, "unsupported CREATE TABLE layout near '%s'", lines[0])
	}
	t := &table{name: unquote(m[1]), options: ")"}
	for _, raw := range lines[1:] {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ")") {
			t.options = line
			break
		}
		line = strings.TrimSuffix(line, ",")
		if strings.HasPrefix(line, "`") {
			name, err := leadingName(line)
			if err != nil {
				return nil, err
			}
			t.columns = append(t.columns, column{name: name, sig: line})
			continue
		}
		t.constraints = append(t.constraints, line)
		if r := reReferences.FindStringSubmatch(line); r != nil {
			t.refs = append(t.refs, unquote(r[1]))
		}
	}
	if len(t.columns) == 0 {
		return nil, myErr(1113, "A table must have at least 1 column")
	}
	return t, nil
}

// ---------------------------------------------------------------------
// database/sql/driver plumbing
// ---------------------------------------------------------------------

type fakeDriver struct{}

func (fakeDriver) Open(dsn string) (driver.Conn, error) {
	registryMu.Lock()
	s, ok := registry[dsn]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fakedb: unknown dsn %q", dsn)
	}
	return &conn{sess: &session{srv: s, fkChecks: true}}, nil
}

type conn struct {
	sess *session
}

var (
	_ driver.QueryerContext = (*conn)(nil)
	_ driver.ExecerContext  = (*conn)(nil)
)

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("fakedb: prepared statements are not supported")
}

func (c *conn) Close() error { return nil }

func (c *conn) Begin() (driver.Tx, error) { return noopTx{}, nil }

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := c.sess.srv.query(c.sess, strings.TrimSpace(query), args)
	if err != nil {
		return nil, err
	}
	return &rows{res: res}, nil
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.sess.srv.exec(c.sess, strings.TrimSpace(query), args); err != nil {
		return nil, err
	}
	return driver.RowsAffected(0), nil
}

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

type rows struct {
	res *result
	i   int
}

func (r *rows) Columns() []string { return r.res.cols }

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.i >= len(r.res.data) {
		return io.EOF
	}
	copy(dest, r.res.data[r.i])
	r.i++
	return nil
}
