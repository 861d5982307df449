package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"schema-sync/internal/dialect"
	"schema-sync/internal/schema"
)

// Roles are a naming convention only; both sides use the same Manager type.
const (
	RoleReference = "reference"
	RoleTarget    = "target"
)

// Config identifies one database. Either DSN or the host/port/user/password/database
// fields are used; an explicit DSN wins.
type Config struct {
	Role     string `mapstructure:"role"`
	Driver   string `mapstructure:"driver"`
	Dialect  string `mapstructure:"dialect"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// DriverName returns the database/sql driver, defaulting to mysql.
func (c Config) DriverName() string {
	if c.Driver == "" {
		return "mysql"
	}
	return c.Driver
}

// DataSourceName builds the DSN handed to sql.Open.
func (c Config) DataSourceName() string {
	if c.DSN != "" {
		return c.DSN
	}
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	mc.Addr = host + ":" + strconv.Itoa(port)
	mc.DBName = c.Database
	return mc.FormatDSN()
}

// String identifies the database for logs without the password.
func (c Config) String() string {
	if c.DSN != "" && c.Host == "" {
		if mc, err := mysql.ParseDSN(c.DSN); err == nil {
			return fmt.Sprintf("%s@%s/%s", mc.User, mc.Addr, mc.DBName)
		}
		return c.Role
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s@%s:%d/%s", c.User, c.Host, port, c.Database)
}

// Manager is an open session against one database. It pins a single
// connection so that session state (USE, FOREIGN_KEY_CHECKS) sticks.
type Manager struct {
	cfg      Config
	db       *sql.DB
	conn     *sql.Conn
	dialect  dialect.Dialect
	database string
	version  string

	inspector *schema.Inspector
}

// Open connects using cfg and pins one connection.
func Open(ctx context.Context, cfg Config) (*Manager, error) {
	db, err := sql.Open(cfg.DriverName(), cfg.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s db: %w", cfg.Role, err)
	}
	m, err := New(ctx, db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// New wraps an already opened *sql.DB. Close releases both the pinned
// connection and db.
func New(ctx context.Context, db *sql.DB, cfg Config) (*Manager, error) {
	d, err := dialect.GetDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s db: %w", cfg.Role, err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s connection: %w", cfg.Role, err)
	}

	m := &Manager{cfg: cfg, db: db, conn: conn, dialect: d}

	var name sql.NullString
	if err := conn.QueryRowContext(ctx, d.CurrentDatabaseQuery()).Scan(&name); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get database name: %w", err)
	}
	if !name.Valid || name.String == "" {
		conn.Close()
		return nil, fmt.Errorf("no database selected for %s (set database or dsn)", cfg.Role)
	}
	m.database = name.String

	if err := conn.QueryRowContext(ctx, d.VersionQuery()).Scan(&m.version); err != nil {
		log.Printf("Warning: could not read %s server version: %v", cfg.Role, err)
	}

	m.inspector = schema.NewInspector(conn, d)
	log.Printf("Connected to %s database %s (server %s)", cfg.Role, m.database, m.version)
	return m, nil
}

func (m *Manager) Role() string { return m.cfg.Role }

func (m *Manager) Database() string { return m.database }

func (m *Manager) Version() string { return m.version }

func (m *Manager) Dialect() dialect.Dialect { return m.dialect }

func (m *Manager) Inspector() *schema.Inspector { return m.inspector }

// Exec runs one statement on the pinned connection. DDL commits implicitly.
func (m *Manager) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := m.conn.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	return nil
}

// Close releases the pinned connection and the pool.
func (m *Manager) Close() error {
	connErr := m.conn.Close()
	dbErr := m.db.Close()
	log.Printf("Connection to %s database %s closed", m.cfg.Role, m.database)
	if connErr != nil {
		return fmt.Errorf("failed to close %s connection: %w", m.cfg.Role, connErr)
	}
	return dbErr
}
