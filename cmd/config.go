package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"schema-sync/internal/dbconn"
)

// LoadDBConfig reads the connection settings of one role ("reference" or
// "target") from the config file, with environment variables taking precedence.
func LoadDBConfig(role string) (dbconn.Config, error) {
	if role != dbconn.RoleReference && role != dbconn.RoleTarget {
		return dbconn.Config{}, fmt.Errorf("unknown role %q (use %s or %s)", role, dbconn.RoleReference, dbconn.RoleTarget)
	}

	var cfg dbconn.Config
	if err := viper.UnmarshalKey(role, &cfg); err != nil {
		return dbconn.Config{}, fmt.Errorf("failed to parse %s config: %w", role, err)
	}
	cfg.Role = role

	// UnmarshalKey only sees the file; single keys also resolve the environment.
	for key, field := range map[string]*string{
		"driver":   &cfg.Driver,
		"dialect":  &cfg.Dialect,
		"dsn":      &cfg.DSN,
		"host":     &cfg.Host,
		"user":     &cfg.User,
		"password": &cfg.Password,
		"database": &cfg.Database,
	} {
		if v := viper.GetString(role + "." + key); v != "" {
			*field = v
		}
	}
	if port := viper.GetInt(role + ".port"); port != 0 {
		cfg.Port = port
	}

	if cfg.DSN == "" && cfg.Database == "" {
		return dbconn.Config{}, fmt.Errorf("%s.database (or %s.dsn) is required (via config or SCHEMA_SYNC_%s_DATABASE)",
			role, role, strings.ToUpper(role))
	}
	return cfg, nil
}

// statusWriter is where banners and notices go: stdout next to a text report,
// stderr when stdout carries JSON.
func statusWriter(cmd *cobra.Command, format string) io.Writer {
	if format == "json" {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

// openRole loads the role's config and connects. The connection banner goes to status.
func openRole(ctx context.Context, role string, status io.Writer) (*dbconn.Manager, error) {
	cfg, err := LoadDBConfig(role)
	if err != nil {
		return nil, err
	}
	m, err := dbconn.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(status, "🔌 Connected to %s (%s, MySQL %s)\n", m.Database(), role, m.Version())
	return m, nil
}
