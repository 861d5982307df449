package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"schema-sync/internal/dbconn"
	"schema-sync/internal/schema"
)

// ErrTableNotCached is returned by AddColumn when the table is not in the
// synthesizer's table-name cache, i.e. the caller acted on a stale snapshot.
var ErrTableNotCached = errors.New("table not present in target")

// Synthesizer builds DDL for one target database and executes it.
// In dry-run mode statements are only recorded.
type Synthesizer struct {
	target *dbconn.Manager
	dryRun bool

	tables     map[string]bool
	statements []string

	// deps is the target's foreign key graph, loaded on the first dry-run drop.
	deps map[string][]string
}

// NewSynthesizer loads the target's current table names into the cache.
func NewSynthesizer(ctx context.Context, target *dbconn.Manager, dryRun bool) (*Synthesizer, error) {
	s := &Synthesizer{target: target, dryRun: dryRun}
	if err := s.RefreshTables(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// RefreshTables reloads the table-name cache from the server.
func (s *Synthesizer) RefreshTables(ctx context.Context) error {
	names, err := s.target.Inspector().ListTables(ctx)
	if err != nil {
		return err
	}
	s.tables = make(map[string]bool, len(names))
	for _, n := range names {
		s.tables[n] = true
	}
	return nil
}

// HasTable reports whether table is in the cache.
func (s *Synthesizer) HasTable(table string) bool {
	return s.tables[table]
}

// Statements returns every statement executed (or planned, in dry-run mode).
func (s *Synthesizer) Statements() []string {
	return append([]string{}, s.statements...)
}

func (s *Synthesizer) exec(ctx context.Context, query string) error {
	if !s.dryRun {
		if err := s.target.Exec(ctx, query); err != nil {
			return err
		}
	}
	s.statements = append(s.statements, query)
	return nil
}

// AddColumn adds a column copied from another database's signature.
func (s *Synthesizer) AddColumn(ctx context.Context, table string, sig schema.ColumnSignature) error {
	if !s.HasTable(table) {
		return fmt.Errorf("failed to add column to %s: %w", table, ErrTableNotCached)
	}
	if err := s.exec(ctx, s.target.Dialect().AddColumnQuery(table, string(sig))); err != nil {
		return fmt.Errorf("failed to add column to %s: %w", table, err)
	}
	return nil
}

// ModifyColumn redefines an existing column. The caller must know the column exists.
func (s *Synthesizer) ModifyColumn(ctx context.Context, table string, sig schema.ColumnSignature) error {
	if err := s.exec(ctx, s.target.Dialect().ModifyColumnQuery(table, string(sig))); err != nil {
		return fmt.Errorf("failed to modify column of %s: %w", table, err)
	}
	return nil
}

func (s *Synthesizer) DropColumn(ctx context.Context, table, column string) error {
	if err := s.exec(ctx, s.target.Dialect().DropColumnQuery(table, column)); err != nil {
		return fmt.Errorf("failed to drop column %s.%s: %w", table, column, err)
	}
	return nil
}

// DropTable drops one table. A foreign key ordering failure is returned like
// any other error; classify it with the target dialect's IsDependencyError.
// In dry-run mode a table still referenced by a cached table fails the same way.
func (s *Synthesizer) DropTable(ctx context.Context, table string) error {
	if s.dryRun {
		referrer, err := s.referrer(ctx, table)
		if err != nil {
			return err
		}
		if referrer != "" {
			return fmt.Errorf("failed to drop table %s: %w", table, s.target.Dialect().DropBlockedError(table, referrer))
		}
	}
	if err := s.exec(ctx, s.target.Dialect().DropTableQuery(table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	if s.dryRun {
		delete(s.tables, table)
		return nil
	}
	return s.RefreshTables(ctx)
}

// CopyTableStructure creates table on the target with the source's CREATE TABLE
// statement, executed verbatim. Rows are never copied.
func (s *Synthesizer) CopyTableStructure(ctx context.Context, table string, source *dbconn.Manager) error {
	stmt, err := source.Inspector().CreateStatement(ctx, table)
	if err != nil {
		return err
	}
	if err := s.exec(ctx, s.target.Dialect().UseDatabaseQuery(s.target.Database())); err != nil {
		return fmt.Errorf("failed to select database %s: %w", s.target.Database(), err)
	}
	if err := s.exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	s.tables[table] = true
	if s.dryRun {
		// The planned table's foreign keys would exist on the target too.
		refs, err := source.Inspector().Dependencies(ctx)
		if err != nil {
			return err
		}
		if err := s.loadDependencies(ctx); err != nil {
			return err
		}
		s.deps[table] = refs[table]
	}
	log.Printf("Created table %s on %s", table, s.target.Database())
	return nil
}

func (s *Synthesizer) loadDependencies(ctx context.Context) error {
	if s.deps != nil {
		return nil
	}
	deps, err := s.target.Inspector().Dependencies(ctx)
	if err != nil {
		return err
	}
	s.deps = deps
	return nil
}

// referrer returns a cached table, other than table itself, whose foreign keys
// reference table. It is empty when nothing blocks the drop.
func (s *Synthesizer) referrer(ctx context.Context, table string) (string, error) {
	if err := s.loadDependencies(ctx); err != nil {
		return "", err
	}
	var found []string
	for child, parents := range s.deps {
		if child != table && s.tables[child] && slices.Contains(parents, table) {
			found = append(found, child)
		}
	}
	if len(found) == 0 {
		return "", nil
	}
	slices.Sort(found)
	return found[0], nil
}

// withForeignKeyChecksDisabled runs fn with FK checks off on the target session.
func (s *Synthesizer) withForeignKeyChecksDisabled(ctx context.Context, fn func() error) error {
	d := s.target.Dialect()
	if err := s.exec(ctx, d.DisableForeignKeyChecks()); err != nil {
		return fmt.Errorf("failed to disable foreign key checks: %w", err)
	}
	fnErr := fn()
	if err := s.exec(ctx, d.EnableForeignKeyChecks()); err != nil && fnErr == nil {
		return fmt.Errorf("failed to enable foreign key checks: %w", err)
	}
	return fnErr
}
