// Package demo builds a small festival database on both sides, makes the
// reference drift from it, and reconciles the target.
package demo

import (
	"context"
	"fmt"
	"log"

	"schema-sync/internal/dbconn"
	"schema-sync/internal/engine"
)

type Options struct {
	Rows       int   // rows per parent table
	Seed       int64 // generator seed; the target uses Seed+1
	DryRun     bool
	OnProgress func()

	MaxRequeues int // passed to the Dropper when wiping; zero means n²
}

// Wipe drops every table of m, children before parents.
func Wipe(ctx context.Context, m *dbconn.Manager, maxRequeues int) error {
	synth, err := engine.NewSynthesizer(ctx, m, false)
	if err != nil {
		return err
	}
	tables, err := m.Inspector().ListTables(ctx)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		return nil
	}
	log.Printf("Dropping %d tables from %s", len(tables), m.Database())
	dropper := engine.NewDropper(synth)
	dropper.MaxRequeues = maxRequeues
	return dropper.DropAll(ctx, tables)
}

// ApplyReferenceChanges edits the seeded festival schema: bands gains country
// and loses city, festivals.name widens, new_table appears and managers goes.
func ApplyReferenceChanges(ctx context.Context, m *dbconn.Manager) error {
	log.Printf("Changing the structure of %s", m.Database())
	synth, err := engine.NewSynthesizer(ctx, m, false)
	if err != nil {
		return err
	}
	if err := synth.AddColumn(ctx, AddedColumnTable, AddedColumnSignature); err != nil {
		return err
	}
	if err := synth.ModifyColumn(ctx, ModifiedColumnTable, ModifiedColumnSignature); err != nil {
		return err
	}
	if err := synth.DropColumn(ctx, DroppedColumnTable, DroppedColumn); err != nil {
		return err
	}
	if err := m.Exec(ctx, NewTable.DDL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", NewTable.Name, err)
	}
	return synth.DropTable(ctx, DroppedTable)
}

// Run rebuilds both databases from the fixtures, applies the reference edits
// and reconciles the target.
func Run(ctx context.Context, ref, tgt *dbconn.Manager, opts Options) (*engine.Report, error) {
	if opts.Rows <= 0 {
		opts.Rows = 5
	}

	for _, step := range []struct {
		m    *dbconn.Manager
		seed int64
	}{{ref, opts.Seed}, {tgt, opts.Seed + 1}} {
		if err := Wipe(ctx, step.m, opts.MaxRequeues); err != nil {
			return nil, fmt.Errorf("failed to clean %s: %w", step.m.Database(), err)
		}
		log.Printf("Creating and filling demo tables on %s", step.m.Database())
		results, err := Seed(ctx, step.m, NewGenerator(step.seed), FestivalTables, opts.Rows, opts.OnProgress)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if r.Status != "OK" {
				log.Printf("Warning: %s seeded %d/%d rows: %s %s", r.TableName, r.Actual, r.Target, r.Status, r.ErrorMsg)
			}
		}
	}

	if err := ApplyReferenceChanges(ctx, ref); err != nil {
		return nil, err
	}

	r := &engine.Reconciler{Reference: ref, Target: tgt, DryRun: opts.DryRun}
	return r.Reconcile(ctx)
}
