package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"schema-sync/internal/dbconn"
	"schema-sync/internal/schema"
)

// Reconciler converges the Target schema to the Reference schema.
// Row data is never touched, and nothing is transactional across a run:
// each statement commits on its own.
type Reconciler struct {
	Reference *dbconn.Manager
	Target    *dbconn.Manager
	DryRun    bool

	// Progress, if set, is called after each table is handled.
	Progress func(done, total int)
}

// Capture lists the tables of m and snapshots them.
func Capture(ctx context.Context, m *dbconn.Manager) (schema.Snapshot, error) {
	tables, err := m.Inspector().ListTables(ctx)
	if err != nil {
		return schema.Snapshot{}, err
	}
	snap, err := m.Inspector().CaptureSnapshot(ctx, tables)
	if err != nil {
		return schema.Snapshot{}, err
	}
	if len(tables) == 0 {
		log.Printf("Database %s (%s) is empty, no tables found", m.Database(), m.Role())
	} else {
		log.Printf("Database %s (%s) has %d tables: %v", m.Database(), m.Role(), len(tables), snap.Names())
	}
	return snap, nil
}

// Reconcile applies the difference between the two schemas. Expected structural
// differences never produce an error; the returned error is the one that aborted
// the run, in which case the report describes everything applied before it.
func (r *Reconciler) Reconcile(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Reference: r.Reference.Database(),
		Target:    r.Target.Database(),
		DryRun:    r.DryRun,
		StartedAt: time.Now(),

		CreatedTables: []string{},
		DroppedTables: []DroppedTable{},
		Skipped:       []Skipped{},
		Columns:       map[string]*ColumnChanges{},
		Statements:    []string{},
	}
	log.Printf("[%s] Reconciling %s to match %s", report.RunID[:8], report.Target, report.Reference)

	err := r.run(ctx, report)
	report.finish(err)
	return report, err
}

func (r *Reconciler) run(ctx context.Context, report *Report) error {
	// Reference introspection completes before the target is touched.
	refSnap, err := Capture(ctx, r.Reference)
	if err != nil {
		return err
	}
	tgtSnap, err := Capture(ctx, r.Target)
	if err != nil {
		return err
	}
	plan := Diff(refSnap, tgtSnap)

	synth, err := NewSynthesizer(ctx, r.Target, r.DryRun)
	if err != nil {
		return err
	}
	defer func() { report.Statements = synth.Statements() }()

	total := len(plan.CreateTables) + len(plan.DropTables) + len(plan.Tables)
	done := 0
	step := func() {
		done++
		if r.Progress != nil {
			r.Progress(done, total)
		}
	}

	if err := r.createTables(ctx, synth, plan.CreateTables, report, step); err != nil {
		return err
	}
	if err := r.dropTables(ctx, synth, plan.DropTables, tgtSnap, report, step); err != nil {
		return err
	}
	for _, td := range plan.Tables {
		if err := r.reconcileColumns(ctx, synth, td, report); err != nil {
			return err
		}
		step()
	}
	return nil
}

// createTables copies missing tables, parents before children.
func (r *Reconciler) createTables(ctx context.Context, synth *Synthesizer, tables []string, report *Report, step func()) error {
	if len(tables) == 0 {
		return nil
	}
	log.Printf("Tables added in %s: [%d]. Creating them on %s.", r.Reference.Database(), len(tables), r.Target.Database())

	deps, err := r.Reference.Inspector().Dependencies(ctx)
	if err != nil {
		return err
	}
	order := schema.SortByDependencies(tables, deps)

	return synth.withForeignKeyChecksDisabled(ctx, func() error {
		for _, t := range order {
			if err := synth.CopyTableStructure(ctx, t, r.Reference); err != nil {
				return err
			}
			report.CreatedTables = append(report.CreatedTables, t)
			step()
		}
		return nil
	})
}

// dropTables removes tables the reference no longer has, one at a time. A table
// blocked by a foreign key is retried while the previous pass made progress,
// then reported as needing attention.
func (r *Reconciler) dropTables(ctx context.Context, synth *Synthesizer, tables []string, tgtSnap schema.Snapshot, report *Report, step func()) error {
	if len(tables) == 0 {
		return nil
	}
	log.Printf("Tables removed from %s: [%d]. Trying to drop them from %s.", r.Reference.Database(), len(tables), r.Target.Database())

	d := r.Target.Dialect()
	pending := tables
	for len(pending) > 0 {
		var blocked []string
		reasons := make(map[string]error)
		for _, t := range pending {
			err := synth.DropTable(ctx, t)
			switch {
			case err == nil:
				report.DroppedTables = append(report.DroppedTables, DroppedTable{
					Table:   t,
					HadRows: !tgtSnap.Tables[t].IsEmpty,
				})
				log.Printf("Dropped table %s", t)
				step()
			case d.IsDependencyError(err):
				blocked = append(blocked, t)
				reasons[t] = err
			default:
				return err
			}
		}

		if len(blocked) == len(pending) {
			for _, t := range blocked {
				report.Skipped = append(report.Skipped, Skipped{
					Table:  t,
					Reason: fmt.Sprintf("could not be dropped automatically, related data probably references it: %v", errors.Unwrap(reasons[t])),
				})
				log.Printf("Warning: could not drop table %s automatically, developer attention required", t)
				step()
			}
			break
		}
		pending = blocked
	}
	return nil
}

// reconcileColumns adds, drops and redefines the columns of one common table.
func (r *Reconciler) reconcileColumns(ctx context.Context, synth *Synthesizer, td TableDiff, report *Report) error {
	refStmt := ""
	refSignature := func(column string) (schema.ColumnSignature, error) {
		if refStmt == "" {
			stmt, err := r.Reference.Inspector().CreateStatement(ctx, td.Table)
			if err != nil {
				return "", err
			}
			refStmt = stmt
		}
		return schema.ExtractColumnSignature(r.Reference.Dialect(), refStmt, td.Table, column)
	}

	for _, c := range td.AddColumns {
		sig, err := refSignature(c)
		if err != nil {
			return err
		}
		if err := synth.AddColumn(ctx, td.Table, sig); err != nil {
			if errors.Is(err, ErrTableNotCached) {
				report.Skipped = append(report.Skipped, Skipped{Table: td.Table, Column: c, Reason: err.Error()})
				continue
			}
			return err
		}
		report.addedColumn(td.Table, c)
		log.Printf("Copied column %s into table %s", c, td.Table)
	}

	if !synth.HasTable(td.Table) {
		// Gone since the snapshot; there is nothing left to alter or compare.
		if len(td.DropColumns)+len(td.SharedColumns) > 0 {
			report.Skipped = append(report.Skipped, Skipped{
				Table:  td.Table,
				Reason: "table disappeared from the target during the run, remaining column changes were not applied",
			})
			log.Printf("Warning: table %s disappeared from %s during the run", td.Table, r.Target.Database())
		}
		return nil
	}

	for _, c := range td.DropColumns {
		if err := synth.DropColumn(ctx, td.Table, c); err != nil {
			return err
		}
		report.droppedColumn(td.Table, c)
		log.Printf("Dropped column %s of table %s", c, td.Table)
	}

	if len(td.SharedColumns) == 0 {
		return nil
	}
	tgtStmt, err := r.Target.Inspector().CreateStatement(ctx, td.Table)
	if err != nil {
		return err
	}
	for _, c := range td.SharedColumns {
		want, err := refSignature(c)
		if err != nil {
			return err
		}
		have, err := schema.ExtractColumnSignature(r.Target.Dialect(), tgtStmt, td.Table, c)
		if err != nil {
			return err
		}
		if have == want {
			continue
		}
		if err := synth.ModifyColumn(ctx, td.Table, want); err != nil {
			return err
		}
		report.modifiedColumn(td.Table, c, have, want)
		log.Printf("Modified column %s of table %s: %s --> %s", c, td.Table, have, want)
	}
	return nil
}
