package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"

	"schema-sync/internal/engine"
	"schema-sync/internal/fakedb"
)

func reconcile(t *testing.T, ref, tgt *fakedb.Server, dryRun bool) (*engine.Report, error) {
	t.Helper()
	r := &engine.Reconciler{
		Reference: openManager(t, ref, "reference"),
		Target:    openManager(t, tgt, "target"),
		DryRun:    dryRun,
	}
	return r.Reconcile(context.Background())
}

func mustReconcile(t *testing.T, ref, tgt *fakedb.Server) *engine.Report {
	t.Helper()
	report, err := reconcile(t, ref, tgt, false)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	return report
}

func TestReconcile_DropsRemovedTable(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(festivalsTable, bandsTable, schedulesTable)
	tgt := fakedb.New("prod")
	tgt.MustExec(festivalsTable, bandsTable, schedulesTable, managersTable)
	tgt.SetRows("managers", 5)

	report := mustReconcile(t, ref, tgt)

	assertStrings(t, "target tables", tgt.Tables(), []string{"bands", "festivals", "schedules"})
	if len(report.DroppedTables) != 1 || report.DroppedTables[0].Table != "managers" {
		t.Fatalf("Expected managers under dropped tables, got %+v", report.DroppedTables)
	}
	if !report.DroppedTables[0].HadRows {
		t.Error("managers held rows and should be flagged")
	}
	if report.Outcome != engine.OutcomeApplied {
		t.Errorf("Expected outcome %s, got %s", engine.OutcomeApplied, report.Outcome)
	}
}

func TestReconcile_DropsRemovedColumn(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(bandsTable)
	tgt := fakedb.New("prod")
	tgt.MustExec(createTable("bands",
		"`band_id` int NOT NULL AUTO_INCREMENT",
		"`name` varchar(32) DEFAULT NULL",
		"`genre` varchar(32) DEFAULT NULL",
		"`city` varchar(32) DEFAULT NULL",
		"PRIMARY KEY (`band_id`)"))

	report := mustReconcile(t, ref, tgt)

	assertStrings(t, "bands columns", tgt.Columns("bands"), []string{"band_id", "name", "genre"})
	changes := report.Columns["bands"]
	if changes == nil {
		t.Fatal("Expected column changes for bands")
	}
	assertStrings(t, "dropped columns", changes.Dropped, []string{"city"})
}

func TestReconcile_ModifiesColumnSignature(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(createTable("festivals",
		"`festival_id` int NOT NULL AUTO_INCREMENT",
		"`name` varchar(64) DEFAULT NULL",
		"PRIMARY KEY (`festival_id`)"))
	tgt := fakedb.New("prod")
	tgt.MustExec(createTable("festivals",
		"`festival_id` int NOT NULL AUTO_INCREMENT",
		"`name` varchar(32) DEFAULT NULL",
		"PRIMARY KEY (`festival_id`)"))

	report := mustReconcile(t, ref, tgt)

	if got, want := tgt.Signature("festivals", "name"), ref.Signature("festivals", "name"); got != want {
		t.Errorf("Expected target signature %q, got %q", want, got)
	}
	mods := report.Columns["festivals"].Modified
	if len(mods) != 1 || mods[0].Column != "name" {
		t.Fatalf("Expected name under modified columns, got %+v", mods)
	}
	if mods[0].From != "`name` varchar(32) DEFAULT NULL" || mods[0].To != "`name` varchar(64) DEFAULT NULL" {
		t.Errorf("unexpected signatures %q --> %q", mods[0].From, mods[0].To)
	}
}

func TestReconcile_ComparesSignaturesAsExactText(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(createTable("bands",
		"`band_id` int NOT NULL",
		"`genre` varchar(32) DEFAULT 'rock'",
		"`name` varchar(32) DEFAULT NULL"))
	tgt := fakedb.New("prod")
	tgt.MustExec(createTable("bands",
		"`band_id` int NOT NULL",
		"`genre` varchar(32) DEFAULT 'jazz'",
		"`name` varchar(32) DEFAULT NULL"))

	report := mustReconcile(t, ref, tgt)

	mods := report.Columns["bands"].Modified
	if len(mods) != 1 || mods[0].Column != "genre" {
		t.Fatalf("Expected only genre to be modified, got %+v", mods)
	}
	assertStrings(t, "statements", report.Statements, []string{
		"ALTER TABLE `bands` MODIFY COLUMN `genre` varchar(32) DEFAULT 'rock'",
	})
}

func TestReconcile_AddsColumnWithReferenceSignature(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(createTable("bands",
		"`band_id` int NOT NULL AUTO_INCREMENT",
		"`name` varchar(32) DEFAULT NULL",
		"`country` varchar(32) DEFAULT NULL",
		"PRIMARY KEY (`band_id`)"))
	tgt := fakedb.New("prod")
	tgt.MustExec(createTable("bands",
		"`band_id` int NOT NULL AUTO_INCREMENT",
		"`name` varchar(32) DEFAULT NULL",
		"PRIMARY KEY (`band_id`)"))

	report := mustReconcile(t, ref, tgt)

	if got := tgt.Signature("bands", "country"); got != "`country` varchar(32) DEFAULT NULL" {
		t.Errorf("unexpected country signature %q", got)
	}
	assertStrings(t, "added columns", report.Columns["bands"].Added, []string{"country"})
}

func TestReconcile_CreatesMissingTablesParentsFirst(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(festivalsTable, bandsTable, schedulesTable)
	tgt := fakedb.New("prod")

	report := mustReconcile(t, ref, tgt)

	assertStrings(t, "target tables", tgt.Tables(), []string{"bands", "festivals", "schedules"})
	assertStrings(t, "created tables", report.CreatedTables, []string{"bands", "festivals", "schedules"})
	for _, table := range []string{"bands", "festivals", "schedules"} {
		assertStrings(t, table+" columns", tgt.Columns(table), ref.Columns(table))
	}
	if first, last := report.Statements[0], report.Statements[len(report.Statements)-1]; first != "SET FOREIGN_KEY_CHECKS = 0" || last != "SET FOREIGN_KEY_CHECKS = 1" {
		t.Errorf("Expected creation wrapped in foreign key checks toggle, got %v", report.Statements)
	}
}

func TestReconcile_ConvergesAndIsIdempotent(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(
		festivalsTable,
		createTable("bands",
			"`band_id` int NOT NULL AUTO_INCREMENT",
			"`name` varchar(32) DEFAULT NULL",
			"`genre` varchar(32) DEFAULT NULL",
			"`country` varchar(32) DEFAULT NULL",
			"PRIMARY KEY (`band_id`)"),
		schedulesTable,
		createTable("new_table",
			"`some_id` int NOT NULL AUTO_INCREMENT",
			"`some_name` varchar(32) DEFAULT NULL",
			"PRIMARY KEY (`some_id`)"),
	)
	tgt := fakedb.New("prod")
	tgt.MustExec(
		createTable("festivals",
			"`festival_id` int NOT NULL AUTO_INCREMENT",
			"`name` varchar(16) DEFAULT NULL",
			"`place` varchar(32) DEFAULT NULL",
			"`date` date DEFAULT NULL",
			"PRIMARY KEY (`festival_id`)"),
		createTable("bands",
			"`band_id` int NOT NULL AUTO_INCREMENT",
			"`name` varchar(32) DEFAULT NULL",
			"`genre` varchar(32) DEFAULT NULL",
			"`city` varchar(32) DEFAULT NULL",
			"PRIMARY KEY (`band_id`)"),
		schedulesTable,
		managersTable,
	)

	first := mustReconcile(t, ref, tgt)
	if first.Outcome != engine.OutcomeApplied {
		t.Fatalf("Expected first run to apply changes, got %s", first.Outcome)
	}

	assertStrings(t, "target tables", tgt.Tables(), ref.Tables())
	for _, table := range ref.Tables() {
		want := map[string]bool{}
		for _, c := range ref.Columns(table) {
			want[c] = true
		}
		got := tgt.Columns(table)
		if len(got) != len(want) {
			t.Fatalf("%s: columns %v, want %v", table, got, ref.Columns(table))
		}
		for _, c := range got {
			if !want[c] {
				t.Errorf("%s: unexpected column %s", table, c)
			}
			if tgt.Signature(table, c) != ref.Signature(table, c) {
				t.Errorf("%s.%s: signature %q, want %q", table, c, tgt.Signature(table, c), ref.Signature(table, c))
			}
		}
	}

	tgt.ResetStatements()
	second := mustReconcile(t, ref, tgt)
	if second.Outcome != engine.OutcomeInSync {
		t.Errorf("Expected second run to be in sync, got %s", second.Outcome)
	}
	if stmts := tgt.Statements(); len(stmts) != 0 {
		t.Errorf("Expected no DDL on the second run, got %v", stmts)
	}
}

func TestReconcile_RetriesDropAfterDependentIsGone(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(bandsTable)
	tgt := fakedb.New("prod")
	tgt.MustExec(
		bandsTable,
		createTable("agents", "`agent_id` int NOT NULL", "PRIMARY KEY (`agent_id`)"),
		createTable("bookings",
			"`booking_id` int NOT NULL",
			"`agent_id` int NOT NULL",
			"CONSTRAINT `bookings_ibfk_1` FOREIGN KEY (`agent_id`) REFERENCES `agents` (`agent_id`)"),
	)

	report := mustReconcile(t, ref, tgt)

	assertStrings(t, "target tables", tgt.Tables(), []string{"bands"})
	if len(report.Skipped) != 0 {
		t.Errorf("Expected nothing skipped, got %+v", report.Skipped)
	}
	if len(report.DroppedTables) != 2 || report.DroppedTables[0].Table != "bookings" || report.DroppedTables[1].Table != "agents" {
		t.Errorf("Expected bookings then agents dropped, got %+v", report.DroppedTables)
	}
}

func TestReconcile_SkipsTableStillReferenced(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(festivalsTable, bandsTable, schedulesTable)
	tgt := fakedb.New("prod")
	tgt.MustExec(festivalsTable, createTable("bands",
		"`band_id` int NOT NULL AUTO_INCREMENT",
		"`name` varchar(32) DEFAULT NULL",
		"`genre` varchar(32) DEFAULT NULL",
		"PRIMARY KEY (`band_id`)"), schedulesTable)
	// sponsors is gone from the reference, but festival_sponsors is kept and
	// still points at it in the target.
	festivalSponsors := createTable("festival_sponsors",
		"`festival_id` int NOT NULL",
		"`sponsor_id` int NOT NULL",
		"CONSTRAINT `fs_1` FOREIGN KEY (`sponsor_id`) REFERENCES `sponsors` (`sponsor_id`)")
	tgt.MustExec(createTable("sponsors", "`sponsor_id` int NOT NULL", "PRIMARY KEY (`sponsor_id`)"), festivalSponsors)
	ref.MustExecUnchecked(festivalSponsors)

	report, err := reconcile(t, ref, tgt, false)
	if err != nil {
		t.Fatalf("a blocked drop must not abort the run: %v", err)
	}

	if len(report.Skipped) != 1 || report.Skipped[0].Table != "sponsors" {
		t.Fatalf("Expected sponsors under skipped, got %+v", report.Skipped)
	}
	if !strings.Contains(report.Skipped[0].Reason, "referenced by a foreign key") {
		t.Errorf("Expected the server reason in the report, got %q", report.Skipped[0].Reason)
	}
	if report.Outcome != engine.OutcomeNeedsAttention {
		t.Errorf("Expected outcome %s, got %s", engine.OutcomeNeedsAttention, report.Outcome)
	}

	var out bytes.Buffer
	report.Fprint(&out)
	if !strings.Contains(out.String(), "Needs attention : sponsors") {
		t.Errorf("text report does not mention sponsors:\n%s", out.String())
	}
}

func TestReconcile_AbortKeepsEarlierChanges(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(festivalsTable, bandsTable)
	tgt := fakedb.New("prod")
	tgt.MustExec(festivalsTable, createTable("bands",
		"`band_id` int NOT NULL AUTO_INCREMENT",
		"`name` varchar(32) DEFAULT NULL",
		"`genre` varchar(32) DEFAULT NULL",
		"`city` varchar(32) DEFAULT NULL",
		"PRIMARY KEY (`band_id`)"), managersTable)
	tgt.FailOn("ALTER TABLE `bands` DROP COLUMN `city`", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})

	report, err := reconcile(t, ref, tgt, false)

	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != 1205 {
		t.Fatalf("Expected the driver error to propagate, got %v", err)
	}
	if report.Outcome != engine.OutcomeAborted || report.Error == "" {
		t.Errorf("Expected aborted outcome with error, got %s %q", report.Outcome, report.Error)
	}
	// Table drops run before column changes and stay applied.
	assertStrings(t, "target tables", tgt.Tables(), []string{"bands", "festivals"})
	assertStrings(t, "bands columns", tgt.Columns("bands"), []string{"band_id", "name", "genre", "city"})
}

func TestReconcile_DryRunLeavesTargetUntouched(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(festivalsTable, bandsTable, schedulesTable)
	tgt := fakedb.New("prod")
	tgt.MustExec(festivalsTable, managersTable)
	tgt.ResetStatements()

	report, err := reconcile(t, ref, tgt, true)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if stmts := tgt.Statements(); len(stmts) != 0 {
		t.Errorf("dry run executed %v", stmts)
	}
	assertStrings(t, "target tables", tgt.Tables(), []string{"festivals", "managers"})
	assertStrings(t, "created tables", report.CreatedTables, []string{"bands", "schedules"})
	if len(report.DroppedTables) != 1 || report.DroppedTables[0].Table != "managers" {
		t.Errorf("Expected managers planned for drop, got %+v", report.DroppedTables)
	}
	if !report.DryRun || len(report.Statements) == 0 {
		t.Errorf("Expected planned statements in a dry-run report, got %v", report.Statements)
	}
}

// referencedParentFixture returns a reference that kept child but not parent,
// and a target holding both with child still pointing at parent.
func referencedParentFixture() (ref, tgt *fakedb.Server) {
	child := createTable("child",
		"`child_id` int NOT NULL",
		"`parent_id` int NOT NULL",
		"PRIMARY KEY (`child_id`)",
		"CONSTRAINT `child_ibfk_1` FOREIGN KEY (`parent_id`) REFERENCES `parent` (`parent_id`)")
	ref = fakedb.New("test")
	ref.MustExecUnchecked(child)
	tgt = fakedb.New("prod")
	tgt.MustExec(createTable("parent", "`parent_id` int NOT NULL", "PRIMARY KEY (`parent_id`)"), child)
	return ref, tgt
}

func TestReconcile_DryRunPredictsBlockedDrop(t *testing.T) {
	ref, tgt := referencedParentFixture()

	planned, err := reconcile(t, ref, tgt, true)
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if len(planned.DroppedTables) != 0 {
		t.Errorf("parent is still referenced and cannot be planned for drop, got %+v", planned.DroppedTables)
	}
	if len(planned.Skipped) != 1 || planned.Skipped[0].Table != "parent" {
		t.Fatalf("Expected parent under skipped, got %+v", planned.Skipped)
	}
	if !strings.Contains(planned.Skipped[0].Reason, "referenced by a foreign key") {
		t.Errorf("unexpected reason %q", planned.Skipped[0].Reason)
	}
	if len(planned.Statements) != 0 {
		t.Errorf("Expected no planned statements, got %v", planned.Statements)
	}

	applied, err := reconcile(t, ref, tgt, false)
	if err != nil {
		t.Fatalf("real run failed: %v", err)
	}
	if planned.Outcome != engine.OutcomeNeedsAttention || applied.Outcome != planned.Outcome {
		t.Errorf("dry run outcome %s, real run outcome %s, both should be %s",
			planned.Outcome, applied.Outcome, engine.OutcomeNeedsAttention)
	}
	if len(applied.Skipped) != len(planned.Skipped) || len(applied.DroppedTables) != len(planned.DroppedTables) {
		t.Errorf("dry run %+v / %+v differs from real run %+v / %+v",
			planned.DroppedTables, planned.Skipped, applied.DroppedTables, applied.Skipped)
	}
}

func TestReconcile_DryRunPlansDropsChildrenFirst(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(bandsTable)
	tgt := fakedb.New("prod")
	tgt.MustExec(
		bandsTable,
		createTable("agents", "`agent_id` int NOT NULL", "PRIMARY KEY (`agent_id`)"),
		createTable("bookings",
			"`booking_id` int NOT NULL",
			"`agent_id` int NOT NULL",
			"CONSTRAINT `bookings_ibfk_1` FOREIGN KEY (`agent_id`) REFERENCES `agents` (`agent_id`)"),
	)

	report, err := reconcile(t, ref, tgt, true)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.Outcome != engine.OutcomeApplied || len(report.Skipped) != 0 {
		t.Errorf("Expected every drop planned, got %s %+v", report.Outcome, report.Skipped)
	}
	assertStrings(t, "planned statements", report.Statements, []string{
		"DROP TABLE `bookings`",
		"DROP TABLE `agents`",
	})
	assertStrings(t, "target tables", tgt.Tables(), []string{"agents", "bands", "bookings"})
}

func TestReconcile_SkipsColumnsOfVanishedTable(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(createTable("bands",
		"`band_id` int NOT NULL AUTO_INCREMENT",
		"`name` varchar(32) DEFAULT NULL",
		"`genre` varchar(32) DEFAULT NULL",
		"`country` varchar(32) DEFAULT NULL",
		"PRIMARY KEY (`band_id`)"))
	tgt := fakedb.New("prod")
	tgt.MustExec(bandsTable, managersTable,
		createTable("agents", "`agent_id` int NOT NULL", "PRIMARY KEY (`agent_id`)"))

	r := &engine.Reconciler{
		Reference: openManager(t, ref, "reference"),
		Target:    openManager(t, tgt, "target"),
	}
	// bands is dropped by another client between the first and second table drop.
	r.Progress = func(done, total int) {
		if done == 1 {
			tgt.MustExec("DROP TABLE `bands`")
		}
	}
	report, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("a vanished table must not abort the run: %v", err)
	}

	var column *engine.Skipped
	for i, s := range report.Skipped {
		if s.Table == "bands" && s.Column == "country" {
			column = &report.Skipped[i]
		}
	}
	if column == nil {
		t.Fatalf("Expected bands.country under skipped, got %+v", report.Skipped)
	}
	if !strings.Contains(column.Reason, engine.ErrTableNotCached.Error()) {
		t.Errorf("unexpected reason %q", column.Reason)
	}
	if report.Outcome != engine.OutcomeNeedsAttention {
		t.Errorf("Expected outcome %s, got %s", engine.OutcomeNeedsAttention, report.Outcome)
	}
	if report.Columns["bands"] != nil {
		t.Errorf("no column change can be applied to bands, got %+v", report.Columns["bands"])
	}
}

func TestReport_JSONListsAreNeverNull(t *testing.T) {
	ref := fakedb.New("test")
	ref.MustExec(festivalsTable)
	tgt := fakedb.New("prod")
	tgt.MustExec(festivalsTable)

	report := mustReconcile(t, ref, tgt)
	if report.Outcome != engine.OutcomeInSync {
		t.Fatalf("Expected outcome %s, got %s", engine.OutcomeInSync, report.Outcome)
	}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for key, want := range map[string]string{
		"created_tables": "[]",
		"dropped_tables": "[]",
		"skipped":        "[]",
		"statements":     "[]",
		"columns":        "{}",
	} {
		if got := string(fields[key]); got != want {
			t.Errorf("%s: got %s, want %s", key, got, want)
		}
	}
}
