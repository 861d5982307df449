package engine

import (
	"fmt"
	"io"
	"sort"
	"time"

	"schema-sync/internal/schema"
)

// Outcome classifies a reconciliation run.
type Outcome string

const (
	OutcomeInSync         Outcome = "in-sync"         // nothing to do
	OutcomeApplied        Outcome = "applied"         // every difference was applied
	OutcomeNeedsAttention Outcome = "needs-attention" // some actions were skipped
	OutcomeAborted        Outcome = "aborted"         // the run stopped on an error
)

// Report lists every action taken during a run and every action that needs a developer.
// Reconcile fills every list, empty or not, so JSON consumers always see arrays.
type Report struct {
	RunID      string    `json:"run_id"`
	Reference  string    `json:"reference"`
	Target     string    `json:"target"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	CreatedTables []string                  `json:"created_tables"`
	DroppedTables []DroppedTable            `json:"dropped_tables"`
	Skipped       []Skipped                 `json:"skipped"`
	Columns       map[string]*ColumnChanges `json:"columns"`
	Statements    []string                  `json:"statements"`

	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

type DroppedTable struct {
	Table   string `json:"table"`
	HadRows bool   `json:"had_rows"`
}

// Skipped is an action that could not be completed automatically.
type Skipped struct {
	Table  string `json:"table"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

// ColumnChanges are the column actions applied to one table.
type ColumnChanges struct {
	Added    []string         `json:"added,omitempty"`
	Dropped  []string         `json:"dropped,omitempty"`
	Modified []ModifiedColumn `json:"modified,omitempty"`
}

type ModifiedColumn struct {
	Column string                 `json:"column"`
	From   schema.ColumnSignature `json:"from"`
	To     schema.ColumnSignature `json:"to"`
}

func (r *Report) table(name string) *ColumnChanges {
	if r.Columns == nil {
		r.Columns = make(map[string]*ColumnChanges)
	}
	c, ok := r.Columns[name]
	if !ok {
		c = &ColumnChanges{}
		r.Columns[name] = c
	}
	return c
}

func (r *Report) addedColumn(table, column string) {
	c := r.table(table)
	c.Added = append(c.Added, column)
}

func (r *Report) droppedColumn(table, column string) {
	c := r.table(table)
	c.Dropped = append(c.Dropped, column)
}

func (r *Report) modifiedColumn(table, column string, from, to schema.ColumnSignature) {
	c := r.table(table)
	c.Modified = append(c.Modified, ModifiedColumn{Column: column, From: from, To: to})
}

// Changed reports whether any action was applied.
func (r *Report) Changed() bool {
	return len(r.CreatedTables) > 0 || len(r.DroppedTables) > 0 || len(r.Columns) > 0
}

// finish stamps the outcome; err is the error that aborted the run, if any.
func (r *Report) finish(err error) {
	r.FinishedAt = time.Now()
	switch {
	case err != nil:
		r.Outcome = OutcomeAborted
		r.Error = err.Error()
	case len(r.Skipped) > 0:
		r.Outcome = OutcomeNeedsAttention
	case r.Changed():
		r.Outcome = OutcomeApplied
	default:
		r.Outcome = OutcomeInSync
	}
}

// Fprint writes the human-readable summary.
func (r *Report) Fprint(w io.Writer) {
	mode := ""
	if r.DryRun {
		mode = " [DRY-RUN]"
	}
	fmt.Fprintf(w, "\n📊 Reconciliation Report%s (run %s)\n", mode, r.RunID)
	fmt.Fprintf(w, "Reference: %s -> Target: %s\n", r.Reference, r.Target)

	for _, t := range r.CreatedTables {
		fmt.Fprintf(w, "[+] Created table   : %s\n", t)
	}
	for _, t := range r.DroppedTables {
		note := ""
		if t.HadRows {
			note = " (table contained rows)"
		}
		fmt.Fprintf(w, "[-] Dropped table   : %s%s\n", t.Table, note)
	}

	tables := make([]string, 0, len(r.Columns))
	for t := range r.Columns {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		c := r.Columns[t]
		fmt.Fprintf(w, "[~] Table %s:\n", t)
		for _, col := range c.Added {
			fmt.Fprintf(w, "    [+] Added column    : %s\n", col)
		}
		for _, col := range c.Dropped {
			fmt.Fprintf(w, "    [-] Dropped column  : %s\n", col)
		}
		for _, m := range c.Modified {
			fmt.Fprintf(w, "    [~] Modified column : %s\n", m.Column)
			fmt.Fprintf(w, "        %s --> %s\n", m.From, m.To)
		}
	}

	for _, s := range r.Skipped {
		target := s.Table
		if s.Column != "" {
			target += "." + s.Column
		}
		fmt.Fprintf(w, "[!] Needs attention : %s\n    └ %s\n", target, s.Reason)
	}

	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Statements: %d | Outcome: %s\n", len(r.Statements), r.Outcome)
	if r.Error != "" {
		fmt.Fprintf(w, "    └ Error: %s\n", r.Error)
	}
}
