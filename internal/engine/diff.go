package engine

import (
	"sort"

	"schema-sync/internal/schema"
)

// Plan is the structural difference between a reference and a target snapshot.
// Every list is sorted.
type Plan struct {
	CreateTables []string
	DropTables   []string
	Tables       []TableDiff // tables present on both sides
}

// TableDiff is the column-level difference for one common table.
type TableDiff struct {
	Table         string
	AddColumns    []string
	DropColumns   []string
	SharedColumns []string
}

// Diff computes the set differences between two snapshots.
func Diff(ref, tgt schema.Snapshot) Plan {
	var p Plan
	for _, t := range ref.Names() {
		if tgt.Has(t) {
			r, g := ref.Tables[t].Columns, tgt.Tables[t].Columns
			p.Tables = append(p.Tables, TableDiff{
				Table:         t,
				AddColumns:    difference(r, g),
				DropColumns:   difference(g, r),
				SharedColumns: intersection(r, g),
			})
		} else {
			p.CreateTables = append(p.CreateTables, t)
		}
	}
	for _, t := range tgt.Names() {
		if !ref.Has(t) {
			p.DropTables = append(p.DropTables, t)
		}
	}
	return p
}

// difference returns the sorted members of a that are not in b.
func difference(a, b []string) []string {
	in := toSet(b)
	var out []string
	for _, v := range toSorted(a) {
		if !in[v] {
			out = append(out, v)
		}
	}
	return out
}

// intersection returns the sorted members present in both a and b.
func intersection(a, b []string) []string {
	in := toSet(b)
	var out []string
	for _, v := range toSorted(a) {
		if in[v] {
			out = append(out, v)
		}
	}
	return out
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, v := range list {
		set[v] = true
	}
	return set
}

func toSorted(list []string) []string {
	set := toSet(list)
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
