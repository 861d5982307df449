package demo

import (
	"context"
	"fmt"
	"log"

	"schema-sync/internal/dbconn"
)

// SeedResult is the outcome of filling one fixture table.
type SeedResult struct {
	TableName string
	Target    int
	Actual    int
	Status    string
	ErrorMsg  string
}

// Seed creates the given tables on m, in order, and fills each with generated
// rows: n rows per table without foreign keys, one row per parent key
// combination otherwise. onProgress is called after every inserted row.
func Seed(ctx context.Context, m *dbconn.Manager, g *Generator, tables []Table, n int, onProgress func()) ([]SeedResult, error) {
	d := m.Dialect()
	keyPool := make(map[string][]any)
	var results []SeedResult

	for _, t := range tables {
		if err := m.Exec(ctx, t.DDL); err != nil {
			return results, fmt.Errorf("failed to create table %s: %w", t.Name, err)
		}

		colNames := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			colNames[i] = c.Name
		}
		query := d.InsertQuery(t.Name, colNames)
		target := RowCount(t, n, keyPool)

		inserted, failed := 0, 0
		var keys []any
		for i := 0; i < target; i++ {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			values, ok := g.Row(t, i, keyPool)
			if !ok {
				// a parent table has no rows to reference
				break
			}
			if err := m.Exec(ctx, query, values...); err != nil {
				failed++
				if failed <= 3 {
					log.Printf("[DEBUG] Table %s row %d: %v", t.Name, i+1, err)
				}
				continue
			}
			inserted++
			for j, c := range t.Columns {
				if c.IsPK {
					keys = append(keys, values[j])
				}
			}
			if onProgress != nil {
				onProgress()
			}
		}
		if len(keys) > 0 {
			keyPool[t.Name] = keys
		}

		res := SeedResult{TableName: t.Name, Target: target, Status: "OK"}
		actual, err := m.Inspector().RowCount(ctx, t.Name)
		if err != nil {
			res.Status = fmt.Sprintf("VERIFY_FAIL: %v", err)
		} else {
			res.Actual = actual
		}
		if res.Actual < target && err == nil {
			res.Status = "MISSING DATA"
			if inserted == 0 {
				res.ErrorMsg = "Failed to insert any rows. Check logs for details."
			} else {
				res.ErrorMsg = fmt.Sprintf("Only inserted %d out of %d.", inserted, target)
			}
		}
		results = append(results, res)
	}
	return results, nil
}
