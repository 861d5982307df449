package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// UnresolvableDependencyError is returned by DropAll when the requeue budget is
// spent, which happens when the remaining tables reference each other in a cycle.
type UnresolvableDependencyError struct {
	Remaining []string
	Requeues  int
}

func (e *UnresolvableDependencyError) Error() string {
	return fmt.Sprintf("cannot drop tables [%s]: foreign key dependencies unresolved after %d requeues",
		strings.Join(e.Remaining, ", "), e.Requeues)
}

// Dropper removes a set of tables whose drop order is constrained by foreign keys.
type Dropper struct {
	synth *Synthesizer
	// MaxRequeues caps the number of requeued attempts; zero means n² for n tables.
	MaxRequeues int
}

func NewDropper(s *Synthesizer) *Dropper {
	return &Dropper{synth: s}
}

// DropAll drops every table in the given order. A drop rejected because another
// table still references it is moved to the back of the queue; any other error
// aborts immediately. Tables dropped before an abort stay dropped.
func (d *Dropper) DropAll(ctx context.Context, tables []string) error {
	queue := append([]string(nil), tables...)
	limit := d.MaxRequeues
	if limit <= 0 {
		limit = len(queue) * len(queue)
	}
	dialect := d.synth.target.Dialect()

	requeues := 0
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		table := queue[0]
		err := d.synth.DropTable(ctx, table)
		switch {
		case err == nil:
			queue = queue[1:]
			log.Printf("Dropped table %s", table)
		case dialect.IsDependencyError(err):
			if requeues >= limit {
				return &UnresolvableDependencyError{Remaining: queue, Requeues: requeues}
			}
			requeues++
			queue = append(queue[1:], table)
		default:
			return err
		}
	}
	return nil
}
