package schema

import (
	"log"
	"sort"
)

// ---------------------------------------------------------------------
// Dependency Ordering (Topological / Greedy)
// ---------------------------------------------------------------------

// SortByDependencies orders tables so that every table comes after the tables
// it references. References to tables outside the given set count as satisfied.
// Circular dependencies are broken with a scoring heuristic, so the result
// always contains every input table exactly once.
func SortByDependencies(tables []string, deps map[string][]string) []string {
	names := append([]string(nil), tables...)
	sort.Strings(names)

	inSet := make(map[string]bool, len(names))
	for _, t := range names {
		inSet[t] = true
	}
	pending := func(processed map[string]bool, t string) []string {
		var out []string
		for _, dep := range deps[t] {
			if inSet[dep] && !processed[dep] && dep != t {
				out = append(out, dep)
			}
		}
		return out
	}

	var sorted []string
	processed := make(map[string]bool)

	// Keep looping until all tables are processed
	for len(sorted) < len(names) {
		added := false

		// Pass 1: Add tables whose dependencies are fully satisfied
		for _, t := range names {
			if processed[t] {
				continue
			}
			if len(pending(processed, t)) == 0 {
				sorted = append(sorted, t)
				processed[t] = true
				added = true
			}
		}
		if added {
			continue
		}

		// Pass 2: No table added, so we have a cycle. Break it using heuristic score.
		var best string
		bestScore := 0
		for _, t := range names {
			if processed[t] {
				continue
			}

			// Penalty: unprocessed dependencies (prefer fewer).
			// Bonus: direct participation in a two-way cycle.
			unmet := pending(processed, t)
			score := -len(unmet) * 100
			for _, dep := range unmet {
				if contains(deps[dep], t) {
					score += 500
					break
				}
			}

			// Tie-breaker: first name in sorted order (deterministic)
			if best == "" || score > bestScore {
				best, bestScore = t, score
			}
		}

		sorted = append(sorted, best)
		processed[best] = true
		log.Printf("[Sort] Breaking circular dependency: %s (Score: %d)", best, bestScore)
	}

	return sorted
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
