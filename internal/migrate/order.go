package migrate

import (
	"fmt"
	"strings"

	"dbmigrate/internal/config"
)

// CyclicDependencyError reports that the configured depends_on edges admit no
// load order. Tables lists the members of the cycle (or cycles).
type CyclicDependencyError struct {
	Tables []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic table dependencies: %s", strings.Join(e.Tables, ", "))
}

// OrderTables returns the tables in a dependency-safe load order: every table
// named in a depends_on list comes before the tables that depend on it.
//
// The order is deterministic: among tables whose parents are all placed,
// configuration order wins. A config with no depends_on edges therefore comes
// back unchanged, which preserves the pre-ordered-list contract for operators
// who manage ordering by hand.
func OrderTables(tables []config.Table) ([]config.Table, error) {
	index := make(map[string]int, len(tables))
	for i, t := range tables {
		index[t.SourceName] = i
	}

	// In-degree per table, counting only edges to known tables; config
	// validation has already rejected unknown names.
	indeg := make([]int, len(tables))
	for i, t := range tables {
		for _, dep := range t.DependsOn {
			if _, ok := index[dep]; ok {
				indeg[i]++
			}
		}
	}

	placed := make([]bool, len(tables))
	out := make([]config.Table, 0, len(tables))
	for len(out) < len(tables) {
		next := -1
		for i := range tables {
			if !placed[i] && indeg[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			var cycle []string
			for i, t := range tables {
				if !placed[i] {
					cycle = append(cycle, t.SourceName)
				}
			}
			return nil, &CyclicDependencyError{Tables: cycle}
		}

		placed[next] = true
		out = append(out, tables[next])
		for i, t := range tables {
			if placed[i] {
				continue
			}
			for _, dep := range t.DependsOn {
				if dep == tables[next].SourceName {
					indeg[i]--
				}
			}
		}
	}
	return out, nil
}
