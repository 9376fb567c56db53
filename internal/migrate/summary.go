package migrate

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary is the run outcome surface: per-table row counts and failures.
// A truncated or failed table is always named here; the run never silently
// truncates.
type Summary struct {
	RunID    string
	Results  []TableResult
	Duration time.Duration
}

// OK reports whether every table reached LOADED.
func (s *Summary) OK() bool {
	for _, r := range s.Results {
		if r.State != StateLoaded {
			return false
		}
	}
	return true
}

// Loaded counts tables that reached LOADED.
func (s *Summary) Loaded() int {
	n := 0
	for _, r := range s.Results {
		if r.State == StateLoaded {
			n++
		}
	}
	return n
}

// Skipped counts tables never attempted.
func (s *Summary) Skipped() int {
	n := 0
	for _, r := range s.Results {
		if r.State == StateSkipped {
			n++
		}
	}
	return n
}

// FailedTables lists the source names of tables that ended FAILED.
func (s *Summary) FailedTables() []string {
	var out []string
	for _, r := range s.Results {
		if r.State == StateFailed {
			out = append(out, r.Def.SourceName)
		}
	}
	return out
}

// TotalRows sums loaded rows across all tables.
func (s *Summary) TotalRows() int64 {
	var n int64
	for _, r := range s.Results {
		n += r.Stats.Rows
	}
	return n
}

// String renders the operator-facing run report.
func (s *Summary) String() string {
	p := message.NewPrinter(language.English)

	var b strings.Builder
	p.Fprintf(&b, "run %s: %d tables, %d rows, %s\n", s.RunID, len(s.Results), s.TotalRows(), s.Duration)
	for _, r := range s.Results {
		switch r.State {
		case StateLoaded:
			p.Fprintf(&b, "  %-10s %s -> %s  %d rows in %d batches (%s)\n",
				r.State, r.Def.SourceName, r.Def.TargetName, r.Stats.Rows, r.Stats.Batches, r.Duration)
		case StateFailed:
			p.Fprintf(&b, "  %-10s %s -> %s  %d rows loaded before failure: %v\n",
				r.State, r.Def.SourceName, r.Def.TargetName, r.Stats.Rows, r.Err)
		default:
			fmt.Fprintf(&b, "  %-10s %s\n", r.State, r.Def.SourceName)
		}
	}
	if failed := s.FailedTables(); len(failed) > 0 {
		fmt.Fprintf(&b, "failed tables: %s\n", strings.Join(failed, ", "))
	}
	return b.String()
}
