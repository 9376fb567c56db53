package migrate

import (
	"context"
	"errors"
	"fmt"

	"dbmigrate/internal/catalog"
	"dbmigrate/internal/metrics"
	"dbmigrate/internal/storage"
)

// TablePipeline moves one table end to end: submit the extraction query,
// await completion, then stream result pages into the batch loader strictly
// in the order the service returns them. Later pages never load before
// earlier ones; operators rely on export order for diagnostics even though
// the service guarantees no cross-row ordering of its own.
type TablePipeline struct {
	Executor *catalog.Executor
	Pager    *catalog.Pager
	Repo     storage.Repository
	Logger   Logger

	// SkipFailedBatches reproduces the log-and-continue policy: a batch the
	// database rejects is recorded and the remaining pages still load. When
	// false (the default), the first failed batch fails the table.
	SkipFailedBatches bool
}

// TableStats accumulates one table run's progress.
type TableStats struct {
	// Rows the database reported as inserted.
	Rows int64
	// Pages fetched, including empty ones.
	Pages int
	// Batches attempted (non-empty pages).
	Batches int
	// FailedBatches rejected by the database. Non-zero means the table is
	// incomplete even if err is nil under SkipFailedBatches.
	FailedBatches int
}

func (p *TablePipeline) logger() Logger {
	if p.Logger == nil {
		return nopLogger{}
	}
	return p.Logger
}

// Run migrates one table. The returned stats are valid even on error and
// reflect what was loaded before the failure.
func (p *TablePipeline) Run(ctx context.Context, def TableDefinition) (TableStats, error) {
	var stats TableStats
	logf := p.logger().Printf

	executionID, err := p.Executor.Submit(ctx, def.SourceName, def.Query())
	if err != nil {
		return stats, err
	}
	if err := p.Executor.AwaitCompletion(ctx, executionID); err != nil {
		return stats, err
	}

	token := ""
	for {
		page, err := p.Pager.FetchPage(ctx, executionID, token)
		if err != nil {
			return stats, err
		}
		stats.Pages++
		logf("stage=page table=%s execution=%s page=%d rows=%d more=%t",
			def.SourceName, executionID, stats.Pages, len(page.Rows), catalog.HasMore(page))

		if len(page.Rows) > 0 {
			rows, err := convertRows(def, page.Rows)
			if err != nil {
				return stats, &catalog.PagingError{ExecutionID: executionID, Err: err}
			}

			stats.Batches++
			affected, err := p.Repo.LoadBatch(ctx, def.TargetName, def.Columns, rows)
			if err != nil {
				stats.FailedBatches++
				var le *storage.LoadError
				if p.SkipFailedBatches && errors.As(err, &le) {
					logf("stage=batch table=%s rows=%d status=failed err=%v", def.TargetName, len(rows), err)
					metrics.IncCounter("migrate_batches_total", 1, metrics.Labels{"table": def.TargetName})
				} else {
					return stats, err
				}
			} else {
				stats.Rows += affected
				logf("stage=batch table=%s rows=%d affected=%d", def.TargetName, len(rows), affected)
				metrics.IncCounter("migrate_batches_total", 1, metrics.Labels{"table": def.TargetName})
				metrics.IncCounter("migrate_rows_total", float64(affected), metrics.Labels{"table": def.TargetName})
			}
		}

		if !catalog.HasMore(page) {
			return stats, nil
		}
		token = page.NextToken
	}
}

// convertRows turns the service's nullable-string cells into driver values
// and enforces the width invariant: every row must match the resolved column
// list exactly.
func convertRows(def TableDefinition, in [][]*string) ([][]any, error) {
	rows := make([][]any, len(in))
	for i, src := range in {
		if len(src) != len(def.Columns) {
			return nil, errWidth(def, i, len(src))
		}
		row := make([]any, len(src))
		for j, cell := range src {
			if cell != nil {
				row[j] = *cell
			}
		}
		rows[i] = row
	}
	return rows, nil
}

func errWidth(def TableDefinition, row, got int) error {
	return fmt.Errorf("row %d of %s has %d cells, want %d", row, def.SourceName, got, len(def.Columns))
}
