package migrate

import (
	"context"
	"fmt"
	"time"

	"dbmigrate/internal/catalog"
	"dbmigrate/internal/config"
	"dbmigrate/internal/metrics"
	"dbmigrate/internal/storage"
)

// TableState is one table's position in the migration state machine:
// PENDING → METADATA_RESOLVED → EXTRACTING → LOADED | FAILED.
// SKIPPED marks tables never attempted because an earlier failure aborted
// the run.
type TableState string

const (
	StatePending          TableState = "PENDING"
	StateMetadataResolved TableState = "METADATA_RESOLVED"
	StateExtracting       TableState = "EXTRACTING"
	StateLoaded           TableState = "LOADED"
	StateFailed           TableState = "FAILED"
	StateSkipped          TableState = "SKIPPED"
)

// TableResult is one table's final outcome.
type TableResult struct {
	Def      TableDefinition
	State    TableState
	Stats    TableStats
	Duration time.Duration
	Err      error
}

// Orchestrator resolves the migration plan and drives it table by table.
// Metadata lookups run concurrently; the load loop is strictly sequential so
// parents always land before dependents.
type Orchestrator struct {
	Client catalog.Client
	Repo   storage.Repository
	Logger Logger

	// RunID tags log lines; one invocation gets one ID.
	RunID string

	// PollInterval and PollMaxWait configure query-status polling.
	// Zero PollMaxWait means unbounded.
	PollInterval time.Duration
	PollMaxWait  time.Duration

	// PageSize caps rows per result page; 0 means the service default.
	PageSize int

	// OnFailure is config.FailureAbort or config.FailureSkip.
	OnFailure string

	// newPipeline is a test seam; nil uses the real TablePipeline.
	newPipeline func() tableRunner
}

type tableRunner interface {
	Run(ctx context.Context, def TableDefinition) (TableStats, error)
}

func (o *Orchestrator) logger() Logger {
	if o.Logger == nil {
		return nopLogger{}
	}
	return o.Logger
}

func (o *Orchestrator) pipeline() tableRunner {
	if o.newPipeline != nil {
		return o.newPipeline()
	}
	return &TablePipeline{
		Executor: &catalog.Executor{
			Client:   o.Client,
			Interval: o.PollInterval,
			MaxWait:  o.PollMaxWait,
			Logger:   o.Logger,
		},
		Pager:             &catalog.Pager{Client: o.Client, PageSize: o.PageSize},
		Repo:              o.Repo,
		Logger:            o.Logger,
		SkipFailedBatches: o.OnFailure == config.FailureSkip,
	}
}

// Run executes the migration for the configured tables.
//
// Run-level failures (cyclic dependencies, metadata resolution) return a nil
// summary and an error before any extraction starts. Per-table failures are
// captured in the summary instead: under the skip policy the loop continues,
// under abort the remaining tables are marked SKIPPED. Either way the caller
// gets a full accounting; Summary.OK decides the exit code.
func (o *Orchestrator) Run(ctx context.Context, tables []config.Table) (*Summary, error) {
	logf := o.logger().Printf
	start := time.Now()

	ordered, err := OrderTables(tables)
	if err != nil {
		return nil, err
	}

	resolveStart := time.Now()
	defs, err := ResolveTables(ctx, o.Client, ordered)
	if err != nil {
		return nil, err
	}
	logf("stage=resolve run=%s tables=%d duration=%s", o.RunID, len(defs), since(resolveStart))
	metrics.ObserveHistogram("migrate_phase_duration_seconds", time.Since(resolveStart).Seconds(),
		metrics.Labels{"phase": "resolve", "status": "ok"})

	results := make([]TableResult, len(defs))
	for i, def := range defs {
		results[i] = TableResult{Def: def, State: StateMetadataResolved}
	}

	aborted := false
	for i := range results {
		if aborted {
			results[i].State = StateSkipped
			logf("stage=table run=%s table=%s state=%s", o.RunID, results[i].Def.SourceName, StateSkipped)
			continue
		}

		res := &results[i]
		res.State = StateExtracting
		logf("stage=table run=%s table=%s state=%s", o.RunID, res.Def.SourceName, StateExtracting)

		tableStart := time.Now()
		stats, err := o.pipeline().Run(ctx, res.Def)
		res.Stats = stats
		res.Duration = since(tableStart)

		switch {
		case err != nil:
			res.State = StateFailed
			res.Err = err
		case stats.FailedBatches > 0:
			// The table finished its pages but is incomplete. Never let an
			// incomplete table read as success.
			res.State = StateFailed
			res.Err = fmt.Errorf("table %s: %d of %d batches failed", res.Def.TargetName, stats.FailedBatches, stats.Batches)
		default:
			res.State = StateLoaded
		}

		status := "ok"
		if res.State == StateFailed {
			status = "failed"
		}
		logf("stage=table run=%s table=%s state=%s rows=%d pages=%d duration=%s err=%v",
			o.RunID, res.Def.SourceName, res.State, stats.Rows, stats.Pages, res.Duration, res.Err)
		metrics.IncCounter("migrate_tables_total", 1, metrics.Labels{"table": res.Def.SourceName, "status": status})
		metrics.ObserveHistogram("migrate_phase_duration_seconds", res.Duration.Seconds(),
			metrics.Labels{"phase": "table", "status": status})

		if res.State == StateFailed && o.OnFailure != config.FailureSkip {
			aborted = true
		}
	}

	s := &Summary{RunID: o.RunID, Results: results, Duration: since(start)}
	logf("stage=done run=%s ok=%t loaded=%d failed=%d skipped=%d rows=%d duration=%s",
		o.RunID, s.OK(), s.Loaded(), len(s.FailedTables()), s.Skipped(), s.TotalRows(), s.Duration)
	return s, nil
}

func since(t time.Time) time.Duration { return time.Since(t).Truncate(time.Millisecond) }
