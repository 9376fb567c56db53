package catalog

import (
	"context"
	"time"

	"dbmigrate/internal/metrics"
	"dbmigrate/internal/poll"
)

// Logger is the minimal logging interface used by this package.
// *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Executor submits queries and polls them to a terminal state.
type Executor struct {
	Client Client

	// Interval between status probes. Defaults to 5s.
	Interval time.Duration

	// MaxWait bounds one query's polling; <= 0 means unbounded
	// (poll.TimeoutError is returned when the budget runs out).
	MaxWait time.Duration

	// Logger for submission and poll-tick lines; nil discards.
	Logger Logger
}

func (e *Executor) logger() Logger {
	if e.Logger == nil {
		return nopLogger{}
	}
	return e.Logger
}

func (e *Executor) interval() time.Duration {
	if e.Interval <= 0 {
		return 5 * time.Second
	}
	return e.Interval
}

// Submit starts the query and returns its execution ID.
// A service rejection (syntax, permissions) comes back as *SubmissionError.
func (e *Executor) Submit(ctx context.Context, table, query string) (string, error) {
	id, err := e.Client.SubmitQuery(ctx, query)
	if err != nil {
		return "", &SubmissionError{Table: table, Err: err}
	}
	e.logger().Printf("stage=submit table=%s execution=%s", table, id)
	return id, nil
}

// AwaitCompletion blocks until the execution reaches SUCCEEDED or FAILED,
// probing on the configured interval.
//
// Errors:
//   - *QueryExecutionError when the service reports FAILED, carrying the
//     service failure reason. Not retried here; the caller owns the policy.
//   - *poll.TimeoutError when MaxWait elapses first.
//   - The status call's error verbatim on a transport failure.
func (e *Executor) AwaitCompletion(ctx context.Context, executionID string) error {
	var last QueryStatus

	err := poll.Until(ctx, poll.Options{
		Interval: e.interval(),
		MaxWait:  e.MaxWait,
		What:     "query execution " + executionID,
		OnTick: func() {
			e.logger().Printf("stage=poll execution=%s state=%s", executionID, last.State)
			metrics.IncCounter("migrate_poll_ticks_total", 1, nil)
		},
	}, func(ctx context.Context) (bool, error) {
		st, err := e.Client.QueryStatus(ctx, executionID)
		if err != nil {
			return false, err
		}
		last = st
		return st.State.Terminal(), nil
	})
	if err != nil {
		return err
	}

	if last.State == StateFailed {
		return &QueryExecutionError{ExecutionID: executionID, Reason: last.Reason}
	}
	return nil
}
