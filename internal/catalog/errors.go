package catalog

import "fmt"

// SubmissionError reports that the service rejected a query at submission
// time (bad syntax, missing permissions). Fatal for that table.
type SubmissionError struct {
	Table string
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit query for %s: %v", e.Table, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// QueryExecutionError reports a query that reached the FAILED state. The
// service does not retry on our behalf and neither do we; the caller decides
// whether to abort the run or skip the table.
type QueryExecutionError struct {
	ExecutionID string
	Reason      string
}

func (e *QueryExecutionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("query execution %s failed", e.ExecutionID)
	}
	return fmt.Sprintf("query execution %s failed: %s", e.ExecutionID, e.Reason)
}

// PagingError reports a network or protocol failure while fetching result
// pages. The page sequence is not restartable, so this is fatal for the
// table's remaining pages.
type PagingError struct {
	ExecutionID string
	Err         error
}

func (e *PagingError) Error() string {
	return fmt.Sprintf("fetch results page for execution %s: %v", e.ExecutionID, e.Err)
}

func (e *PagingError) Unwrap() error { return e.Err }
