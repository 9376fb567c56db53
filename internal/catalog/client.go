// Package catalog talks to the asynchronous catalog query service: queries
// are submitted, polled to a terminal state, and their results fetched page
// by page with continuation tokens.
//
// The Client interface is the seam between the pipeline and the concrete
// service; the Athena implementation lives in athena.go, tests use fakes.
package catalog

import "context"

// QueryState is the lifecycle state of a submitted query.
type QueryState string

const (
	StateSubmitted QueryState = "SUBMITTED"
	StateRunning   QueryState = "RUNNING"
	StateSucceeded QueryState = "SUCCEEDED"
	StateFailed    QueryState = "FAILED"
)

// Terminal reports whether the state is final.
func (s QueryState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// QueryStatus is one status observation for a query execution.
type QueryStatus struct {
	State QueryState
	// Reason carries the service-reported failure reason when State is
	// FAILED; empty otherwise.
	Reason string
}

// Page is one page of query results as returned by the service, before any
// header normalization. Cell values are nullable strings; the service has no
// richer type representation on this surface.
type Page struct {
	Rows [][]*string
	// NextToken is the continuation token for the following page; empty on
	// the final page.
	NextToken string
}

// Column is one column of catalog table metadata.
type Column struct {
	Name string
	Type string
}

// Client is the catalog service surface the pipeline consumes.
//
// The database context and result output location are fixed at client
// construction; one migration run works within one catalog database.
//
// Repeated ResultsPage calls with the same token must return the same page
// (the service contract the pager relies on; the client adds no caching).
type Client interface {
	// SubmitQuery starts an asynchronous query and returns its execution ID.
	SubmitQuery(ctx context.Context, query string) (string, error)

	// QueryStatus reports the current execution state.
	QueryStatus(ctx context.Context, executionID string) (QueryStatus, error)

	// ResultsPage fetches one page of results. An empty token means the
	// first page. maxRows caps the page size; 0 means the service default.
	ResultsPage(ctx context.Context, executionID, token string, maxRows int) (Page, error)

	// TableColumns resolves the ordered column metadata for a source table.
	TableColumns(ctx context.Context, table string) ([]Column, error)
}
