package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dbmigrate/internal/poll"
)

// fakeClient scripts submissions, status transitions, and result pages.
type fakeClient struct {
	submitID  string
	submitErr error

	// states are returned in order; the last one repeats.
	states    []QueryStatus
	statusIdx int
	statusErr error

	// pages maps continuation token ("" for the first fetch) to a page.
	pages    map[string]Page
	pagesErr error

	// fetches records the tokens ResultsPage was called with.
	fetches []string

	columns map[string][]Column
}

func (f *fakeClient) SubmitQuery(ctx context.Context, query string) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.submitID, nil
}

func (f *fakeClient) QueryStatus(ctx context.Context, id string) (QueryStatus, error) {
	if f.statusErr != nil {
		return QueryStatus{}, f.statusErr
	}
	st := f.states[f.statusIdx]
	if f.statusIdx < len(f.states)-1 {
		f.statusIdx++
	}
	return st, nil
}

func (f *fakeClient) ResultsPage(ctx context.Context, id, token string, maxRows int) (Page, error) {
	if f.pagesErr != nil {
		return Page{}, f.pagesErr
	}
	f.fetches = append(f.fetches, token)
	pg, ok := f.pages[token]
	if !ok {
		return Page{}, fmt.Errorf("no page for token %q", token)
	}
	return pg, nil
}

func (f *fakeClient) TableColumns(ctx context.Context, table string) ([]Column, error) {
	cols, ok := f.columns[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return cols, nil
}

func TestSubmitWrapsRejection(t *testing.T) {
	fc := &fakeClient{submitErr: errors.New("permission denied")}
	e := &Executor{Client: fc, Interval: time.Millisecond}

	_, err := e.Submit(context.Background(), "src_accounts", "SELECT id FROM src_accounts")

	var se *SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SubmissionError", err)
	}
	if se.Table != "src_accounts" {
		t.Fatalf("Table = %q", se.Table)
	}
}

func TestAwaitCompletionSucceeds(t *testing.T) {
	fc := &fakeClient{states: []QueryStatus{
		{State: StateSubmitted},
		{State: StateRunning},
		{State: StateSucceeded},
	}}
	e := &Executor{Client: fc, Interval: time.Millisecond}

	if err := e.AwaitCompletion(context.Background(), "q-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.statusIdx != 2 {
		t.Fatalf("polled through %d transitions, want 2", fc.statusIdx)
	}
}

func TestAwaitCompletionReportsFailureReason(t *testing.T) {
	fc := &fakeClient{states: []QueryStatus{
		{State: StateSubmitted},
		{State: StateRunning},
		{State: StateRunning},
		{State: StateFailed, Reason: "syntax error"},
	}}
	e := &Executor{Client: fc, Interval: time.Millisecond}

	err := e.AwaitCompletion(context.Background(), "q-1")

	var qe *QueryExecutionError
	if !errors.As(err, &qe) {
		t.Fatalf("error = %v, want *QueryExecutionError", err)
	}
	if qe.Reason != "syntax error" {
		t.Fatalf("Reason = %q, want %q", qe.Reason, "syntax error")
	}
	if qe.ExecutionID != "q-1" {
		t.Fatalf("ExecutionID = %q", qe.ExecutionID)
	}
}

func TestAwaitCompletionTimesOut(t *testing.T) {
	fc := &fakeClient{states: []QueryStatus{{State: StateRunning}}}
	e := &Executor{Client: fc, Interval: 50 * time.Millisecond, MaxWait: 5 * time.Millisecond}

	err := e.AwaitCompletion(context.Background(), "q-1")

	var te *poll.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *poll.TimeoutError", err)
	}
}

func TestAwaitCompletionPropagatesStatusError(t *testing.T) {
	boom := errors.New("throttled")
	fc := &fakeClient{statusErr: boom}
	e := &Executor{Client: fc, Interval: time.Millisecond}

	if err := e.AwaitCompletion(context.Background(), "q-1"); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}
