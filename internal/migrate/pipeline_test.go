package migrate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dbmigrate/internal/catalog"
	"dbmigrate/internal/storage"
)

// fakeCatalog scripts the query service: one execution whose status sequence
// and result pages are fixed up front.
type fakeCatalog struct {
	submitErr error
	states    []catalog.QueryState
	statusIdx int
	pages     map[string]catalog.Page
	columns   []catalog.Column
}

func (f *fakeCatalog) SubmitQuery(ctx context.Context, query string) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "exec-1", nil
}

func (f *fakeCatalog) QueryStatus(ctx context.Context, executionID string) (catalog.QueryStatus, error) {
	if len(f.states) == 0 {
		return catalog.QueryStatus{State: catalog.StateSucceeded}, nil
	}
	s := f.states[f.statusIdx]
	if f.statusIdx < len(f.states)-1 {
		f.statusIdx++
	}
	return catalog.QueryStatus{State: s}, nil
}

func (f *fakeCatalog) ResultsPage(ctx context.Context, executionID, token string, maxRows int) (catalog.Page, error) {
	pg, ok := f.pages[token]
	if !ok {
		return catalog.Page{}, fmt.Errorf("no page for token %q", token)
	}
	return pg, nil
}

func (f *fakeCatalog) TableColumns(ctx context.Context, table string) ([]catalog.Column, error) {
	return f.columns, nil
}

type loadCall struct {
	table   string
	columns []string
	rows    [][]any
}

type fakeRepo struct {
	calls   []loadCall
	failOn  map[int]error // 1-based call number -> error
	current int
}

func (f *fakeRepo) Close() {}

func (f *fakeRepo) LoadBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	f.current++
	f.calls = append(f.calls, loadCall{table: table, columns: columns, rows: rows})
	if err := f.failOn[f.current]; err != nil {
		return 0, &storage.LoadError{Table: table, Rows: len(rows), Err: err}
	}
	return int64(len(rows)), nil
}

func strRow(cells ...string) []*string {
	out := make([]*string, len(cells))
	for i := range cells {
		out[i] = &cells[i]
	}
	return out
}

func newPipelineUnderTest(fc *fakeCatalog, fr *fakeRepo, skip bool) *TablePipeline {
	return &TablePipeline{
		Executor:          &catalog.Executor{Client: fc, Interval: time.Millisecond},
		Pager:             &catalog.Pager{Client: fc},
		Repo:              fr,
		SkipFailedBatches: skip,
	}
}

func accountsDef() TableDefinition {
	return TableDefinition{SourceName: "src_accounts", TargetName: "accounts", Columns: []string{"id", "name"}}
}

func TestPipelineLoadsAllPages(t *testing.T) {
	fc := &fakeCatalog{
		states: []catalog.QueryState{catalog.StateSubmitted, catalog.StateRunning, catalog.StateSucceeded},
		pages: map[string]catalog.Page{
			"": {
				Rows:      [][]*string{strRow("id", "name"), strRow("1", "alice"), strRow("2", "bob")},
				NextToken: "t1",
			},
			"t1": {Rows: [][]*string{strRow("3", "carol")}},
		},
	}
	fr := &fakeRepo{}
	p := newPipelineUnderTest(fc, fr, false)

	stats, err := p.Run(context.Background(), accountsDef())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Rows != 3 || stats.Pages != 2 || stats.Batches != 2 || stats.FailedBatches != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	if len(fr.calls) != 2 {
		t.Fatalf("LoadBatch called %d times", len(fr.calls))
	}
	first := fr.calls[0]
	if first.table != "accounts" {
		t.Fatalf("table = %q", first.table)
	}
	// The header row must have been stripped before loading.
	if len(first.rows) != 2 || first.rows[0][0] != "1" || first.rows[0][1] != "alice" {
		t.Fatalf("first batch = %v", first.rows)
	}
	if len(fr.calls[1].rows) != 1 || fr.calls[1].rows[0][1] != "carol" {
		t.Fatalf("second batch = %v", fr.calls[1].rows)
	}
}

func TestPipelineEmptyPageWithTokenContinues(t *testing.T) {
	fc := &fakeCatalog{
		pages: map[string]catalog.Page{
			"":   {Rows: [][]*string{strRow("id", "name")}, NextToken: "t1"},
			"t1": {NextToken: "t2"},
			"t2": {Rows: [][]*string{strRow("1", "alice")}},
		},
	}
	fr := &fakeRepo{}
	p := newPipelineUnderTest(fc, fr, false)

	stats, err := p.Run(context.Background(), accountsDef())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Pages != 3 || stats.Batches != 1 || stats.Rows != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestPipelineNullCellsBecomeNil(t *testing.T) {
	name := "alice"
	fc := &fakeCatalog{
		pages: map[string]catalog.Page{
			"": {Rows: [][]*string{strRow("id", "name"), {&name, nil}}},
		},
	}
	fr := &fakeRepo{}
	p := newPipelineUnderTest(fc, fr, false)

	if _, err := p.Run(context.Background(), accountsDef()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := fr.calls[0].rows[0]; got[0] != "alice" || got[1] != nil {
		t.Fatalf("row = %v", got)
	}
}

func TestPipelineBatchFailureAborts(t *testing.T) {
	fc := &fakeCatalog{
		pages: map[string]catalog.Page{
			"":   {Rows: [][]*string{strRow("id", "name"), strRow("1", "alice")}, NextToken: "t1"},
			"t1": {Rows: [][]*string{strRow("2", "bob")}},
		},
	}
	fr := &fakeRepo{failOn: map[int]error{1: errors.New("constraint violation")}}
	p := newPipelineUnderTest(fc, fr, false)

	stats, err := p.Run(context.Background(), accountsDef())
	var le *storage.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *storage.LoadError", err)
	}
	if stats.FailedBatches != 1 || stats.Rows != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(fr.calls) != 1 {
		t.Fatalf("remaining pages must not load after an aborting failure, calls = %d", len(fr.calls))
	}
}

func TestPipelineBatchFailureSkipContinues(t *testing.T) {
	fc := &fakeCatalog{
		pages: map[string]catalog.Page{
			"":   {Rows: [][]*string{strRow("id", "name"), strRow("1", "alice")}, NextToken: "t1"},
			"t1": {Rows: [][]*string{strRow("2", "bob")}},
		},
	}
	fr := &fakeRepo{failOn: map[int]error{1: errors.New("constraint violation")}}
	p := newPipelineUnderTest(fc, fr, true)

	stats, err := p.Run(context.Background(), accountsDef())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Batches != 2 || stats.FailedBatches != 1 || stats.Rows != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(fr.calls) != 2 {
		t.Fatalf("skip policy must keep loading, calls = %d", len(fr.calls))
	}
}

func TestPipelineRowWidthMismatch(t *testing.T) {
	fc := &fakeCatalog{
		pages: map[string]catalog.Page{
			"": {Rows: [][]*string{strRow("id", "name"), strRow("1", "alice", "extra")}},
		},
	}
	fr := &fakeRepo{}
	p := newPipelineUnderTest(fc, fr, false)

	_, err := p.Run(context.Background(), accountsDef())
	var pe *catalog.PagingError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *catalog.PagingError", err)
	}
	if len(fr.calls) != 0 {
		t.Fatal("malformed page must not reach the database")
	}
}

func TestPipelineQueryFailureStopsBeforePaging(t *testing.T) {
	fc := &fakeCatalog{states: []catalog.QueryState{catalog.StateFailed}}
	fr := &fakeRepo{}
	p := newPipelineUnderTest(fc, fr, false)

	_, err := p.Run(context.Background(), accountsDef())
	var qe *catalog.QueryExecutionError
	if !errors.As(err, &qe) {
		t.Fatalf("err = %v, want *catalog.QueryExecutionError", err)
	}
	if len(fr.calls) != 0 {
		t.Fatal("failed query must not page or load")
	}
}
