package catalog

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
)

// athenaAPI is the slice of the Athena SDK client this package calls.
// Depending on the interface instead of *athena.Client keeps the wire
// conversions unit-testable without HTTP.
type athenaAPI interface {
	StartQueryExecution(ctx context.Context, in *athena.StartQueryExecutionInput, opts ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, in *athena.GetQueryExecutionInput, opts ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, in *athena.GetQueryResultsInput, opts ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
	GetTableMetadata(ctx context.Context, in *athena.GetTableMetadataInput, opts ...func(*athena.Options)) (*athena.GetTableMetadataOutput, error)
}

// AthenaOptions locate the source tables and the query result sink.
type AthenaOptions struct {
	// Catalog is the data catalog name; empty means "AwsDataCatalog".
	Catalog string
	// Database is the catalog database all queries run against. Required.
	Database string
	// Workgroup is optional; empty uses the account default.
	Workgroup string
	// OutputLocation is the s3:// URI for query results. May be empty only
	// when the workgroup enforces a location.
	OutputLocation string
}

// AthenaClient implements Client on AWS Athena.
type AthenaClient struct {
	api  athenaAPI
	opts AthenaOptions
}

// NewAthenaClient wraps an Athena SDK client (or a fake in tests).
func NewAthenaClient(api athenaAPI, opts AthenaOptions) (*AthenaClient, error) {
	if opts.Database == "" {
		return nil, fmt.Errorf("athena: database is required")
	}
	if opts.Catalog == "" {
		opts.Catalog = "AwsDataCatalog"
	}
	return &AthenaClient{api: api, opts: opts}, nil
}

// SubmitQuery implements Client.
func (c *AthenaClient) SubmitQuery(ctx context.Context, query string) (string, error) {
	in := &athena.StartQueryExecutionInput{
		QueryString: aws.String(query),
		QueryExecutionContext: &types.QueryExecutionContext{
			Catalog:  aws.String(c.opts.Catalog),
			Database: aws.String(c.opts.Database),
		},
	}
	if c.opts.Workgroup != "" {
		in.WorkGroup = aws.String(c.opts.Workgroup)
	}
	if c.opts.OutputLocation != "" {
		in.ResultConfiguration = &types.ResultConfiguration{
			OutputLocation: aws.String(c.opts.OutputLocation),
		}
	}

	out, err := c.api.StartQueryExecution(ctx, in)
	if err != nil {
		return "", err
	}
	if out.QueryExecutionId == nil || *out.QueryExecutionId == "" {
		return "", fmt.Errorf("athena: submission returned no execution id")
	}
	return *out.QueryExecutionId, nil
}

// QueryStatus implements Client.
func (c *AthenaClient) QueryStatus(ctx context.Context, executionID string) (QueryStatus, error) {
	out, err := c.api.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(executionID),
	})
	if err != nil {
		return QueryStatus{}, err
	}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return QueryStatus{}, fmt.Errorf("athena: empty status for execution %s", executionID)
	}

	st := out.QueryExecution.Status
	qs := QueryStatus{State: mapState(st.State)}
	if st.StateChangeReason != nil {
		qs.Reason = *st.StateChangeReason
	}
	// Cancellation has no native slot in the pipeline's state model; it ends
	// the query without results, so it reads as a failure here.
	if st.State == types.QueryExecutionStateCancelled && qs.Reason == "" {
		qs.Reason = "query was cancelled"
	}
	return qs, nil
}

func mapState(s types.QueryExecutionState) QueryState {
	switch s {
	case types.QueryExecutionStateQueued:
		return StateSubmitted
	case types.QueryExecutionStateRunning:
		return StateRunning
	case types.QueryExecutionStateSucceeded:
		return StateSucceeded
	case types.QueryExecutionStateFailed, types.QueryExecutionStateCancelled:
		return StateFailed
	default:
		return StateRunning
	}
}

// ResultsPage implements Client.
func (c *AthenaClient) ResultsPage(ctx context.Context, executionID, token string, maxRows int) (Page, error) {
	in := &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(executionID),
	}
	if token != "" {
		in.NextToken = aws.String(token)
	}
	if maxRows > 0 {
		in.MaxResults = aws.Int32(int32(maxRows))
	}

	out, err := c.api.GetQueryResults(ctx, in)
	if err != nil {
		return Page{}, err
	}

	var page Page
	if out.NextToken != nil {
		page.NextToken = *out.NextToken
	}
	if out.ResultSet == nil {
		return page, nil
	}

	page.Rows = make([][]*string, 0, len(out.ResultSet.Rows))
	for _, row := range out.ResultSet.Rows {
		cells := make([]*string, len(row.Data))
		for i, d := range row.Data {
			cells[i] = d.VarCharValue
		}
		page.Rows = append(page.Rows, cells)
	}
	return page, nil
}

// TableColumns implements Client. Partition keys are projected after regular
// columns, matching how the service orders them in SELECT * output.
func (c *AthenaClient) TableColumns(ctx context.Context, table string) ([]Column, error) {
	out, err := c.api.GetTableMetadata(ctx, &athena.GetTableMetadataInput{
		CatalogName:  aws.String(c.opts.Catalog),
		DatabaseName: aws.String(c.opts.Database),
		TableName:    aws.String(table),
	})
	if err != nil {
		return nil, err
	}
	if out.TableMetadata == nil {
		return nil, fmt.Errorf("athena: no metadata for table %s", table)
	}

	md := out.TableMetadata
	cols := make([]Column, 0, len(md.Columns)+len(md.PartitionKeys))
	for _, c := range md.Columns {
		cols = append(cols, columnFrom(c))
	}
	for _, c := range md.PartitionKeys {
		cols = append(cols, columnFrom(c))
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("athena: table %s has no columns", table)
	}
	return cols, nil
}

func columnFrom(c types.Column) Column {
	col := Column{}
	if c.Name != nil {
		col.Name = *c.Name
	}
	if c.Type != nil {
		col.Type = *c.Type
	}
	return col
}

var _ Client = (*AthenaClient)(nil)
