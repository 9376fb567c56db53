package catalog

import "context"

// Pager fetches result pages for a completed query execution.
//
// The underlying paging protocol embeds the projected column names as the
// first record of the FIRST page only. FetchPage strips exactly that one row,
// and only when no continuation token was supplied: stripping on later pages
// would drop real data, not stripping on the first would load the header as a
// row. The asymmetry is the protocol's, not a convenience.
//
// Pages form a lazy, finite, non-restartable sequence: each is fetched on
// demand and nothing is cached. Re-fetching with the same token is the
// service's idempotence guarantee, not the pager's.
type Pager struct {
	Client Client

	// PageSize caps rows per fetch; 0 means the service default.
	PageSize int
}

// FetchPage retrieves one page of results. token must be empty for the first
// fetch of an execution and the previous page's NextToken afterwards.
func (p *Pager) FetchPage(ctx context.Context, executionID, token string) (Page, error) {
	page, err := p.Client.ResultsPage(ctx, executionID, token, p.PageSize)
	if err != nil {
		return Page{}, &PagingError{ExecutionID: executionID, Err: err}
	}

	if token == "" && len(page.Rows) > 0 {
		page.Rows = page.Rows[1:]
	}
	return page, nil
}

// HasMore reports whether another page follows pg.
func HasMore(pg Page) bool { return pg.NextToken != "" }
