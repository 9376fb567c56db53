// Package migrate orchestrates the catalog-to-relational migration: it
// resolves table definitions from catalog metadata, orders them so
// foreign-key parents load first, and drives one table pipeline at a time.
package migrate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"dbmigrate/internal/catalog"
	"dbmigrate/internal/config"
	"dbmigrate/internal/storage"
)

// Logger is the minimal logging interface used by this package.
// *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// TableDefinition is one table's resolved migration unit. Columns order fixes
// both the extraction query projection and the insert column list; the two
// must stay in lockstep, so the order is set once here and never touched
// again.
type TableDefinition struct {
	SourceName string
	TargetName string
	Columns    []string
}

// Query returns the extraction query for the definition.
func (d TableDefinition) Query() string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(d.Columns, ", "), d.SourceName)
}

// ResolveTables resolves column metadata for every configured table. The
// lookups are independent and side-effect-free, so they run concurrently;
// results keep the input order.
//
// Any failure is fatal for the run: extraction must not start against a
// partially resolved plan. Column names that are not usable as target
// identifiers fail here too, before any SQL exists to build.
func ResolveTables(ctx context.Context, client catalog.Client, tables []config.Table) ([]TableDefinition, error) {
	defs := make([]TableDefinition, len(tables))

	g, ctx := errgroup.WithContext(ctx)
	for i, t := range tables {
		g.Go(func() error {
			cols, err := client.TableColumns(ctx, t.SourceName)
			if err != nil {
				return fmt.Errorf("resolve metadata for %s: %w", t.SourceName, err)
			}

			names := make([]string, len(cols))
			for j, c := range cols {
				if !storage.ValidIdent(c.Name) {
					return fmt.Errorf("resolve metadata for %s: column %q is not a valid identifier", t.SourceName, c.Name)
				}
				names[j] = c.Name
			}

			defs[i] = TableDefinition{
				SourceName: t.SourceName,
				TargetName: t.TargetName,
				Columns:    names,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return defs, nil
}
