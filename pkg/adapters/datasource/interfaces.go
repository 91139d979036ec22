package datasource

import "context"

// DataSource provides schema introspection and bounded row fetches for one
// identifiable origin of tables (a database connection or catalog).
// The graph builders depend only on these operations and never reach into a
// specific driver's internals.
// Each implementation owns its connection and must be closed when done.
type DataSource interface {
	// ListTables returns the names of all user tables, sorted.
	ListTables(ctx context.Context) ([]string, error)

	// DescribeTable returns metadata for a single table. The column list
	// preserves ordinal order.
	DescribeTable(ctx context.Context, table string) (*TableMetadata, error)

	// FetchRows returns up to limit rows from a table. Implementations must
	// never fetch unboundedly; a limit <= 0 is rejected.
	FetchRows(ctx context.Context, table string, limit int) ([]Row, error)

	// Close releases the underlying connection.
	Close() error
}

// Row is one fetched row, keyed by column name. Values keep whatever Go type
// the driver produced; the builders only ever render them to strings.
type Row map[string]any
