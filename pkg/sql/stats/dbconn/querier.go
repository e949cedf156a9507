// Package dbconn defines the narrow database-handle interface the
// statistics engine consumes. Connection pooling, transaction management,
// and persistence of results are left to the caller; this package only
// describes the shape of the collaborator and ships one reference
// MySQL-backed implementation.
package dbconn

import "context"

// Column describes one column of a table as reported by the catalog.
type Column struct {
	Name     string
	DataType string
}

// TableMeta is the catalog-reported shape of a table.
type TableMeta struct {
	// Rows is the catalog's (possibly stale) row-count estimate.
	Rows    int64
	Columns []Column
}

// DataFrame is a row-major table with named columns, the shape a
// query_dataframe(sql) call returns. Values are nil for SQL NULL.
type DataFrame struct {
	Columns []string
	Rows    [][]interface{}
}

// Column returns the values of the named column across all rows, or nil if
// the column is not present.
func (df *DataFrame) Column(name string) []interface{} {
	idx := -1
	for i, c := range df.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	out := make([]interface{}, len(df.Rows))
	for i, row := range df.Rows {
		out[i] = row[idx]
	}
	return out
}

// Len reports the number of rows.
func (df *DataFrame) Len() int {
	if df == nil {
		return 0
	}
	return len(df.Rows)
}

// Querier is the minimal database handle the core requires. Every method may
// fail, and every failure is non-fatal to the caller: the Sampler treats a
// QueryError as "shrink and continue with what's collected".
type Querier interface {
	// QueryDataframe runs sql and returns the result set. The caller is
	// responsible for bounding the query (LIMIT, WHERE); this interface does
	// not impose a deadline itself beyond ctx's.
	QueryDataframe(ctx context.Context, sql string) (*DataFrame, error)

	// TableMeta returns catalog metadata for db.table.
	TableMeta(ctx context.Context, db, table string) (*TableMeta, error)

	// PrimaryKeyColumns returns the ordered PRIMARY KEY column names of
	// db.table, or an empty slice if the table has no primary key.
	PrimaryKeyColumns(ctx context.Context, db, table string) ([]string, error)
}
