package dbconn

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLQuerier is the reference Querier implementation, backed by
// database/sql and the go-sql-driver/mysql driver. It is intentionally
// thin: connection pooling, retries, and credential management are the
// responsibility of the caller-supplied *sql.DB.
type MySQLQuerier struct {
	db *sql.DB
}

// NewMySQLQuerier wraps an already-opened *sql.DB.
func NewMySQLQuerier(db *sql.DB) *MySQLQuerier {
	return &MySQLQuerier{db: db}
}

// QueryDataframe implements Querier.
func (q *MySQLQuerier) QueryDataframe(ctx context.Context, sqlText string) (*DataFrame, error) {
	rows, err := q.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, errors.Wrapf(err, "query_dataframe: %s", sqlText)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "reading result columns")
	}

	df := &DataFrame{Columns: cols}
	scanDest := make([]interface{}, len(cols))
	scanBuf := make([]sql.RawBytes, len(cols))
	for i := range scanBuf {
		scanDest[i] = &scanBuf[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return nil, errors.Wrap(err, "scanning row")
		}
		row := make([]interface{}, len(cols))
		for i, raw := range scanBuf {
			if raw == nil {
				row[i] = nil
			} else {
				// Copy; RawBytes aliases the driver's read buffer.
				v := make([]byte, len(raw))
				copy(v, raw)
				row[i] = string(v)
			}
		}
		df.Rows = append(df.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating result set")
	}
	return df, nil
}

// TableMeta implements Querier using information_schema.
func (q *MySQLQuerier) TableMeta(ctx context.Context, db, table string) (*TableMeta, error) {
	var rowsEstimate sql.NullInt64
	err := q.db.QueryRowContext(ctx,
		`SELECT TABLE_ROWS FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?`,
		db, table,
	).Scan(&rowsEstimate)
	if err != nil {
		return nil, errors.Wrapf(err, "table_meta(%s.%s): reading TABLE_ROWS", db, table)
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT COLUMN_NAME, DATA_TYPE FROM information_schema.COLUMNS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`,
		db, table,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "table_meta(%s.%s): reading COLUMNS", db, table)
	}
	defer rows.Close()

	meta := &TableMeta{Rows: rowsEstimate.Int64}
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType); err != nil {
			return nil, errors.Wrap(err, "scanning column metadata")
		}
		meta.Columns = append(meta.Columns, c)
	}
	return meta, rows.Err()
}

// PrimaryKeyColumns implements Querier using information_schema.
func (q *MySQLQuerier) PrimaryKeyColumns(ctx context.Context, db, table string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
		 ORDER BY ORDINAL_POSITION`,
		db, table,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "primary_key_columns(%s.%s)", db, table)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scanning primary key column")
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}
