// Package sampler draws a representative, bounded subset of one column's
// values from a table without a full table scan. It never issues
// SELECT * or an unbounded ORDER BY on the sampled column; every failure
// mode shrinks ambition and returns whatever rows were already collected
// rather than propagating an error.
package sampler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/videxdb/statscore/pkg/sql/stats/dbconn"
	"github.com/videxdb/statscore/pkg/util/log"
	"github.com/videxdb/statscore/pkg/util/metrics"
)

// Sample is an ordered list of up to R non-null values drawn from one
// column. Values are kept in their raw string encoding; the histogram
// builder also handles them as strings and records the column's declared
// data type only as a tag.
type Sample struct {
	Values []string

	// BlockSizes records the size of each block fetched, in fetch order.
	// Neither the 2PHASE adaptive controller nor TableStats reads it;
	// TableStats has no block_size_list field.
	BlockSizes []int

	// Path records which sampling strategy produced this sample, for
	// metrics and logs: "numeric_pk", "composite_pk", or "fallback".
	Path string

	// Err, if non-nil, is the (non-fatal) reason the sampler stopped early
	// — surfaced upstream as TableStats.sample_error_dict.
	Err error
}

// Params bundles a Sample call's inputs.
type Params struct {
	DB, Table, Column string
	RowsTarget        int
	Seed              int64
}

const (
	blockRowsApprox  = 128
	minNumBlocks     = 1
	maxNumBlocks     = 64
	maxOffsetCap     = 100000
	fallbackStride   = 1000
	numericMaxAtmpts = 50
	numericMaxEmpty  = 5
	stepMin          = 100
	stepMax          = 10000
)

// Sample draws up to rowsTarget non-null values for one column. ctx is
// checked for cancellation between blocks: a cancelled sampler returns
// the partial sample collected so far, never an error.
func Sample(ctx context.Context, q dbconn.Querier, p Params) *Sample {
	metrics.Register()

	rowsTarget := p.RowsTarget
	if rowsTarget < 1 {
		rowsTarget = 1
	}

	pkCols, err := q.PrimaryKeyColumns(ctx, p.DB, p.Table)
	if err != nil || len(pkCols) == 0 {
		if err != nil {
			log.Warningf(ctx, "primary_key_columns(%s.%s) failed, falling back: %v", p.DB, p.Table, err)
		}
		return fallbackSample(ctx, q, p, rowsTarget)
	}

	numBlocks := clamp(rowsTarget/blockRowsApprox, minNumBlocks, maxNumBlocks)
	rowsPerBlock := rowsTarget / numBlocks
	if rowsPerBlock < 1 {
		rowsPerBlock = 1
	}

	if len(pkCols) == 1 && isNumericPK(ctx, q, p.DB, p.Table, pkCols[0]) {
		return numericPKSample(ctx, q, p, pkCols[0], rowsTarget, numBlocks, rowsPerBlock)
	}
	return compositePKSample(ctx, q, p, pkCols, rowsTarget, numBlocks, rowsPerBlock)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// isNumericPK issues a single bounded probe: a query error (e.g. a type
// mismatch comparing a string PK against an integer literal) means the
// PK is not numeric. This is a heuristic and will misclassify
// all-negative numeric columns, a known, accepted limitation.
func isNumericPK(ctx context.Context, q dbconn.Querier, db, table, pkCol string) bool {
	sql := fmt.Sprintf("SELECT %s FROM %s.%s WHERE %s >= 0 ORDER BY %s LIMIT 1",
		pkCol, quoteIdent(db), quoteIdent(table), pkCol, pkCol)
	_, err := q.QueryDataframe(ctx, sql)
	return err == nil
}

func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// quoteLiteral escapes a string for inclusion inside a single-quoted SQL
// literal by doubling embedded single quotes.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func numericPKSample(
	ctx context.Context, q dbconn.Querier, p Params, pkCol string, rowsTarget, numBlocks, rowsPerBlock int,
) *Sample {
	s := &Sample{Path: "numeric_pk"}

	anchors := []int64{0, 1000, -1000, 10000, -10000}
	var anchor int64
	found := false
	for _, a := range anchors {
		sqlText := fmt.Sprintf("SELECT %s FROM %s.%s WHERE %s >= %d ORDER BY %s LIMIT 1",
			pkCol, quoteIdent(p.DB), quoteIdent(p.Table), pkCol, a, pkCol)
		df, err := q.QueryDataframe(ctx, sqlText)
		if err == nil && df.Len() > 0 {
			anchor = a
			found = true
			break
		}
	}
	if !found {
		s.Err = errors.New("numeric PK probe found no anchor row")
		return s
	}

	step := int64(1000)
	emptyStreak := 0
	attempts := 0

	for len(s.Values) < rowsTarget {
		if ctx.Err() != nil {
			s.Err = ctx.Err()
			return s
		}
		if attempts >= numericMaxAtmpts || emptyStreak >= numericMaxEmpty {
			break
		}
		attempts++

		start := time.Now()
		sqlText := fmt.Sprintf(
			"SELECT %s FROM %s.%s WHERE %s >= %d AND %s IS NOT NULL ORDER BY %s LIMIT %d",
			quoteIdent(p.Column), quoteIdent(p.DB), quoteIdent(p.Table), pkCol, anchor, quoteIdent(p.Column), pkCol, rowsPerBlock,
		)
		df, err := q.QueryDataframe(ctx, sqlText)
		metrics.SamplerQueryDuration.WithLabelValues(s.Path).Observe(time.Since(start).Seconds())

		if err != nil {
			log.Warningf(ctx, "sampler block query failed for %s.%s.%s: %v", p.DB, p.Table, p.Column, err)
			s.Err = err
			emptyStreak++
			continue
		}

		n := df.Len()
		metrics.SamplerBlocksFetched.WithLabelValues(s.Path).Inc()
		vals := stringColumn(df, p.Column)
		s.Values = append(s.Values, vals...)
		s.BlockSizes = append(s.BlockSizes, n)

		if n == 0 {
			emptyStreak++
		} else {
			emptyStreak = 0
		}

		if n < rowsPerBlock {
			// A block shorter than requested is the end-of-data signal;
			// a halve-the-step retry never fires because this stop
			// condition takes precedence (see DESIGN.md).
			break
		}

		step *= 2
		if step > stepMax {
			step = stepMax
		}
		anchor += step
	}

	if len(s.Values) > rowsTarget {
		s.Values = s.Values[:rowsTarget]
	}
	return s
}

func compositePKSample(
	ctx context.Context, q dbconn.Querier, p Params, pkCols []string, rowsTarget, numBlocks, rowsPerBlock int,
) *Sample {
	s := &Sample{Path: "composite_pk"}

	meta, err := q.TableMeta(ctx, p.DB, p.Table)
	estimatedRows := int64(0)
	if err == nil && meta != nil {
		estimatedRows = meta.Rows
	}
	stride := int64(1)
	if estimatedRows > 0 {
		stride = estimatedRows / int64(numBlocks+1)
		if stride < 1 {
			stride = 1
		}
	}

	pkColList := quoteIdentList(pkCols)

	for i := 1; i <= numBlocks; i++ {
		if ctx.Err() != nil {
			s.Err = ctx.Err()
			return s
		}
		if len(s.Values) >= rowsTarget {
			break
		}

		offset := int64(i-1) * stride
		if offset > maxOffsetCap {
			offset = maxOffsetCap
		}

		anchorSQL := fmt.Sprintf("SELECT %s FROM %s.%s ORDER BY %s LIMIT 1 OFFSET %d",
			pkColList, quoteIdent(p.DB), quoteIdent(p.Table), pkColList, offset)
		anchorDF, err := q.QueryDataframe(ctx, anchorSQL)
		if err != nil || anchorDF.Len() == 0 {
			if err != nil {
				s.Err = err
			}
			continue
		}

		tuple := make([]string, len(pkCols))
		for j := range pkCols {
			v := anchorDF.Rows[0][j]
			tuple[j] = encodeTupleLiteral(v)
		}
		tupleLiteral := "(" + strings.Join(tuple, ", ") + ")"

		start := time.Now()
		blockSQL := fmt.Sprintf(
			"SELECT %s FROM %s.%s WHERE (%s) >= %s AND %s IS NOT NULL ORDER BY %s LIMIT %d",
			quoteIdent(p.Column), quoteIdent(p.DB), quoteIdent(p.Table), pkColList, tupleLiteral,
			quoteIdent(p.Column), pkColList, rowsPerBlock,
		)
		df, err := q.QueryDataframe(ctx, blockSQL)
		metrics.SamplerQueryDuration.WithLabelValues(s.Path).Observe(time.Since(start).Seconds())
		if err != nil {
			log.Warningf(ctx, "sampler composite-PK block query failed: %v", err)
			s.Err = err
			continue
		}

		metrics.SamplerBlocksFetched.WithLabelValues(s.Path).Inc()
		vals := stringColumn(df, p.Column)
		s.Values = append(s.Values, vals...)
		s.BlockSizes = append(s.BlockSizes, df.Len())
	}

	if len(s.Values) > rowsTarget {
		s.Values = s.Values[:rowsTarget]
	}
	return s
}

func fallbackSample(ctx context.Context, q dbconn.Querier, p Params, rowsTarget int) *Sample {
	s := &Sample{Path: "fallback"}

	offset := 0
	for len(s.Values) < rowsTarget && offset <= maxOffsetCap {
		if ctx.Err() != nil {
			s.Err = ctx.Err()
			return s
		}

		start := time.Now()
		sqlText := fmt.Sprintf(
			"SELECT %s FROM %s.%s WHERE %s IS NOT NULL LIMIT %d OFFSET %d",
			quoteIdent(p.Column), quoteIdent(p.DB), quoteIdent(p.Table), quoteIdent(p.Column),
			blockRowsApprox, offset,
		)
		df, err := q.QueryDataframe(ctx, sqlText)
		metrics.SamplerQueryDuration.WithLabelValues(s.Path).Observe(time.Since(start).Seconds())
		if err != nil {
			log.Warningf(ctx, "sampler fallback query failed: %v", err)
			s.Err = err
			break
		}

		n := df.Len()
		metrics.SamplerBlocksFetched.WithLabelValues(s.Path).Inc()
		vals := stringColumn(df, p.Column)
		s.Values = append(s.Values, vals...)
		s.BlockSizes = append(s.BlockSizes, n)

		if n == 0 {
			break
		}
		offset += fallbackStride
	}

	if len(s.Values) > rowsTarget {
		s.Values = s.Values[:rowsTarget]
	}
	return s
}

func stringColumn(df *dbconn.DataFrame, column string) []string {
	raw := df.Column(column)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v == nil {
			continue
		}
		out = append(out, fmt.Sprint(v))
	}
	return out
}

func quoteIdentList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// encodeTupleLiteral renders a raw cell value (always a string once off the
// wire, per dbconn.MySQLQuerier) as a SQL literal for tuple comparison: a
// quoted string unless it parses as a plain integer, in which case it is
// emitted unquoted.
func encodeTupleLiteral(v interface{}) string {
	s := fmt.Sprint(v)
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return s
	}
	return quoteLiteral(s)
}
