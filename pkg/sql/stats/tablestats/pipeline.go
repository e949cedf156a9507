package tablestats

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/videxdb/statscore/pkg/sql/stats/adaptive"
	"github.com/videxdb/statscore/pkg/sql/stats/dbconn"
	"github.com/videxdb/statscore/pkg/sql/stats/histogram"
	"github.com/videxdb/statscore/pkg/sql/stats/ndv"
	"github.com/videxdb/statscore/pkg/sql/stats/profile"
	"github.com/videxdb/statscore/pkg/sql/stats/sampler"
	"github.com/videxdb/statscore/pkg/util/config"
	"github.com/videxdb/statscore/pkg/util/log"
	"github.com/videxdb/statscore/pkg/util/metrics"
)

// AnalyzeTable runs the full sampling-through-histogram pipeline for
// every column of db.table and returns the assembled TableStats. It is
// an asynchronous job that can be cancelled between units of work and
// never lets one column's failure abort the whole table, driven by a
// plain errgroup over columns rather than a standalone job-resumer
// framework.
func AnalyzeTable(ctx context.Context, q dbconn.Querier, db, table string, opts config.Options) (*TableStats, error) {
	if err := config.Validate(opts); err != nil {
		return nil, errors.Mark(err, ErrConfiguration)
	}

	meta, err := q.TableMeta(ctx, db, table)
	if err != nil {
		log.Warningf(ctx, "table_meta(%s.%s) failed, proceeding with an unknown row count: %v", db, table, err)
		meta = &dbconn.TableMeta{}
	}

	ts := New(db, table, meta.Rows)

	pkCols, err := q.PrimaryKeyColumns(ctx, db, table)
	if err != nil {
		log.Warningf(ctx, "primary_key_columns(%s.%s) failed: %v", db, table, err)
	} else if len(pkCols) > 0 {
		minPK, maxPK := pkBounds(ctx, q, db, table, pkCols)
		ts.MinPK, ts.MaxPK = minPK, maxPK
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	sampleRowsMax := 0

	for _, col := range meta.Columns {
		col := col
		g.Go(func() error {
			start := time.Now()
			result, sampled := analyzeColumn(gctx, q, db, table, col, meta.Rows, opts)
			metrics.HistogramBuildDuration.Observe(time.Since(start).Seconds())

			mu.Lock()
			ts.MergeColumn(col.Name, result)
			if sampled > sampleRowsMax {
				sampleRowsMax = sampled
			}
			mu.Unlock()
			return nil
		})
	}
	// errgroup.Wait only returns an error if a Go func returns one; every
	// column goroutine above absorbs its own errors into ColumnResult and
	// returns nil, so Wait returns nil here. A cancelled ctx shows up per
	// column, as a partial sample and a sample_error_dict entry.
	if err := g.Wait(); err != nil {
		ts.IsSampleSuccess = false
		reason := err.Error()
		ts.UnsupportedReason = &reason
		return ts, nil
	}

	ts.SampleRows = sampleRowsMax
	ts.IsSampleSuccess = true
	return ts, nil
}

func analyzeColumn(ctx context.Context, q dbconn.Querier, db, table string, col dbconn.Column, numRows int64, opts config.Options) (ColumnResult, int) {
	method := ndv.Method(opts.NDVMethod)
	dataType := histogram.ColumnDataType(strings.ToLower(col.DataType))

	initial := sampler.Sample(ctx, q, sampler.Params{
		DB: db, Table: table, Column: col.Name, RowsTarget: opts.RowsTarget,
	})

	result := ColumnResult{}
	if initial.Err != nil {
		result.SampleErr = initial.Err.Error()
	}

	values := dedupeNulls(initial.Values)
	if len(values) < 2 {
		result.NDV = insufficientSampleNDV
		result.NotNullRatio = notNullRatio(ctx, q, db, table, col.Name)
		return result, len(values)
	}

	adaptiveParams := adaptive.Params{
		Lmax:           opts.Lmax,
		NumBuckets:     opts.BucketLen,
		DeltaReq:       opts.DeltaReq,
		MaxSampledRows: opts.MaxSampledRows,
		HistParams: histogram.Params{
			DataType:   dataType,
			NumBuckets: opts.BucketLen,
			Method:     method,
			N:          numRows,
		},
	}

	extend := func(ctx context.Context, need int) ([]string, error) {
		extra := sampler.Sample(ctx, q, sampler.Params{
			DB: db, Table: table, Column: col.Name, RowsTarget: need,
		})
		if extra.Err != nil {
			return extra.Values, extra.Err
		}
		return extra.Values, nil
	}

	adaRes := adaptive.Run(ctx, values, extend, adaptiveParams)
	values = adaRes.Values
	if adaRes.UnsupportedReason != "" && result.SampleErr == "" {
		result.SampleErr = adaRes.UnsupportedReason
	}

	f, _ := profile.Build(values)

	var ndvEstimate float64
	var estErr error
	switch method {
	case ndv.MethodAdaNDV:
		ndvEstimate, estErr = ndv.EstimateAdaNDV(ctx, opts.AdaNDVModelPath, len(values), numRows, f)
		if estErr != nil {
			log.Warningf(ctx, "adandv estimation for %s.%s.%s degraded to its GEE fallback: %v", db, table, col.Name, estErr)
		}
	case ndv.MethodPLM4NDV:
		ndvEstimate, estErr = ndv.EstimatePLM4NDV(ctx, opts.PLM4NDVModelPath, col.Name, col.DataType, numRows, f, nil)
		if estErr != nil {
			log.Warningf(ctx, "plm4ndv estimation for %s.%s.%s degraded to its 2d fallback: %v", db, table, col.Name, estErr)
		}
	default:
		ndvEstimate, estErr = ndv.Estimate(method, len(values), numRows, f)
		if estErr != nil {
			log.Warningf(ctx, "ndv estimation for %s.%s.%s failed (%v), falling back to scale", db, table, col.Name, estErr)
			ndvEstimate, _ = ndv.Estimate(ndv.MethodScale, len(values), numRows, f)
		}
	}
	result.NDV = ndvEstimate
	metrics.LastNDVEstimate.WithLabelValues(db+"."+table, col.Name, string(method)).Set(ndvEstimate)

	h := histogram.Build(values, histogram.Params{
		DataType:   dataType,
		NumBuckets: opts.BucketLen,
		Method:     method,
		N:          numRows,
	})
	result.Histogram = &h
	result.NotNullRatio = notNullRatio(ctx, q, db, table, col.Name)

	return result, len(values)
}

func dedupeNulls(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "0000-00-00 00:00:00" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// notNullRatio runs one aggregate query over the whole table per column to measure the
// fraction of non-null values; unlike the Sampler's per-block fetches this
// is a single round trip, so the per-column time budget is not at risk,
// but a query failure still degrades to "unknown" (1.0) rather than
// aborting the column.
func notNullRatio(ctx context.Context, q dbconn.Querier, db, table, column string) float64 {
	sql := "SELECT COUNT(*) AS total, COUNT(`" + strings.ReplaceAll(column, "`", "``") + "`) AS nonnull FROM `" +
		strings.ReplaceAll(db, "`", "``") + "`.`" + strings.ReplaceAll(table, "`", "``") + "`"
	df, err := q.QueryDataframe(ctx, sql)
	if err != nil || df.Len() == 0 {
		return 1.0
	}
	total := parseCount(df.Column("total"))
	nonnull := parseCount(df.Column("nonnull"))
	if total == 0 {
		return 1.0
	}
	return nonnull / total
}

func parseCount(vals []interface{}) float64 {
	if len(vals) == 0 || vals[0] == nil {
		return 0
	}
	var f float64
	switch v := vals[0].(type) {
	case string:
		for _, c := range v {
			if c < '0' || c > '9' {
				return 0
			}
		}
		for _, c := range v {
			f = f*10 + float64(c-'0')
		}
	}
	return f
}

func pkBounds(ctx context.Context, q dbconn.Querier, db, table string, pkCols []string) ([]PKValue, []PKValue) {
	quoted := make([]string, len(pkCols))
	for i, c := range pkCols {
		quoted[i] = "`" + strings.ReplaceAll(c, "`", "``") + "`"
	}
	cols := strings.Join(quoted, ", ")
	dbq := "`" + strings.ReplaceAll(db, "`", "``") + "`"
	tblq := "`" + strings.ReplaceAll(table, "`", "``") + "`"

	minDF, errMin := q.QueryDataframe(ctx, "SELECT "+cols+" FROM "+dbq+"."+tblq+" ORDER BY "+cols+" ASC LIMIT 1")
	maxDF, errMax := q.QueryDataframe(ctx, "SELECT "+cols+" FROM "+dbq+"."+tblq+" ORDER BY "+cols+" DESC LIMIT 1")

	var minVals, maxVals []PKValue
	if errMin == nil && minDF.Len() > 0 {
		minVals = rowToPKValues(pkCols, minDF.Rows[0])
	}
	if errMax == nil && maxDF.Len() > 0 {
		maxVals = rowToPKValues(pkCols, maxDF.Rows[0])
	}
	return minVals, maxVals
}

func rowToPKValues(cols []string, row []interface{}) []PKValue {
	out := make([]PKValue, len(cols))
	for i, c := range cols {
		v := ""
		if i < len(row) && row[i] != nil {
			v = toString(row[i])
		}
		out[i] = PKValue{ColumnName: c, Value: v}
	}
	return out
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
