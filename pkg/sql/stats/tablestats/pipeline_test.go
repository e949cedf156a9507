package tablestats

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/videxdb/statscore/pkg/sql/stats/dbconn"
	"github.com/videxdb/statscore/pkg/util/config"
)

// fakeQuerier serves a single table "t" with one integer PK "id" and one
// string column "name" holding 200 rows cycling through 20 distinct names.
type fakeQuerier struct{}

func (f *fakeQuerier) PrimaryKeyColumns(ctx context.Context, db, table string) ([]string, error) {
	return []string{"id"}, nil
}

func (f *fakeQuerier) TableMeta(ctx context.Context, db, table string) (*dbconn.TableMeta, error) {
	return &dbconn.TableMeta{
		Rows: 200,
		Columns: []dbconn.Column{
			{Name: "id", DataType: "int"},
			{Name: "name", DataType: "varchar"},
		},
	}, nil
}

func (f *fakeQuerier) QueryDataframe(ctx context.Context, sql string) (*dbconn.DataFrame, error) {
	if strings.Contains(sql, "COUNT(*)") {
		return &dbconn.DataFrame{
			Columns: []string{"total", "nonnull"},
			Rows:    [][]interface{}{{"200", "200"}},
		}, nil
	}

	if strings.Contains(sql, "LIMIT 1") && !strings.Contains(sql, "name") {
		// PK bounds probe.
		if strings.Contains(sql, "DESC") {
			return &dbconn.DataFrame{Columns: []string{"id"}, Rows: [][]interface{}{{"199"}}}, nil
		}
		return &dbconn.DataFrame{Columns: []string{"id"}, Rows: [][]interface{}{{"0"}}}, nil
	}

	// Block fetch for either column, keyed off id >= N.
	idxGE := strings.Index(sql, ">=")
	start := 0
	if idxGE >= 0 {
		fmt.Sscanf(sql[idxGE+2:], "%d", &start)
	}
	idxLimit := strings.LastIndex(sql, "LIMIT")
	limit := 200
	if idxLimit >= 0 {
		fmt.Sscanf(sql[idxLimit+len("LIMIT"):], "%d", &limit)
	}

	column := "id"
	if strings.Contains(sql, "`name`") {
		column = "name"
	}

	var rows [][]interface{}
	for v := start; v < 200 && len(rows) < limit; v++ {
		if column == "id" {
			rows = append(rows, []interface{}{fmt.Sprint(v)})
		} else {
			rows = append(rows, []interface{}{fmt.Sprintf("name%d", v%20)})
		}
	}
	return &dbconn.DataFrame{Columns: []string{column}, Rows: rows}, nil
}

func TestAnalyzeTableProducesCompleteStats(t *testing.T) {
	q := &fakeQuerier{}
	opts := config.New(config.WithBucketLen(5), config.WithRowsTarget(100))

	ts, err := AnalyzeTable(context.Background(), q, "d", "t", opts)
	require.NoError(t, err)
	require.True(t, ts.IsSampleSuccess)
	require.Equal(t, int64(200), ts.NumOfRows)
	require.Contains(t, ts.NDVDict, "id")
	require.Contains(t, ts.NDVDict, "name")
	require.Contains(t, ts.HistogramDict, "name")
	require.NotEmpty(t, ts.MinPK)
	require.NotEmpty(t, ts.MaxPK)
	require.InDelta(t, 1.0, ts.NotNullRatioDict["name"], 1e-9)
}

func TestAnalyzeTableRejectsBadConfiguration(t *testing.T) {
	q := &fakeQuerier{}
	bad := config.New(config.WithBucketLen(-1))
	_, err := AnalyzeTable(context.Background(), q, "d", "t", bad)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestAnalyzeTableRejectsUnknownNDVMethod(t *testing.T) {
	q := &fakeQuerier{}
	bad := config.New(config.WithNDVMethod("not_a_real_method"))
	_, err := AnalyzeTable(context.Background(), q, "d", "t", bad)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConfiguration)
}
