package sampler

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/videxdb/statscore/pkg/sql/stats/dbconn"
)

// fakeQuerier simulates a table with values 0..N-1, where the sampled column
// equals the PK (so sample size is easy to reason about). Composite-PK
// anchor probes get one "0" cell per PK column.
type fakeQuerier struct {
	pkCols    []string
	rowCount  int
	failAfter int // if > 0, QueryDataframe fails starting from this call index
	calls     int
}

func (f *fakeQuerier) PrimaryKeyColumns(ctx context.Context, db, table string) ([]string, error) {
	return f.pkCols, nil
}

func (f *fakeQuerier) TableMeta(ctx context.Context, db, table string) (*dbconn.TableMeta, error) {
	return &dbconn.TableMeta{Rows: int64(f.rowCount)}, nil
}

func (f *fakeQuerier) QueryDataframe(ctx context.Context, sql string) (*dbconn.DataFrame, error) {
	f.calls++
	if f.failAfter > 0 && f.calls >= f.failAfter {
		return nil, fmt.Errorf("injected failure")
	}

	// Numeric-PK probe / anchor probes: "... WHERE pk >= N ORDER BY pk LIMIT 1"
	if strings.HasSuffix(sql, "LIMIT 1") {
		// crude parse of the >= bound
		idx := strings.Index(sql, ">=")
		var bound int
		fmt.Sscanf(sql[idx+2:], "%d", &bound)
		if bound >= f.rowCount {
			return &dbconn.DataFrame{Columns: []string{"pk"}}, nil
		}
		return &dbconn.DataFrame{
			Columns: []string{"pk"},
			Rows:    [][]interface{}{{fmt.Sprint(bound)}},
		}, nil
	}

	// Composite-PK anchor probe: "... ORDER BY a, b LIMIT 1 OFFSET K"
	if strings.Contains(sql, "LIMIT 1 OFFSET") {
		row := make([]interface{}, len(f.pkCols))
		for i := range row {
			row[i] = "0"
		}
		return &dbconn.DataFrame{Columns: f.pkCols, Rows: [][]interface{}{row}}, nil
	}

	// Block fetch: "... WHERE pk >= N AND col IS NOT NULL ORDER BY pk LIMIT M"
	idxGE := strings.Index(sql, ">=")
	var start int
	fmt.Sscanf(sql[idxGE+2:], "%d", &start)
	idxLimit := strings.LastIndex(sql, "LIMIT")
	var limit int
	fmt.Sscanf(sql[idxLimit+len("LIMIT"):], "%d", &limit)

	var rows [][]interface{}
	for v := start; v < f.rowCount && len(rows) < limit; v++ {
		rows = append(rows, []interface{}{fmt.Sprint(v)})
	}
	return &dbconn.DataFrame{Columns: []string{"col"}, Rows: rows}, nil
}

func TestNumericPKSampleStaysWithinTarget(t *testing.T) {
	q := &fakeQuerier{pkCols: []string{"pk"}, rowCount: 5000}
	s := Sample(context.Background(), q, Params{DB: "d", Table: "t", Column: "col", RowsTarget: 1000})
	require.Nil(t, s.Err)
	require.Equal(t, "numeric_pk", s.Path)
	require.LessOrEqual(t, len(s.Values), 1000)
	require.Greater(t, len(s.Values), 0)
}

func TestSamplerCancellationReturnsPartialSample(t *testing.T) {
	q := &fakeQuerier{pkCols: []string{"pk"}, rowCount: 50000, failAfter: 4}
	s := Sample(context.Background(), q, Params{DB: "d", Table: "t", Column: "col", RowsTarget: 5000})
	require.NotNil(t, s)
	require.Greater(t, len(s.Values), 0, "partial sample should still contain earlier blocks")
}

func TestFallbackSampleWhenNoPrimaryKey(t *testing.T) {
	q := &fakeQuerier{pkCols: nil, rowCount: 1000}
	s := Sample(context.Background(), q, Params{DB: "d", Table: "t", Column: "col", RowsTarget: 200})
	require.Equal(t, "fallback", s.Path)
	require.Greater(t, len(s.Values), 0)
}

func TestCompositePKSample(t *testing.T) {
	q := &fakeQuerier{pkCols: []string{"a", "b"}, rowCount: 2000}
	s := Sample(context.Background(), q, Params{DB: "d", Table: "t", Column: "col", RowsTarget: 500})
	require.Equal(t, "composite_pk", s.Path)
}
