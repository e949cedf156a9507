// Package tablestats assembles the per-table statistics record and
// orchestrates the pipeline that produces it: Sampler → Profile →
// Adaptive Controller → NDV Estimator → Histogram Builder → this
// container.
package tablestats

import (
	"github.com/videxdb/statscore/pkg/sql/stats/histogram"
)

// PKValue is one primary-key column's value, formatted as a string.
type PKValue struct {
	ColumnName string `json:"column_name"`
	Value      string `json:"value"`
}

// HistogramStats is the serialised shape of one column's histogram.
type HistogramStats struct {
	DataType      histogram.DataType  `json:"data_type"`
	HistogramType string              `json:"histogram_type"`
	Buckets       []HistogramBucket   `json:"buckets"`
}

// HistogramBucket is one bucket in the serialised form: min_value,
// max_value, cum_freq, row_count (the bucket's estimated NDV despite the
// name, kept for field compatibility with the upstream schema), size.
type HistogramBucket struct {
	MinValue string  `json:"min_value"`
	MaxValue string  `json:"max_value"`
	CumFreq  float64 `json:"cum_freq"`
	RowCount int     `json:"row_count"`
	Size     int     `json:"size"`
}

// TableStats is the single serialisable artifact the pipeline hands to
// downstream planners.
type TableStats struct {
	DBName    string `json:"db_name"`
	TableName string `json:"table_name"`

	NumOfRows  int64 `json:"num_of_rows"`
	SampleRows int   `json:"sample_rows"`

	NDVDict       map[string]float64        `json:"ndv_dict"`
	HistogramDict map[string]HistogramStats `json:"histogram_dict"`

	NotNullRatioDict map[string]float64 `json:"not_null_ratio_dict"`

	MinPK []PKValue `json:"min_pk"`
	MaxPK []PKValue `json:"max_pk"`

	IsSampleSuccess   bool    `json:"is_sample_success"`
	UnsupportedReason *string `json:"unsupported_reason"`

	SampleErrorDict    map[string]string  `json:"sample_error_dict"`
	HistogramErrorDict map[string]float64 `json:"histogram_error_dict"`
}

// New returns an empty TableStats with all maps initialized, ready for
// column results to be merged in as the pipeline processes them;
// processing order must not affect the final record, which depends on
// every map being present before the first merge.
func New(dbName, tableName string, numOfRows int64) *TableStats {
	return &TableStats{
		DBName:             dbName,
		TableName:          tableName,
		NumOfRows:          numOfRows,
		NDVDict:            make(map[string]float64),
		HistogramDict:      make(map[string]HistogramStats),
		NotNullRatioDict:   make(map[string]float64),
		SampleErrorDict:    make(map[string]string),
		HistogramErrorDict: make(map[string]float64),
	}
}

func toHistogramStats(h histogram.Histogram) HistogramStats {
	buckets := make([]HistogramBucket, len(h.Buckets))
	for i, b := range h.Buckets {
		buckets[i] = HistogramBucket{
			MinValue: b.MinValue,
			MaxValue: b.MaxValue,
			CumFreq:  b.CumFreq,
			RowCount: b.NDV,
			Size:     b.Size,
		}
	}
	return HistogramStats{
		DataType:      h.DataType,
		HistogramType: h.Type,
		Buckets:       buckets,
	}
}

// MergeColumn records one column's pipeline outputs into the table-level
// maps. Not safe for concurrent use: it writes shared maps, so the
// errgroup-based pipeline in pipeline.go holds a mutex around each call.
func (ts *TableStats) MergeColumn(column string, result ColumnResult) {
	ts.NDVDict[column] = result.NDV
	if result.Histogram != nil {
		ts.HistogramDict[column] = toHistogramStats(*result.Histogram)
	}
	ts.NotNullRatioDict[column] = result.NotNullRatio
	if result.SampleErr != "" {
		ts.SampleErrorDict[column] = result.SampleErr
	}
	if result.HistogramErr != 0 {
		ts.HistogramErrorDict[column] = result.HistogramErr
	}
}

// ColumnResult is what one column's run through the pipeline produces,
// before being merged into the table-level TableStats.
type ColumnResult struct {
	NDV          float64
	Histogram    *histogram.Histogram
	NotNullRatio float64
	SampleErr    string
	HistogramErr float64
}

// MarkUnsupported records a non-fatal, table-level truncation or
// degradation reason, leaving `is_sample_success` true, the adaptive
// controller's cap-reached terminal state.
func (ts *TableStats) MarkUnsupported(reason string) {
	ts.IsSampleSuccess = true
	r := reason
	ts.UnsupportedReason = &r
}
