package cmd

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/videxdb/statscore/pkg/sql/stats/histogram"
	"github.com/videxdb/statscore/pkg/sql/stats/ndv"
	"github.com/videxdb/statscore/pkg/sql/stats/profile"
)

var estimateFlags struct {
	input    string
	method   string
	numRows  int64
	buckets  int
	dataType string
}

var estimateCmd = &cobra.Command{
	Use:     "estimate",
	Short:   "estimate NDV and a histogram from a column of sampled values",
	GroupID: groupDev,
	Long: `estimate reads one sampled value per line (from a file or stdin)
and runs the NDV estimator suite and histogram builder directly, without
a database connection. Useful for trying estimator methods against a
captured sample.

Examples:
  videxstats estimate --input sample.txt --rows 1000000 --method GEE`,
	RunE: runEstimate,
}

func init() {
	f := estimateCmd.Flags()
	f.StringVar(&estimateFlags.input, "input", "-", "file of newline-separated sampled values, or - for stdin")
	f.StringVar(&estimateFlags.method, "method", "GEE", "NDV estimator method")
	f.Int64Var(&estimateFlags.numRows, "rows", 0, "total row count N of the source table (required)")
	f.IntVar(&estimateFlags.buckets, "buckets", 10, "equi-depth histogram bucket count")
	f.StringVar(&estimateFlags.dataType, "type", "string", "column SQL type, recorded as the histogram's data_type")
	_ = estimateCmd.MarkFlagRequired("rows")
}

type estimateOutput struct {
	SampleSize int                 `json:"sample_size"`
	NDV        float64             `json:"ndv"`
	Method     string              `json:"method"`
	Histogram  histogram.Histogram `json:"histogram"`
}

func runEstimate(cmd *cobra.Command, args []string) error {
	values, err := readValues(estimateFlags.input)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return errors.New("no values read from input")
	}

	method := ndv.Method(estimateFlags.method)
	f, _ := profile.Build(values)

	estimate, err := ndv.Estimate(method, len(values), estimateFlags.numRows, f)
	if err != nil {
		return errors.Wrapf(err, "estimating NDV with method %q", estimateFlags.method)
	}

	h := histogram.Build(values, histogram.Params{
		DataType:   histogram.ColumnDataType(estimateFlags.dataType),
		NumBuckets: estimateFlags.buckets,
		Method:     method,
		N:          estimateFlags.numRows,
	})

	out := estimateOutput{
		SampleSize: len(values),
		NDV:        estimate,
		Method:     estimateFlags.method,
		Histogram:  h,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func readValues(path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		fh, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %q", path)
		}
		defer fh.Close()
		r = fh
	}

	var values []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		values = append(values, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading input")
	}
	return values, nil
}
