package histogram

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"

	"github.com/videxdb/statscore/pkg/sql/stats/ndv"
)

// TestBuildDataDriven exercises Build against golden bucket layouts.
func TestBuildDataDriven(t *testing.T) {
	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			if d.Cmd != "build" {
				t.Fatalf("unknown command %q", d.Cmd)
			}

			p := Params{DataType: TypeString, NumBuckets: 4, Method: ndv.MethodGEE, N: 1000}
			for _, arg := range d.CmdArgs {
				switch arg.Key {
				case "buckets":
					n, _ := strconv.Atoi(arg.Vals[0])
					p.NumBuckets = n
				case "rows":
					n, _ := strconv.ParseInt(arg.Vals[0], 10, 64)
					p.N = n
				case "type":
					p.DataType = DataType(arg.Vals[0])
				case "method":
					p.Method = ndv.Method(arg.Vals[0])
				}
			}

			var values []string
			for _, line := range strings.Split(strings.TrimSpace(d.Input), "\n") {
				if line != "" {
					values = append(values, line)
				}
			}

			h := Build(values, p)

			var buf strings.Builder
			fmt.Fprintf(&buf, "type: %s\n", h.Type)
			for i, b := range h.Buckets {
				fmt.Fprintf(&buf, "%d: [%s, %s] ndv=%d size=%d cum_freq=%.3f\n",
					i, b.MinValue, b.MaxValue, b.NDV, b.Size, b.CumFreq)
			}
			return buf.String()
		})
	})
}
