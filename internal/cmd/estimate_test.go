package cmd

import (
	"bytes"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunEstimateProducesNDVAndHistogram(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sample.txt"
	var buf bytes.Buffer
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&buf, "v%03d\n", i%40)
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	estimateFlags.input = path
	estimateFlags.method = "GEE"
	estimateFlags.numRows = 5000
	estimateFlags.buckets = 5
	estimateFlags.dataType = "string"

	var out bytes.Buffer
	estimateCmd.SetOut(&out)
	require.NoError(t, runEstimate(estimateCmd, nil))
	require.Contains(t, out.String(), `"ndv"`)
	require.Contains(t, out.String(), `"buckets"`)
}

func TestReadValuesSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sample.txt"
	require.NoError(t, os.WriteFile(path, []byte("a\n\nb\nc\n"), 0o644))

	values, err := readValues(path)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, values)
}
