// Command videxstats drives the statistics engine from the shell: it
// connects to a MySQL instance, runs the sampler/estimator/histogram
// pipeline against one table, and prints the resulting TableStats as JSON.
package main

import (
	"os"

	"github.com/videxdb/statscore/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
