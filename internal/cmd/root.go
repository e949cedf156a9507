package cmd

import (
	"github.com/spf13/cobra"
)

const (
	groupAnalyze = "analyze"
	groupDev     = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "videxstats",
	Short: "adaptive table statistics for the VIDEX cost model",
	Long: `videxstats samples a table, estimates per-column NDV, builds
equi-depth histograms, and assembles the TableStats record a cost-based
optimizer consumes.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupAnalyze, Title: "Analyze:"},
		&cobra.Group{ID: groupDev, Title: "Offline estimation:"},
	)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(estimateCmd)
}
