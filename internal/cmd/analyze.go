package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/videxdb/statscore/pkg/sql/stats/dbconn"
	"github.com/videxdb/statscore/pkg/sql/stats/tablestats"
	"github.com/videxdb/statscore/pkg/util/config"
)

var analyzeFlags struct {
	dsn        string
	db         string
	table      string
	configFile string
	bucketLen  int
	ndvMethod  string
	rowsTarget int
	deltaReq   float64
	lmax       int
	timeout    time.Duration
}

var analyzeCmd = &cobra.Command{
	Use:     "analyze",
	Short:   "sample a table and print its TableStats as JSON",
	GroupID: groupAnalyze,
	Long: `analyze connects to a MySQL database, runs the sampler, NDV
estimator, and histogram builder over every column of one table, and
prints the resulting TableStats record as JSON.

Examples:
  videxstats analyze --dsn "user:pass@tcp(127.0.0.1:3306)/" --db shop --table orders`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.dsn, "dsn", "", "MySQL data source name (required)")
	f.StringVar(&analyzeFlags.db, "db", "", "database name (required)")
	f.StringVar(&analyzeFlags.table, "table", "", "table name (required)")
	f.StringVar(&analyzeFlags.configFile, "config", "", "TOML config file overriding defaults")
	f.IntVar(&analyzeFlags.bucketLen, "bucket-len", 0, "equi-depth histogram bucket count (0 = use config/default)")
	f.StringVar(&analyzeFlags.ndvMethod, "ndv-method", "", "NDV estimator method name (empty = use config/default)")
	f.IntVar(&analyzeFlags.rowsTarget, "rows-target", 0, "sampler row budget (0 = use config/default)")
	f.Float64Var(&analyzeFlags.deltaReq, "delta-req", 0, "adaptive controller target validation error (0 = use config/default)")
	f.IntVar(&analyzeFlags.lmax, "lmax", 0, "sort-and-validate recursion depth (0 = use config/default)")
	f.DurationVar(&analyzeFlags.timeout, "timeout", time.Minute, "overall deadline for the analyze run")
	_ = analyzeCmd.MarkFlagRequired("dsn")
	_ = analyzeCmd.MarkFlagRequired("db")
	_ = analyzeCmd.MarkFlagRequired("table")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	opts, err := resolveOptions()
	if err != nil {
		return err
	}

	db, err := sql.Open("mysql", analyzeFlags.dsn)
	if err != nil {
		return errors.Wrap(err, "opening MySQL connection")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), analyzeFlags.timeout)
	defer cancel()

	q := dbconn.NewMySQLQuerier(db)
	ts, err := tablestats.AnalyzeTable(ctx, q, analyzeFlags.db, analyzeFlags.table, opts)
	if err != nil {
		return errors.Wrap(err, "analyzing table")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(ts)
}

func resolveOptions() (config.Options, error) {
	opts := config.Default()
	if analyzeFlags.configFile != "" {
		loaded, err := config.LoadFile(analyzeFlags.configFile)
		if err != nil {
			return config.Options{}, err
		}
		opts = loaded
	}

	if analyzeFlags.bucketLen > 0 {
		opts.BucketLen = analyzeFlags.bucketLen
	}
	if analyzeFlags.ndvMethod != "" {
		opts.NDVMethod = analyzeFlags.ndvMethod
	}
	if analyzeFlags.rowsTarget > 0 {
		opts.RowsTarget = analyzeFlags.rowsTarget
	}
	if analyzeFlags.deltaReq > 0 {
		opts.DeltaReq = analyzeFlags.deltaReq
	}
	if analyzeFlags.lmax > 0 {
		opts.Lmax = analyzeFlags.lmax
	}

	if err := config.Validate(opts); err != nil {
		return config.Options{}, errors.Wrap(err, "invalid configuration")
	}
	return opts, nil
}
