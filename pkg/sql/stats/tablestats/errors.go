package tablestats

import "github.com/cockroachdb/errors"

// Sentinels for the pipeline's error kinds (ModelLoadError is
// ndv.ErrModelLoad). ConfigurationError is the one kind that is fatal at
// the caller level: AnalyzeTable returns it marked with ErrConfiguration.
// Non-fatal failures are absorbed into per-column maps as strings and are
// not wrapped with the other sentinels here.
var (
	ErrMetadataUnavailable = errors.New("tablestats: catalog metadata unavailable")
	ErrQuery               = errors.New("tablestats: query failed")
	ErrInsufficientSample  = errors.New("tablestats: fewer than 2 rows sampled")
	ErrEstimatorNumeric    = errors.New("tablestats: estimator denominator zero or non-convergent")
	ErrConfiguration       = errors.New("tablestats: unsupported configuration")
)

// insufficientSampleNDV is the positive sentinel used in place of 0 when
// a column's sample has fewer than 2 rows, so downstream cost arithmetic
// never divides by a zero NDV.
const insufficientSampleNDV = 0.01
