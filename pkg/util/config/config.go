// Package config holds the recognised options of the statistics engine
// and their defaults, loadable from a TOML file the same way other
// operational tooling loads cluster settings from a config file.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"

	"github.com/videxdb/statscore/pkg/sql/stats/ndv"
)

// Options are the engine-wide tunables. Field names mirror their
// snake_case TOML keys as CamelCase plus a toml tag.
type Options struct {
	// BucketLen is the target bucket count k for equi-depth histograms.
	BucketLen int `toml:"bucket_len"`
	// NDVMethod is the default method key used by the NDV estimator suite.
	NDVMethod string `toml:"ndv_method"`
	// RowsTarget is the sampler's row budget R.
	RowsTarget int `toml:"rows_target"`
	// DeltaReq is the 2PHASE adaptive controller's target validation error.
	DeltaReq float64 `toml:"delta_req"`
	// Lmax is the sort-and-validate recursion depth.
	Lmax int `toml:"lmax"`
	// UseSample is loaded from configuration but not read by the pipeline;
	// PLM4NDV always includes the profile in its input.
	UseSample bool `toml:"use_sample"`
	// AdaNDVModelPath and PLM4NDVModelPath point at serialised model weights.
	AdaNDVModelPath  string `toml:"adandv_model_path"`
	PLM4NDVModelPath string `toml:"plm4ndv_model_path"`
	// MaxSampledRows is the 2PHASE controller's absolute cap on total
	// sampled rows.
	MaxSampledRows int `toml:"max_sampled_rows"`
}

// Default returns the built-in defaults. rows_target, delta_req and lmax
// are implementation-defined; the values below match the magnitudes used
// in VIDEX's own sampling examples.
func Default() Options {
	return Options{
		BucketLen:        10,
		NDVMethod:        "GEE",
		RowsTarget:       10000,
		DeltaReq:         0.1,
		Lmax:             4,
		UseSample:        true,
		AdaNDVModelPath:  "",
		PLM4NDVModelPath: "",
		MaxSampledRows:   200000,
	}
}

// Option mutates an Options value; used with New for functional-option style
// construction in callers that only want to override a few fields.
type Option func(*Options)

// New builds an Options starting from Default and applying opts in order.
func New(opts ...Option) Options {
	o := Default()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithBucketLen(k int) Option          { return func(o *Options) { o.BucketLen = k } }
func WithNDVMethod(method string) Option  { return func(o *Options) { o.NDVMethod = method } }
func WithRowsTarget(r int) Option         { return func(o *Options) { o.RowsTarget = r } }
func WithDeltaReq(delta float64) Option   { return func(o *Options) { o.DeltaReq = delta } }
func WithLmax(l int) Option              { return func(o *Options) { o.Lmax = l } }
func WithUseSample(use bool) Option       { return func(o *Options) { o.UseSample = use } }
func WithMaxSampledRows(cap int) Option   { return func(o *Options) { o.MaxSampledRows = cap } }

// LoadFile reads a TOML config file, starting from Default and overriding
// only the fields present in the file.
func LoadFile(path string) (Options, error) {
	o := Default()
	if _, err := toml.DecodeFile(path, &o); err != nil {
		return Options{}, errors.Wrapf(err, "loading config from %q", path)
	}
	return o, nil
}

// Validate checks that an Options value is internally consistent, returning
// a ConfigurationError-flavored error on an unknown method name.
func Validate(o Options) error {
	if o.BucketLen <= 0 {
		return errors.Newf("bucket_len must be positive, got %d", o.BucketLen)
	}
	if o.RowsTarget <= 0 {
		return errors.Newf("rows_target must be positive, got %d", o.RowsTarget)
	}
	if o.DeltaReq <= 0 {
		return errors.Newf("delta_req must be positive, got %f", o.DeltaReq)
	}
	if o.Lmax <= 0 {
		return errors.Newf("lmax must be positive, got %d", o.Lmax)
	}
	if !ndv.IsValidMethod(o.NDVMethod) {
		return errors.Newf("ndv_method %q is not a recognised estimator", o.NDVMethod)
	}
	return nil
}
