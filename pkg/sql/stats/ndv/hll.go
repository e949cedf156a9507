package ndv

import (
	"github.com/axiomhq/hyperloglog"
)

// EstimateHLL estimates the distinct count of a raw value slice using a
// HyperLogLog sketch instead of a profile-based estimator: the natural
// complement to the profile-based estimators when rows_target is large
// enough that building an exact map[string]int profile is wasteful.
func EstimateHLL(values []string) uint64 {
	sketch := hyperloglog.New16()
	for _, v := range values {
		sketch.Insert([]byte(v))
	}
	return sketch.Estimate()
}
