package ndv

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/videxdb/statscore/pkg/sql/stats/profile"
	"github.com/videxdb/statscore/pkg/util/log"
)

// ErrModelLoad is wrapped by any failure to load AdaNDV/PLM4NDV weights:
// absent or corrupt weight files, not a bug in the estimator logic
// itself.
var ErrModelLoad = errors.New("ndv: model weights unavailable")

// AdaNDVWeights holds the ranker/weighter parameters: two linear rankers
// over the input feature vector selecting top-k over/under-estimators
// from the 9-method base panel, and a weighter producing a softmax blend
// over the 2k chosen log-estimates.
type AdaNDVWeights struct {
	RankerOver  [][]float64 `json:"ranker_over"`
	RankerUnder [][]float64 `json:"ranker_under"`
	Weighter    [][]float64 `json:"weighter"`
	K           int         `json:"k"`
	InputLen    int         `json:"input_len"`
}

// PLM4NDVWeights holds the column-embedding + self-attention + regression
// head parameters.
type PLM4NDVWeights struct {
	EmbedDim     int         `json:"embed_dim"`
	AttnHeads    int         `json:"attn_heads"`
	RegressorW   [][]float64 `json:"regressor_w"`
	RegressorB   []float64   `json:"regressor_b"`
	ProfileTrunc int         `json:"profile_trunc"`
}

type modelCache struct {
	mu      sync.Mutex
	ada     map[string]*AdaNDVWeights
	plm4ndv map[string]*PLM4NDVWeights
}

var cache = &modelCache{
	ada:     make(map[string]*AdaNDVWeights),
	plm4ndv: make(map[string]*PLM4NDVWeights),
}

func loadAdaNDV(path string) (*AdaNDVWeights, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if w, ok := cache.ada[path]; ok {
		return w, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "loading AdaNDV weights from %s", path), ErrModelLoad)
	}
	var w AdaNDVWeights
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "parsing AdaNDV weights from %s", path), ErrModelLoad)
	}
	cache.ada[path] = &w
	return &w, nil
}

func loadPLM4NDV(path string) (*PLM4NDVWeights, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if w, ok := cache.plm4ndv[path]; ok {
		return w, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "loading PLM4NDV weights from %s", path), ErrModelLoad)
	}
	var w PLM4NDVWeights
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "parsing PLM4NDV weights from %s", path), ErrModelLoad)
	}
	cache.plm4ndv[path] = &w
	return &w, nil
}

// EstimateAdaNDV computes the 9-method base panel, then blends the top-k
// over/under-estimators per the loaded ranker/weighter model. On
// ModelLoadError it logs once per modelPath and falls back to GEE,
// returning a non-nil error wrapping ErrModelLoad purely for the
// caller's diagnostics — the returned estimate is always usable.
func EstimateAdaNDV(ctx context.Context, modelPath string, r int, n int64, f profile.Profile) (float64, error) {
	geeFallback := geeEstimate(r, n, f)

	w, err := loadAdaNDV(modelPath)
	if err != nil {
		log.WarningfOnce(ctx, "adandv_model_load:"+modelPath, "AdaNDV model unavailable at %s, falling back to GEE: %v", modelPath, err)
		return geeFallback, err
	}

	estimates := make([]float64, len(baseMethods))
	for i, m := range baseMethods {
		v, estErr := Estimate(m, r, n, f)
		if estErr != nil || v <= 0 {
			v = float64(f.D())
		}
		estimates[i] = v
	}

	k := w.K
	if k <= 0 || 2*k > len(estimates) {
		k = 2
	}
	inputLen := w.InputLen
	if inputLen <= 0 {
		inputLen = 97
	}
	feature := adaFeatureVector(f, n, inputLen)

	overIdx := topKByScore(linearScore(w.RankerOver, feature, len(estimates)), k)
	underIdx := topKByScore(linearScore(w.RankerUnder, feature, len(estimates)), k)

	chosenIdx := append(append([]int{}, overIdx...), underIdx...)
	logEstimates := make([]float64, len(chosenIdx))
	for i, idx := range chosenIdx {
		v := estimates[idx]
		if v < 1e-5 {
			v = 1e-5
		}
		logEstimates[i] = math.Log(v)
	}

	weights := softmax(linearScore(w.Weighter, feature, len(chosenIdx)))
	if len(weights) != len(logEstimates) {
		return geeFallback, nil
	}

	var logNDV float64
	for i, lv := range logEstimates {
		logNDV += weights[i] * lv
	}
	return math.Exp(logNDV), nil
}

// EstimatePLM4NDV returns the PLM4NDV regression estimate for one column
// within a table; neighboring columns' embeddings are passed in
// otherColumnEmbeddings so the self-attention context can contextualise
// the column embeddings across all columns of a table. Fallback on any
// failure (including ModelLoadError) is 2·d.
func EstimatePLM4NDV(ctx context.Context, modelPath string, columnName, columnType string, n int64, f profile.Profile, otherColumnEmbeddings [][]float64) (float64, error) {
	d := float64(f.D())
	fallback := 2 * d

	w, err := loadPLM4NDV(modelPath)
	if err != nil {
		log.WarningfOnce(ctx, "plm4ndv_model_load:"+modelPath, "PLM4NDV model unavailable at %s, falling back to 2d: %v", modelPath, err)
		return fallback, err
	}

	embedDim := w.EmbedDim
	if embedDim <= 0 {
		embedDim = 768
	}
	selfEmbed := sentenceEmbedding(columnName+" "+columnType, embedDim)
	attended := selfAttend(selfEmbed, append(append([][]float64{}, otherColumnEmbeddings...), selfEmbed))

	profileTrunc := w.ProfileTrunc
	if profileTrunc <= 0 {
		profileTrunc = 100
	}
	feature := make([]float64, 0, 2*embedDim+1+profileTrunc)
	feature = append(feature, selfEmbed...)
	feature = append(feature, attended...)
	feature = append(feature, math.Log(math.Max(float64(n), 1)))
	for j := 1; j <= profileTrunc; j++ {
		feature = append(feature, float64(f.At(j)))
	}

	out := linearScore(w.RegressorW, feature, 1)
	if len(out) == 0 {
		return fallback, nil
	}
	logNDV := out[0]
	if len(w.RegressorB) > 0 {
		logNDV += w.RegressorB[0]
	}
	return math.Exp(logNDV), nil
}

func adaFeatureVector(f profile.Profile, n int64, truncLen int) []float64 {
	feature := make([]float64, truncLen+3)
	for j := 0; j < truncLen && j < len(f); j++ {
		feature[j] = float64(f[j])
	}
	feature[truncLen] = math.Log(math.Max(float64(f.N()), 1))
	feature[truncLen+1] = math.Log(math.Max(float64(f.D()), 1))
	feature[truncLen+2] = math.Log(math.Max(float64(n), 1))
	return feature
}

// linearScore applies a (outLen x len(feature)) weight matrix to feature,
// truncating or zero-padding rows as needed so a malformed/undersized
// weight matrix degrades gracefully instead of panicking.
func linearScore(weights [][]float64, feature []float64, outLen int) []float64 {
	if len(weights) == 0 {
		return make([]float64, outLen)
	}
	out := make([]float64, outLen)
	for i := 0; i < outLen && i < len(weights); i++ {
		row := weights[i]
		var sum float64
		for j := 0; j < len(row) && j < len(feature); j++ {
			sum += row[j] * feature[j]
		}
		out[i] = sum
	}
	return out
}

func topKByScore(scores []float64, k int) []int {
	type pair struct {
		idx   int
		score float64
	}
	pairs := make([]pair, len(scores))
	for i, s := range scores {
		pairs[i] = pair{i, s}
	}
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].score > pairs[i].score {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	if k > len(pairs) {
		k = len(pairs)
	}
	idx := make([]int, k)
	for i := 0; i < k; i++ {
		idx[i] = pairs[i].idx
	}
	return idx
}

func softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	if sum == 0 {
		for i := range out {
			out[i] = 1 / float64(len(out))
		}
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// sentenceEmbedding is a deterministic, dependency-free stand-in for a
// trained sentence encoder: no portable Go sentence-embedding model is
// available, so column identity is hashed into a fixed-dimension vector.
// This keeps PLM4NDV's attention/regression plumbing exercised end to
// end; only the embedding's semantic quality is approximated.
func sentenceEmbedding(text string, dim int) []float64 {
	out := make([]float64, dim)
	h := uint64(1469598103934665603)
	for i := 0; i < len(text); i++ {
		h ^= uint64(text[i])
		h *= 1099511628211
		out[i%dim] += float64(h%1000) / 1000.0
	}
	return out
}

// selfAttend applies single-head scaled dot-product attention of query
// against keys/values (all the same embedding set, self-attention over
// the table's columns).
func selfAttend(query []float64, keysValues [][]float64) []float64 {
	if len(keysValues) == 0 {
		return query
	}
	scores := make([]float64, len(keysValues))
	scale := math.Sqrt(float64(len(query)))
	if scale == 0 {
		scale = 1
	}
	for i, kv := range keysValues {
		scores[i] = dot(query, kv) / scale
	}
	weights := softmax(scores)

	out := make([]float64, len(query))
	for i, kv := range keysValues {
		for j := 0; j < len(out) && j < len(kv); j++ {
			out[j] += weights[i] * kv[j]
		}
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := 0; i < len(a) && i < len(b); i++ {
		sum += a[i] * b[i]
	}
	return sum
}
