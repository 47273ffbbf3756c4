package dvs

import (
	"math"
	"math/rand"
)

// SacProblem is the model side of the sample-consensus contract: a sample
// count, a closed-form fit over index subsets, and per-sample distances to a
// fitted model. Implementations are self-contained so the engine stays
// generic.
type SacProblem interface {
	// SampleSize is the minimum number of samples needed for one fit.
	SampleSize() int
	// NumSamples is the total number of candidate samples.
	NumSamples() int
	// FitModel fits model coefficients to the samples at the given indices.
	// It reports false when the subset is degenerate.
	FitModel(indices []int) ([]float64, bool)
	// Distances returns the distance of each indexed sample to the model.
	Distances(model []float64, indices []int) []float64
}

// Ransac runs random sample consensus over a SacProblem. The iteration count
// adapts downward as better consensus sets are found, capped by
// MaxIterations. A fixed Seed keeps replays deterministic; golden tests rely
// on that.
type Ransac struct {
	// Threshold is the per-sample inlier distance bound, in the problem's
	// distance units.
	Threshold float64
	// MaxIterations caps the number of hypotheses evaluated. Zero means 100.
	MaxIterations int
	// Probability is the desired chance of sampling at least one all-inlier
	// subset. Zero means 0.99.
	Probability float64
	// Seed seeds the hypothesis sampler.
	Seed int64
}

// ComputeModel searches for the model with the largest consensus set.
// It returns found=false when no non-degenerate hypothesis produced at least
// SampleSize inliers. The returned model is the best hypothesis's
// coefficients; callers refine on the inlier set themselves.
func (r *Ransac) ComputeModel(p SacProblem) (found bool, inliers []int, model []float64) {
	n := p.NumSamples()
	k := p.SampleSize()
	if n < k {
		return false, nil, nil
	}

	maxIter := r.MaxIterations
	if maxIter <= 0 {
		maxIter = 100
	}
	prob := r.Probability
	if prob <= 0 || prob >= 1 {
		prob = 0.99
	}

	rng := rand.New(rand.NewSource(r.Seed))
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	var bestInliers []int
	var bestModel []float64
	adaptiveIter := maxIter

	sample := make([]int, k)
	for iter := 0; iter < maxIter && iter < adaptiveIter; iter++ {
		sampleWithoutReplacement(rng, n, sample)
		m, ok := p.FitModel(sample)
		if !ok {
			continue
		}

		dists := p.Distances(m, all)
		var cur []int
		for i, d := range dists {
			if d < r.Threshold {
				cur = append(cur, i)
			}
		}
		if len(cur) <= len(bestInliers) {
			continue
		}
		bestInliers = cur
		bestModel = m

		// Standard adaptive termination: with inlier ratio w, the expected
		// number of draws to hit an all-inlier sample bounds the remaining
		// work.
		w := float64(len(cur)) / float64(n)
		denom := math.Log(1 - math.Pow(w, float64(k)))
		if denom < 0 {
			needed := int(math.Ceil(math.Log(1-prob) / denom))
			if needed < adaptiveIter {
				adaptiveIter = needed
			}
		}
	}

	if len(bestInliers) < k {
		return false, nil, nil
	}
	return true, bestInliers, bestModel
}

// sampleWithoutReplacement fills dst with distinct indices in [0, n).
func sampleWithoutReplacement(rng *rand.Rand, n int, dst []int) {
	for i := range dst {
	retry:
		v := rng.Intn(n)
		for j := 0; j < i; j++ {
			if dst[j] == v {
				goto retry
			}
		}
		dst[i] = v
	}
}
