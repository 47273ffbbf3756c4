package dvs

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// PlanePoint is one (x, y, t) sample of a local space-time neighbourhood,
// in centred window coordinates.
type PlanePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T float64 `json:"t"`
}

// LocalPlaneProblem models a local event neighbourhood as the plane
// t = -(A*x + B*y + C): local time as an affine function of pixel position,
// the first-order assumption behind normal flow. It implements SacProblem
// for the consensus engine.
type LocalPlaneProblem struct {
	Points []PlanePoint
}

// SampleSize returns 3, the minimum point count for a plane fit.
func (p *LocalPlaneProblem) SampleSize() int { return 3 }

// NumSamples returns the number of points in the neighbourhood.
func (p *LocalPlaneProblem) NumSamples() int { return len(p.Points) }

// FitModel solves the linear least-squares system M*[A B C]^T = b with rows
// [x y 1] and b = -t, via the normal equations. It reports false when the
// system is singular (collinear or otherwise degenerate samples).
func (p *LocalPlaneProblem) FitModel(indices []int) ([]float64, bool) {
	// Accumulate M^T M (symmetric 3x3) and M^T b directly.
	var sxx, sxy, sx, syy, sy, sn float64
	var bx, by, bc float64
	for _, i := range indices {
		pt := p.Points[i]
		sxx += pt.X * pt.X
		sxy += pt.X * pt.Y
		sx += pt.X
		syy += pt.Y * pt.Y
		sy += pt.Y
		sn++
		bx += pt.X * -pt.T
		by += pt.Y * -pt.T
		bc += -pt.T
	}

	mtm := mat.NewSymDense(3, []float64{
		sxx, sxy, sx,
		sxy, syy, sy,
		sx, sy, sn,
	})
	rhs := mat.NewVecDense(3, []float64{bx, by, bc})

	var chol mat.Cholesky
	if ok := chol.Factorize(mtm); !ok {
		return nil, false
	}
	var coeffs mat.VecDense
	if err := chol.SolveVecTo(&coeffs, rhs); err != nil {
		return nil, false
	}
	return []float64{coeffs.AtVec(0), coeffs.AtVec(1), coeffs.AtVec(2)}, true
}

// Distances returns the signed-time residual |t - tPred| for each indexed
// point, with tPred = -(A*x + B*y + C). Fit quality is deliberately measured
// in time units, not Euclidean plane distance: the flow is derived from the
// gradient of time.
func (p *LocalPlaneProblem) Distances(model []float64, indices []int) []float64 {
	out := make([]float64, len(indices))
	for k, i := range indices {
		out[k] = planeTimeResidual(p.Points[i], model)
	}
	return out
}

// Refine refits the plane on the inlier subset with the same closed-form
// solve. Non-iterative.
func (p *LocalPlaneProblem) Refine(inliers []int) ([]float64, bool) {
	return p.FitModel(inliers)
}

func planeTimeResidual(pt PlanePoint, model []float64) float64 {
	tPred := -(model[0]*pt.X + model[1]*pt.Y + model[2])
	return math.Abs(pt.T - tPred)
}
