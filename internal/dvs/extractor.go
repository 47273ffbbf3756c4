package dvs

import (
	"image"
)

// ExtractorParams tunes normal-flow extraction.
type ExtractorParams struct {
	// DecaySec is the time-surface decay constant; pixels older than
	// 1.5*DecaySec relative to the latest timestamp are not candidates.
	DecaySec float64 // e.g. 0.01
	// WindowRadius is the half-width of the square estimation window.
	WindowRadius int // e.g. 5
	// NeighborDist is the anchor suppression radius; no two anchors land
	// within this Chebyshev distance. Must be <= WindowRadius to be useful.
	NeighborDist int // e.g. 2
	// GoodRatio is both the minimum window fill ratio and the minimum RANSAC
	// inlier ratio.
	GoodRatio float64 // e.g. 0.9
	// PlaneDistSec is the RANSAC point-to-plane threshold in the temporal
	// domain, seconds.
	PlaneDistSec float64 // e.g. 1e-4
	// RansacMaxIter caps RANSAC hypotheses per candidate.
	RansacMaxIter int // e.g. 100
	// FlowCeilPxPerSec rejects flows whose magnitude exceeds this bound;
	// such fits are planes nearly orthogonal to the time axis.
	FlowCeilPxPerSec float64 // e.g. 4000
	// Seed is the base RANSAC sampling seed. Runs with equal seeds and equal
	// inputs produce identical packs.
	Seed int64
}

// DefaultExtractorParams returns a tuning suitable for VGA-class DVS streams.
func DefaultExtractorParams() ExtractorParams {
	return ExtractorParams{
		DecaySec:         0.01,
		WindowRadius:     5,
		NeighborDist:     2,
		GoodRatio:        0.9,
		PlaneDistSec:     1e-4,
		RansacMaxIter:    100,
		FlowCeilPxPerSec: 4000,
		Seed:             1,
	}
}

// SurfaceSnapshot is a consistent copy of the maps extraction consumes. The
// snapshot is taken in one step (under the owner's lock) so extraction can
// run while new events keep arriving.
type SurfaceSnapshot struct {
	RawTimes     *ScalarMap
	Polarities   *PolarityMap
	Decayed      *image.Gray
	TimestampSec float64
}

// Snapshot captures the undistorted raw time surface, polarity map, decayed
// time surface and latest timestamp in one step.
func (s *EventSurface) Snapshot(decaySec float64) SurfaceSnapshot {
	rts, pmap := s.RawTimeSurface(true, true)
	return SurfaceSnapshot{
		RawTimes:     rts,
		Polarities:   pmap,
		Decayed:      s.TimeSurface(true, true, 0, decaySec),
		TimestampSec: s.LatestTimestamp(),
	}
}

// NormFlowExtractor turns an event-surface snapshot into a sparse set of
// per-pixel normal flows with spatial non-redundancy and robust outlier
// rejection.
type NormFlowExtractor struct {
	Params ExtractorParams
	// Debug, when non-nil and enabled, collects per-anchor centred inlier
	// sets and plane coefficients for offline inspection.
	Debug *PlaneFitCollector
}

// NewNormFlowExtractor creates an extractor with the given tuning.
func NewNormFlowExtractor(params ExtractorParams) *NormFlowExtractor {
	return &NormFlowExtractor{Params: params}
}

// windowPoint is one uncentred (x, y, t) sample of a candidate window.
type windowPoint struct {
	x, y int
	t    float64
}

// Extract runs the full extraction pass over one snapshot.
//
// Interior pixels inside the freshness window are visited in row-major
// order. Each candidate is skipped when an already-occupied pixel lies within
// the suppression radius, when its window is under-populated, when the robust
// plane fit fails or under-achieves the inlier ratio, or when the derived
// flow magnitude is degenerate. Occupancy marking is greedy: a pixel's
// eligibility depends on earlier-processed neighbours, so the output is
// deterministic for a fixed scan order.
func (e *NormFlowExtractor) Extract(snap SurfaceSnapshot) *NormFlowPack {
	p := e.Params
	rts := snap.RawTimes
	cols := rts.Width
	rows := rts.Height
	timeLast := snap.TimestampSec

	// Freshness mask: raw timestamps within [max(eps, last-1.5*decay), last].
	lower := timeLast - 1.5*p.DecaySec
	if lower < assignedEpsilon {
		lower = assignedEpsilon
	}
	mask := NewPixelMask(cols, rows)
	for i, t := range rts.Values {
		if t >= lower && t <= timeLast {
			mask.Bits[i] = true
		}
	}

	seedImg := grayToRGBA(snap.Decayed)
	flowImg := cloneRGBA(seedImg)

	ws := p.WindowRadius
	nd := p.NeighborDist
	subTrav := ws
	if nd > subTrav {
		subTrav = nd
	}
	winSampleCount := (2*ws + 1) * (2*ws + 1)
	winSampleCountThd := int(float64(winSampleCount) * p.GoodRatio)

	occupy := NewPixelMask(cols, rows)
	inliersOccupy := NewPixelMask(cols, rows)
	flows := []NormFlow{}

	points := make([]windowPoint, 0, winSampleCount)
	for y := subTrav; y < rows-subTrav; y++ {
		for x := subTrav; x < cols-subTrav; x++ {
			if !mask.At(x, y) {
				continue
			}

			// Assemble the window while checking the suppression radius.
			points = points[:0]
			timeCen := 0.0
			jumpCurPixel := false
			for dy := -subTrav; dy <= subTrav && !jumpCurPixel; dy++ {
				for dx := -subTrav; dx <= subTrav; dx++ {
					nx := x + dx
					ny := y + dy

					if abs(dx) <= nd && abs(dy) <= nd && occupy.At(nx, ny) {
						// A neighbour already anchors a flow; this pixel
						// stays out of the estimation entirely.
						jumpCurPixel = true
						break
					}
					if abs(dx) > ws || abs(dy) > ws {
						continue
					}
					if !mask.At(nx, ny) {
						continue
					}
					t := rts.At(nx, ny)
					points = append(points, windowPoint{x: nx, y: ny, t: t})
					if nx == x && ny == y {
						timeCen = t
					}
				}
			}
			if jumpCurPixel || len(points) < winSampleCountThd {
				continue
			}

			// Selected but not yet verified.
			seedImg.SetRGBA(x, y, colorSelected)
			occupy.Set(x, y, true)

			centred := centralize(points)
			problem := &LocalPlaneProblem{Points: centred}
			sac := &Ransac{
				Threshold:     p.PlaneDistSec,
				MaxIterations: p.RansacMaxIter,
				Seed:          p.Seed + int64(y*cols+x),
			}
			found, inliers, _ := sac.ComputeModel(problem)
			if !found || float64(len(inliers))/float64(len(points)) < p.GoodRatio {
				continue
			}
			abc, ok := problem.Refine(inliers)
			if !ok {
				continue
			}

			// The flow is the inverse time gradient: a steeper gradient
			// means slower apparent motion.
			dtdx, dtdy := -abc[0], -abc[1]
			grad2 := dtdx*dtdx + dtdy*dtdy
			if grad2 == 0 {
				continue
			}
			vx := dtdx / grad2
			vy := dtdy / grad2
			if vx*vx+vy*vy > p.FlowCeilPxPerSec*p.FlowCeilPxPerSec {
				// Plane near-orthogonal to the time axis.
				continue
			}

			flows = append(flows, NormFlow{
				X:            x,
				Y:            y,
				TimestampSec: timeCen,
				VX:           vx,
				VY:           vy,
			})
			for _, idx := range inliers {
				inliersOccupy.Set(points[idx].x, points[idx].y, true)
			}

			seedImg.SetRGBA(x, y, colorVerified)
			drawLine(flowImg,
				float64(x)+0.01*vx, float64(y)+0.01*vy,
				float64(x), float64(y), colorFlowVector)

			if e.Debug.Enabled() {
				centredInliers := make([]PlanePoint, len(inliers))
				for k, idx := range inliers {
					centredInliers[k] = centred[idx]
				}
				e.Debug.Record(abc, centredInliers)
			}
		}
	}

	if e.Debug.Enabled() {
		e.Debug.Emit()
	}

	return &NormFlowPack{
		TimestampSec:    timeLast,
		Flows:           flows,
		InlierOccupancy: inliersOccupy,
		Polarities:      snap.Polarities,
		RawTimes:        rts,
		SeedImage:       seedImg,
		FlowImage:       flowImg,
	}
}

// centralize subtracts the sample mean from every window point, conditioning
// the plane solve.
func centralize(points []windowPoint) []PlanePoint {
	var mx, my, mt float64
	for _, pt := range points {
		mx += float64(pt.x)
		my += float64(pt.y)
		mt += pt.t
	}
	n := float64(len(points))
	mx /= n
	my /= n
	mt /= n

	out := make([]PlanePoint, len(points))
	for i, pt := range points {
		out[i] = PlanePoint{
			X: float64(pt.x) - mx,
			Y: float64(pt.y) - my,
			T: pt.t - mt,
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
