package dvs

import (
	"fmt"
	"image"
	"math"
	"sort"
)

// EventSurface maintains the Surface of Active Events (SAE) for one sensor
// stream: per pixel and per polarity channel, the timestamp of the most
// recent retained event, plus unfiltered latest-seen timestamps used by the
// refractory retention rule.
//
// The surface has a single logical owner. Ingest and the map accessors
// perform read-modify-write on shared per-pixel state and must not be called
// concurrently without external mutual exclusion (see AnalysisRunner).
type EventSurface struct {
	width  int
	height int

	// refractorySec is the minimum gap between retained same-polarity events
	// at one pixel. Closer repeats only advance the latest-seen surface.
	refractorySec float64

	drawEvents bool
	undisto    *UndistortMap

	// sae holds the filtered per-polarity timestamp grids; saeLatest the
	// unfiltered latest-seen grids. Index 0 = negative, 1 = positive.
	sae       [2]*ScalarMap
	saeLatest [2]*ScalarMap

	timeLatest float64

	eventImg *image.RGBA
}

// NewEventSurface creates a surface for a width x height sensor. A nil remap
// disables undistortion (identity). When drawEvents is set, ingestion paints
// each event into the visualization image.
func NewEventSurface(width, height int, refractorySec float64, remap *UndistortMap, drawEvents bool) *EventSurface {
	if remap == nil {
		remap = IdentityUndistortMap(width, height)
	}
	s := &EventSurface{
		width:         width,
		height:        height,
		refractorySec: refractorySec,
		drawEvents:    drawEvents,
		undisto:       remap,
		timeLatest:    0,
		eventImg:      image.NewRGBA(image.Rect(0, 0, width, height)),
	}
	for p := 0; p < 2; p++ {
		s.sae[p] = NewScalarMap(width, height)
		s.saeLatest[p] = NewScalarMap(width, height)
	}
	return s
}

// Width returns the sensor width in pixels.
func (s *EventSurface) Width() int { return s.width }

// Height returns the sensor height in pixels.
func (s *EventSurface) Height() int { return s.height }

// Ingest folds one event into the surface. An event is retained into the
// filtered SAE when it clears the refractory gap since the last event of its
// polarity, or when the opposite polarity has fired more recently (a polarity
// flip is trusted immediately). Otherwise only the latest-seen timestamp
// advances, suppressing per-pixel chatter. The global latest timestamp always
// advances.
//
// Coordinates outside the sensor bounds are a caller error and panic.
func (s *EventSurface) Ingest(e Event) {
	if e.X < 0 || e.X >= s.width || e.Y < 0 || e.Y >= s.height {
		panic(fmt.Sprintf("dvs: event pixel (%d,%d) outside %dx%d sensor", e.X, e.Y, s.width, s.height))
	}

	pol, polInv := polarityChannels(e.Polarity)
	i := s.saeLatest[pol].Idx(e.X, e.Y)
	tLast := s.saeLatest[pol].Values[i]
	tLastInv := s.saeLatest[polInv].Values[i]

	if e.TimestampSec > tLast+s.refractorySec || tLastInv > tLast {
		s.saeLatest[pol].Values[i] = e.TimestampSec
		s.sae[pol].Values[i] = e.TimestampSec
	} else {
		s.saeLatest[pol].Values[i] = e.TimestampSec
	}
	s.timeLatest = e.TimestampSec

	if s.drawEvents {
		s.eventImg.SetRGBA(e.X, e.Y, polarityColor(e.Polarity))
	}
}

// IngestBatch ingests all events of a batch in arrival order. Order matters:
// later events at the same pixel can override retention decisions of earlier
// ones.
func (s *EventSurface) IngestBatch(batch EventBatch) {
	for _, e := range batch.Events {
		s.Ingest(e)
	}
}

// SnapshotVisualization returns the accumulated per-event visualization
// image. When resetAfter is set the internal image is cleared; when undistort
// is set the returned image is rectified.
func (s *EventSurface) SnapshotVisualization(resetAfter, undistort bool) *image.RGBA {
	out := image.NewRGBA(s.eventImg.Rect)
	copy(out.Pix, s.eventImg.Pix)
	if resetAfter {
		s.eventImg = image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	}
	if undistort {
		return s.undisto.ApplyRGBA(out)
	}
	return out
}

// TimeSurface renders the exponentially decayed time surface as an 8-bit
// image. Each pixel maps exp(-(tLatest-t)/decaySec) into [0,255]; when
// polarity is not ignored the decayed value is signed by the most recent
// polarity and [-1,1] is remapped to [0,255]. An optional median blur of
// kernel size 2k+1 smooths shot noise. This is a perceptual artifact; flow
// extraction consumes RawTimeSurface instead.
func (s *EventSurface) TimeSurface(ignorePolarity, undistort bool, medianBlurKernel int, decaySec float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, s.width, s.height))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			i := y*s.width + x
			mostRecent := math.Max(s.sae[1].Values[i], s.sae[0].Values[i])
			dt := s.timeLatest - mostRecent
			expVal := math.Exp(-dt / decaySec)

			if !ignorePolarity {
				if s.sae[1].Values[i] <= s.sae[0].Values[i] {
					expVal = -expVal
				}
				expVal = 255.0 * (expVal + 1.0) / 2.0
			} else {
				expVal = 255.0 * expVal
			}
			img.Pix[i] = clampU8(expVal)
		}
	}

	if medianBlurKernel > 0 {
		img = medianBlurGray(img, 2*medianBlurKernel+1)
	}
	if undistort {
		return s.undisto.ApplyGray(img)
	}
	return img
}

// RawTimeSurface returns the unscaled most-recent retained timestamp per
// pixel (signed by polarity unless ignored) together with the polarity map.
// This is the geometrically meaningful map consumed by flow extraction. A
// surface with no ingested events yields all-zero maps.
func (s *EventSurface) RawTimeSurface(ignorePolarity, undistort bool) (*ScalarMap, *PolarityMap) {
	rts := NewScalarMap(s.width, s.height)
	pmap := NewPolarityMap(s.width, s.height)
	for i := range rts.Values {
		pos, neg := s.sae[1].Values[i], s.sae[0].Values[i]
		if pos == 0 && neg == 0 {
			continue
		}
		mostRecent := math.Max(pos, neg)
		var polarity int8 = -1
		if pos > neg {
			polarity = 1
		}
		pmap.Values[i] = polarity
		if !ignorePolarity {
			mostRecent *= float64(polarity)
		}
		rts.Values[i] = mostRecent
	}
	if undistort {
		return s.undisto.ApplyScalar(rts), s.undisto.ApplyPolarity(pmap)
	}
	return rts, pmap
}

// LatestTimestamp returns the timestamp of the most recently ingested event,
// zero for an empty surface.
func (s *EventSurface) LatestTimestamp() float64 { return s.timeLatest }

// polarityChannels maps an event polarity to its SAE channel index and the
// opposite channel index.
func polarityChannels(polarity bool) (pol, polInv int) {
	if polarity {
		return 1, 0
	}
	return 0, 1
}

func clampU8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// medianBlurGray applies a kernel x kernel median filter with clamped
// borders. kernel must be odd.
func medianBlurGray(src *image.Gray, kernel int) *image.Gray {
	r := kernel / 2
	w := src.Rect.Dx()
	h := src.Rect.Dy()
	out := image.NewGray(src.Rect)
	window := make([]uint8, 0, kernel*kernel)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			window = window[:0]
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					nx, ny := clampInt(x+dx, 0, w-1), clampInt(y+dy, 0, h-1)
					window = append(window, src.Pix[ny*src.Stride+nx])
				}
			}
			sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
			out.Pix[y*out.Stride+x] = window[len(window)/2]
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
